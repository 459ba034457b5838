package linear

// Domain is the remaining set of values for a binary variable at a node.
type Domain int

const (
	Zero      Domain = iota // only 0 remains
	One                     // only 1 remains
	ZeroOne                 // both values remain
	Processed               // variable already branched on, or empty
)

func (d Domain) String() string {
	switch d {
	case Zero:
		return "0"
	case One:
		return "1"
	case ZeroOne:
		return "01"
	case Processed:
		return "processed"
	}
	return "?"
}

// Column lists the rows a variable appears in, with its coefficient in each.
type Column struct {
	Rows   []int
	Coeffs []float64
}

// Columns builds the column view of rows over n variables.
func Columns(rows []*Row, n int) []Column {
	cols := make([]Column, n)
	for i, r := range rows {
		for k, v := range r.Ind {
			cols[v].Rows = append(cols[v].Rows, i)
			cols[v].Coeffs = append(cols[v].Coeffs, r.Coeffs[k])
		}
	}
	return cols
}
