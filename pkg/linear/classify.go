package linear

import "math"

// IsSetPacking reports whether r reads sum x_i <= 1 with unit coefficients.
func IsSetPacking(r *Row) bool {
	if r.Sense != LE || !Equal(r.Rhs, 1) {
		return false
	}
	for _, c := range r.Coeffs {
		if !Equal(c, 1) {
			return false
		}
	}
	return true
}

// CliqueTableForm reports whether r can be written as a clique over
// literals. All coefficients must share one absolute value c; with npos
// positive and nneg negative coefficients, the <= side is in clique form
// when rhs/c == 1-nneg and the >= side when rhs/c == npos-1.
//
// An equality row is checked on both sides. A row without nonzeros is in
// form exactly when it is trivially satisfied.
func CliqueTableForm(r *Row) (le, ge bool) {
	checkLE := r.Sense == LE || r.Sense == EQ
	checkGE := r.Sense == GE || r.Sense == EQ

	if len(r.Coeffs) == 0 {
		return checkLE && GreaterEq(r.Rhs, 0), checkGE && LessEq(r.Rhs, 0)
	}

	c := math.Abs(r.Coeffs[0])
	if Equal(c, 0) {
		return false, false
	}
	npos, nneg := 0, 0
	for _, a := range r.Coeffs {
		switch {
		case Equal(a, c):
			npos++
		case Equal(a, -c):
			nneg++
		default:
			return false, false
		}
	}
	rhs := r.Rhs / c
	le = checkLE && Equal(rhs, float64(1-nneg))
	ge = checkGE && Equal(rhs, float64(npos-1))
	return le, ge
}

// CliqueLiterals returns the literals of a row in clique-table form over n
// variables: x_v is literal v and its negation is v+n. For the <= side a
// negative coefficient yields a negated literal; for the >= side a positive
// one does.
func CliqueLiterals(r *Row, n int, geSide bool) []int {
	lits := make([]int, len(r.Ind))
	for k, v := range r.Ind {
		neg := r.Coeffs[k] < 0
		if geSide {
			neg = r.Coeffs[k] > 0
		}
		if neg {
			lits[k] = v + n
		} else {
			lits[k] = v
		}
	}
	return lits
}
