// Package linear holds the linear-row vocabulary shared by the diagram
// instances, the propagation engine and the Lagrangian framework: row
// senses, sparse rows over binary variables, variable columns, domains and
// tolerance-aware comparisons.
package linear

import (
	"fmt"
	"strings"
)

// Sense is the direction of a linear row.
type Sense int

const (
	LE Sense = iota // a.x <= rhs
	GE              // a.x >= rhs
	EQ              // a.x == rhs
)

func (s Sense) String() string {
	switch s {
	case LE:
		return "<="
	case GE:
		return ">="
	case EQ:
		return "=="
	default:
		return fmt.Sprintf("Sense(%d)", int(s))
	}
}

// ParseSense accepts "<=", "le", ">=", "ge", "=", "==" and "eq".
func ParseSense(s string) (Sense, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "<=", "le":
		return LE, nil
	case ">=", "ge":
		return GE, nil
	case "=", "==", "eq":
		return EQ, nil
	}
	return 0, fmt.Errorf("linear: unknown sense %q", s)
}

// Unfixed marks a free variable in a fixing vector.
const Unfixed = -1

// Row is a sparse linear constraint over binary variables.
// Ind and Coeffs have the same length; Ind holds variable indices.
type Row struct {
	Rhs    float64
	Sense  Sense
	Coeffs []float64
	Ind    []int
	// Name is optional and only used in logs.
	Name string
}

// NewRow returns a row after checking that coefficients and indices match.
func NewRow(rhs float64, sense Sense, coeffs []float64, ind []int) *Row {
	if len(coeffs) != len(ind) {
		panic(fmt.Sprintf("linear: row with %d coefficients and %d indices", len(coeffs), len(ind)))
	}
	return &Row{Rhs: rhs, Sense: sense, Coeffs: coeffs, Ind: ind}
}

// Len returns the number of nonzeros.
func (r *Row) Len() int { return len(r.Ind) }

// Fix returns a copy of r with fixed variables (fixed[v] != Unfixed)
// removed and their contribution moved to the right-hand side.
func (r *Row) Fix(fixed []int) *Row {
	out := &Row{Rhs: r.Rhs, Sense: r.Sense, Name: r.Name}
	for k, v := range r.Ind {
		if val := fixed[v]; val != Unfixed {
			if val != 0 && val != 1 {
				panic(fmt.Sprintf("linear: variable %d fixed to non-binary value %d", v, val))
			}
			out.Rhs -= float64(val) * r.Coeffs[k]
			continue
		}
		out.Ind = append(out.Ind, v)
		out.Coeffs = append(out.Coeffs, r.Coeffs[k])
	}
	return out
}

// Restrict returns a copy of r keeping only variables inside subspace.
// The right-hand side is unchanged.
func (r *Row) Restrict(subspace []bool) *Row {
	out := &Row{Rhs: r.Rhs, Sense: r.Sense, Name: r.Name}
	for k, v := range r.Ind {
		if subspace[v] {
			out.Ind = append(out.Ind, v)
			out.Coeffs = append(out.Coeffs, r.Coeffs[k])
		}
	}
	return out
}

// Remap returns a copy of r with each index v replaced by m[v]. Entries
// with m[v] < 0 are dropped.
func (r *Row) Remap(m []int) *Row {
	out := &Row{Rhs: r.Rhs, Sense: r.Sense, Name: r.Name}
	for k, v := range r.Ind {
		if m[v] >= 0 {
			out.Ind = append(out.Ind, m[v])
			out.Coeffs = append(out.Coeffs, r.Coeffs[k])
		}
	}
	return out
}

// MinActivity is the smallest value of a.x over x in {0,1}^n.
func (r *Row) MinActivity() float64 {
	a := 0.0
	for _, c := range r.Coeffs {
		if c < 0 {
			a += c
		}
	}
	return a
}

// MaxActivity is the largest value of a.x over x in {0,1}^n.
func (r *Row) MaxActivity() float64 {
	a := 0.0
	for _, c := range r.Coeffs {
		if c > 0 {
			a += c
		}
	}
	return a
}

// Activity evaluates a.x for a full assignment x.
func (r *Row) Activity(x []int) float64 {
	a := 0.0
	for k, v := range r.Ind {
		if x[v] != 0 {
			a += r.Coeffs[k]
		}
	}
	return a
}

// Satisfied reports whether x satisfies the row within tolerance.
func (r *Row) Satisfied(x []int) bool {
	return SenseHolds(r.Sense, r.Activity(x), r.Rhs)
}

// Split returns r itself for one-sided rows and its LE and GE halves for
// an equality.
func (r *Row) Split() []*Row {
	if r.Sense != EQ {
		return []*Row{r}
	}
	le := *r
	le.Sense = LE
	ge := *r
	ge.Sense = GE
	return []*Row{&le, &ge}
}

// Coeff returns the coefficient of variable v, or zero. Linear search.
func (r *Row) Coeff(v int) float64 {
	for k, u := range r.Ind {
		if u == v {
			return r.Coeffs[k]
		}
	}
	return 0
}

// SenseHolds reports whether lhs (sense) rhs holds within tolerance.
func SenseHolds(s Sense, lhs, rhs float64) bool {
	switch s {
	case LE:
		return LessEq(lhs, rhs)
	case GE:
		return GreaterEq(lhs, rhs)
	default:
		return Equal(lhs, rhs)
	}
}

func (r *Row) String() string {
	var b strings.Builder
	for k, v := range r.Ind {
		c := r.Coeffs[k]
		switch {
		case k == 0 && c < 0:
			b.WriteString("-")
		case k > 0 && c < 0:
			b.WriteString(" - ")
		case k > 0:
			b.WriteString(" + ")
		}
		if c < 0 {
			c = -c
		}
		if c != 1 {
			fmt.Fprintf(&b, "%g ", c)
		}
		fmt.Fprintf(&b, "x%d", v)
	}
	if len(r.Ind) == 0 {
		b.WriteString("0")
	}
	fmt.Fprintf(&b, " %s %g", r.Sense, r.Rhs)
	return b.String()
}
