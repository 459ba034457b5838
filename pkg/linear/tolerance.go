package linear

import "math"

// Epsilon is the absolute tolerance for every bound comparison.
const Epsilon = 1e-9

// Equal reports a == b within Epsilon. Equal infinities compare equal.
func Equal(a, b float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= Epsilon
}

// LessEq reports a <= b within Epsilon.
func LessEq(a, b float64) bool { return a <= b+Epsilon }

// GreaterEq reports a >= b within Epsilon.
func GreaterEq(a, b float64) bool { return a >= b-Epsilon }

// Less reports a < b by more than Epsilon.
func Less(a, b float64) bool { return a < b-Epsilon }

// Greater reports a > b by more than Epsilon.
func Greater(a, b float64) bool { return a > b+Epsilon }

// IsIntegral reports whether a is within Epsilon of an integer.
func IsIntegral(a float64) bool {
	return Equal(a, math.Round(a))
}
