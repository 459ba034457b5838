package cliquetable

import (
	"github.com/gitrdm/ddbound/pkg/dd"
	"github.com/gitrdm/ddbound/pkg/linear"
)

// DomainCompletionBound bounds the completion of a state from its literal
// domains alone. Processed variables are absent from the state and add
// nothing.
type DomainCompletionBound struct {
	Inst *Instance
}

var _ dd.CompletionBound = DomainCompletionBound{}

// DualBound adds every positive weight whose variable can be one and every
// negative weight whose variable must be one.
func (cb DomainCompletionBound) DualBound(st dd.State) float64 {
	return cb.bound(st.(*State), true)
}

// PrimalBound adds every negative weight whose variable can be one and
// every positive weight whose variable must be one.
func (cb DomainCompletionBound) PrimalBound(st dd.State) float64 {
	return cb.bound(st.(*State), false)
}

func (cb DomainCompletionBound) bound(s *State, dual bool) float64 {
	inst := cb.Inst
	n := inst.n
	good := linear.Greater
	if !dual {
		good = linear.Less
	}

	b := 0.0
	for i := s.set.First(); i >= 0 && i < n; i = s.set.Next(i) {
		w := inst.weights[i]
		switch {
		case good(w, 0):
			b += w
		case !inst.nonnegatedOnly && !linear.Equal(w, 0) && !s.set.Contains(i+n):
			b += w
		}
	}
	return b
}
