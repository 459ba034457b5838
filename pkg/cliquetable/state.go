package cliquetable

import (
	"fmt"

	"github.com/gitrdm/ddbound/pkg/dd"
	"github.com/gitrdm/ddbound/pkg/intset"
	"github.com/gitrdm/ddbound/pkg/linear"
)

// State is the set of literals that may still be set true. Its universe is
// 2n literals, or n when the instance is nonnegated-only.
type State struct {
	inst *Instance
	set  *intset.IntSet
}

// NewState returns the state holding every literal.
func NewState(inst *Instance) *State {
	size := 2 * inst.n
	if inst.nonnegatedOnly {
		size = inst.n
	}
	return &State{inst: inst, set: intset.NewFull(size)}
}

// Set returns the literal set. Callers must not modify it.
func (s *State) Set() *intset.IntSet { return s.set }

// Transition implements dd.State.
func (s *State) Transition(v, val int) (dd.State, bool) {
	inst := s.inst
	n := inst.n

	if inst.nonnegatedOnly {
		if val == 1 && !s.set.Contains(v) {
			return nil, false
		}
		next := s.set.Clone().Remove(v)
		if val == 1 {
			next.Intersect(inst.masks[v])
		}
		return &State{inst: inst, set: next}, true
	}

	lit := v + n
	if val == 1 {
		lit = v
	}
	if !s.set.Contains(lit) {
		return nil, false
	}
	next := s.set.Clone().Remove(v).Remove(v + n).Intersect(inst.masks[lit])

	// a removed literal whose complement is also gone leaves its variable
	// without a value
	lost := s.set.Clone().Difference(next).Remove(v).Remove(v + n)
	if !lost.Empty() {
		mirror := next.Clone().ShiftUp(n).Union(next.Clone().ShiftDown(n))
		if !lost.Difference(mirror).Empty() {
			return nil, false
		}
	}
	return &State{inst: inst, set: next}, true
}

// Merge implements dd.State.
func (s *State) Merge(other dd.State) { s.set.Union(other.(*State).set) }

// Equal implements dd.State.
func (s *State) Equal(other dd.State) bool {
	o, ok := other.(*State)
	return ok && s.set.Equal(o.set)
}

// Less implements dd.State.
func (s *State) Less(other dd.State) bool { return s.set.Less(other.(*State).set) }

// Hash implements dd.State.
func (s *State) Hash() uint64 { return s.set.Hash() }

// Size implements dd.State.
func (s *State) Size() int { return s.set.Count() }

func (s *State) String() string { return s.set.String() }

// MarkProcessed removes both literals of v.
func (s *State) MarkProcessed(v int) {
	s.set.Remove(v)
	if !s.inst.nonnegatedOnly {
		s.set.Remove(v + s.inst.n)
	}
}

func (s *State) zeroPossible(v int) bool {
	return s.inst.nonnegatedOnly || s.set.Contains(v+s.inst.n)
}

// Domain implements linprop.DomainState. For a nonnegated-only instance a
// variable missing from the set reads as Zero, processed or not.
func (s *State) Domain(v int) linear.Domain {
	zero := s.zeroPossible(v)
	switch {
	case s.set.Contains(v) && zero:
		return linear.ZeroOne
	case s.set.Contains(v):
		return linear.One
	case zero:
		return linear.Zero
	}
	return linear.Processed
}

// SetDomain implements linprop.DomainState. Only Zero and One are valid
// restrictions.
func (s *State) SetDomain(v int, d linear.Domain) bool {
	n := s.inst.n
	switch {
	case d != linear.Zero && d != linear.One:
		panic(fmt.Sprintf("cliquetable: cannot restrict x%d to domain %v", v, d))
	case s.inst.nonnegatedOnly && d == linear.One:
		return s.set.Contains(v)
	case s.inst.nonnegatedOnly:
		s.set.Remove(v)
		return true
	case d == linear.One:
		s.set.Remove(v + n)
		return s.set.Contains(v)
	}
	s.set.Remove(v)
	return s.set.Contains(v + n)
}
