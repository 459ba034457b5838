package bp

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/gitrdm/ddbound/pkg/dd"
	"github.com/gitrdm/ddbound/pkg/intset"
	"github.com/gitrdm/ddbound/pkg/linear"
	"github.com/gitrdm/ddbound/pkg/linprop"
)

// rhsScale is the grid on which residual right-hand sides are compared and
// hashed.
const rhsScale = 1e6

func rhsKey(r float64) int64 { return int64(math.Round(r * rhsScale)) }

// State holds the open literals (i for x_i = 1, i+n for x_i = 0) and the
// residual right-hand side of every row.
type State struct {
	p   *Problem
	dom *intset.IntSet
	rhs []float64
}

// Rhs returns the residual right-hand sides.
func (s *State) Rhs() []float64 { return s.rhs }

// Transition implements dd.State.
func (s *State) Transition(v, val int) (dd.State, bool) {
	n := s.p.inst.n
	lit := v + n
	if val == 1 {
		lit = v
	}
	if !s.dom.Contains(lit) {
		return nil, false
	}
	next := &State{
		p:   s.p,
		dom: s.dom.Clone().Remove(v).Remove(v + n),
		rhs: append([]float64(nil), s.rhs...),
	}

	prop := s.p.prop
	min, max := prop.Activities(next, v)
	if !prop.Assign(v, val, min, max, next.rhs) {
		return nil, false
	}
	if !prop.Propagate(next, v, min, max, next.rhs) {
		return nil, false
	}
	// a row whose last open variable is v is settled
	for _, r := range prop.Column(v).Rows {
		if prop.Remaining(r) == 1 {
			next.rhs[r] = 0
		}
	}
	return next, true
}

// Merge implements dd.State: domains are united and every right-hand side
// is relaxed to the looser value.
func (s *State) Merge(other dd.State) {
	o := other.(*State)
	s.dom.Union(o.dom)
	for i, r := range s.p.prop.Rows() {
		if (r.Sense == linear.LE && o.rhs[i] > s.rhs[i]) || (r.Sense == linear.GE && o.rhs[i] < s.rhs[i]) {
			s.rhs[i] = o.rhs[i]
		}
	}
}

// Equal implements dd.State. Right-hand sides are compared on the rhsKey
// grid so equal states always hash alike.
func (s *State) Equal(other dd.State) bool {
	o, ok := other.(*State)
	if !ok || !s.dom.Equal(o.dom) {
		return false
	}
	for i := range s.rhs {
		if rhsKey(s.rhs[i]) != rhsKey(o.rhs[i]) {
			return false
		}
	}
	return true
}

// Less implements dd.State.
func (s *State) Less(other dd.State) bool {
	o := other.(*State)
	if !s.dom.Equal(o.dom) {
		return s.dom.Less(o.dom)
	}
	for i := range s.rhs {
		if a, b := rhsKey(s.rhs[i]), rhsKey(o.rhs[i]); a != b {
			return a < b
		}
	}
	return false
}

// Hash implements dd.State.
func (s *State) Hash() uint64 {
	d := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], s.dom.Hash())
	d.Write(buf[:])
	for _, r := range s.rhs {
		binary.LittleEndian.PutUint64(buf[:], uint64(rhsKey(r)))
		d.Write(buf[:])
	}
	return d.Sum64()
}

// Size implements dd.State.
func (s *State) Size() int { return s.dom.Count() }

func (s *State) String() string {
	var b strings.Builder
	b.WriteString(s.dom.String())
	b.WriteString(" rhs=")
	for i, r := range s.rhs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(r, 'g', -1, 64))
	}
	return b.String()
}

// Domain implements linprop.DomainState.
func (s *State) Domain(v int) linear.Domain {
	one, zero := s.dom.Contains(v), s.dom.Contains(v+s.p.inst.n)
	switch {
	case one && zero:
		return linear.ZeroOne
	case one:
		return linear.One
	case zero:
		return linear.Zero
	}
	return linear.Processed
}

// SetDomain implements linprop.DomainState.
func (s *State) SetDomain(v int, d linear.Domain) bool {
	if d != linear.Zero && d != linear.One {
		panic(fmt.Sprintf("bp: cannot restrict x%d to domain %v", v, d))
	}
	n := s.p.inst.n
	if d == linear.One {
		s.dom.Remove(v + n)
		return s.dom.Contains(v)
	}
	s.dom.Remove(v)
	return s.dom.Contains(v + n)
}

var _ linprop.DomainState = (*State)(nil)
