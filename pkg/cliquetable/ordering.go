package cliquetable

import (
	"math/rand"

	"github.com/gitrdm/ddbound/pkg/dd"
)

// MinInState picks the unprocessed variable that is free (both literals
// present) in the fewest live states. It observes state creation and
// removal through dd.StateObserver.
type MinInState struct {
	inst      *Instance
	counter   []int
	processed []bool
	rng       *rand.Rand
	prob      float64
}

var (
	_ dd.Ordering      = (*MinInState)(nil)
	_ dd.StateObserver = (*MinInState)(nil)
)

// NewMinInState returns the deterministic ordering.
func NewMinInState(inst *Instance) *MinInState {
	return &MinInState{
		inst:      inst,
		counter:   make([]int, inst.n),
		processed: make([]bool, inst.n),
	}
}

// NewRandomMinInState returns an ordering that takes the minimum with
// probability prob and a uniformly random unprocessed variable otherwise.
func NewRandomMinInState(inst *Instance, prob float64, seed int64) *MinInState {
	o := NewMinInState(inst)
	o.rng = rand.New(rand.NewSource(seed))
	o.prob = prob
	return o
}

// Name implements dd.Ordering.
func (o *MinInState) Name() string {
	if o.rng != nil {
		return "rand_min_in_state"
	}
	return "min_in_state"
}

// Next implements dd.Ordering.
func (o *MinInState) Next(layer int) int {
	v := -1
	if o.rng != nil && o.rng.Float64() >= o.prob {
		v = o.random()
	}
	if v < 0 {
		for i, c := range o.counter {
			if !o.processed[i] && (v < 0 || c < o.counter[v]) {
				v = i
			}
		}
	}
	if v < 0 {
		panic("cliquetable: no variable left to order")
	}
	o.processed[v] = true
	return v
}

func (o *MinInState) random() int {
	var open []int
	for i, done := range o.processed {
		if !done {
			open = append(open, i)
		}
	}
	if len(open) == 0 {
		return -1
	}
	return open[o.rng.Intn(len(open))]
}

// StateCreated implements dd.StateObserver.
func (o *MinInState) StateCreated(st dd.State) { o.count(st, 1) }

// StateRemoved implements dd.StateObserver.
func (o *MinInState) StateRemoved(st dd.State) { o.count(st, -1) }

func (o *MinInState) count(st dd.State, delta int) {
	s, ok := st.(*State)
	if !ok || s == nil {
		return
	}
	n := o.inst.n
	for v := s.set.First(); v >= 0 && v < n; v = s.set.Next(v) {
		if o.inst.nonnegatedOnly || s.set.Contains(v+n) {
			o.counter[v] += delta
		}
	}
}

// MinDegreeOrder returns the static order that repeatedly picks the
// variable of smallest positive conflict degree, counting both literals
// and discounting conflicts with variables already picked. Variables
// without conflicts left follow in index order.
func MinDegreeOrder(inst *Instance) []int {
	n := inst.n
	degree := make([]int, 2*n)
	for lit := range degree {
		degree[lit] = inst.adj[lit].Count()
	}

	order := make([]int, 0, n)
	selected := make([]bool, n)
	for len(order) < n {
		v := -1
		for i := 0; i < n; i++ {
			d := degree[i] + degree[i+n]
			if !selected[i] && d > 0 && (v < 0 || d < degree[v]+degree[v+n]) {
				v = i
			}
		}
		if v < 0 {
			for i := 0; i < n; i++ {
				if !selected[i] {
					selected[i] = true
					order = append(order, i)
				}
			}
			break
		}
		selected[v] = true
		order = append(order, v)
		for lit := 0; lit < 2*n; lit++ {
			if lit == v || lit == v+n {
				continue
			}
			if inst.adj[lit].Contains(v) {
				degree[lit]--
			}
			if inst.adj[lit].Contains(v + n) {
				degree[lit]--
			}
		}
	}
	return order
}

// NewMinDegree returns MinDegreeOrder as a dd.Ordering.
func NewMinDegree(inst *Instance) *dd.FixedOrdering {
	return dd.NewFixedOrdering("min_degree", MinDegreeOrder(inst))
}
