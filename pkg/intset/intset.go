// Package intset provides a fixed-universe bitset over the integers [0, n).
// IntSet is the state representation used by the clique-table and row
// diagrams, so the word-level operations (shifts, masked intersections,
// hashing) are written to avoid allocation where possible.
package intset

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

const wordBits = 64

// Word buffers for hashing. Layers hash every state once per insertion.
var hashBufPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, 0, 8*8)
		return &b
	},
}

// IntSet is a set of integers drawn from a fixed universe [0, n).
// Bits above n in the last word are always zero.
//
// Mutating methods operate in place and return the receiver so calls can be
// chained. Binary operations panic if the universes differ.
type IntSet struct {
	n     int
	words []uint64
}

// New returns an empty set over the universe [0, n).
func New(n int) *IntSet {
	if n < 0 {
		panic(fmt.Sprintf("intset: negative universe size %d", n))
	}
	return &IntSet{n: n, words: make([]uint64, numWords(n))}
}

// NewFull returns the set containing every integer in [0, n).
func NewFull(n int) *IntSet {
	s := New(n)
	return s.Fill()
}

// FromSlice returns a set over [0, n) containing the given values.
// Values outside the universe are ignored.
func FromSlice(n int, values []int) *IntSet {
	s := New(n)
	for _, v := range values {
		if v >= 0 && v < n {
			s.Add(v)
		}
	}
	return s
}

func numWords(n int) int {
	return (n + wordBits - 1) / wordBits
}

// Len returns the size of the universe.
func (s *IntSet) Len() int {
	return s.n
}

// Add inserts v. O(1).
func (s *IntSet) Add(v int) *IntSet {
	s.check(v)
	s.words[v/wordBits] |= 1 << uint(v%wordBits)
	return s
}

// Remove deletes v. O(1).
func (s *IntSet) Remove(v int) *IntSet {
	s.check(v)
	s.words[v/wordBits] &^= 1 << uint(v%wordBits)
	return s
}

// Contains reports whether v is in the set. Values outside the universe are
// never contained.
func (s *IntSet) Contains(v int) bool {
	if v < 0 || v >= s.n {
		return false
	}
	return (s.words[v/wordBits]>>uint(v%wordBits))&1 == 1
}

func (s *IntSet) check(v int) {
	if v < 0 || v >= s.n {
		panic(fmt.Sprintf("intset: value %d outside universe [0,%d)", v, s.n))
	}
}

// Count returns the number of elements using popcount.
func (s *IntSet) Count() int {
	c := 0
	for _, w := range s.words {
		c += bits.OnesCount64(w)
	}
	return c
}

// Empty reports whether the set has no elements.
func (s *IntSet) Empty() bool {
	for _, w := range s.words {
		if w != 0 {
			return false
		}
	}
	return true
}

// First returns the smallest element or -1 if the set is empty.
func (s *IntSet) First() int {
	return s.Next(-1)
}

// Next returns the smallest element greater than v, or -1 if there is none.
func (s *IntSet) Next(v int) int {
	v++
	if v < 0 {
		v = 0
	}
	if v >= s.n {
		return -1
	}
	i := v / wordBits
	w := s.words[i] >> uint(v%wordBits)
	if w != 0 {
		return v + bits.TrailingZeros64(w)
	}
	for i++; i < len(s.words); i++ {
		if s.words[i] != 0 {
			return i*wordBits + bits.TrailingZeros64(s.words[i])
		}
	}
	return -1
}

// ForEach calls f for every element in ascending order.
// f must not modify the set.
func (s *IntSet) ForEach(f func(v int)) {
	for i, w := range s.words {
		for w != 0 {
			f(i*wordBits + bits.TrailingZeros64(w))
			w &= w - 1
		}
	}
}

// ToSlice returns the elements in ascending order.
func (s *IntSet) ToSlice() []int {
	out := make([]int, 0, s.Count())
	s.ForEach(func(v int) { out = append(out, v) })
	return out
}

func (s *IntSet) same(o *IntSet) {
	if s.n != o.n {
		panic(fmt.Sprintf("intset: universe mismatch %d != %d", s.n, o.n))
	}
}

// Union adds every element of o.
func (s *IntSet) Union(o *IntSet) *IntSet {
	s.same(o)
	for i := range s.words {
		s.words[i] |= o.words[i]
	}
	return s
}

// Intersect keeps only elements also in o.
func (s *IntSet) Intersect(o *IntSet) *IntSet {
	s.same(o)
	for i := range s.words {
		s.words[i] &= o.words[i]
	}
	return s
}

// Difference removes every element of o.
func (s *IntSet) Difference(o *IntSet) *IntSet {
	s.same(o)
	for i := range s.words {
		s.words[i] &^= o.words[i]
	}
	return s
}

// Complement replaces the set with its complement within the universe.
func (s *IntSet) Complement() *IntSet {
	for i := range s.words {
		s.words[i] = ^s.words[i]
	}
	s.trim()
	return s
}

// Fill adds every element of the universe.
func (s *IntSet) Fill() *IntSet {
	for i := range s.words {
		s.words[i] = ^uint64(0)
	}
	s.trim()
	return s
}

// Clear removes every element.
func (s *IntSet) Clear() *IntSet {
	for i := range s.words {
		s.words[i] = 0
	}
	return s
}

// trim zeroes the bits above the universe in the last word.
func (s *IntSet) trim() {
	if r := s.n % wordBits; r != 0 {
		s.words[len(s.words)-1] &= (uint64(1) << uint(r)) - 1
	}
}

// ShiftUp moves every element v to v+k. Elements pushed past the universe
// are dropped.
func (s *IntSet) ShiftUp(k int) *IntSet {
	if k <= 0 {
		return s
	}
	ws, bs := k/wordBits, uint(k%wordBits)
	for i := len(s.words) - 1; i >= 0; i-- {
		var w uint64
		if j := i - ws; j >= 0 {
			w = s.words[j] << bs
			if bs != 0 && j-1 >= 0 {
				w |= s.words[j-1] >> (wordBits - bs)
			}
		}
		s.words[i] = w
	}
	s.trim()
	return s
}

// ShiftDown moves every element v to v-k. Elements below zero are dropped.
func (s *IntSet) ShiftDown(k int) *IntSet {
	if k <= 0 {
		return s
	}
	ws, bs := k/wordBits, uint(k%wordBits)
	for i := 0; i < len(s.words); i++ {
		var w uint64
		if j := i + ws; j < len(s.words) {
			w = s.words[j] >> bs
			if bs != 0 && j+1 < len(s.words) {
				w |= s.words[j+1] << (wordBits - bs)
			}
		}
		s.words[i] = w
	}
	return s
}

// Intersects reports whether s and o share an element.
func (s *IntSet) Intersects(o *IntSet) bool {
	s.same(o)
	for i := range s.words {
		if s.words[i]&o.words[i] != 0 {
			return true
		}
	}
	return false
}

// SubsetOf reports whether every element of s is in o.
func (s *IntSet) SubsetOf(o *IntSet) bool {
	s.same(o)
	for i := range s.words {
		if s.words[i]&^o.words[i] != 0 {
			return false
		}
	}
	return true
}

// Equal reports whether s and o have the same universe and elements.
func (s *IntSet) Equal(o *IntSet) bool {
	if s.n != o.n {
		return false
	}
	for i := range s.words {
		if s.words[i] != o.words[i] {
			return false
		}
	}
	return true
}

// Less is a strict total order on sets of the same universe. A set is less
// than another when the smallest element on which they differ belongs to it.
func (s *IntSet) Less(o *IntSet) bool {
	if s.n != o.n {
		return s.n < o.n
	}
	for i := range s.words {
		if x := s.words[i] ^ o.words[i]; x != 0 {
			return s.words[i]&(x&-x) != 0
		}
	}
	return false
}

// Clone returns an independent copy.
func (s *IntSet) Clone() *IntSet {
	c := &IntSet{n: s.n, words: make([]uint64, len(s.words))}
	copy(c.words, s.words)
	return c
}

// CopyFrom overwrites s with the contents of o.
func (s *IntSet) CopyFrom(o *IntSet) *IntSet {
	s.same(o)
	copy(s.words, o.words)
	return s
}

// Resize changes the universe to [0, n). Elements at or above n are dropped.
func (s *IntSet) Resize(n int) *IntSet {
	nw := numWords(n)
	if nw > len(s.words) {
		s.words = append(s.words, make([]uint64, nw-len(s.words))...)
	} else {
		s.words = s.words[:nw]
	}
	s.n = n
	s.trim()
	return s
}

// Hash returns a 64-bit xxhash of the elements. Equal sets hash equally.
func (s *IntSet) Hash() uint64 {
	bp := hashBufPool.Get().(*[]byte)
	buf := (*bp)[:0]
	for _, w := range s.words {
		buf = binary.LittleEndian.AppendUint64(buf, w)
	}
	h := xxhash.Sum64(buf)
	*bp = buf
	hashBufPool.Put(bp)
	return h
}

// String renders the set as "{1,4,7}".
func (s *IntSet) String() string {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	s.ForEach(func(v int) {
		if !first {
			b.WriteByte(',')
		}
		first = false
		fmt.Fprintf(&b, "%d", v)
	})
	b.WriteByte('}')
	return b.String()
}
