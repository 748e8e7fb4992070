// Package ring is a specialized adaption of `container/ring`
// used as the block queue of a flash segment.
package ring

import "iter"

// A Ring is an element of a circular list, or ring.
// Rings do not have a beginning or end; a pointer to any ring element
// serves as reference to the entire ring. Empty rings are represented
// as nil Ring pointers. The zero value for a Ring is a one-element
// ring holding the zero Value.
//
// Segments treat one element as the head (oldest entry),
// which makes head.Prev() the tail (newest entry).
type Ring[Value any] struct {
	next, prev *Ring[Value]
	Value      Value
}

func (r *Ring[Value]) init() *Ring[Value] {
	r.next = r
	r.prev = r
	return r
}

// Next returns the next ring element. r must not be empty.
func (r *Ring[Value]) Next() *Ring[Value] {
	if r.next == nil {
		return r.init()
	}
	return r.next
}

// Prev returns the previous ring element. r must not be empty.
func (r *Ring[Value]) Prev() *Ring[Value] {
	if r.next == nil {
		return r.init()
	}
	return r.prev
}

// Move moves n % r.Len() elements backward (n < 0) or forward (n >= 0)
// in the ring and returns that ring element. r must not be empty.
func (r *Ring[Value]) Move(n int) *Ring[Value] {
	if r.next == nil {
		return r.init()
	}
	switch {
	case n < 0:
		for ; n < 0; n++ {
			r = r.prev
		}
	case n > 0:
		for ; n > 0; n-- {
			r = r.next
		}
	}
	return r
}

// New creates a single element ring holding value.
func New[Value any](value Value) *Ring[Value] {
	r := &Ring[Value]{Value: value}
	return r.init()
}

// Link connects ring r with ring s such that r.Next()
// becomes s and returns the original value for r.Next().
// r must not be empty.
//
// If r and s point to the same ring, linking
// them removes the elements between r and s from the ring.
// The removed elements form a subring and the result is a
// reference to that subring.
//
// If r and s point to different rings, linking
// them creates a single ring with the elements of s inserted
// after r. The result points to the element following the
// last element of s after insertion.
func (r *Ring[Value]) Link(s *Ring[Value]) *Ring[Value] {
	n := r.Next()
	if s != nil {
		p := s.Prev()
		// Note: Cannot use multiple assignment because
		// evaluation order of LHS is not specified.
		r.next = s
		s.prev = r
		n.prev = p
		p.next = n
	}
	return n
}

// Unlink removes n % r.Len() elements from the ring r, starting
// at r.Next(). If n % r.Len() == 0, r remains unchanged.
// The result is the removed subring. r must not be empty.
func (r *Ring[Value]) Unlink(n int) *Ring[Value] {
	if n <= 0 {
		return nil
	}
	return r.Link(r.Move(n + 1))
}

// Len computes the number of elements in ring r.
// It executes in time proportional to the number of elements.
func (r *Ring[Value]) Len() int {
	n := 0
	if r != nil {
		n = 1
		for p := r.Next(); p != r; p = p.next {
			n++
		}
	}
	return n
}

// Values returns an iterator over the values of the ring,
// in forward order starting at r.
// The behavior is undefined if the ring is modified during iteration.
func (r *Ring[Value]) Values() iter.Seq[Value] {
	return func(yield func(Value) bool) {
		if r == nil ||
			!yield(r.Value) {
			return
		}
		for p := r.Next(); p != r; p = p.next {
			if !yield(p.Value) {
				return
			}
		}
	}
}
