package flashcache

import "github.com/djdv/go-flashcache/internal/ring"

type (
	// block is the unit of eviction.
	// Only the tail block of a segment is appended to.
	block[Key comparable] struct {
		entries []entry[Key]
		bytes   int64
	}
	// entry pairs a key with the record it was written for.
	// Entries whose record is no longer indexed are stale.
	entry[Key comparable] struct {
		key Key
		obj *object[Key]
	}
	// segment is a FIFO of blocks for one priority tier.
	// head is the oldest block, head.Prev() the current tail.
	segment[Key comparable] struct {
		head   *ring.Ring[*block[Key]]
		blocks int
		bytes  int64
	}
)

// tail returns the block currently accepting appends, if any.
func (s *segment[Key]) tail() *block[Key] {
	if s.head == nil {
		return nil
	}
	return s.head.Prev().Value
}

// open pushes a new, empty tail block.
func (s *segment[Key]) open() *block[Key] {
	b := new(block[Key])
	if s.head == nil {
		s.head = ring.New(b)
	} else {
		s.head.Prev().Link(ring.New(b))
	}
	s.blocks++
	return b
}

// pop removes and returns the oldest block.
func (s *segment[Key]) pop() *block[Key] {
	if s.head == nil {
		return nil
	}
	oldest := s.head
	if s.blocks == 1 {
		s.head = nil
	} else {
		s.head = oldest.Next()
		oldest.Prev().Unlink(1)
	}
	s.blocks--
	s.bytes -= oldest.Value.bytes
	return oldest.Value
}

// append places the entry into the tail block, opening a new one first
// when the tail cannot hold the object.
func (s *segment[Key]) append(e entry[Key], blockSize int64) {
	size := e.obj.size
	b := s.tail()
	if b == nil || b.bytes+size > blockSize {
		b = s.open()
	}
	b.entries = append(b.entries, e)
	b.bytes += size
	s.bytes += size
	if invariants {
		assert(b.bytes <= blockSize, "block exceeds its capacity")
	}
}
