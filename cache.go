package flashcache

import (
	"iter"

	"github.com/cockroachdb/errors"

	"github.com/djdv/go-flashcache/internal/partition"
)

type (
	// object is the index record of a resident key.
	object[Key comparable] struct {
		tier        int
		size        int64
		lastAccess  uint64
		accessCount uint64
		// relocated is the overflow resolution
		// that last moved this object.
		relocated uint64
	}
	// Cache simulates a segmented flash cache.
	// Concurrent access must be guarded by the caller.
	// Constructed by [New].
	Cache[Key comparable] struct {
		index      map[Key]*object[Key]
		segments   []segment[Key]
		partitions *partition.Histogram
		logger     Logger
		blockSize  int64
		budget     int // Blocks per segment.
		// now advances once per lookup;
		// evicted is the eviction boundary.
		now, evicted,
		resolution uint64
		counters counters
	}
	counters struct {
		requests, hits,
		written, amplified,
		relocations, evictions,
		forced, refused uint64
	}
)

// New creates a [Cache] from opts.
func New[Key comparable](opts Options) (*Cache[Key], error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	partitions, err := partition.New(
		opts.Segments,
		opts.ReconfigurationInterval,
		opts.CutoffMode.rankMode(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "creating partitions")
	}
	return &Cache[Key]{
		index:      make(map[Key]*object[Key]),
		segments:   make([]segment[Key], opts.Segments),
		partitions: partitions,
		logger:     opts.Logger,
		blockSize:  opts.BlockSize,
		budget:     opts.Blocks / opts.Segments,
	}, nil
}

// Lookup advances the clock and reports whether key is resident.
// A hit refreshes the object's access time and feeds
// its priority to the partitions.
func (c *Cache[Key]) Lookup(key Key) bool {
	c.now++
	c.counters.requests++
	obj, ok := c.index[key]
	if !ok {
		return false
	}
	c.counters.hits++
	obj.accessCount++
	obj.lastAccess = c.now
	c.partitions.Observe(c.priority(obj, c.evicted))
	return true
}

// Admit writes key into the top segment.
// Objects that do not fit into a single block are refused
// and leave the cache unchanged.
// Admitting a resident key replaces its record;
// the previous copy becomes stale.
func (c *Cache[Key]) Admit(key Key, size int64) error {
	if size < 1 {
		return errors.Wrapf(ErrInvalidSize, "%d bytes", size)
	}
	if size > c.blockSize {
		c.counters.refused++
		err := objectTooLargeError(size, c.blockSize)
		c.logger.Infof("flashcache: refusing %v: %v", key, err)
		return err
	}
	obj := &object[Key]{
		size:        size,
		lastAccess:  c.now,
		accessCount: 1,
	}
	c.appendToBlock(len(c.segments)-1, key, obj)
	c.counters.written += uint64(size)
	c.index[key] = obj
	c.resolveOverflow()
	c.partitions.Observe(c.priority(obj, c.evicted))
	return nil
}

// Request performs a lookup and admits key on a miss.
// It returns whether the lookup hit.
func (c *Cache[Key]) Request(key Key, size int64) (bool, error) {
	if c.Lookup(key) {
		return true, nil
	}
	return false, c.Admit(key, size)
}

// priority normalizes the recency of obj into [0,1] relative to
// the eviction boundary. Admissions before the first lookup
// happen at the boundary itself and are treated as newest.
func (c *Cache[Key]) priority(obj *object[Key], evicted uint64) float64 {
	if c.now <= evicted {
		return 1
	}
	var (
		age    = float64(obj.lastAccess) - float64(evicted)
		window = float64(c.now - evicted)
	)
	return age / window
}

func (c *Cache[Key]) appendToBlock(tier int, key Key, obj *object[Key]) {
	obj.tier = tier
	c.segments[tier].append(entry[Key]{key: key, obj: obj}, c.blockSize)
}

// resolveOverflow evicts head blocks, highest tier first,
// until every segment is within its budget.
func (c *Cache[Key]) resolveOverflow() {
	c.resolution++
	for overflowing := true; overflowing; {
		overflowing = false
		for tier := len(c.segments) - 1; tier >= 0; tier-- {
			if c.segments[tier].blocks > c.budget {
				c.evictBlock(tier)
				overflowing = true
			}
		}
	}
	if invariants {
		for tier := range c.segments {
			assert(c.segments[tier].blocks <= c.budget,
				"segment exceeds its budget after overflow resolution")
		}
	}
}

// evictBlock removes the oldest block of tier.
// Objects below the partition floor are dropped and advance the
// eviction boundary; the rest are rewritten into the tier their
// priority classifies to. An object already relocated during the
// current resolution is dropped instead, without moving the boundary.
func (c *Cache[Key]) evictBlock(tier int) {
	seg := &c.segments[tier]
	if seg.blocks <= c.budget || seg.head == nil {
		panic(errors.AssertionFailedf(
			"evicting tier %d with %d blocks within budget %d",
			tier, seg.blocks, c.budget))
	}
	var (
		victim   = seg.pop()
		evicted  = c.evicted // Held for the whole block.
		boundary = evicted
	)
	for _, e := range victim.entries {
		key, obj := e.key, e.obj
		if c.index[key] != obj {
			continue // Stale copy.
		}
		if obj.relocated == c.resolution {
			delete(c.index, key)
			c.counters.forced++
			continue
		}
		priority := c.priority(obj, evicted)
		if c.partitions.IsBelowFloor(priority) {
			delete(c.index, key)
			c.counters.evictions++
			boundary = max(boundary, obj.lastAccess)
			continue
		}
		destination := c.partitions.Classify(priority)
		c.appendToBlock(destination, key, obj)
		obj.relocated = c.resolution
		c.counters.amplified += uint64(obj.size)
		c.counters.relocations++
	}
	if invariants {
		assert(boundary >= c.evicted, "eviction boundary moved backwards")
	}
	c.evicted = boundary
}

// WrittenBytes returns the bytes admitted from outside the cache.
func (c *Cache[_]) WrittenBytes() uint64 { return c.counters.written }

// AmplifiedBytes returns the bytes rewritten by relocations.
func (c *Cache[_]) AmplifiedBytes() uint64 { return c.counters.amplified }

// WriteAmplification returns the ratio of physically written bytes
// (admissions plus relocations) to admitted bytes.
func (c *Cache[_]) WriteAmplification() float64 {
	return writeAmplification(c.counters.written, c.counters.amplified)
}

func writeAmplification(written, amplified uint64) float64 {
	if written == 0 {
		return 0
	}
	return float64(written+amplified) / float64(written)
}

// Len returns the number of resident objects.
func (c *Cache[_]) Len() int { return len(c.index) }

// Keys returns an iterator over the (unordered) keys of resident objects.
func (c *Cache[Key]) Keys() iter.Seq[Key] {
	return func(yield func(Key) bool) {
		for key := range c.index {
			if !yield(key) {
				return
			}
		}
	}
}

// ObjectInfo describes a resident object.
type ObjectInfo struct {
	Size        int64
	LastAccess  uint64
	AccessCount uint64
	// Segment is the tier holding the object.
	Segment int
}

// Object returns the record of key if it is resident.
// It does not count as an access.
func (c *Cache[Key]) Object(key Key) (ObjectInfo, bool) {
	obj, ok := c.index[key]
	if !ok {
		return ObjectInfo{}, false
	}
	return ObjectInfo{
		Size:        obj.size,
		LastAccess:  obj.lastAccess,
		AccessCount: obj.accessCount,
		Segment:     obj.tier,
	}, true
}
