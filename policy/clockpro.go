package policy

import (
	"iter"

	"github.com/cockroachdb/errors"

	"github.com/djdv/go-flashcache/internal/ring"
	"github.com/djdv/go-flashcache/trace"
)

// ClockProMinimumEntries is the smallest entry count [ClockPro]
// prepares with; it leaves room for one hot and one cold object.
const ClockProMinimumEntries = 2

type (
	// ClockPro is a CLOCK-Pro+ cache bounded by entry count.
	// The count is the byte capacity divided by the
	// "objsize" parameter.
	ClockPro struct {
		clock      *clock
		capacity   int64
		objectSize int64
	}
	// clock holds resident hot and cold pages and
	// nonresident test pages on one ring, swept by three hands.
	// lru is the most recently moved page; lru.Next() is the oldest.
	clock struct {
		index map[uint64]*page
		hot, cold,
		test, lru *page
		capacity, coldTarget, hotTarget,
		coldCount, hotCount, testCount,
		demotions int
	}
	page      = ring.Ring[pageState]
	pageState struct {
		id uint64
		resident,
		lir,
		stacked,
		referenced,
		demoted bool
	}
)

func (c *ClockPro) SetSize(bytes int64) { c.capacity = bytes }

func (c *ClockPro) SetParameter(name, value string) error {
	if name != "objsize" {
		return unknownParameter("CLOCKPRO", name)
	}
	return setObjectSize(&c.objectSize, value)
}

// Entries returns the entry count derived from the parameters.
func (c *ClockPro) Entries() int { return entries(c.capacity, c.objectSize) }

func (c *ClockPro) Prepare() error {
	if c.clock != nil {
		return nil
	}
	capacity := c.Entries()
	if capacity < ClockProMinimumEntries {
		return errors.Wrapf(ErrInvalidParameter,
			"CLOCKPRO: capacity %d holds %d objects, need >=%d",
			c.capacity, capacity, ClockProMinimumEntries)
	}
	c.clock = newClock(capacity)
	return nil
}

// Lookup marks a resident object as referenced.
func (c *ClockPro) Lookup(req trace.Request) bool {
	mustPrepare(c)
	if p, ok := c.clock.index[req.ID]; ok &&
		p.Value.resident {
		p.Value.referenced = true
		return true
	}
	return false
}

func (c *ClockPro) Admit(req trace.Request) {
	mustPrepare(c)
	if req.Size > c.capacity {
		return
	}
	c.clock.set(req.ID)
}

// Len returns the number of resident objects.
func (c *ClockPro) Len() int {
	if c.clock == nil {
		return 0
	}
	return c.clock.hotCount + c.clock.coldCount
}

// Keys returns an iterator over the (unordered) resident object IDs.
func (c *ClockPro) Keys() iter.Seq[uint64] {
	return func(yield func(uint64) bool) {
		if c.clock == nil {
			return
		}
		for state := range c.clock.lru.Values() {
			if state.resident && !yield(state.id) {
				return
			}
		}
	}
}

// Tested returns the number of nonresident pages
// still guiding adaptation.
func (c *ClockPro) Tested() int {
	if c.clock == nil {
		return 0
	}
	return c.clock.testCount
}

func newClock(capacity int) *clock {
	const minimumColdRatio = 0.01
	var ( // Range: [1,half-capacity]
		coldInitial = max(float64(capacity)*minimumColdRatio, 1)
		coldTarget  = min(int(coldInitial), capacity/2)
		hotTarget   = capacity - coldTarget
	)
	return &clock{
		capacity:   capacity,
		index:      make(map[uint64]*page, hotTarget),
		coldTarget: coldTarget,
		hotTarget:  hotTarget,
	}
}

func (c *clock) set(id uint64) {
	p, found := c.index[id]
	if found && p.Value.resident {
		p.Value.referenced = true
		return
	}
	c.handleMiss(id, found)
}

// handleMiss admits id; tested reports whether a test page
// for id existed before the hands moved.
func (c *clock) handleMiss(id uint64, tested bool) {
	c.sweepHot()
	c.sweepCold()
	if tested {
		// The sweeps may have removed it.
		if p, hit := c.index[id]; hit {
			c.promoteTest(p)
			return
		}
	}
	if c.hotCount+c.coldCount == c.capacity {
		c.evictCold()
	}
	c.addNew(id)
}

func (c *clock) addNew(id uint64) {
	lowIRR := c.coldCount == 0 &&
		c.hotCount < c.hotTarget
	p := ring.New(pageState{
		id:       id,
		resident: true,
		lir:      lowIRR,
		stacked:  true,
	})
	c.link(p)
	if lowIRR {
		c.hotCount++
	} else {
		if c.cold == nil {
			c.cold = p
		}
		c.coldCount++
	}
	c.sweepCold()
	c.pruneTest()
}

// promoteTest readmits a test page straight into the hot set
// and widens the cold target.
func (c *clock) promoteTest(p *page) {
	if invariants {
		assert(p.Value.stacked, "test hit on a page out of the stack")
		assert(!p.Value.referenced, "test hit on a referenced page")
		assert(c.hotCount+c.coldCount == c.capacity, "test hit below capacity")
	}
	c.increaseColdTarget()
	c.evictCold()
	p.Value.resident = true
	c.testCount--
	c.coldCount++
	if p == c.test {
		c.sweepTest()
	}
	c.promoteCold(p)
	c.sweepCold()
}

func (c *clock) sweepHot() {
	if c.hotCount == 0 {
		return
	}
	p := c.hot
	for !p.Value.lir || p.Value.referenced {
		next := p.Next()
		if p.Value.lir {
			p.Value.referenced = false
			c.lru = p
		} else {
			c.sweepHotHIR(p, next)
		}
		p = next
	}
	c.hot = p
}

func (c *clock) sweepHotHIR(p, next *page) {
	if !p.Value.resident {
		c.removeTest(p)
		return
	}
	if !p.Value.referenced {
		p.Value.stacked = false
		return
	}
	p.Value.referenced = false
	c.undemote(p)
	c.lru = p
	if p == c.cold {
		c.cold = next
	}
}

// undemote clears the demotion of a page that proved hot again,
// which narrows the cold target.
func (c *clock) undemote(p *page) {
	if !p.Value.demoted {
		return
	}
	c.adjustColdTarget(-max(c.testCount/c.demotions, 1))
	p.Value.demoted = false
	c.demotions--
}

func (c *clock) increaseColdTarget() {
	c.adjustColdTarget(max(c.demotions/c.testCount, 1))
}

func (c *clock) adjustColdTarget(delta int) {
	coldTarget := min(max(c.coldTarget+delta, 1), c.capacity/2)
	c.coldTarget = coldTarget
	c.hotTarget = c.capacity - coldTarget
}

func (c *clock) removeTest(p *page) {
	if p == c.test {
		c.test = p.Next()
	}
	delete(c.index, p.Value.id)
	p.Prev().Unlink(1)
	c.testCount--
	c.sweepTest()
}

func (c *clock) sweepTest() {
	if c.testCount == 0 {
		c.test = nil
		return
	}
	hand := c.test
	for hand.Value.lir || hand.Value.resident {
		hand = hand.Next()
	}
	c.test = hand
}

func (c *clock) sweepCold() {
	if c.coldCount == 0 {
		return
	}
	hand := c.cold
	for hand.Value.lir ||
		!hand.Value.resident ||
		hand.Value.referenced {
		p := hand
		hand = hand.Next()
		if p.Value.lir || !p.Value.referenced {
			continue
		}
		p.Value.referenced = false
		c.undemote(p)
		if p.Value.stacked {
			c.promoteCold(p)
		} else {
			p.Value.stacked = true
			c.moveToLRU(p)
		}
	}
	c.cold = hand
}

func (c *clock) promoteCold(p *page) {
	p.Value.lir = true
	c.hotCount++
	c.coldCount--
	c.moveToLRU(p)
	for c.hotCount > c.hotTarget {
		c.demoteHot()
	}
}

func (c *clock) moveToLRU(p *page) {
	if p == c.lru {
		return
	}
	leaf := p.Prev().Unlink(1)
	c.lru.Link(leaf)
	c.lru = leaf
}

func (c *clock) demoteHot() {
	if invariants {
		assert(!c.hot.Value.referenced, "hot hand stopped on a referenced page")
	}
	p := c.hot
	c.hot = p.Next()
	p.Value.lir = false
	p.Value.stacked = false
	p.Value.demoted = true
	c.hotCount--
	c.coldCount++
	c.demotions++
	c.moveToLRU(p)
	c.sweepHot()
}

// evictCold turns the page under the cold hand into a test page.
// Pages out of the stack are dropped entirely.
func (c *clock) evictCold() {
	if invariants {
		assert(!c.cold.Value.lir && c.cold.Value.resident && !c.cold.Value.referenced,
			"cold hand stopped on a page it cannot evict")
	}
	p := c.cold
	c.cold = p.Next()
	p.Value.resident = false
	c.coldCount--
	c.testCount++
	if p.Value.demoted {
		p.Value.demoted = false
		c.demotions--
	}
	if c.test == nil {
		c.test = p
	}
	if !p.Value.stacked {
		if p == c.lru {
			c.lru = p.Prev()
		}
		c.removeTest(p)
	}
}

// link inserts p after lru and indexes it.
func (c *clock) link(p *page) {
	if c.lru == nil {
		c.hot = p
	} else {
		c.lru.Link(p)
	}
	c.lru = p
	c.index[p.Value.id] = p
}

// pruneTest bounds resident and test pages to twice the capacity.
func (c *clock) pruneTest() {
	limit := c.capacity * 2
	for c.coldCount+c.hotCount+c.testCount > limit {
		if invariants {
			assert(c.test.Value.stacked && !c.test.Value.lir && !c.test.Value.resident,
				"test hand stopped on a resident page")
		}
		c.removeTest(c.test)
	}
	if invariants {
		assert(c.lru.Len() == c.coldCount+c.hotCount+c.testCount,
			"ring length disagrees with the page counts")
	}
}
