package policy

import (
	"container/heap"

	"github.com/djdv/go-flashcache/trace"
)

type (
	// GreedyDual evicts the object with the lowest credit
	// H = L + cost, where L is inflated to the credit of
	// every evicted object.
	// The cost function distinguishes GDS (1/size),
	// GDSF (frequency/size) and LFUDA (frequency).
	GreedyDual struct {
		index     map[uint64]*credit
		queue     creditQueue
		cost      costFunc
		capacity  int64
		used      int64
		inflation float64
	}
	costFunc = func(frequency uint64, size int64) float64
	credit   struct {
		id        uint64
		size      int64
		frequency uint64
		value     float64
		position  int
		// sequence breaks ties in admission order.
		sequence uint64
	}
	creditQueue struct {
		items    []*credit
		sequence uint64
	}
)

func gdsCost(_ uint64, size int64) float64 { return 1 / float64(size) }

func gdsfCost(frequency uint64, size int64) float64 {
	return float64(frequency) / float64(size)
}

func lfudaCost(frequency uint64, _ int64) float64 { return float64(frequency) }

func newGreedyDual(cost costFunc) *GreedyDual {
	return &GreedyDual{
		index: make(map[uint64]*credit),
		cost:  cost,
	}
}

func (g *GreedyDual) SetSize(bytes int64) { g.capacity = bytes }

func (g *GreedyDual) SetParameter(name, _ string) error {
	return unknownParameter("greedy dual", name)
}

func (g *GreedyDual) Lookup(req trace.Request) bool {
	c, ok := g.index[req.ID]
	if !ok {
		return false
	}
	c.frequency++
	c.value = g.inflation + g.cost(c.frequency, c.size)
	heap.Fix(&g.queue, c.position)
	return true
}

func (g *GreedyDual) Admit(req trace.Request) {
	if req.Size > g.capacity {
		return
	}
	if old, ok := g.index[req.ID]; ok {
		g.remove(old)
	}
	for g.used+req.Size > g.capacity && g.queue.Len() > 0 {
		victim := heap.Pop(&g.queue).(*credit)
		g.inflation = victim.value
		delete(g.index, victim.id)
		g.used -= victim.size
	}
	c := &credit{
		id:        req.ID,
		size:      req.Size,
		frequency: 1,
		value:     g.inflation + g.cost(1, req.Size),
	}
	heap.Push(&g.queue, c)
	g.index[req.ID] = c
	g.used += req.Size
}

func (g *GreedyDual) remove(c *credit) {
	heap.Remove(&g.queue, c.position)
	delete(g.index, c.id)
	g.used -= c.size
}

// Len returns the number of cached objects.
func (g *GreedyDual) Len() int { return len(g.index) }

// Used returns the cached bytes.
func (g *GreedyDual) Used() int64 { return g.used }

// Inflation returns the current value of L.
func (g *GreedyDual) Inflation() float64 { return g.inflation }

func (q *creditQueue) Len() int { return len(q.items) }

func (q *creditQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.value != b.value {
		return a.value < b.value
	}
	return a.sequence < b.sequence
}

func (q *creditQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].position = i
	q.items[j].position = j
}

func (q *creditQueue) Push(x any) {
	c := x.(*credit)
	c.position = len(q.items)
	c.sequence = q.sequence
	q.sequence++
	q.items = append(q.items, c)
}

func (q *creditQueue) Pop() any {
	var (
		last = len(q.items) - 1
		c    = q.items[last]
	)
	q.items[last] = nil
	q.items = q.items[:last]
	c.position = -1
	return c
}
