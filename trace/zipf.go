package trace

import (
	"math"
	"sort"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/rand"
)

// DefaultSizes is the object size table used when none is provided.
// Repeated entries weight the draw.
var DefaultSizes = []int64{
	16, 32, 64, 100, 128, 200, 256, 300,
	100, 128, 200, 256, 300,
	100, 128, 200, 256, 300,
	100, 128, 200, 256, 300,
	100, 128, 200, 256, 300,
	400, 700, 900, 512, 1024, 800, 1400, 1500, 2048, 4096,
}

const (
	initialRate = 1e10
	rateDecay   = 1.5
)

type (
	// Zipf samples requests from an independent reference model
	// with a Zipf-like popularity.
	// Objects are grouped by rate: the first group holds one object,
	// every following group holds twice as many objects
	// at 1/1.5 of the previous rate.
	// Sampling picks a group by popularity and
	// then an object uniformly within it.
	Zipf struct {
		rng    *rand.Rand
		groups []group
		cdf    []float64 // Cumulative popularity by group.
		sizes  []int64   // ID -> size.
	}
	group struct {
		first, count uint64
	}
)

// NewZipf creates a generator over objects ids starting at 0.
// Sizes are drawn uniformly from sizes, or [DefaultSizes] when empty.
// Generators with equal arguments yield equal sequences.
func NewZipf(objects int64, sizes []int64, seed uint64) (*Zipf, error) {
	if objects < 1 {
		return nil, errors.Wrapf(ErrInvalidGenerator,
			"object count must be >=1 but %d was requested", objects)
	}
	if len(sizes) == 0 {
		sizes = DefaultSizes
	}
	for _, size := range sizes {
		if size < 1 {
			return nil, errors.Wrapf(ErrInvalidGenerator, "object size %d", size)
		}
	}
	var (
		rng   = rand.New(rand.NewSource(seed))
		z     = &Zipf{rng: rng, sizes: make([]int64, objects)}
		rate  = float64(initialRate)
		count = uint64(1)
		total float64
	)
	for first := uint64(0); first < uint64(objects); {
		n := min(count, uint64(objects)-first)
		for id := first; id < first+n; id++ {
			z.sizes[id] = sizes[rng.Intn(len(sizes))]
		}
		total += (math.Round(rate) + 1) * float64(n)
		z.groups = append(z.groups, group{first: first, count: n})
		z.cdf = append(z.cdf, total)
		first += n
		rate /= rateDecay
		count *= 2
	}
	return z, nil
}

// Next never fails.
func (z *Zipf) Next() (Request, error) {
	var (
		total = z.cdf[len(z.cdf)-1]
		r     = z.rng.Float64() * (total - 1)
		i     = sort.Search(len(z.cdf), func(i int) bool { return z.cdf[i] > r })
	)
	if i == len(z.groups) {
		i--
	}
	var (
		g  = z.groups[i]
		id = g.first + z.rng.Uint64n(g.count)
	)
	return Request{ID: id, Size: z.sizes[id]}, nil
}

// Objects returns the number of distinct ids.
func (z *Zipf) Objects() int { return len(z.sizes) }

// Size returns the size assigned to id.
func (z *Zipf) Size(id uint64) int64 { return z.sizes[id] }

// Groups returns the number of rate groups.
func (z *Zipf) Groups() int { return len(z.groups) }
