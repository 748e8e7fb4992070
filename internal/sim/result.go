package sim

import (
	"github.com/cockroachdb/redact"

	flashcache "github.com/djdv/go-flashcache"
	"github.com/djdv/go-flashcache/policy"
)

type (
	// Result summarizes a simulation.
	Result struct {
		Policy         string
		Shards         int
		ShardSize      int64
		Requests, Hits uint64
		// Skipped counts malformed records.
		Skipped  uint64
		HitRatio float64
		// Balls is the distribution of requested bytes across shards,
		// MissBalls that of missed bytes.
		Balls, MissBalls Distribution
		Sizes            Sizes
		// Series holds the cumulative hit ratio sampled
		// every Config.SampleEvery requests.
		Series []float64
		// Flash holds the engine counters summed over all shards
		// and FirstShard those of shard 0.
		// Both are nil unless the policy is Flash.
		Flash, FirstShard *flashcache.Metrics
	}
	// Distribution describes per shard byte counts.
	Distribution struct {
		Max, Min int64
		Mean     float64
		PerShard []int64
	}
	// Sizes summarizes requested object sizes.
	Sizes struct {
		Mean          float64
		Min, Max      int64
		P50, P90, P99 int64
	}
)

// Result returns the statistics gathered so far.
func (s *Simulator) Result() Result {
	r := Result{
		Policy:    s.cfg.Policy,
		Shards:    len(s.shards),
		ShardSize: s.cfg.ShardSize,
		Requests:  s.requests,
		Hits:      s.hits,
		Skipped:   s.skipped,
		HitRatio:  s.hitRatio(),
		Series:    append([]float64(nil), s.series...),
	}
	var (
		balls  = make([]int64, len(s.shards))
		misses = make([]int64, len(s.shards))
	)
	for i := range s.shards {
		balls[i] = s.shards[i].balls
		misses[i] = s.shards[i].missBalls
	}
	r.Balls = distribution(balls)
	r.MissBalls = distribution(misses)
	if s.sizes.TotalCount() > 0 {
		r.Sizes = Sizes{
			Mean: s.sizes.Mean(),
			Min:  s.sizes.Min(),
			Max:  s.sizes.Max(),
			P50:  s.sizes.ValueAtQuantile(50),
			P90:  s.sizes.ValueAtQuantile(90),
			P99:  s.sizes.ValueAtQuantile(99),
		}
	}
	for i := range s.shards {
		flash, ok := s.shards[i].policy.(*policy.Flash)
		if !ok {
			break
		}
		metrics := flash.Metrics()
		if i == 0 {
			first := metrics
			r.FirstShard = &first
			r.Flash = new(flashcache.Metrics)
		}
		r.Flash.Accumulate(metrics)
	}
	return r
}

func distribution(perShard []int64) Distribution {
	d := Distribution{PerShard: perShard}
	if len(perShard) == 0 {
		return d
	}
	var sum int64
	d.Min = perShard[0]
	for _, n := range perShard {
		d.Max = max(d.Max, n)
		d.Min = min(d.Min, n)
		sum += n
	}
	d.Mean = float64(sum) / float64(len(perShard))
	return d
}

func (r Result) String() string {
	return redact.StringWithoutMarkers(r)
}

// SafeFormat implements redact.SafeFormatter.
// The fields follow the order of the classic single line summary.
func (r Result) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%s %d %d %.6f %d %d %.1f %d %d %.1f",
		redact.Safe(r.Policy), redact.Safe(r.Shards), redact.Safe(r.ShardSize),
		redact.Safe(r.HitRatio),
		redact.Safe(r.Balls.Max), redact.Safe(r.Balls.Min), redact.Safe(r.Balls.Mean),
		redact.Safe(r.MissBalls.Max), redact.Safe(r.MissBalls.Min), redact.Safe(r.MissBalls.Mean))
}
