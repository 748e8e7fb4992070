// Package partition tracks an online histogram of priority values
// and splits the priority domain into a fixed number of ordered buckets.
//
// Bucket indices are stable identifiers; only the cutoff values
// they map to change when the histogram is reconfigured.
// The last bucket is the terminal bucket and holds everything
// at or above the largest value partitioned so far.
package partition

import (
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	googlebtree "github.com/google/btree"
)

type constError string

// ErrInvalidHistogram may be returned from [New].
const ErrInvalidHistogram = constError("invalid histogram")

func (errStr constError) Error() string { return string(errStr) }

// RankMode selects how reconfiguration derives a bucket's cutoff
// from the buffered samples.
type RankMode int

const (
	// RankByCutoff computes the rank as floor(cutoff*samples)
	// and only takes the order statistic when that rank is below 1;
	// every other bucket snaps to the largest value seen.
	RankByCutoff RankMode = iota
	// RankByIndex computes the rank as index*samples
	// under the same below-1 rule, which leaves bucket 0
	// at the sample minimum.
	RankByIndex
	// RankByQuantile places bucket idx at the (idx+1)/buckets quantile
	// of the samples.
	RankByQuantile
)

func (m RankMode) String() string {
	switch m {
	case RankByCutoff:
		return "cutoff"
	case RankByIndex:
		return "index"
	case RankByQuantile:
		return "quantile"
	default:
		return "unknown"
	}
}

const (
	// Sentinel is the initial cutoff of the terminal bucket.
	// It is strictly greater than any normalized priority.
	Sentinel = 1.01
	// initialFloor is the bottom percentile before any reconfiguration.
	initialFloor = 0.01
	// floorQuantile is where the bottom percentile is resampled.
	floorQuantile = 0.1
)

type (
	// Histogram is not safe for concurrent use.
	// Constructed by [New].
	Histogram struct {
		cutoffs []float64                  // Index -> cutoff.
		sorted  *googlebtree.BTreeG[entry] // Cutoff -> index, distinct cutoffs.
		samples []float64
		maxSeen,
		maxPartitioned,
		floor float64
		interval,
		countdown int
		mode RankMode
	}
	entry struct {
		cutoff float64
		index  int
	}
)

func entryLessFn(a, b entry) bool { return a.cutoff < b.cutoff }

// New creates a [Histogram] with evenly spaced cutoffs in (0,1]
// and a terminal bucket above 1.
// Reconfiguration is attempted with the first observed sample
// and then every interval samples.
func New(buckets, interval int, mode RankMode) (*Histogram, error) {
	if buckets < 1 {
		return nil, errors.Wrapf(ErrInvalidHistogram,
			"bucket count must be >=1 but %d was requested", buckets)
	}
	if interval < 1 {
		return nil, errors.Wrapf(ErrInvalidHistogram,
			"reconfiguration interval must be >=1 but %d was requested", interval)
	}
	h := &Histogram{
		cutoffs:        make([]float64, buckets),
		sorted:         googlebtree.NewG[entry](8, entryLessFn),
		maxSeen:        Sentinel,
		maxPartitioned: Sentinel,
		floor:          initialFloor,
		interval:       interval,
		countdown:      1,
		mode:           mode,
	}
	terminal := buckets - 1
	for idx := range terminal {
		h.cutoffs[idx] = float64(idx+1) / float64(buckets)
	}
	h.cutoffs[terminal] = Sentinel
	h.rebuild()
	return h, nil
}

func (h *Histogram) pending() {
	if h.countdown < 1 {
		h.Reconfigure()
	}
}

// Classify returns the bucket index for value: the bucket with the smallest
// cutoff strictly greater than value, or the terminal bucket when value is at
// or beyond the largest partitioned value.
func (h *Histogram) Classify(value float64) int {
	h.pending()
	terminal := len(h.cutoffs) - 1
	if value >= h.maxPartitioned {
		h.maxSeen = max(h.maxSeen, value)
		return terminal
	}
	idx := terminal
	h.sorted.AscendGreaterOrEqual(entry{cutoff: value}, func(e entry) bool {
		if e.cutoff == value {
			return true
		}
		idx = e.index
		return false
	})
	return idx
}

// IsBelowFloor reports whether value falls under the bottom percentile.
func (h *Histogram) IsBelowFloor(value float64) bool {
	h.pending()
	return value < h.floor
}

// Cutoff returns the current upper bound of bucket idx.
func (h *Histogram) Cutoff(idx int) float64 {
	h.pending()
	return h.cutoffs[idx]
}

// Observe buffers a sample.
// Reconfiguration runs before Observe returns once the countdown elapses.
func (h *Histogram) Observe(value float64) {
	h.samples = append(h.samples, value)
	if value > h.maxSeen {
		h.maxSeen = value
	}
	h.countdown--
	if h.countdown < 1 {
		h.Reconfigure()
	}
}

// Reconfigure re-estimates every cutoff and the bottom percentile from the
// buffered samples. It returns false, leaving the previous state in effect,
// while fewer samples than buckets are buffered.
func (h *Histogram) Reconfigure() bool {
	var (
		count    = len(h.samples)
		buckets  = len(h.cutoffs)
		terminal = buckets - 1
	)
	if count < buckets {
		return false
	}
	for idx := range terminal {
		if rank, ok := h.rank(idx, count); ok {
			h.cutoffs[idx] = selectNth(h.samples, rank)
			continue
		}
		h.cutoffs[idx] = h.maxSeen
		h.maxPartitioned = h.maxSeen
	}
	h.cutoffs[terminal] = h.maxSeen
	h.maxPartitioned = h.maxSeen
	h.floor = selectNth(h.samples, int(floorQuantile*float64(count)))
	h.rebuild()
	h.samples = h.samples[:0]
	h.countdown = h.interval
	return true
}

// rank returns the order statistic rank for bucket idx
// and whether the mode takes a sample for it at all.
func (h *Histogram) rank(idx, count int) (int, bool) {
	switch h.mode {
	case RankByIndex:
		rank := idx * count
		return rank, rank < 1
	case RankByQuantile:
		quantile := float64(idx+1) / float64(len(h.cutoffs))
		return min(int(quantile*float64(count)), count-1), true
	default:
		rank := int(h.cutoffs[idx] * float64(count))
		return rank, rank < 1
	}
}

// rebuild refreshes the cutoff -> index mirror.
// Indices are written in order, so the highest index wins a tie.
func (h *Histogram) rebuild() {
	h.sorted.Clear(false)
	for idx, cutoff := range h.cutoffs {
		h.sorted.ReplaceOrInsert(entry{cutoff: cutoff, index: idx})
	}
}

// Buckets returns the number of buckets.
func (h *Histogram) Buckets() int { return len(h.cutoffs) }

// Cutoffs returns a copy of the current cutoffs in index order.
func (h *Histogram) Cutoffs() []float64 {
	h.pending()
	return slices.Clone(h.cutoffs)
}

// Floor returns the current bottom percentile.
func (h *Histogram) Floor() float64 { return h.floor }

// MaxSeen returns the largest value observed or classified so far.
func (h *Histogram) MaxSeen() float64 { return h.maxSeen }

// Samples returns the number of buffered samples.
func (h *Histogram) Samples() int { return len(h.samples) }

// Countdown returns the number of samples left until the next
// reconfiguration attempt. Values below 1 mean one is pending.
func (h *Histogram) Countdown() int { return h.countdown }

// Mode returns the rank mode the histogram was built with.
func (h *Histogram) Mode() RankMode { return h.mode }

func (h *Histogram) String() string {
	return redact.StringWithoutMarkers(h)
}

// SafeFormat implements redact.SafeFormatter.
func (h *Histogram) SafeFormat(w redact.SafePrinter, _ rune) {
	for idx, cutoff := range h.cutoffs {
		w.Printf("%d: %s\n", redact.Safe(idx), redact.Safe(formatFloat(cutoff)))
	}
	w.Printf("floor: %s", redact.Safe(formatFloat(h.floor)))
}
