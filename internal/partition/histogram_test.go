package partition

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestHistogramDataDriven(t *testing.T) {
	var h *Histogram
	datadriven.RunTest(t, "testdata/histogram", func(t *testing.T, d *datadriven.TestData) string {
		switch d.Cmd {
		case "new":
			var buckets, interval int
			d.ScanArgs(t, "buckets", &buckets)
			d.ScanArgs(t, "interval", &interval)
			mode := RankByCutoff
			if d.HasArg("mode") {
				var name string
				d.ScanArgs(t, "mode", &name)
				mode = parseMode(t, name)
			}
			var err error
			h, err = New(buckets, interval, mode)
			require.NoError(t, err)
			return h.String()
		case "cutoffs":
			h.pending()
			return h.String()
		case "classify":
			var buf strings.Builder
			for _, v := range parseValues(t, d.Input) {
				fmt.Fprintf(&buf, "%s -> %d\n", formatFloat(v), h.Classify(v))
			}
			return buf.String()
		case "below-floor":
			var buf strings.Builder
			for _, v := range parseValues(t, d.Input) {
				fmt.Fprintf(&buf, "%s: %t\n", formatFloat(v), h.IsBelowFloor(v))
			}
			return buf.String()
		case "observe":
			for _, v := range parseValues(t, d.Input) {
				h.Observe(v)
			}
			return fmt.Sprintf("samples=%d countdown=%d", h.Samples(), h.Countdown())
		case "reconfigure":
			ran := h.Reconfigure()
			return fmt.Sprintf("ran=%t\n%s", ran, h)
		default:
			return fmt.Sprintf("unrecognized command %q", d.Cmd)
		}
	})
}

func parseMode(t *testing.T, name string) RankMode {
	for _, mode := range []RankMode{RankByCutoff, RankByIndex, RankByQuantile} {
		if mode.String() == name {
			return mode
		}
	}
	t.Fatalf("unknown rank mode %q", name)
	return 0
}

func parseValues(t *testing.T, input string) []float64 {
	var values []float64
	for _, field := range strings.Fields(input) {
		v, err := strconv.ParseFloat(field, 64)
		require.NoError(t, err)
		values = append(values, v)
	}
	return values
}

func TestNewInvalid(t *testing.T) {
	for _, tc := range []struct {
		name              string
		buckets, interval int
	}{
		{"no buckets", 0, 10},
		{"negative buckets", -1, 10},
		{"no interval", 2, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h, err := New(tc.buckets, tc.interval, RankByCutoff)
			require.Nil(t, h)
			require.True(t, errors.Is(err, ErrInvalidHistogram), "got %v", err)
		})
	}
}

func TestInitialBuckets(t *testing.T) {
	h, err := New(2, 1000, RankByCutoff)
	require.NoError(t, err)
	require.Equal(t, 0.5, h.Cutoff(0))
	require.Greater(t, h.Cutoff(1), 1.0)
	require.Equal(t, 0, h.Classify(0.49))
	require.Equal(t, 1, h.Classify(0.9))
	require.Equal(t, 1, h.Classify(1.1))

	single, err := New(1, 10, RankByCutoff)
	require.NoError(t, err)
	require.Equal(t, Sentinel, single.Cutoff(0))
	require.Equal(t, 0, single.Classify(0))
	require.Equal(t, 0, single.Classify(5))
}

func TestSkipInsufficientSamples(t *testing.T) {
	h, err := New(4, 100, RankByQuantile)
	require.NoError(t, err)
	before := h.Cutoffs()
	floor := h.Floor()
	for _, v := range []float64{0.3, 0.6, 0.9} {
		h.Observe(v)
	}
	require.False(t, h.Reconfigure())
	require.Equal(t, before, h.Cutoffs())
	require.Equal(t, floor, h.Floor())
	require.Equal(t, 3, h.Samples())
	require.Less(t, h.Countdown(), 1, "reconfiguration must stay pending")
}

func TestReconfigurationCadence(t *testing.T) {
	const (
		buckets  = 2
		interval = 5
	)
	h, err := New(buckets, interval, RankByQuantile)
	require.NoError(t, err)
	// Bootstrap: the first attempt is skipped, the second succeeds.
	h.Observe(0.25)
	require.Equal(t, 1, h.Samples())
	h.Observe(0.75)
	require.Equal(t, 0, h.Samples())
	require.Equal(t, interval, h.Countdown())

	for i := range interval - 1 {
		h.Observe(float64(i) / interval)
		require.Equal(t, i+1, h.Samples())
	}
	h.Observe(0.5)
	require.Equal(t, 0, h.Samples(), "sample buffer must be empty after reconfiguration")
	require.Equal(t, interval, h.Countdown())
}

func TestBucketCoverage(t *testing.T) {
	for _, mode := range []RankMode{RankByCutoff, RankByIndex, RankByQuantile} {
		t.Run(mode.String(), func(t *testing.T) {
			h, err := New(8, 64, mode)
			require.NoError(t, err)
			rng := rand.New(rand.NewPCG(1, 2))
			for range 1000 {
				h.Observe(rng.Float64())
			}
			cutoffs := h.Cutoffs()
			for range 1000 {
				v := rng.Float64() * 1.2
				got := h.Classify(v)
				if v >= h.maxPartitioned {
					require.Equal(t, len(cutoffs)-1, got)
					continue
				}
				require.Greater(t, cutoffs[got], v)
				for _, c := range cutoffs {
					if c > v {
						require.LessOrEqual(t, cutoffs[got], c,
							"bucket %d is not the smallest cutoff above %v", got, v)
					}
				}
			}
		})
	}
}

func TestTiedCutoffs(t *testing.T) {
	h, err := New(3, 100, RankByIndex)
	require.NoError(t, err)
	for _, v := range []float64{0.2, 0.4, 0.6} {
		h.Observe(v)
	}
	require.Equal(t, []float64{0.2, Sentinel, Sentinel}, h.Cutoffs())
	require.Equal(t, 0, h.Classify(0.1))
	// A value equal to a cutoff belongs to the next distinct cutoff,
	// and tied cutoffs resolve to the highest index.
	require.Equal(t, 2, h.Classify(0.2))
	require.Equal(t, 2, h.Classify(0.5))
	require.Equal(t, 2, h.Classify(Sentinel))
	require.Equal(t, 2, h.sorted.Len(), "tied cutoffs share one entry")
}

func TestMonotonicCutoffs(t *testing.T) {
	h, err := New(5, 200, RankByQuantile)
	require.NoError(t, err)
	rng := rand.New(rand.NewPCG(3, 4))
	for range 2000 {
		h.Observe(rng.Float64())
		cutoffs := h.Cutoffs()
		require.True(t, sort.Float64sAreSorted(cutoffs), "cutoffs out of order: %v", cutoffs)
	}
	// Distinct random samples leave no ties.
	cutoffs := h.Cutoffs()
	require.Len(t, slices.Compact(slices.Clone(cutoffs)), len(cutoffs))
}

func TestSelectNth(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	for _, size := range []int{1, 2, 3, 10, 101} {
		values := make([]float64, size)
		for i := range values {
			values[i] = float64(rng.IntN(20))
		}
		sorted := slices.Sorted(slices.Values(values))
		for n := range size {
			scratch := slices.Clone(values)
			require.Equal(t, sorted[n], selectNth(scratch, n), "size %d rank %d", size, n)
		}
	}
}
