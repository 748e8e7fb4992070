package sim_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/djdv/go-flashcache/internal/sim"
	"github.com/djdv/go-flashcache/policy"
	"github.com/djdv/go-flashcache/trace"
)

type recordingLogger struct {
	messages []string
}

func (l *recordingLogger) Infof(format string, args ...any) {
	l.messages = append(l.messages, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Fatalf(format string, args ...any) {
	panic(fmt.Sprintf(format, args...))
}

func newZipf(t *testing.T, objects int64) *trace.Zipf {
	t.Helper()
	z, err := trace.NewZipf(objects, nil, 1)
	require.NoError(t, err)
	return z
}

func TestNewInvalid(t *testing.T) {
	valid := sim.Config{Policy: "LRU", Shards: 2, ShardSize: 1 << 20}
	for name, mutate := range map[string]func(*sim.Config){
		"shards":       func(c *sim.Config) { c.Shards = 0 },
		"shard size":   func(c *sim.Config) { c.ShardSize = 0 },
		"sample every": func(c *sim.Config) { c.SampleEvery = -1 },
	} {
		cfg := valid
		mutate(&cfg)
		_, err := sim.New(cfg)
		require.ErrorIs(t, err, sim.ErrInvalidConfig, name)
	}
	cfg := valid
	cfg.Policy = "MRU"
	_, err := sim.New(cfg)
	require.ErrorIs(t, err, policy.ErrUnknownPolicy)

	cfg = valid
	cfg.Policy = "Flash"
	cfg.Params = map[string]string{"segments": "many"}
	_, err = sim.New(cfg)
	require.ErrorIs(t, err, policy.ErrInvalidParameter)
}

func TestShardOf(t *testing.T) {
	const shards = 4
	var counts [shards]int
	for id := range uint64(1000) {
		shard := sim.ShardOf(id, shards)
		require.Equal(t, shard, sim.ShardOf(id, shards), "routing must be stable")
		counts[shard]++
	}
	for shard, n := range counts {
		require.Greater(t, n, 100, "shard %d is starved", shard)
	}
	require.Zero(t, sim.ShardOf(12345, 1))
}

func TestRun(t *testing.T) {
	const (
		shards   = 4
		requests = 5000
		every    = 500
	)
	s, err := sim.New(sim.Config{
		Policy:      "LRU",
		Shards:      shards,
		ShardSize:   64 << 10,
		SampleEvery: every,
		Logger:      new(recordingLogger),
	})
	require.NoError(t, err)
	require.NoError(t, s.Run(newZipf(t, 10_000), requests))

	r := s.Result()
	require.Equal(t, uint64(requests), r.Requests)
	require.Greater(t, r.Hits, uint64(0))
	require.Len(t, r.Series, requests/every)
	require.InDelta(t, r.HitRatio, r.Series[len(r.Series)-1], 1e-12)
	require.Len(t, r.Balls.PerShard, shards)

	var balls, misses int64
	for i := range shards {
		require.LessOrEqual(t, r.MissBalls.PerShard[i], r.Balls.PerShard[i])
		require.LessOrEqual(t, r.Balls.PerShard[i], r.Balls.Max)
		require.GreaterOrEqual(t, r.Balls.PerShard[i], r.Balls.Min)
		balls += r.Balls.PerShard[i]
		misses += r.MissBalls.PerShard[i]
	}
	require.InDelta(t, float64(balls)/shards, r.Balls.Mean, 1e-9)
	require.InDelta(t, float64(misses)/shards, r.MissBalls.Mean, 1e-9)
	require.Less(t, misses, balls)

	require.GreaterOrEqual(t, r.Sizes.Min, int64(16))
	// Within the histogram's precision of the largest table entry.
	require.InDelta(t, 4096, r.Sizes.Max, 8)
	require.LessOrEqual(t, r.Sizes.P50, r.Sizes.P99)
	require.Nil(t, r.Flash)
	require.True(t, strings.HasPrefix(r.String(), "LRU 4 65536 "), r.String())
}

func TestRunUntilEOF(t *testing.T) {
	const input = `1 100
2 200
bogus
1 100
`
	logger := new(recordingLogger)
	s, err := sim.New(sim.Config{
		Policy:    "FIFO",
		Shards:    1,
		ShardSize: 1000,
		Logger:    logger,
	})
	require.NoError(t, err)
	require.NoError(t, s.Run(trace.NewReader(strings.NewReader(input)), 0))
	r := s.Result()
	require.Equal(t, uint64(3), r.Requests)
	require.Equal(t, uint64(1), r.Hits)
	require.Equal(t, uint64(1), r.Skipped)
	require.Len(t, logger.messages, 1)
	require.Equal(t, []int64{400}, r.Balls.PerShard)
	require.Equal(t, []int64{300}, r.MissBalls.PerShard)
}

func TestFlash(t *testing.T) {
	const shards = 3
	s, err := sim.New(sim.Config{
		Policy:    "Flash",
		Shards:    shards,
		ShardSize: 1 << 20,
		Params: map[string]string{
			"segments":  "4",
			"blocksize": "16384",
			"interval":  "256",
			"mode":      "quantile",
		},
		Logger: new(recordingLogger),
	})
	require.NoError(t, err)
	require.NoError(t, s.Run(newZipf(t, 50_000), 20_000))

	r := s.Result()
	require.NotNil(t, r.Flash)
	require.NotNil(t, r.FirstShard)
	require.Equal(t, r.Requests, r.Flash.Requests)
	require.Equal(t, r.Hits, r.Flash.Hits)
	var misses int64
	for _, n := range r.MissBalls.PerShard {
		misses += n
	}
	// Nothing is larger than a block, so every miss is written.
	require.Equal(t, uint64(misses), r.Flash.WrittenBytes)
	require.Len(t, r.FirstShard.Segments, 4)
	require.GreaterOrEqual(t, r.Flash.WriteAmplification(), 1.0)
}

func TestCollector(t *testing.T) {
	s, err := sim.New(sim.Config{
		Policy:    "LRU",
		Shards:    2,
		ShardSize: 1000,
		Logger:    new(recordingLogger),
	})
	require.NoError(t, err)
	for id := range uint64(3) {
		s.Step(trace.Request{ID: id % 2, Size: 10})
	}
	collector := sim.NewCollector(s)
	// 3 totals, 2 per shard, 3 size quantiles.
	require.Equal(t, 3+2*2+3, testutil.CollectAndCount(collector))
	const expected = `
# HELP flashsim_requests_total Requests replayed.
# TYPE flashsim_requests_total counter
flashsim_requests_total{policy="LRU"} 3
# HELP flashsim_hits_total Requests that hit.
# TYPE flashsim_hits_total counter
flashsim_hits_total{policy="LRU"} 1
`
	require.NoError(t, testutil.CollectAndCompare(collector, strings.NewReader(expected),
		"flashsim_requests_total", "flashsim_hits_total"))

	flash, err := sim.New(sim.Config{
		Policy:    "Flash",
		Shards:    1,
		ShardSize: 1 << 20,
		Logger:    new(recordingLogger),
	})
	require.NoError(t, err)
	flash.Step(trace.Request{ID: 1, Size: 10})
	require.Equal(t, 3+2+3+3, testutil.CollectAndCount(sim.NewCollector(flash)))
}
