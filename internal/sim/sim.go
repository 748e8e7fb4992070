// Package sim replays request traces against sharded cache policies
// and collects hit and "balls and bins" statistics.
package sim

import (
	"io"
	"slices"
	"strconv"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"

	flashcache "github.com/djdv/go-flashcache"
	"github.com/djdv/go-flashcache/policy"
	"github.com/djdv/go-flashcache/trace"
)

type constError string

// ErrInvalidConfig may be returned from [New].
const ErrInvalidConfig = constError("invalid simulator configuration")

func (errStr constError) Error() string { return string(errStr) }

const (
	// Object sizes outside this range are not recorded in the distribution.
	minRecordedSize = 1
	maxRecordedSize = 1 << 40
	sizeSigFigs     = 3
)

type (
	// Config describes a simulation.
	Config struct {
		// Policy is a name known to [policy.New].
		Policy string
		// Shards is the number of independent policy instances
		// requests are hashed across.
		Shards int
		// ShardSize is the capacity of every shard in bytes.
		ShardSize int64
		Params    map[string]string
		// SampleEvery appends the cumulative hit ratio to the series
		// every that many requests. Zero disables the series.
		SampleEvery int
		Logger      flashcache.Logger
	}
	// Simulator is not safe for concurrent use.
	Simulator struct {
		cfg            Config
		shards         []shard
		sizes          *hdrhistogram.Histogram
		series         []float64
		requests, hits uint64
		skipped        uint64
	}
	shard struct {
		policy policy.Policy
		// balls counts requested bytes, missBalls the bytes of misses.
		balls, missBalls int64
	}
)

// New builds and prepares one policy instance per shard.
func New(cfg Config) (*Simulator, error) {
	if cfg.Shards < 1 {
		return nil, errors.Wrapf(ErrInvalidConfig,
			"shard count must be >=1 but %d was requested", cfg.Shards)
	}
	if cfg.ShardSize < 1 {
		return nil, errors.Wrapf(ErrInvalidConfig,
			"shard size must be >=1 but %d was requested", cfg.ShardSize)
	}
	if cfg.SampleEvery < 0 {
		return nil, errors.Wrapf(ErrInvalidConfig,
			"sample interval must be >=0 but %d was requested", cfg.SampleEvery)
	}
	if cfg.Logger == nil {
		cfg.Logger = flashcache.DefaultLogger{}
	}
	sim := &Simulator{
		cfg:    cfg,
		shards: make([]shard, cfg.Shards),
		sizes:  hdrhistogram.New(minRecordedSize, maxRecordedSize, sizeSigFigs),
	}
	names := make([]string, 0, len(cfg.Params))
	for name := range cfg.Params {
		names = append(names, name)
	}
	slices.Sort(names)
	for i := range sim.shards {
		p, err := newPolicy(cfg, names)
		if err != nil {
			return nil, errors.Wrapf(err, "shard %d", i)
		}
		sim.shards[i].policy = p
	}
	return sim, nil
}

func newPolicy(cfg Config, params []string) (policy.Policy, error) {
	p, err := policy.New(cfg.Policy)
	if err != nil {
		return nil, err
	}
	p.SetSize(cfg.ShardSize)
	if setter, ok := p.(policy.LoggerSetter); ok {
		setter.SetLogger(cfg.Logger)
	}
	for _, name := range params {
		if err := p.SetParameter(name, cfg.Params[name]); err != nil {
			return nil, err
		}
	}
	if err := policy.Prepare(p); err != nil {
		return nil, err
	}
	return p, nil
}

// ShardOf returns the shard serving id.
// Ids are hashed in their decimal form.
func ShardOf(id uint64, shards int) int {
	return int(xxhash.Sum64String(strconv.FormatUint(id, 10)) % uint64(shards))
}

// Step replays a single request and reports whether it hit.
func (s *Simulator) Step(req trace.Request) bool {
	s.requests++
	var (
		sh  = &s.shards[ShardOf(req.ID, len(s.shards))]
		hit = sh.policy.Lookup(req)
	)
	sh.balls += req.Size
	if hit {
		s.hits++
	} else {
		sh.policy.Admit(req)
		sh.missBalls += req.Size
	}
	if err := s.sizes.RecordValue(req.Size); err != nil {
		s.cfg.Logger.Infof("sim: size %d not recorded: %v", req.Size, err)
	}
	if every := s.cfg.SampleEvery; every > 0 && s.requests%uint64(every) == 0 {
		s.series = append(s.series, s.hitRatio())
	}
	return hit
}

// Run replays src until limit requests were stepped,
// or until src is exhausted when limit is 0.
// Malformed records are logged and skipped.
func (s *Simulator) Run(src trace.Source, limit uint64) error {
	for n := uint64(0); limit == 0 || n < limit; {
		req, err := src.Next()
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, trace.ErrMalformedRecord):
			s.skipped++
			s.cfg.Logger.Infof("sim: skipping record: %v", err)
			continue
		default:
			return errors.Wrapf(err, "after %d requests", s.requests)
		}
		s.Step(req)
		n++
	}
	return nil
}

func (s *Simulator) hitRatio() float64 {
	if s.requests == 0 {
		return 0
	}
	return float64(s.hits) / float64(s.requests)
}

// Policy returns the policy instance of a shard.
func (s *Simulator) Policy(shard int) policy.Policy { return s.shards[shard].policy }
