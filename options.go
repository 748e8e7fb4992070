package flashcache

import (
	"github.com/cockroachdb/errors"

	"github.com/djdv/go-flashcache/internal/partition"
)

// CutoffMode selects how segment cutoffs are re-estimated
// from observed priorities.
type CutoffMode int

const (
	// CutoffLiteral derives a tier's rank from its current cutoff and
	// only samples it below rank 1, otherwise the tier snaps to the
	// largest priority seen. In practice most tiers collapse onto the
	// top tier once a few priorities have been observed.
	CutoffLiteral CutoffMode = iota
	// CutoffIndex derives the rank from the tier index under the same
	// rule, which pins tier 0 to the lowest sampled priority.
	CutoffIndex
	// CutoffQuantile spreads tiers evenly over the sampled priorities.
	CutoffQuantile
)

// ParseCutoffMode accepts "cutoff", "index" or "quantile".
func ParseCutoffMode(name string) (CutoffMode, error) {
	for _, mode := range []CutoffMode{CutoffLiteral, CutoffIndex, CutoffQuantile} {
		if mode.String() == name {
			return mode, nil
		}
	}
	return 0, errors.Wrapf(ErrInvalidOptions, "unknown cutoff mode %q", name)
}

func (m CutoffMode) String() string { return m.rankMode().String() }

func (m CutoffMode) rankMode() partition.RankMode {
	switch m {
	case CutoffIndex:
		return partition.RankByIndex
	case CutoffQuantile:
		return partition.RankByQuantile
	default:
		return partition.RankByCutoff
	}
}

// DefaultReconfigurationInterval is used when
// [Options.ReconfigurationInterval] is zero.
const DefaultReconfigurationInterval = 10_000

// Options configures a [Cache].
type Options struct {
	// Segments is the number of priority tiers, at least 1.
	Segments int
	// BlockSize is the capacity of a block in bytes.
	// Objects larger than a block are refused.
	BlockSize int64
	// Blocks is the total number of blocks, at least Segments.
	// Every segment may hold Blocks/Segments blocks;
	// the remainder is left unused.
	Blocks int
	// ReconfigurationInterval is the number of observed priorities
	// between cutoff re-estimations.
	ReconfigurationInterval int
	CutoffMode              CutoffMode
	// Logger receives diagnostics such as refused admissions.
	// Defaults to [DefaultLogger].
	Logger Logger
}

func (o Options) withDefaults() Options {
	if o.ReconfigurationInterval == 0 {
		o.ReconfigurationInterval = DefaultReconfigurationInterval
	}
	if o.Logger == nil {
		o.Logger = DefaultLogger{}
	}
	return o
}

func (o Options) validate() error {
	if o.Segments < 1 {
		return invalidOptionError("segment count", 1, int64(o.Segments))
	}
	if o.BlockSize < 1 {
		return invalidOptionError("block size", 1, o.BlockSize)
	}
	if o.Blocks < o.Segments {
		return invalidOptionError("block count", int64(o.Segments), int64(o.Blocks))
	}
	if o.ReconfigurationInterval < 1 {
		return invalidOptionError("reconfiguration interval", 1, int64(o.ReconfigurationInterval))
	}
	return nil
}
