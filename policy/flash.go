package policy

import (
	"github.com/cockroachdb/errors"

	flashcache "github.com/djdv/go-flashcache"
	"github.com/djdv/go-flashcache/trace"
)

const (
	defaultSegments  = 4
	defaultBlockSize = 64 << 10
)

// Flash replays requests against a [flashcache.Cache].
// Parameters: "segments", "blocksize" (bytes),
// "interval" (reconfiguration interval) and
// "mode" (cutoff, index or quantile).
// The block count is the capacity divided by the block size.
type Flash struct {
	cache    *flashcache.Cache[uint64]
	logger   flashcache.Logger
	capacity int64
	opts     flashcache.Options
}

func (f *Flash) SetSize(bytes int64) { f.capacity = bytes }

func (f *Flash) SetLogger(logger flashcache.Logger) { f.logger = logger }

func (f *Flash) SetParameter(name, value string) error {
	switch name {
	case "mode":
		mode, err := flashcache.ParseCutoffMode(value)
		if err != nil {
			return errors.Wrapf(ErrInvalidParameter, "%v", err)
		}
		f.opts.CutoffMode = mode
		return nil
	case "segments", "blocksize", "interval":
	default:
		return unknownParameter("Flash", name)
	}
	n, err := parseInt(name, value, 1)
	if err != nil {
		return err
	}
	switch name {
	case "segments":
		f.opts.Segments = int(n)
	case "blocksize":
		f.opts.BlockSize = n
	default:
		f.opts.ReconfigurationInterval = int(n)
	}
	return nil
}

// Options returns the engine options derived from the parameters.
func (f *Flash) Options() flashcache.Options {
	opts := f.opts
	if opts.Segments == 0 {
		opts.Segments = defaultSegments
	}
	if opts.BlockSize == 0 {
		opts.BlockSize = defaultBlockSize
	}
	opts.Blocks = int(f.capacity / opts.BlockSize)
	opts.Logger = f.logger
	return opts
}

func (f *Flash) Prepare() error {
	if f.cache != nil {
		return nil
	}
	cache, err := flashcache.New[uint64](f.Options())
	if err != nil {
		return errors.Wrapf(ErrInvalidParameter, "%v", err)
	}
	f.cache = cache
	return nil
}

func (f *Flash) Lookup(req trace.Request) bool {
	mustPrepare(f)
	return f.cache.Lookup(req.ID)
}

// Admit ignores refused objects; the engine logs and counts them.
func (f *Flash) Admit(req trace.Request) {
	mustPrepare(f)
	_ = f.cache.Admit(req.ID, req.Size)
}

// Metrics returns the engine counters,
// or zero values before the engine is built.
func (f *Flash) Metrics() flashcache.Metrics {
	if f.cache == nil {
		return flashcache.Metrics{}
	}
	return f.cache.Metrics()
}
