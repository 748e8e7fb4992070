// Package policy implements the cache policies a simulation can replay,
// selected by name.
package policy

import (
	"slices"
	"strconv"

	"github.com/cockroachdb/errors"

	flashcache "github.com/djdv/go-flashcache"
	"github.com/djdv/go-flashcache/trace"
)

type constError string

const (
	// ErrUnknownPolicy may be returned from [New].
	ErrUnknownPolicy = constError("unknown policy")
	// ErrInvalidParameter may be returned from [Policy.SetParameter]
	// and [Preparer.Prepare].
	ErrInvalidParameter = constError("invalid parameter")
)

func (errStr constError) Error() string { return string(errStr) }

type (
	// Policy is a cache driven by a request trace.
	// Callers configure it with SetSize and SetParameter,
	// then call Lookup for every request and Admit on misses.
	Policy interface {
		// SetSize sets the capacity in bytes.
		SetSize(bytes int64)
		SetParameter(name, value string) error
		Lookup(req trace.Request) bool
		Admit(req trace.Request)
	}
	// Preparer is implemented by policies whose state depends on
	// their parameters. Prepare validates the configuration and
	// builds that state; Lookup and Admit prepare on first use otherwise.
	Preparer interface {
		Prepare() error
	}
	// LoggerSetter is implemented by policies that log diagnostics.
	LoggerSetter interface {
		SetLogger(flashcache.Logger)
	}
	constructor = func() Policy
)

var registry = map[string]constructor{
	"LRU":      func() Policy { return new(LRU) },
	"FIFO":     func() Policy { return &LRU{fifo: true} },
	"ARC":      func() Policy { return new(ARC) },
	"2Q":       func() Policy { return &ARC{twoQueue: true} },
	"CLOCKPRO": func() Policy { return new(ClockPro) },
	"GDS":      func() Policy { return newGreedyDual(gdsCost) },
	"GDSF":     func() Policy { return newGreedyDual(gdsfCost) },
	"LFUDA":    func() Policy { return newGreedyDual(lfudaCost) },
	"Flash":    func() Policy { return new(Flash) },
}

// New returns an unconfigured policy by type name.
func New(name string) (Policy, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownPolicy, "%q (known: %v)", name, Names())
	}
	return ctor(), nil
}

// Names returns the known policy names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Prepare calls [Preparer.Prepare] if p implements it.
func Prepare(p Policy) error {
	if preparer, ok := p.(Preparer); ok {
		return preparer.Prepare()
	}
	return nil
}

func parseInt(name, value string, minimum int64) (int64, error) {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidParameter, "%s: %v", name, err)
	}
	if n < minimum {
		return 0, errors.Wrapf(ErrInvalidParameter,
			"%s must be >=%d but %d was requested", name, minimum, n)
	}
	return n, nil
}

func unknownParameter(policy, name string) error {
	return errors.Wrapf(ErrInvalidParameter, "%s has no parameter %q", policy, name)
}
