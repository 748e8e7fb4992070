package policy

import (
	"github.com/cockroachdb/errors"
	"github.com/hashicorp/golang-lru/arc/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/djdv/go-flashcache/trace"
)

// defaultObjectSize converts a byte capacity into
// an entry count for count bounded policies.
const defaultObjectSize = 1024

type (
	// ARC is an adaptive replacement cache bounded by entry count.
	// As 2Q it is a two queue cache.
	// The count is the byte capacity divided by the
	// "objsize" parameter.
	ARC struct {
		cache      entryCache
		capacity   int64
		objectSize int64
		twoQueue   bool
	}
	// entryCache is satisfied by both golang-lru caches.
	entryCache interface {
		Get(uint64) (struct{}, bool)
		Add(uint64, struct{})
		Len() int
	}
)

func (a *ARC) SetSize(bytes int64) { a.capacity = bytes }

func (a *ARC) SetParameter(name, value string) error {
	if name != "objsize" {
		return unknownParameter(a.name(), name)
	}
	return setObjectSize(&a.objectSize, value)
}

func setObjectSize(objectSize *int64, value string) error {
	size, err := parseInt("objsize", value, 1)
	if err != nil {
		return err
	}
	*objectSize = size
	return nil
}

func (a *ARC) name() string {
	if a.twoQueue {
		return "2Q"
	}
	return "ARC"
}

// Entries returns the entry count derived from the parameters.
func (a *ARC) Entries() int { return entries(a.capacity, a.objectSize) }

func entries(capacity, objectSize int64) int {
	if objectSize == 0 {
		objectSize = defaultObjectSize
	}
	return int(capacity / objectSize)
}

func (a *ARC) Prepare() error {
	if a.cache != nil {
		return nil
	}
	entries := a.Entries()
	if entries < 1 {
		return errors.Wrapf(ErrInvalidParameter,
			"%s: capacity %d holds no objects", a.name(), a.capacity)
	}
	if a.twoQueue {
		cache, err := lru.New2Q[uint64, struct{}](entries)
		if err != nil {
			return err
		}
		a.cache = cache
		return nil
	}
	cache, err := arc.NewARC[uint64, struct{}](entries)
	if err != nil {
		return err
	}
	a.cache = cache
	return nil
}

func (a *ARC) Lookup(req trace.Request) bool {
	mustPrepare(a)
	_, ok := a.cache.Get(req.ID)
	return ok
}

func (a *ARC) Admit(req trace.Request) {
	mustPrepare(a)
	if req.Size > a.capacity {
		return
	}
	a.cache.Add(req.ID, struct{}{})
}

// Len returns the number of cached objects.
func (a *ARC) Len() int {
	if a.cache == nil {
		return 0
	}
	return a.cache.Len()
}

// mustPrepare lazily prepares p. Configuration errors are
// reported by an explicit [Prepare]; replaying an invalid
// configuration is a programming error.
func mustPrepare(p Preparer) {
	if err := p.Prepare(); err != nil {
		panic(errors.WithAssertionFailure(err))
	}
}
