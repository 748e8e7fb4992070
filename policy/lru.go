package policy

import (
	"math"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/djdv/go-flashcache/trace"
)

// LRU evicts the least recently used object once its bytes
// exceed the capacity. As FIFO it evicts in admission order
// and hits do not refresh recency.
type LRU struct {
	list     *simplelru.LRU[uint64, int64]
	capacity int64
	used     int64
	fifo     bool
}

func (l *LRU) SetSize(bytes int64) { l.capacity = bytes }

func (l *LRU) SetParameter(name, _ string) error {
	return unknownParameter(l.name(), name)
}

func (l *LRU) name() string {
	if l.fifo {
		return "FIFO"
	}
	return "LRU"
}

func (l *LRU) Prepare() error {
	if l.list != nil {
		return nil
	}
	// Entries are bounded by bytes, not by count.
	list, err := simplelru.NewLRU(math.MaxInt, func(_ uint64, size int64) {
		l.used -= size
	})
	if err != nil {
		return err
	}
	l.list = list
	return nil
}

func (l *LRU) Lookup(req trace.Request) bool {
	mustPrepare(l)
	if l.fifo {
		_, ok := l.list.Peek(req.ID)
		return ok
	}
	_, ok := l.list.Get(req.ID)
	return ok
}

func (l *LRU) Admit(req trace.Request) {
	mustPrepare(l)
	if req.Size > l.capacity {
		return
	}
	l.list.Remove(req.ID)
	for l.used+req.Size > l.capacity {
		if _, _, ok := l.list.RemoveOldest(); !ok {
			break
		}
	}
	l.list.Add(req.ID, req.Size)
	l.used += req.Size
}

// Len returns the number of cached objects.
func (l *LRU) Len() int {
	if l.list == nil {
		return 0
	}
	return l.list.Len()
}

// Used returns the cached bytes.
func (l *LRU) Used() int64 { return l.used }
