package policy_test

import (
	"iter"
	"slices"
	"strconv"
	"testing"

	"golang.org/x/exp/rand"

	"github.com/djdv/go-flashcache/policy"
)

func TestClockPro(t *testing.T) {
	t.Run("invalid capacity", invalidCapacity)
	t.Run("empty miss", emptyMiss)
	t.Run("basic", basic)
	t.Run("update", update)
	t.Run("minimum capacity", testMinimumCapacity)
	t.Run("capacity bounds", capacityBounds)
	t.Run("eviction order", evictionOrder)
	t.Run("readmit page", testHit)
	t.Run("only resident keys", keysStopsAfterResidents)
	t.Run("skewed replay", skewedReplay)
}

func invalidCapacity(t *testing.T) {
	for _, capacity := range []int64{-1, 0, 1} {
		t.Run(strconv.FormatInt(capacity, 10), func(t *testing.T) {
			t.Parallel()
			cache := new(policy.ClockPro)
			cache.SetSize(capacity)
			if err := cache.SetParameter("objsize", "1"); err != nil {
				t.Fatal(err)
			}
			if err := cache.Prepare(); err == nil {
				t.Errorf(
					"Prepare did not return an error for an invalid capacity: %d",
					capacity,
				)
			}
		})
	}
}

func emptyMiss(t *testing.T) {
	t.Parallel()
	cache := newClockPro(t, policy.ClockProMinimumEntries)
	mustMiss(t, cache, 1, "empty cache")
}

func basic(t *testing.T) {
	const (
		id     = 1
		errCtx = "after add"
	)
	cache := newClockPro(t, policy.ClockProMinimumEntries)
	t.Run("add", func(t *testing.T) {
		cache.Admit(request(id, 1))
	})
	t.Run("lookup", func(t *testing.T) {
		mustHit(t, cache, id, errCtx)
	})
	checkLen(t, cache, 1, errCtx)
	keysMatch(t, cache, []uint64{id}, errCtx)
}

func update(t *testing.T) {
	t.Parallel()
	const id = 7
	cache := newClockPro(t, policy.ClockProMinimumEntries)
	cache.Admit(request(id, 1))
	mustHit(t, cache, id, "just added")
	size := cache.Len()
	cache.Admit(request(id, 1))
	mustHit(t, cache, id, "just readmitted")
	checkLen(t, cache, size, "after readmitting a resident page")
}

func testMinimumCapacity(t *testing.T) {
	t.Parallel()
	const capacity = policy.ClockProMinimumEntries
	cache := newClockPro(t, capacity)
	admitIncrementing(cache, capacity)
	checkLen(t, cache, capacity, "added full set")
	checkKeyLength(t, cache, capacity, "added full set")
	mustHit(t, cache, 1, "added full set")
}

func capacityBounds(t *testing.T) {
	const (
		capacity          = policy.ClockProMinimumEntries * 2
		msg               = "added more than capacity"
		metadataLimit     = capacity * 2
		evictionThreshold = metadataLimit + 1
	)
	for _, test := range []struct {
		name  string
		limit int
	}{
		{"at capacity", capacity},
		{"metadata limit", metadataLimit},
		{"must evict", evictionThreshold},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			cache := newClockPro(t, capacity)
			admitIncrementing(cache, test.limit)
			checkLen(t, cache, capacity, msg)
			checkKeyLength(t, cache, capacity, msg)
			if tested := cache.Tested(); tested > capacity {
				t.Fatalf("test pages exceed capacity: %d > %d", tested, capacity)
			}
		})
	}
}

func evictionOrder(t *testing.T) {
	const capacity = 3
	cache := newClockPro(t, capacity)
	t.Run("fill cache", func(t *testing.T) {
		admitIncrementing(cache, capacity)
	})
	t.Run("access pages", func(t *testing.T) {
		// Reference 1 and 2 so the cold hand passes over them.
		mustHit(t, cache, 1, "filled")
		mustHit(t, cache, 2, "filled")
	})
	t.Run("evict+add page", func(t *testing.T) {
		// 3 is the unreferenced cold page.
		cache.Admit(request(4, 1))
	})
	keysMatch(t, cache, []uint64{1, 2, 4},
		"unexpected keys after eviction")
}

func testHit(t *testing.T) {
	const capacity = 2
	cache := newClockPro(t, capacity)
	t.Run("fill cache", func(t *testing.T) {
		admitIncrementing(cache, capacity)
	})
	t.Run("evict and add page", func(t *testing.T) {
		// 2 is cold and unreferenced; it becomes a test page.
		cache.Admit(request(3, 1))
		mustMiss(t, cache, 2, "evicted")
		if cache.Tested() != 1 {
			t.Fatalf("expected one test page, got %d", cache.Tested())
		}
	})
	t.Run("admit evicted page in its test period", func(t *testing.T) {
		// Readmitted straight into the hot set.
		cache.Admit(request(2, 1))
	})
	checkLen(t, cache, capacity, "after readmit")
	mustHit(t, cache, 2, "readmitted during its test period")
}

func keysStopsAfterResidents(t *testing.T) {
	const capacity = 4
	cache := newClockPro(t, capacity)
	admitIncrementing(cache, capacity*3)
	checkKeyLength(t, cache, cache.Len(), "after growing the test set")
}

func skewedReplay(t *testing.T) {
	const (
		capacity = 64
		objects  = 1024
		requests = 20_000
	)
	var (
		cache = newClockPro(t, capacity)
		rng   = rand.New(rand.NewSource(1))
		zipf  = rand.NewZipf(rng, 1.1, 1, objects-1)
		hits  int
	)
	for range requests {
		req := request(zipf.Uint64(), 1)
		if cache.Lookup(req) {
			hits++
			continue
		}
		cache.Admit(req)
		if cache.Len() > capacity {
			t.Fatalf("resident pages exceed capacity: %d", cache.Len())
		}
		if resident := cache.Len() + cache.Tested(); resident > capacity*2 {
			t.Fatalf("pages exceed the metadata limit: %d", resident)
		}
	}
	checkKeyLength(t, cache, capacity, "after replay")
	if hits == 0 {
		t.Fatal("skewed replay never hit")
	}
}

func newClockPro(tb testing.TB, capacity int) *policy.ClockPro {
	tb.Helper()
	cache := new(policy.ClockPro)
	cache.SetSize(int64(capacity))
	if err := cache.SetParameter("objsize", "1"); err != nil {
		tb.Fatal(err)
	}
	if err := cache.Prepare(); err != nil {
		tb.Fatal(err)
	}
	return cache
}

func admitIncrementing(cache *policy.ClockPro, end int) {
	for i := range end {
		cache.Admit(request(uint64(i+1), 1))
	}
}

func mustMiss(tb testing.TB, cache *policy.ClockPro, id uint64, why string) {
	tb.Helper()
	if cache.Lookup(request(id, 1)) {
		tb.Fatalf("expected miss for %d due to %s", id, why)
	}
}

func mustHit(tb testing.TB, cache *policy.ClockPro, id uint64, msg string) {
	tb.Helper()
	if !cache.Lookup(request(id, 1)) {
		tb.Fatalf("expected hit for `%d` - %s", id, msg)
	}
}

func checkLen(tb testing.TB, cache *policy.ClockPro, size int, action string) {
	tb.Helper()
	got := cache.Len()
	if got == size {
		return
	}
	tb.Fatalf(
		"expected cache to be specific size %s"+
			"\n\tgot: %d"+
			"\n\twant: %d",
		action, got, size)
}

func checkKeyLength(tb testing.TB, cache *policy.ClockPro, length int, action string) {
	tb.Helper()
	var got int
	for range cache.Keys() {
		got++
	}
	if got == length {
		return
	}
	tb.Fatalf(
		"expected key count to match %s"+
			"\n\tgot: %d"+
			"\n\twant: %d",
		action, got, length)
}

func keysMatch(tb testing.TB, cache *policy.ClockPro, want []uint64, msg string) {
	tb.Helper()
	got := cache.Keys()
	if !keysEqualUnordered(want, got) {
		tb.Fatalf(
			"%s"+
				"\n\twant: %v"+
				"\n\tgot: %v",
			msg, want, slices.Collect(got))
	}
}

func keysEqualUnordered[Key comparable](want []Key, seq iter.Seq[Key]) bool {
	counts := make(map[Key]int, len(want))
	for _, key := range want {
		counts[key]++
	}
	var seen int
	for key := range seq {
		if counts[key] == 0 {
			return false
		}
		counts[key]--
		seen++
	}
	return seen == len(want)
}
