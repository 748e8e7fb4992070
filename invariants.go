//go:build flashcache_invariants

package flashcache

const invariants = true

func assert(cond bool, message string) {
	if !cond {
		panic(message)
	}
}
