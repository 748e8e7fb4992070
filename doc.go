// Package flashcache implements a [Cache] that simulates a segmented flash cache
// with online priority partitioning.
//
// Flash storage is written in fixed-size blocks and erased in larger units.
// Rewriting data to move it elsewhere costs as many bytes as writing it fresh,
// so a flash cache has to trade hit ratio against write amplification.
// The simulator models that trade-off for admission and eviction policies
// replayed against request traces.
//
// Glossary and invariants:
//
//   - Block
//
//     An append-only group of objects whose sizes sum to at most the block size.
//     Only the newest block of a segment accepts appends.
//     The block is the unit of eviction.
//
//   - Segment (tier)
//
//     A FIFO of blocks for one priority tier.
//     Tier indices run from 0 (lowest priority) to Segments-1 (highest).
//     Each segment may hold Blocks/Segments blocks.
//
//   - Priority
//
//     (lastAccess - boundary) / (now - boundary).
//     An object accessed at the eviction boundary scores 0,
//     an object accessed now scores 1.
//
//   - Partitions
//
//     An online histogram of observed priorities.
//     It maps a priority to a tier through periodically re-estimated cutoffs
//     and keeps a low-end floor below which objects are dropped.
//
// Operations:
//
//   - Lookup
//
//     Advances the logical clock. A hit refreshes the object
//     and feeds its priority to the partitions.
//
//   - Admit
//
//     Appends the object to the top tier and resolves overflow.
//
//   - Overflow resolution
//
//     While any segment holds more blocks than its budget,
//     the oldest block of that segment is evicted, highest tier first.
//     Objects below the floor are dropped and move the eviction boundary
//     forward to the newest dropped access time.
//     Every other object is relocated to the tier its priority classifies to,
//     and its size counts as amplified bytes.
//
// Counts:
//
//   - WrittenBytes grows only by admissions.
//
//   - AmplifiedBytes grows only by relocations.
//
//   - The eviction boundary never moves backwards.
package flashcache
