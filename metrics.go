package flashcache

import "github.com/cockroachdb/redact"

type (
	// SegmentInfo describes the occupancy of one priority tier.
	SegmentInfo struct {
		Blocks int
		// Bytes includes stale copies still occupying blocks.
		Bytes int64
		// Cutoff is the upper priority bound of the tier.
		Cutoff float64
	}
	// Metrics is a snapshot of a [Cache]'s counters.
	Metrics struct {
		Requests, Hits uint64
		// WrittenBytes counts admitted bytes,
		// AmplifiedBytes counts bytes rewritten by relocation.
		WrittenBytes, AmplifiedBytes uint64
		Relocations                  uint64
		// Evictions counts objects dropped below the priority floor.
		Evictions uint64
		// ForcedEvictions counts objects dropped because they were met
		// a second time within one overflow resolution.
		ForcedEvictions uint64
		// Refused counts admissions larger than a block.
		Refused uint64
		Objects int
		// Clock is the logical time and EvictionBoundary
		// the access time priorities are measured from.
		Clock, EvictionBoundary uint64
		Segments                []SegmentInfo
	}
)

// Segments returns the occupancy of every tier, lowest priority first.
func (c *Cache[_]) Segments() []SegmentInfo {
	infos := make([]SegmentInfo, len(c.segments))
	for tier := range c.segments {
		seg := &c.segments[tier]
		infos[tier] = SegmentInfo{
			Blocks: seg.blocks,
			Bytes:  seg.bytes,
			Cutoff: c.partitions.Cutoff(tier),
		}
	}
	return infos
}

// Metrics returns a snapshot of the cache counters.
func (c *Cache[_]) Metrics() Metrics {
	return Metrics{
		Requests:         c.counters.requests,
		Hits:             c.counters.hits,
		WrittenBytes:     c.counters.written,
		AmplifiedBytes:   c.counters.amplified,
		Relocations:      c.counters.relocations,
		Evictions:        c.counters.evictions,
		ForcedEvictions:  c.counters.forced,
		Refused:          c.counters.refused,
		Objects:          len(c.index),
		Clock:            c.now,
		EvictionBoundary: c.evicted,
		Segments:         c.Segments(),
	}
}

// HitRatio returns hits per request.
func (m Metrics) HitRatio() float64 {
	if m.Requests == 0 {
		return 0
	}
	return float64(m.Hits) / float64(m.Requests)
}

// WriteAmplification returns physically written bytes per admitted byte.
func (m Metrics) WriteAmplification() float64 {
	return writeAmplification(m.WrittenBytes, m.AmplifiedBytes)
}

// Accumulate adds the counters of other, which may come from an
// independent shard. Segment occupancies are summed tier by tier.
func (m *Metrics) Accumulate(other Metrics) {
	m.Requests += other.Requests
	m.Hits += other.Hits
	m.WrittenBytes += other.WrittenBytes
	m.AmplifiedBytes += other.AmplifiedBytes
	m.Relocations += other.Relocations
	m.Evictions += other.Evictions
	m.ForcedEvictions += other.ForcedEvictions
	m.Refused += other.Refused
	m.Objects += other.Objects
	m.Clock = max(m.Clock, other.Clock)
	m.EvictionBoundary = max(m.EvictionBoundary, other.EvictionBoundary)
	for len(m.Segments) < len(other.Segments) {
		m.Segments = append(m.Segments, SegmentInfo{})
	}
	for tier, seg := range other.Segments {
		m.Segments[tier].Blocks += seg.Blocks
		m.Segments[tier].Bytes += seg.Bytes
		m.Segments[tier].Cutoff = max(m.Segments[tier].Cutoff, seg.Cutoff)
	}
}

func (m Metrics) String() string {
	return redact.StringWithoutMarkers(m)
}

// SafeFormat implements redact.SafeFormatter.
func (m Metrics) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("requests: %d hits: %d objects: %d\n",
		redact.Safe(m.Requests), redact.Safe(m.Hits), redact.Safe(m.Objects))
	w.Printf("written: %d amplified: %d (wa %.3f)\n",
		redact.Safe(m.WrittenBytes), redact.Safe(m.AmplifiedBytes),
		redact.Safe(m.WriteAmplification()))
	w.Printf("relocations: %d evictions: %d forced: %d refused: %d\n",
		redact.Safe(m.Relocations), redact.Safe(m.Evictions),
		redact.Safe(m.ForcedEvictions), redact.Safe(m.Refused))
	for tier, seg := range m.Segments {
		w.Printf("segment %d: %d blocks, %d bytes, cutoff %.4g\n",
			redact.Safe(tier), redact.Safe(seg.Blocks),
			redact.Safe(seg.Bytes), redact.Safe(seg.Cutoff))
	}
}
