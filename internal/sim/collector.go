package sim

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "flashsim"

// Collector exposes a [Simulator]'s [Result] as Prometheus metrics.
// Values are computed on every collection.
type Collector struct {
	sim *Simulator

	requests, hits,
	hitRatio,
	shardBytes, shardMissBytes,
	objectSize,
	written, amplified,
	writeAmplification *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector(sim *Simulator) *Collector {
	var (
		policy = prometheus.Labels{"policy": sim.cfg.Policy}
		desc   = func(name, help string, labels ...string) *prometheus.Desc {
			return prometheus.NewDesc(
				prometheus.BuildFQName(namespace, "", name),
				help, labels, policy,
			)
		}
	)
	return &Collector{
		sim:                sim,
		requests:           desc("requests_total", "Requests replayed."),
		hits:               desc("hits_total", "Requests that hit."),
		hitRatio:           desc("hit_ratio", "Cumulative hit ratio."),
		shardBytes:         desc("shard_requested_bytes", "Bytes requested per shard.", "shard"),
		shardMissBytes:     desc("shard_missed_bytes", "Bytes missed per shard.", "shard"),
		objectSize:         desc("object_size_bytes", "Requested object size quantiles.", "quantile"),
		written:            desc("written_bytes_total", "Bytes admitted into flash."),
		amplified:          desc("amplified_bytes_total", "Bytes rewritten by relocation."),
		writeAmplification: desc("write_amplification", "Physically written per admitted byte."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.requests, c.hits, c.hitRatio,
		c.shardBytes, c.shardMissBytes,
		c.objectSize,
		c.written, c.amplified, c.writeAmplification,
	} {
		ch <- d
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	r := c.sim.Result()
	ch <- prometheus.MustNewConstMetric(c.requests, prometheus.CounterValue, float64(r.Requests))
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(r.Hits))
	ch <- prometheus.MustNewConstMetric(c.hitRatio, prometheus.GaugeValue, r.HitRatio)
	for i := range r.Balls.PerShard {
		shard := strconv.Itoa(i)
		ch <- prometheus.MustNewConstMetric(c.shardBytes, prometheus.GaugeValue,
			float64(r.Balls.PerShard[i]), shard)
		ch <- prometheus.MustNewConstMetric(c.shardMissBytes, prometheus.GaugeValue,
			float64(r.MissBalls.PerShard[i]), shard)
	}
	for _, q := range []struct {
		label string
		value int64
	}{
		{"0.5", r.Sizes.P50},
		{"0.9", r.Sizes.P90},
		{"0.99", r.Sizes.P99},
	} {
		ch <- prometheus.MustNewConstMetric(c.objectSize, prometheus.GaugeValue,
			float64(q.value), q.label)
	}
	if r.Flash == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.written, prometheus.CounterValue, float64(r.Flash.WrittenBytes))
	ch <- prometheus.MustNewConstMetric(c.amplified, prometheus.CounterValue, float64(r.Flash.AmplifiedBytes))
	ch <- prometheus.MustNewConstMetric(c.writeAmplification, prometheus.GaugeValue, r.Flash.WriteAmplification())
}
