package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/guptarohit/asciigraph"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/djdv/go-flashcache/internal/config"
	"github.com/djdv/go-flashcache/internal/sim"
)

const plotHeight = 10

func report(w io.Writer, cfg *config.Configuration, s *sim.Simulator, oneline bool) error {
	r := s.Result()
	if oneline {
		fmt.Fprintln(w, r.String())
	} else {
		summary(w, r)
		if r.FirstShard != nil {
			segments(w, r)
		}
	}
	if cfg.Output.Plot && len(r.Series) > 1 {
		fmt.Fprintln(w, asciigraph.Plot(r.Series,
			asciigraph.Height(plotHeight),
			asciigraph.Caption("hit ratio"),
		))
	}
	if path := cfg.Output.MetricsFile; path != "" {
		registry := prometheus.NewRegistry()
		if err := registry.Register(sim.NewCollector(s)); err != nil {
			return errors.Wrap(err, "registering metrics")
		}
		if err := prometheus.WriteToTextfile(path, registry); err != nil {
			return errors.Wrap(err, "writing metrics")
		}
	}
	return nil
}

func summary(w io.Writer, r sim.Result) {
	tbl := tablewriter.NewWriter(w)
	tbl.SetHeader([]string{"Metric", "Value"})
	tbl.SetAlignment(tablewriter.ALIGN_RIGHT)
	rows := [][]string{
		{"policy", r.Policy},
		{"shards", strconv.Itoa(r.Shards)},
		{"shard size", strconv.FormatInt(r.ShardSize, 10)},
		{"requests", strconv.FormatUint(r.Requests, 10)},
		{"hit ratio", fmt.Sprintf("%.6f", r.HitRatio)},
		{"balls max/min/mean", balls(r.Balls)},
		{"miss balls max/min/mean", balls(r.MissBalls)},
		{"object size p50/p90/p99", fmt.Sprintf("%d/%d/%d", r.Sizes.P50, r.Sizes.P90, r.Sizes.P99)},
	}
	if r.Skipped > 0 {
		rows = append(rows, []string{"skipped records", strconv.FormatUint(r.Skipped, 10)})
	}
	if m := r.Flash; m != nil {
		rows = append(rows,
			[]string{"written bytes", strconv.FormatUint(m.WrittenBytes, 10)},
			[]string{"amplified bytes", strconv.FormatUint(m.AmplifiedBytes, 10)},
			[]string{"write amplification", fmt.Sprintf("%.4f", m.WriteAmplification())},
			[]string{"relocations", strconv.FormatUint(m.Relocations, 10)},
			[]string{"evictions/forced", fmt.Sprintf("%d/%d", m.Evictions, m.ForcedEvictions)},
			[]string{"refused", strconv.FormatUint(m.Refused, 10)},
		)
	}
	tbl.AppendBulk(rows)
	tbl.Render()
}

func balls(d sim.Distribution) string {
	return fmt.Sprintf("%d/%d/%.1f", d.Max, d.Min, d.Mean)
}

// segments renders the occupancy of shard 0, highest tier first.
func segments(w io.Writer, r sim.Result) {
	tbl := tablewriter.NewWriter(w)
	tbl.SetHeader([]string{"Segment", "Blocks", "Bytes", "Cutoff"})
	tbl.SetAlignment(tablewriter.ALIGN_RIGHT)
	infos := r.FirstShard.Segments
	for tier := len(infos) - 1; tier >= 0; tier-- {
		info := infos[tier]
		tbl.Append([]string{
			strconv.Itoa(tier),
			strconv.Itoa(info.Blocks),
			strconv.FormatInt(info.Bytes, 10),
			strconv.FormatFloat(info.Cutoff, 'g', 4, 64),
		})
	}
	tbl.Render()
}
