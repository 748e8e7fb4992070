package main

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	flashcache "github.com/djdv/go-flashcache"
	"github.com/djdv/go-flashcache/internal/config"
	"github.com/djdv/go-flashcache/internal/sim"
)

// commonConfig holds the flags shared by every command.
type commonConfig struct {
	configFile  string
	params      map[string]string
	sampleEvery int
	plot        bool
	metricsFile string
	oneline     bool
}

func (c *commonConfig) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(
		&c.configFile, "config", "", "YAML configuration file; flags and arguments override it")
	cmd.Flags().StringToStringVar(
		&c.params, "param", nil, "policy parameter as name=value, may be repeated")
	cmd.Flags().IntVar(
		&c.sampleEvery, "sample-every", 0, "sample the hit ratio every N requests (0 keeps the configured value)")
	cmd.Flags().BoolVar(
		&c.plot, "plot", false, "plot the hit ratio series")
	cmd.Flags().StringVar(
		&c.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	cmd.Flags().BoolVar(
		&c.oneline, "oneline", false, "print the classic single line summary only")
}

// load reads the configuration file, if any, and applies the shared flags.
func (c *commonConfig) load() (*config.Configuration, error) {
	cfg := config.NewDefault()
	if c.configFile != "" {
		if err := cfg.LoadFromFile(c.configFile); err != nil {
			return nil, err
		}
	}
	if cfg.Params == nil {
		cfg.Params = make(map[string]string, len(c.params))
	}
	for name, value := range c.params {
		cfg.Params[name] = value
	}
	if c.sampleEvery > 0 {
		cfg.SampleEvery = c.sampleEvery
	}
	if c.plot {
		cfg.Output.Plot = true
	}
	if c.metricsFile != "" {
		cfg.Output.MetricsFile = c.metricsFile
	}
	return cfg, nil
}

func newSimulator(cfg *config.Configuration) (*sim.Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	shardSize, err := cfg.ShardBytes()
	if err != nil {
		return nil, err
	}
	s, err := sim.New(sim.Config{
		Policy:      cfg.Policy,
		Shards:      cfg.Shards,
		ShardSize:   shardSize,
		Params:      cfg.Params,
		SampleEvery: cfg.SampleEvery,
		Logger:      flashcache.DefaultLogger{},
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating simulator")
	}
	return s, nil
}
