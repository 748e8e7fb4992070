package main

import (
	"os"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/djdv/go-flashcache/internal/config"
	"github.com/djdv/go-flashcache/trace"
)

func initZipfCmd() *cobra.Command {
	c := zipfConfig{}
	cmd := &cobra.Command{
		Use:   "zipf <CacheType> <ObjCount> <TraceLength> <BucketCount> <BucketSize>",
		Short: "replay a generated Zipf-like trace across independent buckets",
		Long: `
Generates TraceLength requests over ObjCount objects whose popularity
follows a Zipf-like distribution, hashes every request into one of
BucketCount buckets, and replays it against a CacheType cache of
BucketSize bytes per bucket.
`,
		Args: cobra.ExactArgs(5),
		RunE: c.runE,
	}
	c.register(cmd)
	cmd.Flags().StringVar(
		&c.sizeFile, "size-file", "", "object size distribution; whitespace separated sizes")
	cmd.Flags().Uint64Var(
		&c.seed, "seed", 0, "generator seed (0 keeps the configured value)")
	return cmd
}

type zipfConfig struct {
	commonConfig
	sizeFile string
	seed     uint64
}

func (c *zipfConfig) runE(cmd *cobra.Command, args []string) error {
	cfg, err := c.load()
	if err != nil {
		return err
	}
	if err := c.applyArgs(cfg, args); err != nil {
		return err
	}
	s, err := newSimulator(cfg)
	if err != nil {
		return err
	}
	var sizes []int64
	if cfg.Trace.SizeFile != "" {
		if sizes, err = loadSizes(cfg.Trace.SizeFile); err != nil {
			return err
		}
	}
	src, err := trace.NewZipf(cfg.Trace.Objects, sizes, cfg.Trace.Seed)
	if err != nil {
		return err
	}
	// The generator never runs dry, so a zero length replays nothing
	// rather than handing Run its until-exhausted limit.
	if cfg.Trace.Length > 0 {
		if err := s.Run(src, cfg.Trace.Length); err != nil {
			return err
		}
	}
	return report(cmd.OutOrStdout(), cfg, s, c.oneline)
}

// applyArgs overrides cfg with the positional arguments.
func (c *zipfConfig) applyArgs(cfg *config.Configuration, args []string) error {
	cfg.Policy = args[0]
	objects, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return errors.Wrap(err, "ObjCount")
	}
	length, err := strconv.ParseUint(args[2], 10, 64)
	if err != nil {
		return errors.Wrap(err, "TraceLength")
	}
	shards, err := strconv.Atoi(args[3])
	if err != nil {
		return errors.Wrap(err, "BucketCount")
	}
	cfg.Trace.Objects = objects
	cfg.Trace.Length = length
	cfg.Shards = shards
	cfg.ShardSize = args[4]
	if c.sizeFile != "" {
		cfg.Trace.SizeFile = c.sizeFile
	}
	if c.seed != 0 {
		cfg.Trace.Seed = c.seed
	}
	return nil
}

func loadSizes(path string) ([]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return trace.LoadSizes(f)
}
