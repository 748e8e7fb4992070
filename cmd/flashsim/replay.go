package main

import (
	"bufio"
	"os"

	"github.com/spf13/cobra"

	"github.com/djdv/go-flashcache/trace"
)

func initReplayCmd() *cobra.Command {
	c := replayConfig{}
	cmd := &cobra.Command{
		Use:   "replay <trace>",
		Short: "replay a recorded trace of `id size` or `time id size` lines",
		Args:  cobra.ExactArgs(1),
		RunE:  c.runE,
	}
	c.register(cmd)
	cmd.Flags().StringVar(
		&c.policy, "policy", "", "cache policy (empty keeps the configured value)")
	cmd.Flags().IntVar(
		&c.shards, "shards", 0, "number of independent shards (0 keeps the configured value)")
	cmd.Flags().StringVar(
		&c.shardSize, "shard-size", "", "capacity of every shard, such as 64MB")
	cmd.Flags().Uint64Var(
		&c.limit, "limit", 0, "maximum number of requests (0 replays the whole trace)")
	return cmd
}

type replayConfig struct {
	commonConfig
	policy    string
	shards    int
	shardSize string
	limit     uint64
}

func (c *replayConfig) runE(cmd *cobra.Command, args []string) error {
	cfg, err := c.load()
	if err != nil {
		return err
	}
	if c.policy != "" {
		cfg.Policy = c.policy
	}
	if c.shards != 0 {
		cfg.Shards = c.shards
	}
	if c.shardSize != "" {
		cfg.ShardSize = c.shardSize
	}
	s, err := newSimulator(cfg)
	if err != nil {
		return err
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	if err := s.Run(trace.NewReader(bufio.NewReader(f)), c.limit); err != nil {
		return err
	}
	return report(cmd.OutOrStdout(), cfg, s, c.oneline)
}
