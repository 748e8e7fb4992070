// Package config loads simulation settings from YAML.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v2"

	"github.com/djdv/go-flashcache/policy"
)

type constError string

// ErrInvalidConfig may be returned from [Configuration.Validate]
// and [ParseSize].
const ErrInvalidConfig = constError("invalid configuration")

func (errStr constError) Error() string { return string(errStr) }

type (
	// Configuration represents a complete simulation setup.
	Configuration struct {
		Policy      string            `yaml:"policy"`
		Shards      int               `yaml:"shards"`
		ShardSize   string            `yaml:"shard_size"`
		Params      map[string]string `yaml:"params"`
		SampleEvery int               `yaml:"sample_every"`
		Trace       TraceConfig       `yaml:"trace"`
		Output      OutputConfig      `yaml:"output"`
	}
	// TraceConfig describes the generated trace.
	TraceConfig struct {
		Objects  int64  `yaml:"objects"`
		Length   uint64 `yaml:"length"`
		Seed     uint64 `yaml:"seed"`
		SizeFile string `yaml:"size_file"`
	}
	// OutputConfig selects optional outputs.
	OutputConfig struct {
		Plot        bool   `yaml:"plot"`
		MetricsFile string `yaml:"metrics_file"`
	}
)

// NewDefault creates a configuration with default values.
func NewDefault() *Configuration {
	return &Configuration{
		Policy:      "Flash",
		Shards:      1,
		ShardSize:   "64MB",
		Params:      make(map[string]string),
		SampleEvery: 10_000,
		Trace: TraceConfig{
			Objects: 1_000_000,
			Length:  10_000_000,
			Seed:    1,
		},
	}
}

// LoadFromFile overlays the YAML file onto c.
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return errors.Wrap(err, "failed to read config file")
	}
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return errors.Wrap(err, "failed to parse config file")
	}
	return nil
}

// SaveToFile writes c as YAML.
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}
	return nil
}

// Validate validates the configuration.
func (c *Configuration) Validate() error {
	if _, err := policy.New(c.Policy); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "%v", err)
	}
	if c.Shards <= 0 {
		return errors.Wrap(ErrInvalidConfig, "shards must be greater than 0")
	}
	size, err := ParseSize(c.ShardSize)
	if err != nil {
		return errors.Wrap(err, "shard_size")
	}
	if size <= 0 {
		return errors.Wrap(ErrInvalidConfig, "shard_size must be greater than 0")
	}
	if c.SampleEvery < 0 {
		return errors.Wrap(ErrInvalidConfig, "sample_every must not be negative")
	}
	if c.Trace.Objects <= 0 {
		return errors.Wrap(ErrInvalidConfig, "trace.objects must be greater than 0")
	}
	return nil
}

// ShardBytes returns the parsed shard size.
func (c *Configuration) ShardBytes() (int64, error) { return ParseSize(c.ShardSize) }

// Units are checked longest suffix first.
var units = []struct {
	suffix     string
	multiplier int64
}{
	{"TB", 1 << 40},
	{"GB", 1 << 30},
	{"MB", 1 << 20},
	{"KB", 1 << 10},
	{"B", 1},
}

// ParseSize parses a byte count such as "4096", "64MB" or "1.5GB".
// Units are binary.
func ParseSize(sizeStr string) (int64, error) {
	sizeStr = strings.ToUpper(strings.TrimSpace(sizeStr))
	if sizeStr == "" {
		return 0, errors.Wrap(ErrInvalidConfig, "empty size string")
	}
	if val, err := strconv.ParseInt(sizeStr, 10, 64); err == nil {
		return val, nil
	}
	for _, unit := range units {
		numStr, ok := strings.CutSuffix(sizeStr, unit.suffix)
		if !ok {
			continue
		}
		val, err := strconv.ParseFloat(strings.TrimSpace(numStr), 64)
		if err != nil {
			break
		}
		return int64(val * float64(unit.multiplier)), nil
	}
	return 0, errors.Wrapf(ErrInvalidConfig, "invalid size format: %s", sizeStr)
}
