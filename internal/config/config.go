// Package config loads the omnibatch command configuration from defaults,
// an optional YAML file and OMNIBATCH_* environment variables, in that
// order of precedence.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"

	"github.com/grokify/omnibatch"
	"github.com/grokify/omnibatch/filter"
	"github.com/grokify/omnibatch/internal/logging"
	"github.com/grokify/omnibatch/source"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "OMNIBATCH"

// Config holds all command configuration.
type Config struct {
	Source  SourceConfig  `yaml:"source"`
	Reader  ReaderConfig  `yaml:"reader"`
	Logging LogConfig     `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// SourceConfig selects and decodes the data sources.
type SourceConfig struct {
	// Roots are local files or directories to enumerate. Ignored when
	// Store is set.
	Roots []string `yaml:"roots" split_words:"true"`

	// Store is a registered store name ("file", "memory", "s3", "sftp"). Empty
	// reads Roots from the local filesystem.
	Store       string            `yaml:"store" split_words:"true"`
	StoreConfig map[string]string `yaml:"store_config" split_words:"true"`
	Prefix      string            `yaml:"prefix" split_words:"true"`

	Pattern string   `yaml:"pattern" split_words:"true"`
	Include []string `yaml:"include" split_words:"true"`
	Exclude []string `yaml:"exclude" split_words:"true"`
	MinSize int64    `yaml:"min_size" split_words:"true"`
	MaxSize int64    `yaml:"max_size" split_words:"true"`

	// MinAge and MaxAge bound the time since a file was last modified,
	// e.g. "10m" to leave out files that may still be written.
	MinAge time.Duration `yaml:"min_age" split_words:"true"`
	MaxAge time.Duration `yaml:"max_age" split_words:"true"`

	// FilterFile names a rules file of "+ pattern" includes and
	// "- pattern" excludes, applied after Include and Exclude.
	FilterFile string `yaml:"filter_file" split_words:"true"`

	Compression string `yaml:"compression" split_words:"true"`
	MemoryMap   bool   `yaml:"memory_map" split_words:"true"`

	RequiredFields []string `yaml:"required_fields" split_words:"true"`
	Validate       bool     `yaml:"validate" split_words:"true"`
	MaxLineSize    int      `yaml:"max_line_size" split_words:"true"`
}

// ReaderConfig mirrors omnibatch.Params.
type ReaderConfig struct {
	BatchSize          int   `yaml:"batch_size" split_words:"true"`
	NumInstancesToSkip int64 `yaml:"num_instances_to_skip" split_words:"true"`

	// NumInstancesToRead bounds the stream; a negative value means
	// unbounded.
	NumInstancesToRead int64 `yaml:"num_instances_to_read" split_words:"true"`

	ShardIndex int    `yaml:"shard_index" split_words:"true"`
	ShardCount int    `yaml:"shard_count" split_words:"true"`
	LastBatch  string `yaml:"last_batch" split_words:"true"`
	SkipScope  string `yaml:"skip_scope" split_words:"true"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `yaml:"level" split_words:"true"`
	Development bool   `yaml:"development" split_words:"true"`
}

// MetricsConfig holds the Prometheus endpoint configuration.
type MetricsConfig struct {
	// Addr is the listen address of the /metrics endpoint. Empty disables
	// it.
	Addr string `yaml:"addr" split_words:"true"`
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			Compression: "infer",
		},
		Reader: ReaderConfig{
			BatchSize:          32,
			NumInstancesToRead: -1,
			ShardCount:         1,
			LastBatch:          "keep",
			SkipScope:          "global",
		},
		Logging: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration with Read and validates it.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read reads configuration without validating it. path names an optional
// YAML file; environment variables override both the file and the
// defaults.
func Read(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration can build a pipeline.
func (c *Config) Validate() error {
	if _, err := c.Params(); err != nil {
		return err
	}
	if _, err := c.SourceOptions(); err != nil {
		return err
	}
	f, err := c.Filter()
	if err != nil {
		return err
	}
	if err := f.Validate(); err != nil {
		return err
	}
	if c.Source.Store == "" && len(c.Source.Roots) == 0 {
		return fmt.Errorf("%w: no roots and no store configured", omnibatch.ErrInvalidConfig)
	}
	return nil
}

// Params converts the reader section to omnibatch.Params.
func (c *Config) Params() (*omnibatch.Params, error) {
	lastBatch, err := omnibatch.ParseLastBatchHandling(c.Reader.LastBatch)
	if err != nil {
		return nil, err
	}
	scope, err := omnibatch.ParseSkipScope(c.Reader.SkipScope)
	if err != nil {
		return nil, err
	}

	opts := []omnibatch.ParamOption{
		omnibatch.WithNumInstancesToSkip(c.Reader.NumInstancesToSkip),
		omnibatch.WithShard(c.Reader.ShardIndex, c.Reader.ShardCount),
		omnibatch.WithLastBatchHandling(lastBatch),
		omnibatch.WithSkipScope(scope),
	}
	if c.Reader.NumInstancesToRead >= 0 {
		opts = append(opts, omnibatch.WithNumInstancesToRead(c.Reader.NumInstancesToRead))
	}
	return omnibatch.NewParams(c.Reader.BatchSize, opts...)
}

// SourceOptions returns the options applied to every enumerated source.
func (c *Config) SourceOptions() ([]source.Option, error) {
	compression, err := omnibatch.ParseCompression(c.Source.Compression)
	if err != nil {
		return nil, err
	}
	return []source.Option{
		source.WithCompression(compression),
		source.WithMemoryMap(c.Source.MemoryMap),
	}, nil
}

// Filter builds the enumeration filter from the include, exclude, size
// and age rules and the optional rules file.
func (c *Config) Filter() (*filter.Filter, error) {
	var opts []filter.Option
	for _, p := range c.Source.Include {
		opts = append(opts, filter.Include(p))
	}
	for _, p := range c.Source.Exclude {
		opts = append(opts, filter.Exclude(p))
	}
	if c.Source.FilterFile != "" {
		fromFile, err := filter.FromFile(c.Source.FilterFile)
		if err != nil {
			return nil, fmt.Errorf("%w: filter file: %v", omnibatch.ErrInvalidConfig, err)
		}
		opts = append(opts, fromFile)
	}
	if c.Source.MinSize > 0 {
		opts = append(opts, filter.MinSize(c.Source.MinSize))
	}
	if c.Source.MaxSize > 0 {
		opts = append(opts, filter.MaxSize(c.Source.MaxSize))
	}
	if c.Source.MinAge > 0 {
		opts = append(opts, filter.MinAge(c.Source.MinAge))
	}
	if c.Source.MaxAge > 0 {
		opts = append(opts, filter.MaxAge(c.Source.MaxAge))
	}
	return filter.New(opts...), nil
}

// LoggingConfig converts the logging section for the logging package.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Logging.Level
	cfg.Development = c.Logging.Development
	return cfg
}
