package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"kvbench/internal/keygen"
	"kvbench/internal/storage"
)

var ErrInvalidConfig = fmt.Errorf("invalid configuration")

type Config struct {
	Benchmark BenchmarkConfig       `yaml:"benchmark" toml:"benchmark" json:"benchmark"`
	Logging   LoggingConfig         `yaml:"logging" toml:"logging" json:"logging"`
	Metrics   MetricsConfig         `yaml:"metrics" toml:"metrics" json:"metrics"`
	Tracing   TracingConfig         `yaml:"tracing" toml:"tracing" json:"tracing"`
	Engines   storage.EngineOptions `yaml:"engines" toml:"engines" json:"engines"`
}

// BenchmarkConfig describes one run. It is not modified after Validate.
type BenchmarkConfig struct {
	Engine     string         `yaml:"engine" toml:"engine" json:"engine"`
	Operations int            `yaml:"operations" toml:"operations" json:"operations"`
	KeySize    int            `yaml:"key_size" toml:"key_size" json:"key_size"`
	ValueSize  int            `yaml:"value_size" toml:"value_size" json:"value_size"`
	Threads    int            `yaml:"threads" toml:"threads" json:"threads"`
	BatchSize  int            `yaml:"batch_size" toml:"batch_size" json:"batch_size"`
	DBPath     string         `yaml:"db_path" toml:"db_path" json:"db_path"`
	Pattern    keygen.Pattern `yaml:"pattern" toml:"pattern" json:"pattern"`
	Workload   Workload       `yaml:"workload" toml:"workload" json:"workload"`
	Sync       bool           `yaml:"sync" toml:"sync" json:"sync"`
	ZipfTheta  float64        `yaml:"zipf_theta" toml:"zipf_theta" json:"zipf_theta"`
	Seed       uint64         `yaml:"seed" toml:"seed" json:"seed"`
	Compare    bool           `yaml:"compare" toml:"compare" json:"compare"`
	Baseline   string         `yaml:"baseline" toml:"baseline" json:"baseline"`
	ReportPath string         `yaml:"report" toml:"report" json:"report,omitempty"`
	JSONPath   string         `yaml:"json" toml:"json" json:"json,omitempty"`
	KeepDB     bool           `yaml:"keep_db" toml:"keep_db" json:"keep_db"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level" json:"level"`
	Format string `yaml:"format" toml:"format" json:"format"`
	Output string `yaml:"output" toml:"output" json:"output"`
}

// MetricsConfig controls the Prometheus textfile export of a run.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled" json:"enabled"`
	File      string `yaml:"file" toml:"file" json:"file"`
	Namespace string `yaml:"namespace" toml:"namespace" json:"namespace"`
}

type TracingConfig struct {
	Enabled        bool              `yaml:"enabled" toml:"enabled" json:"enabled"`
	ServiceName    string            `yaml:"service_name" toml:"service_name" json:"service_name"`
	ServiceVersion string            `yaml:"service_version" toml:"service_version" json:"service_version"`
	Environment    string            `yaml:"environment" toml:"environment" json:"environment"`
	ExporterType   string            `yaml:"exporter_type" toml:"exporter_type" json:"exporter_type"`
	OTLPEndpoint   string            `yaml:"otlp_endpoint" toml:"otlp_endpoint" json:"otlp_endpoint"`
	OTLPHeaders    map[string]string `yaml:"otlp_headers" toml:"otlp_headers" json:"-"`
	SamplingRatio  float64           `yaml:"sampling_ratio" toml:"sampling_ratio" json:"sampling_ratio"`
}

// Load builds a configuration with Read and validates the result.
func Load(configPath string) (*Config, error) {
	config, err := Read(configPath)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Read layers defaults, then the optional file at configPath, then a .env
// file in the working directory, then KVBENCH_* environment variables.
// The result is not validated; callers applying further overrides validate
// once they are done.
func Read(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	loadFromEnvironment(config)

	return config, nil
}

func DefaultConfig() *Config {
	return &Config{
		Benchmark: BenchmarkConfig{
			Engine:     "badger",
			Operations: 1000000,
			KeySize:    20,
			ValueSize:  100,
			Threads:    1,
			BatchSize:  1,
			DBPath:     "./bench_db",
			Pattern:    keygen.PatternRandom,
			Workload:   WorkloadMixed,
			ZipfTheta:  keygen.DefaultTheta,
			Baseline:   "pebble",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Namespace: "kvbench",
		},
		Tracing: TracingConfig{
			Enabled:        false,
			ServiceName:    "kvbench",
			ServiceVersion: "1.0.0",
			Environment:    "development",
			ExporterType:   "console",
			OTLPEndpoint:   "localhost:4318",
			OTLPHeaders:    make(map[string]string),
			SamplingRatio:  1.0,
		},
		Engines: storage.DefaultEngineOptions(),
	}
}

func loadFromFile(config *Config, configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(configPath))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to unmarshal YAML config: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), config); err != nil {
			return fmt.Errorf("failed to decode TOML config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}

	return nil
}

// loadDotEnv exports variables from path without overriding ones already
// set. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func loadFromEnvironment(config *Config) {
	b := &config.Benchmark

	if engine := os.Getenv("KVBENCH_ENGINE"); engine != "" {
		b.Engine = engine
	}
	envInt("KVBENCH_OPERATIONS", &b.Operations)
	envInt("KVBENCH_KEY_SIZE", &b.KeySize)
	envInt("KVBENCH_VALUE_SIZE", &b.ValueSize)
	envInt("KVBENCH_THREADS", &b.Threads)
	envInt("KVBENCH_BATCH_SIZE", &b.BatchSize)
	if dbPath := os.Getenv("KVBENCH_DB_PATH"); dbPath != "" {
		b.DBPath = dbPath
	}
	if pattern := os.Getenv("KVBENCH_PATTERN"); pattern != "" {
		b.Pattern = keygen.Pattern(pattern)
	}
	if workload := os.Getenv("KVBENCH_WORKLOAD"); workload != "" {
		b.Workload = Workload(workload)
	}
	envBool("KVBENCH_SYNC", &b.Sync)
	if baseline := os.Getenv("KVBENCH_BASELINE"); baseline != "" {
		b.Baseline = baseline
	}

	// Logging configuration
	if level := os.Getenv("KVBENCH_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("KVBENCH_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}

	// Metrics configuration
	if file := os.Getenv("KVBENCH_METRICS_FILE"); file != "" {
		config.Metrics.Enabled = true
		config.Metrics.File = file
	}

	// Tracing configuration
	envBool("KVBENCH_TRACING_ENABLED", &config.Tracing.Enabled)
	if endpoint := os.Getenv("KVBENCH_OTLP_ENDPOINT"); endpoint != "" {
		config.Tracing.OTLPEndpoint = endpoint
	}

	if password := os.Getenv("KVBENCH_REDIS_PASSWORD"); password != "" {
		config.Engines.Redis.Password = password
	}
}

func envInt(name string, dst *int) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(name string, dst *bool) {
	if v := os.Getenv(name); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// Validate checks the configuration and normalizes pattern and workload
// tokens to their canonical form.
func (c *Config) Validate() error {
	b := &c.Benchmark

	// Benchmark validation
	if b.Engine == "" {
		return fmt.Errorf("%w: storage engine cannot be empty", ErrInvalidConfig)
	}
	if b.Operations <= 0 || b.KeySize <= 0 || b.ValueSize <= 0 || b.Threads <= 0 || b.BatchSize <= 0 {
		return fmt.Errorf("%w: all numeric parameters must be positive", ErrInvalidConfig)
	}
	if b.Threads > b.Operations {
		return fmt.Errorf("%w: %d threads leave no operations for some workers (%d operations)",
			ErrInvalidConfig, b.Threads, b.Operations)
	}
	if b.DBPath == "" {
		return fmt.Errorf("%w: database path cannot be empty", ErrInvalidConfig)
	}

	pattern, err := keygen.ParsePattern(string(b.Pattern))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	b.Pattern = pattern

	workload, err := ParseWorkload(string(b.Workload))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	b.Workload = workload

	minKey, err := keygen.MinKeySize(b.Pattern, b.Operations)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if b.KeySize < minKey {
		return fmt.Errorf("%w: key size %d cannot hold %s keys for %d operations, need at least %d: %w",
			ErrInvalidConfig, b.KeySize, b.Pattern, b.Operations, minKey, keygen.ErrKeyTooSmall)
	}

	if b.ZipfTheta <= 0 || b.ZipfTheta >= 1 {
		return fmt.Errorf("%w: zipf theta must be in (0, 1), got %g", ErrInvalidConfig, b.ZipfTheta)
	}
	if b.Compare && b.Baseline == "" {
		return fmt.Errorf("%w: compare mode needs a baseline engine", ErrInvalidConfig)
	}

	// Logging validation
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("%w: invalid log level: %s", ErrInvalidConfig, c.Logging.Level)
	}
	validFormats := map[string]bool{
		"json": true, "text": true, "console": true,
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("%w: invalid log format: %s", ErrInvalidConfig, c.Logging.Format)
	}

	// Metrics validation
	if c.Metrics.Enabled && c.Metrics.File == "" {
		return fmt.Errorf("%w: metrics file cannot be empty when metrics are enabled", ErrInvalidConfig)
	}

	// Tracing validation
	if c.Tracing.Enabled {
		switch c.Tracing.ExporterType {
		case "console", "otlp":
		default:
			return fmt.Errorf("%w: unsupported tracing exporter: %s", ErrInvalidConfig, c.Tracing.ExporterType)
		}
		if c.Tracing.SamplingRatio < 0 || c.Tracing.SamplingRatio > 1 {
			return fmt.Errorf("%w: sampling ratio must be in [0, 1], got %g", ErrInvalidConfig, c.Tracing.SamplingRatio)
		}
	}

	return nil
}

// StorageOptions returns the options used to open the benchmarked engine.
func (c *Config) StorageOptions() storage.Options {
	return storage.Options{
		Path:    c.Benchmark.DBPath,
		Engines: c.Engines,
	}.WithSync(c.Benchmark.Sync)
}

func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}
