package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix is the prefix of environment variables overriding config keys.
	EnvPrefix = "PGBENCHOOR"

	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultBenchmarksDir is the root searched for benchmark spec files.
	DefaultBenchmarksDir = "benchmarks"

	// DefaultSpecExtension is the file extension of benchmark spec files.
	DefaultSpecExtension = "yml"

	// DefaultLoadGenerator is the load generator binary looked up on PATH.
	DefaultLoadGenerator = "pgbench"

	// DefaultResultsDir is the default directory for benchmark results.
	DefaultResultsDir = "./results"

	// DefaultRepository is the repository cloned by the build-compare pipeline.
	DefaultRepository = "https://github.com/timescale/timescaledb.git"

	// DefaultDatabase is the database created on locally built instances.
	DefaultDatabase = "benchmarkdb"

	// DefaultStoreDriver is the default result store database driver.
	DefaultStoreDriver = "sqlite"
)

// Reporter names accepted in benchmark.reporters.
const (
	ReporterConsole = "console"
	ReporterJSON    = "json"
	ReporterStore   = "store"
)

// Config is the root configuration for pgbenchoor.
type Config struct {
	Global    GlobalConfig    `yaml:"global" mapstructure:"global"`
	Benchmark BenchmarkConfig `yaml:"benchmark" mapstructure:"benchmark"`
	Build     BuildConfig     `yaml:"build" mapstructure:"build"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel           string `yaml:"log_level" mapstructure:"log_level"`
	ToolOutputToStdout bool   `yaml:"tool_output_to_stdout" mapstructure:"tool_output_to_stdout"`
}

// BenchmarkConfig contains benchmark-specific settings.
type BenchmarkConfig struct {
	BenchmarksDir string              `yaml:"benchmarks_dir" mapstructure:"benchmarks_dir"`
	SpecExtension string              `yaml:"spec_extension" mapstructure:"spec_extension"`
	Include       []string            `yaml:"include,omitempty" mapstructure:"include"`
	LoadGenerator string              `yaml:"load_generator" mapstructure:"load_generator"`
	ResultsDir    string              `yaml:"results_dir" mapstructure:"results_dir"`
	Reporters     []string            `yaml:"reporters,omitempty" mapstructure:"reporters"`
	ResultsUpload ResultsUploadConfig `yaml:"results_upload,omitempty" mapstructure:"results_upload"`
	Store         StoreConfig         `yaml:"store,omitempty" mapstructure:"store"`
}

// ResultsUploadConfig configures uploading of results directories.
type ResultsUploadConfig struct {
	S3 S3UploadConfig `yaml:"s3,omitempty" mapstructure:"s3"`
}

// S3UploadConfig contains S3 settings for uploading results.
type S3UploadConfig struct {
	Enabled         bool   `yaml:"enabled" mapstructure:"enabled"`
	EndpointURL     string `yaml:"endpoint_url,omitempty" mapstructure:"endpoint_url"`
	Region          string `yaml:"region,omitempty" mapstructure:"region"`
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" mapstructure:"secret_access_key"`
	Prefix          string `yaml:"prefix,omitempty" mapstructure:"prefix"`
	StorageClass    string `yaml:"storage_class,omitempty" mapstructure:"storage_class"`
	ACL             string `yaml:"acl,omitempty" mapstructure:"acl"`
	ForcePathStyle  bool   `yaml:"force_path_style" mapstructure:"force_path_style"`
	Parallelism     int    `yaml:"parallelism,omitempty" mapstructure:"parallelism"`
}

// StoreConfig contains the result store database settings.
type StoreConfig struct {
	Driver   string               `yaml:"driver" mapstructure:"driver"`
	SQLite   SQLiteDatabaseConfig `yaml:"sqlite,omitempty" mapstructure:"sqlite"`
	Postgres PostgresConfig       `yaml:"postgres,omitempty" mapstructure:"postgres"`
}

// SQLiteDatabaseConfig contains SQLite-specific settings.
type SQLiteDatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"ssl_mode,omitempty" mapstructure:"ssl_mode"`
}

// BuildConfig contains the build-compare pipeline settings.
type BuildConfig struct {
	Repository string `yaml:"repository" mapstructure:"repository"`
	PGSource   string `yaml:"pg_source" mapstructure:"pg_source"`
	PGPath     string `yaml:"pg_path" mapstructure:"pg_path"`
	Database   string `yaml:"database" mapstructure:"database"`
	User       string `yaml:"user" mapstructure:"user"`
}

// Load reads the given configuration files in order, merging later files
// over earlier ones. Environment variables prefixed with PGBENCHOOR_ override
// file values; unset keys fall back to defaults. Without paths only defaults
// and the environment apply.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v)

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// setDefaults registers every key so that env overrides apply to keys
// absent from the files.
func setDefaults(v *viper.Viper) {
	v.SetDefault("global.log_level", DefaultLogLevel)
	v.SetDefault("global.tool_output_to_stdout", false)

	v.SetDefault("benchmark.benchmarks_dir", DefaultBenchmarksDir)
	v.SetDefault("benchmark.spec_extension", DefaultSpecExtension)
	v.SetDefault("benchmark.include", []string{})
	v.SetDefault("benchmark.load_generator", DefaultLoadGenerator)
	v.SetDefault("benchmark.results_dir", DefaultResultsDir)
	v.SetDefault("benchmark.reporters", []string{ReporterConsole})

	v.SetDefault("benchmark.results_upload.s3.enabled", false)
	v.SetDefault("benchmark.results_upload.s3.endpoint_url", "")
	v.SetDefault("benchmark.results_upload.s3.region", "")
	v.SetDefault("benchmark.results_upload.s3.bucket", "")
	v.SetDefault("benchmark.results_upload.s3.access_key_id", "")
	v.SetDefault("benchmark.results_upload.s3.secret_access_key", "")
	v.SetDefault("benchmark.results_upload.s3.prefix", "")
	v.SetDefault("benchmark.results_upload.s3.storage_class", "")
	v.SetDefault("benchmark.results_upload.s3.acl", "")
	v.SetDefault("benchmark.results_upload.s3.force_path_style", false)
	v.SetDefault("benchmark.results_upload.s3.parallelism", 4)

	v.SetDefault("benchmark.store.driver", DefaultStoreDriver)
	v.SetDefault("benchmark.store.sqlite.path", "")
	v.SetDefault("benchmark.store.postgres.host", "localhost")
	v.SetDefault("benchmark.store.postgres.port", 5432)
	v.SetDefault("benchmark.store.postgres.user", "")
	v.SetDefault("benchmark.store.postgres.password", "")
	v.SetDefault("benchmark.store.postgres.database", "")
	v.SetDefault("benchmark.store.postgres.ssl_mode", "disable")

	v.SetDefault("build.repository", DefaultRepository)
	v.SetDefault("build.pg_source", "")
	v.SetDefault("build.pg_path", "")
	v.SetDefault("build.database", DefaultDatabase)
	v.SetDefault("build.user", "")
}

// applyDefaults fills values that depend on other settings.
func (c *Config) applyDefaults() {
	if c.Benchmark.Store.SQLite.Path == "" {
		c.Benchmark.Store.SQLite.Path = filepath.Join(c.Benchmark.ResultsDir, "pgbenchoor.db")
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Global.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Global.LogLevel, err)
	}

	if c.Benchmark.BenchmarksDir == "" {
		return fmt.Errorf("benchmark.benchmarks_dir is required")
	}

	if strings.HasPrefix(c.Benchmark.SpecExtension, ".") {
		return fmt.Errorf("benchmark.spec_extension %q must not start with a dot", c.Benchmark.SpecExtension)
	}

	if c.Benchmark.LoadGenerator == "" {
		return fmt.Errorf("benchmark.load_generator is required")
	}

	for _, name := range c.Benchmark.Reporters {
		if !slices.Contains(validReporters, name) {
			return fmt.Errorf("unknown reporter %q (valid: %s)", name, strings.Join(validReporters, ", "))
		}
	}

	if c.HasReporter(ReporterStore) {
		if err := c.Benchmark.Store.Validate(); err != nil {
			return fmt.Errorf("benchmark.store: %w", err)
		}
	}

	if c.Benchmark.ResultsUpload.S3.Enabled {
		if err := c.Benchmark.ResultsUpload.S3.Validate(); err != nil {
			return fmt.Errorf("benchmark.results_upload.s3: %w", err)
		}

		if !c.HasReporter(ReporterJSON) {
			return fmt.Errorf("benchmark.results_upload.s3 requires the %q reporter", ReporterJSON)
		}
	}

	if c.Benchmark.ResultsDir != "" {
		dir := filepath.Dir(c.Benchmark.ResultsDir)
		if dir != "." && dir != ".." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("results directory parent %q does not exist", dir)
			}
		}
	}

	return nil
}

// validReporters is the list of supported reporter names.
var validReporters = []string{ReporterConsole, ReporterJSON, ReporterStore}

// HasReporter reports whether the named reporter is enabled.
func (c *Config) HasReporter(name string) bool {
	return slices.Contains(c.Benchmark.Reporters, name)
}

// Validate checks the store settings.
func (c *StoreConfig) Validate() error {
	switch c.Driver {
	case "sqlite":
		if c.SQLite.Path == "" {
			return fmt.Errorf("sqlite.path is required")
		}
	case "postgres":
		if c.Postgres.Host == "" {
			return fmt.Errorf("postgres.host is required")
		}

		if c.Postgres.Database == "" {
			return fmt.Errorf("postgres.database is required")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Driver)
	}

	return nil
}

// Validate checks the S3 upload settings.
func (c *S3UploadConfig) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("bucket is required")
	}

	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		return fmt.Errorf("access_key_id and secret_access_key must be set together")
	}

	if c.Parallelism < 1 {
		return fmt.Errorf("parallelism must be at least 1")
	}

	return nil
}

// ValidateForCommits checks the settings needed by the build-compare pipeline.
func (c *BuildConfig) ValidateForCommits() error {
	if c.Repository == "" {
		return fmt.Errorf("build.repository is required")
	}

	if c.PGSource == "" {
		return fmt.Errorf("build.pg_source (--pgsource) is required")
	}

	if c.PGPath == "" {
		return fmt.Errorf("build.pg_path (--pgpath) is required")
	}

	if c.Database == "" {
		return fmt.Errorf("build.database is required")
	}

	return nil
}
