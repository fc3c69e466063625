package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix is the prefix for environment variable overrides, e.g.
	// GATEWAYBENCH_ORCHESTRATOR_PATTERN.
	EnvPrefix = "GATEWAYBENCH"

	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultPattern selects test unit files by name.
	DefaultPattern = "test_*.py"

	// DefaultDir is the default discovery root.
	DefaultDir = "."

	// DefaultLogDir is the default directory for per-unit log files.
	DefaultLogDir = "./test_logs"

	// DefaultResultsDir is the default directory for benchmark reports.
	DefaultResultsDir = "./bench_results"

	// DefaultIndexPath is the default sqlite database for the run index.
	DefaultIndexPath = "./gatewaybench.db"

	// DefaultListen is the default listen address of the results API.
	DefaultListen = ":9090"
)

// Service names of the external collaborators.
const (
	ServiceAuth    = "auth"
	ServiceCatalog = "catalog"
	ServiceOrder   = "order"
	ServicePayment = "payment"
	ServiceGraphQL = "graphql"
)

// KnownServices lists every service the benchmark knows how to talk to.
var KnownServices = []string{
	ServiceAuth,
	ServiceCatalog,
	ServiceOrder,
	ServicePayment,
	ServiceGraphQL,
}

// Config is the root configuration for gatewaybench.
type Config struct {
	Global        GlobalConfig        `yaml:"global" mapstructure:"global"`
	Orchestrator  OrchestratorConfig  `yaml:"orchestrator" mapstructure:"orchestrator"`
	Benchmark     BenchmarkConfig     `yaml:"benchmark" mapstructure:"benchmark"`
	ResultsUpload ResultsUploadConfig `yaml:"results_upload" mapstructure:"results_upload"`
	API           APIConfig           `yaml:"api" mapstructure:"api"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel     string `yaml:"log_level" mapstructure:"log_level"`
	ResultsOwner string `yaml:"results_owner,omitempty" mapstructure:"results_owner"`
}

// OrchestratorConfig controls test unit discovery and execution.
type OrchestratorConfig struct {
	Dir           string `yaml:"dir" mapstructure:"dir"`
	Pattern       string `yaml:"pattern" mapstructure:"pattern"`
	LogDir        string `yaml:"log_dir" mapstructure:"log_dir"`
	StopOnFailure bool   `yaml:"stop_on_failure" mapstructure:"stop_on_failure"`
	JUnitReport   string `yaml:"junit_report,omitempty" mapstructure:"junit_report"`
	// Interpreters maps a file extension (without the dot) to the command
	// used to run units with that extension. Units with an unmapped
	// extension are executed directly.
	Interpreters map[string][]string `yaml:"interpreters" mapstructure:"interpreters"`
	Index        IndexConfig         `yaml:"index" mapstructure:"index"`
}

// IndexConfig configures the optional run index database.
type IndexConfig struct {
	Enabled  bool           `yaml:"enabled" mapstructure:"enabled"`
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
}

// DatabaseConfig selects and configures a database driver.
type DatabaseConfig struct {
	Driver   string                 `yaml:"driver" mapstructure:"driver"`
	SQLite   SQLiteDatabaseConfig   `yaml:"sqlite,omitempty" mapstructure:"sqlite"`
	Postgres PostgresDatabaseConfig `yaml:"postgres,omitempty" mapstructure:"postgres"`
}

// SQLiteDatabaseConfig contains sqlite settings.
type SQLiteDatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresDatabaseConfig contains postgres connection settings.
type PostgresDatabaseConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"sslmode" mapstructure:"sslmode"`
}

// BenchmarkConfig contains benchmark harness settings.
type BenchmarkConfig struct {
	Services         map[string]string `yaml:"services" mapstructure:"services"`
	RequiredServices []string          `yaml:"required_services" mapstructure:"required_services"`
	Timeouts         TimeoutsConfig    `yaml:"timeouts" mapstructure:"timeouts"`
	Health           HealthConfig      `yaml:"health" mapstructure:"health"`
	Setup            SetupConfig       `yaml:"setup" mapstructure:"setup"`
	ResultsDir       string            `yaml:"results_dir" mapstructure:"results_dir"`
}

// TimeoutsConfig holds per-call timeouts. Aggregated queries do more
// server-side work per call and get the longest budget.
type TimeoutsConfig struct {
	Health     time.Duration `yaml:"health" mapstructure:"health"`
	Lookup     time.Duration `yaml:"lookup" mapstructure:"lookup"`
	Create     time.Duration `yaml:"create" mapstructure:"create"`
	Aggregated time.Duration `yaml:"aggregated" mapstructure:"aggregated"`
}

// HealthConfig controls how health checks are retried.
type HealthConfig struct {
	Attempts uint          `yaml:"attempts" mapstructure:"attempts"`
	Delay    time.Duration `yaml:"delay" mapstructure:"delay"`
}

// SetupConfig controls benchmark data seeding.
type SetupConfig struct {
	Products       int    `yaml:"products" mapstructure:"products"`
	Orders         int    `yaml:"orders" mapstructure:"orders"`
	ItemsPerOrder  int    `yaml:"items_per_order" mapstructure:"items_per_order"`
	FallbackUserID string `yaml:"fallback_user_id,omitempty" mapstructure:"fallback_user_id"`
	Password       string `yaml:"password" mapstructure:"password"`
}

// ResultsUploadConfig configures where results are uploaded.
type ResultsUploadConfig struct {
	S3 S3UploadConfig `yaml:"s3" mapstructure:"s3"`
}

// S3UploadConfig contains S3-compatible storage settings.
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
}

// Load reads configuration from path (optional), applies defaults and
// environment overrides and returns the decoded result.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config

	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))

	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers a default for every key so that each one can be
// overridden from the environment even when absent from the file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("global.log_level", DefaultLogLevel)
	v.SetDefault("global.results_owner", "")

	v.SetDefault("orchestrator.dir", DefaultDir)
	v.SetDefault("orchestrator.pattern", DefaultPattern)
	v.SetDefault("orchestrator.log_dir", DefaultLogDir)
	v.SetDefault("orchestrator.stop_on_failure", false)
	v.SetDefault("orchestrator.junit_report", "")
	v.SetDefault("orchestrator.interpreters", map[string][]string{
		"py": {"python3"},
		"sh": {"bash"},
	})
	v.SetDefault("orchestrator.index.enabled", false)
	v.SetDefault("orchestrator.index.database.driver", "sqlite")
	v.SetDefault("orchestrator.index.database.sqlite.path", DefaultIndexPath)
	v.SetDefault("orchestrator.index.database.postgres.host", "localhost")
	v.SetDefault("orchestrator.index.database.postgres.port", 5432)
	v.SetDefault("orchestrator.index.database.postgres.user", "")
	v.SetDefault("orchestrator.index.database.postgres.password", "")
	v.SetDefault("orchestrator.index.database.postgres.database", "gatewaybench")
	v.SetDefault("orchestrator.index.database.postgres.sslmode", "disable")

	v.SetDefault("benchmark.services.auth", "http://localhost:8001")
	v.SetDefault("benchmark.services.catalog", "http://localhost:8002")
	v.SetDefault("benchmark.services.order", "http://localhost:8003")
	v.SetDefault("benchmark.services.payment", "http://localhost:8004")
	v.SetDefault("benchmark.services.graphql", "http://localhost:8000")
	v.SetDefault("benchmark.required_services", KnownServices)
	v.SetDefault("benchmark.timeouts.health", 5*time.Second)
	v.SetDefault("benchmark.timeouts.lookup", 5*time.Second)
	v.SetDefault("benchmark.timeouts.create", 10*time.Second)
	v.SetDefault("benchmark.timeouts.aggregated", 30*time.Second)
	v.SetDefault("benchmark.health.attempts", 3)
	v.SetDefault("benchmark.health.delay", time.Second)
	v.SetDefault("benchmark.setup.products", 3)
	v.SetDefault("benchmark.setup.orders", 2)
	v.SetDefault("benchmark.setup.items_per_order", 2)
	v.SetDefault("benchmark.setup.fallback_user_id", "")
	v.SetDefault("benchmark.setup.password", "benchpass123")
	v.SetDefault("benchmark.results_dir", DefaultResultsDir)

	v.SetDefault("results_upload.s3.enabled", false)
	v.SetDefault("results_upload.s3.endpoint_url", "")
	v.SetDefault("results_upload.s3.region", "")
	v.SetDefault("results_upload.s3.bucket", "")
	v.SetDefault("results_upload.s3.access_key_id", "")
	v.SetDefault("results_upload.s3.secret_access_key", "")
	v.SetDefault("results_upload.s3.prefix", "")
	v.SetDefault("results_upload.s3.storage_class", "")
	v.SetDefault("results_upload.s3.acl", "")
	v.SetDefault("results_upload.s3.force_path_style", false)

	v.SetDefault("api.listen", DefaultListen)
	v.SetDefault("api.cors_origins", []string{"*"})
	v.SetDefault("api.rate_limit.enabled", false)
	v.SetDefault("api.rate_limit.requests_per_minute", 120)
}

// ValidateOrchestrator checks the settings used by the test command.
func (c *Config) ValidateOrchestrator() error {
	o := c.Orchestrator

	if o.Dir == "" {
		return fmt.Errorf("orchestrator.dir is required")
	}

	if o.Pattern == "" {
		return fmt.Errorf("orchestrator.pattern is required")
	}

	if _, err := filepath.Match(o.Pattern, ""); err != nil {
		return fmt.Errorf("orchestrator.pattern %q: %w", o.Pattern, err)
	}

	if o.LogDir == "" {
		return fmt.Errorf("orchestrator.log_dir is required")
	}

	for ext, argv := range o.Interpreters {
		if len(argv) == 0 || argv[0] == "" {
			return fmt.Errorf("orchestrator.interpreters[%q]: command is empty", ext)
		}
	}

	if o.Index.Enabled {
		if err := o.Index.Database.validate(); err != nil {
			return fmt.Errorf("orchestrator.index: %w", err)
		}
	}

	return c.validateUpload()
}

// ValidateBenchmark checks the settings used by the bench command.
func (c *Config) ValidateBenchmark() error {
	b := c.Benchmark

	known := make(map[string]struct{}, len(KnownServices))
	for _, name := range KnownServices {
		known[name] = struct{}{}
	}

	for _, name := range b.RequiredServices {
		if _, ok := known[name]; !ok {
			return fmt.Errorf("benchmark.required_services: unknown service %q", name)
		}
	}

	// Every service is used by setup or a scenario, required or not.
	for _, name := range KnownServices {
		raw := b.Services[name]
		if raw == "" {
			if name == ServicePayment {
				continue
			}

			return fmt.Errorf("benchmark.services.%s is required", name)
		}

		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("benchmark.services.%s: invalid URL %q", name, raw)
		}
	}

	t := b.Timeouts
	if t.Health <= 0 || t.Lookup <= 0 || t.Create <= 0 || t.Aggregated <= 0 {
		return fmt.Errorf("benchmark.timeouts: all timeouts must be positive")
	}

	if b.Health.Attempts == 0 {
		return fmt.Errorf("benchmark.health.attempts must be at least 1")
	}

	s := b.Setup
	if s.Products < 0 || s.Orders < 0 || s.ItemsPerOrder < 0 {
		return fmt.Errorf("benchmark.setup: counts must not be negative")
	}

	if b.ResultsDir == "" {
		return fmt.Errorf("benchmark.results_dir is required")
	}

	return c.validateUpload()
}

// ValidateAPI checks the settings used by the serve command.
func (c *Config) ValidateAPI() error {
	if c.API.Listen == "" {
		return fmt.Errorf("api.listen is required")
	}

	if c.API.RateLimit.Enabled && c.API.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("api.rate_limit.requests_per_minute must be positive")
	}

	if !c.Orchestrator.Index.Enabled {
		return fmt.Errorf("orchestrator.index must be enabled to serve runs")
	}

	return c.Orchestrator.Index.Database.validate()
}

func (c *Config) validateUpload() error {
	s3 := c.ResultsUpload.S3
	if !s3.Enabled {
		return nil
	}

	if s3.Bucket == "" {
		return fmt.Errorf("results_upload.s3.bucket is required when enabled")
	}

	if (s3.AccessKeyID == "") != (s3.SecretAccessKey == "") {
		return fmt.Errorf("results_upload.s3: access_key_id and secret_access_key must be set together")
	}

	return nil
}

func (d DatabaseConfig) validate() error {
	switch d.Driver {
	case "sqlite":
		if d.SQLite.Path == "" {
			return fmt.Errorf("sqlite.path is required")
		}
	case "postgres":
		if d.Postgres.Host == "" || d.Postgres.Database == "" {
			return fmt.Errorf("postgres.host and postgres.database are required")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", d.Driver)
	}

	return nil
}

// ServiceURL returns the base URL of a service without a trailing slash.
func (b *BenchmarkConfig) ServiceURL(name string) string {
	return strings.TrimRight(b.Services[name], "/")
}

// InterpreterFor returns the interpreter command for a unit path, or nil
// when the file should be executed directly.
func (o *OrchestratorConfig) InterpreterFor(path string) []string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return nil
	}

	return o.Interpreters[ext]
}
