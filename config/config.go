package config

import (
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"

	"github.com/angeloszaimis/service-router/internal/httpserver"
	"github.com/angeloszaimis/service-router/internal/strategy"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	Environment string `mapstructure:"environment"`
}

type RouterConfig struct {
	Strategy              string        `mapstructure:"strategy"`
	FileTierURL           string        `mapstructure:"file_tier_url"`
	Staleness             time.Duration `mapstructure:"staleness"`
	ParallelProbes        bool          `mapstructure:"parallel_probes"`
	ProbeConcurrency      int           `mapstructure:"probe_concurrency"`
	LeastConnHealthFilter bool          `mapstructure:"least_conn_health_filter"`
}

type ProbeConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type PoolsConfig struct {
	Database []string `mapstructure:"database"`
	Web      []string `mapstructure:"web"`
	File     []string `mapstructure:"file"`
}

type UploadConfig struct {
	Address           string  `mapstructure:"address"`
	Dir               string  `mapstructure:"dir"`
	SanitizeFilenames bool    `mapstructure:"sanitize_filenames"`
	RateLimit         float64 `mapstructure:"rate_limit"`
	Burst             int     `mapstructure:"burst"`
}

type FileTierConfig struct {
	Address         string        `mapstructure:"address"`
	Staleness       time.Duration `mapstructure:"staleness"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

type MetricsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Router   RouterConfig   `mapstructure:"router"`
	Probe    ProbeConfig    `mapstructure:"probe"`
	Pools    PoolsConfig    `mapstructure:"pools"`
	Upload   UploadConfig   `mapstructure:"upload"`
	FileTier FileTierConfig `mapstructure:"file_tier"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// Load reads config.yaml from ./config or the working directory. A missing
// file is not an error; defaults and environment variables still apply.
func Load() (*Config, error) {
	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Warn("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	return decode(v)
}

// LoadFile reads the config from an explicit path, which must exist.
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		slog.Error("failed to read config file",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return nil, err
	}
	slog.Info("loaded config file", slog.String("file", v.ConfigFileUsed()))

	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.environment", EnvDev)

	v.SetDefault("router.strategy", strategy.RoundRobin)
	v.SetDefault("router.file_tier_url", "http://localhost:8704")
	v.SetDefault("router.staleness", "30s")
	v.SetDefault("router.parallel_probes", false)
	v.SetDefault("router.probe_concurrency", 4)
	v.SetDefault("router.least_conn_health_filter", false)

	v.SetDefault("probe.timeout", "2s")

	v.SetDefault("pools.database", []string{"http://localhost:8502", "http://localhost:8503", "http://localhost:8504"})
	v.SetDefault("pools.web", []string{"http://localhost:8511", "http://localhost:8512", "http://localhost:8513"})
	v.SetDefault("pools.file", []string{"http://localhost:8701", "http://localhost:8702", "http://localhost:8703"})

	v.SetDefault("upload.address", ":8701")
	v.SetDefault("upload.dir", "uploads")
	v.SetDefault("upload.sanitize_filenames", false)
	v.SetDefault("upload.rate_limit", 0)
	v.SetDefault("upload.burst", 1)

	v.SetDefault("file_tier.address", ":8704")
	v.SetDefault("file_tier.staleness", "0s")
	v.SetDefault("file_tier.refresh_interval", "0s")

	v.SetDefault("metrics.buffer_size", 1000)
	v.SetDefault("logging.level", LogLevelInfo)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}
	cfg.Router.Strategy = strings.ToLower(strings.TrimSpace(cfg.Router.Strategy))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server),
		validation.Field(&c.Router),
		validation.Field(&c.Probe),
		validation.Field(&c.Pools),
		validation.Field(&c.Upload),
		validation.Field(&c.FileTier),
		validation.Field(&c.Metrics),
		validation.Field(&c.Logging),
	)
}

func (s ServerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Environment,
			validation.Required,
			validation.In(EnvDev, EnvStaging, EnvProd),
		),
		validation.Field(&s.Address,
			validation.Required,
			validation.By(httpserver.ValidateHostPort),
		),
	)
}

func (r RouterConfig) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Strategy,
			validation.Required,
			validation.In(strategy.RoundRobin, strategy.LeastConnections, strategy.LeastConnAlias),
		),
		validation.Field(&r.FileTierURL,
			validation.Required,
			validation.By(validateServerURL),
		),
		validation.Field(&r.Staleness, validation.Min(time.Duration(0))),
		validation.Field(&r.ProbeConcurrency, validation.Required, validation.Min(1)),
	)
}

func (p ProbeConfig) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Timeout, validation.Required, validation.Min(time.Millisecond)),
	)
}

// Empty pools are allowed; routing to them fails with ErrNoInstanceConfigured.
func (p PoolsConfig) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Database, validation.Each(validation.By(validateServerURL))),
		validation.Field(&p.Web, validation.Each(validation.By(validateServerURL))),
		validation.Field(&p.File, validation.Each(validation.By(validateServerURL))),
	)
}

func (u UploadConfig) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.Address,
			validation.Required,
			validation.By(httpserver.ValidateHostPort),
		),
		validation.Field(&u.Dir, validation.Required),
		validation.Field(&u.RateLimit, validation.Min(0.0)),
		validation.Field(&u.Burst, validation.Required, validation.Min(1)),
	)
}

func (f FileTierConfig) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Address,
			validation.Required,
			validation.By(httpserver.ValidateHostPort),
		),
		validation.Field(&f.Staleness, validation.Min(time.Duration(0))),
		validation.Field(&f.RefreshInterval, validation.Min(time.Duration(0))),
	)
}

func (m MetricsConfig) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.BufferSize, validation.Required, validation.Min(1)),
	)
}

func (l LoggingConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level,
			validation.Required,
			validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
		),
	)
}

func validateServerURL(value interface{}) error {
	serverURL, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if serverURL == "" {
		return validation.NewError("validation_empty_url", "server URL cannot be empty")
	}

	parsedURL, err := url.Parse(serverURL)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	return nil
}
