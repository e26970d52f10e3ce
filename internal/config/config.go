// Package config loads tower-jumps configuration from config.yaml and
// TOWERJUMPS_* environment variables.
package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Inference InferenceConfig `yaml:"inference" mapstructure:"inference"`
	Regions   RegionsConfig   `yaml:"regions" mapstructure:"regions"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
}

// StoreConfig configures the database backend. For sqlite DatabaseURL is a
// file path or DSN.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver" validate:"oneof=postgres sqlite"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns" validate:"gte=0"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns" validate:"gte=0"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	CORSOrigins        []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RateLimitRPS       float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps" validate:"gte=0"`
	RateLimitBurst     int      `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst" validate:"gte=0"`
	RequestTimeoutSecs int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs" validate:"gte=0"`
}

// RequestTimeout returns the per-request deadline, zero when disabled.
func (s ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSecs) * time.Second
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=json console"`
}

// InferenceConfig selects the default strategy and its tuning.
type InferenceConfig struct {
	DefaultMethod int              `yaml:"default_method" mapstructure:"default_method" validate:"oneof=1 2"`
	Output        string           `yaml:"output" mapstructure:"output" validate:"oneof=summary timeline"`
	Clustering    ClusteringConfig `yaml:"clustering" mapstructure:"clustering"`
}

// ClusteringConfig tunes the DBSCAN + smoothing strategy.
type ClusteringConfig struct {
	EpsMeters       float64 `yaml:"eps_meters" mapstructure:"eps_meters" validate:"gt=0"`
	MinSamples      int     `yaml:"min_samples" mapstructure:"min_samples" validate:"gte=1"`
	ShortSwitchSecs int     `yaml:"short_switch_secs" mapstructure:"short_switch_secs" validate:"gte=0"`
	NoiseAsCluster  bool    `yaml:"noise_as_cluster" mapstructure:"noise_as_cluster"`
}

// ShortSwitch returns the smoothing threshold as a duration.
func (c ClusteringConfig) ShortSwitch() time.Duration {
	return time.Duration(c.ShortSwitchSecs) * time.Second
}

// RegionsConfig configures boundary import and lookup caching.
type RegionsConfig struct {
	ShapefileURL string `yaml:"shapefile_url" mapstructure:"shapefile_url"`
	TempDir      string `yaml:"temp_dir" mapstructure:"temp_dir"`
	CacheTTLSecs int    `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs" validate:"gte=0"`
}

// CacheTTL returns the resolver cache lifetime.
func (r RegionsConfig) CacheTTL() time.Duration {
	return time.Duration(r.CacheTTLSecs) * time.Second
}

// BatchConfig configures infer-all.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency" validate:"gte=1,lte=64"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TOWERJUMPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_limit_rps", 20.0)
	v.SetDefault("server.rate_limit_burst", 40)
	v.SetDefault("server.request_timeout_secs", 30)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("inference.default_method", 2)
	v.SetDefault("inference.output", "summary")
	v.SetDefault("inference.clustering.eps_meters", 300.0)
	v.SetDefault("inference.clustering.min_samples", 2)
	v.SetDefault("inference.clustering.short_switch_secs", 180)
	v.SetDefault("inference.clustering.noise_as_cluster", false)
	v.SetDefault("regions.shapefile_url", "https://www2.census.gov/geo/tiger/GENZ2023/shp/cb_2023_us_state_500k.zip")
	v.SetDefault("regions.temp_dir", "/tmp/tower-jumps")
	v.SetDefault("regions.cache_ttl_secs", 3600)
	v.SetDefault("batch.concurrency", 4)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

// Validate checks the configuration for the given run mode: "serve" for the
// HTTP API, "cli" for every other command that opens the store.
func (c *Config) Validate(mode string) error {
	switch mode {
	case "serve", "cli":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	var problems []string
	if err := newValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !eris.As(err, &verrs) {
			return eris.Wrap(err, "config: validate")
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}

	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required for the postgres driver")
	}
	if c.Store.MinConns > c.Store.MaxConns && c.Store.MaxConns > 0 {
		problems = append(problems, "store.min_conns must not exceed store.max_conns")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, fmt.Sprintf("log.level %q is not a valid level", c.Log.Level))
	}
	if mode == "serve" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		problems = append(problems, "server.port must be > 0 and <= 65535")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// newValidator reports fields by their mapstructure path.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

func describe(fe validator.FieldError) string {
	path := fe.Namespace()
	if _, rest, ok := strings.Cut(path, "."); ok {
		path = rest
	}
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %v", path, fe.Param(), fe.Value())
	case "gt":
		return fmt.Sprintf("%s must be > %s", path, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", path, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be <= %s", path, fe.Param())
	}
	return fmt.Sprintf("%s failed %s", path, fe.Tag())
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
