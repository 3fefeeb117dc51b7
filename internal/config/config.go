// Package config loads moodlist settings from defaults, an optional YAML file
// and MOODLIST_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is stripped from environment variables. A double underscore
// separates sections: MOODLIST_STORAGE__DRIVER sets storage.driver.
const EnvPrefix = "MOODLIST_"

// PathEnvVar overrides the config file location.
const PathEnvVar = "MOODLIST_CONFIG"

// DefaultPaths are searched in order when no path is given.
var DefaultPaths = []string{
	"moodlist.yaml",
	"moodlist.yml",
	"/etc/moodlist/config.yaml",
}

// Storage drivers.
const (
	DriverSQLite  = "sqlite"
	DriverBadger  = "badger"
	DriverCatalog = "catalog"
)

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Storage    StorageConfig    `koanf:"storage"`
	Catalog    CatalogConfig    `koanf:"catalog"`
	Classifier ClassifierConfig `koanf:"classifier"`
	Detection  DetectionConfig  `koanf:"detection"`
	Recommend  RecommendConfig  `koanf:"recommend"`
	Breaker    BreakerConfig    `koanf:"breaker"`
	Log        LogConfig        `koanf:"log"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	// FrameRateLimit caps frame uploads per client per FrameRateWindow.
	FrameRateLimit  int           `koanf:"frame_rate_limit" validate:"gte=1"`
	FrameRateWindow time.Duration `koanf:"frame_rate_window" validate:"gt=0"`
}

type StorageConfig struct {
	Driver     string `koanf:"driver" validate:"oneof=sqlite badger catalog"`
	SQLitePath string `koanf:"sqlite_path"`
	// BadgerDir empty runs badger in memory.
	BadgerDir   string `koanf:"badger_dir"`
	SeedOnStart bool   `koanf:"seed_on_start"`
}

type CatalogConfig struct {
	BaseURL      string        `koanf:"base_url" validate:"omitempty,url"`
	ClientID     string        `koanf:"client_id"`
	ClientSecret string        `koanf:"client_secret"`
	TokenURL     string        `koanf:"token_url" validate:"omitempty,url"`
	Scopes       []string      `koanf:"scopes"`
	MaxRetries   int           `koanf:"max_retries" validate:"gte=0,lte=10"`
	RetryBackoff time.Duration `koanf:"retry_backoff" validate:"gte=0"`
	Timeout      time.Duration `koanf:"timeout" validate:"gt=0"`
}

// ClassifierConfig points at the server-side expression model. When disabled
// clients classify frames themselves and post expressions directly.
type ClassifierConfig struct {
	Enabled bool          `koanf:"enabled"`
	BaseURL string        `koanf:"base_url" validate:"omitempty,url"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

type DetectionConfig struct {
	SessionTTL time.Duration `koanf:"session_ttl" validate:"gt=0"`
	// IdleTickLimit aborts sampling after this many ticks without an
	// accepted sample. Zero disables the limit.
	IdleTickLimit   int           `koanf:"idle_tick_limit" validate:"gte=0"`
	ProbeTimeout    time.Duration `koanf:"probe_timeout" validate:"gt=0"`
	Workers         int           `koanf:"workers" validate:"gte=1,lte=256"`
	QueueSize       int           `koanf:"queue_size" validate:"gte=1"`
	ClassifyTimeout time.Duration `koanf:"classify_timeout" validate:"gt=0"`
}

type RecommendConfig struct {
	QueryTimeout time.Duration `koanf:"query_timeout" validate:"gt=0"`
}

type BreakerConfig struct {
	Enabled      bool          `koanf:"enabled"`
	MaxRequests  uint32        `koanf:"max_requests"`
	Interval     time.Duration `koanf:"interval" validate:"gte=0"`
	Timeout      time.Duration `koanf:"timeout" validate:"gte=0"`
	MinRequests  uint32        `koanf:"min_requests" validate:"gte=1"`
	FailureRatio float64       `koanf:"failure_ratio" validate:"gt=0,lte=1"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			FrameRateLimit:  20,
			FrameRateWindow: time.Second,
		},
		Storage: StorageConfig{
			Driver:      DriverSQLite,
			SQLitePath:  "moodlist.db",
			SeedOnStart: true,
		},
		Catalog: CatalogConfig{
			MaxRetries:   3,
			RetryBackoff: 500 * time.Millisecond,
			Timeout:      10 * time.Second,
		},
		Classifier: ClassifierConfig{
			BaseURL: "http://localhost:8501",
			Timeout: 10 * time.Second,
		},
		Detection: DetectionConfig{
			SessionTTL:      15 * time.Minute,
			IdleTickLimit:   40,
			ProbeTimeout:    2 * time.Second,
			Workers:         4,
			QueueSize:       16,
			ClassifyTimeout: 5 * time.Second,
		},
		Recommend: RecommendConfig{
			QueryTimeout: 3 * time.Second,
		},
		Breaker: BreakerConfig{
			Enabled:      true,
			MaxRequests:  3,
			Interval:     time.Minute,
			Timeout:      30 * time.Second,
			MinRequests:  5,
			FailureRatio: 0.6,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration. An empty path searches PathEnvVar and then
// DefaultPaths; a missing default file is not an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path == "" {
		path = findFile()
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}
	if err := splitLists(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envKey maps MOODLIST_DETECTION__IDLE_TICK_LIMIT to detection.idle_tick_limit.
func envKey(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// listPaths arrive from the environment as comma-separated strings.
var listPaths = []string{"server.cors_origins", "catalog.scopes"}

func splitLists(k *koanf.Koanf) error {
	for _, path := range listPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := []string{}
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("config: set %s: %w", path, err)
		}
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and cross-section requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("config: invalid: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config: invalid: %w", err)
	}

	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return errors.New("config: storage.sqlite_path is required for the sqlite driver")
		}
	case DriverCatalog:
		if c.Catalog.BaseURL == "" {
			return errors.New("config: catalog.base_url is required for the catalog driver")
		}
		if c.Catalog.ClientID != "" && c.Catalog.TokenURL == "" {
			return errors.New("config: catalog.token_url is required when catalog.client_id is set")
		}
	}
	if c.Classifier.Enabled && c.Classifier.BaseURL == "" {
		return errors.New("config: classifier.base_url is required when the classifier is enabled")
	}
	return nil
}
