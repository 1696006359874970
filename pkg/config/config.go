package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" validate:"required"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CORS            bool          `yaml:"cors" default:"true"`
		RateLimit       struct {
			Burst     float64 `yaml:"burst" default:"5" validate:"gte=0"`
			PerSecond float64 `yaml:"per_second" default:"0.2" validate:"gte=0"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Store struct {
		Type         string `yaml:"type" default:"memory" validate:"oneof=clickhouse redis memory"`
		MetricsTable string `yaml:"metrics_table" default:"screener_metrics" validate:"required"`
		RosterTable  string `yaml:"roster_table" default:"screener_roster" validate:"required"`
	} `yaml:"store"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"screener"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxOpenConns     int           `yaml:"max_open_conns" default:"10"`
		MaxIdleConns     int           `yaml:"max_idle_conns" default:"5"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Host     string        `yaml:"host" default:"localhost"`
		Port     int           `yaml:"port" default:"6379"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		Prefix   string        `yaml:"prefix" default:"screener"`
		PoolSize int           `yaml:"pool_size" default:"10"`
		MinIdle  int           `yaml:"min_idle" default:"2"`
		L1Size   int           `yaml:"l1_size" default:"1000"`
		L1TTL    time.Duration `yaml:"l1_ttl" default:"1m"`
		Queue    struct {
			Workers    int           `yaml:"workers" default:"1" validate:"gte=0"`
			RetryLimit int           `yaml:"retry_limit" default:"0"`
			RetryDelay time.Duration `yaml:"retry_delay" default:"1m"`
		} `yaml:"queue"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		MetricsTopic string   `yaml:"metrics_topic" default:"screener.metrics"`
		SyncTopic    string   `yaml:"sync_topic" default:"screener.sync-requests"`
		LogTopic     string   `yaml:"log_topic" default:"screener.logs"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"1s"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"screener"`
			Workers    int           `yaml:"workers" default:"1"`
			BufferSize int           `yaml:"buffer_size" default:"10"`
			RetryMax   int           `yaml:"retry_max" default:"0"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic   string        `yaml:"dlq_topic"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	MetricSource struct {
		BaseURL   string        `yaml:"base_url" default:"https://query2.finance.yahoo.com" validate:"url"`
		Timeout   time.Duration `yaml:"timeout" default:"10s"`
		UserAgent string        `yaml:"user_agent" default:"Mozilla/5.0 (compatible; screener/1.0)"`
		CacheTTL  time.Duration `yaml:"cache_ttl" default:"1h"`
	} `yaml:"metric_source"`
	Sync struct {
		BatchSize        int           `yaml:"batch_size" default:"5" validate:"gte=1"`
		Pacing           time.Duration `yaml:"pacing" default:"1s"`
		LockTTL          time.Duration `yaml:"lock_ttl" default:"2h"`
		ScheduleInterval time.Duration `yaml:"schedule_interval"`
		Timezone         string        `yaml:"timezone" default:"Europe/Paris"`
	} `yaml:"sync"`
	Roster struct {
		RefreshInterval time.Duration `yaml:"refresh_interval" default:"720h"`
		CacheTTL        time.Duration `yaml:"cache_ttl" default:"24h"`
		Timeout         time.Duration `yaml:"timeout" default:"15s"`
	} `yaml:"roster"`
	Universes []Universe `yaml:"universes" validate:"required,min=1,dive"`
}

// Universe describes one index and where its constituents are listed.
type Universe struct {
	Name         string `yaml:"name" validate:"required"`
	SourceURL    string `yaml:"source_url" validate:"required,url"`
	SymbolSuffix string `yaml:"symbol_suffix"`
	ReplaceDots  bool   `yaml:"replace_dots"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, applies defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides it with environment
// variables. A .env file in the working directory, if any, fills variables
// that are not already set.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SCREENER_STORE"); v != "" {
		c.Store.Type = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("METRIC_SOURCE_URL"); v != "" {
		c.MetricSource.BaseURL = v
	}

	// env may have switched backends; re-check cross-field rules
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	switch c.Store.Type {
	case "clickhouse":
		if c.ClickHouse.Host == "" {
			return fmt.Errorf("clickhouse.host is required when store.type is 'clickhouse'")
		}
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("redis.enabled must be true when store.type is 'redis'")
		}
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	seen := make(map[string]struct{}, len(c.Universes))
	for _, u := range c.Universes {
		if _, dup := seen[u.Name]; dup {
			return fmt.Errorf("duplicate universe %q", u.Name)
		}
		seen[u.Name] = struct{}{}
	}
	if _, err := time.LoadLocation(c.Sync.Timezone); err != nil {
		return fmt.Errorf("sync.timezone: %w", err)
	}
	return nil
}

// Universe returns the configured universe with the given name.
func (c *Config) Universe(name string) (Universe, bool) {
	for _, u := range c.Universes {
		if u.Name == name {
			return u, true
		}
	}
	return Universe{}, false
}

// Location returns the timezone used to compute "today" for sync runs.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Sync.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
