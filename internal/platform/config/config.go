package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	pstrings "badgegate/pkg/platform/strings"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheTiered = "tiered"
	CacheNone   = "none"
)

// DefaultTopic is the stream receiving one event per badge scan.
const DefaultTopic = "entrance_attempts"

// Config is the full process configuration. Values are layered: Defaults,
// then the optional TOML file named by BADGEGATE_CONFIG, then BADGEGATE_* env vars.
type Config struct {
	Server Server      `toml:"server"`
	Store  Store       `toml:"store"`
	Cache  Cache       `toml:"cache"`
	Redis  RedisConfig `toml:"redis"`
	Kafka  Kafka       `toml:"kafka"`
	Events Events      `toml:"events"`
	Log    Log         `toml:"log"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `toml:"addr"`
	Env             string        `toml:"env"` // "dev" | "prod"
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

// Store selects and configures the person store.
type Store struct {
	Backend         string `toml:"backend"`
	PostgresDSN     string `toml:"postgres_dsn"`
	PostgresMaxConn int32  `toml:"postgres_max_conns"`
	SQLitePath      string `toml:"sqlite_path"`
	SeedDev         bool   `toml:"seed_dev"`
}

// Cache configures the badge lookup cache. TTL bounds how long a deactivated
// badge can still be granted from a cached record.
type Cache struct {
	Backend           string        `toml:"backend"`
	TTL               time.Duration `toml:"ttl"`
	MaxEntries        int           `toml:"max_entries"`
	InvalidateChannel string        `toml:"invalidate_channel"`
}

// RedisConfig configures the shared Redis client.
type RedisConfig struct {
	URL          string        `toml:"url"`
	PoolSize     int           `toml:"pool_size"`
	MinIdleConns int           `toml:"min_idle_conns"`
	DialTimeout  time.Duration `toml:"dial_timeout"`
	ReadTimeout  time.Duration `toml:"read_timeout"`
	WriteTimeout time.Duration `toml:"write_timeout"`
}

// Kafka configures the event stream producer. An empty broker list makes the
// service log events instead of producing them.
type Kafka struct {
	Brokers           []string      `toml:"brokers"`
	ClientID          string        `toml:"client_id"`
	Topic             string        `toml:"topic"`
	EnsureTopic       bool          `toml:"ensure_topic"`
	Partitions        int32         `toml:"partitions"`
	ReplicationFactor int16         `toml:"replication_factor"`
	ProduceTimeout    time.Duration `toml:"produce_timeout"`
	Linger            time.Duration `toml:"linger"`
}

// Events configures the async publish queue in front of the broker.
type Events struct {
	QueueSize    int           `toml:"queue_size"`
	Workers      int           `toml:"workers"`
	MaxRetries   int           `toml:"max_retries"`
	RetryInitial time.Duration `toml:"retry_initial"`
	RetryMax     time.Duration `toml:"retry_max"`
}

// Log configures the process logger.
type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" | "text"
}

// Defaults returns a configuration that runs standalone: memory store, memory cache,
// events logged rather than produced.
func Defaults() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			Env:             "dev",
			ShutdownTimeout: 10 * time.Second,
		},
		Store: Store{
			Backend:         StoreMemory,
			PostgresMaxConn: 10,
			SQLitePath:      "./data/badgegate.db",
			SeedDev:         true,
		},
		Cache: Cache{
			Backend:    CacheMemory,
			TTL:        30 * time.Second,
			MaxEntries: 10000,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  200 * time.Millisecond,
			WriteTimeout: 200 * time.Millisecond,
		},
		Kafka: Kafka{
			ClientID:          "badgegate",
			Topic:             DefaultTopic,
			Partitions:        3,
			ReplicationFactor: 1,
			ProduceTimeout:    5 * time.Second,
			Linger:            5 * time.Millisecond,
		},
		Events: Events{
			QueueSize:    4096,
			Workers:      4,
			MaxRetries:   5,
			RetryInitial: 100 * time.Millisecond,
			RetryMax:     5 * time.Second,
		},
		Log: Log{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from the process environment.
func Load() (Config, error) {
	return LoadWith(os.Getenv)
}

// LoadWith builds the configuration using getenv for lookups, so tests do not
// need to touch the process environment.
func LoadWith(getenv func(string) string) (Config, error) {
	cfg := Defaults()

	if path := strings.TrimSpace(getenv("BADGEGATE_CONFIG")); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config file %s: %w", path, err)
		}
	}

	e := env{getenv: getenv}

	cfg.Server.Addr = e.str("BADGEGATE_HTTP_ADDR", cfg.Server.Addr)
	cfg.Server.Env = strings.ToLower(e.str("BADGEGATE_ENV", cfg.Server.Env))
	if cfg.Server.Env != "dev" && cfg.Server.Env != "prod" {
		// fail-soft: treat unknown as dev
		cfg.Server.Env = "dev"
	}
	cfg.Server.ShutdownTimeout = e.duration("BADGEGATE_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)

	cfg.Store.Backend = strings.ToLower(e.str("BADGEGATE_STORE_BACKEND", cfg.Store.Backend))
	cfg.Store.PostgresDSN = e.str("BADGEGATE_POSTGRES_DSN", cfg.Store.PostgresDSN)
	cfg.Store.PostgresMaxConn = int32(e.int("BADGEGATE_POSTGRES_MAX_CONNS", int(cfg.Store.PostgresMaxConn)))
	cfg.Store.SQLitePath = e.str("BADGEGATE_SQLITE_PATH", cfg.Store.SQLitePath)
	cfg.Store.SeedDev = e.bool("BADGEGATE_SEED_DEV", cfg.Store.SeedDev)

	cfg.Cache.Backend = strings.ToLower(e.str("BADGEGATE_CACHE_BACKEND", cfg.Cache.Backend))
	cfg.Cache.TTL = e.duration("BADGEGATE_CACHE_TTL", cfg.Cache.TTL)
	cfg.Cache.MaxEntries = e.int("BADGEGATE_CACHE_MAX_ENTRIES", cfg.Cache.MaxEntries)
	cfg.Cache.InvalidateChannel = e.str("BADGEGATE_CACHE_INVALIDATE_CHANNEL", cfg.Cache.InvalidateChannel)

	cfg.Redis.URL = e.str("BADGEGATE_REDIS_URL", cfg.Redis.URL)
	cfg.Redis.PoolSize = e.int("BADGEGATE_REDIS_POOL_SIZE", cfg.Redis.PoolSize)

	if brokers := pstrings.SplitList(getenv("BADGEGATE_KAFKA_BROKERS")); brokers != nil {
		cfg.Kafka.Brokers = brokers
	}
	cfg.Kafka.ClientID = e.str("BADGEGATE_KAFKA_CLIENT_ID", cfg.Kafka.ClientID)
	cfg.Kafka.Topic = e.str("BADGEGATE_KAFKA_TOPIC", cfg.Kafka.Topic)
	cfg.Kafka.EnsureTopic = e.bool("BADGEGATE_KAFKA_ENSURE_TOPIC", cfg.Kafka.EnsureTopic)
	cfg.Kafka.Partitions = int32(e.int("BADGEGATE_KAFKA_PARTITIONS", int(cfg.Kafka.Partitions)))
	cfg.Kafka.ProduceTimeout = e.duration("BADGEGATE_KAFKA_PRODUCE_TIMEOUT", cfg.Kafka.ProduceTimeout)

	cfg.Events.QueueSize = e.int("BADGEGATE_EVENTS_QUEUE_SIZE", cfg.Events.QueueSize)
	cfg.Events.Workers = e.int("BADGEGATE_EVENTS_WORKERS", cfg.Events.Workers)
	cfg.Events.MaxRetries = e.int("BADGEGATE_EVENTS_MAX_RETRIES", cfg.Events.MaxRetries)
	cfg.Events.RetryInitial = e.duration("BADGEGATE_EVENTS_RETRY_INITIAL", cfg.Events.RetryInitial)
	cfg.Events.RetryMax = e.duration("BADGEGATE_EVENTS_RETRY_MAX", cfg.Events.RetryMax)

	cfg.Log.Level = strings.ToLower(e.str("BADGEGATE_LOG_LEVEL", cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(e.str("BADGEGATE_LOG_FORMAT", cfg.Log.Format))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every inconsistent setting at once.
func (c Config) Validate() error {
	var errs []error

	switch c.Store.Backend {
	case StoreMemory:
	case StorePostgres:
		if c.Store.PostgresDSN == "" {
			errs = append(errs, errors.New("store.postgres_dsn is required for the postgres store"))
		}
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("store.sqlite_path is required for the sqlite store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}

	switch c.Cache.Backend {
	case CacheMemory, CacheRedis, CacheTiered, CacheNone:
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q", c.Cache.Backend))
	}
	if c.Cache.Backend != CacheNone && c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache.ttl must be positive"))
	}
	if (c.Cache.Backend == CacheMemory || c.Cache.Backend == CacheTiered) && c.Cache.MaxEntries <= 0 {
		errs = append(errs, errors.New("cache.max_entries must be positive"))
	}
	if (c.Cache.Backend == CacheRedis || c.Cache.Backend == CacheTiered) && c.Redis.URL == "" {
		errs = append(errs, fmt.Errorf("redis.url is required for the %s cache", c.Cache.Backend))
	}
	if c.Cache.InvalidateChannel != "" && c.Store.Backend != StorePostgres {
		errs = append(errs, errors.New("cache.invalidate_channel requires the postgres store"))
	}

	if c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka.topic is required"))
	}
	if c.Events.QueueSize <= 0 {
		errs = append(errs, errors.New("events.queue_size must be positive"))
	}
	if c.Events.Workers <= 0 {
		errs = append(errs, errors.New("events.workers must be positive"))
	}
	if c.Events.MaxRetries < 0 {
		errs = append(errs, errors.New("events.max_retries must not be negative"))
	}

	return errors.Join(errs...)
}

// ProduceEvents reports whether a broker is configured.
func (c Config) ProduceEvents() bool {
	return len(c.Kafka.Brokers) > 0
}

type env struct {
	getenv func(string) string
}

func (e env) str(key, def string) string {
	v := e.getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

func (e env) int(key string, def int) int {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func (e env) bool(key string, def bool) bool {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func (e env) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return def
	}
	return d
}
