// Package config loads the settings shared by the conduit binaries.
package config

import (
	"time"

	"github.com/abhissng/conduit/adapters/redis"
	"github.com/abhissng/conduit/adapters/validator"
	"github.com/abhissng/conduit/adapters/viper"
	"github.com/abhissng/conduit/blame"
	"github.com/abhissng/conduit/projection"
	"github.com/abhissng/conduit/utils/types"
)

// EnvPrefix namespaces environment overrides: CONDUIT_BROKER_URL and so on.
const EnvPrefix = "CONDUIT"

// Config is the full configuration tree. Each binary reads the sections it needs.
type Config struct {
	Service   ServiceConfig   `mapstructure:"service"`
	Log       LogConfig       `mapstructure:"log"`
	Broker    BrokerConfig    `mapstructure:"broker"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Projector ProjectorConfig `mapstructure:"projector"`
	Oplog     OplogConfig     `mapstructure:"oplog"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServiceConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	// File enables rotation into this path alongside stdout.
	File      string `mapstructure:"file"`
	MaxSizeMB int    `mapstructure:"max_size_mb" validate:"gte=1"`
}

type BrokerConfig struct {
	URL             string        `mapstructure:"url" validate:"required,url"`
	ConnectAttempts int           `mapstructure:"connect_attempts" validate:"gte=1"`
	RetryDelay      time.Duration `mapstructure:"retry_delay" validate:"gte=0"`
	CallTimeout     time.Duration `mapstructure:"call_timeout" validate:"gt=0"`
}

type JWTConfig struct {
	Secret   string   `mapstructure:"secret" validate:"required_if=Required true"`
	Issuer   string   `mapstructure:"issuer"`
	Roles    []string `mapstructure:"roles"`
	Required bool     `mapstructure:"required"`
}

type GatewayConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
	// Backends are the query queues introspected at startup.
	Backends  []string  `mapstructure:"backends"`
	Debug     bool      `mapstructure:"debug"`
	LogBodies bool      `mapstructure:"log_bodies"`
	JWT       JWTConfig `mapstructure:"jwt"`
}

type CacheConfig struct {
	Backend types.CacheBackend `mapstructure:"backend" validate:"oneof=none lru redis"`
	TTL     time.Duration      `mapstructure:"ttl" validate:"gt=0"`
	Size    int                `mapstructure:"size" validate:"gte=1"`
	Redis   redis.Config       `mapstructure:"redis"`
}

type ProjectorConfig struct {
	Service          string                  `mapstructure:"service" validate:"required"`
	ReplicationQueue string                  `mapstructure:"replication_queue" validate:"required"`
	QueryQueue       string                  `mapstructure:"query_queue" validate:"required"`
	Store            types.ProjectionBackend `mapstructure:"store" validate:"oneof=memory sqlite mongo"`
	SQLiteDSN        string                  `mapstructure:"sqlite_dsn"`
	MongoURI         string                  `mapstructure:"mongo_uri"`
	MongoDatabase    string                  `mapstructure:"mongo_database"`
	MongoCollection  string                  `mapstructure:"mongo_collection"`
	Schemas          []projection.Schema     `mapstructure:"schemas" validate:"min=1,dive"`
}

// OplogConfig configures the write side. An empty PostgresDSN keeps the
// log in memory.
type OplogConfig struct {
	Service       string        `mapstructure:"service" validate:"required"`
	CommandQueue  string        `mapstructure:"command_queue" validate:"required"`
	PostgresDSN   string        `mapstructure:"postgres_dsn"`
	Targets       []string      `mapstructure:"targets"`
	RelayInterval time.Duration `mapstructure:"relay_interval" validate:"gt=0"`
	RelayBatch    int           `mapstructure:"relay_batch" validate:"gte=1"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Addr is where binaries without a gateway serve /metrics and /healthz.
	Addr string `mapstructure:"addr" validate:"required"`
}

// Defaults returns the value of every known key.
func Defaults() map[string]any {
	return map[string]any{
		"service.name":        "conduit",
		"service.environment": "dev",

		"log.level":       "",
		"log.file":        "",
		"log.max_size_mb": 100,

		"broker.url":              "nats://127.0.0.1:4222",
		"broker.connect_attempts": 10,
		"broker.retry_delay":      "2s",
		"broker.call_timeout":     "30s",

		"gateway.addr":         ":4000",
		"gateway.backends":     []string{"projection.query", "oplog.command"},
		"gateway.debug":        false,
		"gateway.log_bodies":   false,
		"gateway.jwt.secret":   "",
		"gateway.jwt.issuer":   "",
		"gateway.jwt.roles":    []string{},
		"gateway.jwt.required": false,

		"cache.backend":            "lru",
		"cache.ttl":                "60s",
		"cache.size":               1024,
		"cache.redis.addr":         "127.0.0.1:6379",
		"cache.redis.password":     "",
		"cache.redis.db":           0,
		"cache.redis.key_prefix":   "conduit:",
		"cache.redis.dial_timeout": "5s",

		"projector.service":           "projection",
		"projector.replication_queue": "projection.replication",
		"projector.query_queue":       "projection.query",
		"projector.store":             "memory",
		"projector.sqlite_dsn":        "file:projection.db",
		"projector.mongo_uri":         "mongodb://127.0.0.1:27017",
		"projector.mongo_database":    "conduit",
		"projector.mongo_collection":  "projections",

		"projector.schemas": []map[string]any{{
			"type":       "Entity",
			"collection": "entity",
			"fields":     []map[string]any{{"name": "name"}, {"name": "kind"}},
			"relations":  []string{"tags"},
			"single":     "entity",
			"plural":     "entities",
		}},

		"oplog.service":        "oplog",
		"oplog.command_queue":  "oplog.command",
		"oplog.postgres_dsn":   "",
		"oplog.targets":        []string{"projection.replication"},
		"oplog.relay_interval": "5s",
		"oplog.relay_batch":    100,

		"metrics.enabled": true,
		"metrics.addr":    ":9090",
	}
}

// Load reads path (optional), applies CONDUIT_* environment overrides on
// top of Defaults and validates the result.
func Load(path string) (*Config, error) {
	v := viper.NewViper(path, viper.WithEnvPrefix(EnvPrefix), viper.WithDefaults(Defaults()))
	if err := v.InitialiseViper(); err != nil {
		return nil, blame.ConfigInvalid(map[string]string{"file": err.Error()})
	}

	cfg := &Config{}
	if err := viper.UnmarshalConfig(cfg); err != nil {
		return nil, blame.ConfigInvalid(map[string]string{"decode": err.Error()})
	}
	if problems := validator.NewValidator().ValidateStruct(cfg); len(problems) > 0 {
		return nil, blame.ConfigInvalid(problems)
	}
	return cfg, nil
}
