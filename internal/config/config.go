// Package config loads service settings from an optional config file and the
// environment through viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	SequenceMemory = "memory"
	SequenceRedis  = "redis"
)

type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Ledger   LedgerConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	// ShutdownTimeout bounds graceful shutdown after SIGINT/SIGTERM.
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type StoreConfig struct {
	Driver string
}

type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Migrate         bool
}

// DSN renders the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

type LedgerConfig struct {
	SequenceStart         int64
	SequenceBackend       string
	SequenceKey           string
	MaxAllocationAttempts int
	EventsKey             string
	// Currency and BankBIC label ISO 20022 exports. Balances carry no currency.
	Currency         string
	BankBIC          string
	MinorUnits       int
	MetricsNamespace string
}

type LogConfig struct {
	Level       string
	Format      string
	Development bool
}

var envBindings = map[string]string{
	"server.port":             "PORT",
	"server.read_timeout":     "SERVER_READ_TIMEOUT",
	"server.write_timeout":    "SERVER_WRITE_TIMEOUT",
	"server.idle_timeout":     "SERVER_IDLE_TIMEOUT",
	"server.request_timeout":  "SERVER_REQUEST_TIMEOUT",
	"server.shutdown_timeout": "SERVER_SHUTDOWN_TIMEOUT",
	"server.allowed_origins":  "SERVER_ALLOWED_ORIGINS",

	"store.driver": "STORE_DRIVER",

	"database.host":              "DATABASE_HOST",
	"database.port":              "DATABASE_PORT",
	"database.user":              "DATABASE_USER",
	"database.password":          "DATABASE_PASSWORD",
	"database.name":              "DATABASE_NAME",
	"database.ssl_mode":          "DATABASE_SSL_MODE",
	"database.max_open_conns":    "DATABASE_MAX_OPEN_CONNS",
	"database.max_idle_conns":    "DATABASE_MAX_IDLE_CONNS",
	"database.conn_max_lifetime": "DATABASE_CONN_MAX_LIFETIME",
	"database.migrate":           "DATABASE_MIGRATE",

	"redis.enabled":  "REDIS_ENABLED",
	"redis.host":     "REDIS_HOST",
	"redis.port":     "REDIS_PORT",
	"redis.password": "REDIS_PASSWORD",
	"redis.db":       "REDIS_DB",

	"ledger.sequence_start":          "LEDGER_SEQUENCE_START",
	"ledger.sequence_backend":        "LEDGER_SEQUENCE_BACKEND",
	"ledger.sequence_key":            "LEDGER_SEQUENCE_KEY",
	"ledger.max_allocation_attempts": "LEDGER_MAX_ALLOCATION_ATTEMPTS",
	"ledger.events_key":              "LEDGER_EVENTS_KEY",
	"ledger.currency":                "LEDGER_CURRENCY",
	"ledger.bank_bic":                "LEDGER_BANK_BIC",
	"ledger.minor_units":             "LEDGER_MINOR_UNITS",
	"ledger.metrics_namespace":       "LEDGER_METRICS_NAMESPACE",

	"log.level":       "LOG_LEVEL",
	"log.format":      "LOG_FORMAT",
	"log.development": "LOG_DEVELOPMENT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.request_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.allowed_origins", []string{"https://*", "http://*"})

	v.SetDefault("store.driver", StoreMemory)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.name", "banksim")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Minute*5)
	v.SetDefault("database.migrate", true)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("ledger.sequence_start", 1000)
	v.SetDefault("ledger.sequence_backend", SequenceMemory)
	v.SetDefault("ledger.sequence_key", "ledger:account_seq")
	v.SetDefault("ledger.max_allocation_attempts", 10000)
	v.SetDefault("ledger.events_key", "ledger:events")
	v.SetDefault("ledger.currency", "NGN")
	v.SetDefault("ledger.bank_bic", "BANKSIMXXXX")
	v.SetDefault("ledger.minor_units", 2)
	v.SetDefault("ledger.metrics_namespace", "banksim")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.development", false)
}

// Load reads path when it exists (a .env or yaml file) and lets the
// environment override every key. An empty path means environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: stat %s: %w", path, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            v.GetString("server.port"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			IdleTimeout:     v.GetDuration("server.idle_timeout"),
			RequestTimeout:  v.GetDuration("server.request_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
			AllowedOrigins:  v.GetStringSlice("server.allowed_origins"),
		},
		Store: StoreConfig{
			Driver: v.GetString("store.driver"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetString("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			Name:            v.GetString("database.name"),
			SSLMode:         v.GetString("database.ssl_mode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
			Migrate:         v.GetBool("database.migrate"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetString("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Ledger: LedgerConfig{
			SequenceStart:         v.GetInt64("ledger.sequence_start"),
			SequenceBackend:       v.GetString("ledger.sequence_backend"),
			SequenceKey:           v.GetString("ledger.sequence_key"),
			MaxAllocationAttempts: v.GetInt("ledger.max_allocation_attempts"),
			EventsKey:             v.GetString("ledger.events_key"),
			Currency:              v.GetString("ledger.currency"),
			BankBIC:               v.GetString("ledger.bank_bic"),
			MinorUnits:            v.GetInt("ledger.minor_units"),
			MetricsNamespace:      v.GetString("ledger.metrics_namespace"),
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Format:      v.GetString("log.format"),
			Development: v.GetBool("log.development"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreMemory, StorePostgres:
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	switch c.Ledger.SequenceBackend {
	case SequenceMemory:
	case SequenceRedis:
		if !c.Redis.Enabled {
			return fmt.Errorf("config: redis sequence backend requires redis.enabled")
		}
	default:
		return fmt.Errorf("config: unknown sequence backend %q", c.Ledger.SequenceBackend)
	}
	if c.Ledger.MaxAllocationAttempts <= 0 {
		return fmt.Errorf("config: ledger.max_allocation_attempts must be positive")
	}
	if c.Ledger.MinorUnits < 0 {
		return fmt.Errorf("config: ledger.minor_units must not be negative")
	}
	return nil
}
