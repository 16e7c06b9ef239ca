package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Storage  string
	Postgres PostgresConfig
	Redis    RedisConfig
	AMQP     AMQPConfig
	Auth     AuthConfig
	Booking  BookingConfig
	Worker   WorkerConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type LogConfig struct {
	Level  string
	Format string
}

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
	MaxConns int32
	Migrate  bool
	// ConnectAttempts is how many startup pings are made before giving up.
	ConnectAttempts int
	// TxMaxAttempts bounds serialization-failure retries of one transaction.
	TxMaxAttempts int
}

// DSN renders the connection URL, escaping credentials.
func (p PostgresConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:     "/" + p.Name,
		RawQuery: "sslmode=" + url.QueryEscape(p.SSLMode),
	}
	return u.String()
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// AMQPConfig is disabled when URL is empty.
type AMQPConfig struct {
	URL      string
	Exchange string
}

type AuthConfig struct {
	JWTSecret string
}

type BookingConfig struct {
	RateLimit         int
	RateWindow        time.Duration
	ReferenceAttempts int
}

type WorkerConfig struct {
	Enabled      bool
	CompleteSpec string
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	var e env

	cfg := &Config{
		Server: ServerConfig{
			Host: e.str("SERVER_HOST", "localhost"),
			Port: e.int("SERVER_PORT", 8080),
		},
		Log: LogConfig{
			Level:  strings.ToLower(e.str("LOG_LEVEL", "info")),
			Format: strings.ToLower(e.str("LOG_FORMAT", "text")),
		},
		Storage: strings.ToLower(e.str("STORAGE_DRIVER", StoragePostgres)),
		Redis: RedisConfig{
			Enabled:  e.bool("REDIS_ENABLED", true),
			Addr:     e.str("REDIS_ADDR", "localhost:6380"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       e.int("REDIS_DB", 0),
			PoolSize: e.int("REDIS_POOL_SIZE", 0),
		},
		AMQP: AMQPConfig{
			URL:      os.Getenv("AMQP_URL"),
			Exchange: e.str("AMQP_EXCHANGE", "staygo.reservations"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
		},
		Booking: BookingConfig{
			RateLimit:         e.int("BOOKING_RATE_LIMIT", 10),
			RateWindow:        e.duration("BOOKING_RATE_WINDOW", time.Minute),
			ReferenceAttempts: e.int("BOOKING_REFERENCE_ATTEMPTS", 5),
		},
		Worker: WorkerConfig{
			Enabled:      e.bool("WORKER_ENABLED", true),
			CompleteSpec: e.str("WORKER_COMPLETE_SPEC", "@every 1h"),
		},
	}

	switch cfg.Storage {
	case StoragePostgres:
		cfg.Postgres = PostgresConfig{
			User:          e.required("POSTGRES_USER"),
			Password:      e.required("POSTGRES_PASSWORD"),
			Name:          e.required("POSTGRES_DB"),
			Host:          e.str("POSTGRES_HOST", "localhost"),
			Port:          e.int("POSTGRES_PORT", 5432),
			SSLMode:       e.str("POSTGRES_SSLMODE", "disable"),
			MaxConns:      int32(e.int("POSTGRES_MAX_CONNS", 0)),
			Migrate:       e.bool("POSTGRES_MIGRATE", true),
			TxMaxAttempts: e.int("TX_MAX_ATTEMPTS", 5),

			ConnectAttempts: e.int("POSTGRES_CONNECT_ATTEMPTS", 5),
		}
	case StorageMemory:
	default:
		e.fail("STORAGE_DRIVER", fmt.Errorf("unknown driver %q", cfg.Storage))
	}

	switch cfg.Log.Format {
	case "text", "json":
	default:
		e.fail("LOG_FORMAT", fmt.Errorf("must be text or json"))
	}

	if cfg.Auth.JWTSecret == "" {
		e.fail("JWT_SECRET", fmt.Errorf("missing"))
	}

	if cfg.Booking.RateLimit < 0 {
		e.fail("BOOKING_RATE_LIMIT", fmt.Errorf("must not be negative"))
	}

	// asynq keeps its state in redis
	if cfg.Worker.Enabled && !cfg.Redis.Enabled {
		cfg.Worker.Enabled = false
	}

	if e.err != nil {
		return nil, fmt.Errorf("%s: %w", op, e.err)
	}

	return cfg, nil
}

// env reads variables and keeps the first error, so New reports the first
// bad variable rather than a cascade.
type env struct {
	err error
}

func (e *env) fail(name string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("invalid %s: %w", name, err)
	}
}

func (e *env) str(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func (e *env) required(name string) string {
	v := os.Getenv(name)
	if v == "" && e.err == nil {
		e.err = fmt.Errorf("missing %s", name)
	}
	return v
}

func (e *env) int(name string, def int) int {
	s := os.Getenv(name)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		e.fail(name, err)
		return def
	}
	return v
}

func (e *env) bool(name string, def bool) bool {
	s := os.Getenv(name)
	if s == "" {
		return def
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		e.fail(name, err)
		return def
	}
	return v
}

func (e *env) duration(name string, def time.Duration) time.Duration {
	s := os.Getenv(name)
	if s == "" {
		return def
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		e.fail(name, err)
		return def
	}
	return v
}
