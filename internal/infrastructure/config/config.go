package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Allocator names accepted in sequence.allocator
const (
	AllocatorDatabase = "database"
	AllocatorRedis    = "redis"
)

// Locker names accepted in orchestrator.locker
const (
	LockerNone  = "none"
	LockerRedis = "redis"
)

// Config is the back office configuration. Keys mirror config.toml sections.
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Log          LogConfig          `mapstructure:"log"`
	Telemetry    TelemetryConfig    `mapstructure:"telemetry"`
	Sequence     SequenceConfig     `mapstructure:"sequence"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Reconcile    ReconcileConfig    `mapstructure:"reconcile"`
}

// AppConfig names the deployment
type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"` // development, production
}

// DatabaseConfig holds PostgreSQL connection and pool settings
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // minutes
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // minutes
	MigrationsPath  string `mapstructure:"migrations_path"`
}

// RedisConfig locates the Redis server used by the redis allocator and locker
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig mirrors logger.Config
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// TelemetryConfig holds OpenTelemetry settings
type TelemetryConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	CollectorEndpoint string  `mapstructure:"collector_endpoint"` // OTLP/gRPC, e.g. localhost:4317
	SamplingRatio     float64 `mapstructure:"sampling_ratio"`
	ServiceName       string  `mapstructure:"service_name"`
	Insecure          bool    `mapstructure:"insecure"`
	DBTraceEnabled    bool    `mapstructure:"db_trace_enabled"`
}

// SequenceConfig holds invoice numbering settings
type SequenceConfig struct {
	Prefix      string `mapstructure:"prefix"`
	Allocator   string `mapstructure:"allocator"`
	MaxAttempts int    `mapstructure:"max_attempts"`
	RedisPrefix string `mapstructure:"redis_prefix"`
}

// OrchestratorConfig holds payment orchestrator settings
type OrchestratorConfig struct {
	MaxConflictRetries int           `mapstructure:"max_conflict_retries"`
	Locker             string        `mapstructure:"locker"`
	LockTTL            time.Duration `mapstructure:"lock_ttl"`
	LockTimeout        time.Duration `mapstructure:"lock_timeout"` // wait for a busy invoice
	AuditBuffer        int           `mapstructure:"audit_buffer"` // queued entries before drops
}

// ReconcileConfig holds reconcile sweep settings
type ReconcileConfig struct {
	Parallelism int `mapstructure:"parallelism"`
}

// Load reads config.toml from the working directory or ./config, then
// BACKOFFICE_ environment variables, e.g. BACKOFFICE_DATABASE_PASSWORD.
// Environment wins over the file, the file wins over defaults.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom is Load with an explicit file, which must exist
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("BACKOFFICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys absent
// from the file. Keys without a meaningful default are registered empty.
func setDefaults(v *viper.Viper) {
	for key, value := range map[string]any{
		"app.name": "backoffice",
		"app.env":  "development",

		"database.host":               "localhost",
		"database.port":               5432,
		"database.user":               "postgres",
		"database.password":           "",
		"database.dbname":             "backoffice",
		"database.sslmode":            "disable",
		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  60,
		"database.conn_max_idle_time": 30,
		"database.migrations_path":    "migrations",

		"redis.host":     "localhost",
		"redis.port":     6379,
		"redis.password": "",
		"redis.db":       0,

		"log.level":  "info",
		"log.format": "console",
		"log.output": "stdout",

		"telemetry.enabled":            false,
		"telemetry.collector_endpoint": "localhost:4317",
		"telemetry.sampling_ratio":     1.0,
		"telemetry.service_name":       "backoffice",
		"telemetry.insecure":           false,
		"telemetry.db_trace_enabled":   false,

		"sequence.prefix":       "FAC",
		"sequence.allocator":    AllocatorDatabase,
		"sequence.max_attempts": 5,
		"sequence.redis_prefix": "invoice_seq",

		"orchestrator.max_conflict_retries": 2,
		"orchestrator.locker":               LockerNone,
		"orchestrator.lock_ttl":             10 * time.Second,
		"orchestrator.lock_timeout":         2 * time.Second,
		"orchestrator.audit_buffer":         256,

		"reconcile.parallelism": 4,
	} {
		v.SetDefault(key, value)
	}
}

// validate rejects settings the services cannot run with
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	switch c.Sequence.Allocator {
	case AllocatorDatabase, AllocatorRedis:
	default:
		return fmt.Errorf("sequence.allocator must be %q or %q, got %q", AllocatorDatabase, AllocatorRedis, c.Sequence.Allocator)
	}
	if strings.ContainsAny(c.Sequence.Prefix, " \t") {
		return fmt.Errorf("sequence.prefix cannot contain whitespace, got %q", c.Sequence.Prefix)
	}
	if c.Sequence.MaxAttempts < 1 {
		return fmt.Errorf("sequence.max_attempts must be positive")
	}
	if c.Orchestrator.MaxConflictRetries < 0 {
		return fmt.Errorf("orchestrator.max_conflict_retries cannot be negative")
	}
	switch c.Orchestrator.Locker {
	case LockerNone, LockerRedis:
	default:
		return fmt.Errorf("orchestrator.locker must be %q or %q, got %q", LockerNone, LockerRedis, c.Orchestrator.Locker)
	}
	if c.Orchestrator.AuditBuffer < 0 {
		return fmt.Errorf("orchestrator.audit_buffer cannot be negative")
	}
	if c.Reconcile.Parallelism < 1 {
		return fmt.Errorf("reconcile.parallelism must be positive")
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the host:port of the Redis server
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
