// Package config loads the notifywatch YAML configuration.
//
// Values may reference environment variables as ${VAR}. Load parses the
// file as-is, LoadWithDefaults fills unset optional fields, and
// LoadAndValidate also checks the result.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Identity  IdentityConfig  `yaml:"identity"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Inbox     InboxConfig     `yaml:"inbox"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig describes the notification server endpoint.
type ServerConfig struct {
	URL              string        `yaml:"url"`
	Path             string        `yaml:"path"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	PingInterval     time.Duration `yaml:"ping_interval"`
	PingTimeout      time.Duration `yaml:"ping_timeout"`
	BufferSize       int           `yaml:"buffer_size"`
}

// ReconnectConfig is the backoff schedule.
type ReconnectConfig struct {
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Jitter      float64       `yaml:"jitter"`
	MaxAttempts int           `yaml:"max_attempts"` // 0 = forever
	ResetAfter  time.Duration `yaml:"reset_after"`
}

// Identity sources.
const (
	IdentitySourceFile   = "file"
	IdentitySourceEnv    = "env"
	IdentitySourceRedis  = "redis"
	IdentitySourceStatic = "static"
)

// IdentityConfig selects where the user id and token come from.
type IdentityConfig struct {
	Source string      `yaml:"source"` // file, env, redis, static
	File   string      `yaml:"file"`
	UserID string      `yaml:"user_id"` // static source
	Token  string      `yaml:"token"`   // static source
	Redis  RedisConfig `yaml:"redis"`
}

// RedisConfig locates the shared session hash.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
	Session  string `yaml:"session"`
}

// ArchiveConfig controls the optional notification archive.
type ArchiveConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Database      DBConfig      `yaml:"database"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	QueueSize     int           `yaml:"queue_size"`
	MaxQueue      int           `yaml:"max_queue"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// InboxConfig bounds the in-memory inbox.
type InboxConfig struct {
	MaxItems int `yaml:"max_items"`
}

// MetricsConfig controls the HTTP listener serving metrics and the status API.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
	Runtime bool   `yaml:"runtime"` // Go and process collectors
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}
