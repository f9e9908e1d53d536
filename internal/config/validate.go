package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return errors.New("server.url is required")
	}
	u, err := url.Parse(c.Server.URL)
	if err != nil {
		return fmt.Errorf("server.url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return fmt.Errorf("server.url scheme must be ws, wss, http or https, got %q", u.Scheme)
	}
	if c.Server.BufferSize < 1 {
		return errors.New("server.buffer_size must be >= 1")
	}
	if c.Server.PingTimeout <= c.Server.PingInterval {
		return fmt.Errorf("server.ping_timeout (%s) must exceed server.ping_interval (%s)",
			c.Server.PingTimeout, c.Server.PingInterval)
	}

	if c.Reconnect.MaxDelay < c.Reconnect.BaseDelay {
		return fmt.Errorf("reconnect.max_delay (%s) cannot be less than reconnect.base_delay (%s)",
			c.Reconnect.MaxDelay, c.Reconnect.BaseDelay)
	}
	if c.Reconnect.Jitter < 0 || c.Reconnect.Jitter > 1 {
		return fmt.Errorf("reconnect.jitter must be between 0 and 1, got %g", c.Reconnect.Jitter)
	}
	if c.Reconnect.MaxAttempts < 0 {
		return errors.New("reconnect.max_attempts must be >= 0")
	}

	if err := c.Identity.validate(); err != nil {
		return err
	}

	if c.Archive.Enabled {
		if err := c.Archive.Database.validate("archive.database"); err != nil {
			return err
		}
		if c.Archive.BatchSize < 1 {
			return errors.New("archive.batch_size must be >= 1")
		}
		if c.Archive.MaxQueue < c.Archive.QueueSize {
			return fmt.Errorf("archive.max_queue (%d) cannot be less than archive.queue_size (%d)",
				c.Archive.MaxQueue, c.Archive.QueueSize)
		}
	}

	if c.Inbox.MaxItems < 1 {
		return errors.New("inbox.max_items must be >= 1")
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}

	return nil
}

func (id *IdentityConfig) validate() error {
	switch id.Source {
	case IdentitySourceEnv, IdentitySourceStatic:
	case IdentitySourceFile:
		if id.File == "" {
			return errors.New("identity.file is required for the file source")
		}
	case IdentitySourceRedis:
		if id.Redis.Addr == "" {
			return errors.New("identity.redis.addr is required for the redis source")
		}
		if id.Redis.Session == "" {
			return errors.New("identity.redis.session is required for the redis source")
		}
	default:
		return fmt.Errorf("identity.source must be file, env, redis or static, got %q", id.Source)
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
