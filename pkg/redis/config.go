package redis

import (
	"time"

	"github.com/carelink/carelink_backend/config"
)

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	DB       int
	Username string
	Password string

	PoolSize     int
	MinIdleConns int

	DialTimeoutSeconds  int
	ReadTimeoutSeconds  int
	WriteTimeoutSeconds int
}

func DefaultConfig() Config {
	return Config{
		Addr:                "localhost:6379",
		PoolSize:            10,
		MinIdleConns:        2,
		DialTimeoutSeconds:  5,
		ReadTimeoutSeconds:  3,
		WriteTimeoutSeconds: 3,
	}
}

func (c Config) DialTimeout() time.Duration { return seconds(c.DialTimeoutSeconds, 5) }
func (c Config) ReadTimeout() time.Duration { return seconds(c.ReadTimeoutSeconds, 3) }
func (c Config) WriteTimeout() time.Duration { return seconds(c.WriteTimeoutSeconds, 3) }

func seconds(v, fallback int) time.Duration {
	if v <= 0 {
		v = fallback
	}
	return time.Duration(v) * time.Second
}

// FromCentralConfig converts config.RedisConfig, filling unset pool and
// timeout values from DefaultConfig.
func FromCentralConfig(c config.RedisConfig) Config {
	d := DefaultConfig()
	return Config{
		Addr:                c.Addr,
		DB:                  c.DB,
		Username:            c.Username,
		Password:            c.Password,
		PoolSize:            positiveOr(c.PoolSize, d.PoolSize),
		MinIdleConns:        positiveOr(c.MinIdleConns, d.MinIdleConns),
		DialTimeoutSeconds:  positiveOr(c.DialTimeoutSeconds, d.DialTimeoutSeconds),
		ReadTimeoutSeconds:  positiveOr(c.ReadTimeoutSeconds, d.ReadTimeoutSeconds),
		WriteTimeoutSeconds: positiveOr(c.WriteTimeoutSeconds, d.WriteTimeoutSeconds),
	}
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
