package goRWT

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"time"
)

// Config holds every setting of an [Engine].
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	Store    StoreConfig
	Session  SessionConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig describes how the engine reaches Redis.
//
// When Addrs is set it takes precedence over Host and Port; more than one
// address selects a cluster client.
type StoreConfig struct {
	Host         string
	Port         int
	Addrs        []string
	Username     string
	Password     string
	DB           int
	KeyPrefix    string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MaxRetries   int
}

// Addresses returns the resolved list of host:port pairs.
func (c StoreConfig) Addresses() []string {
	if len(c.Addrs) > 0 {
		out := make([]string, len(c.Addrs))
		copy(out, c.Addrs)
		return out
	}
	return []string{net.JoinHostPort(c.Host, strconv.Itoa(c.Port))}
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig holds the session lifetime policy.
type SessionConfig struct {
	// Expire is the TTL armed by Sign and reset by Extend.
	Expire time.Duration
	// VerifyExtendsToken resets the TTL on every successful Verify.
	VerifyExtendsToken bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig controls the optional verify throttle: after MaxVerifyMisses
// Verify calls that found no session within VerifyMissCooldown, further
// Verify calls for the same identifier fail with [ErrVerifyRateLimited].
type SecurityConfig struct {
	EnableVerifyThrottle bool
	MaxVerifyMisses      int
	VerifyMissCooldown   time.Duration
	VerifyThrottlePrefix string
}

// AuditConfig controls asynchronous audit dispatch.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration used by [New]: a local Redis on
// the standard port, "sess:" key prefix, one hour sessions that Verify does not
// extend.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Store: StoreConfig{
			Host:         "localhost",
			Port:         6379,
			KeyPrefix:    "sess:",
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			MaxRetries:   3,
		},
		Session: SessionConfig{
			Expire:             time.Hour,
			VerifyExtendsToken: false,
		},
		Security: SecurityConfig{
			EnableVerifyThrottle: false,
			MaxVerifyMisses:      10,
			VerifyMissCooldown:   time.Minute,
			VerifyThrottlePrefix: "rwt:vm:",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Store.Addrs != nil {
		out.Store.Addrs = append([]string(nil), cfg.Store.Addrs...)
	}
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration without touching the network. [Builder.Build]
// wraps a non-nil result in [ErrConfig].
func (c *Config) Validate() error {
	// Store
	if len(c.Store.Addrs) == 0 {
		if strings.TrimSpace(c.Store.Host) == "" {
			return errors.New("Store Host must not be empty")
		}
		if c.Store.Port <= 0 || c.Store.Port > 65535 {
			return errors.New("Store Port must be between 1 and 65535")
		}
	}
	for _, addr := range c.Store.Addrs {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return errors.New("Store Addrs entries must be host:port")
		}
	}
	if c.Store.DB < 0 {
		return errors.New("Store DB must be >= 0")
	}
	if len(c.Store.Addrs) > 1 && c.Store.DB != 0 {
		return errors.New("Store DB must be 0 in cluster mode")
	}
	if c.Store.DialTimeout < 0 || c.Store.ReadTimeout < 0 || c.Store.WriteTimeout < 0 {
		return errors.New("Store timeouts must be >= 0")
	}
	if c.Store.PoolSize < 0 {
		return errors.New("Store PoolSize must be >= 0")
	}
	if c.Store.MaxRetries < -1 {
		return errors.New("Store MaxRetries must be >= -1")
	}

	// Session
	if c.Session.Expire < time.Second {
		return errors.New("Session Expire must be >= 1s")
	}
	if c.Session.Expire%time.Second != 0 {
		return errors.New("Session Expire must be a whole number of seconds")
	}

	// Security
	if c.Security.EnableVerifyThrottle {
		if c.Security.MaxVerifyMisses <= 0 {
			return errors.New("Security MaxVerifyMisses must be > 0 when EnableVerifyThrottle is true")
		}
		if c.Security.VerifyMissCooldown <= 0 {
			return errors.New("Security VerifyMissCooldown must be > 0 when EnableVerifyThrottle is true")
		}
		if c.Security.VerifyThrottlePrefix == "" {
			return errors.New("Security VerifyThrottlePrefix must not be empty")
		}
		if c.Security.VerifyThrottlePrefix == c.Store.KeyPrefix {
			return errors.New("Security VerifyThrottlePrefix must differ from Store KeyPrefix")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when Audit is enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
