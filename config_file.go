package goRWT

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk shape. Every field is optional and overlays
// [DefaultConfig]. "redis" and "custom" are accepted as aliases of "store" and
// "session".
type fileConfig struct {
	Store    *fileStore    `yaml:"store"`
	Redis    *fileStore    `yaml:"redis"`
	Session  *fileSession  `yaml:"session"`
	Custom   *fileSession  `yaml:"custom"`
	Security *fileSecurity `yaml:"security"`
	Audit    *fileAudit    `yaml:"audit"`
	Metrics  *fileMetrics  `yaml:"metrics"`
}

type fileStore struct {
	Host         *string        `yaml:"host"`
	Port         *int           `yaml:"port"`
	Addrs        []string       `yaml:"addrs"`
	Username     *string        `yaml:"username"`
	Password     *string        `yaml:"password"`
	DB           *int           `yaml:"db"`
	KeyPrefix    *string        `yaml:"keyPrefix"`
	Prefix       *string        `yaml:"prefix"`
	DialTimeout  *time.Duration `yaml:"dialTimeout"`
	ReadTimeout  *time.Duration `yaml:"readTimeout"`
	WriteTimeout *time.Duration `yaml:"writeTimeout"`
	PoolSize     *int           `yaml:"poolSize"`
	MaxRetries   *int           `yaml:"maxRetries"`
}

type fileSession struct {
	Expire             *expireSeconds `yaml:"expire"`
	VerifyExtendsToken *bool          `yaml:"verifyExtendsToken"`
}

// expireSeconds is a session TTL written as a whole number of seconds. yaml.v3
// would otherwise truncate 1.5 into an int64 without complaint.
type expireSeconds int64

func (e *expireSeconds) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode || node.ShortTag() != "!!int" {
		return fmt.Errorf("line %d: expire must be a whole number of seconds, got %q", node.Line, node.Value)
	}
	var n int64
	if err := node.Decode(&n); err != nil {
		return err
	}
	*e = expireSeconds(n)
	return nil
}

type fileSecurity struct {
	EnableVerifyThrottle *bool          `yaml:"enableVerifyThrottle"`
	MaxVerifyMisses      *int           `yaml:"maxVerifyMisses"`
	VerifyMissCooldown   *time.Duration `yaml:"verifyMissCooldown"`
	VerifyThrottlePrefix *string        `yaml:"verifyThrottlePrefix"`
}

type fileAudit struct {
	Enabled    *bool `yaml:"enabled"`
	BufferSize *int  `yaml:"bufferSize"`
	DropIfFull *bool `yaml:"dropIfFull"`
}

type fileMetrics struct {
	Enabled                 *bool `yaml:"enabled"`
	EnableLatencyHistograms *bool `yaml:"enableLatencyHistograms"`
}

// ParseConfig decodes a YAML (or JSON) document over [DefaultConfig] and
// validates the result. Unknown keys and type mismatches, such as a string
// expire, fail with [ErrConfig].
//
// Example:
//
//	store:
//	  host: redis.internal
//	  port: 6379
//	  keyPrefix: "sess:"
//	session:
//	  expire: 3600
//	  verifyExtendsToken: true
func ParseConfig(data []byte) (Config, error) {
	var fc fileConfig

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	cfg, err := fc.apply(defaultConfig())
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return cfg, nil
}

// LoadConfig reads and parses the file at path. See [ParseConfig].
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return ParseConfig(data)
}

// ConfigFromMap builds a Config from an in-memory option tree using the same
// keys and rules as [ParseConfig].
func ConfigFromMap(m map[string]any) (Config, error) {
	if m == nil {
		return ParseConfig(nil)
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return ParseConfig(data)
}

func (fc fileConfig) apply(cfg Config) (Config, error) {
	if fc.Store != nil && fc.Redis != nil {
		return cfg, errors.New(`"store" and "redis" are mutually exclusive`)
	}
	if fc.Session != nil && fc.Custom != nil {
		return cfg, errors.New(`"session" and "custom" are mutually exclusive`)
	}

	store := fc.Store
	if store == nil {
		store = fc.Redis
	}
	if store != nil {
		if store.KeyPrefix != nil && store.Prefix != nil {
			return cfg, errors.New(`"keyPrefix" and "prefix" are mutually exclusive`)
		}
		setString(&cfg.Store.Host, store.Host)
		setInt(&cfg.Store.Port, store.Port)
		if store.Addrs != nil {
			cfg.Store.Addrs = append([]string(nil), store.Addrs...)
		}
		setString(&cfg.Store.Username, store.Username)
		setString(&cfg.Store.Password, store.Password)
		setInt(&cfg.Store.DB, store.DB)
		setString(&cfg.Store.KeyPrefix, store.KeyPrefix)
		setString(&cfg.Store.KeyPrefix, store.Prefix)
		setDuration(&cfg.Store.DialTimeout, store.DialTimeout)
		setDuration(&cfg.Store.ReadTimeout, store.ReadTimeout)
		setDuration(&cfg.Store.WriteTimeout, store.WriteTimeout)
		setInt(&cfg.Store.PoolSize, store.PoolSize)
		setInt(&cfg.Store.MaxRetries, store.MaxRetries)
	}

	sess := fc.Session
	if sess == nil {
		sess = fc.Custom
	}
	if sess != nil {
		if sess.Expire != nil {
			secs := int64(*sess.Expire)
			if secs <= 0 || secs > int64(time.Duration(1<<62)/time.Second) {
				return cfg, fmt.Errorf("session expire %d out of range", secs)
			}
			cfg.Session.Expire = time.Duration(secs) * time.Second
		}
		setBool(&cfg.Session.VerifyExtendsToken, sess.VerifyExtendsToken)
	}

	if sec := fc.Security; sec != nil {
		setBool(&cfg.Security.EnableVerifyThrottle, sec.EnableVerifyThrottle)
		setInt(&cfg.Security.MaxVerifyMisses, sec.MaxVerifyMisses)
		setDuration(&cfg.Security.VerifyMissCooldown, sec.VerifyMissCooldown)
		setString(&cfg.Security.VerifyThrottlePrefix, sec.VerifyThrottlePrefix)
	}

	if a := fc.Audit; a != nil {
		setBool(&cfg.Audit.Enabled, a.Enabled)
		setInt(&cfg.Audit.BufferSize, a.BufferSize)
		setBool(&cfg.Audit.DropIfFull, a.DropIfFull)
	}

	if m := fc.Metrics; m != nil {
		setBool(&cfg.Metrics.Enabled, m.Enabled)
		setBool(&cfg.Metrics.EnableLatencyHistograms, m.EnableLatencyHistograms)
	}

	return cfg, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *time.Duration) {
	if v != nil {
		*dst = *v
	}
}
