package goRWT

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrEthical07/goRWT/internal/rate"
	"github.com/MrEthical07/goRWT/session"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/MrEthical07/goRWT"

// Builder assembles an [Engine]. A Builder is single-use: the second Build
// call fails.
type Builder struct {
	config Config

	logger         *slog.Logger
	auditSink      AuditSink
	tracerProvider trace.TracerProvider

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets where audit events go when Audit is enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithTracerProvider sets the provider used for per-operation spans. Defaults
// to the global provider, which is a no-op until the host installs one.
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracerProvider = tp
	return b
}

// WithMetricsEnabled toggles the in-process counters read by [Engine.MetricsSnapshot].
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the store latency histogram. Build rejects it
// unless metrics are enabled.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and creates a disconnected [Engine].
// No network I/O happens here; the first operation (or [Engine.Connect])
// opens the Redis client. Validation failures wrap [ErrConfig].
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	tp := b.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	engine := &Engine{
		config:  cloneConfig(cfg),
		logger:  logger,
		tracer:  tp.Tracer(instrumentationName),
		metrics: NewMetrics(cfg.Metrics),
	}
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink, logger)

	// -------- SESSION STORE --------
	engine.store = session.NewStore(session.Options{
		Addrs:        cfg.Store.Addresses(),
		Username:     cfg.Store.Username,
		Password:     cfg.Store.Password,
		DB:           cfg.Store.DB,
		KeyPrefix:    cfg.Store.KeyPrefix,
		DialTimeout:  cfg.Store.DialTimeout,
		ReadTimeout:  cfg.Store.ReadTimeout,
		WriteTimeout: cfg.Store.WriteTimeout,
		PoolSize:     cfg.Store.PoolSize,
		MaxRetries:   cfg.Store.MaxRetries,
	}, session.NewObserverHook(storeObserver{engine: engine}))

	// -------- VERIFY THROTTLE --------
	if cfg.Security.EnableVerifyThrottle {
		engine.limiter = rate.New(rate.Config{
			Prefix:       cfg.Security.VerifyThrottlePrefix,
			MaxMisses:    cfg.Security.MaxVerifyMisses,
			MissCooldown: cfg.Security.VerifyMissCooldown,
		})
	}

	b.built = true

	return engine, nil
}
