package goRWT

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goRWT/internal"
	"github.com/MrEthical07/goRWT/internal/rate"
	"github.com/MrEthical07/goRWT/session"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Engine issues, verifies, extends and destroys opaque session tokens stored
// in Redis. It owns exactly one Redis client, opened lazily and reopened after
// [Engine.Disconnect]. All methods are safe for concurrent use.
type Engine struct {
	config  Config
	store   *session.Store
	limiter *rate.Limiter
	audit   *auditDispatcher
	metrics *Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
	closed  atomic.Bool
}

// Close disconnects from Redis and flushes pending audit events. Every later
// call fails with [ErrEngineNotReady].
func (e *Engine) Close() {
	if e == nil || !e.closed.CompareAndSwap(false, true) {
		return
	}
	if e.store != nil {
		if err := e.store.Disconnect(); err != nil {
			e.logger.Warn("redis disconnect failed", "error", err)
		}
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events lost to backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine's counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the configuration the engine was built with.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, start time.Time) {
	if e == nil || !e.metrics.LatencyEnabled() {
		return
	}
	e.metrics.Observe(id, time.Since(start))
}

func (e *Engine) ready() error {
	if e == nil || e.store == nil || e.closed.Load() {
		return ErrEngineNotReady
	}
	return nil
}

// ensureConnected opens the client when needed so that lazy reconnections
// are counted and logged like explicit ones.
func (e *Engine) ensureConnected(ctx context.Context) {
	if e.store.Connect() {
		e.metricInc(MetricConnect)
		e.logger.DebugContext(ctx, "redis client opened", "addrs", e.config.Store.Addresses())
	}
}

func (e *Engine) startSpan(ctx context.Context, name string, identifier string) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := e.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	if identifier != "" {
		span.SetAttributes(attribute.String("rwt.session_id", identifier))
	}
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func invalidArgument(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, reason)
}

func storeError(err error) error {
	return fmt.Errorf("%w: %v", ErrStore, err)
}

// storageKey validates the caller's pair and derives the Redis key. It never
// touches Redis.
func storageKey(identifier, secret string) (string, error) {
	key, err := internal.DeriveKey(identifier, secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return key, nil
}

/*
====================================
CONNECTION LIFECYCLE
====================================
*/

// Connect opens the Redis client if needed and checks it with PING. Calling
// it while connected only repeats the PING. A failed PING is reported as
// [ErrStore] but leaves the client installed, so later calls keep retrying.
func (e *Engine) Connect(ctx context.Context) error {
	if err := e.ready(); err != nil {
		return err
	}
	ctx, span := e.startSpan(ctx, "rwt.Connect", "")
	var err error
	defer func() { endSpan(span, err) }()

	e.ensureConnected(ctx)
	if _, pingErr := e.store.Ping(ctx); pingErr != nil {
		err = storeError(pingErr)
		e.logger.ErrorContext(ctx, "redis connection check failed", "error", pingErr)
		return err
	}
	return nil
}

// Disconnect closes the Redis client. It is a no-op when already
// disconnected; the next operation reconnects transparently.
func (e *Engine) Disconnect() error {
	if err := e.ready(); err != nil {
		return err
	}
	if !e.store.Connected() {
		return nil
	}
	if err := e.store.Disconnect(); err != nil {
		return storeError(err)
	}
	e.metricInc(MetricDisconnect)
	e.logger.Debug("redis client closed")
	return nil
}

// Connected reports whether the engine currently holds an open client.
func (e *Engine) Connected() bool {
	return e.ready() == nil && e.store.Connected()
}

// Ping measures a Redis round trip.
func (e *Engine) Ping(ctx context.Context) (time.Duration, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	ctx, span := e.startSpan(ctx, "rwt.Ping", "")
	e.ensureConnected(ctx)

	d, err := e.store.Ping(ctx)
	if err != nil {
		err = storeError(err)
	}
	endSpan(span, err)
	return d, err
}

/*
====================================
SESSION LIFECYCLE
====================================
*/

// Sign stores record under a fresh identifier and returns that identifier.
// The caller hands the identifier to the client and keeps secret; both are
// needed to reach the session again.
//
// Falsy fields (nil, "", zero numbers, false, NaN, empty byte slices) are
// dropped; every other value is stored as text. Nested values, a nil record,
// a record with no remaining fields, an empty secret or an expire below one
// second fail with [ErrInvalidArgument] before Redis is contacted.
//
//	Performance: 1 round trip (MULTI HSET EXPIRE EXEC).
func (e *Engine) Sign(ctx context.Context, record map[string]any, secret string, opts ...SignOption) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	ctx, span := e.startSpan(ctx, "rwt.Sign", "")
	var err error
	defer func() { endSpan(span, err) }()

	identifier, fields, expire, err := e.prepareSign(record, secret, opts)
	if err != nil {
		e.signFailed(ctx, identifier, err)
		return "", err
	}
	span.SetAttributes(attribute.String("rwt.session_id", identifier))

	key, err := storageKey(identifier, secret)
	if err != nil {
		e.signFailed(ctx, identifier, err)
		return "", err
	}

	e.ensureConnected(ctx)
	if storeErr := e.store.SetFields(ctx, key, fields, expire); storeErr != nil {
		err = storeError(storeErr)
		e.logger.ErrorContext(ctx, "session sign failed", "session_id", identifier, "error", storeErr)
		e.signFailed(ctx, identifier, err)
		return "", err
	}

	e.metricInc(MetricSignSuccess)
	e.logger.DebugContext(ctx, "session signed", "session_id", identifier, "fields", len(fields), "expire", expire)
	e.emitAudit(ctx, auditEventSessionSigned, true, identifier, nil, func() map[string]string {
		return map[string]string{
			"expire_seconds": strconv.FormatInt(int64(expire/time.Second), 10),
		}
	})
	return identifier, nil
}

func (e *Engine) prepareSign(record map[string]any, secret string, opts []SignOption) (string, session.Fields, time.Duration, error) {
	o := e.signOptions(opts)
	if o.expire < time.Second {
		return "", nil, 0, invalidArgument("expire must be at least one second")
	}
	if secret == "" {
		return "", nil, 0, fmt.Errorf("%w: %v", ErrInvalidArgument, internal.ErrEmptySecret)
	}

	fields, err := session.Encode(record)
	if err != nil {
		return "", nil, 0, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if len(fields) == 0 {
		return "", nil, 0, invalidArgument("record has no storable fields")
	}

	identifier, err := internal.NewIdentifier()
	if err != nil {
		return "", nil, 0, fmt.Errorf("generate session identifier: %w", err)
	}
	return identifier, fields, o.expire.Truncate(time.Second), nil
}

func (e *Engine) signFailed(ctx context.Context, identifier string, err error) {
	e.metricInc(MetricSignFailure)
	if errors.Is(err, ErrInvalidArgument) {
		e.metricInc(MetricInvalidArgument)
	}
	e.emitAudit(ctx, auditEventSessionSignFailed, false, identifier, err, nil)
}

// Verify returns the record stored for identifier and secret, or a nil
// [Record] when no live session matches (wrong secret, expired, destroyed).
// A miss is not an error.
//
// With VerifyExtendsToken the session TTL is reset in the same round trip. A
// failed reset is logged and counted but never fails the Verify.
//
// With the verify throttle enabled, identifiers that missed too often in the
// current window fail with [ErrVerifyRateLimited].
//
//	Performance: 1 round trip, +1 GET and +1 INCR/DEL with the throttle.
func (e *Engine) Verify(ctx context.Context, identifier, secret string) (Record, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer e.metricObserve(MetricVerifyLatency, start)

	ctx, span := e.startSpan(ctx, "rwt.Verify", identifier)
	var err error
	defer func() { endSpan(span, err) }()

	key, err := storageKey(identifier, secret)
	if err != nil {
		e.metricInc(MetricInvalidArgument)
		e.emitAudit(ctx, auditEventSessionVerifyFailed, false, identifier, err, nil)
		return nil, err
	}

	e.ensureConnected(ctx)
	if err = e.checkVerifyThrottle(ctx, identifier); err != nil {
		return nil, err
	}

	var (
		rec      Record
		storeErr error
	)
	if e.config.Session.VerifyExtendsToken {
		rec, storeErr = e.store.GetAllAndTouch(ctx, key, e.config.Session.Expire)
		if errors.Is(storeErr, session.ErrTouchFailed) {
			e.metricInc(MetricVerifyExtendFailure)
			e.logger.WarnContext(ctx, "session ttl refresh on verify failed", "session_id", identifier, "error", storeErr)
			storeErr = nil
		} else if storeErr == nil && rec != nil {
			e.metricInc(MetricVerifyExtended)
		}
	} else {
		rec, storeErr = e.store.GetAll(ctx, key)
	}
	if storeErr != nil {
		err = storeError(storeErr)
		e.metricInc(MetricVerifyFailure)
		e.logger.ErrorContext(ctx, "session verify failed", "session_id", identifier, "error", storeErr)
		e.emitAudit(ctx, auditEventSessionVerifyFailed, false, identifier, err, nil)
		return nil, err
	}

	if rec == nil {
		e.metricInc(MetricVerifyMiss)
		e.recordVerifyMiss(ctx, identifier)
		span.SetAttributes(attribute.Bool("rwt.session_found", false))
		e.emitAudit(ctx, auditEventSessionVerifyMissed, false, identifier, errSessionNotFound, nil)
		return nil, nil
	}

	e.metricInc(MetricVerifyHit)
	e.resetVerifyMisses(ctx, identifier)
	span.SetAttributes(attribute.Bool("rwt.session_found", true))
	e.emitAudit(ctx, auditEventSessionVerified, true, identifier, nil, nil)
	return rec, nil
}

func (e *Engine) checkVerifyThrottle(ctx context.Context, identifier string) error {
	if e.limiter == nil {
		return nil
	}
	err := e.limiter.CheckVerify(ctx, e.store.Client(), identifier)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		e.metricInc(MetricVerifyRateLimited)
		e.logger.WarnContext(ctx, "verify rate limited", "session_id", identifier)
		e.emitRateLimit(ctx, "verify", identifier)
		return ErrVerifyRateLimited
	default:
		e.metricInc(MetricVerifyFailure)
		e.logger.ErrorContext(ctx, "verify throttle check failed", "session_id", identifier, "error", err)
		return storeError(err)
	}
}

func (e *Engine) recordVerifyMiss(ctx context.Context, identifier string) {
	if e.limiter == nil {
		return
	}
	if err := e.limiter.IncrementVerifyMiss(ctx, e.store.Client(), identifier); err != nil {
		e.logger.WarnContext(ctx, "verify miss not recorded", "session_id", identifier, "error", err)
	}
}

func (e *Engine) resetVerifyMisses(ctx context.Context, identifier string) {
	if e.limiter == nil {
		return
	}
	if err := e.limiter.ResetVerify(ctx, e.store.Client(), identifier); err != nil {
		e.logger.WarnContext(ctx, "verify miss counter not reset", "session_id", identifier, "error", err)
	}
}

// Extend resets the session TTL to the configured Expire. Extending a
// session that no longer exists is a no-op, not an error.
//
//	Performance: 1 Redis EXPIRE.
func (e *Engine) Extend(ctx context.Context, identifier, secret string) error {
	if err := e.ready(); err != nil {
		return err
	}
	ctx, span := e.startSpan(ctx, "rwt.Extend", identifier)
	var err error
	defer func() { endSpan(span, err) }()

	key, err := storageKey(identifier, secret)
	if err != nil {
		e.metricInc(MetricInvalidArgument)
		e.emitAudit(ctx, auditEventSessionExtendFailed, false, identifier, err, nil)
		return err
	}

	e.ensureConnected(ctx)
	existed, storeErr := e.store.Expire(ctx, key, e.config.Session.Expire)
	if storeErr != nil {
		err = storeError(storeErr)
		e.metricInc(MetricExtendFailure)
		e.logger.ErrorContext(ctx, "session extend failed", "session_id", identifier, "error", storeErr)
		e.emitAudit(ctx, auditEventSessionExtendFailed, false, identifier, err, nil)
		return err
	}

	if !existed {
		e.metricInc(MetricExtendMissing)
		e.logger.DebugContext(ctx, "extend on missing session ignored", "session_id", identifier)
		e.emitAudit(ctx, auditEventSessionExtendFailed, false, identifier, errSessionNotFound, nil)
		return nil
	}

	e.metricInc(MetricExtendSuccess)
	e.emitAudit(ctx, auditEventSessionExtended, true, identifier, nil, nil)
	return nil
}

// Destroy removes the session. Destroying a session that no longer exists is
// not an error.
//
//	Performance: 1 Redis DEL.
func (e *Engine) Destroy(ctx context.Context, identifier, secret string) error {
	if err := e.ready(); err != nil {
		return err
	}
	ctx, span := e.startSpan(ctx, "rwt.Destroy", identifier)
	var err error
	defer func() { endSpan(span, err) }()

	key, err := storageKey(identifier, secret)
	if err != nil {
		e.metricInc(MetricInvalidArgument)
		e.emitAudit(ctx, auditEventSessionDestroyFailed, false, identifier, err, nil)
		return err
	}

	e.ensureConnected(ctx)
	existed, storeErr := e.store.Delete(ctx, key)
	if storeErr != nil {
		err = storeError(storeErr)
		e.metricInc(MetricDestroyFailure)
		e.logger.ErrorContext(ctx, "session destroy failed", "session_id", identifier, "error", storeErr)
		e.emitAudit(ctx, auditEventSessionDestroyFailed, false, identifier, err, nil)
		return err
	}

	if !existed {
		e.metricInc(MetricDestroyMissing)
	} else {
		e.metricInc(MetricDestroySuccess)
	}
	e.emitAudit(ctx, auditEventSessionDestroyed, true, identifier, nil, func() map[string]string {
		return map[string]string{
			"existed": strconv.FormatBool(existed),
		}
	})
	return nil
}

// TTL reports the remaining lifetime of a session and whether it exists. A
// session without expiry reports (0, true).
func (e *Engine) TTL(ctx context.Context, identifier, secret string) (time.Duration, bool, error) {
	if err := e.ready(); err != nil {
		return 0, false, err
	}
	ctx, span := e.startSpan(ctx, "rwt.TTL", identifier)
	var err error
	defer func() { endSpan(span, err) }()

	key, err := storageKey(identifier, secret)
	if err != nil {
		e.metricInc(MetricInvalidArgument)
		return 0, false, err
	}

	e.ensureConnected(ctx)
	ttl, exists, storeErr := e.store.TTL(ctx, key)
	if storeErr != nil {
		err = storeError(storeErr)
		return 0, false, err
	}
	return ttl, exists, nil
}

// storeObserver routes go-redis hook events into the engine's logger and
// metrics. Dial failures are logged, never fatal.
type storeObserver struct {
	engine *Engine
}

func (o storeObserver) DialFailed(ctx context.Context, addr string, err error) {
	o.engine.metricInc(MetricDialFailure)
	o.engine.logger.ErrorContext(ctx, "redis connection error", "addr", addr, "error", err)
}

func (o storeObserver) CommandDone(_ context.Context, _ string, elapsed time.Duration, err error) {
	if err != nil {
		o.engine.metricInc(MetricStoreCommandFailure)
	}
	if o.engine.metrics.LatencyEnabled() {
		o.engine.metrics.Observe(MetricStoreLatency, elapsed)
	}
}
