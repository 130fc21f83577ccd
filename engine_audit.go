package goRWT

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventSessionSigned        = "session_signed"
	auditEventSessionSignFailed    = "session_sign_failed"
	auditEventSessionVerified      = "session_verified"
	auditEventSessionVerifyMissed  = "session_verify_missed"
	auditEventSessionVerifyFailed  = "session_verify_failed"
	auditEventSessionExtended      = "session_extended"
	auditEventSessionExtendFailed  = "session_extend_failed"
	auditEventSessionDestroyed     = "session_destroyed"
	auditEventSessionDestroyFailed = "session_destroy_failed"
	auditEventRateLimitTriggered   = "rate_limit_triggered"
)

// AuditErrorCode is the stable, machine-readable reason attached to failed
// audit events.
type AuditErrorCode string

const (
	auditErrInvalidArgument AuditErrorCode = "invalid_argument"
	auditErrRateLimited     AuditErrorCode = "rate_limited"
	auditErrSessionNotFound AuditErrorCode = "session_not_found"
	auditErrUnavailable     AuditErrorCode = "backend_unavailable"
	auditErrNotReady        AuditErrorCode = "engine_not_ready"
	auditErrInternal        AuditErrorCode = "internal_error"
)

// errSessionNotFound only labels audit events; the public API reports a
// missing session as a nil Record or a no-op.
var errSessionNotFound = errors.New("session not found")

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	identifier string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		SessionID: identifier,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, scope, identifier string) {
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, identifier, ErrVerifyRateLimited, func() map[string]string {
		return map[string]string{
			"scope": scope,
		}
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidArgument):
		return auditErrInvalidArgument
	case errors.Is(err, ErrVerifyRateLimited):
		return auditErrRateLimited
	case errors.Is(err, errSessionNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, ErrStore):
		return auditErrUnavailable
	case errors.Is(err, ErrEngineNotReady):
		return auditErrNotReady
	default:
		return auditErrInternal
	}
}
