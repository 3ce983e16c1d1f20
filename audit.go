package authcore

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// AuditEvent is a structured security event emitted by the engine.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	Username  string            `json:"username,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

const (
	auditEventTokenIssued        = "token.issued"
	auditEventTokenRejected      = "token.rejected"
	auditEventTokenInvalidated   = "token.invalidated"
	auditEventTokenBurned        = "token.burned"
	auditEventScopeDenied        = "scope.denied"
	auditEventBannedRejected     = "account.banned_rejected"
	auditEventMFAEnrollStarted   = "mfa.enroll_started"
	auditEventMFAEnabled         = "mfa.enabled"
	auditEventMFADisabled        = "mfa.disabled"
	auditEventMFAFailure         = "mfa.failure"
	auditEventRecoveryCodeUsed   = "mfa.recovery_code_used"
	auditEventPasswordChanged    = "account.password_changed"
	auditEventAccountCreated     = "account.created"
	auditEventAccountDeleted     = "account.deleted"
	auditEventAccountBanSet      = "account.ban_set"
	auditEventEmailChanged       = "account.email_changed"
	auditEventPermissionsUpdated = "account.permissions_updated"
)

// AuditSink receives audit events from the engine's dispatcher.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink discards every event.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink forwards events to a buffered channel for test assertions or
// custom pipelines.
type ChannelSink struct {
	events chan AuditEvent
}

// NewChannelSink creates a ChannelSink with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan AuditEvent, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events exposes the receiving side of the sink.
func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes one JSON object per line to an io.Writer.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink creates a JSONWriterSink writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

func (s *JSONWriterSink) Emit(_ context.Context, event AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
