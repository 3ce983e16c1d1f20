package authcore

import "time"

// Test-only aliases exposing internals to the external test package.
const (
	AuditEventAccountCreated = auditEventAccountCreated
	AuditEventTokenIssued    = auditEventTokenIssued
	AuditEventTokenRejected  = auditEventTokenRejected
)

func NewAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	return newAuditDispatcher(cfg, sink)
}

func CloneConfig(cfg Config) Config { return cloneConfig(cfg) }

func DefaultConfig() Config { return defaultConfig() }

func EngineNow(e *Engine) time.Time { return e.now() }
