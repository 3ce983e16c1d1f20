package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/synccord/authcore/internal/keylock"
	"github.com/synccord/authcore/password"
	"github.com/synccord/authcore/revocation"
	"github.com/synccord/authcore/token"
	"github.com/synccord/authcore/totp"
)

// Engine is the authentication and authorization core. It exchanges
// credentials for bearer tokens, validates and authorizes tokens against
// live account state, and performs the step-up gated account mutations.
//
// An Engine is immutable after Build and safe for concurrent use. Mutations
// of a single account are serialized through a per-user lock, so concurrent
// writers to the same user never interleave.
type Engine struct {
	config    Config
	store     UserStore
	hasher    *password.Hasher
	tokens    *token.Manager
	totp      *totp.Manager
	revoked   revocation.Cache
	audit     *auditDispatcher
	metrics   *Metrics
	clock     Clock
	userLocks *keylock.Mutex
}

// Close flushes and stops the audit dispatcher. The engine must not be used
// after Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were shed under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) now() time.Time {
	if e.clock != nil {
		return e.clock()
	}
	return time.Now()
}

func (e *Engine) emitAudit(ctx context.Context, event AuditEvent) {
	if e == nil || e.audit == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = e.now().UTC()
	}
	if event.IP == "" {
		event.IP = clientIPFromContext(ctx)
	}
	e.audit.Emit(ctx, event)
}

func (e *Engine) ready() error {
	if e == nil || e.store == nil || e.hasher == nil || e.tokens == nil {
		return ErrEngineNotReady
	}
	return nil
}

// lockUser serializes account mutations per user ID. The returned func
// releases the lock.
func (e *Engine) lockUser(userID string) func() {
	e.userLocks.Lock(userID)
	return func() { e.userLocks.Unlock(userID) }
}

// loadUser fetches a credential by ID, mapping store transport errors onto
// ErrStoreUnavailable while preserving ErrUserNotFound.
func (e *Engine) loadUser(ctx context.Context, userID string) (*Credential, error) {
	cred, err := e.store.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return cred, nil
}

func storeErr(err error) error {
	if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrUsernameTaken) || errors.Is(err, ErrEmailTaken) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
