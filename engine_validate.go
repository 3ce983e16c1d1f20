package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/synccord/authcore/permission"
	"github.com/synccord/authcore/token"
)

// ValidateToken checks a bearer token and returns the resolved Principal.
//
// Validation happens in order: revocation cache, signature and expiry,
// user-agent binding, live account state (the user must still exist and the
// bound email must still be current), then the required scopes. A user-agent
// mismatch burns the token: it is inserted into the revocation cache so
// retrying with the original user agent also fails.
//
// Scope checks are dual: each required scope must have been granted inside
// the token AND still be present in the account's live permission mask.
// Owners pass every scope check; the literal OWNER scope fails for everyone
// else.
func (e *Engine) ValidateToken(ctx context.Context, tokenStr string, requiredScopes []string) (*Principal, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	if e.revoked != nil {
		revoked, err := e.revoked.Contains(ctx, tokenStr)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
		}
		if revoked {
			e.metricInc(MetricTokenInvalidated)
			e.emitAudit(ctx, AuditEvent{
				EventType: auditEventTokenInvalidated,
				Error:     "token revoked",
			})
			return nil, ErrTokenInvalidated
		}
	}

	claims, err := e.tokens.Parse(tokenStr)
	if err != nil {
		cause := "malformed token"
		if errors.Is(err, token.ErrExpired) {
			cause = "token expired"
			e.metricInc(MetricTokenExpired)
		} else {
			e.metricInc(MetricTokenInvalidated)
		}
		e.emitAudit(ctx, AuditEvent{
			EventType: auditEventTokenInvalidated,
			Error:     cause,
		})
		return nil, ErrTokenInvalidated
	}

	if ua := userAgentFromContext(ctx); ua != claims.UserAgent {
		if e.revoked != nil {
			if err := e.revoked.Add(ctx, tokenStr); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
			}
		}
		e.metricInc(MetricTokenBurned)
		e.emitAudit(ctx, AuditEvent{
			EventType: auditEventTokenBurned,
			Username:  claims.Subject,
			Error:     "user agent mismatch",
		})
		return nil, ErrTokenInvalidated
	}

	cred, err := e.store.GetByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricTokenInvalidated)
			e.emitAudit(ctx, AuditEvent{
				EventType: auditEventTokenInvalidated,
				Username:  claims.Subject,
				Error:     "subject no longer exists",
			})
			return nil, ErrTokenInvalidated
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	email, err := e.store.GetEmailByUser(ctx, cred.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if email.Address != claims.Email {
		e.metricInc(MetricTokenInvalidated)
		e.emitAudit(ctx, AuditEvent{
			EventType: auditEventTokenInvalidated,
			UserID:    cred.ID,
			Username:  cred.Username,
			Error:     "email changed since issuance",
		})
		return nil, ErrTokenInvalidated
	}

	if err := checkScopes(requiredScopes, claims.Scopes, cred); err != nil {
		e.metricInc(MetricScopeDenied)
		e.emitAudit(ctx, AuditEvent{
			EventType: auditEventScopeDenied,
			UserID:    cred.ID,
			Username:  cred.Username,
			Error:     err.Error(),
		})
		return nil, err
	}

	return &Principal{
		UserID:      cred.ID,
		Username:    cred.Username,
		Email:       email.Address,
		Scopes:      claims.Scopes,
		Permissions: cred.Permissions,
		Owner:       cred.Owner,
		Banned:      cred.Banned,
	}, nil
}

// Authorize is ValidateToken plus the ban gate. Banned accounts are refused
// regardless of scopes. This is the entry point request middleware should
// use.
func (e *Engine) Authorize(ctx context.Context, tokenStr string, requiredScopes []string) (*Principal, error) {
	principal, err := e.ValidateToken(ctx, tokenStr, requiredScopes)
	if err != nil {
		return nil, err
	}
	if principal.Banned {
		e.metricInc(MetricBannedRejected)
		e.emitAudit(ctx, AuditEvent{
			EventType: auditEventBannedRejected,
			UserID:    principal.UserID,
			Username:  principal.Username,
		})
		return nil, ErrAccountBanned
	}
	return principal, nil
}

// AuthorizeSelf authorizes a token for self-service operations, requiring
// only the ME scope.
func (e *Engine) AuthorizeSelf(ctx context.Context, tokenStr string) (*Principal, error) {
	return e.Authorize(ctx, tokenStr, []string{"ME"})
}

// checkScopes enforces the dual scope check. Owner accounts satisfy any
// requirement; the literal OWNER requirement is satisfiable only by owners.
func checkScopes(required, granted []string, cred *Credential) error {
	if len(required) == 0 {
		return nil
	}
	if cred.Owner {
		return nil
	}
	grantedSet := make(map[string]struct{}, len(granted))
	for _, name := range granted {
		grantedSet[name] = struct{}{}
	}
	for _, name := range required {
		if name == permission.Owner {
			return ErrPermissionDenied
		}
		if _, ok := grantedSet[name]; !ok {
			return ErrPermissionDenied
		}
		bit, ok := permission.Parse(name)
		if !ok || !cred.Permissions.Has(bit) {
			return ErrPermissionDenied
		}
	}
	return nil
}
