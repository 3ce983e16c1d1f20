package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/synccord/authcore/permission"
	"github.com/synccord/authcore/token"
)

// IssueToken exchanges a username and password, plus a one-time code when
// the account has MFA enabled, for a bearer access token.
//
// The scopes in the request are filtered against the account's live
// permission mask: only scopes the user actually holds make it into the
// token. Owners additionally receive the OWNER pseudo-scope. Unknown user
// and wrong password collapse into the same ErrInvalidCredentials, with a
// dummy hash burned on the unknown-user path so the two are not
// distinguishable by timing.
func (e *Engine) IssueToken(ctx context.Context, req TokenRequest) (*IssuedToken, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	cred, err := e.store.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.hasher.VerifyDummy(req.Password)
			e.metricInc(MetricTokenRejected)
			e.emitAudit(ctx, AuditEvent{
				EventType: auditEventTokenRejected,
				Username:  req.Username,
				Error:     "unknown user",
			})
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if !e.hasher.Verify(req.Password, cred.PasswordHash, cred.Salt) {
		e.metricInc(MetricTokenRejected)
		e.emitAudit(ctx, AuditEvent{
			EventType: auditEventTokenRejected,
			UserID:    cred.ID,
			Username:  cred.Username,
			Error:     "wrong password",
		})
		return nil, ErrInvalidCredentials
	}

	if cred.MFAEnabled {
		if req.MFACode == "" {
			e.metricInc(MetricMFARequired)
			return nil, ErrMFARequired
		}
		if err := e.verifySecondFactor(ctx, cred, req.MFACode); err != nil {
			e.metricInc(MetricMFAFailure)
			e.emitAudit(ctx, AuditEvent{
				EventType: auditEventMFAFailure,
				UserID:    cred.ID,
				Username:  cred.Username,
				Error:     err.Error(),
			})
			return nil, err
		}
		e.metricInc(MetricMFASuccess)
	}

	email, err := e.store.GetEmailByUser(ctx, cred.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	granted := grantScopes(req.Scopes, cred)

	ip := clientIPFromContext(ctx)
	userAgent := userAgentFromContext(ctx)
	signed, err := e.tokens.Issue(cred.Username, email.Address, granted, ip, userAgent)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	e.metricInc(MetricTokenIssued)
	e.emitAudit(ctx, AuditEvent{
		EventType: auditEventTokenIssued,
		UserID:    cred.ID,
		Username:  cred.Username,
		Success:   true,
		Metadata:  map[string]string{"scopes": strings.Join(granted, " ")},
	})
	return &IssuedToken{AccessToken: signed, TokenType: token.Type}, nil
}

// grantScopes intersects the requested scope names with the account's live
// permission mask and appends OWNER for owner accounts. Unknown scope names
// and scopes the user does not hold are silently dropped.
func grantScopes(requested []string, cred *Credential) []string {
	granted := make([]string, 0, len(requested)+1)
	seen := make(map[string]struct{}, len(requested))
	for _, name := range requested {
		if _, dup := seen[name]; dup {
			continue
		}
		bit, ok := permission.Parse(name)
		if !ok {
			continue
		}
		if !cred.Permissions.Has(bit) {
			continue
		}
		seen[name] = struct{}{}
		granted = append(granted, name)
	}
	if cred.Owner {
		granted = append(granted, permission.Owner)
	}
	return granted
}
