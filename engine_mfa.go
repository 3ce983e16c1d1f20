package authcore

import (
	"context"
	"fmt"

	"github.com/synccord/authcore/internal/codes"
)

// BeginMFAEnrollment generates a fresh TOTP secret for the user and returns
// the otpauth provisioning URI. The secret stays unconfirmed, and MFA stays
// off, until ConfirmMFAEnrollment proves the authenticator produces matching
// codes. Calling it again before confirmation replaces the pending secret.
func (e *Engine) BeginMFAEnrollment(ctx context.Context, userID string) (*MFAEnrollment, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	unlock := e.lockUser(userID)
	defer unlock()

	cred, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cred.MFAEnabled {
		return nil, ErrMFAAlreadyEnabled
	}

	secret, uri, err := e.totp.GenerateSecret(cred.Username)
	if err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}

	cred.MFASecret = secret
	if err := e.store.Save(ctx, cred); err != nil {
		return nil, storeErr(err)
	}

	e.metricInc(MetricMFAEnrollStarted)
	e.emitAudit(ctx, AuditEvent{
		EventType: auditEventMFAEnrollStarted,
		UserID:    cred.ID,
		Username:  cred.Username,
		Success:   true,
	})
	return &MFAEnrollment{Secret: secret, URI: uri}, nil
}

// ConfirmMFAEnrollment turns MFA on after the user proves possession of
// both the password and a working authenticator. On success it atomically
// replaces any prior recovery codes with a fresh batch, which is returned
// exactly once and never retrievable again.
func (e *Engine) ConfirmMFAEnrollment(ctx context.Context, userID, currentPassword, code string) ([]string, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	unlock := e.lockUser(userID)
	defer unlock()

	cred, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cred.MFAEnabled {
		return nil, ErrMFAAlreadyEnabled
	}
	if cred.MFASecret == "" {
		return nil, ErrMFANotProvisioned
	}
	if !e.hasher.Verify(currentPassword, cred.PasswordHash, cred.Salt) {
		return nil, ErrWrongPassword
	}
	if !e.totp.Verify(cred.MFASecret, code, e.now()) {
		e.metricInc(MetricMFAFailure)
		e.emitAudit(ctx, AuditEvent{
			EventType: auditEventMFAFailure,
			UserID:    cred.ID,
			Username:  cred.Username,
			Error:     "enrollment code rejected",
		})
		return nil, ErrMFAInvalidCode
	}

	batch, err := codes.NewBatch()
	if err != nil {
		return nil, fmt.Errorf("generate recovery codes: %w", err)
	}
	if err := e.store.ReplaceRecoveryCodes(ctx, cred.ID, batch); err != nil {
		return nil, storeErr(err)
	}

	cred.MFAEnabled = true
	if err := e.store.Save(ctx, cred); err != nil {
		return nil, storeErr(err)
	}

	e.metricInc(MetricMFAEnabled)
	e.emitAudit(ctx, AuditEvent{
		EventType: auditEventMFAEnabled,
		UserID:    cred.ID,
		Username:  cred.Username,
		Success:   true,
	})
	return batch, nil
}

// DisableMFA turns MFA off for the user's own account. It is step-up
// gated: the caller must present the current password and a valid second
// factor (TOTP or an unused recovery code). The secret is cleared and every
// recovery code is deleted.
func (e *Engine) DisableMFA(ctx context.Context, userID, currentPassword, code string) error {
	if err := e.ready(); err != nil {
		return err
	}
	unlock := e.lockUser(userID)
	defer unlock()

	cred, err := e.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if !cred.MFAEnabled {
		return ErrMFANotEnabled
	}
	if !e.hasher.Verify(currentPassword, cred.PasswordHash, cred.Salt) {
		return ErrWrongPassword
	}
	if code == "" {
		return ErrMFARequired
	}
	if err := e.verifySecondFactor(ctx, cred, code); err != nil {
		e.metricInc(MetricMFAFailure)
		e.emitAudit(ctx, AuditEvent{
			EventType: auditEventMFAFailure,
			UserID:    cred.ID,
			Username:  cred.Username,
			Error:     "disable code rejected",
		})
		return err
	}
	return e.clearMFA(ctx, cred)
}

// AdminDisableMFA turns MFA off for another account without a second
// factor. Callers must have authorized the DISABLE_2FA scope first; the
// engine does not re-check it here.
func (e *Engine) AdminDisableMFA(ctx context.Context, userID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	unlock := e.lockUser(userID)
	defer unlock()

	cred, err := e.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if !cred.MFAEnabled && cred.MFASecret == "" {
		return ErrMFANotEnabled
	}
	return e.clearMFA(ctx, cred)
}

func (e *Engine) clearMFA(ctx context.Context, cred *Credential) error {
	if err := e.store.ReplaceRecoveryCodes(ctx, cred.ID, nil); err != nil {
		return storeErr(err)
	}
	cred.MFAEnabled = false
	cred.MFASecret = ""
	if err := e.store.Save(ctx, cred); err != nil {
		return storeErr(err)
	}
	e.metricInc(MetricMFADisabled)
	e.emitAudit(ctx, AuditEvent{
		EventType: auditEventMFADisabled,
		UserID:    cred.ID,
		Username:  cred.Username,
		Success:   true,
	})
	return nil
}

// verifySecondFactor accepts either a current TOTP code or an unused
// recovery code. Recovery-code consumption is atomic in the store, so a
// code can never be spent twice even under concurrent submission. A spent
// code fails with ErrRecoveryCodeUsed; anything else that does not match
// fails with ErrMFAInvalidCode.
func (e *Engine) verifySecondFactor(ctx context.Context, cred *Credential, code string) error {
	if cred.MFASecret != "" && e.totp.Verify(cred.MFASecret, code, e.now()) {
		return nil
	}

	result, err := e.store.ConsumeRecoveryCode(ctx, cred.ID, code)
	if err != nil {
		return storeErr(err)
	}
	switch result {
	case RecoveryCodeConsumed:
		e.metricInc(MetricRecoveryCodeUsed)
		e.emitAudit(ctx, AuditEvent{
			EventType: auditEventRecoveryCodeUsed,
			UserID:    cred.ID,
			Username:  cred.Username,
			Success:   true,
		})
		return nil
	case RecoveryCodeAlreadyUsed:
		e.metricInc(MetricRecoveryCodeReplay)
		return ErrRecoveryCodeUsed
	default:
		return ErrMFAInvalidCode
	}
}
