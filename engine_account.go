package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/synccord/authcore/permission"
)

// CreateAccount registers a new user with the ME permission. Username and
// email uniqueness is enforced atomically by the store. The password must
// meet the configured minimum length.
func (e *Engine) CreateAccount(ctx context.Context, req CreateAccountRequest) (*Credential, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if len(req.Password) < e.config.Account.MinPasswordLength {
		return nil, ErrPasswordTooShort
	}

	hash, salt, err := e.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	cred := &Credential{
		Username:     req.Username,
		PasswordHash: hash,
		Salt:         salt,
		Permissions:  permission.Me,
		CreatedAt:    e.now().UTC(),
	}
	email := &EmailRecord{Address: req.Email}
	if err := e.store.Create(ctx, cred, email); err != nil {
		return nil, storeErr(err)
	}

	e.metricInc(MetricAccountCreated)
	e.emitAudit(ctx, AuditEvent{
		EventType: auditEventAccountCreated,
		UserID:    cred.ID,
		Username:  cred.Username,
		Success:   true,
	})
	return cred, nil
}

// ChangePassword rotates the user's password behind the step-up gate. The
// new password gets a fresh salt. Outstanding tokens stay valid; only a
// changed email kills them.
func (e *Engine) ChangePassword(ctx context.Context, userID, oldPassword, newPassword, mfaCode string) error {
	if err := e.ready(); err != nil {
		return err
	}
	unlock := e.lockUser(userID)
	defer unlock()

	cred, err := e.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := e.stepUp(ctx, cred, oldPassword, mfaCode); err != nil {
		return err
	}
	if len(newPassword) < e.config.Account.MinPasswordLength {
		return ErrPasswordTooShort
	}
	if e.hasher.Verify(newPassword, cred.PasswordHash, cred.Salt) {
		e.metricInc(MetricPasswordReuseRejected)
		return ErrPasswordReuse
	}

	hash, salt, err := e.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	cred.PasswordHash = hash
	cred.Salt = salt
	if err := e.store.Save(ctx, cred); err != nil {
		return storeErr(err)
	}

	e.metricInc(MetricPasswordChanged)
	e.emitAudit(ctx, AuditEvent{
		EventType: auditEventPasswordChanged,
		UserID:    cred.ID,
		Username:  cred.Username,
		Success:   true,
	})
	return nil
}

// DeleteAccount removes the user behind the step-up gate. The email record,
// every recovery code, and the user record go in one atomic cascade;
// partial deletion is never observable.
func (e *Engine) DeleteAccount(ctx context.Context, userID, currentPassword, mfaCode string) error {
	if err := e.ready(); err != nil {
		return err
	}
	unlock := e.lockUser(userID)
	defer unlock()

	cred, err := e.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := e.stepUp(ctx, cred, currentPassword, mfaCode); err != nil {
		return err
	}
	if err := e.store.Delete(ctx, cred.ID); err != nil {
		return storeErr(err)
	}

	e.metricInc(MetricAccountDeleted)
	e.emitAudit(ctx, AuditEvent{
		EventType: auditEventAccountDeleted,
		UserID:    cred.ID,
		Username:  cred.Username,
		Success:   true,
	})
	return nil
}

// ChangeEmail replaces the user's email address behind the step-up gate.
// The new address starts unverified. Because tokens bind the email current
// at issuance, every outstanding token for the user dies on the next
// validation.
func (e *Engine) ChangeEmail(ctx context.Context, userID, currentPassword, mfaCode, newEmail string) error {
	if err := e.ready(); err != nil {
		return err
	}
	unlock := e.lockUser(userID)
	defer unlock()

	cred, err := e.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := e.stepUp(ctx, cred, currentPassword, mfaCode); err != nil {
		return err
	}

	if other, err := e.store.GetByEmail(ctx, newEmail); err == nil && other.ID != cred.ID {
		return ErrEmailTaken
	} else if err != nil && !errors.Is(err, ErrUserNotFound) {
		return storeErr(err)
	}

	rec := &EmailRecord{UserID: cred.ID, Address: newEmail, Verified: false}
	if err := e.store.SaveEmail(ctx, rec); err != nil {
		return storeErr(err)
	}

	e.metricInc(MetricEmailChanged)
	e.emitAudit(ctx, AuditEvent{
		EventType: auditEventEmailChanged,
		UserID:    cred.ID,
		Username:  cred.Username,
		Success:   true,
	})
	return nil
}

// SetBanned flips the ban flag. Banned users keep their tokens but fail
// Authorize until unbanned. Callers must have authorized an admin scope.
func (e *Engine) SetBanned(ctx context.Context, userID string, banned bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	unlock := e.lockUser(userID)
	defer unlock()

	cred, err := e.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if cred.Banned == banned {
		return nil
	}
	cred.Banned = banned
	if err := e.store.Save(ctx, cred); err != nil {
		return storeErr(err)
	}

	e.metricInc(MetricBanSet)
	e.emitAudit(ctx, AuditEvent{
		EventType: auditEventAccountBanSet,
		UserID:    cred.ID,
		Username:  cred.Username,
		Success:   true,
		Metadata:  map[string]string{"banned": fmt.Sprintf("%t", banned)},
	})
	return nil
}

// UpdatePermissions replaces the user's live permission mask. Tokens
// already issued keep their granted scope list, but the dual check at
// validation drops any scope no longer in the mask immediately.
func (e *Engine) UpdatePermissions(ctx context.Context, userID string, perms permission.Set) error {
	if err := e.ready(); err != nil {
		return err
	}
	unlock := e.lockUser(userID)
	defer unlock()

	cred, err := e.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	cred.Permissions = perms
	if err := e.store.Save(ctx, cred); err != nil {
		return storeErr(err)
	}

	e.metricInc(MetricPermissionsUpdated)
	e.emitAudit(ctx, AuditEvent{
		EventType: auditEventPermissionsUpdated,
		UserID:    cred.ID,
		Username:  cred.Username,
		Success:   true,
		Metadata:  map[string]string{"scopes": fmt.Sprint(perms.Scopes())},
	})
	return nil
}

// stepUp is the re-authentication gate shared by sensitive mutations:
// current password first, then a second factor when MFA is on.
func (e *Engine) stepUp(ctx context.Context, cred *Credential, currentPassword, mfaCode string) error {
	if !e.hasher.Verify(currentPassword, cred.PasswordHash, cred.Salt) {
		return ErrWrongPassword
	}
	if !cred.MFAEnabled {
		return nil
	}
	if mfaCode == "" {
		return ErrMFARequired
	}
	return e.verifySecondFactor(ctx, cred, mfaCode)
}
