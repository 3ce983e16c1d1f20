package authcore

import (
	"context"
	"time"

	"github.com/synccord/authcore/permission"
)

// Clock supplies the current time. It is injected so token TTLs and TOTP
// windows are deterministic under test.
type Clock func() time.Time

// Credential is the persisted account record owned by the user store.
// Mutations go through the Engine, which serializes writers per user.
type Credential struct {
	ID           string
	Username     string
	PasswordHash []byte
	Salt         []byte
	Banned       bool
	Owner        bool
	Permissions  permission.Set
	MFAEnabled   bool
	// MFASecret holds the base32 TOTP secret. A non-empty secret with
	// MFAEnabled false marks a pending, unconfirmed enrollment.
	MFASecret string
	CreatedAt time.Time
}

// EmailRecord is the unique email address attached to a user. Tokens bind to
// the address current at issuance, so changing it invalidates outstanding
// tokens.
type EmailRecord struct {
	UserID   string
	Address  string
	Verified bool
}

// RecoveryCode is a single-use MFA fallback credential. The used flag is
// monotonic: once consumed a code never becomes valid again.
type RecoveryCode struct {
	ID   string
	Code string
	Used bool
}

// RecoveryCodeResult is the outcome of an atomic recovery-code consumption
// attempt.
type RecoveryCodeResult int

const (
	// RecoveryCodeUnknown means no stored code matched.
	RecoveryCodeUnknown RecoveryCodeResult = iota
	// RecoveryCodeConsumed means an unused code matched and is now marked used.
	RecoveryCodeConsumed
	// RecoveryCodeAlreadyUsed means the matching code was consumed earlier.
	RecoveryCodeAlreadyUsed
)

// Principal is the identity resolved from a validated token: an immutable
// per-request snapshot, never persisted.
type Principal struct {
	UserID   string
	Username string
	Email    string
	// Scopes are the scope strings granted inside the token, including the
	// OWNER pseudo-scope when present.
	Scopes []string
	// Permissions is the live permission mask read at validation time.
	Permissions permission.Set
	Owner       bool
	Banned      bool
}

// TokenRequest carries a credential exchange: username, password, the scope
// list the client asks for, and the one-time MFA code when the account has
// MFA enabled.
type TokenRequest struct {
	Username string
	Password string
	Scopes   []string
	MFACode  string
}

// IssuedToken is the result of a successful credential exchange.
type IssuedToken struct {
	AccessToken string
	TokenType   string
}

// CreateAccountRequest is the input for [Engine.CreateAccount].
type CreateAccountRequest struct {
	Username string
	Email    string
	Password string
}

// MFAEnrollment is returned by [Engine.BeginMFAEnrollment].
type MFAEnrollment struct {
	// Secret is the base32 TOTP secret for manual authenticator entry.
	Secret string
	// URI is the otpauth:// provisioning URI for authenticator apps.
	URI string
}

// UserStore is the collaborator contract for credential persistence.
//
// Implementations must return [ErrUserNotFound] for missing records, as a
// distinct outcome from infrastructure errors, and must serialize writes per
// logical user (row-level locking or an equivalent) so concurrent mutations
// of one account never interleave.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (*Credential, error)
	GetByEmail(ctx context.Context, email string) (*Credential, error)
	GetByID(ctx context.Context, id string) (*Credential, error)

	// GetEmailByUser returns the email record owned by a user.
	GetEmailByUser(ctx context.Context, userID string) (*EmailRecord, error)

	// Create persists a new credential together with its email record,
	// enforcing username and email uniqueness atomically.
	Create(ctx context.Context, cred *Credential, email *EmailRecord) error
	Save(ctx context.Context, cred *Credential) error
	SaveEmail(ctx context.Context, rec *EmailRecord) error

	// Delete removes the user, its email record, and all recovery codes as
	// one atomic cascade. Partial deletion must never be observable.
	Delete(ctx context.Context, userID string) error

	RecoveryCodes(ctx context.Context, userID string) ([]RecoveryCode, error)
	// ReplaceRecoveryCodes atomically deletes every existing code for the
	// user and stores the new batch.
	ReplaceRecoveryCodes(ctx context.Context, userID string, codes []string) error
	// ConsumeRecoveryCode atomically flips the used flag of a matching
	// unused code. At most one concurrent caller may observe
	// RecoveryCodeConsumed for a given code.
	ConsumeRecoveryCode(ctx context.Context, userID, code string) (RecoveryCodeResult, error)
}
