package authcore

import "errors"

// Credential and authorization failures. All of these are terminal,
// caller-visible outcomes of a security decision and are never retried
// internally.
var (
	// ErrInvalidCredentials covers both unknown user and wrong password so
	// callers cannot enumerate usernames.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrMFARequired is returned when a second factor is needed but absent.
	ErrMFARequired = errors.New("mfa required")
	// ErrMFAInvalidCode is returned when the submitted code matches neither
	// the TOTP window nor an unused recovery code.
	ErrMFAInvalidCode = errors.New("invalid mfa code")
	// ErrRecoveryCodeUsed is returned when a consumed recovery code is
	// submitted again. It never re-grants access.
	ErrRecoveryCodeUsed = errors.New("recovery code already used")
	// ErrTokenInvalidated covers expired, forged, replayed, and stale-email
	// tokens. The finer cause appears only in audit metadata.
	ErrTokenInvalidated = errors.New("token invalidated")
	// ErrPermissionDenied is returned when a required scope is missing from
	// the token grant or the live permission mask.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrAccountBanned is returned for banned users independent of scopes.
	ErrAccountBanned = errors.New("account banned")
)

// Step-up and account-mutation failures.
var (
	// ErrWrongPassword is returned by re-authentication gates. Unlike login,
	// the caller is already authenticated, so naming the cause is safe.
	ErrWrongPassword = errors.New("wrong password")
	// ErrPasswordReuse rejects a password change where old and new match.
	ErrPasswordReuse = errors.New("new password must be different from current password")
	// ErrPasswordTooShort rejects passwords under the minimum length.
	ErrPasswordTooShort = errors.New("password too short")
	// ErrMFAAlreadyEnabled rejects enrollment for an account with MFA on.
	ErrMFAAlreadyEnabled = errors.New("mfa already enabled")
	// ErrMFANotProvisioned rejects enrollment confirmation before a secret
	// was generated.
	ErrMFANotProvisioned = errors.New("mfa enrollment not started")
	// ErrMFANotEnabled rejects deactivation for an account with MFA off.
	ErrMFANotEnabled = errors.New("mfa not enabled")
	// ErrUsernameTaken rejects account creation with a duplicate username.
	ErrUsernameTaken = errors.New("username already exists")
	// ErrEmailTaken rejects a duplicate email address.
	ErrEmailTaken = errors.New("email already registered")
)

// Infrastructure faults. These are never conflated with credential failures:
// a store outage must not look like a failed login in security telemetry.
var (
	// ErrUserNotFound is the store-level not-found outcome, distinct from
	// transport errors.
	ErrUserNotFound = errors.New("user not found")
	// ErrStoreUnavailable wraps user store transport failures.
	ErrStoreUnavailable = errors.New("user store unavailable")
	// ErrRevocationUnavailable wraps revocation cache transport failures.
	ErrRevocationUnavailable = errors.New("revocation cache unavailable")
	// ErrEngineNotReady reports use of an engine missing a dependency.
	ErrEngineNotReady = errors.New("engine not initialized")
)
