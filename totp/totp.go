// Package totp wraps time-based one-time password generation and
// verification for the MFA engine.
//
// Codes follow the standard 30-second-step, 6-digit TOTP profile. The
// verification window tolerates one step of clock skew on either side so a
// code read from an authenticator right at a step boundary is not falsely
// rejected.
package totp

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Config controls secret provisioning and code verification.
type Config struct {
	// Issuer is the service name embedded in the otpauth provisioning URI.
	Issuer string
	// Period is the TOTP step in seconds.
	Period uint
	// Digits is the code length.
	Digits uint
	// Skew is the number of adjacent steps accepted on each side of now.
	Skew uint
}

// DefaultConfig returns the standard 30s/6-digit profile with one step of
// tolerated skew.
func DefaultConfig(issuer string) Config {
	return Config{
		Issuer: issuer,
		Period: 30,
		Digits: 6,
		Skew:   1,
	}
}

// Manager generates and verifies TOTP secrets. Safe for concurrent use.
type Manager struct {
	config Config
}

// New builds a Manager, filling zero fields from the default profile.
func New(cfg Config) *Manager {
	if cfg.Period == 0 {
		cfg.Period = 30
	}
	if cfg.Digits == 0 {
		cfg.Digits = 6
	}
	return &Manager{config: cfg}
}

// GenerateSecret creates a fresh random base32 secret for account and returns
// the secret together with its otpauth:// provisioning URI (label = account,
// issuer = configured service name).
func (m *Manager) GenerateSecret(account string) (secret, uri string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.config.Issuer,
		AccountName: account,
		Period:      m.config.Period,
		Digits:      otp.Digits(m.config.Digits),
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

// Verify reports whether code is valid for secret at the given time,
// accepting the configured skew window. Malformed codes report false rather
// than an error so callers cannot build a format oracle.
func (m *Manager) Verify(secret, code string, now time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, now, totp.ValidateOpts{
		Period:    m.config.Period,
		Skew:      m.config.Skew,
		Digits:    otp.Digits(m.config.Digits),
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false
	}
	return ok
}
