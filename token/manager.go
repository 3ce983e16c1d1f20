// Package token signs and verifies the self-contained session tokens issued
// by the engine.
//
// Tokens are HMAC-signed JWTs carrying the subject username, the email bound
// at issuance, the granted scope list, and the issuing client's network
// address and user agent. They stay valid for their full TTL unless the
// engine explicitly blacklists them, so every mutable claim is re-checked
// against live state at validation time by the caller.
package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Algorithm is the signing algorithm identifier for issued tokens.
const Algorithm = "HS256"

// Type is the constant token-type marker returned with every issued token.
const Type = "bearer"

var (
	// ErrExpired reports a token past its expiry. Callers surface it the
	// same as ErrInvalid; the distinction exists for audit detail only.
	ErrExpired = errors.New("token expired")
	// ErrInvalid reports a forged, malformed, or otherwise unverifiable token.
	ErrInvalid = errors.New("token invalid")
)

// Config holds signing material and validity parameters.
type Config struct {
	// Secret is the shared HMAC key.
	Secret []byte
	// TTL bounds token validity. Defaults to 15 minutes when unset.
	TTL time.Duration
	// Issuer is embedded and enforced when non-empty.
	Issuer string
	// Leeway tolerates small clock drift during expiry checks.
	Leeway time.Duration
	// Now is the injected clock. Defaults to time.Now.
	Now func() time.Time
}

// Claims is the payload of an issued session token.
type Claims struct {
	Email     string   `json:"email"`
	Scopes    []string `json:"scopes"`
	IP        string   `json:"ip,omitempty"`
	UserAgent string   `json:"user_agent"`
	jwt.RegisteredClaims
}

// Manager issues and parses signed session tokens. Safe for concurrent use
// once constructed.
type Manager struct {
	config Config
}

// NewManager validates cfg and builds a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token signing requires a secret")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Minute
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	return &Manager{config: cfg}, nil
}

// TTL returns the configured validity window.
func (m *Manager) TTL() time.Duration {
	return m.config.TTL
}

// Issue signs a token for subject with the given bound claims, expiring at
// now + TTL.
func (m *Manager) Issue(subject, email string, scopes []string, ip, userAgent string) (string, error) {
	now := m.config.Now()
	claims := Claims{
		Email:     email,
		Scopes:    scopes,
		IP:        ip,
		UserAgent: userAgent,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
}

// Parse verifies the signature and validity window of tokenStr and returns
// its claims. Expiry is reported as [ErrExpired], every other failure as
// [ErrInvalid].
func (m *Manager) Parse(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{Algorithm}),
		jwt.WithTimeFunc(m.config.Now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalid
	}
	if claims.Subject == "" || claims.Email == "" {
		return nil, ErrInvalid
	}

	return claims, nil
}
