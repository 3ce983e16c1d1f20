package password

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
)

// Config holds the Argon2id cost parameters. Instances are configured during
// initialization and treated as immutable afterwards.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig returns interactive-login Argon2id parameters.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        2,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hasher derives and verifies Argon2id password hashes. Safe for concurrent
// use after construction.
type Hasher struct {
	config Config

	// Synthetic record used to equalize timing when no real credential
	// exists. The password behind dummyHash is random and discarded, so a
	// dummy verification can never succeed.
	dummySalt []byte
	dummyHash []byte
}

// New validates cfg and builds a Hasher.
func New(cfg Config) (*Hasher, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	h := &Hasher{config: cfg}

	salt := make([]byte, cfg.SaltLength)
	secret := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return nil, err
	}
	h.dummySalt = salt
	h.dummyHash = h.derive(string(secret), salt)

	return h, nil
}

// Hash derives a key from password under a fresh random salt and returns
// both. The salt is stored alongside the hash in the credential record.
func (h *Hasher) Hash(password string) (hash, salt []byte, err error) {
	salt = make([]byte, h.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, nil, err
	}
	return h.derive(password, salt), salt, nil
}

// Verify recomputes the derivation for password under salt and compares it
// against hash in constant time.
func (h *Hasher) Verify(password string, hash, salt []byte) bool {
	if len(hash) == 0 || len(salt) == 0 {
		// Still burn a derivation so malformed records do not leak timing.
		h.VerifyDummy(password)
		return false
	}
	computed := h.derive(password, salt)
	return subtle.ConstantTimeCompare(computed, hash) == 1
}

// VerifyDummy performs a full derivation against the synthetic record and
// discards the result. Callers invoke it when the user does not exist so the
// response time matches a real verification.
func (h *Hasher) VerifyDummy(password string) {
	computed := h.derive(password, h.dummySalt)
	subtle.ConstantTimeCompare(computed, h.dummyHash)
}

func (h *Hasher) derive(password string, salt []byte) []byte {
	return argon2.IDKey(
		[]byte(password),
		salt,
		h.config.Time,
		h.config.Memory,
		h.config.Parallelism,
		h.config.KeyLength,
	)
}

func validateConfig(cfg Config) error {
	if cfg.Memory < minMemoryKB {
		return errors.New("password memory must be >= 8192 KB")
	}
	if cfg.Time < minTimeCost {
		return errors.New("password time must be >= 1")
	}
	if cfg.Parallelism < minParallelism {
		return errors.New("password parallelism must be >= 1")
	}
	if cfg.SaltLength < minSaltLength {
		return errors.New("password salt length must be >= 16")
	}
	if cfg.KeyLength < minKeyLength {
		return errors.New("password key length must be >= 16")
	}

	return nil
}
