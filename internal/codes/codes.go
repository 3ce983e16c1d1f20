// Package codes generates one-time recovery codes for the MFA engine.
package codes

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// Alphabet is the recovery code character set.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

const (
	groupLength = 4
	groupCount  = 2
)

// BatchSize is the number of recovery codes issued per MFA activation.
const BatchSize = 8

// New returns a single recovery code: two 4-character alphanumeric groups
// separated by a space, e.g. "AB12 cd34". Codes are matched exactly as
// stored, so no canonicalization is applied on either side.
func New() (string, error) {
	groups := make([]string, 0, groupCount)
	for g := 0; g < groupCount; g++ {
		var b strings.Builder
		b.Grow(groupLength)
		for i := 0; i < groupLength; i++ {
			n, err := randomIndex(len(Alphabet))
			if err != nil {
				return "", err
			}
			b.WriteByte(Alphabet[n])
		}
		groups = append(groups, b.String())
	}
	return strings.Join(groups, " "), nil
}

// NewBatch returns BatchSize distinct recovery codes.
func NewBatch() ([]string, error) {
	seen := make(map[string]struct{}, BatchSize)
	out := make([]string, 0, BatchSize)
	for len(out) < BatchSize {
		code, err := New()
		if err != nil {
			return nil, err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out, nil
}

func randomIndex(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}
