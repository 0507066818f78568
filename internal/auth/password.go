package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	SchemeSHA256 = "sha256"
	SchemeBcrypt = "bcrypt"
)

// Hasher turns passwords into stored digests and checks them.
type Hasher struct {
	scheme string
}

func NewHasher(scheme string) (*Hasher, error) {
	switch strings.ToLower(scheme) {
	case "", SchemeSHA256:
		return &Hasher{scheme: SchemeSHA256}, nil
	case SchemeBcrypt:
		return &Hasher{scheme: SchemeBcrypt}, nil
	default:
		return nil, fmt.Errorf("unsupported PASSWORD_HASH=%q", scheme)
	}
}

func (h *Hasher) Scheme() string { return h.scheme }

// Hash returns the digest to store. sha256 is an unsalted hex digest, kept for
// compatibility with existing rows.
func (h *Hasher) Hash(password string) (string, error) {
	if h.scheme == SchemeBcrypt {
		b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return sha256Hex(password), nil
}

// Verify accepts a digest of either scheme so that switching schemes does not
// lock out existing users.
func (h *Hasher) Verify(digest, password string) bool {
	if strings.HasPrefix(digest, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(digest), []byte(sha256Hex(password))) == 1
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
