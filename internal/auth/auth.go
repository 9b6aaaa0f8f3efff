// Package auth guards the intake API with a shared bearer token.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashToken hashes an intake token with bcrypt so the configured value need
// not be stored in plain text.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash token: %w", err)
	}
	return string(hash), nil
}

// GenerateToken generates a cryptographically secure random 32-byte hex-encoded token.
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// TokenVerifier checks presented tokens against the configured one, which is
// either a bcrypt hash ("$2a$...") or the token itself.
type TokenVerifier struct {
	expected string
	hashed   bool
}

func NewTokenVerifier(configured string) *TokenVerifier {
	configured = strings.TrimSpace(configured)
	return &TokenVerifier{
		expected: configured,
		hashed:   strings.HasPrefix(configured, "$2"),
	}
}

// Enabled reports whether a token is configured at all.
func (v *TokenVerifier) Enabled() bool {
	return v != nil && v.expected != ""
}

func (v *TokenVerifier) Verify(presented string) bool {
	if !v.Enabled() || presented == "" {
		return false
	}
	if v.hashed {
		return bcrypt.CompareHashAndPassword([]byte(v.expected), []byte(presented)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(v.expected), []byte(presented)) == 1
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(headerValue string) string {
	headerValue = strings.TrimSpace(headerValue)
	const prefix = "Bearer "
	if len(headerValue) < len(prefix) || !strings.EqualFold(headerValue[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(headerValue[len(prefix):])
}
