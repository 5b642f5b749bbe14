package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
)

// Token format: sl_admin_{secret}
// Example: sl_admin_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b
const (
	AdminTokenPrefix = "sl_admin_"
	TokenSecretLen   = 64 // hex encoded 32 bytes
)

var tokenFormatRegex = regexp.MustCompile(`^sl_admin_[a-f0-9]{64}$`)

// GeneratedToken is a fresh admin token and the hash to configure.
type GeneratedToken struct {
	Plaintext string // show once only
	Hash      string // value for ADMIN_TOKEN_HASH
}

// GenerateAdminToken creates a new admin token.
func GenerateAdminToken() (*GeneratedToken, error) {
	secret := make([]byte, TokenSecretLen/2)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}
	plaintext := AdminTokenPrefix + hex.EncodeToString(secret)

	hash, err := HashToken(plaintext)
	if err != nil {
		return nil, fmt.Errorf("hash token: %w", err)
	}

	return &GeneratedToken{Plaintext: plaintext, Hash: hash}, nil
}

// ValidateTokenFormat reports whether token looks like an admin token.
// Malformed tokens are rejected before paying for argon2.
func ValidateTokenFormat(token string) bool {
	return tokenFormatRegex.MatchString(token)
}
