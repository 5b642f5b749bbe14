package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	adminTokenPrefix = "auth:admin:"
	// adminTokenTTL bounds how long a verified admin token skips argon2.
	adminTokenTTL = 5 * time.Minute

	challengeUsedPrefix = "challenge:used:"
)

// TokenFingerprint derives the cache key for a bearer token. The plaintext
// token is never stored.
func TokenFingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// IsAdminTokenVerified reports whether fingerprint passed argon2 recently.
func (c *Cache) IsAdminTokenVerified(ctx context.Context, fingerprint string) (bool, error) {
	n, err := c.client.Exists(ctx, adminTokenPrefix+fingerprint).Result()
	if err != nil {
		return false, fmt.Errorf("check admin token cache: %w", err)
	}
	return n > 0, nil
}

// MarkAdminTokenVerified remembers a successful argon2 verification.
func (c *Cache) MarkAdminTokenVerified(ctx context.Context, fingerprint string) error {
	return c.client.Set(ctx, adminTokenPrefix+fingerprint, "1", adminTokenTTL).Err()
}

// ConsumeChallenge records a solved challenge token. It returns false if the
// token was already used, so each challenge admits one visit.
func (c *Cache) ConsumeChallenge(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	err := c.client.SetArgs(ctx, challengeUsedPrefix+TokenFingerprint(token), "1", redis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("consume challenge: %w", err)
	}
	return true, nil
}
