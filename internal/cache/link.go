package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smartlink/smartlink/internal/model"
)

// Cache key prefixes and TTLs.
const (
	linkKeyPrefix     = "link:"
	negCacheKeySuffix = ":neg"

	// DefaultLinkTTL is the TTL for cached link data.
	DefaultLinkTTL = 24 * time.Hour

	// NegativeCacheTTL is the TTL for negative cache entries.
	NegativeCacheTTL = 5 * time.Minute
)

// Common cache errors.
var (
	ErrCacheMiss = errors.New("cache miss")
)

func linkKey(shortCode string) string {
	return linkKeyPrefix + shortCode
}

func negativeKey(shortCode string) string {
	return linkKeyPrefix + shortCode + negCacheKeySuffix
}

// GetLink retrieves a link from cache by short code.
// Returns ErrCacheMiss if not found.
func (c *Cache) GetLink(ctx context.Context, shortCode string) (*model.CachedLink, error) {
	cmd := c.client.HGetAll(ctx, linkKey(shortCode))
	result, err := cmd.Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}
	if len(result) == 0 {
		return nil, ErrCacheMiss
	}

	var cached model.CachedLink
	if err := cmd.Scan(&cached); err != nil {
		return nil, fmt.Errorf("decode cached link: %w", err)
	}
	// A hash without an id was written by something else; refetch.
	if cached.ID == "" || cached.TargetURL == "" {
		return nil, ErrCacheMiss
	}

	return &cached, nil
}

// SetLink stores a link in cache and clears any negative entry.
func (c *Cache) SetLink(ctx context.Context, link *model.Link) error {
	key := linkKey(link.ShortCode)
	cached := link.ToCachedLink()

	fields := map[string]any{
		"id":                 cached.ID,
		"target_url":         cached.TargetURL,
		"title":              cached.Title,
		"use_js_challenge":   cached.UseJSChallenge,
		"direct_from_tiktok": cached.DirectFromTikTok,
		"enabled":            cached.Enabled,
		"updated_at":         cached.UpdatedAt,
	}
	if cached.SafeURL != "" {
		fields["safe_url"] = cached.SafeURL
	}
	if cached.Description != "" {
		fields["description"] = cached.Description
	}
	if cached.DeletedAt != "" {
		fields["deleted_at"] = cached.DeletedAt
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, DefaultLinkTTL)
	pipe.Del(ctx, negativeKey(link.ShortCode))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache link: %w", err)
	}

	return nil
}

// DeleteLink removes a link from cache.
func (c *Cache) DeleteLink(ctx context.Context, shortCode string) error {
	pipe := c.client.Pipeline()
	pipe.Del(ctx, linkKey(shortCode))
	pipe.Del(ctx, negativeKey(shortCode))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete link from cache: %w", err)
	}

	return nil
}

// IsNegativelyCached checks if a short code is in negative cache.
func (c *Cache) IsNegativelyCached(ctx context.Context, shortCode string) (bool, error) {
	exists, err := c.client.Exists(ctx, negativeKey(shortCode)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check negative cache: %w", err)
	}

	return exists > 0, nil
}

// SetNegativeCache marks a short code as not found.
func (c *Cache) SetNegativeCache(ctx context.Context, shortCode string) error {
	if err := c.client.SetEx(ctx, negativeKey(shortCode), "", NegativeCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to set negative cache: %w", err)
	}

	return nil
}
