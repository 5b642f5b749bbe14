// Package model defines domain entities for the application.
package model

import (
	"strconv"
	"time"
)

// LinkStatus represents the computed status of a link.
type LinkStatus string

const (
	LinkStatusActive   LinkStatus = "active"
	LinkStatusDisabled LinkStatus = "disabled"
	LinkStatusDeleted  LinkStatus = "deleted"
)

// Link is a cloaked short link: humans reach TargetURL, bots get a safe page.
type Link struct {
	ID               string     `json:"id"`
	ShortCode        string     `json:"short_code"`
	TargetURL        string     `json:"target_url"`
	SafeURL          string     `json:"safe_url,omitempty"` // custom decoy, optional
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	UseJSChallenge   bool       `json:"use_js_challenge"`
	DirectFromTikTok bool       `json:"direct_from_tiktok"`
	Enabled          bool       `json:"enabled"`
	DeletedAt        *time.Time `json:"-"`
	ClickCount       int64      `json:"click_count"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Status computes the current status of the link.
func (l *Link) Status() LinkStatus {
	if l.DeletedAt != nil {
		return LinkStatusDeleted
	}
	if !l.Enabled {
		return LinkStatusDisabled
	}
	return LinkStatusActive
}

// IsActive returns true if the link can be used for redirects.
func (l *Link) IsActive() bool {
	return l.Status() == LinkStatusActive
}

// HasSafeURL reports whether the link carries its own decoy page.
func (l *Link) HasSafeURL() bool {
	return l.SafeURL != ""
}

// CachedLink represents link data stored in Redis cache.
// Uses string types for Redis hash compatibility.
type CachedLink struct {
	ID               string `redis:"id"`
	TargetURL        string `redis:"target_url"`
	SafeURL          string `redis:"safe_url"`
	Title            string `redis:"title"`
	Description      string `redis:"description"`
	UseJSChallenge   string `redis:"use_js_challenge"`   // "1" or "0"
	DirectFromTikTok string `redis:"direct_from_tiktok"` // "1" or "0"
	Enabled          string `redis:"enabled"`            // "1" or "0"
	DeletedAt        string `redis:"deleted_at"`         // Unix timestamp or empty
	UpdatedAt        string `redis:"updated_at"`         // Unix timestamp
}

// ToLink converts CachedLink to Link domain model.
func (c *CachedLink) ToLink(shortCode string) *Link {
	link := &Link{
		ID:               c.ID,
		ShortCode:        shortCode,
		TargetURL:        c.TargetURL,
		SafeURL:          c.SafeURL,
		Title:            c.Title,
		Description:      c.Description,
		UseJSChallenge:   c.UseJSChallenge == "1",
		DirectFromTikTok: c.DirectFromTikTok == "1",
		Enabled:          c.Enabled == "1",
	}

	if c.DeletedAt != "" {
		if ts, err := strconv.ParseInt(c.DeletedAt, 10, 64); err == nil {
			t := time.Unix(ts, 0)
			link.DeletedAt = &t
		}
	}

	if c.UpdatedAt != "" {
		if ts, err := strconv.ParseInt(c.UpdatedAt, 10, 64); err == nil {
			link.UpdatedAt = time.Unix(ts, 0)
		}
	}

	return link
}

// ToCachedLink converts Link domain model to CachedLink.
func (l *Link) ToCachedLink() *CachedLink {
	cached := &CachedLink{
		ID:               l.ID,
		TargetURL:        l.TargetURL,
		SafeURL:          l.SafeURL,
		Title:            l.Title,
		Description:      l.Description,
		UseJSChallenge:   boolToString(l.UseJSChallenge),
		DirectFromTikTok: boolToString(l.DirectFromTikTok),
		Enabled:          boolToString(l.Enabled),
		UpdatedAt:        strconv.FormatInt(l.UpdatedAt.Unix(), 10),
	}

	if l.DeletedAt != nil {
		cached.DeletedAt = strconv.FormatInt(l.DeletedAt.Unix(), 10)
	}

	return cached
}

// boolToString converts boolean to "1" or "0".
func boolToString(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
