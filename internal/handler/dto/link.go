// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/smartlink/smartlink/internal/detection"
	"github.com/smartlink/smartlink/internal/model"
)

// CreateLinkRequest represents the request body for creating a link.
type CreateLinkRequest struct {
	TargetURL        string `json:"target_url"`
	SafeURL          string `json:"safe_url,omitempty"`
	Title            string `json:"title,omitempty"`
	Description      string `json:"description,omitempty"`
	Alias            string `json:"alias,omitempty"`
	UseJSChallenge   *bool  `json:"use_js_challenge,omitempty"`
	DirectFromTikTok *bool  `json:"direct_from_tiktok,omitempty"`
}

// UpdateLinkRequest represents the request body for updating a link.
type UpdateLinkRequest struct {
	TargetURL        *string `json:"target_url,omitempty"`
	SafeURL          *string `json:"safe_url,omitempty"`
	Title            *string `json:"title,omitempty"`
	Description      *string `json:"description,omitempty"`
	UseJSChallenge   *bool   `json:"use_js_challenge,omitempty"`
	DirectFromTikTok *bool   `json:"direct_from_tiktok,omitempty"`
	Enabled          *bool   `json:"enabled,omitempty"`
}

// LinkResponse represents a link in API responses.
type LinkResponse struct {
	ID               string    `json:"id"`
	ShortCode        string    `json:"short_code"`
	ShortURL         string    `json:"short_url"`
	TargetURL        string    `json:"target_url"`
	SafeURL          string    `json:"safe_url,omitempty"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	UseJSChallenge   bool      `json:"use_js_challenge"`
	DirectFromTikTok bool      `json:"direct_from_tiktok"`
	Status           string    `json:"status"`
	ClickCount       int64     `json:"click_count"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// LinkListResponse represents a paginated list of links.
type LinkListResponse struct {
	Data       []LinkResponse `json:"data"`
	Pagination *Pagination    `json:"pagination"`
}

// Pagination provides cursor-based pagination info.
type Pagination struct {
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// ClassifyRequest is the visit submitted to the classify endpoint.
type ClassifyRequest struct {
	UserAgent string            `json:"user_agent"`
	IP        string            `json:"ip,omitempty"`
	Referrer  string            `json:"referrer,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// ClassifyResponse pairs the engine verdict with the legacy checks.
type ClassifyResponse struct {
	detection.Verdict
	LegacyBot  bool `json:"legacy_bot"`
	Suspicious bool `json:"suspicious"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ToLinkResponse converts a Link model to LinkResponse DTO.
func ToLinkResponse(link *model.Link, baseURL string) *LinkResponse {
	return &LinkResponse{
		ID:               link.ID,
		ShortCode:        link.ShortCode,
		ShortURL:         baseURL + "/" + link.ShortCode,
		TargetURL:        link.TargetURL,
		SafeURL:          link.SafeURL,
		Title:            link.Title,
		Description:      link.Description,
		UseJSChallenge:   link.UseJSChallenge,
		DirectFromTikTok: link.DirectFromTikTok,
		Status:           string(link.Status()),
		ClickCount:       link.ClickCount,
		CreatedAt:        link.CreatedAt,
		UpdatedAt:        link.UpdatedAt,
	}
}

// ToLinkListResponse converts a slice of Link models to LinkListResponse.
func ToLinkListResponse(links []*model.Link, baseURL string, nextCursor string, hasMore bool) *LinkListResponse {
	responses := make([]LinkResponse, len(links))
	for i, link := range links {
		responses[i] = *ToLinkResponse(link, baseURL)
	}
	return &LinkListResponse{
		Data: responses,
		Pagination: &Pagination{
			NextCursor: nextCursor,
			HasMore:    hasMore,
		},
	}
}
