package audit

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/smartlink/smartlink/internal/model"
)

const (
	minShortCodeLength = 3
	maxShortCodeLength = 50
)

// RecordPayload is the compact stream encoding of a model.Click.
type RecordPayload struct {
	ID               string   `json:"id"`
	LinkID           string   `json:"lid"`
	ShortCode        string   `json:"sc"`
	IPAddress        string   `json:"ip,omitempty"`
	UserAgent        string   `json:"ua,omitempty"`
	Referrer         string   `json:"r,omitempty"`
	ClickType        string   `json:"ct"`
	TargetReached    string   `json:"tr"`
	Platform         string   `json:"p,omitempty"`
	ConfidenceScore  float64  `json:"cs"`
	RiskLevel        string   `json:"rl,omitempty"`
	DetectionMethods []string `json:"dm,omitempty"`
	CountryCode      string   `json:"cc,omitempty"`
	ClickedAt        int64    `json:"t"` // Unix milliseconds
}

// PayloadFromClick encodes a record for the stream.
func PayloadFromClick(c *model.Click) RecordPayload {
	return RecordPayload{
		ID:               c.ID,
		LinkID:           c.LinkID,
		ShortCode:        c.ShortCode,
		IPAddress:        c.IPAddress,
		UserAgent:        c.UserAgent,
		Referrer:         c.Referrer,
		ClickType:        string(c.ClickType),
		TargetReached:    string(c.TargetReached),
		Platform:         c.Platform,
		ConfidenceScore:  c.ConfidenceScore,
		RiskLevel:        c.RiskLevel,
		DetectionMethods: c.DetectionMethods,
		CountryCode:      c.CountryCode,
		ClickedAt:        c.ClickedAt.UnixMilli(),
	}
}

// ToClick decodes a validated payload. eventID is the stream message ID.
func (p RecordPayload) ToClick(eventID string) *model.Click {
	methods := p.DetectionMethods
	if methods == nil {
		methods = []string{}
	}
	return &model.Click{
		ID:               p.ID,
		EventID:          eventID,
		LinkID:           p.LinkID,
		ShortCode:        p.ShortCode,
		IPAddress:        p.IPAddress,
		UserAgent:        p.UserAgent,
		Referrer:         p.Referrer,
		ClickType:        model.ClickType(p.ClickType),
		TargetReached:    model.TargetReached(p.TargetReached),
		Platform:         p.Platform,
		ConfidenceScore:  p.ConfidenceScore,
		RiskLevel:        p.RiskLevel,
		DetectionMethods: methods,
		CountryCode:      p.CountryCode,
		ClickedAt:        time.UnixMilli(p.ClickedAt).UTC(),
	}
}

// ValidateRecordPayload rejects payloads that must not reach the database.
func ValidateRecordPayload(p RecordPayload) error {
	if p.ID == "" {
		return errors.New("id is required")
	}
	if _, err := ulid.ParseStrict(p.ID); err != nil {
		return fmt.Errorf("id is not a ulid: %w", err)
	}
	if p.ShortCode == "" {
		return errors.New("short_code is required")
	}
	if len(p.ShortCode) < minShortCodeLength || len(p.ShortCode) > maxShortCodeLength {
		return errors.New("short_code length out of bounds")
	}
	if p.LinkID == "" {
		return errors.New("link_id is required")
	}
	if !model.ClickType(p.ClickType).IsValid() {
		return fmt.Errorf("invalid click_type %q", p.ClickType)
	}
	if !model.TargetReached(p.TargetReached).IsValid() {
		return fmt.Errorf("invalid target_reached %q", p.TargetReached)
	}
	if p.ConfidenceScore < 0 || p.ConfidenceScore > 1 {
		return errors.New("confidence_score out of range")
	}
	if p.IPAddress != "" && AnonymizeIP(p.IPAddress) != p.IPAddress {
		return errors.New("ip_address is not anonymised")
	}
	if p.CountryCode != "" && len(p.CountryCode) != 2 {
		return errors.New("country_code must be 2 chars")
	}
	if p.ClickedAt <= 0 {
		return errors.New("clicked_at must be set")
	}
	if utf8.RuneCountInString(p.Referrer) > MaxFieldLength {
		return errors.New("referrer too long")
	}
	if utf8.RuneCountInString(p.UserAgent) > MaxFieldLength {
		return errors.New("user_agent too long")
	}
	return nil
}
