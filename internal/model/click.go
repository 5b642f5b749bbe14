package model

import "time"

// ClickType is how a visit was classified.
type ClickType string

const (
	ClickHuman   ClickType = "human"
	ClickBot     ClickType = "bot"
	ClickSuspect ClickType = "suspect"
)

// IsValid reports whether c is a known click type.
func (c ClickType) IsValid() bool {
	return c == ClickHuman || c == ClickBot || c == ClickSuspect
}

// TargetReached is where a visit was sent.
type TargetReached string

const (
	ReachedTarget    TargetReached = "target"
	ReachedSafe      TargetReached = "safe"
	ReachedChallenge TargetReached = "challenge"
)

// IsValid reports whether t is a known destination.
func (t TargetReached) IsValid() bool {
	return t == ReachedTarget || t == ReachedSafe || t == ReachedChallenge
}

// Click is the audit record of one classified visit.
// IP, user agent and referrer are anonymised and truncated before a Click
// is built; records are append-only.
type Click struct {
	ID      string `json:"id"`       // ULID (time-sortable)
	EventID string `json:"event_id"` // Idempotency key (Redis stream ID)

	// Link reference
	LinkID    string `json:"link_id"`
	ShortCode string `json:"short_code"`

	// Request metadata
	IPAddress string `json:"ip_address,omitempty"` // anonymised
	UserAgent string `json:"user_agent,omitempty"` // truncated 500 chars
	Referrer  string `json:"referrer,omitempty"`   // truncated 500 chars

	// Decision
	ClickType        ClickType     `json:"click_type"`
	TargetReached    TargetReached `json:"target_reached"`
	Platform         string        `json:"platform"`
	ConfidenceScore  float64       `json:"confidence_score"`
	RiskLevel        string        `json:"risk_level"`
	DetectionMethods []string      `json:"detection_methods"`

	// Optional geo (from CF-IPCountry header)
	CountryCode string `json:"country_code,omitempty"`

	ClickedAt time.Time `json:"clicked_at"` // Event timestamp
	CreatedAt time.Time `json:"created_at"` // DB insertion time
}

// DailyLinkStats represents pre-aggregated daily statistics for a link.
type DailyLinkStats struct {
	LinkID string    `json:"link_id"`
	Date   time.Time `json:"date"` // UTC date (time component zeroed)

	TotalClicks   int64 `json:"total_clicks"`
	HumanClicks   int64 `json:"human_clicks"`
	BotClicks     int64 `json:"bot_clicks"`
	SuspectClicks int64 `json:"suspect_clicks"`

	// Stored as JSONB in Postgres
	PlatformBreakdown map[string]int64 `json:"platform_breakdown,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// PlatformCount is one row of a platform breakdown.
type PlatformCount struct {
	Platform string `json:"platform"`
	Total    int64  `json:"total"`
	Bots     int64  `json:"bots"`
}

// DailyBreakdown represents classified clicks for a single day.
type DailyBreakdown struct {
	Date    string `json:"date"` // ISO date
	Total   int64  `json:"total"`
	Human   int64  `json:"human"`
	Bot     int64  `json:"bot"`
	Suspect int64  `json:"suspect"`
}

// LinkSummary totals a link's clicks over a period.
type LinkSummary struct {
	TotalClicks   int64   `json:"total_clicks"`
	HumanClicks   int64   `json:"human_clicks"`
	BotClicks     int64   `json:"bot_clicks"`
	SuspectClicks int64   `json:"suspect_clicks"`
	BotRate       float64 `json:"bot_rate"`
}

// LinkAnalytics is the per-link analytics API response.
type LinkAnalytics struct {
	LinkID    string `json:"link_id"`
	ShortCode string `json:"short_code"`
	Period    struct {
		From string `json:"from"` // ISO date
		To   string `json:"to"`   // ISO date
	} `json:"period"`
	Summary     LinkSummary      `json:"summary"`
	Daily       []DailyBreakdown `json:"daily"`
	Platforms   []PlatformCount  `json:"platforms"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// DashboardStats are account-wide totals.
type DashboardStats struct {
	TotalLinks    int64           `json:"total_links"`
	TotalClicks   int64           `json:"total_clicks"`
	HumanClicks   int64           `json:"human_clicks"`
	BotClicks     int64           `json:"bot_clicks"`
	SuspectClicks int64           `json:"suspect_clicks"`
	Platforms     []PlatformCount `json:"platforms"`
}

// Rate returns bots as a fraction of all clicks.
func (s LinkSummary) Rate() float64 {
	if s.TotalClicks == 0 {
		return 0
	}
	return float64(s.BotClicks) / float64(s.TotalClicks)
}
