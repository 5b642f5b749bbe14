// Package detection classifies inbound visits as human, bot or suspicious.
//
// The package holds the pattern library, the per-facet analyzers and the
// aggregator that folds analyzer signals into a single Verdict. Everything
// here is pure: no I/O, no clocks, no shared mutable state.
package detection

// Platform identifies the traffic source a visit is attributed to.
type Platform string

const (
	PlatformTikTok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformTwitter   Platform = "twitter"
	PlatformGoogle    Platform = "google"
	PlatformOther     Platform = "other"
	PlatformUnknown   Platform = "unknown"
)

// platformPriority is the resolution order when several signals carry a platform.
var platformPriority = []Platform{
	PlatformTikTok,
	PlatformInstagram,
	PlatformFacebook,
	PlatformTwitter,
	PlatformGoogle,
}

// ParsePlatform converts a stored platform label back to a Platform.
// Unrecognised non-empty labels map to PlatformOther.
func ParsePlatform(s string) Platform {
	switch Platform(s) {
	case PlatformTikTok, PlatformInstagram, PlatformFacebook, PlatformTwitter,
		PlatformGoogle, PlatformOther, PlatformUnknown:
		return Platform(s)
	case "":
		return PlatformUnknown
	default:
		return PlatformOther
	}
}

// HasSafeVariant reports whether the platform has a dedicated decoy page.
func (p Platform) HasSafeVariant() bool {
	return p == PlatformTikTok || p == PlatformInstagram || p == PlatformFacebook
}

// RiskLevel is the coarse tier derived from confidence and evidence breadth.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Signal is one analyzer's opinion about a visit.
type Signal struct {
	Method     string   // analyzer name, e.g. "user_agent"
	Confidence float64  // 0.0–1.0
	Platform   Platform // empty when the analyzer has no platform opinion
	Reason     string   // optional reason code
}

// Verdict is the aggregated classification of one visit.
type Verdict struct {
	IsBot            bool      `json:"is_bot"`
	ConfidenceScore  float64   `json:"confidence_score"`
	Platform         Platform  `json:"platform"`
	DetectionMethods []string  `json:"detection_methods"`
	RiskLevel        RiskLevel `json:"risk_level"`
}
