package detection

import (
	"math"
	"net/url"
	"strings"
	"unicode/utf8"
)

// Analyzer names, reported in Verdict.DetectionMethods.
const (
	MethodUserAgent         = "user_agent"
	MethodIPAnalysis        = "ip_analysis"
	MethodHeaderFingerprint = "header_fingerprint"
	MethodTiming            = "timing_analysis"
	MethodBehavioral        = "behavioral_patterns"
	MethodPlatformSpecific  = "platform_specific"
)

const (
	missingUAConfidence     = 0.9
	automationConfidence    = 0.85
	platformBotConfidence   = 0.95
	shortUAConfidence       = 0.7
	shortUALength           = 20
	unknownClientConfidence = 0.6
	browserDiscount         = 0.4
	browserMinLength        = 80
	userAgentEmitThreshold  = 0.3
	platformIPConfidence    = 0.9
	headerMissingWeight     = 0.15
	headerAcceptWeight      = 0.2
	headerConnCloseWeight   = 0.15
	headerAutomationWeight  = 0.3
	headerEmitThreshold     = 0.2
	noReferrerWeight        = 0.1
	malformedReferrerWeight = 0.2
	behaviorEmitThreshold   = 0.15
	platformMarkerPoints    = 3
	platformReferrerPoints  = 2
	platformIPPoints        = 3
	platformMinTally        = 2
	platformPointConfidence = 0.3
	platformMaxConfidence   = 0.9
)

var (
	browserNameTokens   = []string{"chrome", "firefox", "safari", "edge", "opera"}
	browserEngineTokens = []string{"mozilla", "webkit", "gecko", "applewebkit"}

	expectedHeaders   = []string{"accept", "accept-language", "accept-encoding", "connection"}
	automationHeaders = []string{"selenium-remote-control", "x-automation", "x-requested-with"}
)

// AnalyzerFunc inspects one facet of a visit. It returns nil when it has
// no opinion.
type AnalyzerFunc func(v *Visit) *Signal

// Analyzer is a named AnalyzerFunc.
type Analyzer struct {
	Name string
	Fn   AnalyzerFunc
}

// DefaultAnalyzers returns the built-in analyzers in evaluation order.
func DefaultAnalyzers() []Analyzer {
	return []Analyzer{
		{Name: MethodUserAgent, Fn: analyzeUserAgent},
		{Name: MethodIPAnalysis, Fn: analyzeIP},
		{Name: MethodHeaderFingerprint, Fn: analyzeHeaders},
		{Name: MethodTiming, Fn: analyzeTiming},
		{Name: MethodBehavioral, Fn: analyzeBehavior},
		{Name: MethodPlatformSpecific, Fn: analyzePlatform},
	}
}

func analyzeUserAgent(v *Visit) *Signal {
	ua := v.UserAgent
	if strings.TrimSpace(ua) == "" {
		return &Signal{Confidence: missingUAConfidence, Reason: "missing_user_agent"}
	}

	confidence := 0.0
	if MatchesAny(ua, GenericBotKeywords) {
		confidence = automationConfidence
	}

	// A platform crawler signature settles the question.
	for _, set := range platformBotSignatures {
		if s, ok := FirstMatch(ua, set); ok {
			return &Signal{
				Confidence: math.Max(confidence, platformBotConfidence),
				Platform:   s.Platform,
				Reason:     string(s.Platform) + "_bot_ua",
			}
		}
	}

	length := utf8.RuneCountInString(ua)
	if length < shortUALength {
		confidence = math.Max(confidence, shortUAConfidence)
	}

	lower := strings.ToLower(ua)
	hasName := containsAny(lower, browserNameTokens)
	hasEngine := containsAny(lower, browserEngineTokens)

	switch {
	case hasName && hasEngine && length > browserMinLength:
		confidence = math.Max(0, confidence-browserDiscount)
	case !hasName && confidence == 0:
		confidence = unknownClientConfidence
	}

	if confidence <= userAgentEmitThreshold {
		return nil
	}
	return &Signal{Confidence: confidence, Reason: "suspicious_user_agent"}
}

func analyzeIP(v *Visit) *Signal {
	if v.IP == "" {
		return nil
	}
	for _, pr := range PlatformRanges {
		if IPInAnyRange(v.IP, pr.Ranges) {
			return &Signal{
				Confidence: platformIPConfidence,
				Platform:   pr.Platform,
				Reason:     string(pr.Platform) + "_ip_range",
			}
		}
	}
	return nil
}

func analyzeHeaders(v *Visit) *Signal {
	confidence := 0.0
	var reasons []string

	missing := 0
	for _, h := range expectedHeaders {
		if _, ok := v.Header(h); !ok {
			missing++
		}
	}
	if missing > 0 {
		confidence += float64(missing) * headerMissingWeight
		reasons = append(reasons, "missing_headers")
	}

	accept, _ := v.Header("accept")
	switch strings.TrimSpace(accept) {
	case "", "*/*", "text/html":
		confidence += headerAcceptWeight
		reasons = append(reasons, "suspicious_accept")
	}

	if conn, _ := v.Header("connection"); strings.EqualFold(strings.TrimSpace(conn), "close") {
		confidence += headerConnCloseWeight
		reasons = append(reasons, "connection_close")
	}

	for _, h := range automationHeaders {
		if _, ok := v.Header(h); ok {
			confidence += headerAutomationWeight
			reasons = append(reasons, "automation_header")
			break
		}
	}

	confidence = clamp(confidence)
	if confidence <= headerEmitThreshold {
		return nil
	}
	return &Signal{Confidence: confidence, Reason: strings.Join(reasons, ",")}
}

// analyzeTiming is reserved for request-rate analysis across a session.
// Without session tracking it has nothing to say.
func analyzeTiming(*Visit) *Signal {
	return nil
}

func analyzeBehavior(v *Visit) *Signal {
	confidence := 0.0
	reason := ""

	ref := strings.TrimSpace(v.Referrer)
	switch {
	case ref == "":
		confidence += noReferrerWeight
		reason = "no_referrer"
	case !looksLikeURL(ref):
		confidence += malformedReferrerWeight
		reason = "malformed_referrer"
	}

	if confidence <= behaviorEmitThreshold {
		return nil
	}
	return &Signal{Confidence: confidence, Reason: reason}
}

func analyzePlatform(v *Visit) *Signal {
	if v.UserAgent == "" {
		return nil
	}

	tiktok := 0
	if MatchesAny(v.UserAgent, TikTokMarkers) {
		tiktok += platformMarkerPoints
	}
	if MatchesAny(v.Referrer, TikTokReferrers) {
		tiktok += platformReferrerPoints
	}
	if IPInAnyRange(v.IP, TikTokRanges) {
		tiktok += platformIPPoints
	}
	if tiktok >= platformMinTally {
		return platformSignal(PlatformTikTok, tiktok)
	}

	meta := 0
	platform := PlatformFacebook
	for _, s := range Matches(v.UserAgent, MetaSignatures) {
		meta += platformMarkerPoints
		if s.Platform == PlatformInstagram {
			platform = PlatformInstagram
		}
	}
	for _, s := range Matches(v.Referrer, MetaReferrers) {
		meta += platformReferrerPoints
		if s.Platform == PlatformInstagram {
			platform = PlatformInstagram
		}
	}
	if meta >= platformMinTally {
		return platformSignal(platform, meta)
	}

	return nil
}

func platformSignal(p Platform, tally int) *Signal {
	return &Signal{
		Confidence: math.Min(platformMaxConfidence, float64(tally)*platformPointConfidence),
		Platform:   p,
		Reason:     string(p) + "_indicators",
	}
}

func looksLikeURL(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func clamp(f float64) float64 {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
