package detection

import "strings"

const (
	dominantThreshold        = 0.7
	botThreshold             = 0.8
	corroboratedBotThreshold = 0.6
	strongSignal             = 0.8
	breadthOverride          = 4
)

// fallbackKeywords is scanned, in order, over user agent + referrer when
// no signal carried a platform.
var fallbackKeywords = []struct {
	keyword  string
	platform Platform
}{
	{"tiktok", PlatformTikTok},
	{"bytespider", PlatformTikTok},
	{"douyin", PlatformTikTok},
	{"musical", PlatformTikTok},
	{"instagram", PlatformInstagram},
	{"facebook", PlatformFacebook},
	{"fban", PlatformFacebook},
	{"twitter", PlatformTwitter},
}

// Aggregate folds analyzer signals into a Verdict.
//
// Any score above 0.7 dominates (the maximum wins), otherwise the mean is
// used. A visit is a bot when the score exceeds 0.8, when it exceeds 0.6 with
// at least one signal above 0.8, or when four or more analyzers fired at all.
func Aggregate(signals []Signal, userAgent, referrer string) Verdict {
	methods := make([]string, 0, len(signals))
	seen := make(map[string]struct{}, len(signals))
	tagged := make(map[Platform]struct{})

	var (
		sum, highest float64
		dominant     bool
		strong       int
	)
	for _, s := range signals {
		c := clamp(s.Confidence)
		sum += c
		if c > dominantThreshold {
			dominant = true
			if c > highest {
				highest = c
			}
		}
		if c > strongSignal {
			strong++
		}
		if s.Platform != "" {
			tagged[s.Platform] = struct{}{}
		}
		if _, ok := seen[s.Method]; !ok {
			seen[s.Method] = struct{}{}
			methods = append(methods, s.Method)
		}
	}

	var confidence float64
	switch {
	case len(signals) == 0:
		confidence = 0
	case dominant:
		confidence = highest
	default:
		confidence = sum / float64(len(signals))
	}
	confidence = clamp(confidence)

	fired := len(methods)
	isBot := confidence > botThreshold ||
		(confidence > corroboratedBotThreshold && strong > 0) ||
		fired >= breadthOverride

	return Verdict{
		IsBot:            isBot,
		ConfidenceScore:  confidence,
		Platform:         resolvePlatform(tagged, userAgent, referrer),
		DetectionMethods: methods,
		RiskLevel:        assessRisk(confidence, fired),
	}
}

func resolvePlatform(tagged map[Platform]struct{}, userAgent, referrer string) Platform {
	for _, p := range platformPriority {
		if _, ok := tagged[p]; ok {
			return p
		}
	}

	text := strings.ToLower(userAgent + " " + referrer)
	for _, fk := range fallbackKeywords {
		if strings.Contains(text, fk.keyword) {
			return fk.platform
		}
	}
	return PlatformUnknown
}

func assessRisk(confidence float64, fired int) RiskLevel {
	switch {
	case confidence >= 0.9 || fired >= 4:
		return RiskCritical
	case confidence >= 0.7 || fired >= 3:
		return RiskHigh
	case confidence >= 0.5 || fired >= 2:
		return RiskMedium
	default:
		return RiskLow
	}
}
