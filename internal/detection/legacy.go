package detection

import "strings"

var legacyBotSubstrings = []string{
	"facebookexternalhit",
	"bytespider",
	"twitterbot",
	"linkedinbot",
	"whatsapp",
	"telegrambot",
	"applebot",
	"googlebot",
	"bingbot",
	"slackbot",
	"discordbot",
	"crawler",
	"spider",
	"scraper",
	"bot/",
}

var suspiciousTools = []string{"curl", "wget", "python", "requests", "httpie", "postman"}

const suspiciousUALength = 20

// IsLegacyBot is the plain substring bot check run alongside the engine on
// the redirect path. An empty user agent counts as a bot.
func IsLegacyBot(userAgent string) bool {
	if strings.TrimSpace(userAgent) == "" {
		return true
	}
	return containsAny(strings.ToLower(userAgent), legacyBotSubstrings)
}

// IsSuspicious flags short user agents and HTTP tooling.
func IsSuspicious(userAgent string) bool {
	if len(userAgent) < suspiciousUALength {
		return true
	}
	return containsAny(strings.ToLower(userAgent), suspiciousTools)
}

// PlatformFromReferrer attributes a referrer to a platform for analytics.
func PlatformFromReferrer(referrer string) Platform {
	if referrer == "" {
		return PlatformUnknown
	}
	ref := strings.ToLower(referrer)
	switch {
	case strings.Contains(ref, "tiktok.com"), strings.Contains(ref, "musically.com"):
		return PlatformTikTok
	case strings.Contains(ref, "instagram.com"):
		return PlatformInstagram
	case strings.Contains(ref, "facebook.com"), strings.Contains(ref, "fb.com"):
		return PlatformFacebook
	case strings.Contains(ref, "twitter.com"), strings.Contains(ref, "://t.co/"), strings.Contains(ref, "://x.com"):
		return PlatformTwitter
	default:
		return PlatformOther
	}
}
