package detection

import (
	"net/netip"
	"regexp"
	"strings"
)

// Signature is a single user-agent or referrer pattern.
// Case-insensitive signatures are written in lowercase and matched against
// the lowercased text; case-sensitive ones are matched against the raw text.
type Signature struct {
	Pattern       *regexp.Regexp
	Platform      Platform
	CaseSensitive bool
}

// PatternSet is an ordered list of signatures.
type PatternSet []Signature

// CIDRSet is a list of network prefixes.
type CIDRSet []netip.Prefix

// PlatformRange binds a platform to the networks it crawls from.
type PlatformRange struct {
	Platform Platform
	Ranges   CIDRSet
}

func sig(pattern string, platform Platform) Signature {
	return Signature{Pattern: regexp.MustCompile(pattern), Platform: platform}
}

func sigCS(pattern string, platform Platform) Signature {
	return Signature{Pattern: regexp.MustCompile(pattern), Platform: platform, CaseSensitive: true}
}

func mustCIDRs(cidrs ...string) CIDRSet {
	set := make(CIDRSet, 0, len(cidrs))
	for _, c := range cidrs {
		set = append(set, netip.MustParsePrefix(c))
	}
	return set
}

// GenericBotKeywords are automation markers found in crawler and tool user agents.
var GenericBotKeywords = PatternSet{
	sig(`bot`, ""),
	sig(`crawler`, ""),
	sig(`spider`, ""),
	sig(`scraper`, ""),
	sig(`curl`, ""),
	sig(`wget`, ""),
	sig(`python`, ""),
	sig(`requests`, ""),
	sig(`headless`, ""),
	sig(`phantom`, ""),
	sig(`selenium`, ""),
	sig(`puppeteer`, ""),
	sig(`playwright`, ""),
}

// TikTokBotSignatures identify ByteDance crawlers.
var TikTokBotSignatures = PatternSet{
	sig(`bytespider`, PlatformTikTok),
	sig(`tiktok.*crawler`, PlatformTikTok),
	sig(`bytedance.*bot`, PlatformTikTok),
	sig(`douyin.*spider`, PlatformTikTok),
	sig(`musicallybot`, PlatformTikTok),
	sig(`aweme.*crawler`, PlatformTikTok),
}

// MetaSignatures cover Facebook/Instagram crawlers and in-app browsers.
// The bracketed FB app markers only ever appear in upper case.
var MetaSignatures = PatternSet{
	sig(`facebookexternalhit`, PlatformFacebook),
	sig(`facebookcatalog`, PlatformFacebook),
	sig(`instagrambot`, PlatformInstagram),
	sig(`meta.*external.*hit`, PlatformFacebook),
	sig(`whatsapp.*preview`, PlatformFacebook),
	sig(`instagram\s+[\d.]+`, PlatformInstagram),
	sigCS(`\[FBAN/`, PlatformFacebook),
	sigCS(`FBAV/`, PlatformFacebook),
	sigCS(`FBIOS`, PlatformFacebook),
	sigCS(`FBDV/`, PlatformFacebook),
	sigCS(`\[FB`, PlatformFacebook),
}

// TwitterBotSignatures identify the X/Twitter card fetcher.
var TwitterBotSignatures = PatternSet{
	sig(`twitterbot`, PlatformTwitter),
}

// GoogleBotSignatures identify Google's search and ads crawlers.
var GoogleBotSignatures = PatternSet{
	sig(`googlebot`, PlatformGoogle),
	sig(`adsbot-google`, PlatformGoogle),
	sig(`mediapartners-google`, PlatformGoogle),
	sig(`google-inspectiontool`, PlatformGoogle),
}

// platformBotSignatures is checked in order by the user-agent analyzer.
var platformBotSignatures = []PatternSet{
	TikTokBotSignatures,
	MetaSignatures,
	TwitterBotSignatures,
	GoogleBotSignatures,
}

// TikTokMarkers are TikTok app and crawler identifiers, bots or not.
var TikTokMarkers = PatternSet{
	sig(`bytespider`, PlatformTikTok),
	sig(`tiktok`, PlatformTikTok),
	sig(`musically`, PlatformTikTok),
	sig(`bytedance`, PlatformTikTok),
	sig(`douyin`, PlatformTikTok),
	sig(`aweme`, PlatformTikTok),
	sig(`com\.zhiliaoapp\.musically`, PlatformTikTok),
	sig(`musical_ly`, PlatformTikTok),
}

// TikTokReferrers match referrers coming from TikTok.
var TikTokReferrers = PatternSet{
	sig(`tiktok\.com`, PlatformTikTok),
	sig(`musically\.com`, PlatformTikTok),
}

// MetaReferrers match referrers coming from Facebook or Instagram.
var MetaReferrers = PatternSet{
	sig(`facebook\.com`, PlatformFacebook),
	sig(`instagram\.com`, PlatformInstagram),
	sig(`fb\.com`, PlatformFacebook),
	sig(`m\.facebook\.com`, PlatformFacebook),
}

// TikTokRanges are ByteDance crawler networks.
var TikTokRanges = mustCIDRs(
	"103.216.0.0/16", // Singapore
	"161.117.0.0/16", // ByteDance US
	"49.51.0.0/16",   // Asia Pacific
)

// PlatformRanges lists known platform networks in lookup order.
var PlatformRanges = []PlatformRange{
	{Platform: PlatformTikTok, Ranges: TikTokRanges},
	{Platform: PlatformFacebook, Ranges: mustCIDRs(
		"31.13.0.0/16",
		"66.220.0.0/16",
		"69.63.0.0/16",
	)},
	{Platform: PlatformGoogle, Ranges: mustCIDRs(
		"66.249.0.0/16", // Googlebot
		"64.233.0.0/16",
	)},
	{Platform: PlatformTwitter, Ranges: mustCIDRs(
		"199.16.156.0/22",
		"199.59.148.0/22",
	)},
}

// Match reports whether the signature matches text.
func (s Signature) Match(text string) bool {
	if s.CaseSensitive {
		return s.Pattern.MatchString(text)
	}
	return s.Pattern.MatchString(strings.ToLower(text))
}

// MatchesAny reports whether any signature in set matches text.
func MatchesAny(text string, set PatternSet) bool {
	_, ok := FirstMatch(text, set)
	return ok
}

// FirstMatch returns the first signature in set that matches text.
func FirstMatch(text string, set PatternSet) (Signature, bool) {
	if text == "" {
		return Signature{}, false
	}
	lower := strings.ToLower(text)
	for _, s := range set {
		subject := lower
		if s.CaseSensitive {
			subject = text
		}
		if s.Pattern.MatchString(subject) {
			return s, true
		}
	}
	return Signature{}, false
}

// Matches returns every signature in set that matches text.
func Matches(text string, set PatternSet) []Signature {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)
	var out []Signature
	for _, s := range set {
		subject := lower
		if s.CaseSensitive {
			subject = text
		}
		if s.Pattern.MatchString(subject) {
			out = append(out, s)
		}
	}
	return out
}

// IPInAnyRange reports whether ip parses and falls inside any prefix of set.
// Malformed addresses never match.
func IPInAnyRange(ip string, set CIDRSet) bool {
	if ip == "" || len(set) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range set {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
