// Package audit builds, queues and persists the audit record of every
// classified visit.
package audit

import (
	"fmt"
	"net/netip"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/smartlink/smartlink/internal/detection"
	"github.com/smartlink/smartlink/internal/model"
	"github.com/smartlink/smartlink/internal/routing"
)

// MaxFieldLength caps stored user agents and referrers, in characters.
const MaxFieldLength = 500

// AnonymizeIP drops the host part of an address before it is stored.
// IPv4 keeps the first three octets (a.b.c.0); IPv6 keeps the first four
// groups followed by "::0". A trailing port is accepted. Unparseable input
// yields "".
func AnonymizeIP(ip string) string {
	s := strings.TrimSpace(ip)
	if s == "" {
		return ""
	}

	addr, err := netip.ParseAddr(s)
	if err != nil {
		ap, perr := netip.ParseAddrPort(s)
		if perr != nil {
			return ""
		}
		addr = ap.Addr()
	}
	addr = addr.Unmap().WithZone("")

	if addr.Is4() {
		b := addr.As4()
		return fmt.Sprintf("%d.%d.%d.0", b[0], b[1], b[2])
	}

	b := addr.As16()
	return fmt.Sprintf("%x:%x:%x:%x::0",
		uint16(b[0])<<8|uint16(b[1]),
		uint16(b[2])<<8|uint16(b[3]),
		uint16(b[4])<<8|uint16(b[5]),
		uint16(b[6])<<8|uint16(b[7]),
	)
}

// Truncate cuts s to at most limit characters without splitting a rune.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

// cleanText makes request text safe for a Postgres text column.
func cleanText(s string) string {
	s = strings.ToValidUTF8(s, "�")
	s = strings.ReplaceAll(s, "\x00", "")
	return Truncate(s, MaxFieldLength)
}

// ExtractCountryCode extracts country code from Cloudflare header.
// Returns empty string if header is missing or invalid.
func ExtractCountryCode(cfIPCountry string) string {
	cc := strings.TrimSpace(cfIPCountry)
	if len(cc) != 2 || strings.EqualFold(cc, "XX") {
		return ""
	}
	return strings.ToUpper(cc)
}

// NewRecord builds the immutable audit record for one visit. The client IP
// is anonymised and free text truncated here, before anything else can see
// the record.
func NewRecord(
	link *model.Link,
	visit detection.Visit,
	verdict detection.Verdict,
	decision routing.Decision,
	country string,
	now time.Time,
) *model.Click {
	platform := verdict.Platform
	if platform == "" || platform == detection.PlatformUnknown {
		platform = detection.PlatformFromReferrer(visit.Referrer)
	}

	methods := make([]string, len(verdict.DetectionMethods))
	copy(methods, verdict.DetectionMethods)

	return &model.Click{
		ID:               ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		LinkID:           link.ID,
		ShortCode:        link.ShortCode,
		IPAddress:        AnonymizeIP(visit.IP),
		UserAgent:        cleanText(visit.UserAgent),
		Referrer:         cleanText(visit.Referrer),
		ClickType:        decision.ClickType,
		TargetReached:    decision.Target,
		Platform:         string(platform),
		ConfidenceScore:  verdict.ConfidenceScore,
		RiskLevel:        string(verdict.RiskLevel),
		DetectionMethods: methods,
		CountryCode:      ExtractCountryCode(country),
		ClickedAt:        now.UTC(),
	}
}
