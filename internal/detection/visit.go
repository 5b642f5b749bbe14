package detection

import (
	"net"
	"net/http"
	"strings"
)

// Visit is the request metadata the engine inspects.
// Header keys are stored lowercased so lookups are case-insensitive.
type Visit struct {
	UserAgent string
	IP        string
	Referrer  string
	Headers   map[string]string
}

// NewVisit builds a Visit, normalising header names.
func NewVisit(userAgent, ip, referrer string, headers map[string]string) Visit {
	normalized := make(map[string]string, len(headers))
	for k, v := range headers {
		normalized[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return Visit{
		UserAgent: userAgent,
		IP:        ip,
		Referrer:  referrer,
		Headers:   normalized,
	}
}

// VisitFromRequest captures the classification inputs of an inbound request.
func VisitFromRequest(r *http.Request) Visit {
	headers := make(map[string]string, len(r.Header))
	for k, v := range r.Header {
		headers[strings.ToLower(k)] = strings.Join(v, ", ")
	}
	return Visit{
		UserAgent: r.Header.Get("User-Agent"),
		IP:        ClientIP(r),
		Referrer:  r.Header.Get("Referer"),
		Headers:   headers,
	}
}

// Header returns the value of the named header and whether it was sent.
func (v *Visit) Header(name string) (string, bool) {
	if v.Headers == nil {
		return "", false
	}
	val, ok := v.Headers[strings.ToLower(name)]
	return val, ok
}

// ClientIP extracts the visitor IP from proxy headers or RemoteAddr,
// without a port.
func ClientIP(r *http.Request) string {
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return stripPort(strings.TrimSpace(ip))
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return stripPort(strings.TrimSpace(first))
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return stripPort(strings.TrimSpace(ip))
	}
	return stripPort(r.RemoteAddr)
}

func stripPort(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
