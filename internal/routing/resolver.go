package routing

import (
	"net/url"
	"strings"

	"github.com/smartlink/smartlink/internal/model"
)

// Resolver turns a Decision into the URL the visitor is redirected to.
type Resolver struct {
	baseURL string
}

// NewResolver creates a resolver for pages served under baseURL.
func NewResolver(baseURL string) *Resolver {
	return &Resolver{baseURL: strings.TrimSuffix(baseURL, "/")}
}

// URL returns the redirect location for d.
func (r *Resolver) URL(link *model.Link, d Decision) string {
	code := url.PathEscape(link.ShortCode)

	switch d.Target {
	case model.ReachedSafe:
		switch d.Safe {
		case SafePlatform:
			return r.baseURL + "/safe/" + code + "/" + string(d.SafeVariant)
		case SafeCustom:
			return link.SafeURL
		default:
			return r.baseURL + "/safe/" + code
		}
	case model.ReachedChallenge:
		return r.baseURL + "/challenge/" + code
	default:
		return link.TargetURL
	}
}

// SafeURL returns the generic safe page of a link.
func (r *Resolver) SafeURL(link *model.Link) string {
	return r.baseURL + "/safe/" + url.PathEscape(link.ShortCode)
}
