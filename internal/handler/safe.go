package handler

import (
	"bytes"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/smartlink/smartlink/internal/detection"
	"github.com/smartlink/smartlink/internal/model"
	"github.com/smartlink/smartlink/internal/service"
)

// platformCopy is the wording of the platform decoy pages.
var platformCopy = map[detection.Platform]struct {
	Heading string
	Lead    string
}{
	detection.PlatformTikTok: {
		Heading: "Thanks for watching",
		Lead:    "Here is the page from the video, with the details in one place.",
	},
	detection.PlatformInstagram: {
		Heading: "From the post",
		Lead:    "Everything mentioned in the post, collected on one page.",
	},
	detection.PlatformFacebook: {
		Heading: "Shared on Facebook",
		Lead:    "The full story behind the link you followed.",
	},
}

type safePageData struct {
	Title       string
	Heading     string
	Lead        string
	Description string
}

var safeTemplate = template.Must(template.New("safe").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta name="robots" content="noindex, nofollow">
<title>{{.Title}}</title>
<meta property="og:title" content="{{.Title}}">
{{if .Description}}<meta property="og:description" content="{{.Description}}">{{end}}
<style>
body{font-family:system-ui,-apple-system,sans-serif;max-width:40rem;margin:3rem auto;padding:0 1rem;line-height:1.6;color:#222}
h1{font-size:1.6rem;margin-bottom:.25rem}
.lead{color:#555}
</style>
</head>
<body>
<main>
<h1>{{.Heading}}</h1>
{{if .Lead}}<p class="lead">{{.Lead}}</p>{{end}}
<h2>{{.Title}}</h2>
{{if .Description}}<p>{{.Description}}</p>{{else}}<p>Check back soon for more.</p>{{end}}
</main>
</body>
</html>
`))

// SafeHandler serves the decoy pages shown to crawlers.
type SafeHandler struct {
	links  *service.LinkService
	logger *slog.Logger
}

// NewSafeHandler creates a new SafeHandler.
func NewSafeHandler(links *service.LinkService, logger *slog.Logger) *SafeHandler {
	return &SafeHandler{
		links:  links,
		logger: logger.With("component", "handler.safe"),
	}
}

// Safe handles GET /safe/{shortCode} and GET /safe/{shortCode}/{platform}.
func (h *SafeHandler) Safe(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")

	variant := detection.PlatformUnknown
	if raw := chi.URLParam(r, "platform"); raw != "" {
		variant = detection.ParsePlatform(raw)
		if !variant.HasSafeVariant() {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
			return
		}
	}

	link, err := h.links.ResolveLink(r.Context(), shortCode)
	if err != nil {
		if errors.Is(err, service.ErrLinkNotFound) || errors.Is(err, service.ErrLinkDisabled) {
			writeError(w, http.StatusNotFound, "LINK_NOT_FOUND", "Link not found")
			return
		}
		h.logger.Error("safe_page_error", "short_code", shortCode, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	var buf bytes.Buffer
	if err := safeTemplate.Execute(&buf, buildSafePage(link, variant)); err != nil {
		h.logger.Error("safe_page_render_failed", "short_code", shortCode, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	noStore(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func buildSafePage(link *model.Link, variant detection.Platform) safePageData {
	data := safePageData{
		Title:       link.Title,
		Heading:     link.Title,
		Description: link.Description,
	}
	if c, ok := platformCopy[variant]; ok {
		data.Heading = c.Heading
		data.Lead = c.Lead
	}
	return data
}
