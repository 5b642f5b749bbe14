package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/smartlink/smartlink/internal/detection"
	"github.com/smartlink/smartlink/internal/service"
)

// RedirectHandler classifies visits to short links and redirects them.
type RedirectHandler struct {
	visits *service.VisitService
	logger *slog.Logger
}

// NewRedirectHandler creates a new RedirectHandler.
func NewRedirectHandler(visits *service.VisitService, logger *slog.Logger) *RedirectHandler {
	return &RedirectHandler{
		visits: visits,
		logger: logger.With("component", "handler.redirect"),
	}
}

// Redirect handles GET /{shortCode}. Humans reach the target, bots a safe
// page and suspicious clients the challenge.
func (h *RedirectHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")
	if shortCode == "" {
		h.writeError(w, http.StatusNotFound, "LINK_NOT_FOUND", "Link not found")
		return
	}

	start := time.Now()
	visit := detection.VisitFromRequest(r)

	outcome, err := h.visits.Handle(r.Context(), shortCode, visit, r.Header.Get("CF-IPCountry"))
	if err != nil {
		h.handleRedirectError(w, shortCode, err, time.Since(start))
		return
	}

	h.logger.Debug("redirect_success",
		"short_code", shortCode,
		"target_reached", outcome.Decision.Target,
		"duration_ms", float64(time.Since(start).Microseconds())/1000,
	)

	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Referrer-Policy", "no-referrer")
	noStore(w)

	http.Redirect(w, r, outcome.RedirectURL, http.StatusFound)
}

// handleRedirectError handles errors during redirect resolution.
func (h *RedirectHandler) handleRedirectError(w http.ResponseWriter, shortCode string, err error, duration time.Duration) {
	switch {
	case errors.Is(err, service.ErrLinkNotFound):
		h.logger.Info("redirect_not_found",
			"short_code", shortCode,
			"duration_ms", float64(duration.Microseconds())/1000,
		)
		h.writeError(w, http.StatusNotFound, "LINK_NOT_FOUND", "Link not found")

	case errors.Is(err, service.ErrLinkDisabled):
		h.logger.Info("redirect_disabled",
			"short_code", shortCode,
			"duration_ms", float64(duration.Microseconds())/1000,
		)
		// Disabled links look exactly like missing ones.
		h.writeError(w, http.StatusNotFound, "LINK_NOT_FOUND", "Link not found")

	default:
		h.logger.Error("redirect_error",
			"short_code", shortCode,
			"error", err,
			"duration_ms", float64(duration.Microseconds())/1000,
		)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}

// writeError writes a JSON error response for redirect failures.
func (h *RedirectHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	noStore(w)
	writeError(w, status, code, message)
}
