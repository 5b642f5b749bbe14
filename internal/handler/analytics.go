package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/smartlink/smartlink/internal/service"
)

// AnalyticsHandler handles analytics API requests.
type AnalyticsHandler struct {
	svc    *service.AnalyticsService
	logger *slog.Logger
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(svc *service.AnalyticsService, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		svc:    svc,
		logger: logger.With("component", "handler.analytics"),
	}
}

// GetLinkAnalytics handles GET /api/v1/links/{shortCode}/analytics.
// The route shares the {id} segment with the link CRUD routes; here it
// carries a short code.
func (h *AnalyticsHandler) GetLinkAnalytics(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "id")
	if shortCode == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Short code is required")
		return
	}

	from, to, ok := parseDateRange(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_DATE", "Dates must use YYYY-MM-DD")
		return
	}

	window := service.NormalizeRange(from, to, time.Now())
	result, err := h.svc.LinkAnalytics(r.Context(), shortCode, window)
	if err != nil {
		if errors.Is(err, service.ErrLinkNotFound) {
			writeError(w, http.StatusNotFound, "LINK_NOT_FOUND", "Link not found")
			return
		}
		h.logger.Error("failed to get link analytics", "short_code", shortCode, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch analytics")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetDashboard handles GET /api/v1/stats.
func (h *AnalyticsHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Dashboard(r.Context())
	if err != nil {
		h.logger.Error("failed to get dashboard stats", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// parseDateRange reads the optional from/to query dates. ok is false when
// a supplied value does not parse.
func parseDateRange(r *http.Request) (from, to *time.Time, ok bool) {
	query := r.URL.Query()

	if raw := query.Get("from"); raw != "" {
		t, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return nil, nil, false
		}
		from = &t
	}
	if raw := query.Get("to"); raw != "" {
		t, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return nil, nil, false
		}
		to = &t
	}
	return from, to, true
}
