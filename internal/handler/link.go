package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/smartlink/smartlink/internal/handler/dto"
	"github.com/smartlink/smartlink/internal/service"
)

// LinkHandler handles HTTP requests for link operations.
type LinkHandler struct {
	svc    *service.LinkService
	logger *slog.Logger
}

// NewLinkHandler creates a new LinkHandler.
func NewLinkHandler(svc *service.LinkService, logger *slog.Logger) *LinkHandler {
	return &LinkHandler{
		svc:    svc,
		logger: logger.With("component", "handler.link"),
	}
}

// Create handles POST /api/v1/links.
func (h *LinkHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	link, err := h.svc.CreateLink(r.Context(), service.CreateLinkInput{
		TargetURL:        req.TargetURL,
		SafeURL:          req.SafeURL,
		Title:            req.Title,
		Description:      req.Description,
		Alias:            req.Alias,
		UseJSChallenge:   req.UseJSChallenge,
		DirectFromTikTok: req.DirectFromTikTok,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("link_created",
		"link_id", link.ID,
		"short_code", link.ShortCode,
		"has_custom_alias", req.Alias != "",
		"has_safe_url", link.HasSafeURL(),
	)

	writeJSON(w, http.StatusCreated, dto.ToLinkResponse(link, h.svc.BaseURL()))
}

// Get handles GET /api/v1/links/{id}.
func (h *LinkHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ID", "Link ID is required")
		return
	}

	link, err := h.svc.GetLink(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToLinkResponse(link, h.svc.BaseURL()))
}

// List handles GET /api/v1/links.
func (h *LinkHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := 20
	if l := query.Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	input := service.ListLinksInput{
		Cursor: query.Get("cursor"),
		Limit:  limit,
	}

	switch query.Get("status") {
	case "active":
		enabled := true
		input.Enabled = &enabled
	case "disabled":
		enabled := false
		input.Enabled = &enabled
	case "":
	default:
		writeError(w, http.StatusBadRequest, "INVALID_STATUS", "Status must be active or disabled")
		return
	}

	if after := query.Get("created_after"); after != "" {
		if t, err := time.Parse(time.RFC3339, after); err == nil {
			input.CreatedAfter = &t
		}
	}
	if before := query.Get("created_before"); before != "" {
		if t, err := time.Parse(time.RFC3339, before); err == nil {
			input.CreatedBefore = &t
		}
	}

	result, err := h.svc.ListLinks(r.Context(), input)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToLinkListResponse(result.Links, h.svc.BaseURL(), result.NextCursor, result.HasMore))
}

// Update handles PATCH /api/v1/links/{id}.
func (h *LinkHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ID", "Link ID is required")
		return
	}

	var req dto.UpdateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	link, err := h.svc.UpdateLink(r.Context(), service.UpdateLinkInput{
		ID:               id,
		TargetURL:        req.TargetURL,
		SafeURL:          req.SafeURL,
		Title:            req.Title,
		Description:      req.Description,
		UseJSChallenge:   req.UseJSChallenge,
		DirectFromTikTok: req.DirectFromTikTok,
		Enabled:          req.Enabled,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("link_updated",
		"link_id", link.ID,
		"short_code", link.ShortCode,
	)

	writeJSON(w, http.StatusOK, dto.ToLinkResponse(link, h.svc.BaseURL()))
}

// Delete handles DELETE /api/v1/links/{id}.
func (h *LinkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ID", "Link ID is required")
		return
	}

	if err := h.svc.DeleteLink(r.Context(), id); err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("link_deleted", "link_id", id)

	w.WriteHeader(http.StatusNoContent)
}

// handleServiceError maps service errors to HTTP responses.
func (h *LinkHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrLinkNotFound):
		writeError(w, http.StatusNotFound, "LINK_NOT_FOUND", "Link not found")
	case errors.Is(err, service.ErrAliasExists):
		writeError(w, http.StatusConflict, "ALIAS_TAKEN", "Alias already exists")
	case errors.Is(err, service.ErrInvalidTarget):
		writeError(w, http.StatusBadRequest, "INVALID_TARGET_URL", "Target URL must be an absolute http(s) URL")
	case errors.Is(err, service.ErrInvalidSafeURL):
		writeError(w, http.StatusBadRequest, "INVALID_SAFE_URL", "Safe URL must be an absolute http(s) URL")
	case errors.Is(err, service.ErrInvalidAlias):
		writeError(w, http.StatusBadRequest, "INVALID_ALIAS", "Invalid alias format")
	case errors.Is(err, service.ErrInvalidTitle):
		writeError(w, http.StatusBadRequest, "INVALID_TITLE", "Title is too long")
	case errors.Is(err, service.ErrInvalidDesc):
		writeError(w, http.StatusBadRequest, "INVALID_DESCRIPTION", "Description is too long")
	case errors.Is(err, service.ErrURLTooLong):
		writeError(w, http.StatusBadRequest, "URL_TOO_LONG", "URL exceeds maximum length")
	case errors.Is(err, service.ErrInvalidCursor):
		writeError(w, http.StatusBadRequest, "INVALID_CURSOR", "Invalid pagination cursor")
	default:
		h.logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}
