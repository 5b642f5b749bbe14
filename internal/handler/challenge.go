package handler

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/smartlink/smartlink/internal/challenge"
	"github.com/smartlink/smartlink/internal/service"
)

// ChallengeHandler serves the interactive challenge.
type ChallengeHandler struct {
	svc    *service.ChallengeService
	logger *slog.Logger
}

// NewChallengeHandler creates a new ChallengeHandler.
func NewChallengeHandler(svc *service.ChallengeService, logger *slog.Logger) *ChallengeHandler {
	return &ChallengeHandler{
		svc:    svc,
		logger: logger.With("component", "handler.challenge"),
	}
}

// Page handles GET /challenge/{shortCode}.
func (h *ChallengeHandler) Page(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")

	link, c, err := h.svc.Start(r.Context(), shortCode)
	if err != nil {
		h.handleError(w, shortCode, err)
		return
	}

	var buf bytes.Buffer
	err = challenge.RenderPage(&buf, challenge.PageData{
		Title:     link.Title,
		Token:     c.Token,
		Nonce:     c.Nonce,
		VerifyURL: "/challenge/" + url.PathEscape(link.ShortCode) + "/verify",
		SafeURL:   h.svc.FallbackURL(link),
	})
	if err != nil {
		h.logger.Error("challenge_render_failed", "short_code", shortCode, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	noStore(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// Verify handles GET /challenge/{shortCode}/verify?token=...&proof=...
// It always answers with a redirect: the target on success, the safe page
// otherwise.
func (h *ChallengeHandler) Verify(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")
	query := r.URL.Query()

	result, err := h.svc.Verify(r.Context(), shortCode, query.Get("token"), query.Get("proof"))
	if err != nil {
		h.handleError(w, shortCode, err)
		return
	}

	noStore(w)
	http.Redirect(w, r, result.RedirectURL, http.StatusFound)
}

func (h *ChallengeHandler) handleError(w http.ResponseWriter, shortCode string, err error) {
	switch {
	case errors.Is(err, service.ErrLinkNotFound), errors.Is(err, service.ErrLinkDisabled):
		writeError(w, http.StatusNotFound, "LINK_NOT_FOUND", "Link not found")
	default:
		h.logger.Error("challenge_error", "short_code", shortCode, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}
