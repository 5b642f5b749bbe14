package handler

import (
	"encoding/json"
	"net/http"

	"github.com/smartlink/smartlink/internal/detection"
	"github.com/smartlink/smartlink/internal/handler/dto"
	"github.com/smartlink/smartlink/internal/service"
)

// ClassifyHandler exposes the detection engine for debugging.
type ClassifyHandler struct {
	visits *service.VisitService
}

// NewClassifyHandler creates a new ClassifyHandler.
func NewClassifyHandler(visits *service.VisitService) *ClassifyHandler {
	return &ClassifyHandler{visits: visits}
}

// Classify handles POST /api/v1/classify. Nothing is routed or recorded.
func (h *ClassifyHandler) Classify(w http.ResponseWriter, r *http.Request) {
	var req dto.ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	visit := detection.NewVisit(req.UserAgent, req.IP, req.Referrer, req.Headers)
	writeJSON(w, http.StatusOK, dto.ClassifyResponse{
		Verdict:    h.visits.Classify(visit),
		LegacyBot:  detection.IsLegacyBot(req.UserAgent),
		Suspicious: detection.IsSuspicious(req.UserAgent),
	})
}
