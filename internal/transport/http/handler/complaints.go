package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gram-sevak/internal/application/complaint"
	"github.com/gram-sevak/internal/transport/http/middleware"
)

// ComplaintHandler handles complaint submission.
type ComplaintHandler struct {
	svc     complaint.Service
	maxBody int64
}

func NewComplaintHandler(svc complaint.Service, maxBody int64) *ComplaintHandler {
	return &ComplaintHandler{svc: svc, maxBody: maxBody}
}

func (h *ComplaintHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	var sub complaint.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var submittedBy string
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		submittedBy = claims.Email
	}

	ref, err := h.svc.Submit(r.Context(), sub, submittedBy)
	if err != nil {
		httpError(w, r, err, "failed to send complaint")
		return
	}
	writeJSON(w, http.StatusOK, SuccessEnvelope{Success: true, Reference: ref})
}
