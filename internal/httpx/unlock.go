package httpx

import (
	"net/http"

	"github.com/pixelock/pixelock/internal/domain"
)

// unlockRequest is the POST /api/unlock body.
type unlockRequest struct {
	Token string `json:"token"`
	PIN   string `json:"pin"`
}

// handleUnlock implements POST /api/unlock: redeem a token+PIN for a signed
// retrieval URL. Missing or malformed parameters are rejected here, before
// the attempt counter is in play.
func (h *Handler) handleUnlock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.Method != http.MethodPost {
		h.writeError(ctx, w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req unlockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Token == "" || req.PIN == "" {
		h.writeError(ctx, w, http.StatusBadRequest, "missing token or pin")
		return
	}
	if !domain.ValidPIN(req.PIN) {
		h.writeError(ctx, w, http.StatusBadRequest, "invalid pin")
		return
	}
	res, err := h.Service.Redeem(ctx, req.Token, req.PIN)
	if err != nil {
		h.mapServiceError(ctx, w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, struct {
		SignedURL     string `json:"signed_url"`
		RevealSeconds int    `json:"reveal_seconds"`
	}{SignedURL: res.SignedURL, RevealSeconds: res.RevealSeconds})
}
