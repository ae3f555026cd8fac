package httpx

import (
	"net/http"
)

// expireRequest is the POST /api/expire body.
type expireRequest struct {
	Token string `json:"token"`
}

// handleExpire implements POST /api/expire. The endpoint is fired by an
// unsupervised client-side countdown, so it always answers 200 with an ok
// flag; only a missing token is a client error.
func (h *Handler) handleExpire(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.Method != http.MethodPost {
		h.writeError(ctx, w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req expireRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Token == "" {
		h.writeError(ctx, w, http.StatusBadRequest, "missing token")
		return
	}
	ok := h.Service.Expire(ctx, req.Token)
	h.writeJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
	}{OK: ok})
}
