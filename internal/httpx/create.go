package httpx

import (
	"encoding/json"
	"net/http"
	"time"
)

// createRequest is the POST /api/tickets body.
type createRequest struct {
	ObjectPath string `json:"object_path"`
}

// handleCreateTicket implements POST /api/tickets. The plaintext PIN appears
// in this response and nowhere else, ever.
func (h *Handler) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.Method != http.MethodPost {
		h.writeError(ctx, w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req createRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, pin, expires, err := h.Service.Create(ctx, req.ObjectPath)
	if err != nil {
		h.mapServiceError(ctx, w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, struct {
		Token     string    `json:"token"`
		PIN       string    `json:"pin"`
		ExpiresAt time.Time `json:"expires_at"`
	}{Token: token.String(), PIN: pin, ExpiresAt: expires})
}

// decodeJSON reads a small JSON body into dst, bounding its size.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, 4<<10)
	defer body.Close()
	dec := json.NewDecoder(body)
	return dec.Decode(dst)
}
