package httpx

import (
	"net/http"
)

// uploadFieldName is the multipart form field carrying the image.
const uploadFieldName = "file"

// handleUpload implements POST /api/upload (multipart/form-data).
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.Method != http.MethodPost {
		h.writeError(ctx, w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.MaxBody > 0 {
		// Some headroom over the payload cap for multipart framing.
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxBody+(64<<10))
	}
	file, header, err := r.FormFile(uploadFieldName)
	if err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "no file")
		return
	}
	defer file.Close()
	key, err := h.Service.Upload(ctx, file, header.Size, header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		h.mapServiceError(ctx, w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, struct {
		Path string `json:"path"`
	}{Path: key})
}
