package httpx

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
)

// handleMedia implements GET /media/{key}?exp=..&sig=..: the retrieval side
// of a signed URL. The signature is verified before any filesystem access so
// unauthenticated requests cannot probe for object existence.
func (h *Handler) handleMedia(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.Method != http.MethodGet {
		h.writeError(ctx, w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	const prefix = "/media/"
	if len(r.URL.Path) <= len(prefix) || r.URL.Path[:len(prefix)] != prefix {
		h.writeError(ctx, w, http.StatusNotFound, "not found")
		return
	}
	key := r.URL.Path[len(prefix):]
	q := r.URL.Query()
	exp, err := strconv.ParseInt(q.Get("exp"), 10, 64)
	if err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "missing or invalid exp")
		return
	}
	sig := q.Get("sig")
	if sig == "" {
		h.writeError(ctx, w, http.StatusBadRequest, "missing sig")
		return
	}
	if err := h.Media.Verify(key, exp, sig, h.Clock.Now()); err != nil {
		h.mapServiceError(ctx, w, err)
		return
	}
	rc, size, err := h.Media.Open(key)
	if err != nil {
		h.mapServiceError(ctx, w, err)
		return
	}
	defer rc.Close()
	ct := mime.TypeByExtension(filepath.Ext(key))
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.Header().Set("Content-Disposition", "inline")
	w.WriteHeader(http.StatusOK)
	_, _ = io.CopyN(w, rc, size)
}
