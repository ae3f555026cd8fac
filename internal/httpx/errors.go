package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/pixelock/pixelock/internal/app"
	"github.com/pixelock/pixelock/internal/domain"
	"github.com/pixelock/pixelock/internal/media"
)

// writeError writes a JSON error body with given status code.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg})
	if cid, ok := GetCorrelationID(ctx); ok {
		slog.Debug("wrote error response", "cid", cid, "status", code, "msg", msg)
	}
}

// writeJSON writes a JSON success body with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// mapServiceError maps domain/store/service errors to HTTP responses. Client
// messages are short and fixed; raw error detail stays in operator logs.
func (h *Handler) mapServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	cid, _ := GetCorrelationID(ctx)
	switch {
	case errors.Is(err, domain.ErrTicketNotFound):
		slog.Info("service error", "cid", cid, "code", "invalid_link")
		h.writeError(ctx, w, http.StatusNotFound, "invalid link")
	case errors.Is(err, domain.ErrTicketGone):
		slog.Info("service error", "cid", cid, "code", "link_expired")
		h.writeError(ctx, w, http.StatusGone, "link expired")
	case errors.Is(err, domain.ErrTicketLocked):
		slog.Warn("service error", "cid", cid, "code", "locked")
		h.writeError(ctx, w, http.StatusLocked, "too many attempts")
	case errors.Is(err, domain.ErrWrongPIN):
		slog.Info("service error", "cid", cid, "code", "wrong_pin")
		h.writeError(ctx, w, http.StatusUnauthorized, "incorrect pin")
	case errors.Is(err, app.ErrMissingObjectPath):
		slog.Warn("service error", "cid", cid, "code", "missing_object_path")
		h.writeError(ctx, w, http.StatusBadRequest, "missing object_path")
	case errors.Is(err, app.ErrSizeExceeded):
		slog.Warn("service error", "cid", cid, "code", "size_exceeded")
		h.writeError(ctx, w, http.StatusRequestEntityTooLarge, "size exceeded")
	case errors.Is(err, app.ErrUnsupportedMedia):
		slog.Warn("service error", "cid", cid, "code", "unsupported_media")
		h.writeError(ctx, w, http.StatusUnsupportedMediaType, "unsupported media type")
	case errors.Is(err, domain.ErrInvalidObjectKey), errors.Is(err, os.ErrNotExist):
		slog.Info("service error", "cid", cid, "code", "not_found")
		h.writeError(ctx, w, http.StatusNotFound, "not found")
	case errors.Is(err, media.ErrBadSignature), errors.Is(err, media.ErrURLExpired):
		// Forged and stale URLs collapse to the same answer.
		slog.Info("service error", "cid", cid, "code", "url_rejected")
		h.writeError(ctx, w, http.StatusForbidden, "invalid or expired url")
	default:
		// Internal / unexpected: do not echo raw error text to the client.
		slog.Error("unhandled service error", "cid", cid, "code", "unhandled", "err", err)
		h.writeError(ctx, w, http.StatusInternalServerError, "internal")
	}
}
