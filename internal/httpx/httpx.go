// Package httpx contains the HTTP delivery layer (net/http handlers) for the
// PIXELock service. It maps HTTP requests to the application service while
// enforcing validation, size limits, security headers, and error translation.
// Handlers are split across files (upload.go, create.go, unlock.go,
// expire.go, serve.go, health.go, errors.go).
package httpx

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/pixelock/pixelock/internal/app"
	"github.com/pixelock/pixelock/internal/domain"
)

// ServicePort abstracts the subset of app.Service used by the HTTP layer.
// It is satisfied by *app.Service in production and mocked in tests.
type ServicePort interface {
	Upload(ctx context.Context, r io.Reader, size int64, filename, contentType string) (string, error)
	Create(ctx context.Context, objectPath string) (domain.Token, string, time.Time, error)
	Redeem(ctx context.Context, token, pin string) (app.RedeemResult, error)
	Expire(ctx context.Context, token string) bool
}

// MediaGateway abstracts signed retrieval of stored objects. Production wires
// the media store and signer together; tests substitute fakes.
type MediaGateway interface {
	Open(key string) (io.ReadCloser, int64, error)
	Verify(key string, exp int64, sig string, now time.Time) error
}

// Handler wires HTTP endpoints to the application service.
// It is safe for concurrent use. Zero-value is not valid; construct via New.
type Handler struct {
	Service   ServicePort
	Media     MediaGateway
	Clock     app.Clock
	MaxBody   int64                       // request body cap, mirrors the service upload limit
	Readiness func(context.Context) error // optional readiness probe
	Metrics   http.Handler                // optional metrics snapshot endpoint
}

// New returns a configured Handler.
// svc: application service port implementation.
// media: signed object retrieval gateway.
// clock: time source for signed-URL verification.
// maxBody: maximum allowed upload body size (0 disables the extra check).
func New(svc ServicePort, media MediaGateway, clock app.Clock, maxBody int64) *Handler {
	return &Handler{Service: svc, Media: media, Clock: clock, MaxBody: maxBody}
}

// Router constructs and returns an http.Handler with all routes mounted and
// correlation-ID plus security-headers middleware applied.
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/upload", h.handleUpload)
	mux.HandleFunc("/api/tickets", h.handleCreateTicket)
	mux.HandleFunc("/api/unlock", h.handleUnlock)
	mux.HandleFunc("/api/expire", h.handleExpire)
	mux.HandleFunc("/media/", h.handleMedia) // expect /media/{key}
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/readyz", h.handleReady)
	if h.Metrics != nil {
		mux.Handle("/metrics", h.Metrics)
	}
	return CorrelationIDMiddleware(h.secureHeaders(mux))
}

// secureHeaders middleware adds standard security & cache control headers.
func (h *Handler) secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "no-referrer")
		// Everything this service returns is either API JSON or a one-shot
		// image; nothing may be cached downstream.
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; img-src 'self'; frame-ancestors 'none'; base-uri 'none'")
		next.ServeHTTP(w, r)
	})
}
