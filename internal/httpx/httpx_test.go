package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pixelock/pixelock/internal/app"
	"github.com/pixelock/pixelock/internal/domain"
)

// fixedClock implements app.Clock for deterministic signed-URL checks.
type fixedClock struct{ now time.Time }

func (f fixedClock) Now() time.Time { return f.now }

// mockService implements ServicePort.
type mockService struct {
	uploadKey string
	uploadErr error

	createToken domain.Token
	createPIN   string
	createExp   time.Time
	createErr   error

	redeemRes app.RedeemResult
	redeemErr error

	expireOK bool

	gotObjectPath string
	gotToken      string
	gotPIN        string
	gotFilename   string
	gotSize       int64
}

func (m *mockService) Upload(_ context.Context, r io.Reader, size int64, filename, _ string) (string, error) {
	_, _ = io.Copy(io.Discard, r)
	m.gotSize = size
	m.gotFilename = filename
	return m.uploadKey, m.uploadErr
}

func (m *mockService) Create(_ context.Context, objectPath string) (domain.Token, string, time.Time, error) {
	m.gotObjectPath = objectPath
	if objectPath == "" {
		return "", "", time.Time{}, app.ErrMissingObjectPath
	}
	return m.createToken, m.createPIN, m.createExp, m.createErr
}

func (m *mockService) Redeem(_ context.Context, token, pin string) (app.RedeemResult, error) {
	m.gotToken = token
	m.gotPIN = pin
	return m.redeemRes, m.redeemErr
}

func (m *mockService) Expire(_ context.Context, token string) bool {
	m.gotToken = token
	return m.expireOK
}

// mockGateway implements MediaGateway.
type mockGateway struct {
	verifyErr error
	openErr   error
	data      string

	gotKey string
	gotExp int64
	gotSig string
	gotNow time.Time
}

func (m *mockGateway) Open(key string) (io.ReadCloser, int64, error) {
	if m.openErr != nil {
		return nil, 0, m.openErr
	}
	return io.NopCloser(strings.NewReader(m.data)), int64(len(m.data)), nil
}

func (m *mockGateway) Verify(key string, exp int64, sig string, now time.Time) error {
	m.gotKey = key
	m.gotExp = exp
	m.gotSig = sig
	m.gotNow = now
	return m.verifyErr
}

func newTestHandler(svc *mockService, gw *mockGateway) *Handler {
	return New(svc, gw, fixedClock{now: time.Unix(1700000000, 0).UTC()}, 1<<20)
}

// doJSON performs a JSON POST against the full router.
func doJSON(t *testing.T, h *Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.Router().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func errBody(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var e struct {
		Error string `json:"error"`
	}
	decodeBody(t, rr, &e)
	return e.Error
}

func TestRouterSetsBaselineHeaders(t *testing.T) {
	h := newTestHandler(&mockService{}, &mockGateway{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	h.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rr.Code)
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing nosniff header")
	}
	if rr.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("missing cache-control header")
	}
	if rr.Header().Get(CorrelationIDHeader) == "" {
		t.Fatalf("missing correlation id header")
	}
}

func TestCorrelationIDEchoed(t *testing.T) {
	h := newTestHandler(&mockService{}, &mockGateway{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(CorrelationIDHeader, "cid-123")
	rr := httptest.NewRecorder()
	h.Router().ServeHTTP(rr, req)
	if got := rr.Header().Get(CorrelationIDHeader); got != "cid-123" {
		t.Fatalf("correlation id = %q", got)
	}
}

func TestReadyProbe(t *testing.T) {
	h := newTestHandler(&mockService{}, &mockGateway{})
	h.Readiness = func(context.Context) error { return nil }
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()
	h.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz = %d", rr.Code)
	}
	h.Readiness = func(context.Context) error { return errors.New("db down") }
	rr = httptest.NewRecorder()
	h.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with failing probe = %d", rr.Code)
	}
}
