package httpx

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/pixelock/pixelock/internal/app"
)

// multipartBody builds a single-file multipart request body.
func multipartBody(t *testing.T, field, filename, contentType, data string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write([]byte(data)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func doUpload(t *testing.T, h *Handler, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	h.Router().ServeHTTP(rr, req)
	return rr
}

func TestUploadSuccess(t *testing.T) {
	svc := &mockService{uploadKey: "1700000000000_0a1b2c.jpg"}
	h := newTestHandler(svc, &mockGateway{})
	body, ct := multipartBody(t, uploadFieldName, "cat.jpg", "image/jpeg", "not really a jpeg")
	rr := doUpload(t, h, body, ct)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d body %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Path string `json:"path"`
	}
	decodeBody(t, rr, &resp)
	if resp.Path != svc.uploadKey {
		t.Fatalf("path = %q", resp.Path)
	}
	if svc.gotFilename != "cat.jpg" {
		t.Fatalf("service got filename %q", svc.gotFilename)
	}
	if svc.gotSize != int64(len("not really a jpeg")) {
		t.Fatalf("service got size %d", svc.gotSize)
	}
}

func TestUploadMissingFileField(t *testing.T) {
	h := newTestHandler(&mockService{}, &mockGateway{})
	body, ct := multipartBody(t, "wrong_field", "cat.jpg", "image/jpeg", "data")
	rr := doUpload(t, h, body, ct)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if errBody(t, rr) != "no file" {
		t.Fatalf("unexpected error body: %s", rr.Body.String())
	}
}

func TestUploadNotMultipart(t *testing.T) {
	h := newTestHandler(&mockService{}, &mockGateway{})
	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("plain body"))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestUploadErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"too_large", app.ErrSizeExceeded, http.StatusRequestEntityTooLarge, "size exceeded"},
		{"not_an_image", app.ErrUnsupportedMedia, http.StatusUnsupportedMediaType, "unsupported media type"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockService{uploadErr: tc.err}
			h := newTestHandler(svc, &mockGateway{})
			body, ct := multipartBody(t, uploadFieldName, "huge.png", "image/png", "data")
			rr := doUpload(t, h, body, ct)
			if rr.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", rr.Code, tc.wantCode)
			}
			if errBody(t, rr) != tc.wantBody {
				t.Fatalf("body = %s, want %q", rr.Body.String(), tc.wantBody)
			}
		})
	}
}

func TestUploadMethodNotAllowed(t *testing.T) {
	h := newTestHandler(&mockService{}, &mockGateway{})
	rr := httptest.NewRecorder()
	h.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/upload", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rr.Code)
	}
}
