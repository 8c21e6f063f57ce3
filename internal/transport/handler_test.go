package transport

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/indpriyanshuraj/talvaar-image-optimizer/internal/config"
)

type stubFetcher struct {
	data []byte
	err  error
}

func (s stubFetcher) FetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	return s.data, s.err
}

func encodedPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 200, G: 30, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func newTestHandler(t *testing.T, fetcher stubFetcher) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return NewHandler(fetcher, config.Default())
}

func TestHealthCheck(t *testing.T) {
	h := newTestHandler(t, stubFetcher{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "available") {
		t.Errorf("body = %q, want status available", w.Body.String())
	}
}

func TestOptimize_InvalidBody(t *testing.T) {
	h := newTestHandler(t, stubFetcher{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/optimize", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestOptimize_InvalidMode(t *testing.T) {
	h := newTestHandler(t, stubFetcher{data: encodedPNG(t)})

	body := `{"url": "http://example.com/a.png", "mode": "grayscale"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/optimize", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestOptimize_FetchFailure(t *testing.T) {
	h := newTestHandler(t, stubFetcher{err: errors.New("connection refused")})

	body := `{"url": "http://example.com/a.png"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/optimize", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}

func TestOptimize_Success(t *testing.T) {
	h := newTestHandler(t, stubFetcher{data: encodedPNG(t)})

	body := `{"url": "http://example.com/a.png"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/optimize", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Chosen-Mode") == "" {
		t.Error("X-Chosen-Mode header missing")
	}
	if w.Header().Get("X-Original-Size") == "" || w.Header().Get("X-Optimized-Size") == "" {
		t.Error("size headers missing")
	}
	if _, err := png.Decode(bytes.NewReader(w.Body.Bytes())); err != nil {
		t.Errorf("response body is not a decodable PNG: %v", err)
	}
}

func TestOptimize_PaletteIgnoreTransparencyForcesRGB(t *testing.T) {
	h := newTestHandler(t, stubFetcher{data: encodedPNG(t)})

	body := `{"url": "http://example.com/a.png", "mode": "palette", "ignore_transparency": true}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/optimize", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("X-Chosen-Mode"); got != "RGB" {
		t.Errorf("X-Chosen-Mode = %q, want RGB when transparency is ignored", got)
	}
}

func TestOptimize_DecodeFailure(t *testing.T) {
	h := newTestHandler(t, stubFetcher{data: []byte("not an image")})

	body := `{"url": "http://example.com/a.png"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/optimize", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}
