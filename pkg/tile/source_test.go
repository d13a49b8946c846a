package tile

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))); err != nil {
		t.Fatalf("Failed to encode test PNG: %v", err)
	}
	return buf.Bytes()
}

func TestSourceFetch(t *testing.T) {
	payload := pngBytes(t, 8, 8)

	var gotPath, gotAgent string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAgent = r.Header.Get("User-Agent")
		w.Write(payload)
	}))
	defer ts.Close()

	src := NewSource(ts.URL+"/{z}/{x}/{y}.png", "mosaic-test/1.0", 5*time.Second, 0)

	data, err := src.Fetch(context.Background(), Address{X: 17338, Y: 11107, Z: 15})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if gotPath != "/15/17338/11107.png" {
		t.Errorf("Expected path /15/17338/11107.png, got %s", gotPath)
	}
	if gotAgent != "mosaic-test/1.0" {
		t.Errorf("Expected User-Agent mosaic-test/1.0, got %s", gotAgent)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("Fetched %d bytes, want %d", len(data), len(payload))
	}
}

func TestSourceFetchStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer ts.Close()

	src := NewSource(ts.URL+"/{z}/{x}/{y}.png", "mosaic-test/1.0", 5*time.Second, 0)

	_, err := src.Fetch(context.Background(), Address{X: 1, Y: 2, Z: 3})
	if err == nil {
		t.Fatal("Expected error for 404 response")
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected StatusError, got %T: %v", err, err)
	}
	if statusErr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", statusErr.Code)
	}
	if statusErr.URL == "" {
		t.Error("Expected URL in StatusError")
	}
}

func TestSourceFetchCancelledContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(pngBytes(t, 8, 8))
	}))
	defer ts.Close()

	src := NewSource(ts.URL+"/{z}/{x}/{y}.png", "mosaic-test/1.0", 5*time.Second, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := src.Fetch(ctx, Address{X: 1, Y: 2, Z: 3}); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestSourceGetTile(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(pngBytes(t, 256, 256))
	}))
	defer ts.Close()

	src := NewSource(ts.URL+"/{z}/{x}/{y}.png", "mosaic-test/1.0", 5*time.Second, 0)

	img, err := src.GetTile(context.Background(), Address{X: 1, Y: 2, Z: 3})
	if err != nil {
		t.Fatalf("GetTile failed: %v", err)
	}

	b := img.Bounds()
	if b.Dx() != 256 || b.Dy() != 256 {
		t.Errorf("Expected 256x256 tile, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestSourceURL(t *testing.T) {
	src := NewSource("https://example.com/{z}/{x}/{y}.webp", "agent", time.Second, 0)

	want := "https://example.com/15/17338/11107.webp"
	if got := src.URL(Address{X: 17338, Y: 11107, Z: 15}); got != want {
		t.Errorf("URL = %q, want %q", got, want)
	}
}

func TestDecodeImage(t *testing.T) {
	var jpegBuf bytes.Buffer
	if err := jpeg.Encode(&jpegBuf, image.NewRGBA(image.Rect(0, 0, 4, 4)), nil); err != nil {
		t.Fatalf("Failed to encode test JPEG: %v", err)
	}

	testCases := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{name: "png", data: pngBytes(t, 4, 4), wantErr: false},
		{name: "jpeg", data: jpegBuf.Bytes(), wantErr: false},
		{name: "garbage", data: []byte("not an image at all"), wantErr: true},
		{name: "empty", data: nil, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			img, err := DecodeImage(tc.data)
			if tc.wantErr {
				if err == nil {
					t.Error("Expected decode error")
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeImage failed: %v", err)
			}
			if img == nil {
				t.Error("Expected decoded image")
			}
		})
	}
}
