package tile

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"time"

	"golang.org/x/image/webp"
	"golang.org/x/time/rate"
)

// Source fetches tiles from a slippy-map tile server. Each tile costs
// exactly one HTTP GET; there is no retry, caching or authentication.
type Source struct {
	client    *http.Client
	template  string
	userAgent string
	limiter   *rate.Limiter
}

// NewSource creates a tile source for the given URL template. The
// template must contain {z}, {x} and {y} placeholders. A rps of 0
// disables client-side rate limiting.
func NewSource(template, userAgent string, timeout time.Duration, rps float64) *Source {
	s := &Source{
		client:    &http.Client{Timeout: timeout},
		template:  template,
		userAgent: userAgent,
	}
	if rps > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return s
}

// URL returns the request URL for the given tile.
func (s *Source) URL(a Address) string {
	return BuildURL(s.template, a)
}

// Fetch downloads the raw bytes of a single tile. Any status other
// than 200 is a failure and returned as a *StatusError.
func (s *Source) Fetch(ctx context.Context, a Address) ([]byte, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	url := s.URL(a)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}

	return io.ReadAll(resp.Body)
}

// GetTile downloads and decodes a single tile.
func (s *Source) GetTile(ctx context.Context, a Address) (image.Image, error) {
	data, err := s.Fetch(ctx, a)
	if err != nil {
		return nil, err
	}

	img, err := DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.URL(a), err)
	}
	return img, nil
}

// StatusError reports a non-200 response from the tile server.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d fetching %s", e.Code, e.URL)
}

// DecodeImage detects the image format by its magic bytes and decodes.
// PNG, JPEG and WebP payloads are supported.
func DecodeImage(data []byte) (image.Image, error) {
	switch {
	case len(data) >= 4 && bytes.Equal(data[:4], []byte{0x89, 0x50, 0x4E, 0x47}):
		return png.Decode(bytes.NewReader(data))
	case len(data) >= 2 && bytes.Equal(data[:2], []byte{0xFF, 0xD8}):
		return jpeg.Decode(bytes.NewReader(data))
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return webp.Decode(bytes.NewReader(data))
	}

	return nil, fmt.Errorf("unrecognized image format")
}
