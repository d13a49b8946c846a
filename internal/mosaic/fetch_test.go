package mosaic

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/geopix/mosaic/pkg/tile"
)

// fakeGetter is a TileGetter double that records call counts and the
// peak number of concurrent GetTile calls.
type fakeGetter struct {
	mu      sync.Mutex
	current int
	peak    int
	calls   map[tile.Address]int

	delay time.Duration
	fail  func(a tile.Address) error
	img   image.Image
}

func newFakeGetter() *fakeGetter {
	return &fakeGetter{
		calls: make(map[tile.Address]int),
		img:   image.NewRGBA(image.Rect(0, 0, 256, 256)),
	}
}

func (g *fakeGetter) GetTile(ctx context.Context, a tile.Address) (image.Image, error) {
	g.mu.Lock()
	g.current++
	if g.current > g.peak {
		g.peak = g.current
	}
	g.calls[a]++
	g.mu.Unlock()

	if g.delay > 0 {
		time.Sleep(g.delay)
	}

	g.mu.Lock()
	g.current--
	g.mu.Unlock()

	if g.fail != nil {
		if err := g.fail(a); err != nil {
			return nil, err
		}
	}
	return g.img, nil
}

func (g *fakeGetter) URL(a tile.Address) string {
	return "test://" + a.String()
}

func TestFetchAllFetchesEveryTileOnce(t *testing.T) {
	g := newFakeGetter()
	rect := tile.Rectangle{MinX: 0, MaxX: 9, MinY: 0, MaxY: 9, Zoom: 5}

	set, failed := fetchAll(context.Background(), g, rect, 10, nil)

	if len(set) != 100 {
		t.Errorf("Expected 100 tiles, got %d", len(set))
	}
	if len(failed) != 0 {
		t.Errorf("Expected no failures, got %d", len(failed))
	}

	for _, addr := range rect.Addresses() {
		if g.calls[addr] != 1 {
			t.Errorf("Tile %v fetched %d times, want exactly once", addr, g.calls[addr])
		}
		if _, ok := set[addr]; !ok {
			t.Errorf("Tile %v missing from set", addr)
		}
	}
}

func TestFetchAllConcurrencyBound(t *testing.T) {
	testCases := []struct {
		name    string
		workers int
	}{
		{name: "ten workers", workers: 10},
		{name: "three workers", workers: 3},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			g := newFakeGetter()
			g.delay = 5 * time.Millisecond
			rect := tile.Rectangle{MinX: 0, MaxX: 9, MinY: 0, MaxY: 9, Zoom: 5}

			set, _ := fetchAll(context.Background(), g, rect, tc.workers, nil)

			if len(set) != 100 {
				t.Errorf("Expected 100 tiles, got %d", len(set))
			}
			if g.peak > tc.workers {
				t.Errorf("Observed %d concurrent fetches, limit is %d", g.peak, tc.workers)
			}
		})
	}
}

func TestFetchAllCollectsFailures(t *testing.T) {
	g := newFakeGetter()
	g.fail = func(a tile.Address) error {
		if a.X%2 == 0 {
			return &tile.StatusError{URL: g.URL(a), Code: 404}
		}
		return nil
	}
	rect := tile.Rectangle{MinX: 0, MaxX: 9, MinY: 0, MaxY: 9, Zoom: 5}

	set, failed := fetchAll(context.Background(), g, rect, 10, nil)

	if len(set) != 50 {
		t.Errorf("Expected 50 fetched tiles, got %d", len(set))
	}
	if len(failed) != 50 {
		t.Errorf("Expected 50 failures, got %d", len(failed))
	}

	for _, f := range failed {
		if f.Address.X%2 != 0 {
			t.Errorf("Tile %v should not have failed", f.Address)
		}
		if f.StatusCode == nil || *f.StatusCode != 404 {
			t.Errorf("Expected status code 404 for %v, got %v", f.Address, f.StatusCode)
		}
		if f.URL == "" {
			t.Errorf("Expected URL for failed tile %v", f.Address)
		}
		if _, ok := set[f.Address]; ok {
			t.Errorf("Failed tile %v must not be in the set", f.Address)
		}
	}
}

func TestFetchAllTotalFailureIsNotFatal(t *testing.T) {
	g := newFakeGetter()
	g.fail = func(a tile.Address) error {
		return &tile.StatusError{URL: g.URL(a), Code: 500}
	}
	rect := tile.Rectangle{MinX: 0, MaxX: 4, MinY: 0, MaxY: 4, Zoom: 5}

	set, failed := fetchAll(context.Background(), g, rect, 10, nil)

	if len(set) != 0 {
		t.Errorf("Expected empty set, got %d tiles", len(set))
	}
	if len(failed) != rect.Count() {
		t.Errorf("Expected %d failures, got %d", rect.Count(), len(failed))
	}
}

func TestFetchAllProgress(t *testing.T) {
	g := newFakeGetter()
	rect := tile.Rectangle{MinX: 0, MaxX: 9, MinY: 0, MaxY: 9, Zoom: 5}

	var dones []int
	progress := func(done, total int) {
		if total != 100 {
			t.Errorf("Expected total 100, got %d", total)
		}
		dones = append(dones, done)
	}

	fetchAll(context.Background(), g, rect, 10, progress)

	if len(dones) != 100 {
		t.Fatalf("Expected 100 progress calls, got %d", len(dones))
	}
	for i := 1; i < len(dones); i++ {
		if dones[i] < dones[i-1] {
			t.Fatalf("Progress went backwards: %d after %d", dones[i], dones[i-1])
		}
	}
	if dones[len(dones)-1] != 100 {
		t.Errorf("Expected final progress 100, got %d", dones[len(dones)-1])
	}
}

func TestFetchAllZeroWorkersUsesDefault(t *testing.T) {
	g := newFakeGetter()
	rect := tile.Rectangle{MinX: 0, MaxX: 4, MinY: 0, MaxY: 4, Zoom: 5}

	set, failed := fetchAll(context.Background(), g, rect, 0, nil)

	if len(set) != rect.Count() || len(failed) != 0 {
		t.Errorf("Expected %d tiles and no failures, got %d and %d", rect.Count(), len(set), len(failed))
	}
}
