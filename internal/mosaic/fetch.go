package mosaic

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"

	"github.com/geopix/mosaic/pkg/tile"
)

// TileGetter fetches and decodes a single tile.
type TileGetter interface {
	GetTile(ctx context.Context, a tile.Address) (image.Image, error)
	URL(a tile.Address) string
}

// FailedTile records one tile that could not be fetched. StatusCode is
// set when the failure was an HTTP error response.
type FailedTile struct {
	Address    tile.Address
	URL        string
	StatusCode *int
	Err        error
}

// fetchAll downloads every address in rect through a fixed pool of
// workers. Each address is attempted exactly once; failures are
// recorded and never abort the run, so the returned set may be sparse
// or even empty.
func fetchAll(ctx context.Context, src TileGetter, rect tile.Rectangle, workers int, progress func(done, total int)) (tile.Set, []FailedTile) {
	total := rect.Count()
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if workers > total {
		workers = total
	}

	set := make(tile.Set, total)
	var failed []FailedTile

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		done int
	)

	tasks := make(chan tile.Address)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for addr := range tasks {
				img, err := src.GetTile(ctx, addr)
				if err != nil {
					slog.Debug("tile fetch failed", "tile", addr.String(), "error", err)
				}

				// Progress runs under the lock so reported counts
				// stay monotonic.
				mu.Lock()
				done++
				if err != nil {
					f := FailedTile{Address: addr, URL: src.URL(addr), Err: err}
					var se *tile.StatusError
					if errors.As(err, &se) {
						code := se.Code
						f.StatusCode = &code
					}
					failed = append(failed, f)
				} else {
					set[addr] = img
				}
				if progress != nil {
					progress(done, total)
				}
				mu.Unlock()
			}
		}()
	}

	for _, addr := range rect.Addresses() {
		tasks <- addr
	}
	close(tasks)
	wg.Wait()

	return set, failed
}
