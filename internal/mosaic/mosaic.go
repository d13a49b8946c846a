// Package mosaic turns a projected region of interest into a stitched
// map image: it resolves the region to geographic coordinates, computes
// the covering tile rectangle, fetches the tiles in parallel and
// composes them onto one canvas.
package mosaic

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/geopix/mosaic/internal/geotiff"
	"github.com/geopix/mosaic/pkg/tile"
	"github.com/geopix/mosaic/pkg/utm"
)

// Defaults for options the caller leaves unset. DefaultZoom is applied
// by the CLI and the HTTP API rather than by Run, since zoom 0 is a
// valid level addressing the single world tile.
const (
	DefaultZoom    = 15
	DefaultWorkers = 10

	// DefaultZone is assumed for GeoTIFFs that carry no usable
	// coordinate system.
	DefaultZone = 32

	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "mosaic/1.0.0"
)

const maxZoom = 23

// Options configures one fetch-and-stitch run. At most one of Dataset,
// GeoTIFF and Region selects the area of interest; when none is set the
// set1 dataset is used.
type Options struct {
	// Dataset names a built-in region from Datasets.
	Dataset string

	// GeoTIFF is the path of a file whose extent and UTM zone define
	// the region.
	GeoTIFF string

	// Region gives the area of interest directly.
	Region *Region

	// Zone overrides the dataset's UTM zone. Ignored in GeoTIFF and
	// Region modes.
	Zone int

	Zoom   int
	Source ImagerySource

	// TileURL overrides the imagery source's URL template.
	TileURL string

	Workers   int
	RateLimit float64
	Timeout   time.Duration
	UserAgent string

	// MaxWidth and MaxHeight cap the output dimensions; the mosaic is
	// scaled down proportionally when it exceeds either. Zero leaves
	// the mosaic at full size.
	MaxWidth  int
	MaxHeight int

	// Progress, when non-nil, is called after every tile attempt.
	Progress func(done, total int)
}

// Result is the outcome of one run.
type Result struct {
	// Image is the stitched mosaic. It is nil when not a single tile
	// could be fetched.
	Image image.Image

	Rect         tile.Rectangle
	TilesTotal   int
	TilesFetched int
	Failed       []FailedTile

	// DefaultOutput is the suggested output filename, derived from the
	// region's origin and UTM zone.
	DefaultOutput string
}

// Run resolves the area of interest, fetches the covering tiles and
// stitches them into a single image. Individual tile failures are
// collected in the result; only invalid input, an unreadable GeoTIFF,
// coordinates outside the projection domain or a cancelled context are
// returned as errors.
func Run(ctx context.Context, opts *Options) (*Result, error) {
	region, suffix, err := resolveRegion(opts)
	if err != nil {
		return nil, err
	}

	zoom := opts.Zoom
	if zoom < 0 || zoom > maxZoom {
		return nil, fmt.Errorf("zoom level %d out of range 0..%d", zoom, maxZoom)
	}

	source := opts.Source
	if source == "" {
		source = SuperRes
	}
	template := opts.TileURL
	if template == "" {
		template = source.URLTemplate()
		if template == "" {
			return nil, fmt.Errorf("unknown image type %q", string(source))
		}
	}

	ulLat, ulLon, err := utm.ToLatLon(region.Zone, region.UpperLeft.Easting, region.UpperLeft.Northing, region.South)
	if err != nil {
		return nil, err
	}
	lrLat, lrLon, err := utm.ToLatLon(region.Zone, region.LowerRight.Easting, region.LowerRight.Northing, region.South)
	if err != nil {
		return nil, err
	}

	rect := tile.Covering(ulLat, ulLon, lrLat, lrLon, zoom)

	slog.Info("resolved region",
		"zone", region.Zone,
		"upper_left_easting", region.UpperLeft.Easting,
		"upper_left_northing", region.UpperLeft.Northing,
		"lower_right_easting", region.LowerRight.Easting,
		"lower_right_northing", region.LowerRight.Northing,
		"tiles", rect.String(),
		"count", rect.Count())

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	src := tile.NewSource(template, userAgent, timeout, opts.RateLimit)

	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	set, failed := fetchAll(ctx, src, rect, workers, opts.Progress)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{
		Rect:          rect,
		TilesTotal:    rect.Count(),
		TilesFetched:  len(set),
		Failed:        failed,
		DefaultOutput: fmt.Sprintf("stitched_image_%s.png", suffix),
	}

	if len(set) == 0 {
		slog.Warn("no tiles were downloaded", "attempted", rect.Count())
		return res, nil
	}
	if len(failed) > 0 {
		slog.Warn("some tiles could not be fetched", "failed", len(failed), "fetched", len(set))
	}

	img, err := stitch(set, rect)
	if err != nil {
		return nil, err
	}

	res.Image = img
	if opts.MaxWidth > 0 || opts.MaxHeight > 0 {
		res.Image = capSize(img, opts.MaxWidth, opts.MaxHeight)
	}

	return res, nil
}

// resolveRegion picks the area of interest from the options and returns
// it together with the filename suffix identifying the run.
func resolveRegion(opts *Options) (Region, string, error) {
	switch {
	case opts.GeoTIFF != "":
		info, err := geotiff.ReadFile(opts.GeoTIFF)
		if err != nil {
			return Region{}, "", err
		}

		zone, south, ok := info.UTMZone()
		if !ok {
			zone, south = DefaultZone, false
			slog.Warn("could not determine UTM zone from GeoTIFF, using default", "zone", zone)
		}

		ulE, ulN, lrE, lrN := info.Corners()
		region := Region{
			Zone:       zone,
			South:      south,
			UpperLeft:  Corner{Easting: ulE, Northing: ulN},
			LowerRight: Corner{Easting: lrE, Northing: lrN},
		}

		base := strings.TrimSuffix(filepath.Base(opts.GeoTIFF), filepath.Ext(opts.GeoTIFF))
		return region, fmt.Sprintf("%s_z%d", base, zone), nil

	case opts.Region != nil:
		region := *opts.Region
		if err := region.validate(); err != nil {
			return Region{}, "", err
		}
		return region, fmt.Sprintf("region_z%d", region.Zone), nil

	default:
		name := opts.Dataset
		if name == "" {
			name = "set1"
		}
		ds, ok := Datasets[name]
		if !ok {
			return Region{}, "", fmt.Errorf("unknown dataset %q", name)
		}

		region := ds.Region
		if opts.Zone != 0 {
			region.Zone = opts.Zone
		}
		if err := region.validate(); err != nil {
			return Region{}, "", err
		}
		return region, fmt.Sprintf("%s_z%d", name, region.Zone), nil
	}
}

func (r Region) validate() error {
	if r.Zone < 1 || r.Zone > 60 {
		return fmt.Errorf("utm zone %d out of range 1..60", r.Zone)
	}
	return nil
}

// WorldFileParams returns the georeferencing parameters of the mosaic
// in Web Mercator: the pixel sizes and the projected coordinates of the
// top-left corner.
func (r *Result) WorldFileParams() (px, py, minX, maxY float64) {
	nwLat, nwLon := tile.Address{X: r.Rect.MinX, Y: r.Rect.MinY, Z: r.Rect.Zoom}.LatLon()
	seLat, seLon := tile.Address{X: r.Rect.MaxX + 1, Y: r.Rect.MaxY + 1, Z: r.Rect.Zoom}.LatLon()

	minX, maxY = tile.ProjectLatLon(nwLat, nwLon)
	maxX, minY := tile.ProjectLatLon(seLat, seLon)

	b := r.Image.Bounds()
	px = (maxX - minX) / float64(b.Dx())
	py = (maxY - minY) / float64(b.Dy())

	return px, py, minX, maxY
}

// capSize scales img down to fit within maxW x maxH while preserving
// the aspect ratio. Images already within bounds are returned as is.
func capSize(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	if maxW <= 0 {
		maxW = b.Dx()
	}
	if maxH <= 0 {
		maxH = b.Dy()
	}
	if b.Dx() <= maxW && b.Dy() <= maxH {
		return img
	}
	return imaging.Fit(img, maxW, maxH, imaging.Lanczos)
}
