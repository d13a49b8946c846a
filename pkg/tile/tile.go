package tile

import (
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"
)

// Address identifies a single tile in the slippy-map pyramid. X and Y
// range over [0, 2^Z) for in-range geographic input; no validation is
// performed here, out-of-range addresses simply fail to resolve at the
// tile server.
type Address struct {
	X, Y, Z int
}

func (a Address) String() string {
	return fmt.Sprintf("%d/%d/%d", a.Z, a.X, a.Y)
}

// Rectangle is an inclusive range of tile addresses at one zoom level.
// MinX <= MaxX and MinY <= MaxY always hold for rectangles built by
// Covering.
type Rectangle struct {
	MinX, MaxX int
	MinY, MaxY int
	Zoom       int
}

// Width returns the number of tile columns.
func (r Rectangle) Width() int {
	return r.MaxX - r.MinX + 1
}

// Height returns the number of tile rows.
func (r Rectangle) Height() int {
	return r.MaxY - r.MinY + 1
}

// Count returns the total number of tiles in the rectangle.
func (r Rectangle) Count() int {
	return r.Width() * r.Height()
}

// Contains reports whether the address lies inside the rectangle.
func (r Rectangle) Contains(a Address) bool {
	return a.Z == r.Zoom &&
		a.X >= r.MinX && a.X <= r.MaxX &&
		a.Y >= r.MinY && a.Y <= r.MaxY
}

// Addresses enumerates every tile in the rectangle, row by row.
func (r Rectangle) Addresses() []Address {
	out := make([]Address, 0, r.Count())
	for y := r.MinY; y <= r.MaxY; y++ {
		for x := r.MinX; x <= r.MaxX; x++ {
			out = append(out, Address{X: x, Y: y, Z: r.Zoom})
		}
	}
	return out
}

func (r Rectangle) String() string {
	return fmt.Sprintf("x %d..%d, y %d..%d, z%d", r.MinX, r.MaxX, r.MinY, r.MaxY, r.Zoom)
}

// Set is a sparse mapping from tile address to its decoded image. Only
// successfully fetched tiles are present.
type Set map[Address]image.Image

// FromLatLon converts a geographic point to its tile address at the
// given zoom level.
// http://wiki.openstreetmap.org/wiki/Slippy_map_tilenames
func FromLatLon(lat, lon float64, zoom int) Address {
	latRad := lat * math.Pi / 180
	n := float64(uint64(1) << uint(zoom))

	x := int(math.Floor((lon + 180) / 360 * n))
	y := int(math.Floor((1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * n))

	return Address{X: x, Y: y, Z: zoom}
}

// LatLon returns the geographic coordinates of the tile's northwest
// corner.
func (a Address) LatLon() (lat, lon float64) {
	n := float64(uint64(1) << uint(a.Z))
	lon = 360.0*float64(a.X)/n - 180.0
	latRad := math.Atan(math.Sinh(math.Pi * (1 - 2.0*float64(a.Y)/n)))
	lat = latRad * 180 / math.Pi

	return lat, lon
}

// Covering returns the minimal rectangle containing the tiles of both
// corner points. The bounds are normalized with min/max because a
// projected "upper-left" corner does not always map to the numerically
// smaller tile index after reprojection.
func Covering(lat1, lon1, lat2, lon2 float64, zoom int) Rectangle {
	a := FromLatLon(lat1, lon1, zoom)
	b := FromLatLon(lat2, lon2, zoom)

	return Rectangle{
		MinX: min(a.X, b.X),
		MaxX: max(a.X, b.X),
		MinY: min(a.Y, b.Y),
		MaxY: max(a.Y, b.Y),
		Zoom: zoom,
	}
}

// ProjectLatLon converts lat/lon in WGS84 to XY in Spherical Mercator
// (EPSG:900913/3857).
func ProjectLatLon(lat, lon float64) (float64, float64) {
	const originshift = 20037508.342789244 // 2 * pi * 6378137 / 2
	x := lon * originshift / 180.0
	y := math.Log(math.Tan((90+lat)*math.Pi/360.0)) / (math.Pi / 180.0)
	y = y * originshift / 180.0

	return x, y
}

// BuildURL replaces URL template tokens
func BuildURL(template string, a Address) string {
	url := template
	url = strings.ReplaceAll(url, "{z}", strconv.Itoa(a.Z))
	url = strings.ReplaceAll(url, "{x}", strconv.Itoa(a.X))
	url = strings.ReplaceAll(url, "{y}", strconv.Itoa(a.Y))
	// Handle {s} for subdomains (simple implementation)
	if strings.Contains(url, "{s}") {
		subdomain := string(rune('a' + (a.X+a.Y)%3))
		url = strings.ReplaceAll(url, "{s}", subdomain)
	}
	return url
}
