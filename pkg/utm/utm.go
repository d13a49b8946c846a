// Package utm converts projected UTM coordinates to WGS84 geographic
// coordinates.
package utm

import (
	"fmt"
	"math"

	"github.com/wroge/wgs84"
)

// Point is a projected UTM coordinate.
type Point struct {
	Zone     int
	Easting  float64
	Northing float64
	South    bool
}

// spheroid carries the WGS84 ellipsoid parameters.
type spheroid struct {
	a, fi float64
}

func (s spheroid) A() float64 {
	return s.a
}
func (s spheroid) Fi() float64 {
	return s.fi
}

// CentralMeridian returns the central meridian of a UTM zone in
// degrees.
func CentralMeridian(zone int) float64 {
	return float64(zone)*6 - 183
}

// EPSG returns the EPSG code for a UTM zone's coordinate reference
// system (326xx north, 327xx south).
func EPSG(zone int, south bool) int {
	if south {
		return 32700 + zone
	}
	return 32600 + zone
}

// transformer builds the easting/northing to lon/lat transform for one
// UTM zone.
// +proj=tmerc +lat_0=0 +lon_0=<cm> +k=0.9996 +x_0=500000 +ellps=WGS84
func transformer(zone int, south bool) func(a, b, c float64) (a2, b2, c2 float64) {
	cm := CentralMeridian(zone)
	datum := wgs84.Datum{
		Spheroid: spheroid{
			a: 6378137, fi: 298.257223563,
		},
		Area: wgs84.AreaFunc(func(lon, lat float64) bool {
			if lon < -180 || lon > 180 || lat < -80 || lat > 84 {
				return false
			}
			// zone half-width is 3 degrees, plus overlap allowance
			return lon >= cm-4 && lon <= cm+4
		}),
	}

	falseNorthing := 0.0
	if south {
		falseNorthing = 10000000
	}
	proj := datum.TransverseMercator(cm, 0, 0.9996, 500000, falseNorthing)

	return wgs84.Transform(proj, wgs84.LonLat())
}

// DomainError reports a coordinate outside the validity area of its
// UTM zone.
type DomainError struct {
	Zone     int
	South    bool
	Easting  float64
	Northing float64
}

func (e *DomainError) Error() string {
	hemi := "N"
	if e.South {
		hemi = "S"
	}
	return fmt.Sprintf("utm: (%g, %g) is outside the domain of zone %d%s", e.Easting, e.Northing, e.Zone, hemi)
}

// ToLatLon converts a UTM easting/northing in the given zone to WGS84
// latitude/longitude. Coordinates outside the zone's validity area come
// back from the underlying transform as NaN and are reported as a
// DomainError.
func ToLatLon(zone int, easting, northing float64, south bool) (lat, lon float64, err error) {
	lon, lat, _ = transformer(zone, south)(easting, northing, 0)
	if math.IsNaN(lon) || math.IsNaN(lat) {
		return 0, 0, &DomainError{Zone: zone, South: south, Easting: easting, Northing: northing}
	}
	return lat, lon, nil
}

// ToLatLon converts the point to WGS84 latitude/longitude.
func (p Point) ToLatLon() (lat, lon float64, err error) {
	return ToLatLon(p.Zone, p.Easting, p.Northing, p.South)
}
