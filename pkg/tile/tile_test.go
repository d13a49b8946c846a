package tile

import (
	"math"
	"testing"
)

func TestFromLatLonKnownValues(t *testing.T) {
	testCases := []struct {
		name string
		lat  float64
		lon  float64
		zoom int
		x    int
		y    int
	}{
		{
			// Reference value from the OpenStreetMap slippy map docs
			name: "Berlin at zoom 17",
			lat:  52.51628,
			lon:  13.37771,
			zoom: 17,
			x:    70406,
			y:    42987,
		},
		{
			name: "origin at zoom 1",
			lat:  0,
			lon:  0,
			zoom: 1,
			x:    1,
			y:    1,
		},
		{
			name: "origin at zoom 0",
			lat:  0,
			lon:  0,
			zoom: 0,
			x:    0,
			y:    0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := FromLatLon(tc.lat, tc.lon, tc.zoom)
			if got.X != tc.x || got.Y != tc.y {
				t.Errorf("FromLatLon(%v, %v, %d) = (%d, %d), want (%d, %d)",
					tc.lat, tc.lon, tc.zoom, got.X, got.Y, tc.x, tc.y)
			}
			if got.Z != tc.zoom {
				t.Errorf("Expected zoom %d, got %d", tc.zoom, got.Z)
			}
		})
	}
}

func TestFromLatLonZoomZeroIsSingleTile(t *testing.T) {
	points := []struct {
		lat, lon float64
	}{
		{0, 0},
		{52.51628, 13.37771},
		{-33.9, 18.4},
		{80, -170},
	}

	for _, p := range points {
		got := FromLatLon(p.lat, p.lon, 0)
		if got.X != 0 || got.Y != 0 {
			t.Errorf("FromLatLon(%v, %v, 0) = (%d, %d), want (0, 0)", p.lat, p.lon, got.X, got.Y)
		}
	}
}

func TestFromLatLonDeterministic(t *testing.T) {
	a := FromLatLon(50.0621, 10.4632, 15)
	b := FromLatLon(50.0621, 10.4632, 15)
	if a != b {
		t.Errorf("Same input produced different addresses: %v vs %v", a, b)
	}
}

func TestLatLonRoundTrip(t *testing.T) {
	// The midpoint of a tile's corners must map back to the same tile.
	addrs := []Address{
		{X: 70406, Y: 42987, Z: 17},
		{X: 17338, Y: 11107, Z: 15},
		{X: 1, Y: 1, Z: 1},
		{X: 0, Y: 0, Z: 0},
	}

	for _, addr := range addrs {
		nwLat, nwLon := addr.LatLon()
		seLat, seLon := Address{X: addr.X + 1, Y: addr.Y + 1, Z: addr.Z}.LatLon()

		midLat := (nwLat + seLat) / 2
		midLon := (nwLon + seLon) / 2

		got := FromLatLon(midLat, midLon, addr.Z)
		if got != addr {
			t.Errorf("Midpoint of %v mapped to %v", addr, got)
		}
	}
}

func TestLatLonCorners(t *testing.T) {
	// Tile (0, 0) at zoom 0 has the northwest corner of the Mercator
	// world.
	lat, lon := Address{X: 0, Y: 0, Z: 0}.LatLon()
	if lon != -180 {
		t.Errorf("Expected lon -180, got %v", lon)
	}
	if math.Abs(lat-85.0511287798) > 1e-6 {
		t.Errorf("Expected lat ~85.0511, got %v", lat)
	}
}

func TestCoveringNormalizesCorners(t *testing.T) {
	// Both corner orders must produce the identical rectangle.
	a := Covering(50.062, 10.463, 50.024, 10.522, 15)
	b := Covering(50.024, 10.522, 50.062, 10.463, 15)

	if a != b {
		t.Errorf("Corner order changed the rectangle: %v vs %v", a, b)
	}

	if a.MinX > a.MaxX || a.MinY > a.MaxY {
		t.Errorf("Rectangle is not normalized: %v", a)
	}
	if a.Zoom != 15 {
		t.Errorf("Expected zoom 15, got %d", a.Zoom)
	}
}

func TestCoveringContainsBothCorners(t *testing.T) {
	rect := Covering(50.062, 10.463, 50.024, 10.522, 15)

	for _, p := range []struct{ lat, lon float64 }{
		{50.062, 10.463},
		{50.024, 10.522},
	} {
		addr := FromLatLon(p.lat, p.lon, 15)
		if !rect.Contains(addr) {
			t.Errorf("Rectangle %v does not contain corner tile %v", rect, addr)
		}
	}
}

func TestRectangleDimensions(t *testing.T) {
	rect := Rectangle{MinX: 5, MaxX: 6, MinY: 10, MaxY: 10, Zoom: 15}

	if rect.Width() != 2 {
		t.Errorf("Expected width 2, got %d", rect.Width())
	}
	if rect.Height() != 1 {
		t.Errorf("Expected height 1, got %d", rect.Height())
	}
	if rect.Count() != 2 {
		t.Errorf("Expected count 2, got %d", rect.Count())
	}
}

func TestRectangleAddressesRowMajor(t *testing.T) {
	rect := Rectangle{MinX: 2, MaxX: 3, MinY: 7, MaxY: 9, Zoom: 4}

	addrs := rect.Addresses()
	if len(addrs) != rect.Count() {
		t.Fatalf("Expected %d addresses, got %d", rect.Count(), len(addrs))
	}

	want := []Address{
		{2, 7, 4}, {3, 7, 4},
		{2, 8, 4}, {3, 8, 4},
		{2, 9, 4}, {3, 9, 4},
	}
	for i, addr := range addrs {
		if addr != want[i] {
			t.Errorf("Address %d: expected %v, got %v", i, want[i], addr)
		}
	}
}

func TestRectangleContains(t *testing.T) {
	rect := Rectangle{MinX: 2, MaxX: 3, MinY: 7, MaxY: 9, Zoom: 4}

	testCases := []struct {
		addr Address
		want bool
	}{
		{Address{2, 7, 4}, true},
		{Address{3, 9, 4}, true},
		{Address{1, 7, 4}, false},
		{Address{2, 10, 4}, false},
		{Address{2, 7, 5}, false},
	}

	for _, tc := range testCases {
		if got := rect.Contains(tc.addr); got != tc.want {
			t.Errorf("Contains(%v) = %v, want %v", tc.addr, got, tc.want)
		}
	}
}

func TestBuildURL(t *testing.T) {
	testCases := []struct {
		name     string
		template string
		addr     Address
		want     string
	}{
		{
			name:     "basic template",
			template: "https://example.com/tiles/{z}/{x}/{y}.webp",
			addr:     Address{X: 17338, Y: 11107, Z: 15},
			want:     "https://example.com/tiles/15/17338/11107.webp",
		},
		{
			name:     "subdomain placeholder",
			template: "https://{s}.example.com/{z}/{x}/{y}.png",
			addr:     Address{X: 1, Y: 2, Z: 3},
			want:     "https://a.example.com/3/1/2.png",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := BuildURL(tc.template, tc.addr); got != tc.want {
				t.Errorf("BuildURL = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestProjectLatLon(t *testing.T) {
	const originShift = 20037508.342789244

	x, y := ProjectLatLon(0, 0)
	if x != 0 || y != 0 {
		t.Errorf("ProjectLatLon(0, 0) = (%v, %v), want (0, 0)", x, y)
	}

	x, _ = ProjectLatLon(0, 180)
	if math.Abs(x-originShift) > 1 {
		t.Errorf("Expected x ~%v for lon 180, got %v", originShift, x)
	}

	// The Mercator world is square: the projection of the latitude
	// limit equals the projection of lon 180.
	_, y = ProjectLatLon(85.0511287798, 0)
	if math.Abs(y-originShift) > 1 {
		t.Errorf("Expected y ~%v for the latitude limit, got %v", originShift, y)
	}
}

func TestAddressString(t *testing.T) {
	addr := Address{X: 17338, Y: 11107, Z: 15}
	if got := addr.String(); got != "15/17338/11107" {
		t.Errorf("Expected %q, got %q", "15/17338/11107", got)
	}
}
