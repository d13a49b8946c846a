package mosaic

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/geopix/mosaic/pkg/tile"
)

// stitch composes the fetched tiles onto a single canvas sized for the
// full rectangle. Every tile keeps its grid position relative to the
// rectangle's origin; addresses missing from the set stay transparent.
// An empty set yields a nil image and no error.
func stitch(set tile.Set, rect tile.Rectangle) (*image.RGBA, error) {
	if len(set) == 0 {
		return nil, nil
	}

	// All tiles must share the dimensions of an arbitrary reference
	// tile, otherwise grid placement would be ambiguous.
	var tileW, tileH int
	for _, img := range set {
		b := img.Bounds()
		tileW, tileH = b.Dx(), b.Dy()
		break
	}

	canvas := image.NewRGBA(image.Rect(0, 0, rect.Width()*tileW, rect.Height()*tileH))

	for addr, img := range set {
		b := img.Bounds()
		if b.Dx() != tileW || b.Dy() != tileH {
			return nil, fmt.Errorf("tile %s is %dx%d, expected %dx%d", addr, b.Dx(), b.Dy(), tileW, tileH)
		}

		origin := image.Pt((addr.X-rect.MinX)*tileW, (addr.Y-rect.MinY)*tileH)
		target := image.Rectangle{Min: origin, Max: origin.Add(image.Pt(tileW, tileH))}
		draw.Draw(canvas, target, img, b.Min, draw.Src)
	}

	return canvas, nil
}
