package tile

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"
)

// WritePNG writes the image to filename as PNG.
func WritePNG(filename string, img image.Image) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return png.Encode(file, img)
}

// WriteWorldFile writes a world file next to the raster output,
// replacing the raster's extension with .pnw. px and py are the pixel
// sizes and minx/maxy the top-left corner, all in EPSG:3857 units.
// Returns the path of the written file.
func WriteWorldFile(filename string, px, py, minx, maxy float64) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("world file requires an output filename")
	}

	worldFilename := filename
	if idx := strings.LastIndex(worldFilename, "."); idx != -1 {
		worldFilename = worldFilename[:idx] + ".pnw"
	} else {
		worldFilename += ".pnw"
	}

	file, err := os.Create(worldFilename)
	if err != nil {
		return "", err
	}
	defer file.Close()

	// World file format: pixel size x, rotation, rotation, pixel size y (negative), top left x, top left y
	fmt.Fprintf(file, "%24.10f\n", px)
	fmt.Fprintf(file, "%24.10f\n", 0.0)
	fmt.Fprintf(file, "%24.10f\n", 0.0)
	fmt.Fprintf(file, "%24.10f\n", -py)
	fmt.Fprintf(file, "%24.10f\n", minx)
	fmt.Fprintf(file, "%24.10f\n", maxy)

	return worldFilename, nil
}
