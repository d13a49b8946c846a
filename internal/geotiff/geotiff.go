// Package geotiff reads the spatial metadata of a GeoTIFF file: raster
// size, pixel scale, tiepoint and the projected coordinate system. Pixel
// data is never touched.
package geotiff

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// TIFF tags and GeoKeys relevant for georeferencing.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagModelPixelScale = 33550
	tagModelTiepoint   = 33922
	tagGeoKeyDirectory = 34735

	keyProjectedCSType = 3072
)

// TIFF field types.
const (
	typeShort  = 3
	typeLong   = 4
	typeDouble = 12
)

const (
	littleEndianMagic = 0x4949 // "II"
	bigEndianMagic    = 0x4D4D // "MM"

	tiffIdentifier    = 42
	bigTiffIdentifier = 43
)

// Info holds the georeferencing metadata of one GeoTIFF.
type Info struct {
	Width  int
	Height int

	// EPSG is the ProjectedCSTypeGeoKey value, 0 when the file does
	// not carry one.
	EPSG int

	// PixelScale is the ModelPixelScaleTag: model units per pixel in
	// x, y and z.
	PixelScale [3]float64

	// Tiepoint is the ModelTiepointTag: raster (i, j, k) mapped to
	// model (x, y, z).
	Tiepoint [6]float64
}

// ReadFile opens path and reads its GeoTIFF metadata.
func ReadFile(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return info, nil
}

// Read parses the first IFD of a classic TIFF and extracts the
// georeferencing tags.
func Read(r io.ReaderAt) (*Info, error) {
	var hdr [8]byte
	if _, err := r.ReadAt(hdr[:], 0); err != nil {
		return nil, fmt.Errorf("read tiff header: %w", err)
	}

	var bo binary.ByteOrder
	switch binary.BigEndian.Uint16(hdr[0:2]) {
	case littleEndianMagic:
		bo = binary.LittleEndian
	case bigEndianMagic:
		bo = binary.BigEndian
	default:
		return nil, errors.New("not a TIFF file")
	}

	switch ident := bo.Uint16(hdr[2:4]); ident {
	case tiffIdentifier:
	case bigTiffIdentifier:
		return nil, errors.New("BigTIFF is not supported")
	default:
		return nil, fmt.Errorf("invalid tiff identifier: %d", ident)
	}

	ifdOffset := int64(bo.Uint32(hdr[4:8]))
	if ifdOffset == 0 {
		return nil, errors.New("file contains no IFD")
	}

	var cnt [2]byte
	if _, err := r.ReadAt(cnt[:], ifdOffset); err != nil {
		return nil, fmt.Errorf("read IFD: %w", err)
	}
	numEntries := int(bo.Uint16(cnt[:]))

	entries := make([]byte, numEntries*12)
	if _, err := r.ReadAt(entries, ifdOffset+2); err != nil {
		return nil, fmt.Errorf("read IFD entries: %w", err)
	}

	info := &Info{}
	var haveScale, haveTiepoint bool

	for i := 0; i < numEntries; i++ {
		e := entries[i*12 : (i+1)*12]
		tag := bo.Uint16(e[0:2])
		ftype := bo.Uint16(e[2:4])
		count := bo.Uint32(e[4:8])

		switch tag {
		case tagImageWidth:
			v, ok := uintValue(bo, ftype, e[8:12])
			if !ok {
				return nil, errors.New("invalid ImageWidth tag")
			}
			info.Width = int(v)
		case tagImageLength:
			v, ok := uintValue(bo, ftype, e[8:12])
			if !ok {
				return nil, errors.New("invalid ImageLength tag")
			}
			info.Height = int(v)
		case tagModelPixelScale:
			vals, err := readDoubles(r, bo, ftype, count, e[8:12])
			if err != nil {
				return nil, fmt.Errorf("ModelPixelScale: %w", err)
			}
			if len(vals) < 3 {
				return nil, errors.New("ModelPixelScale tag too short")
			}
			copy(info.PixelScale[:], vals[:3])
			haveScale = true
		case tagModelTiepoint:
			vals, err := readDoubles(r, bo, ftype, count, e[8:12])
			if err != nil {
				return nil, fmt.Errorf("ModelTiepoint: %w", err)
			}
			if len(vals) < 6 {
				return nil, errors.New("ModelTiepoint tag too short")
			}
			copy(info.Tiepoint[:], vals[:6])
			haveTiepoint = true
		case tagGeoKeyDirectory:
			keys, err := readShorts(r, bo, ftype, count, e[8:12])
			if err != nil {
				return nil, fmt.Errorf("GeoKeyDirectory: %w", err)
			}
			info.EPSG = projectedCSType(keys)
		}
	}

	if info.Width <= 0 || info.Height <= 0 {
		return nil, errors.New("missing image dimensions")
	}
	if !haveScale {
		return nil, errors.New("missing ModelPixelScale tag")
	}
	if !haveTiepoint {
		return nil, errors.New("missing ModelTiepoint tag")
	}

	return info, nil
}

// Corners returns the projected coordinates of the raster's upper-left
// and lower-right corners, derived from the tiepoint and pixel scale.
func (in *Info) Corners() (ulE, ulN, lrE, lrN float64) {
	// Normalize y scale to the north-up convention.
	sx := in.PixelScale[0]
	sy := -math.Abs(in.PixelScale[1])

	ulE = in.Tiepoint[3] - in.Tiepoint[0]*sx
	ulN = in.Tiepoint[4] - in.Tiepoint[1]*sy

	lrE = ulE + float64(in.Width)*sx
	lrN = ulN + float64(in.Height)*sy

	return ulE, ulN, lrE, lrN
}

// UTMZone derives the UTM zone and hemisphere from the EPSG code.
// ok is false when the coordinate system is absent or not UTM.
func (in *Info) UTMZone() (zone int, south, ok bool) {
	switch {
	case in.EPSG >= 32601 && in.EPSG <= 32660:
		return in.EPSG - 32600, false, true
	case in.EPSG >= 32701 && in.EPSG <= 32760:
		return in.EPSG - 32700, true, true
	}
	return 0, false, false
}

// uintValue reads a single SHORT or LONG stored inline in the entry's
// value field.
func uintValue(bo binary.ByteOrder, ftype uint16, inline []byte) (uint32, bool) {
	switch ftype {
	case typeShort:
		return uint32(bo.Uint16(inline[:2])), true
	case typeLong:
		return bo.Uint32(inline), true
	}
	return 0, false
}

// readDoubles reads a DOUBLE array from the location the entry points
// at. Doubles never fit inline in a classic TIFF entry.
func readDoubles(r io.ReaderAt, bo binary.ByteOrder, ftype uint16, count uint32, inline []byte) ([]float64, error) {
	if ftype != typeDouble {
		return nil, fmt.Errorf("unexpected field type %d", ftype)
	}

	off := int64(bo.Uint32(inline))
	out := make([]float64, count)
	sr := io.NewSectionReader(r, off, int64(count)*8)
	if err := binary.Read(sr, bo, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// readShorts reads a SHORT array, inline when it fits in the entry's
// four value bytes.
func readShorts(r io.ReaderAt, bo binary.ByteOrder, ftype uint16, count uint32, inline []byte) ([]uint16, error) {
	if ftype != typeShort {
		return nil, fmt.Errorf("unexpected field type %d", ftype)
	}

	out := make([]uint16, count)
	if count <= 2 {
		for i := range out {
			out[i] = bo.Uint16(inline[i*2 : i*2+2])
		}
		return out, nil
	}

	off := int64(bo.Uint32(inline))
	sr := io.NewSectionReader(r, off, int64(count)*2)
	if err := binary.Read(sr, bo, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// projectedCSType walks a GeoKey directory and returns the
// ProjectedCSTypeGeoKey value, or 0 when absent. The directory starts
// with a four-short header followed by four shorts per key; values
// stored inline have a tag location of 0.
func projectedCSType(keys []uint16) int {
	if len(keys) < 4 {
		return 0
	}
	numKeys := int(keys[3])
	for i := 0; i < numKeys; i++ {
		base := 4 + i*4
		if base+3 >= len(keys) {
			break
		}
		if keys[base] == keyProjectedCSType && keys[base+1] == 0 {
			return int(keys[base+3])
		}
	}
	return 0
}
