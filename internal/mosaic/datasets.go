package mosaic

import "sort"

// Corner is one corner of a region in projected UTM coordinates.
type Corner struct {
	Easting  float64
	Northing float64
}

// Region is a rectangular area of interest given by two opposite
// corners in a single UTM zone.
type Region struct {
	Zone       int
	South      bool
	UpperLeft  Corner
	LowerRight Corner
}

// Dataset is a built-in region with a stable name.
type Dataset struct {
	Name        string
	Description string
	Region      Region
}

// Datasets holds the built-in areas of interest.
var Datasets = map[string]Dataset{
	"set1": {
		Name:        "set1",
		Description: "Sentinel-2 granule T32UNA",
		Region: Region{
			Zone:       32,
			UpperLeft:  Corner{Easting: 605020, Northing: 5546440},
			LowerRight: Corner{Easting: 609240, Northing: 5542220},
		},
	},
	"set2": {
		Name:        "set2",
		Description: "UTM zone 33 sample extent",
		Region: Region{
			Zone:       33,
			UpperLeft:  Corner{Easting: 443040, Northing: 5834800},
			LowerRight: Corner{Easting: 447220, Northing: 5830600},
		},
	},
}

// DatasetNames returns the built-in dataset names in sorted order.
func DatasetNames() []string {
	names := make([]string, 0, len(Datasets))
	for name := range Datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ImagerySource selects the imagery layer tiles are fetched from.
type ImagerySource string

const (
	SuperRes  ImagerySource = "superres"
	Sentinel2 ImagerySource = "sentinel2"
)

var sourceBaseURLs = map[ImagerySource]string{
	SuperRes:  "https://se-tile-api.allen.ai/mosaic/superres/sr2023/tci",
	Sentinel2: "https://se-tile-api.allen.ai/mosaic/sentinel2/sr2023/tci",
}

// Valid reports whether s names a known imagery layer.
func (s ImagerySource) Valid() bool {
	_, ok := sourceBaseURLs[s]
	return ok
}

// URLTemplate returns the tile URL template of the layer, or "" for an
// unknown layer.
func (s ImagerySource) URLTemplate() string {
	base, ok := sourceBaseURLs[s]
	if !ok {
		return ""
	}
	return base + "/{z}/{x}/{y}.webp"
}
