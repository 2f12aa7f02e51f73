package analysis

import (
	"math"
	"sort"

	"github.com/vogelring/vogelring-go/internal/observation"
)

// Point is one plottable observation on the map.
type Point struct {
	ID      string  `json:"id,omitempty"`
	Ring    string  `json:"ring,omitempty"`
	Species string  `json:"species,omitempty"`
	Place   string  `json:"place,omitempty"`
	Date    string  `json:"date,omitempty"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Color   [4]int  `json:"color"`
}

// Viewport is the initial map view computed from the point spread.
type Viewport struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Zoom float64 `json:"zoom"`
}

// MapView is the complete map payload.
type MapView struct {
	Points   []Point       `json:"points"`
	Viewport Viewport      `json:"viewport"`
	Legend   []LegendEntry `json:"legend,omitempty"`
	Skipped  int           `json:"skipped"` // rows without valid coordinates
}

// LegendEntry maps a category value to its color.
type LegendEntry struct {
	Value string `json:"value"`
	Color [4]int `json:"color"`
}

// Colorblind-friendly categorical palette, repeated when exhausted.
var categoricalPalette = [][3]int{
	{31, 119, 180},  // blue
	{255, 127, 14},  // orange
	{44, 160, 44},   // green
	{214, 39, 40},   // red
	{148, 103, 189}, // purple
	{140, 86, 75},   // brown
	{227, 119, 194}, // pink
	{127, 127, 127}, // gray
	{188, 189, 34},  // olive
	{23, 190, 207},  // cyan
}

var defaultPointColor = [4]int{30, 144, 255, 140}
var missingValueColor = [4]int{180, 180, 180, 80}

const pointAlpha = 160

// viridis approximation: a few key stops, linearly interpolated.
var viridisStops = []struct {
	v float64
	c [3]int
}{
	{0.0, [3]int{68, 1, 84}},
	{0.25, [3]int{59, 82, 139}},
	{0.5, [3]int{33, 145, 140}},
	{0.75, [3]int{94, 201, 97}},
	{1.0, [3]int{253, 231, 37}},
}

// Viridis maps a value in [0,1] to an approximated viridis RGB color.
func Viridis(v float64) [3]int {
	v = math.Min(math.Max(v, 0), 1)
	for i := 0; i < len(viridisStops)-1; i++ {
		v0, c0 := viridisStops[i].v, viridisStops[i].c
		v1, c1 := viridisStops[i+1].v, viridisStops[i+1].c
		if v >= v0 && v <= v1 {
			t := 0.0
			if v1 > v0 {
				t = (v - v0) / (v1 - v0)
			}
			return [3]int{
				c0[0] + int(t*float64(c1[0]-c0[0])),
				c0[1] + int(t*float64(c1[1]-c0[1])),
				c0[2] + int(t*float64(c1[2]-c0[2])),
			}
		}
	}
	return viridisStops[len(viridisStops)-1].c
}

// ColorMode selects how map points are colored.
type ColorMode string

const (
	ColorNone        ColorMode = "none"
	ColorCategorical ColorMode = "category"
	ColorNumeric     ColorMode = "numeric"
)

// MapOptions configure the map point extraction.
type MapOptions struct {
	Mode   ColorMode `json:"mode"`
	Column string    `json:"column,omitempty"` // category or numeric column
}

// BuildMap extracts the rows with valid coordinates as plottable points,
// assigns colors per the options and computes the initial viewport.
func BuildMap(rows []*observation.Row, opts MapOptions) *MapView {
	view := &MapView{}

	var plottable []*observation.Row
	for _, row := range rows {
		if row.HasCoords {
			plottable = append(plottable, row)
		} else {
			view.Skipped++
		}
	}

	for _, row := range plottable {
		view.Points = append(view.Points, Point{
			ID:      row.Get(observation.ColID),
			Ring:    row.Get(observation.ColRing),
			Species: row.Get(observation.ColSpecies),
			Place:   row.Get(observation.ColPlace),
			Date:    formatDate(row),
			Lat:     row.Lat,
			Lon:     row.Lon,
			Color:   defaultPointColor,
		})
	}

	switch opts.Mode {
	case ColorCategorical:
		view.Legend = colorCategorical(plottable, view.Points, opts.Column)
	case ColorNumeric:
		colorNumeric(plottable, view.Points, opts.Column)
	}

	view.Viewport = computeViewport(plottable)
	return view
}

func colorCategorical(rows []*observation.Row, points []Point, column string) []LegendEntry {
	categories := make(map[string]bool)
	for _, row := range rows {
		categories[row.Get(column)] = true
	}
	ordered := make([]string, 0, len(categories))
	for c := range categories {
		ordered = append(ordered, c)
	}
	sort.Strings(ordered)

	colorMap := make(map[string][4]int, len(ordered))
	legend := make([]LegendEntry, 0, len(ordered))
	for i, c := range ordered {
		rgb := categoricalPalette[i%len(categoricalPalette)]
		color := [4]int{rgb[0], rgb[1], rgb[2], pointAlpha}
		colorMap[c] = color
		label := c
		if label == "" {
			label = "(leer)"
		}
		legend = append(legend, LegendEntry{Value: label, Color: color})
	}

	for i, row := range rows {
		points[i].Color = colorMap[row.Get(column)]
	}
	return legend
}

func colorNumeric(rows []*observation.Row, points []Point, column string) {
	vmin, vmax := math.Inf(1), math.Inf(-1)
	values := make([]float64, len(rows))
	valid := make([]bool, len(rows))
	for i, row := range rows {
		if v, ok := row.Number(column); ok {
			values[i] = v
			valid[i] = true
			vmin = math.Min(vmin, v)
			vmax = math.Max(vmax, v)
		}
	}
	if vmin > vmax {
		// no numeric values at all
		for i := range points {
			points[i].Color = missingValueColor
		}
		return
	}
	denom := vmax - vmin
	if denom == 0 {
		denom = 1
	}
	for i := range rows {
		if !valid[i] {
			points[i].Color = missingValueColor
			continue
		}
		rgb := Viridis((values[i] - vmin) / denom)
		points[i].Color = [4]int{rgb[0], rgb[1], rgb[2], pointAlpha}
	}
}

// computeViewport centers on the coordinate mean and picks a zoom level from
// the coordinate spread.
func computeViewport(rows []*observation.Row) Viewport {
	// Fallback roughly over central Germany, matching the data's home range.
	if len(rows) == 0 {
		return Viewport{Lat: 50.1, Lon: 8.7, Zoom: 6}
	}

	var latSum, lonSum float64
	latMin, latMax := math.Inf(1), math.Inf(-1)
	lonMin, lonMax := math.Inf(1), math.Inf(-1)
	for _, row := range rows {
		latSum += row.Lat
		lonSum += row.Lon
		latMin = math.Min(latMin, row.Lat)
		latMax = math.Max(latMax, row.Lat)
		lonMin = math.Min(lonMin, row.Lon)
		lonMax = math.Max(lonMax, row.Lon)
	}
	n := float64(len(rows))

	spread := math.Max(latMax-latMin, lonMax-lonMin)
	zoom := 11.0
	switch {
	case spread > 20:
		zoom = 3.5
	case spread > 5:
		zoom = 6.0
	case spread > 1:
		zoom = 8.0
	case spread > 0.2:
		zoom = 10.0
	}

	return Viewport{Lat: latSum / n, Lon: lonSum / n, Zoom: zoom}
}

// Columns never offered for color encodings; they are either identifiers or
// used internally for positioning.
var nonPlottableColumns = map[string]bool{
	"id":                  true,
	"excel_id":            true,
	"comment":             true,
	"ringing_ring_scheme": true,
	"is_exact_location":   true,
	"lat":                 true,
	"lon":                 true,
	"ringing_lat":         true,
	"ringing_lon":         true,
}

const maxCategoricalValues = 30

// PlottableCategoricalColumns returns columns with a bounded number of
// distinct non-empty values, usable as categorical color encodings.
func PlottableCategoricalColumns(table *observation.Table) []string {
	var out []string
	for _, col := range table.Columns() {
		if nonPlottableColumns[col] || observation.ColumnKind(col) != observation.KindText {
			continue
		}
		n := len(table.UniqueNonEmpty(col))
		if n >= 1 && n <= maxCategoricalValues {
			out = append(out, col)
		}
	}
	sort.Strings(out)
	return out
}

// PlottableNumericColumns returns columns with at least one parseable
// numeric value, usable as numeric color encodings.
func PlottableNumericColumns(table *observation.Table) []string {
	var out []string
	rows := table.Rows()
	for _, col := range table.Columns() {
		if nonPlottableColumns[col] || observation.ColumnKind(col) != observation.KindNumber {
			continue
		}
		for i := range rows {
			if _, ok := rows[i].Number(col); ok {
				out = append(out, col)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}
