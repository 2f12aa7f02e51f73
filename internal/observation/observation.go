// Package observation loads and types the bird-ringing observation table.
//
// The source of truth is a single semicolon-separated file. Every field is
// read as a string first and coerced on demand, so the table survives schema
// additions without code changes; derived year and month columns are computed
// from the date column at load time.
package observation

import (
	"encoding/csv"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vogelring/vogelring-go/internal/errors"
)

// Well-known column names of the sightings file.
const (
	ColID      = "id"
	ColRing    = "ring"
	ColSpecies = "species"
	ColSex     = "sex"
	ColAge     = "age"
	ColStatus  = "status"
	ColDate    = "date"
	ColPlace   = "place"
	ColArea    = "area"
	ColLat     = "lat"
	ColLon     = "lon"
	ColMelder  = "melder"

	// Derived at load time from ColDate.
	ColYear  = "year"
	ColMonth = "month"
)

// Kind describes the semantic type of a column, used to pick type-compatible
// filter operators.
type Kind int

const (
	KindText Kind = iota
	KindNumber
	KindDate
	KindBool
)

var dateColumns = map[string]bool{
	"date":         true,
	"ringing_date": true,
}

var numericColumns = map[string]bool{
	"lat":              true,
	"lon":              true,
	"ringing_lat":      true,
	"ringing_lon":      true,
	"year":             true,
	"month":            true,
	"breed_size":       true,
	"family_size":      true,
	"small_group_size": true,
	"large_group_size": true,
}

var boolColumns = map[string]bool{
	"melded":            true,
	"is_exact_location": true,
}

// ColumnKind returns the semantic kind of a column name.
func ColumnKind(name string) Kind {
	switch {
	case dateColumns[name]:
		return KindDate
	case numericColumns[name]:
		return KindNumber
	case boolColumns[name]:
		return KindBool
	default:
		return KindText
	}
}

// Date layouts accepted in the source file, tried in order.
var dateLayouts = []string{"2006-01-02", "02.01.2006", time.RFC3339}

// ParseDate parses a date cell. The boolean is false for empty or
// unparseable values.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseBool parses a boolean cell. German and English spellings are accepted.
func ParseBool(value string) (result, ok bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "wahr", "1", "ja", "yes":
		return true, true
	case "false", "falsch", "0", "nein", "no":
		return false, true
	default:
		return false, false
	}
}

// Row is a single observation record. Values are kept as raw strings keyed by
// column name; frequently used fields are pre-parsed.
type Row struct {
	values map[string]string

	Date      time.Time // zero when the date cell is missing or unparseable
	HasDate   bool
	Year      int // derived from Date; 0 without a date
	Month     int
	Lat, Lon  float64
	HasCoords bool
}

// Get returns the raw trimmed value of a column, or "" when absent.
func (r *Row) Get(col string) string {
	return r.values[col]
}

// Number parses a column as a float. Derived year/month are served from the
// pre-parsed fields so they work even though they never appear in the file.
func (r *Row) Number(col string) (float64, bool) {
	switch col {
	case ColYear:
		if !r.HasDate {
			return 0, false
		}
		return float64(r.Year), true
	case ColMonth:
		if !r.HasDate {
			return 0, false
		}
		return float64(r.Month), true
	}
	v := strings.TrimSpace(r.values[col])
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// DateValue parses a column as a date.
func (r *Row) DateValue(col string) (time.Time, bool) {
	if col == ColDate {
		return r.Date, r.HasDate
	}
	return ParseDate(r.values[col])
}

// ID returns the row identity under the given id field, or "" when the field
// is absent.
func (r *Row) ID(idField string) string {
	return r.values[idField]
}

// Table is the parsed observation table. Row order follows the source file.
type Table struct {
	columns    []string
	rows       []Row
	generation uint64
}

// Generation identifies the load that produced this table. A Source stamps
// every fresh parse with a new value, so the generation is a safe cache key
// for results derived from the table.
func (t *Table) Generation() uint64 {
	return t.generation
}

// Columns returns the column names in source order, including the derived
// year and month columns.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// HasColumn reports whether the table carries a column.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.columns {
		if c == name {
			return true
		}
	}
	return false
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Rows returns the backing row slice. Callers must not mutate it.
func (t *Table) Rows() []Row {
	return t.rows
}

// UniqueNonEmpty returns the sorted distinct non-empty values of a column.
func (t *Table) UniqueNonEmpty(col string) []string {
	seen := make(map[string]bool)
	for i := range t.rows {
		if v := t.rows[i].Get(col); v != "" {
			seen[v] = true
		}
	}
	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

// Years returns the sorted distinct years present in the table.
func (t *Table) Years() []int {
	seen := make(map[int]bool)
	for i := range t.rows {
		if t.rows[i].HasDate {
			seen[t.rows[i].Year] = true
		}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// PlacesByFrequency returns place names ordered by sighting count, most
// frequent first. A limit of 0 returns all places; ties break alphabetically
// so the order is stable.
func (t *Table) PlacesByFrequency(limit int) []string {
	counts := make(map[string]int)
	for i := range t.rows {
		if p := t.rows[i].Get(ColPlace); p != "" {
			counts[p]++
		}
	}
	places := make([]string, 0, len(counts))
	for p := range counts {
		places = append(places, p)
	}
	sort.Slice(places, func(i, j int) bool {
		if counts[places[i]] != counts[places[j]] {
			return counts[places[i]] > counts[places[j]]
		}
		return places[i] < places[j]
	})
	if limit > 0 && len(places) > limit {
		places = places[:limit]
	}
	return places
}

// missing cell spellings treated as empty
func normalizeCell(v string) string {
	v = strings.TrimSpace(v)
	switch v {
	case "NA", "NaN":
		return ""
	}
	return v
}

// Parse reads a semicolon-separated observation table. The first record is
// the header; header names are trimmed. Records shorter than the header are
// padded with empty cells, longer ones are truncated.
func Parse(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, errors.Newf("source file is empty").
				Component("observation").
				Category(errors.CategoryFileParsing).
				Build()
		}
		return nil, errors.New(err).
			Component("observation").
			Category(errors.CategoryFileParsing).
			Context("operation", "read-header").
			Build()
	}

	columns := make([]string, len(header))
	for i, c := range header {
		columns[i] = strings.TrimSpace(strings.TrimPrefix(c, "\uFEFF"))
	}

	hasDateCol := false
	for _, c := range columns {
		if c == ColDate {
			hasDateCol = true
			break
		}
	}

	t := &Table{columns: columns}
	if hasDateCol {
		t.columns = append(t.columns, ColYear, ColMonth)
	}

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.New(err).
				Component("observation").
				Category(errors.CategoryFileParsing).
				Context("line", line).
				Build()
		}

		values := make(map[string]string, len(columns))
		for i, col := range columns[:len(header)] {
			if i < len(record) {
				values[col] = normalizeCell(record[i])
			} else {
				values[col] = ""
			}
		}

		row := Row{values: values}
		if d, ok := ParseDate(values[ColDate]); ok {
			row.Date = d
			row.HasDate = true
			row.Year = d.Year()
			row.Month = int(d.Month())
		}
		if lat, ok := row.Number(ColLat); ok {
			if lon, ok := row.Number(ColLon); ok {
				row.Lat = lat
				row.Lon = lon
				row.HasCoords = true
			}
		}
		t.rows = append(t.rows, row)
	}

	return t, nil
}

// LoadFile parses the observation table from a file on disk.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component("observation").
			Category(errors.CategoryFileIO).
			FileContext(path).
			Context("operation", "open-source").
			Build()
	}
	defer f.Close()
	return Parse(f)
}

// NewTestTable builds a table directly from rows given as column/value maps.
// The column order follows the given column slice. Intended for tests.
func NewTestTable(columns []string, rows []map[string]string) *Table {
	t := &Table{columns: append([]string(nil), columns...)}
	hasDateCol := false
	for _, c := range columns {
		if c == ColDate {
			hasDateCol = true
		}
	}
	if hasDateCol {
		t.columns = append(t.columns, ColYear, ColMonth)
	}
	for _, values := range rows {
		m := make(map[string]string, len(values))
		for k, v := range values {
			m[k] = normalizeCell(v)
		}
		row := Row{values: m}
		if d, ok := ParseDate(m[ColDate]); ok {
			row.Date = d
			row.HasDate = true
			row.Year = d.Year()
			row.Month = int(d.Month())
		}
		if lat, ok := row.Number(ColLat); ok {
			if lon, ok := row.Number(ColLon); ok {
				row.Lat = lat
				row.Lon = lon
				row.HasCoords = true
			}
		}
		t.rows = append(t.rows, row)
	}
	return t
}
