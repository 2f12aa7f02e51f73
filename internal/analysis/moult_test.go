package analysis

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogelring/vogelring-go/internal/observation"
)

var moultColumns = []string{"id", "ring", "species", "status", "date", "place", "area", "melder"}

type obs struct {
	ring   string
	place  string
	month  int
	status string
}

func moultRows(t *testing.T, year int, observations []obs) []*observation.Row {
	t.Helper()
	maps := make([]map[string]string, 0, len(observations))
	for i, o := range observations {
		maps = append(maps, map[string]string{
			"id":      fmt.Sprintf("%d", i+1),
			"ring":    o.ring,
			"species": "Kanadagans",
			"status":  o.status,
			"date":    fmt.Sprintf("%d-%02d-15", year, o.month),
			"place":   o.place,
		})
	}
	table := observation.NewTestTable(moultColumns, maps)
	rows := table.Rows()
	out := make([]*observation.Row, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out
}

func monthsParams(year int, place string, start, end int) *MoultParams {
	return &MoultParams{
		Year:    year,
		Species: "Kanadagans",
		Place:   place,
		Window:  Window{Mode: WindowMonths, StartMonth: start, EndMonth: end},
	}
}

func categoryOf(t *testing.T, result *MoultResult, ring string) MoultCategory {
	t.Helper()
	for _, rc := range result.Rings {
		if rc.Ring == ring {
			return rc.Category
		}
	}
	t.Fatalf("ring %s not in result", ring)
	return ""
}

// The worked example from the analysis design: A moults at X and is seen
// there again in October, B moults at X and turns up at Y in September.
func TestMoultClassificationExample(t *testing.T) {
	rows := moultRows(t, 2024, []obs{
		{ring: "A", place: "X", month: 7},
		{ring: "A", place: "X", month: 10},
		{ring: "B", place: "X", month: 7},
		{ring: "B", place: "Y", month: 9},
	})

	result, err := Moult(rows, monthsParams(2024, "X", 6, 8))
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalRings)
	assert.Equal(t, CategorySamePlace, categoryOf(t, result, "A"))
	assert.Equal(t, CategoryOtherPlaces, categoryOf(t, result, "B"))
	assert.Equal(t, 2, result.SeenRestOfYear)
	assert.Equal(t, 0, result.Counts[CategoryMoultPeriodOnly])
}

func TestMoultPeriodOnly(t *testing.T) {
	// C is observed only at X during the moult window and nowhere else.
	rows := moultRows(t, 2024, []obs{
		{ring: "C", place: "X", month: 7},
	})

	result, err := Moult(rows, monthsParams(2024, "X", 6, 8))
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalRings)
	assert.Equal(t, CategoryMoultPeriodOnly, categoryOf(t, result, "C"))
	assert.Equal(t, 0, result.SeenRestOfYear)
}

// A rest-of-year sighting without a recorded place still means the ring
// was somewhere other than the moult location.
func TestMoultEmptyPlaceCountsAsOtherPlace(t *testing.T) {
	rows := moultRows(t, 2024, []obs{
		{ring: "E", place: "X", month: 7},
		{ring: "E", place: "", month: 10},
	})

	result, err := Moult(rows, monthsParams(2024, "X", 6, 8))
	require.NoError(t, err)

	assert.Equal(t, CategoryOtherPlaces, categoryOf(t, result, "E"))
	assert.Equal(t, 1, result.SeenRestOfYear)
	assert.Equal(t, []string{""}, result.Rings[0].OtherPlaces)
}

// other-known-location takes precedence when a ring is seen both at the
// moult location and elsewhere outside the window.
func TestMoultCategoryPriority(t *testing.T) {
	rows := moultRows(t, 2024, []obs{
		{ring: "D", place: "X", month: 7},
		{ring: "D", place: "X", month: 10},
		{ring: "D", place: "Z", month: 11},
	})

	result, err := Moult(rows, monthsParams(2024, "X", 6, 8))
	require.NoError(t, err)
	assert.Equal(t, CategoryOtherPlaces, categoryOf(t, result, "D"))

	rc := result.Rings[0]
	assert.Equal(t, []string{"Z"}, rc.OtherPlaces)
	assert.Equal(t, 3, rc.Observations)
	assert.Equal(t, 2, rc.OutsideWindow)
}

func TestMoultCategoriesPartition(t *testing.T) {
	rows := moultRows(t, 2024, []obs{
		{ring: "A", place: "X", month: 6},
		{ring: "A", place: "Y", month: 3},
		{ring: "B", place: "X", month: 7},
		{ring: "B", place: "X", month: 12},
		{ring: "C", place: "X", month: 8},
		{ring: "D", place: "X", month: 6},
		{ring: "D", place: "X", month: 7},
		{ring: "E", place: "X", month: 7},
		{ring: "E", place: "W", month: 2},
		{ring: "E", place: "X", month: 10},
	})

	result, err := Moult(rows, monthsParams(2024, "X", 6, 8))
	require.NoError(t, err)

	// every ring lands in exactly one category, and the counts sum to the total
	assert.Equal(t, 5, result.TotalRings)
	sum := 0
	for _, n := range result.Counts {
		sum += n
	}
	assert.Equal(t, result.TotalRings, sum)
	assert.Len(t, result.Rings, result.TotalRings)

	seen := make(map[string]bool)
	for _, rc := range result.Rings {
		assert.False(t, seen[rc.Ring], "ring %s classified twice", rc.Ring)
		seen[rc.Ring] = true
	}
}

func TestMoultWrapAroundWindow(t *testing.T) {
	rows := moultRows(t, 2024, []obs{
		{ring: "F", place: "X", month: 12}, // inside Nov-Feb window
		{ring: "F", place: "Y", month: 5},  // outside
		{ring: "G", place: "X", month: 1},  // inside
	})

	result, err := Moult(rows, monthsParams(2024, "X", 11, 2))
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalRings)
	assert.Equal(t, CategoryOtherPlaces, categoryOf(t, result, "F"))
	assert.Equal(t, CategoryMoultPeriodOnly, categoryOf(t, result, "G"))
}

func TestMoultStatusWindow(t *testing.T) {
	rows := moultRows(t, 2024, []obs{
		{ring: "H", place: "X", month: 7, status: "Mauser"},
		{ring: "H", place: "Y", month: 9},
		{ring: "I", place: "X", month: 7}, // no moult status, not in cohort
	})

	params := &MoultParams{
		Year:    2024,
		Species: "Kanadagans",
		Place:   "X",
		Window:  Window{Mode: WindowStatus, Status: "Mauser"},
	}
	result, err := Moult(rows, params)
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalRings)
	assert.Equal(t, CategoryOtherPlaces, categoryOf(t, result, "H"))
}

func TestMoultFiltersByYearSpeciesPlace(t *testing.T) {
	rows := moultRows(t, 2024, []obs{
		{ring: "J", place: "X", month: 7},
	})
	// wrong year
	result, err := Moult(rows, monthsParams(2023, "X", 6, 8))
	require.NoError(t, err)
	assert.Equal(t, 0, result.TotalRings)
	// wrong place
	result, err = Moult(rows, monthsParams(2024, "Y", 6, 8))
	require.NoError(t, err)
	assert.Equal(t, 0, result.TotalRings)
	// zero moulting individuals is an empty result, not an error
	assert.NotNil(t, result.Counts)
	assert.Empty(t, result.Rings)
}

func TestMoultMonthlyBreakdown(t *testing.T) {
	rows := moultRows(t, 2024, []obs{
		{ring: "K", place: "X", month: 7},
		{ring: "K", place: "Y", month: 9},
		{ring: "L", place: "X", month: 7},
		{ring: "L", place: "Y", month: 9},
		{ring: "L", place: "X", month: 10},
	})

	result, err := Moult(rows, monthsParams(2024, "X", 6, 8))
	require.NoError(t, err)

	require.Len(t, result.Monthly, 12, "all twelve months present")
	var september, october MonthCount
	for _, mc := range result.Monthly {
		switch mc.Month {
		case 9:
			september = mc
		case 10:
			october = mc
		}
	}
	assert.Equal(t, 2, september.Rings)
	assert.Equal(t, 2, september.Total)
	assert.Equal(t, 1, october.Rings)

	// moult window months carry no rest-of-year observations
	assert.Equal(t, 0, result.Monthly[6].Rings, "July is inside the window")

	require.Len(t, result.Places, 1)
	assert.Equal(t, "Y", result.Places[0].Place)
	assert.Equal(t, 2, result.Places[0].Rings)
}

func TestMoultParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		params MoultParams
	}{
		{"missing year", MoultParams{Species: "x", Place: "y", Window: Window{Mode: WindowMonths, StartMonth: 1, EndMonth: 2}}},
		{"missing species", MoultParams{Year: 2024, Place: "y", Window: Window{Mode: WindowMonths, StartMonth: 1, EndMonth: 2}}},
		{"missing place", MoultParams{Year: 2024, Species: "x", Window: Window{Mode: WindowMonths, StartMonth: 1, EndMonth: 2}}},
		{"month out of range", MoultParams{Year: 2024, Species: "x", Place: "y", Window: Window{Mode: WindowMonths, StartMonth: 0, EndMonth: 13}}},
		{"both modes set", MoultParams{Year: 2024, Species: "x", Place: "y", Window: Window{Mode: WindowMonths, StartMonth: 1, EndMonth: 2, Status: "BV"}}},
		{"status empty", MoultParams{Year: 2024, Species: "x", Place: "y", Window: Window{Mode: WindowStatus}}},
		{"unknown mode", MoultParams{Year: 2024, Species: "x", Place: "y", Window: Window{Mode: "lunar"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.params
			assert.Error(t, p.Validate())
		})
	}
}

func TestMoultParamsCacheKey(t *testing.T) {
	a := monthsParams(2024, "X", 6, 8)
	b := monthsParams(2024, "X", 6, 8)
	c := monthsParams(2024, "X", 6, 9)
	assert.Equal(t, a.CacheKey(), b.CacheKey())
	assert.NotEqual(t, a.CacheKey(), c.CacheKey())
}
