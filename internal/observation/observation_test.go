package observation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogelring/vogelring-go/internal/errors"
)

const sampleCSV = `id;ring; species ;sex;status;date;place;area;lat;lon;melded
1;280705;Kanadagans;M;BV;2024-06-12;Ostpark;München;48.121;11.621;ja
2;280705;Kanadagans;M;;2024-10-03;Ostpark;München;48.121;11.621;nein
3;281417;Graugans;W;BV;2024-06-20;Westpark;München;NA;NaN;
4;281901;Graugans;;;13.07.2024;Nymphenburg;München;48.158;11.503;wahr
5;282004;Höckerschwan;M;NB;;Ostpark;München;;;
`

func parseSample(t *testing.T) *Table {
	t.Helper()
	table, err := Parse(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	return table
}

func TestParseBasics(t *testing.T) {
	table := parseSample(t)

	assert.Equal(t, 5, table.Len())
	// header names are trimmed, derived columns appended
	cols := table.Columns()
	assert.Contains(t, cols, "species")
	assert.Equal(t, ColYear, cols[len(cols)-2])
	assert.Equal(t, ColMonth, cols[len(cols)-1])
	assert.True(t, table.HasColumn(ColYear))
	assert.False(t, table.HasColumn("ringing_date"))
}

func TestParseTypedCells(t *testing.T) {
	table := parseSample(t)
	rows := table.Rows()

	// ISO date
	require.True(t, rows[0].HasDate)
	assert.Equal(t, 2024, rows[0].Year)
	assert.Equal(t, 6, rows[0].Month)

	// German date layout fallback
	require.True(t, rows[3].HasDate)
	assert.Equal(t, 7, rows[3].Month)

	// missing date leaves derived fields unset
	assert.False(t, rows[4].HasDate)
	_, ok := rows[4].Number(ColYear)
	assert.False(t, ok)

	// NA/NaN coordinates are missing, not zero
	assert.True(t, rows[0].HasCoords)
	assert.False(t, rows[2].HasCoords)
	assert.False(t, rows[4].HasCoords)
	assert.InDelta(t, 48.121, rows[0].Lat, 1e-9)

	// boolean spellings
	v, ok := ParseBool(rows[0].Get("melded"))
	assert.True(t, ok)
	assert.True(t, v)
	v, ok = ParseBool(rows[1].Get("melded"))
	assert.True(t, ok)
	assert.False(t, v)
	_, ok = ParseBool(rows[2].Get("melded"))
	assert.False(t, ok)
}

func TestParseEmptyInput(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileParsing))
}

func TestUniqueNonEmpty(t *testing.T) {
	table := parseSample(t)
	assert.Equal(t, []string{"Graugans", "Höckerschwan", "Kanadagans"}, table.UniqueNonEmpty(ColSpecies))
	assert.Equal(t, []string{"BV", "NB"}, table.UniqueNonEmpty(ColStatus))
	assert.Empty(t, table.UniqueNonEmpty("no_such_column"))
}

func TestYears(t *testing.T) {
	table := parseSample(t)
	assert.Equal(t, []int{2024}, table.Years())
}

func TestPlacesByFrequency(t *testing.T) {
	table := parseSample(t)
	places := table.PlacesByFrequency(0)
	require.Len(t, places, 3)
	assert.Equal(t, "Ostpark", places[0], "most frequent place first")
	assert.Equal(t, []string{"Ostpark", "Nymphenburg"}, table.PlacesByFrequency(2)[:2])
}

func TestColumnKind(t *testing.T) {
	assert.Equal(t, KindDate, ColumnKind("date"))
	assert.Equal(t, KindDate, ColumnKind("ringing_date"))
	assert.Equal(t, KindNumber, ColumnKind("lat"))
	assert.Equal(t, KindNumber, ColumnKind("month"))
	assert.Equal(t, KindBool, ColumnKind("melded"))
	assert.Equal(t, KindText, ColumnKind("species"))
}

func TestShortAndLongRecords(t *testing.T) {
	csv := "a;b;c\n1;2\n1;2;3;4\n"
	table, err := Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())
	assert.Equal(t, "", table.Rows()[0].Get("c"), "short record is padded")
	assert.Equal(t, "3", table.Rows()[1].Get("c"), "long record is truncated")
}
