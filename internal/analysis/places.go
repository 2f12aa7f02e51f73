package analysis

import (
	"sort"

	"github.com/vogelring/vogelring-go/internal/errors"
	"github.com/vogelring/vogelring-go/internal/observation"
)

// MaxPlaces bounds how many places one distribution chart compares.
const MaxPlaces = 5

// BinLabels are the two-month bins of a year, in calendar order.
var BinLabels = []string{"Jan–Feb", "Mär–Apr", "Mai–Jun", "Jul–Aug", "Sep–Okt", "Nov–Dez"}

// TwoMonthBin maps a month to its bin label, or "" for an invalid month.
func TwoMonthBin(month int) string {
	if month < 1 || month > 12 {
		return ""
	}
	return BinLabels[(month-1)/2]
}

// PlaceBinCount is the number of distinct rings observed at one place during
// one two-month bin.
type PlaceBinCount struct {
	Bin   string `json:"bin"`
	Place string `json:"place"`
	Rings int    `json:"rings"`
}

// PlacesDistribution counts distinct rings per two-month bin per place for
// one year. The result is completed over the full bin and place product with
// zeroes, bins in calendar order, places in the given order. At most
// MaxPlaces places are compared.
func PlacesDistribution(rows []*observation.Row, year int, places []string) ([]PlaceBinCount, error) {
	if year == 0 {
		return nil, errors.ValidationError("places distribution requires a year")
	}
	if len(places) == 0 {
		return nil, errors.ValidationError("places distribution requires at least one place")
	}
	if len(places) > MaxPlaces {
		return nil, errors.Newf("places distribution compares at most %d places, got %d", MaxPlaces, len(places)).
			Component("analysis").
			Category(errors.CategoryValidation).
			Build()
	}

	wanted := make(map[string]bool, len(places))
	for _, p := range places {
		wanted[p] = true
	}

	// distinct rings per (bin, place)
	ringSets := make(map[[2]string]map[string]bool)
	for _, row := range rows {
		if !row.HasDate || row.Year != year {
			continue
		}
		ring := row.Get(observation.ColRing)
		place := row.Get(observation.ColPlace)
		if ring == "" || !wanted[place] {
			continue
		}
		key := [2]string{TwoMonthBin(row.Month), place}
		if ringSets[key] == nil {
			ringSets[key] = make(map[string]bool)
		}
		ringSets[key][ring] = true
	}

	counts := make([]PlaceBinCount, 0, len(BinLabels)*len(places))
	for _, bin := range BinLabels {
		for _, place := range places {
			counts = append(counts, PlaceBinCount{
				Bin:   bin,
				Place: place,
				Rings: len(ringSets[[2]string{bin, place}]),
			})
		}
	}
	return counts, nil
}

// YearsOf returns the sorted distinct years present in a row subset.
func YearsOf(rows []*observation.Row) []int {
	seen := make(map[int]bool)
	for _, row := range rows {
		if row.HasDate {
			seen[row.Year] = true
		}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// PlacesByFrequencyOf returns the places of a row subset ordered by sighting
// count, most frequent first, ties alphabetical.
func PlacesByFrequencyOf(rows []*observation.Row, limit int) []string {
	counts := make(map[string]int)
	for _, row := range rows {
		if p := row.Get(observation.ColPlace); p != "" {
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
