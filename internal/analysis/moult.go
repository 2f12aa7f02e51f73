// Package analysis implements the analysis computations behind the dashboard
// pages: the moult-location classifier, the places distribution and the map
// point extraction. All functions are pure over a row slice; callers decide
// which dataset subset the rows come from and cache results as needed.
package analysis

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/vogelring/vogelring-go/internal/errors"
	"github.com/vogelring/vogelring-go/internal/observation"
)

// WindowMode selects how moulting individuals are identified.
type WindowMode string

const (
	WindowMonths WindowMode = "months" // observation month inside a month range
	WindowStatus WindowMode = "status" // observation status equals a value
)

// Window is the moult-period definition. Exactly one mode applies.
type Window struct {
	Mode       WindowMode `json:"mode"`
	StartMonth int        `json:"start_month,omitempty"`
	EndMonth   int        `json:"end_month,omitempty"`
	Status     string     `json:"status,omitempty"`
}

// Validate checks the window for a usable configuration.
func (w *Window) Validate() error {
	switch w.Mode {
	case WindowMonths:
		if w.StartMonth < 1 || w.StartMonth > 12 || w.EndMonth < 1 || w.EndMonth > 12 {
			return errors.Newf("moult window months must be in 1..12, got %d..%d", w.StartMonth, w.EndMonth).
				Component("analysis").
				Category(errors.CategoryValidation).
				Build()
		}
		if w.Status != "" {
			return errors.ValidationError("moult window uses either months or status, not both")
		}
	case WindowStatus:
		if strings.TrimSpace(w.Status) == "" {
			return errors.ValidationError("status moult window requires a status value")
		}
		if w.StartMonth != 0 || w.EndMonth != 0 {
			return errors.ValidationError("moult window uses either months or status, not both")
		}
	default:
		return errors.Newf("unknown moult window mode %q", w.Mode).
			Component("analysis").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

// containsMonth reports whether a month falls inside the window. A start
// greater than the end wraps around the year boundary (e.g. Nov-Feb).
func (w *Window) containsMonth(month int) bool {
	if month < 1 || month > 12 {
		return false
	}
	if w.StartMonth <= w.EndMonth {
		return month >= w.StartMonth && month <= w.EndMonth
	}
	return month >= w.StartMonth || month <= w.EndMonth
}

// MoultParams identify one moult cohort: the year, species and location the
// cohort moults at, plus the window that defines the moult period.
type MoultParams struct {
	Year    int    `json:"year"`
	Species string `json:"species"`
	Place   string `json:"place"`
	Window  Window `json:"window"`
}

// Validate checks the parameters for a runnable analysis.
func (p *MoultParams) Validate() error {
	if p.Year == 0 {
		return errors.ValidationError("moult analysis requires a year")
	}
	if strings.TrimSpace(p.Species) == "" {
		return errors.ValidationError("moult analysis requires a species")
	}
	if strings.TrimSpace(p.Place) == "" {
		return errors.ValidationError("moult analysis requires a moult location")
	}
	return p.Window.Validate()
}

// CacheKey returns a stable key for memoizing results of these parameters.
func (p *MoultParams) CacheKey() string {
	data, _ := json.Marshal(p)
	return string(data)
}

// MoultCategory classifies where a moulting individual was seen outside the
// moult period.
type MoultCategory string

const (
	CategoryOtherPlaces     MoultCategory = "other_known_location"
	CategorySamePlace       MoultCategory = "same_location"
	CategoryMoultPeriodOnly MoultCategory = "moult_period_only"
)

// RingClassification is the per-individual result.
type RingClassification struct {
	Ring          string        `json:"ring"`
	Category      MoultCategory `json:"category"`
	Observations  int           `json:"observations"`   // all observations of the ring in the year
	OutsideWindow int           `json:"outside_window"` // observations outside the moult period
	OtherPlaces   []string      `json:"other_places,omitempty"`
}

// MonthCount is the month-by-month breakdown of rest-of-year observations.
type MonthCount struct {
	Month int `json:"month"`
	Rings int `json:"rings"`     // distinct rings observed that month
	Total int `json:"sightings"` // total observations that month
}

// PlaceCount is the per-place breakdown of rest-of-year observations at
// locations other than the moult location.
type PlaceCount struct {
	Place string `json:"place"`
	Rings int    `json:"rings"`
	Total int    `json:"sightings"`
}

// DetailRow is one rest-of-year observation for the detail table.
type DetailRow struct {
	Ring   string `json:"ring"`
	Date   string `json:"date"`
	Place  string `json:"place"`
	Area   string `json:"area,omitempty"`
	Status string `json:"status,omitempty"`
	Melder string `json:"melder,omitempty"`
}

// MoultResult is the complete output of one moult analysis run.
type MoultResult struct {
	Params         MoultParams           `json:"params"`
	TotalRings     int                   `json:"total_rings"`
	SeenRestOfYear int                   `json:"seen_rest_of_year"`
	Counts         map[MoultCategory]int `json:"counts"`
	Rings          []RingClassification  `json:"rings"`
	Monthly        []MonthCount          `json:"monthly"`
	Places         []PlaceCount          `json:"places"`
	Details        []DetailRow           `json:"details"`
}

// outsideWindow reports whether an observation counts as rest-of-year for the
// given window. In months mode a row without a parseable date cannot lie
// inside the month range and therefore counts as outside. In status mode the
// moult period is not a time interval, so every observation of the year
// counts as rest-of-year.
func outsideWindow(row *observation.Row, w *Window) bool {
	if w.Mode == WindowStatus {
		return true
	}
	if !row.HasDate {
		return true
	}
	return !w.containsMonth(row.Month)
}

// inWindow reports whether an observation identifies its ring as moulting.
func inWindow(row *observation.Row, w *Window) bool {
	switch w.Mode {
	case WindowMonths:
		return row.HasDate && w.containsMonth(row.Month)
	case WindowStatus:
		return row.Get(observation.ColStatus) == w.Status
	}
	return false
}

// Moult runs the moult-location workflow over the given rows:
//
//  1. restrict to the cohort year, species and moult location,
//  2. select the moulting individuals via the window,
//  3. collect their distinct rings,
//  4. re-query all same-year observations of those rings at any location,
//  5. classify every ring, other-known-location taking precedence over
//     same-location, with moult-period-only as the fallback,
//  6. aggregate counts, monthly and per-place breakdowns.
//
// The three categories partition the ring set. An empty cohort yields an
// empty result, not an error.
func Moult(rows []*observation.Row, params *MoultParams) (*MoultResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	result := &MoultResult{
		Params: *params,
		Counts: map[MoultCategory]int{
			CategoryOtherPlaces:     0,
			CategorySamePlace:       0,
			CategoryMoultPeriodOnly: 0,
		},
	}

	// Steps 1-3: moulting individuals at the moult location.
	moulting := make(map[string]bool)
	for _, row := range rows {
		if !row.HasDate || row.Year != params.Year {
			continue
		}
		if row.Get(observation.ColSpecies) != params.Species {
			continue
		}
		if row.Get(observation.ColPlace) != params.Place {
			continue
		}
		if !inWindow(row, &params.Window) {
			continue
		}
		if ring := row.Get(observation.ColRing); ring != "" {
			moulting[ring] = true
		}
	}
	result.TotalRings = len(moulting)
	if result.TotalRings == 0 {
		return result, nil
	}

	// Step 4: all same-year same-species observations of the cohort rings.
	perRing := make(map[string][]*observation.Row, len(moulting))
	for _, row := range rows {
		if !row.HasDate || row.Year != params.Year {
			continue
		}
		if row.Get(observation.ColSpecies) != params.Species {
			continue
		}
		ring := row.Get(observation.ColRing)
		if !moulting[ring] {
			continue
		}
		perRing[ring] = append(perRing[ring], row)
	}

	// Steps 5-6: classification and aggregation.
	monthRings := make(map[int]map[string]bool)
	monthTotals := make(map[int]int)
	placeRings := make(map[string]map[string]bool)
	placeTotals := make(map[string]int)

	rings := make([]string, 0, len(moulting))
	for ring := range moulting {
		rings = append(rings, ring)
	}
	sort.Strings(rings)

	for _, ring := range rings {
		rc := RingClassification{Ring: ring, Category: CategoryMoultPeriodOnly}
		otherPlaces := make(map[string]bool)
		sawSamePlace := false

		for _, row := range perRing[ring] {
			rc.Observations++
			if !outsideWindow(row, &params.Window) {
				continue
			}
			rc.OutsideWindow++

			place := row.Get(observation.ColPlace)
			switch {
			case place == params.Place:
				sawSamePlace = true
			default:
				// An unrecorded place still proves the ring was seen away
				// from the moult place.
				otherPlaces[place] = true
				if placeRings[place] == nil {
					placeRings[place] = make(map[string]bool)
				}
				placeRings[place][ring] = true
				placeTotals[place]++
			}

			if row.HasDate {
				if monthRings[row.Month] == nil {
					monthRings[row.Month] = make(map[string]bool)
				}
				monthRings[row.Month][ring] = true
				monthTotals[row.Month]++
			}

			result.Details = append(result.Details, DetailRow{
				Ring:   ring,
				Date:   formatDate(row),
				Place:  place,
				Area:   row.Get(observation.ColArea),
				Status: row.Get(observation.ColStatus),
				Melder: row.Get(observation.ColMelder),
			})
		}

		switch {
		case len(otherPlaces) > 0:
			rc.Category = CategoryOtherPlaces
			rc.OtherPlaces = sortedKeys(otherPlaces)
		case sawSamePlace:
			rc.Category = CategorySamePlace
		}
		if rc.OutsideWindow > 0 {
			result.SeenRestOfYear++
		}

		result.Counts[rc.Category]++
		result.Rings = append(result.Rings, rc)
	}

	// Monthly breakdown completed over all twelve months.
	for month := 1; month <= 12; month++ {
		result.Monthly = append(result.Monthly, MonthCount{
			Month: month,
			Rings: len(monthRings[month]),
			Total: monthTotals[month],
		})
	}

	// Per-place breakdown, most visited first, ties alphabetical.
	for place, set := range placeRings {
		result.Places = append(result.Places, PlaceCount{
			Place: place,
			Rings: len(set),
			Total: placeTotals[place],
		})
	}
	sort.Slice(result.Places, func(i, j int) bool {
		if result.Places[i].Rings != result.Places[j].Rings {
			return result.Places[i].Rings > result.Places[j].Rings
		}
		return result.Places[i].Place < result.Places[j].Place
	})

	return result, nil
}

func formatDate(row *observation.Row) string {
	if !row.HasDate {
		return ""
	}
	return row.Date.Format("2006-01-02")
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
