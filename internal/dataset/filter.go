// Package dataset implements persisted dataset definitions: a declarative
// column/filter/exclusion spec that is re-applied against the live
// observation table on every use. Definitions mirror the current source,
// they never copy it.
package dataset

import (
	"strings"
	"time"

	"github.com/vogelring/vogelring-go/internal/errors"
	"github.com/vogelring/vogelring-go/internal/observation"
)

// FilterType identifies the operator kind of a filter predicate.
type FilterType string

const (
	FilterEquals      FilterType = "equals"       // exact match on the raw cell value
	FilterMulti       FilterType = "multi"        // membership in a value set
	FilterContains    FilterType = "contains"     // case-insensitive substring
	FilterDateRange   FilterType = "date_range"   // inclusive date interval
	FilterNumberRange FilterType = "number_range" // inclusive numeric interval
)

// FilterSpec is one predicate of a dataset definition. Exactly the fields
// matching Type are set; predicates within one definition combine as AND.
type FilterSpec struct {
	Type   FilterType `json:"type"`
	Column string     `json:"column"`

	// equals / contains
	Value string `json:"value,omitempty"`
	// multi
	Values []string `json:"values,omitempty"`
	// date_range; either bound may be empty for an open interval
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
	// number_range; either bound may be nil for an open interval
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Validate checks the predicate against the current table schema. A nil
// result means the predicate can be applied.
func (f *FilterSpec) Validate(table *observation.Table) error {
	if strings.TrimSpace(f.Column) == "" {
		return errors.ValidationError("filter column must not be empty")
	}
	if !table.HasColumn(f.Column) {
		return errors.Newf("filter column %q not present in source table", f.Column).
			Component("dataset").
			Category(errors.CategoryValidation).
			Context("column", f.Column).
			Build()
	}

	kind := observation.ColumnKind(f.Column)
	switch f.Type {
	case FilterEquals:
		// An empty value is allowed: it matches rows whose cell is empty.
	case FilterContains:
		if f.Value == "" {
			return errors.Newf("filter %q on column %q requires a value", f.Type, f.Column).
				Category(errors.CategoryValidation).
				Build()
		}
	case FilterMulti:
		if len(f.Values) == 0 {
			return errors.Newf("filter %q on column %q requires at least one value", f.Type, f.Column).
				Category(errors.CategoryValidation).
				Build()
		}
	case FilterDateRange:
		if kind != observation.KindDate {
			return errors.Newf("date_range filter is not applicable to column %q", f.Column).
				Category(errors.CategoryValidation).
				Build()
		}
		if f.Start == "" && f.End == "" {
			return errors.Newf("date_range filter on column %q requires a start or end", f.Column).
				Category(errors.CategoryValidation).
				Build()
		}
		for _, bound := range []string{f.Start, f.End} {
			if bound == "" {
				continue
			}
			if _, ok := observation.ParseDate(bound); !ok {
				return errors.Newf("date_range bound %q on column %q is not a valid date", bound, f.Column).
					Category(errors.CategoryValidation).
					Build()
			}
		}
	case FilterNumberRange:
		if kind != observation.KindNumber {
			return errors.Newf("number_range filter is not applicable to column %q", f.Column).
				Category(errors.CategoryValidation).
				Build()
		}
		if f.Min == nil && f.Max == nil {
			return errors.Newf("number_range filter on column %q requires a min or max", f.Column).
				Category(errors.CategoryValidation).
				Build()
		}
	default:
		return errors.Newf("unknown filter type %q", f.Type).
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

// Match reports whether a row passes the predicate. The predicate must have
// been validated first; Match on a malformed predicate passes everything.
func (f *FilterSpec) Match(row *observation.Row) bool {
	switch f.Type {
	case FilterEquals:
		return row.Get(f.Column) == f.Value
	case FilterMulti:
		v := row.Get(f.Column)
		for _, candidate := range f.Values {
			if v == candidate {
				return true
			}
		}
		return false
	case FilterContains:
		return strings.Contains(
			strings.ToLower(row.Get(f.Column)),
			strings.ToLower(f.Value),
		)
	case FilterDateRange:
		d, ok := row.DateValue(f.Column)
		if !ok {
			return false
		}
		if f.Start != "" {
			if start, ok := observation.ParseDate(f.Start); ok && d.Before(start) {
				return false
			}
		}
		if f.End != "" {
			if end, ok := observation.ParseDate(f.End); ok && d.After(endOfDay(end)) {
				return false
			}
		}
		return true
	case FilterNumberRange:
		n, ok := row.Number(f.Column)
		if !ok {
			return false
		}
		if f.Min != nil && n < *f.Min {
			return false
		}
		if f.Max != nil && n > *f.Max {
			return false
		}
		return true
	}
	return true
}

// endOfDay makes the end bound of a date range inclusive for timestamped cells.
func endOfDay(t time.Time) time.Time {
	return t.Add(24*time.Hour - time.Nanosecond)
}

// Describe returns a short human-readable summary of the predicate, used in
// listings and warnings.
func (f *FilterSpec) Describe() string {
	var b strings.Builder
	b.WriteString(f.Column)
	switch f.Type {
	case FilterEquals:
		b.WriteString(" = " + f.Value)
	case FilterMulti:
		b.WriteString(" in [" + strings.Join(f.Values, ", ") + "]")
	case FilterContains:
		b.WriteString(" contains " + f.Value)
	case FilterDateRange:
		b.WriteString(" between " + f.Start + " and " + f.End)
	case FilterNumberRange:
		b.WriteString(" in numeric range")
	default:
		b.WriteString(" (" + string(f.Type) + ")")
	}
	return b.String()
}
