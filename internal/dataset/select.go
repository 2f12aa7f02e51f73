package dataset

import (
	"github.com/vogelring/vogelring-go/internal/observation"
)

// Select returns pointers to the source rows surviving a definition's
// filters, for analyses that need typed row access rather than a rendered
// view. When includeHidden is false, rows whose identity is in the exclusion
// set are dropped as well. Warnings mirror Evaluate's filter handling.
func Select(table *observation.Table, def *Definition, includeHidden bool) ([]*observation.Row, []Warning) {
	var warnings []Warning

	applicable := make([]*FilterSpec, 0, len(def.Filters))
	for i := range def.Filters {
		f := &def.Filters[i]
		if err := f.Validate(table); err != nil {
			warnings = append(warnings, Warning{
				Code:    WarnFilterSkipped,
				Message: "filter skipped: " + f.Describe() + ": " + err.Error(),
			})
			continue
		}
		applicable = append(applicable, f)
	}

	idField := def.EffectiveIDField()
	hasIDField := table.HasColumn(idField)
	excluded := def.excludedSet()

	rows := table.Rows()
	selected := make([]*observation.Row, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		matched := true
		for _, f := range applicable {
			if !f.Match(row) {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}
		if !includeHidden && hasIDField && excluded[row.ID(idField)] {
			continue
		}
		selected = append(selected, row)
	}
	return selected, warnings
}

// AllRows returns pointers to every row of the table, for analyses run
// without a dataset restriction.
func AllRows(table *observation.Table) []*observation.Row {
	rows := table.Rows()
	out := make([]*observation.Row, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out
}
