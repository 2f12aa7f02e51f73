package dataset

import (
	"strconv"
	"strings"
	"time"

	"github.com/vogelring/vogelring-go/internal/errors"
	"github.com/vogelring/vogelring-go/internal/observation"
)

// DefaultIDField is the row-identity column used when a definition does not
// name one.
const DefaultIDField = "id"

// Definition is a persisted dataset specification. It stores no row data;
// it is re-evaluated against the current observation table on every use.
type Definition struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Columns     []string     `json:"columns"`
	Filters     []FilterSpec `json:"filters"`
	ExcludedIDs []string     `json:"excluded_ids"`
	IDField     string       `json:"id_field"`
}

// EffectiveIDField returns the configured id field or the default.
func (d *Definition) EffectiveIDField() string {
	if strings.TrimSpace(d.IDField) == "" {
		return DefaultIDField
	}
	return d.IDField
}

// excludedSet builds the exclusion lookup once per evaluation.
func (d *Definition) excludedSet() map[string]bool {
	if len(d.ExcludedIDs) == 0 {
		return nil
	}
	set := make(map[string]bool, len(d.ExcludedIDs))
	for _, id := range d.ExcludedIDs {
		if id != "" {
			set[id] = true
		}
	}
	return set
}

// Validate checks the definition against the current table schema. It reports
// the first blocking problem; filter problems are not blocking here because
// Evaluate skips malformed filters with warnings.
func (d *Definition) Validate(table *observation.Table) error {
	if strings.TrimSpace(d.Name) == "" {
		return errors.ValidationError("dataset name must not be empty")
	}
	if !table.HasColumn(d.EffectiveIDField()) {
		return errors.Newf("id field %q not present in source table", d.EffectiveIDField()).
			Component("dataset").
			Category(errors.CategoryValidation).
			Context("id_field", d.EffectiveIDField()).
			Build()
	}
	return nil
}

// Warning describes a non-fatal problem encountered while evaluating a
// definition, e.g. a filter referencing a column the source no longer has.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	WarnFilterSkipped = "filter_skipped"
	WarnColumnDropped = "column_dropped"
	WarnNoIDField     = "id_field_missing"
)

// ViewRow is one row of a materialized dataset view.
type ViewRow struct {
	ID       string            `json:"id"`
	Included bool              `json:"included"`
	Values   map[string]string `json:"values"`
}

// View is the result of applying a definition to the current table.
// It is ephemeral: recomputed per request, never persisted.
type View struct {
	Columns  []string  `json:"columns"`
	Rows     []ViewRow `json:"rows"`
	Total    int       `json:"total"`
	Included int       `json:"included"`
}

// Evaluate applies a definition to the observation table: filters first, then
// the column selection, then the per-row included flag from the exclusion
// set. Malformed filters and unknown columns are skipped and reported as
// warnings so one stale predicate never takes the whole dataset down. The
// function is pure; row order follows the source.
func Evaluate(table *observation.Table, def *Definition) (*View, []Warning) {
	var warnings []Warning

	// Partition filters into applicable and skipped.
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

	// Column selection: configured columns that exist, source order for the
	// values map keys is irrelevant, the Columns slice keeps the configured
	// order. An empty selection means all columns.
	columns := make([]string, 0, len(def.Columns))
	for _, c := range def.Columns {
		if table.HasColumn(c) {
			columns = append(columns, c)
		} else {
			warnings = append(warnings, Warning{
				Code:    WarnColumnDropped,
				Message: "column dropped: " + c + " not present in source table",
			})
		}
	}
	if len(columns) == 0 {
		columns = table.Columns()
	}

	idField := def.EffectiveIDField()
	hasIDField := table.HasColumn(idField)
	if !hasIDField {
		warnings = append(warnings, Warning{
			Code:    WarnNoIDField,
			Message: "id field " + idField + " not present in source table, all rows included",
		})
	}
	excluded := def.excludedSet()

	view := &View{Columns: columns}
	rows := table.Rows()
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

		values := make(map[string]string, len(columns))
		for _, c := range columns {
			values[c] = cellValue(row, c)
		}

		vr := ViewRow{Values: values, Included: true}
		if hasIDField {
			vr.ID = row.ID(idField)
			if excluded[vr.ID] {
				vr.Included = false
			}
		}
		if vr.Included {
			view.Included++
		}
		view.Rows = append(view.Rows, vr)
	}
	view.Total = len(view.Rows)

	return view, warnings
}

// cellValue renders a cell for the view, serving the derived year/month
// columns from the parsed date.
func cellValue(row *observation.Row, col string) string {
	switch col {
	case observation.ColYear, observation.ColMonth:
		if n, ok := row.Number(col); ok {
			return strconv.Itoa(int(n))
		}
		return ""
	default:
		return row.Get(col)
	}
}
