// internal/api/observations.go
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/vogelring/vogelring-go/internal/analysis"
	"github.com/vogelring/vogelring-go/internal/dataset"
	"github.com/vogelring/vogelring-go/internal/errors"
	"github.com/vogelring/vogelring-go/internal/observation"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 1000
)

// ObservationsPage is a paginated slice of the observation table.
type ObservationsPage struct {
	Columns  []string          `json:"columns"`
	Rows     []dataset.ViewRow `json:"rows"`
	Total    int               `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
	Warnings []dataset.Warning `json:"warnings,omitempty"`
}

// ColumnInfo describes one column of the observation table.
type ColumnInfo struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// ColumnsResponse lists the table columns plus the subsets usable as map
// color encodings.
type ColumnsResponse struct {
	Columns     []ColumnInfo `json:"columns"`
	Categorical []string     `json:"categorical"`
	Numeric     []string     `json:"numeric"`
}

// initObservationRoutes registers the raw observation endpoints
func (c *Controller) initObservationRoutes() {
	group := c.Group.Group("/observations")
	group.GET("", c.GetObservations)
	group.GET("/columns", c.GetObservationColumns)
	group.GET("/places", c.GetObservationPlaces)
	group.GET("/years", c.GetObservationYears)
}

// GetObservations handles GET /api/v1/observations. An optional profile
// query parameter applies a stored filter profile; limit and offset paginate
// the result.
func (c *Controller) GetObservations(ctx echo.Context) error {
	table, err := c.Source.Table()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load observations", http.StatusInternalServerError)
	}

	def := &dataset.Definition{}
	if name := ctx.QueryParam("profile"); name != "" {
		profile, err := c.Profiles.Load(name)
		if err != nil {
			if errors.IsNotFound(err) {
				return c.HandleError(ctx, err, "Profile not found", http.StatusNotFound)
			}
			return c.HandleError(ctx, err, "Failed to load profile", http.StatusInternalServerError)
		}
		def.Columns = profile.Columns
		def.Filters = profile.Filters
	}

	limit := queryInt(ctx, "limit", defaultPageLimit)
	if limit < 1 || limit > maxPageLimit {
		return c.HandleError(ctx, errors.ValidationError("limit out of range"),
			"Limit must be between 1 and 1000", http.StatusBadRequest)
	}
	offset := queryInt(ctx, "offset", 0)
	if offset < 0 {
		return c.HandleError(ctx, errors.ValidationError("offset must not be negative"),
			"Offset must not be negative", http.StatusBadRequest)
	}

	view, warnings := dataset.Evaluate(table, def)

	page := &ObservationsPage{
		Columns:  view.Columns,
		Rows:     []dataset.ViewRow{},
		Total:    len(view.Rows),
		Limit:    limit,
		Offset:   offset,
		Warnings: warnings,
	}
	if offset < len(view.Rows) {
		end := offset + limit
		if end > len(view.Rows) {
			end = len(view.Rows)
		}
		page.Rows = view.Rows[offset:end]
	}
	return ctx.JSON(http.StatusOK, page)
}

// GetObservationColumns handles GET /api/v1/observations/columns
func (c *Controller) GetObservationColumns(ctx echo.Context) error {
	table, err := c.Source.Table()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load observations", http.StatusInternalServerError)
	}

	resp := &ColumnsResponse{
		Categorical: analysis.PlottableCategoricalColumns(table),
		Numeric:     analysis.PlottableNumericColumns(table),
	}
	for _, col := range table.Columns() {
		resp.Columns = append(resp.Columns, ColumnInfo{
			Name: col,
			Kind: kindName(observation.ColumnKind(col)),
		})
	}
	return ctx.JSON(http.StatusOK, resp)
}

// GetObservationPlaces handles GET /api/v1/observations/places
func (c *Controller) GetObservationPlaces(ctx echo.Context) error {
	table, err := c.Source.Table()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load observations", http.StatusInternalServerError)
	}
	limit := queryInt(ctx, "limit", 0)
	return ctx.JSON(http.StatusOK, table.PlacesByFrequency(limit))
}

// GetObservationYears handles GET /api/v1/observations/years
func (c *Controller) GetObservationYears(ctx echo.Context) error {
	table, err := c.Source.Table()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load observations", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, table.Years())
}

func kindName(kind observation.Kind) string {
	switch kind {
	case observation.KindDate:
		return "date"
	case observation.KindNumber:
		return "number"
	case observation.KindBool:
		return "bool"
	default:
		return "text"
	}
}

// queryInt parses an integer query parameter. Absent values fall back to the
// default; malformed values come back as -1 for the caller's range check.
func queryInt(ctx echo.Context, name string, fallback int) int {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return v
}
