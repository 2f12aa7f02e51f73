// internal/api/mapview.go
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vogelring/vogelring-go/internal/analysis"
	"github.com/vogelring/vogelring-go/internal/errors"
)

// initMapRoutes registers the map endpoints
func (c *Controller) initMapRoutes() {
	group := c.Group.Group("/map")
	group.GET("/points", c.GetMapPoints)
}

// GetMapPoints handles GET /api/v1/map/points. Optional query parameters:
// dataset restricts to a stored dataset, color selects the encoding mode
// (category or numeric) and column names the encoded column.
func (c *Controller) GetMapPoints(ctx echo.Context) error {
	opts := analysis.MapOptions{Mode: analysis.ColorNone}
	switch mode := ctx.QueryParam("color"); mode {
	case "", string(analysis.ColorNone):
	case string(analysis.ColorCategorical):
		opts.Mode = analysis.ColorCategorical
	case string(analysis.ColorNumeric):
		opts.Mode = analysis.ColorNumeric
	default:
		return c.HandleError(ctx, errors.ValidationError("unknown color mode"),
			"Color mode must be category or numeric", http.StatusBadRequest)
	}
	if opts.Mode != analysis.ColorNone {
		opts.Column = ctx.QueryParam("column")
		if opts.Column == "" {
			return c.HandleError(ctx, errors.ValidationError("color column is required"),
				"A column is required for the chosen color mode", http.StatusBadRequest)
		}
	}

	table, err := c.Source.Table()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load observations", http.StatusInternalServerError)
	}
	if opts.Column != "" && !table.HasColumn(opts.Column) {
		return c.HandleError(ctx, errors.ValidationError("unknown column"),
			"The requested color column does not exist", http.StatusBadRequest)
	}

	rows, err := c.analysisRows(table, ctx.QueryParam("dataset"))
	if err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, err, "Dataset not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to load dataset", http.StatusInternalServerError)
	}

	start := time.Now()
	view := analysis.BuildMap(rows, opts)
	if c.metrics != nil {
		c.metrics.Analysis.RecordRun("map", "success", time.Since(start).Seconds())
	}
	return ctx.JSON(http.StatusOK, view)
}
