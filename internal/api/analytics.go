// internal/api/analytics.go
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vogelring/vogelring-go/internal/analysis"
	"github.com/vogelring/vogelring-go/internal/dataset"
	"github.com/vogelring/vogelring-go/internal/errors"
	"github.com/vogelring/vogelring-go/internal/observation"
)

// MoultRequest is the body of the moult analysis endpoint. The optional
// dataset restricts the analysis to a stored dataset's included rows.
type MoultRequest struct {
	Dataset string `json:"dataset,omitempty"`
	analysis.MoultParams
}

// PlacesResponse is the places distribution payload.
type PlacesResponse struct {
	Year   int                      `json:"year"`
	Places []string                 `json:"places"`
	Counts []analysis.PlaceBinCount `json:"counts"`
	Bins   []string                 `json:"bins"`
}

// initAnalyticsRoutes registers the analysis endpoints
func (c *Controller) initAnalyticsRoutes() {
	group := c.Group.Group("/analytics")
	group.GET("/places", c.GetPlacesDistribution)
	group.POST("/moult", c.PostMoultAnalysis)
}

// analysisRows resolves the row set an analysis runs over: the full table,
// or a stored dataset's included rows when a dataset name is given.
func (c *Controller) analysisRows(table *observation.Table, datasetName string) ([]*observation.Row, error) {
	if datasetName == "" {
		return dataset.AllRows(table), nil
	}
	def, err := c.Datasets.Load(datasetName)
	if err != nil {
		return nil, err
	}
	rows, _ := dataset.Select(table, def, false)
	return rows, nil
}

// GetPlacesDistribution handles GET /api/v1/analytics/places. It counts
// distinct rings per two-month bin for up to five places of one year.
func (c *Controller) GetPlacesDistribution(ctx echo.Context) error {
	year := queryInt(ctx, "year", 0)
	if year <= 0 {
		return c.HandleError(ctx, errors.ValidationError("year is required"),
			"A valid year is required", http.StatusBadRequest)
	}
	places := ctx.QueryParams()["places"]

	table, err := c.Source.Table()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load observations", http.StatusInternalServerError)
	}
	rows, err := c.analysisRows(table, ctx.QueryParam("dataset"))
	if err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, err, "Dataset not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to load dataset", http.StatusInternalServerError)
	}

	start := time.Now()
	counts, err := analysis.PlacesDistribution(rows, year, places)
	if err != nil {
		if c.metrics != nil {
			c.metrics.Analysis.RecordRun("places", "error", time.Since(start).Seconds())
		}
		return c.HandleError(ctx, err, "Invalid places distribution request", http.StatusBadRequest)
	}
	if c.metrics != nil {
		c.metrics.Analysis.RecordRun("places", "success", time.Since(start).Seconds())
	}

	return ctx.JSON(http.StatusOK, &PlacesResponse{
		Year:   year,
		Places: places,
		Counts: counts,
		Bins:   analysis.BinLabels,
	})
}

// PostMoultAnalysis handles POST /api/v1/analytics/moult. Results are
// memoized per table load; a reload of the sightings file bumps the table
// generation and therefore yields a fresh cache key.
func (c *Controller) PostMoultAnalysis(ctx echo.Context) error {
	var req MoultRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid moult analysis request", http.StatusBadRequest)
	}
	if err := req.MoultParams.Validate(); err != nil {
		return c.HandleError(ctx, err, "Invalid moult analysis request", http.StatusBadRequest)
	}

	table, err := c.Source.Table()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load observations", http.StatusInternalServerError)
	}

	key := fmt.Sprintf("moult|%d|%s|%s", table.Generation(), req.Dataset, req.MoultParams.CacheKey())
	if cached, found := c.analysisCache.Get(key); found {
		if c.metrics != nil {
			c.metrics.Analysis.RecordCacheHit("moult")
		}
		return ctx.JSON(http.StatusOK, cached)
	}
	if c.metrics != nil {
		c.metrics.Analysis.RecordCacheMiss("moult")
	}

	rows, err := c.analysisRows(table, req.Dataset)
	if err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, err, "Dataset not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to load dataset", http.StatusInternalServerError)
	}

	start := time.Now()
	result, err := analysis.Moult(rows, &req.MoultParams)
	if err != nil {
		if c.metrics != nil {
			c.metrics.Analysis.RecordRun("moult", "error", time.Since(start).Seconds())
		}
		return c.HandleError(ctx, err, "Moult analysis failed", http.StatusBadRequest)
	}
	if c.metrics != nil {
		c.metrics.Analysis.RecordRun("moult", "success", time.Since(start).Seconds())
	}

	c.analysisCache.SetDefault(key, result)
	return ctx.JSON(http.StatusOK, result)
}
