// internal/api/datasets.go
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vogelring/vogelring-go/internal/dataset"
	"github.com/vogelring/vogelring-go/internal/errors"
)

// DatasetView is the materialized-view API response: the evaluated rows plus
// any warnings the evaluation produced.
type DatasetView struct {
	Name     string            `json:"name"`
	View     *dataset.View     `json:"view"`
	Warnings []dataset.Warning `json:"warnings,omitempty"`
}

// DuplicateRequest is the body of the dataset duplicate endpoint.
type DuplicateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// initDatasetRoutes registers all dataset CRUD endpoints
func (c *Controller) initDatasetRoutes() {
	group := c.Group.Group("/datasets")
	group.GET("", c.ListDatasets)
	group.POST("", c.CreateDataset)
	group.GET("/:name", c.GetDataset)
	group.PUT("/:name", c.UpdateDataset)
	group.DELETE("/:name", c.DeleteDataset)
	group.GET("/:name/view", c.GetDatasetView)
	group.POST("/:name/duplicate", c.DuplicateDataset)
}

// ListDatasets handles GET /api/v1/datasets
func (c *Controller) ListDatasets(ctx echo.Context) error {
	summaries, err := c.Datasets.List()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list datasets", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, summaries)
}

// CreateDataset handles POST /api/v1/datasets
func (c *Controller) CreateDataset(ctx echo.Context) error {
	var def dataset.Definition
	if err := ctx.Bind(&def); err != nil {
		return c.HandleError(ctx, err, "Invalid dataset definition", http.StatusBadRequest)
	}
	if def.Name == "" {
		return c.HandleError(ctx, errors.ValidationError("dataset name is required"),
			"Dataset name is required", http.StatusBadRequest)
	}
	if c.Datasets.Exists(def.Name) {
		return c.HandleError(ctx, errors.ValidationError("dataset already exists"),
			"A dataset with this name already exists", http.StatusConflict)
	}

	table, err := c.Source.Table()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load observations", http.StatusInternalServerError)
	}
	if err := def.Validate(table); err != nil {
		return c.HandleError(ctx, err, "Invalid dataset definition", http.StatusBadRequest)
	}

	if err := c.Datasets.Save(&def); err != nil {
		return c.HandleError(ctx, err, "Failed to save dataset", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusCreated, &def)
}

// GetDataset handles GET /api/v1/datasets/:name
func (c *Controller) GetDataset(ctx echo.Context) error {
	def, err := c.Datasets.Load(ctx.Param("name"))
	if err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, err, "Dataset not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to load dataset", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, def)
}

// UpdateDataset handles PUT /api/v1/datasets/:name
func (c *Controller) UpdateDataset(ctx echo.Context) error {
	name := ctx.Param("name")
	existing, err := c.Datasets.Load(name)
	if err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, err, "Dataset not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to load dataset", http.StatusInternalServerError)
	}

	var def dataset.Definition
	if err := ctx.Bind(&def); err != nil {
		return c.HandleError(ctx, err, "Invalid dataset definition", http.StatusBadRequest)
	}
	// identity is fixed by the stored document, not the request body
	def.ID = existing.ID
	def.Name = existing.Name
	def.CreatedAt = existing.CreatedAt

	table, err := c.Source.Table()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load observations", http.StatusInternalServerError)
	}
	if err := def.Validate(table); err != nil {
		return c.HandleError(ctx, err, "Invalid dataset definition", http.StatusBadRequest)
	}

	if err := c.Datasets.Save(&def); err != nil {
		return c.HandleError(ctx, err, "Failed to save dataset", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, &def)
}

// DeleteDataset handles DELETE /api/v1/datasets/:name
func (c *Controller) DeleteDataset(ctx echo.Context) error {
	if err := c.Datasets.Delete(ctx.Param("name")); err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, err, "Dataset not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to delete dataset", http.StatusInternalServerError)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// GetDatasetView handles GET /api/v1/datasets/:name/view. The stored
// definition is re-evaluated against the current observation table.
func (c *Controller) GetDatasetView(ctx echo.Context) error {
	name := ctx.Param("name")
	def, err := c.Datasets.Load(name)
	if err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, err, "Dataset not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to load dataset", http.StatusInternalServerError)
	}

	table, err := c.Source.Table()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load observations", http.StatusInternalServerError)
	}

	view, warnings := dataset.Evaluate(table, def)
	return ctx.JSON(http.StatusOK, &DatasetView{
		Name:     def.Name,
		View:     view,
		Warnings: warnings,
	})
}

// DuplicateDataset handles POST /api/v1/datasets/:name/duplicate
func (c *Controller) DuplicateDataset(ctx echo.Context) error {
	var req DuplicateRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid duplicate request", http.StatusBadRequest)
	}

	clone, err := c.Datasets.Duplicate(ctx.Param("name"), req.Name, req.Description)
	if err != nil {
		switch {
		case errors.IsNotFound(err):
			return c.HandleError(ctx, err, "Dataset not found", http.StatusNotFound)
		case errors.IsValidation(err):
			return c.HandleError(ctx, err, "Invalid duplicate request", http.StatusBadRequest)
		default:
			return c.HandleError(ctx, err, "Failed to duplicate dataset", http.StatusInternalServerError)
		}
	}
	return ctx.JSON(http.StatusCreated, clone)
}
