// internal/api/profiles.go
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vogelring/vogelring-go/internal/dataset"
	"github.com/vogelring/vogelring-go/internal/errors"
)

// initProfileRoutes registers the filter profile endpoints
func (c *Controller) initProfileRoutes() {
	group := c.Group.Group("/profiles")
	group.GET("", c.ListProfiles)
	group.POST("", c.SaveProfile)
	group.GET("/:name", c.GetProfile)
	group.DELETE("/:name", c.DeleteProfile)
}

// ListProfiles handles GET /api/v1/profiles
func (c *Controller) ListProfiles(ctx echo.Context) error {
	names, err := c.Profiles.List()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list profiles", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, names)
}

// SaveProfile handles POST /api/v1/profiles. Saving an existing name
// overwrites the stored profile.
func (c *Controller) SaveProfile(ctx echo.Context) error {
	var profile dataset.Profile
	if err := ctx.Bind(&profile); err != nil {
		return c.HandleError(ctx, err, "Invalid profile", http.StatusBadRequest)
	}
	if profile.Name == "" {
		return c.HandleError(ctx, errors.ValidationError("profile name is required"),
			"Profile name is required", http.StatusBadRequest)
	}
	if err := c.Profiles.Save(&profile); err != nil {
		if errors.IsValidation(err) {
			return c.HandleError(ctx, err, "Invalid profile", http.StatusBadRequest)
		}
		return c.HandleError(ctx, err, "Failed to save profile", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusCreated, &profile)
}

// GetProfile handles GET /api/v1/profiles/:name
func (c *Controller) GetProfile(ctx echo.Context) error {
	profile, err := c.Profiles.Load(ctx.Param("name"))
	if err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, err, "Profile not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to load profile", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, profile)
}

// DeleteProfile handles DELETE /api/v1/profiles/:name
func (c *Controller) DeleteProfile(ctx echo.Context) error {
	if err := c.Profiles.Delete(ctx.Param("name")); err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, err, "Profile not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to delete profile", http.StatusInternalServerError)
	}
	return ctx.NoContent(http.StatusNoContent)
}
