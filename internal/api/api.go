// internal/api/api.go
package api

import (
	"io"
	"log"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"

	"github.com/vogelring/vogelring-go/internal/conf"
	"github.com/vogelring/vogelring-go/internal/dataset"
	"github.com/vogelring/vogelring-go/internal/logging"
	"github.com/vogelring/vogelring-go/internal/observability"
	"github.com/vogelring/vogelring-go/internal/observation"
)

// Controller manages the API routes and handlers
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	Settings *conf.Settings
	Source   *observation.Source
	Datasets *dataset.Store
	Profiles *dataset.ProfileStore

	logger         *log.Logger
	apiLogger      *slog.Logger
	apiLevelVar    *slog.LevelVar
	apiLoggerClose func() error
	metrics        *observability.Metrics
	analysisCache  *cache.Cache // memoized analysis results, keyed per table load
	startTime      time.Time
}

// New creates a new API controller and registers its routes on the /api/v1
// group of the given echo instance.
func New(e *echo.Echo, settings *conf.Settings, source *observation.Source,
	datasets *dataset.Store, profiles *dataset.ProfileStore,
	metrics *observability.Metrics, logger *log.Logger) *Controller {
	c := NewWithOptions(e, settings, source, datasets, profiles, metrics, logger, true)
	return c
}

// NewWithOptions creates a new API controller with optional route
// initialization. Set initializeRoutes to false in tests that register a
// single handler by hand.
func NewWithOptions(e *echo.Echo, settings *conf.Settings, source *observation.Source,
	datasets *dataset.Store, profiles *dataset.ProfileStore,
	metrics *observability.Metrics, logger *log.Logger, initializeRoutes bool) *Controller {

	if logger == nil {
		logger = log.Default()
	}

	c := &Controller{
		Echo:          e,
		Settings:      settings,
		Source:        source,
		Datasets:      datasets,
		Profiles:      profiles,
		logger:        logger,
		metrics:       metrics,
		analysisCache: cache.New(5*time.Minute, 10*time.Minute),
		startTime:     time.Now(),
	}

	// Structured logger for API requests, with a disabled fallback when the
	// log file cannot be opened.
	initialLevel := slog.LevelInfo
	if settings.WebServer.Debug {
		initialLevel = slog.LevelDebug
	}
	c.apiLevelVar = new(slog.LevelVar)
	c.apiLevelVar.Set(initialLevel)

	apiLogger, closeFunc, err := newAPIFileLogger(settings.Log.Path, c.apiLevelVar)
	if err != nil {
		logger.Printf("Warning: Failed to initialize API structured logger: %v", err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: c.apiLevelVar})
		c.apiLogger = slog.New(fbHandler).With("service", "api")
		c.apiLoggerClose = func() error { return nil }
	} else {
		c.apiLogger = apiLogger
		c.apiLoggerClose = closeFunc
	}

	c.Group = e.Group("/api/v1")
	c.Group.Use(middleware.Recover())
	c.Group.Use(middleware.CORS())
	c.Group.Use(middleware.BodyLimit("1M"))
	c.Group.Use(c.LoggingMiddleware())

	if initializeRoutes {
		c.initRoutes()
	}

	return c
}

// LoggingMiddleware creates a middleware function that logs API requests and
// records request metrics.
func (c *Controller) LoggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()

			err := next(ctx)

			req := ctx.Request()
			res := ctx.Response()
			elapsed := time.Since(start)

			if c.metrics != nil {
				c.metrics.HTTP.RecordHTTPRequest(req.Method, ctx.Path(), res.Status, elapsed.Seconds())
			}

			if c.apiLogger == nil {
				return err
			}
			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.String("query", req.URL.RawQuery),
				slog.Int("status", res.Status),
				slog.String("ip", ctx.RealIP()),
				slog.Int64("latency_ms", elapsed.Milliseconds()),
			}
			if err != nil {
				attrs = append(attrs, slog.Any("error", err))
			}
			c.apiLogger.LogAttrs(req.Context(), slog.LevelInfo, "API Request", attrs...)

			return err
		}
	}
}

// initRoutes registers all API endpoints
func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.HealthCheck)

	routeInitializers := []struct {
		name string
		fn   func()
	}{
		{"dataset routes", c.initDatasetRoutes},
		{"profile routes", c.initProfileRoutes},
		{"observation routes", c.initObservationRoutes},
		{"analytics routes", c.initAnalyticsRoutes},
		{"map routes", c.initMapRoutes},
	}
	for _, initializer := range routeInitializers {
		initializer.fn()
		c.Debug("Initialized %s", initializer.name)
	}

	if c.metrics != nil {
		c.Echo.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}
}

// newAPIFileLogger opens the structured request log.
func newAPIFileLogger(path string, level slog.Leveler) (*slog.Logger, func() error, error) {
	if strings.TrimSpace(path) == "" {
		path = "logs/web.log"
	}
	return logging.NewFileLogger(path, "api", level)
}

// HealthCheck handles the API health check endpoint
func (c *Controller) HealthCheck(ctx echo.Context) error {
	response := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	}

	sourceStatus := "loaded"
	table, err := c.Source.Table()
	if err != nil {
		sourceStatus = "unavailable"
		response["status"] = "degraded"
		response["source_error"] = err.Error()
	} else {
		response["source_rows"] = table.Len()
	}
	response["source_status"] = sourceStatus

	uptime := time.Since(c.startTime)
	response["uptime"] = uptime.String()
	response["uptime_seconds"] = uptime.Seconds()

	return ctx.JSON(http.StatusOK, response)
}

// Shutdown flushes caches and closes the API log file.
func (c *Controller) Shutdown() {
	if c.analysisCache != nil {
		c.analysisCache.Flush()
	}
	if c.apiLoggerClose != nil {
		if err := c.apiLoggerClose(); err != nil {
			c.logger.Printf("Error closing API log file: %v", err)
		}
	}
}

// Debug logs a debug message when web server debugging is enabled.
func (c *Controller) Debug(format string, v ...any) {
	if c.Settings != nil && c.Settings.WebServer.Debug {
		c.logger.Printf(format, v...)
	}
}

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"` // Unique identifier for tracking this error
}

// NewErrorResponse creates a new API error response
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// generateCorrelationID creates a short unique identifier for error tracking.
func generateCorrelationID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return id[:8]
}

// HandleError constructs and returns an appropriate error response
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	errorResp := NewErrorResponse(err, message, code)

	c.logger.Printf("API Error [%s] from %s: %s: %v",
		errorResp.CorrelationID, ctx.RealIP(), message, err)

	if c.apiLogger != nil {
		c.apiLogger.Error("API Error",
			"correlation_id", errorResp.CorrelationID,
			"message", message,
			"error", errorResp.Error,
			"code", code,
			"path", ctx.Request().URL.Path,
			"method", ctx.Request().Method,
			"ip", ctx.RealIP(),
		)
	}
	if c.metrics != nil {
		c.metrics.HTTP.RecordHTTPRequestError(ctx.Request().Method, ctx.Path(), errorType(code))
	}

	return ctx.JSON(code, errorResp)
}

func errorType(code int) string {
	switch {
	case code == 404:
		return "not_found"
	case code >= 400 && code < 500:
		return "validation"
	default:
		return "system"
	}
}
