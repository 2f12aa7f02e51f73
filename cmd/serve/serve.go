// Package serve runs the API server.
package serve

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"github.com/vogelring/vogelring-go/internal/api"
	"github.com/vogelring/vogelring-go/internal/conf"
	"github.com/vogelring/vogelring-go/internal/dataset"
	"github.com/vogelring/vogelring-go/internal/logging"
	"github.com/vogelring/vogelring-go/internal/observability"
	"github.com/vogelring/vogelring-go/internal/observation"
)

const shutdownTimeout = 10 * time.Second

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		Long:  "Start the HTTP API serving datasets, profiles and analyses over the sightings file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(settings)
		},
	}
}

func runServer(settings *conf.Settings) error {
	if err := conf.ValidateSettings(settings); err != nil {
		return err
	}

	logger := logging.ForService("server")

	metrics, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	source := observation.NewSource(settings.Source.Path)
	source.OnReload = func(rows int, elapsed time.Duration) {
		metrics.Source.RecordLoad("success", rows, elapsed.Seconds())
	}
	source.OnLoadError = func(elapsed time.Duration) {
		metrics.Source.RecordLoad("error", 0, elapsed.Seconds())
	}
	source.OnInvalidate = metrics.Source.RecordInvalidation

	// Fail fast when the sightings file is missing or unparseable.
	if _, err := source.Table(); err != nil {
		return err
	}

	datasets, err := dataset.NewStore(settings.DatasetsDir())
	if err != nil {
		return err
	}
	profiles, err := dataset.NewProfileStore(settings.ProfilesDir())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := source.Watch(ctx); err != nil {
		logger.Warn("source file watching disabled", "error", err)
	}

	e := echo.New()
	e.HideBanner = true
	controller := api.New(e, settings, source, datasets, profiles, metrics,
		log.New(os.Stderr, "api: ", log.LstdFlags))
	defer controller.Shutdown()

	errChan := make(chan error, 1)
	go func() {
		logger.Info("starting server", "listen", settings.WebServer.Listen)
		if err := e.Start(settings.WebServer.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
