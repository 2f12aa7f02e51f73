package conf

import (
	"log/slog"
	"strings"

	"github.com/vogelring/vogelring-go/internal/errors"
)

// ValidateSettings checks a Settings instance for values the application
// cannot run with. It returns the first blocking problem found.
func ValidateSettings(s *Settings) error {
	if strings.TrimSpace(s.Source.Path) == "" {
		return errors.Newf("source.path must not be empty").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if strings.TrimSpace(s.Storage.Path) == "" {
		return errors.Newf("storage.path must not be empty").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if strings.TrimSpace(s.WebServer.Listen) == "" {
		return errors.Newf("webserver.listen must not be empty").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if _, ok := ParseLogLevel(s.Log.Level); !ok {
		return errors.Newf("log.level %q is not one of trace, debug, info, warn, error", s.Log.Level).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

// ParseLogLevel maps a configured level name to a slog level.
func ParseLogLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return slog.Level(-8), true
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}
