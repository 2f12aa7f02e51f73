// Package conf loads and persists the application configuration.
package conf

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/vogelring/vogelring-go/internal/errors"
)

// SourceSettings describes the observation source file.
type SourceSettings struct {
	Path string `yaml:"path"` // path to the semicolon-separated sightings file
}

// StorageSettings describes where dataset and profile documents are kept.
type StorageSettings struct {
	Path string `yaml:"path"` // root directory for persisted JSON documents
}

// WebServerSettings describes the HTTP API server.
type WebServerSettings struct {
	Listen string `yaml:"listen"` // listen address, e.g. ":8080"
	Debug  bool   `yaml:"debug"`  // enable per-request debug logging
}

// LogSettings describes file logging for the API server.
type LogSettings struct {
	Level string `yaml:"level"` // minimum level: trace, debug, info, warn, error
	Path  string `yaml:"path"`  // structured log file path
}

// Settings is the root configuration structure.
type Settings struct {
	Debug     bool              `yaml:"debug"`
	Source    SourceSettings    `yaml:"source"`
	Storage   StorageSettings   `yaml:"storage"`
	WebServer WebServerSettings `yaml:"webserver"`
	Log       LogSettings       `yaml:"log"`
}

// DatasetsDir returns the directory holding dataset definition documents.
func (s *Settings) DatasetsDir() string {
	return filepath.Join(s.Storage.Path, "datasets")
}

// ProfilesDir returns the directory holding filter profile documents.
func (s *Settings) ProfilesDir() string {
	return filepath.Join(s.Storage.Path, "profiles")
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into a new
// Settings instance and makes it the current one.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Environment variables take precedence over file values,
	// e.g. VOGELRING_SOURCE_PATH overrides source.path.
	viper.SetEnvPrefix("VOGELRING")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set default values for each configuration parameter,
	// function defined in defaults.go
	setDefaultConfig()

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, run on defaults and environment only
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPaths returns the list of directories searched for config.yaml.
// If a config.yaml is found in one of them, only that path is returned.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "get-home-directory").
			Build()
	}

	configPaths := []string{
		".",
		filepath.Join(homeDir, ".config", "vogelring"),
		"/etc/vogelring",
	}

	for _, path := range configPaths {
		configFile := filepath.Join(path, "config.yaml")
		if _, err := os.Stat(configFile); err == nil {
			return []string{path}, nil
		}
	}

	return configPaths, nil
}

// Setting returns the current settings instance, initializing it if necessary.
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// GetSettings returns the current settings instance.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SetTestSettings replaces the current settings instance. Intended for tests.
func SetTestSettings(s *Settings) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	settingsInstance = s
}

// SaveYAMLConfig writes settings to configPath as YAML. The write goes through
// a temporary file and rename so a crash never leaves a truncated config.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary config file: %w", err)
	}
	tempName := tempFile.Name()

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		os.Remove(tempName)
		return fmt.Errorf("error writing temporary config file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("error closing temporary config file: %w", err)
	}

	if err := os.Rename(tempName, configPath); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("error replacing config file: %w", err)
	}

	return nil
}
