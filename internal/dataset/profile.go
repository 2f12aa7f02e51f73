package dataset

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vogelring/vogelring-go/internal/errors"
	"github.com/vogelring/vogelring-go/internal/logging"
)

// Profile is a named table-view configuration: a column selection plus filter
// state for the observations table. Profiles are independent of dataset
// definitions and carry no exclusion set.
type Profile struct {
	Name    string       `json:"name"`
	Columns []string     `json:"columns"`
	Filters []FilterSpec `json:"filters"`
}

// ProfileStore persists filter profiles, one JSON document per name.
type ProfileStore struct {
	dir string
	log *slog.Logger
}

// NewProfileStore creates the store directory if needed.
func NewProfileStore(dir string) (*ProfileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.New(err).
			Component("dataset").
			Category(errors.CategoryStorage).
			FileContext(dir).
			Context("operation", "create-profile-dir").
			Build()
	}
	logger := logging.ForService("profile-store")
	if logger == nil {
		logger = slog.Default().With("service", "profile-store")
	}
	return &ProfileStore{dir: dir, log: logger}, nil
}

func (s *ProfileStore) path(name string) (string, error) {
	safe := safeName(name)
	if safe == "" {
		return "", errors.ValidationError("profile name must contain letters, digits, dash or underscore")
	}
	return filepath.Join(s.dir, safe+".json"), nil
}

// Save writes or overwrites a profile by name.
func (s *ProfileStore) Save(p *Profile) error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.ValidationError("profile name must not be empty")
	}
	path, err := s.path(p.Name)
	if err != nil {
		return err
	}
	if err := writeJSONFile(path, p); err != nil {
		return err
	}
	s.log.Info("profile saved", "name", p.Name, "filters", len(p.Filters))
	return nil
}

// Load returns the profile stored under name.
func (s *ProfileStore) Load(name string) (*Profile, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFoundError("profile", name)
		}
		return nil, errors.New(err).
			Component("dataset").
			Category(errors.CategoryStorage).
			FileContext(path).
			Context("operation", "read-profile").
			Build()
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.New(err).
			Component("dataset").
			Category(errors.CategoryStorage).
			FileContext(path).
			Context("operation", "unmarshal-profile").
			Build()
	}
	return &p, nil
}

// Delete removes the profile stored under name.
func (s *ProfileStore) Delete(name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return errors.NotFoundError("profile", name)
		}
		return errors.New(err).
			Component("dataset").
			Category(errors.CategoryStorage).
			FileContext(path).
			Context("operation", "delete-profile").
			Build()
	}
	return nil
}

// List returns the names of all stored profiles, sorted.
func (s *ProfileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.New(err).
			Component("dataset").
			Category(errors.CategoryStorage).
			FileContext(s.dir).
			Context("operation", "list-profile-dir").
			Build()
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			s.log.Warn("skipping unreadable profile document", "file", entry.Name(), "error", err)
			continue
		}
		var p Profile
		if err := json.Unmarshal(data, &p); err != nil {
			s.log.Warn("skipping malformed profile document", "file", entry.Name(), "error", err)
			continue
		}
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names, nil
}
