package dataset

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vogelring/vogelring-go/internal/errors"
	"github.com/vogelring/vogelring-go/internal/logging"
)

// safeName maps a user-facing name to a filesystem-safe document name.
// Alphanumerics, dash, underscore and space survive; spaces become
// underscores. Returns "" for names with nothing usable in them.
func safeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == ' ':
			b.WriteRune(r)
		}
	}
	return strings.ReplaceAll(strings.TrimSpace(b.String()), " ", "_")
}

// writeJSONFile writes a document atomically: temp file in the same
// directory, then rename.
func writeJSONFile(path string, doc any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.New(err).
			Component("dataset").
			Category(errors.CategoryStorage).
			Context("operation", "marshal-document").
			Build()
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".doc-*.json")
	if err != nil {
		return errors.New(err).
			Component("dataset").
			Category(errors.CategoryStorage).
			FileContext(path).
			Context("operation", "create-temp").
			Build()
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.New(err).
			Component("dataset").
			Category(errors.CategoryStorage).
			FileContext(path).
			Context("operation", "write-temp").
			Build()
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.New(err).
			Component("dataset").
			Category(errors.CategoryStorage).
			FileContext(path).
			Context("operation", "close-temp").
			Build()
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.New(err).
			Component("dataset").
			Category(errors.CategoryStorage).
			FileContext(path).
			Context("operation", "rename-temp").
			Build()
	}
	return nil
}

// Summary is a list entry for selection UIs.
type Summary struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store persists dataset definitions, one JSON document per name.
type Store struct {
	dir string
	log *slog.Logger
}

// NewStore creates the store directory if needed and returns a Store.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.New(err).
			Component("dataset").
			Category(errors.CategoryStorage).
			FileContext(dir).
			Context("operation", "create-store-dir").
			Build()
	}
	logger := logging.ForService("dataset-store")
	if logger == nil {
		logger = slog.Default().With("service", "dataset-store")
	}
	return &Store{dir: dir, log: logger}, nil
}

func (s *Store) path(name string) (string, error) {
	safe := safeName(name)
	if safe == "" {
		return "", errors.ValidationError("dataset name must contain letters, digits, dash or underscore")
	}
	return filepath.Join(s.dir, safe+".json"), nil
}

// Save writes or overwrites a definition by name. A fresh definition gets an
// id and created_at; updated_at is always bumped.
func (s *Store) Save(def *Definition) error {
	if strings.TrimSpace(def.Name) == "" {
		return errors.ValidationError("dataset name must not be empty")
	}
	path, err := s.path(def.Name)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Truncate(time.Second)
	if def.ID == "" {
		def.ID = uuid.New().String()
	}
	if def.CreatedAt.IsZero() {
		def.CreatedAt = now
	}
	def.UpdatedAt = now
	if def.IDField == "" {
		def.IDField = DefaultIDField
	}

	if err := writeJSONFile(path, def); err != nil {
		return err
	}
	s.log.Info("dataset saved", "name", def.Name, "filters", len(def.Filters), "excluded", len(def.ExcludedIDs))
	return nil
}

// Load returns the definition stored under name.
func (s *Store) Load(name string) (*Definition, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFoundError("dataset", name)
		}
		return nil, errors.New(err).
			Component("dataset").
			Category(errors.CategoryStorage).
			FileContext(path).
			Context("operation", "read-document").
			Build()
	}

	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, errors.New(err).
			Component("dataset").
			Category(errors.CategoryStorage).
			FileContext(path).
			Context("operation", "unmarshal-document").
			Context("dataset", name).
			Build()
	}
	return &def, nil
}

// Delete removes the definition stored under name. Deleting an unknown name
// is reported as not-found but leaves the store unchanged.
func (s *Store) Delete(name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return errors.NotFoundError("dataset", name)
		}
		return errors.New(err).
			Component("dataset").
			Category(errors.CategoryStorage).
			FileContext(path).
			Context("operation", "delete-document").
			Build()
	}
	s.log.Info("dataset deleted", "name", name)
	return nil
}

// List returns summaries of all stored definitions, sorted by name.
// Unreadable documents are skipped so one corrupt file never hides the rest.
func (s *Store) List() ([]Summary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.New(err).
			Component("dataset").
			Category(errors.CategoryStorage).
			FileContext(s.dir).
			Context("operation", "list-store-dir").
			Build()
	}

	var summaries []Summary
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			s.log.Warn("skipping unreadable dataset document", "file", entry.Name(), "error", err)
			continue
		}
		var def Definition
		if err := json.Unmarshal(data, &def); err != nil {
			s.log.Warn("skipping malformed dataset document", "file", entry.Name(), "error", err)
			continue
		}
		summaries = append(summaries, Summary{
			Name:        def.Name,
			Description: def.Description,
			UpdatedAt:   def.UpdatedAt,
		})
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Name < summaries[j].Name })
	return summaries, nil
}

// Exists reports whether a definition is stored under name.
func (s *Store) Exists(name string) bool {
	path, err := s.path(name)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Duplicate implements "save as copy": the definition stored under baseName
// is cloned under newName with a fresh id and timestamps. newName must be
// distinct and unused.
func (s *Store) Duplicate(baseName, newName, newDescription string) (*Definition, error) {
	if safeName(baseName) == safeName(newName) {
		return nil, errors.ValidationError("copy must use a name distinct from the original")
	}
	if s.Exists(newName) {
		return nil, errors.Newf("dataset %q already exists", newName).
			Component("dataset").
			Category(errors.CategoryValidation).
			Context("name", newName).
			Build()
	}

	base, err := s.Load(baseName)
	if err != nil {
		return nil, err
	}

	clone := *base
	clone.ID = ""
	clone.Name = newName
	clone.CreatedAt = time.Time{}
	clone.UpdatedAt = time.Time{}
	if newDescription != "" {
		clone.Description = newDescription
	}
	clone.Columns = append([]string(nil), base.Columns...)
	clone.Filters = append([]FilterSpec(nil), base.Filters...)
	clone.ExcludedIDs = append([]string(nil), base.ExcludedIDs...)

	if err := s.Save(&clone); err != nil {
		return nil, err
	}
	return &clone, nil
}
