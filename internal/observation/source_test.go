package observation

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogelring/vogelring-go/internal/errors"
)

func writeSource(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "sightings.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSourceCachesParse(t *testing.T) {
	path := writeSource(t, t.TempDir(), sampleCSV)
	src := NewSource(path)

	reloads := 0
	src.OnReload = func(rows int, elapsed time.Duration) { reloads++ }

	first, err := src.Table()
	require.NoError(t, err)
	second, err := src.Table()
	require.NoError(t, err)

	assert.Same(t, first, second, "unchanged file must serve the cached table")
	assert.Equal(t, 1, reloads)
	assert.Equal(t, uint64(1), first.Generation())
}

func TestSourceReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, sampleCSV)
	src := NewSource(path)

	first, err := src.Table()
	require.NoError(t, err)
	require.Equal(t, 5, first.Len())

	// rewrite with one extra row and a newer mtime
	extra := sampleCSV + "6;282010;Graugans;W;BV;2024-08-01;Ostpark;München;48.121;11.621;ja\n"
	require.NoError(t, os.WriteFile(path, []byte(extra), 0o644))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	second, err := src.Table()
	require.NoError(t, err)
	assert.Equal(t, 6, second.Len())
	assert.Greater(t, second.Generation(), first.Generation(),
		"a reload must stamp a new generation")
}

func TestSourceInvalidate(t *testing.T) {
	path := writeSource(t, t.TempDir(), sampleCSV)
	src := NewSource(path)

	first, err := src.Table()
	require.NoError(t, err)

	src.Invalidate()

	second, err := src.Table()
	require.NoError(t, err)
	assert.NotSame(t, first, second, "invalidation must force a re-parse")
	assert.Equal(t, first.Len(), second.Len())
}

func TestSourceMissingFile(t *testing.T) {
	src := NewSource(filepath.Join(t.TempDir(), "absent.csv"))

	loadErrors := 0
	src.OnLoadError = func(elapsed time.Duration) { loadErrors++ }

	_, err := src.Table()
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration),
		"missing source file is a blocking configuration error")
	assert.Equal(t, 1, loadErrors)
}

func TestSourceParseFailure(t *testing.T) {
	path := writeSource(t, t.TempDir(), "")
	src := NewSource(path)

	loadErrors := 0
	src.OnLoadError = func(elapsed time.Duration) { loadErrors++ }

	_, err := src.Table()
	require.Error(t, err)
	assert.Equal(t, 1, loadErrors)
}
