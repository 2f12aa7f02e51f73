// api_test.go: tests for the v1 API endpoints.

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogelring/vogelring-go/internal/conf"
	"github.com/vogelring/vogelring-go/internal/dataset"
	"github.com/vogelring/vogelring-go/internal/observability"
	"github.com/vogelring/vogelring-go/internal/observation"
)

const testCSV = `id;ring;species;date;place;area;lat;lon;status;melder
1;A;Kanadagans;2024-07-15;X;Nord;50.10;8.60;BV;Huber
2;A;Kanadagans;2024-10-02;X;Nord;50.10;8.60;;Huber
3;B;Kanadagans;2024-07-20;X;Nord;50.11;8.61;BV;Meier
4;B;Kanadagans;2024-09-05;Y;Sued;50.40;8.90;;Meier
5;C;Graugans;2023-05-01;X;Nord;NA;NA;;Huber
6;D;Graugans;15.03.2024;Z;West;49.90;8.40;;Schmidt
`

func setupTestEnvironment(t *testing.T) (*echo.Echo, *Controller) {
	t.Helper()

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "sightings.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(testCSV), 0o644))

	settings := &conf.Settings{}
	settings.Source.Path = csvPath
	settings.Storage.Path = filepath.Join(dir, "storage")
	settings.WebServer.Listen = ":0"
	settings.Log.Path = filepath.Join(dir, "logs", "web.log")

	datasets, err := dataset.NewStore(settings.DatasetsDir())
	require.NoError(t, err)
	profiles, err := dataset.NewProfileStore(settings.ProfilesDir())
	require.NoError(t, err)

	metrics, err := observability.NewMetrics()
	require.NoError(t, err)

	e := echo.New()
	controller := New(e, settings, observation.NewSource(csvPath), datasets, profiles, metrics, nil)
	t.Cleanup(controller.Shutdown)
	return e, controller
}

func doRequest(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthCheck(t *testing.T) {
	e, _ := setupTestEnvironment(t)

	rec := doRequest(t, e, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	response := decode[map[string]any](t, rec)
	assert.Equal(t, "healthy", response["status"])
	assert.Equal(t, "loaded", response["source_status"])
	assert.Equal(t, float64(6), response["source_rows"])
}

func TestDatasetLifecycle(t *testing.T) {
	e, _ := setupTestEnvironment(t)

	body := `{
		"name": "kanadagans-2024",
		"description": "Kanadagans observations",
		"columns": ["ring", "species", "date", "place"],
		"filters": [{"type": "equals", "column": "species", "value": "Kanadagans"}],
		"excluded_ids": ["3"]
	}`

	rec := doRequest(t, e, http.MethodPost, "/api/v1/datasets", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[dataset.Definition](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "id", created.IDField)

	rec = doRequest(t, e, http.MethodGet, "/api/v1/datasets", "")
	require.Equal(t, http.StatusOK, rec.Code)
	summaries := decode[[]dataset.Summary](t, rec)
	require.Len(t, summaries, 1)
	assert.Equal(t, "kanadagans-2024", summaries[0].Name)

	rec = doRequest(t, e, http.MethodGet, "/api/v1/datasets/kanadagans-2024/view", "")
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[DatasetView](t, rec)
	assert.Equal(t, 4, view.View.Total, "four Kanadagans rows match")
	assert.Equal(t, 3, view.View.Included, "row 3 is excluded")
	for _, row := range view.View.Rows {
		if row.ID == "3" {
			assert.False(t, row.Included)
		} else {
			assert.True(t, row.Included)
		}
	}

	// update: drop the exclusion
	created.ExcludedIDs = nil
	update, err := json.Marshal(created)
	require.NoError(t, err)
	rec = doRequest(t, e, http.MethodPut, "/api/v1/datasets/kanadagans-2024", string(update))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, e, http.MethodGet, "/api/v1/datasets/kanadagans-2024/view", "")
	require.Equal(t, http.StatusOK, rec.Code)
	view = decode[DatasetView](t, rec)
	assert.Equal(t, 4, view.View.Included)

	rec = doRequest(t, e, http.MethodPost, "/api/v1/datasets/kanadagans-2024/duplicate",
		`{"name": "Kopie", "description": "copy"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	clone := decode[dataset.Definition](t, rec)
	assert.Equal(t, "Kopie", clone.Name)
	assert.NotEqual(t, created.ID, clone.ID)

	rec = doRequest(t, e, http.MethodDelete, "/api/v1/datasets/kanadagans-2024", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, e, http.MethodGet, "/api/v1/datasets/kanadagans-2024", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	errResp := decode[ErrorResponse](t, rec)
	assert.Len(t, errResp.CorrelationID, 8)
	assert.Equal(t, http.StatusNotFound, errResp.Code)
}

func TestCreateDatasetValidation(t *testing.T) {
	e, _ := setupTestEnvironment(t)

	rec := doRequest(t, e, http.MethodPost, "/api/v1/datasets", `{"description": "no name"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := `{"name": "twice"}`
	rec = doRequest(t, e, http.MethodPost, "/api/v1/datasets", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doRequest(t, e, http.MethodPost, "/api/v1/datasets", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestProfileEndpoints(t *testing.T) {
	e, _ := setupTestEnvironment(t)

	body := `{
		"name": "geese",
		"columns": ["ring", "species", "place"],
		"filters": [{"type": "multi", "column": "species", "values": ["Kanadagans", "Graugans"]}]
	}`
	rec := doRequest(t, e, http.MethodPost, "/api/v1/profiles", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, e, http.MethodGet, "/api/v1/profiles", "")
	require.Equal(t, http.StatusOK, rec.Code)
	names := decode[[]string](t, rec)
	assert.Equal(t, []string{"geese"}, names)

	rec = doRequest(t, e, http.MethodGet, "/api/v1/profiles/geese", "")
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decode[dataset.Profile](t, rec)
	assert.Equal(t, []string{"ring", "species", "place"}, profile.Columns)

	// the profile drives the observation slice
	rec = doRequest(t, e, http.MethodGet, "/api/v1/observations?profile=geese", "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[ObservationsPage](t, rec)
	assert.Equal(t, 6, page.Total)
	assert.Equal(t, []string{"ring", "species", "place"}, page.Columns)

	rec = doRequest(t, e, http.MethodDelete, "/api/v1/profiles/geese", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = doRequest(t, e, http.MethodGet, "/api/v1/profiles/geese", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetObservationsPagination(t *testing.T) {
	e, _ := setupTestEnvironment(t)

	rec := doRequest(t, e, http.MethodGet, "/api/v1/observations?limit=2&offset=4", "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[ObservationsPage](t, rec)
	assert.Equal(t, 6, page.Total)
	assert.Len(t, page.Rows, 2)
	assert.Equal(t, "5", page.Rows[0].ID)

	rec = doRequest(t, e, http.MethodGet, "/api/v1/observations?offset=100", "")
	require.Equal(t, http.StatusOK, rec.Code)
	page = decode[ObservationsPage](t, rec)
	assert.Empty(t, page.Rows)

	rec = doRequest(t, e, http.MethodGet, "/api/v1/observations?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = doRequest(t, e, http.MethodGet, "/api/v1/observations?offset=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestObservationMetadata(t *testing.T) {
	e, _ := setupTestEnvironment(t)

	rec := doRequest(t, e, http.MethodGet, "/api/v1/observations/columns", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cols := decode[ColumnsResponse](t, rec)
	kinds := make(map[string]string)
	for _, c := range cols.Columns {
		kinds[c.Name] = c.Kind
	}
	assert.Equal(t, "date", kinds["date"])
	assert.Equal(t, "number", kinds["lat"])
	assert.Equal(t, "text", kinds["species"])
	assert.Contains(t, cols.Categorical, "species")

	rec = doRequest(t, e, http.MethodGet, "/api/v1/observations/places", "")
	require.Equal(t, http.StatusOK, rec.Code)
	places := decode[[]string](t, rec)
	assert.Equal(t, "X", places[0], "X is the most frequent place")

	rec = doRequest(t, e, http.MethodGet, "/api/v1/observations/years", "")
	require.Equal(t, http.StatusOK, rec.Code)
	years := decode[[]int](t, rec)
	assert.Equal(t, []int{2023, 2024}, years)
}

func TestMoultEndpoint(t *testing.T) {
	e, _ := setupTestEnvironment(t)

	body := `{
		"year": 2024,
		"species": "Kanadagans",
		"place": "X",
		"window": {"mode": "months", "start_month": 6, "end_month": 8}
	}`
	rec := doRequest(t, e, http.MethodPost, "/api/v1/analytics/moult", body)
	require.Equal(t, http.StatusOK, rec.Code)

	result := decode[map[string]any](t, rec)
	assert.Equal(t, float64(2), result["total_rings"])
	counts, ok := result["counts"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), counts["same_location"])
	assert.Equal(t, float64(1), counts["other_known_location"])
	assert.Equal(t, float64(0), counts["moult_period_only"])

	// the memoized second run returns the identical payload
	again := doRequest(t, e, http.MethodPost, "/api/v1/analytics/moult", body)
	require.Equal(t, http.StatusOK, again.Code)
	assert.JSONEq(t, rec.Body.String(), again.Body.String())

	rec = doRequest(t, e, http.MethodPost, "/api/v1/analytics/moult", `{"year": 2024}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, e, http.MethodPost, "/api/v1/analytics/moult",
		`{"year": 2024, "species": "Kanadagans", "place": "X", "dataset": "missing",
		  "window": {"mode": "months", "start_month": 6, "end_month": 8}}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlacesEndpoint(t *testing.T) {
	e, _ := setupTestEnvironment(t)

	rec := doRequest(t, e, http.MethodGet, "/api/v1/analytics/places?year=2024&places=X&places=Y", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[PlacesResponse](t, rec)
	assert.Len(t, resp.Counts, 12, "six bins for two places")

	byKey := make(map[string]int)
	for _, c := range resp.Counts {
		byKey[c.Bin+"|"+c.Place] = c.Rings
	}
	assert.Equal(t, 2, byKey["Jul–Aug|X"], "rings A and B at X in July")
	assert.Equal(t, 1, byKey["Sep–Okt|Y"])
	assert.Equal(t, 0, byKey["Jan–Feb|X"])

	rec = doRequest(t, e, http.MethodGet, "/api/v1/analytics/places?places=X", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "year is required")

	query := "/api/v1/analytics/places?year=2024"
	for i := 0; i < 6; i++ {
		query += fmt.Sprintf("&places=p%d", i)
	}
	rec = doRequest(t, e, http.MethodGet, query, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "more than five places")
}

func TestMapPointsEndpoint(t *testing.T) {
	e, _ := setupTestEnvironment(t)

	rec := doRequest(t, e, http.MethodGet, "/api/v1/map/points", "")
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[map[string]any](t, rec)
	points, ok := view["points"].([]any)
	require.True(t, ok)
	assert.Len(t, points, 5, "row 5 has no coordinates")
	assert.Equal(t, float64(1), view["skipped"])

	rec = doRequest(t, e, http.MethodGet, "/api/v1/map/points?color=category&column=species", "")
	require.Equal(t, http.StatusOK, rec.Code)
	view = decode[map[string]any](t, rec)
	legend, ok := view["legend"].([]any)
	require.True(t, ok)
	assert.Len(t, legend, 2, "two species among plotted rows")

	rec = doRequest(t, e, http.MethodGet, "/api/v1/map/points?color=rainbow&column=species", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, e, http.MethodGet, "/api/v1/map/points?color=category", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "column is required")

	rec = doRequest(t, e, http.MethodGet, "/api/v1/map/points?color=category&column=nope", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
