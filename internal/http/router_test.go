package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.ngs.io/geothermophone/internal/adapter/store"
	"go.ngs.io/geothermophone/internal/domain"
	"go.ngs.io/geothermophone/internal/observability"
	"go.ngs.io/geothermophone/internal/usecase"
)

type stubLoader map[string]*domain.Variable

func (s stubLoader) Load(name string) (*domain.Variable, error) {
	v, ok := s[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, name)
	}
	return v, nil
}

func (s stubLoader) Available() ([]string, error) {
	var names []string
	for name := range s {
		names = append(names, name)
	}
	return names, nil
}

// airVariable has two monthly steps on a 4x2 grid; step t holds t+1 everywhere
// except octant 3-1, which holds 10(t+1).
func airVariable() *domain.Variable {
	codec := domain.DefaultTimeCodec()
	v := &domain.Variable{Name: "air", Units: "degC"}
	for t := 0; t < 2; t++ {
		v.Time = append(v.Time, codec.FromCalendar(time.Date(1970, time.Month(1+t), 1, 0, 0, 0, 0, time.UTC)))
		slice := [][]float64{{1, 1}, {1, 1}, {1, 1}, {1, 10}}
		for i := range slice {
			for j := range slice[i] {
				slice[i][j] *= float64(t + 1)
			}
		}
		v.Samples = append(v.Samples, slice)
	}
	return v
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	uc := usecase.NewOctantUseCase(stubLoader{"air": airVariable()}, usecase.DefaultOptions(), clock,
		observability.NewMetricsForTesting(), nil)
	return SetupRouter(uc, nil, clock)
}

func get(t *testing.T, r *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestGetOctants(t *testing.T) {
	r := newTestRouter(t)

	w := get(t, r, "/v1/octants/air?min=0&max=1&type=float&mode=absolute")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp usecase.OctantResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "absolute", resp.Mode)
	assert.Equal(t, "float", resp.ValueType)
	assert.Equal(t, []string{"1970-01-01T00:00:00Z", "1970-02-01T00:00:00Z"}, resp.Times)
	require.Len(t, resp.Octants, domain.NumOctants)

	// Global range is [1, 20].
	assert.Equal(t, "0-0", resp.Octants[0].Key)
	assert.Equal(t, []float64{0, 1.0 / 19}, resp.Octants[0].Values)
	assert.Equal(t, "3-1", resp.Octants[7].Key)
	assert.Equal(t, []float64{9.0 / 19, 1}, resp.Octants[7].Values)
}

func TestGetOctants_Window(t *testing.T) {
	r := newTestRouter(t)

	w := get(t, r, "/v1/octants/air?start=1970-02-01&end=1980-01-01T00:00:00Z")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp usecase.OctantResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"1970-02-01T00:00:00Z"}, resp.Times)
	// A single timestep has zero spread and maps to the target minimum.
	assert.Equal(t, []float64{0}, resp.Octants[0].Values)
}

func TestGetOctants_Errors(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		path string
		code int
	}{
		{"/v1/octants/air?mode=log", http.StatusBadRequest},
		{"/v1/octants/air?min=abc", http.StatusBadRequest},
		{"/v1/octants/air?min=10&max=1", http.StatusBadRequest},
		{"/v1/octants/air?start=yesterday", http.StatusBadRequest},
		{"/v1/octants/air?start=2000-01-01&end=1990-01-01", http.StatusBadRequest},
		{"/v1/octants/soil", http.StatusNotFound},
		{"/v1/octants/rhum", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := get(t, r, tt.path)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestGetVariablesAndHealth(t *testing.T) {
	r := newTestRouter(t)

	w := get(t, r, "/v1/variables")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Variables []usecase.VariableStatus `json:"variables"`
		Count     int                      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, len(domain.KnownVariables), body.Count)
	for _, v := range body.Variables {
		assert.Equal(t, v.Name == "air", v.Available, v.Name)
	}

	w = get(t, r, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","time":"2024-01-02T03:04:05Z"}`, w.Body.String())

	w = get(t, r, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
}
