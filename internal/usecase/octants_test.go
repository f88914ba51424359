package usecase

import (
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.ngs.io/geothermophone/internal/adapter/store"
	"go.ngs.io/geothermophone/internal/domain"
	"go.ngs.io/geothermophone/internal/observability"
)

var fixedNow = time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)

type fakeLoader struct {
	vars  map[string]*domain.Variable
	loads int
}

func (f *fakeLoader) Load(name string) (*domain.Variable, error) {
	f.loads++
	v, ok := f.vars[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, name)
	}
	return v, nil
}

func (f *fakeLoader) Available() ([]string, error) {
	names := make([]string, 0, len(f.vars))
	for name := range f.vars {
		names = append(names, name)
	}
	return names, nil
}

// monthlyVariable builds three monthly steps from 1960-01 on an 8x4 grid with
// sample value t + lon, so each octant averages to t + 2*lonBand + 0.5.
func monthlyVariable(name string) *domain.Variable {
	codec := domain.DefaultTimeCodec()
	start := time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC)
	v := &domain.Variable{Name: name, Units: "degC"}
	for t := 0; t < 3; t++ {
		v.Time = append(v.Time, codec.FromCalendar(start.AddDate(0, t, 0)))
		slice := make([][]float64, 8)
		for i := range slice {
			slice[i] = make([]float64, 4)
			for j := range slice[i] {
				slice[i][j] = float64(t + i)
			}
		}
		v.Samples = append(v.Samples, slice)
	}
	return v
}

func newTestUseCase(loader store.VariableLoader, opts Options) (*OctantUseCase, *observability.Metrics) {
	metrics := observability.NewMetricsForTesting()
	uc := NewOctantUseCase(loader, opts, clockwork.NewFakeClockAt(fixedNow), metrics, nil)
	return uc, metrics
}

func TestExecute_Relative(t *testing.T) {
	loader := &fakeLoader{vars: map[string]*domain.Variable{"air": monthlyVariable("air")}}
	uc, metrics := newTestUseCase(loader, DefaultOptions())

	req := uc.NewRequest("air")
	req.Max = 100
	resp, err := uc.Execute(req)
	require.NoError(t, err)

	assert.Equal(t, "air", resp.Variable)
	assert.Equal(t, "degC", resp.Units)
	assert.Equal(t, "relative", resp.Mode)
	assert.Equal(t, "int", resp.ValueType)
	assert.Equal(t, [2]float64{0, 100}, resp.Range)
	assert.Equal(t, fixedNow, resp.GeneratedAt)
	assert.Equal(t, []string{"1960-01-01T00:00:00Z", "1960-02-01T00:00:00Z", "1960-03-01T00:00:00Z"}, resp.Times)
	assert.Equal(t, "1960-01-01T00:00:00Z", resp.Window.Start)
	assert.Equal(t, "2010-01-01T00:00:00Z", resp.Window.End)

	require.Len(t, resp.Octants, domain.NumOctants)
	for i, o := range resp.Octants {
		k := domain.OctantAt(i)
		assert.Equal(t, k.String(), o.Key)
		assert.Equal(t, k.Lon, o.LonBand)
		assert.Equal(t, k.Lat, o.LatBand)
		assert.Equal(t, []float64{0, 50, 100}, o.Values)
	}
	assert.Equal(t, "3", resp.Meta["timesteps"])
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Requests.WithLabelValues("air", "relative", "success")))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.TimestepsAdmitted.WithLabelValues("air")))
}

func TestExecute_Absolute(t *testing.T) {
	loader := &fakeLoader{vars: map[string]*domain.Variable{"air": monthlyVariable("air")}}
	uc, _ := newTestUseCase(loader, DefaultOptions())

	req := uc.NewRequest("air")
	req.Mode = domain.ModeAbsolute
	req.Max = 100
	resp, err := uc.Execute(req)
	require.NoError(t, err)

	// Global range is [0.5, 8.5].
	assert.Equal(t, []float64{0, 12, 25}, resp.Octants[0].Values)
	assert.Equal(t, []float64{75, 87, 100}, resp.Octants[domain.NumOctants-1].Values)
}

func TestExecute_WindowAndCache(t *testing.T) {
	loader := &fakeLoader{vars: map[string]*domain.Variable{"air": monthlyVariable("air")}}
	uc, metrics := newTestUseCase(loader, DefaultOptions())

	req := uc.NewRequest("air")
	_, err := uc.Execute(req)
	require.NoError(t, err)
	req.Mode = domain.ModeAbsolute
	_, err = uc.Execute(req)
	require.NoError(t, err)
	assert.Equal(t, 1, loader.loads)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AggregationCache.WithLabelValues("hit")))

	req.Start = time.Date(1960, 2, 1, 0, 0, 0, 0, time.UTC)
	resp, err := uc.Execute(req)
	require.NoError(t, err)
	assert.Equal(t, 2, loader.loads)
	assert.Len(t, resp.Times, 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.AggregationCache.WithLabelValues("miss")))
}

func TestExecute_Errors(t *testing.T) {
	empty := monthlyVariable("rhum")
	empty.HasMissing = true
	empty.Missing = -999
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			empty.Samples[1][i][j] = -999
		}
	}
	flat := monthlyVariable("wspd")
	for _, slice := range flat.Samples {
		for i := range slice {
			for j := range slice[i] {
				slice[i][j] = 3
			}
		}
	}
	loader := &fakeLoader{vars: map[string]*domain.Variable{"rhum": empty, "wspd": flat}}

	opts := DefaultOptions()
	opts.Normalize.Degenerate = domain.DegenerateError
	uc, metrics := newTestUseCase(loader, opts)

	_, err := uc.Execute(uc.NewRequest("soil"))
	assert.ErrorIs(t, err, ErrUnknownVariable)

	_, err = uc.Execute(uc.NewRequest("air"))
	assert.ErrorIs(t, err, store.ErrNotFound)

	resp, err := uc.Execute(uc.NewRequest("rhum"))
	assert.ErrorIs(t, err, domain.ErrEmptyGroup)
	assert.Nil(t, resp)

	_, err = uc.Execute(uc.NewRequest("wspd"))
	assert.ErrorIs(t, err, domain.ErrDegenerateRange)

	req := uc.NewRequest("wspd")
	req.Min, req.Max = 5, 5
	_, err = uc.Execute(req)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	assert.Equal(t, 5.0, testutil.ToFloat64(metrics.Requests.WithLabelValues("wspd", "relative", "error"))+
		testutil.ToFloat64(metrics.Requests.WithLabelValues("rhum", "relative", "error"))+
		testutil.ToFloat64(metrics.Requests.WithLabelValues("air", "relative", "error"))+
		testutil.ToFloat64(metrics.Requests.WithLabelValues("unknown", "relative", "error")))
}

func TestExecute_UnknownVariablesShareOneSeries(t *testing.T) {
	uc, metrics := newTestUseCase(&fakeLoader{}, DefaultOptions())

	for i := 0; i < 1000; i++ {
		_, err := uc.Execute(uc.NewRequest(fmt.Sprintf("junk-%d", i)))
		require.ErrorIs(t, err, ErrUnknownVariable)
	}

	assert.Equal(t, 1, testutil.CollectAndCount(metrics.Requests))
	assert.Equal(t, 1000.0, testutil.ToFloat64(metrics.Requests.WithLabelValues("unknown", "relative", "error")))
}

func TestOctantRequest_Validate(t *testing.T) {
	uc, _ := newTestUseCase(&fakeLoader{}, DefaultOptions())

	tests := []struct {
		name   string
		mutate func(r *OctantRequest)
		ok     bool
	}{
		{"defaults", func(r *OctantRequest) {}, true},
		{"empty variable", func(r *OctantRequest) { r.Variable = "" }, false},
		{"end before start", func(r *OctantRequest) { r.End = r.Start.Add(-time.Hour) }, false},
		{"empty window", func(r *OctantRequest) { r.End = r.Start }, false},
		{"inverted range", func(r *OctantRequest) { r.Min, r.Max = 1, 0 }, false},
		{"bad mode", func(r *OctantRequest) { r.Mode = domain.Mode(7) }, false},
		{"bad value type", func(r *OctantRequest) { r.ValueType = domain.ValueType(9) }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := uc.NewRequest("air")
			tt.mutate(&req)
			err := req.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestVariables(t *testing.T) {
	loader := &fakeLoader{vars: map[string]*domain.Variable{"prate": monthlyVariable("prate")}}
	uc, _ := newTestUseCase(loader, DefaultOptions())

	vars, err := uc.Variables()
	require.NoError(t, err)
	require.Len(t, vars, len(domain.KnownVariables))
	for _, v := range vars {
		assert.Equal(t, v.Name == "prate", v.Available, v.Name)
	}
}
