package usecase

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"go.ngs.io/geothermophone/internal/adapter/store"
	"go.ngs.io/geothermophone/internal/domain"
	"go.ngs.io/geothermophone/internal/observability"
)

// ErrUnknownVariable is returned for names missing from the variable catalog.
var ErrUnknownVariable = errors.New("unknown variable")

// ErrInvalidRequest wraps request validation failures.
var ErrInvalidRequest = errors.New("invalid request")

// Options holds the defaults and aggregation settings of the use case.
type Options struct {
	Codec         domain.TimeCodec
	Window        domain.Window
	Normalize     domain.NormalizeOptions
	SkipNonFinite bool
	Workers       int
}

// DefaultOptions returns the 1960-2010 window normalized into [0, 65535].
func DefaultOptions() Options {
	return Options{
		Codec:     domain.DefaultTimeCodec(),
		Window:    domain.DefaultWindow(),
		Normalize: domain.DefaultNormalizeOptions(),
		Workers:   1,
	}
}

// OctantRequest encapsulates an octant series request.
type OctantRequest struct {
	Variable string

	// Time window, half-open [Start, End).
	Start time.Time
	End   time.Time

	// Normalization parameters.
	Mode      domain.Mode
	Min       float64
	Max       float64
	ValueType domain.ValueType
}

// Validate checks if the request is valid.
func (r *OctantRequest) Validate() error {
	if r.Variable == "" {
		return fmt.Errorf("%w: variable is required", ErrInvalidRequest)
	}
	if _, ok := domain.GetVariableInfo(r.Variable); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVariable, r.Variable)
	}
	if !r.Start.Before(r.End) {
		return fmt.Errorf("%w: start time must be before end time", ErrInvalidRequest)
	}
	if !(r.Min < r.Max) {
		return fmt.Errorf("%w: min %v must be below max %v", ErrInvalidRequest, r.Min, r.Max)
	}
	switch r.Mode {
	case domain.ModeRelative, domain.ModeAbsolute:
	default:
		return fmt.Errorf("%w: unsupported mode %v", ErrInvalidRequest, r.Mode)
	}
	switch r.ValueType {
	case domain.ValueTruncate, domain.ValueRound, domain.ValueFloat:
	default:
		return fmt.Errorf("%w: unsupported value type %v", ErrInvalidRequest, r.ValueType)
	}
	return nil
}

// OctantResponse contains the normalized series of every octant.
type OctantResponse struct {
	Variable    string            `json:"variable"`
	Units       string            `json:"units"`
	Mode        string            `json:"mode"`
	ValueType   string            `json:"value_type"`
	Range       [2]float64        `json:"range"`
	Window      WindowResponse    `json:"window"`
	Times       []string          `json:"times"`
	Octants     []OctantSeries    `json:"octants"`
	GeneratedAt time.Time         `json:"generated_at"`
	Meta        map[string]string `json:"meta"`
}

// WindowResponse is the admitted time window.
type WindowResponse struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// OctantSeries is the normalized series of one octant.
type OctantSeries struct {
	Key     string    `json:"key"`
	LonBand int       `json:"lon_band"`
	LatBand int       `json:"lat_band"`
	Values  []float64 `json:"values"`
}

// VariableStatus is a catalog entry with its availability under the data directory.
type VariableStatus struct {
	domain.VariableInfo
	Available bool `json:"available"`
}

type cacheKey struct {
	variable   string
	start, end int64
}

// OctantUseCase orchestrates loading, aggregation and normalization.
type OctantUseCase struct {
	loader  store.VariableLoader
	opts    Options
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *slog.Logger

	mu    sync.Mutex
	cache map[cacheKey]*domain.Aggregation // Aggregations by variable and window.
}

// NewOctantUseCase creates a new octant use case.
func NewOctantUseCase(loader store.VariableLoader, opts Options, clock clockwork.Clock,
	metrics *observability.Metrics, logger *slog.Logger) *OctantUseCase {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OctantUseCase{
		loader:  loader,
		opts:    opts,
		clock:   clock,
		metrics: metrics,
		logger:  logger,
		cache:   make(map[cacheKey]*domain.Aggregation),
	}
}

// NewRequest returns a request for variable populated with the configured defaults.
func (uc *OctantUseCase) NewRequest(variable string) OctantRequest {
	return OctantRequest{
		Variable:  variable,
		Start:     uc.opts.Window.Start,
		End:       uc.opts.Window.End,
		Mode:      uc.opts.Normalize.Mode,
		Min:       uc.opts.Normalize.Min,
		Max:       uc.opts.Normalize.Max,
		ValueType: uc.opts.Normalize.Type,
	}
}

// Execute aggregates and normalizes the requested variable. Nothing is
// returned alongside an error.
func (uc *OctantUseCase) Execute(req OctantRequest) (*OctantResponse, error) {
	resp, err := uc.execute(req)
	outcome := "success"
	if err != nil {
		outcome = "error"
		uc.logger.Warn("octant request failed", "variable", req.Variable, "mode", req.Mode.String(), "error", err)
	}
	uc.metrics.Requests.WithLabelValues(variableLabel(req.Variable), req.Mode.String(), outcome).Inc()
	return resp, err
}

// variableLabel keeps the variable label set to the catalog plus "unknown".
func variableLabel(name string) string {
	if _, ok := domain.GetVariableInfo(name); !ok {
		return "unknown"
	}
	return name
}

func (uc *OctantUseCase) execute(req OctantRequest) (*OctantResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	window := domain.Window{Start: req.Start, End: req.End}
	agg, units, err := uc.aggregate(req.Variable, window)
	if err != nil {
		return nil, err
	}

	normalized, err := domain.Normalize(agg.Series, domain.NormalizeOptions{
		Mode:       req.Mode,
		Min:        req.Min,
		Max:        req.Max,
		Type:       req.ValueType,
		Degenerate: uc.opts.Normalize.Degenerate,
	})
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", req.Variable, err)
	}

	times := make([]string, len(agg.Times))
	for i, t := range agg.Times {
		times[i] = t.UTC().Format(time.RFC3339)
	}

	keys := normalized.Keys()
	octants := make([]OctantSeries, len(keys))
	for i, k := range keys {
		values, _ := normalized.Get(k)
		octants[i] = OctantSeries{
			Key:     k.String(),
			LonBand: k.Lon,
			LatBand: k.Lat,
			Values:  values,
		}
	}

	return &OctantResponse{
		Variable:  req.Variable,
		Units:     units,
		Mode:      req.Mode.String(),
		ValueType: req.ValueType.String(),
		Range:     [2]float64{req.Min, req.Max},
		Window: WindowResponse{
			Start: window.Start.UTC().Format(time.RFC3339),
			End:   window.End.UTC().Format(time.RFC3339),
		},
		Times:       times,
		Octants:     octants,
		GeneratedAt: uc.clock.Now().UTC(),
		Meta: map[string]string{
			"dataset":   "NCEP/NCAR Reanalysis monthly means",
			"timesteps": fmt.Sprint(len(agg.Steps)),
			"octants":   fmt.Sprint(len(octants)),
		},
	}, nil
}

// aggregate returns the cached aggregation of variable over window, computing
// it on a miss. Failed aggregations are not cached.
func (uc *OctantUseCase) aggregate(variable string, window domain.Window) (*domain.Aggregation, string, error) {
	units := ""
	if info, ok := domain.GetVariableInfo(variable); ok {
		units = info.Units
	}

	key := cacheKey{variable: variable, start: window.Start.UnixNano(), end: window.End.UnixNano()}
	uc.mu.Lock()
	agg, ok := uc.cache[key]
	uc.mu.Unlock()
	if ok {
		uc.metrics.AggregationCache.WithLabelValues("hit").Inc()
		return agg, units, nil
	}
	uc.metrics.AggregationCache.WithLabelValues("miss").Inc()

	started := uc.clock.Now()
	v, err := uc.loader.Load(variable)
	if err != nil {
		return nil, "", err
	}
	if v.Units != "" {
		units = v.Units
	}

	agg, err = domain.Aggregate(v, domain.AggregateOptions{
		Codec:         uc.opts.Codec,
		Window:        window,
		SkipNonFinite: uc.opts.SkipNonFinite,
		Workers:       uc.opts.Workers,
	})
	if err != nil {
		return nil, "", err
	}
	elapsed := uc.clock.Since(started)
	uc.metrics.AggregationDuration.Observe(elapsed.Seconds())
	uc.metrics.TimestepsAdmitted.WithLabelValues(variable).Add(float64(len(agg.Steps)))
	uc.logger.Info("aggregated variable",
		"variable", variable,
		"timesteps", len(agg.Steps),
		"octants", len(agg.Series.Keys()),
		"duration", elapsed)

	uc.mu.Lock()
	uc.cache[key] = agg
	uc.mu.Unlock()
	return agg, units, nil
}

// Variables returns the catalog with the availability of each variable.
func (uc *OctantUseCase) Variables() ([]VariableStatus, error) {
	available, err := uc.loader.Available()
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(available))
	for _, name := range available {
		have[name] = true
	}
	infos := domain.AllVariables()
	out := make([]VariableStatus, len(infos))
	for i, info := range infos {
		out[i] = VariableStatus{VariableInfo: info, Available: have[info.Name]}
	}
	return out, nil
}
