package domain

import (
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// AggregateOptions configures a single aggregation run.
type AggregateOptions struct {
	Codec  TimeCodec
	Window Window

	// SkipNonFinite also treats NaN and ±Inf samples as missing. When false a
	// non-sentinel NaN propagates into its octant's mean.
	SkipNonFinite bool

	// Workers bounds the number of timesteps reduced concurrently. Values
	// below 2 run sequentially.
	Workers int
}

// Aggregation is the per-octant series of means for one variable.
type Aggregation struct {
	Variable string
	// Steps holds the admitted timestep indices in increasing order.
	Steps []int
	// Times holds the calendar time of each admitted timestep.
	Times  []time.Time
	Series Collection
}

// Aggregate reduces every admitted timestep of v to one mean per octant and
// returns the means as per-octant series in timestep order.
//
// An octant that owns grid cells but receives no valid samples in an admitted
// timestep fails the whole call with ErrEmptyGroup. Octants that own no cells
// (possible on grids narrower than the band count) are absent from the result.
func Aggregate(v *Variable, opts AggregateOptions) (*Aggregation, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Window.Validate(); err != nil {
		return nil, fmt.Errorf("variable %s: %w", v.Name, err)
	}

	agg := &Aggregation{
		Variable: v.Name,
		Steps:    []int{},
		Times:    []time.Time{},
	}
	nTime, nLon, nLat := v.Shape()
	if nTime == 0 {
		return agg, nil
	}

	// Partitioning is derived per variable; grids differ between variables.
	p, err := NewPartitioner(float64(nLon), float64(nLat))
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", v.Name, err)
	}
	cells, err := p.CellMap(nLon, nLat)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", v.Name, err)
	}
	var owned [NumOctants]int
	for i := range cells {
		for _, o := range cells[i] {
			owned[o]++
		}
	}

	for t := 0; t < nTime; t++ {
		ts, err := opts.Codec.ToCalendar(v.Time[t])
		if err != nil {
			return nil, fmt.Errorf("variable %s: timestep %d: %w", v.Name, t, err)
		}
		if !opts.Window.Contains(ts) {
			continue
		}
		agg.Steps = append(agg.Steps, t)
		agg.Times = append(agg.Times, ts)
	}

	means := make([][NumOctants]float64, len(agg.Steps))
	reduce := func(slot int) error {
		t := agg.Steps[slot]
		var groups [NumOctants][]float64
		for o, n := range owned {
			if n > 0 {
				groups[o] = make([]float64, 0, n)
			}
		}

		for i, row := range v.Samples[t] {
			for j, x := range row {
				if v.IsMissing(x) {
					continue
				}
				if opts.SkipNonFinite && (math.IsNaN(x) || math.IsInf(x, 0)) {
					continue
				}
				o := cells[i][j]
				groups[o] = append(groups[o], x)
			}
		}

		for o, g := range groups {
			if owned[o] == 0 {
				continue
			}
			if len(g) == 0 {
				return fmt.Errorf("variable %s: timestep %d: octant %s: %w", v.Name, t, OctantAt(o), ErrEmptyGroup)
			}
			means[slot][o] = floats.Sum(g) / float64(len(g))
		}
		return nil
	}

	if opts.Workers < 2 {
		for slot := range means {
			if err := reduce(slot); err != nil {
				return nil, err
			}
		}
	} else {
		var g errgroup.Group
		g.SetLimit(opts.Workers)
		for slot := range means {
			g.Go(func() error { return reduce(slot) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	// Transpose time-major means into octant-major series.
	for o, n := range owned {
		if n == 0 {
			continue
		}
		series := make([]float64, len(means))
		for slot := range means {
			series[slot] = means[slot][o]
		}
		agg.Series[o] = series
	}

	return agg, nil
}
