package domain

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Mode selects the extrema used for rescaling.
type Mode int

const (
	// ModeRelative rescales each octant by its own minimum and maximum.
	ModeRelative Mode = iota
	// ModeAbsolute rescales every octant by the global minimum and maximum.
	ModeAbsolute
)

func (m Mode) String() string {
	switch m {
	case ModeRelative:
		return "relative"
	case ModeAbsolute:
		return "absolute"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "relative" or "absolute".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "relative", "rel":
		return ModeRelative, nil
	case "absolute", "abs":
		return ModeAbsolute, nil
	default:
		return 0, fmt.Errorf("unknown normalization mode %q (use relative or absolute)", s)
	}
}

// ValueType selects the representation of rescaled values.
type ValueType int

const (
	// ValueTruncate casts to an integer, truncating toward zero.
	ValueTruncate ValueType = iota
	// ValueRound rounds to the nearest integer, halves away from zero.
	ValueRound
	// ValueFloat keeps the fractional value.
	ValueFloat
)

func (t ValueType) String() string {
	switch t {
	case ValueTruncate:
		return "int"
	case ValueRound:
		return "round"
	case ValueFloat:
		return "float"
	default:
		return fmt.Sprintf("ValueType(%d)", int(t))
	}
}

// ParseValueType parses "int", "round" or "float".
func ParseValueType(s string) (ValueType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "int", "integer", "trunc":
		return ValueTruncate, nil
	case "round":
		return ValueRound, nil
	case "float", "fraction":
		return ValueFloat, nil
	default:
		return 0, fmt.Errorf("unknown value type %q (use int, round or float)", s)
	}
}

func (t ValueType) apply(x float64) float64 {
	switch t {
	case ValueRound:
		return math.Round(x)
	case ValueFloat:
		return x
	default:
		return math.Trunc(x)
	}
}

// DegeneratePolicy decides what happens when a scope has max == min.
type DegeneratePolicy int

const (
	// DegenerateToMin maps every value of a zero-spread scope to the target minimum.
	DegenerateToMin DegeneratePolicy = iota
	// DegenerateError fails with ErrDegenerateRange.
	DegenerateError
)

// ParseDegeneratePolicy parses "min" or "error".
func ParseDegeneratePolicy(s string) (DegeneratePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "min":
		return DegenerateToMin, nil
	case "error":
		return DegenerateError, nil
	default:
		return 0, fmt.Errorf("unknown degenerate policy %q (use min or error)", s)
	}
}

// NormalizeOptions configures Normalize.
type NormalizeOptions struct {
	Mode       Mode
	Min        float64
	Max        float64
	Type       ValueType
	Degenerate DegeneratePolicy
}

// DefaultNormalizeOptions returns relative mode into [0, 65535] with integer output.
func DefaultNormalizeOptions() NormalizeOptions {
	return NormalizeOptions{
		Mode: ModeRelative,
		Min:  0,
		Max:  65535,
		Type: ValueTruncate,
	}
}

// Extrema is a (min, max) pair.
type Extrema struct {
	Min float64
	Max float64
}

// Spread returns Max - Min.
func (e Extrema) Spread() float64 {
	return e.Max - e.Min
}

// OctantExtrema returns the extrema of each present, non-empty octant.
func OctantExtrema(c Collection) map[OctantKey]Extrema {
	out := make(map[OctantKey]Extrema, NumOctants)
	for _, k := range c.Keys() {
		s := c[k.Index()]
		if len(s) == 0 {
			continue
		}
		out[k] = Extrema{Min: floats.Min(s), Max: floats.Max(s)}
	}
	return out
}

// GlobalExtrema returns the extrema across all octants. ok is false when the
// collection holds no values.
func GlobalExtrema(c Collection) (e Extrema, ok bool) {
	for _, oe := range OctantExtrema(c) {
		if !ok {
			e, ok = oe, true
			continue
		}
		e.Min = math.Min(e.Min, oe.Min)
		e.Max = math.Max(e.Max, oe.Max)
	}
	return e, ok
}

// Normalize rescales c into [opts.Min, opts.Max]. The result has the same keys
// and series lengths as c. Extrema are computed from c on every call.
func Normalize(c Collection, opts NormalizeOptions) (Collection, error) {
	if !(opts.Min < opts.Max) {
		return Collection{}, fmt.Errorf("%w: min %v must be below max %v", ErrInvalidRange, opts.Min, opts.Max)
	}

	var out Collection
	switch opts.Mode {
	case ModeRelative:
		extrema := OctantExtrema(c)
		for _, k := range c.Keys() {
			s := c[k.Index()]
			if len(s) == 0 {
				out[k.Index()] = []float64{}
				continue
			}
			scaled, err := rescale(s, extrema[k], opts)
			if err != nil {
				return Collection{}, fmt.Errorf("octant %s: %w", k, err)
			}
			out[k.Index()] = scaled
		}
	case ModeAbsolute:
		global, ok := GlobalExtrema(c)
		for _, k := range c.Keys() {
			s := c[k.Index()]
			if !ok || len(s) == 0 {
				out[k.Index()] = []float64{}
				continue
			}
			scaled, err := rescale(s, global, opts)
			if err != nil {
				return Collection{}, fmt.Errorf("global scope: %w", err)
			}
			out[k.Index()] = scaled
		}
	default:
		return Collection{}, fmt.Errorf("unsupported normalization mode %v", opts.Mode)
	}
	return out, nil
}

// NormalizeRelative rescales each octant independently.
func NormalizeRelative(c Collection, newMin, newMax float64, t ValueType) (Collection, error) {
	return Normalize(c, NormalizeOptions{Mode: ModeRelative, Min: newMin, Max: newMax, Type: t})
}

// NormalizeAbsolute rescales every octant with one global scale.
func NormalizeAbsolute(c Collection, newMin, newMax float64, t ValueType) (Collection, error) {
	return Normalize(c, NormalizeOptions{Mode: ModeAbsolute, Min: newMin, Max: newMax, Type: t})
}

// rescale applies (v-min)*(newMax-newMin)/(max-min) + newMin. Multiplying
// before dividing keeps integer inputs exact, so a series already spanning the
// target range maps onto itself.
func rescale(s []float64, e Extrema, opts NormalizeOptions) ([]float64, error) {
	out := make([]float64, len(s))
	spread := e.Spread()
	if spread == 0 {
		if opts.Degenerate == DegenerateError {
			return nil, fmt.Errorf("%w: every value is %v", ErrDegenerateRange, e.Min)
		}
		for i := range out {
			out[i] = opts.Type.apply(opts.Min)
		}
		return out, nil
	}

	newSpread := opts.Max - opts.Min
	for i, v := range s {
		switch v {
		case e.Min:
			out[i] = opts.Type.apply(opts.Min)
		case e.Max:
			// Pinned so the scope maximum cannot truncate to newMax-1.
			out[i] = opts.Type.apply(opts.Max)
		default:
			out[i] = opts.Type.apply(scale(v, e, spread, newSpread) + opts.Min)
		}
	}
	return out, nil
}

// scale returns (v-min)*newSpread/spread, switching to a halved fraction when
// the product or the spread itself overflows float64.
func scale(v float64, e Extrema, spread, newSpread float64) float64 {
	if x := (v - e.Min) * newSpread / spread; !math.IsInf(x, 0) && !math.IsNaN(x) && !math.IsInf(spread, 0) {
		return x
	}
	return (v/2 - e.Min/2) / (e.Max/2 - e.Min/2) * newSpread
}
