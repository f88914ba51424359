package domain

import (
	"fmt"
	"sort"
)

// Variable is a decoded gridded variable, already unpacked to physical units.
type Variable struct {
	Name  string
	Units string

	// Samples is indexed [time][lon][lat].
	Samples [][][]float64

	// Missing is the exact fill value marking absent samples when HasMissing is set.
	Missing    float64
	HasMissing bool

	// ActualRange is the [min, max] the dataset declares for valid samples.
	ActualRange [2]float64

	// Time holds the raw time coordinate of each timestep (hours).
	Time []float64

	// Lon and Lat hold the physical coordinates of the grid axes, if known.
	Lon []float64
	Lat []float64
}

// Shape returns the (time, lon, lat) extents taken from the first timestep.
func (v *Variable) Shape() (nTime, nLon, nLat int) {
	nTime = len(v.Samples)
	if nTime == 0 {
		return 0, 0, 0
	}
	nLon = len(v.Samples[0])
	if nLon == 0 {
		return nTime, 0, 0
	}
	return nTime, nLon, len(v.Samples[0][0])
}

// Validate checks that the cube is rectangular and matches its time axis.
func (v *Variable) Validate() error {
	nTime, nLon, nLat := v.Shape()
	if len(v.Time) != nTime {
		return fmt.Errorf("%w: variable %s has %d timesteps but %d time values", ErrShapeMismatch, v.Name, nTime, len(v.Time))
	}
	if nTime > 0 && (nLon == 0 || nLat == 0) {
		return fmt.Errorf("%w: variable %s has an empty grid", ErrShapeMismatch, v.Name)
	}
	for t, slice := range v.Samples {
		if len(slice) != nLon {
			return fmt.Errorf("%w: variable %s timestep %d has %d longitudes, want %d", ErrShapeMismatch, v.Name, t, len(slice), nLon)
		}
		for i, row := range slice {
			if len(row) != nLat {
				return fmt.Errorf("%w: variable %s timestep %d longitude %d has %d latitudes, want %d",
					ErrShapeMismatch, v.Name, t, i, len(row), nLat)
			}
		}
	}
	return nil
}

// IsMissing reports whether x equals the variable's fill value. The match is
// exact, as the fill value is a reserved bit pattern rather than a measurement.
func (v *Variable) IsMissing(x float64) bool {
	return v.HasMissing && x == v.Missing
}

// VariableInfo describes a known reanalysis variable.
type VariableInfo struct {
	Name        string `json:"name"` // E.g., "air", "prate".
	Description string `json:"description"`
	Units       string `json:"units"`
	FileName    string `json:"file_name"` // Default file name, e.g. "air.mon.mean.nc".
}

// KnownVariables lists the NCEP/NCAR reanalysis monthly means the service
// understands. Note that prate is gridded differently (94x192 Gaussian) from
// the 2.5 degree variables.
var KnownVariables = map[string]VariableInfo{
	"air": {
		Name:        "air",
		Description: "Monthly mean air temperature",
		Units:       "degC",
		FileName:    "air.mon.mean.nc",
	},
	"prate": {
		Name:        "prate",
		Description: "Monthly mean surface precipitation rate",
		Units:       "Kg/m^2/s",
		FileName:    "prate.sfc.mon.mean.nc",
	},
	"rhum": {
		Name:        "rhum",
		Description: "Monthly mean relative humidity",
		Units:       "%",
		FileName:    "rhum.mon.mean.nc",
	},
	"wspd": {
		Name:        "wspd",
		Description: "Monthly mean wind speed",
		Units:       "m/s",
		FileName:    "wspd.mon.mean.nc",
	},
}

// GetVariableInfo returns the catalog entry for name.
func GetVariableInfo(name string) (VariableInfo, bool) {
	info, ok := KnownVariables[name]
	return info, ok
}

// AllVariables returns the catalog sorted by name.
func AllVariables() []VariableInfo {
	vars := make([]VariableInfo, 0, len(KnownVariables))
	for _, info := range KnownVariables {
		vars = append(vars, info)
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i].Name < vars[j].Name })
	return vars
}
