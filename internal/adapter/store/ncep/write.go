package ncep

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/fhs/go-netcdf/netcdf"
)

// PackedMissing is the raw fill value the reanalysis files use for packed shorts.
const PackedMissing int16 = 32766

// floatMissing is the fill value written for unpacked float variables.
const floatMissing float32 = -9.96921e36

// Synthetic describes a dataset to write in the reanalysis monthly layout.
type Synthetic struct {
	Name  string // Variable name, e.g. "air".
	Units string

	Time []float64 // Hours, see domain.TimeCodec.
	Lat  []float64
	Lon  []float64

	// Values is indexed [time][lon][lat] in physical units. NaN marks a missing sample.
	Values [][][]float64

	// ScaleFactor and AddOffset pack values into shorts when ScaleFactor is
	// non-zero; otherwise values are stored as floats.
	ScaleFactor float32
	AddOffset   float32

	// LonFirst stores the grid as (time, lon, lat) instead of (time, lat, lon).
	LonFirst bool
}

// WriteFile writes s to path as NetCDF, creating parent directories.
func WriteFile(path string, s Synthetic) (err error) {
	nTime, nLat, nLon := len(s.Time), len(s.Lat), len(s.Lon)
	if len(s.Values) != nTime {
		return fmt.Errorf("values have %d timesteps, time axis has %d", len(s.Values), nTime)
	}
	for t := range s.Values {
		if len(s.Values[t]) != nLon {
			return fmt.Errorf("timestep %d has %d longitudes, want %d", t, len(s.Values[t]), nLon)
		}
		for i := range s.Values[t] {
			if len(s.Values[t][i]) != nLat {
				return fmt.Errorf("timestep %d longitude %d has %d latitudes, want %d", t, i, len(s.Values[t][i]), nLat)
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := netcdf.CreateFile(path, netcdf.CLOBBER)
	if err != nil {
		return fmt.Errorf("failed to create NetCDF file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close NetCDF file: %w", cerr)
		}
	}()

	timeDim, err := f.AddDim("time", uint64(nTime))
	if err != nil {
		return err
	}
	latDim, err := f.AddDim("lat", uint64(nLat))
	if err != nil {
		return err
	}
	lonDim, err := f.AddDim("lon", uint64(nLon))
	if err != nil {
		return err
	}

	vTime, err := f.AddVar("time", netcdf.DOUBLE, []netcdf.Dim{timeDim})
	if err != nil {
		return err
	}
	vLat, err := f.AddVar("lat", netcdf.FLOAT, []netcdf.Dim{latDim})
	if err != nil {
		return err
	}
	vLon, err := f.AddVar("lon", netcdf.FLOAT, []netcdf.Dim{lonDim})
	if err != nil {
		return err
	}

	gridDims := []netcdf.Dim{timeDim, latDim, lonDim}
	if s.LonFirst {
		gridDims = []netcdf.Dim{timeDim, lonDim, latDim}
	}
	packed := s.ScaleFactor != 0
	dataType := netcdf.FLOAT
	if packed {
		dataType = netcdf.SHORT
	}
	vData, err := f.AddVar(s.Name, dataType, gridDims)
	if err != nil {
		return err
	}

	if err := vTime.Attr("units").WriteBytes([]byte("hours since 1-1-1 00:00:0.0")); err != nil {
		return err
	}
	if err := vLat.Attr("units").WriteBytes([]byte("degrees_north")); err != nil {
		return err
	}
	if err := vLon.Attr("units").WriteBytes([]byte("degrees_east")); err != nil {
		return err
	}
	if s.Units != "" {
		if err := vData.Attr("units").WriteBytes([]byte(s.Units)); err != nil {
			return err
		}
	}
	lo, hi := validRange(s.Values)
	if err := vData.Attr("actual_range").WriteFloat32s([]float32{float32(lo), float32(hi)}); err != nil {
		return err
	}
	if packed {
		if err := vData.Attr("scale_factor").WriteFloat32s([]float32{s.ScaleFactor}); err != nil {
			return err
		}
		if err := vData.Attr("add_offset").WriteFloat32s([]float32{s.AddOffset}); err != nil {
			return err
		}
		if err := vData.Attr("missing_value").WriteInt16s([]int16{PackedMissing}); err != nil {
			return err
		}
	} else {
		if err := vData.Attr("missing_value").WriteFloat32s([]float32{floatMissing}); err != nil {
			return err
		}
	}

	if err := f.EndDef(); err != nil {
		return fmt.Errorf("enddef: %w", err)
	}

	if err := vTime.WriteFloat64s(s.Time); err != nil {
		return fmt.Errorf("write time: %w", err)
	}
	if err := vLat.WriteFloat32s(toFloat32s(s.Lat)); err != nil {
		return fmt.Errorf("write lat: %w", err)
	}
	if err := vLon.WriteFloat32s(toFloat32s(s.Lon)); err != nil {
		return fmt.Errorf("write lon: %w", err)
	}

	flat := flatten(s, nTime, nLat, nLon)
	if packed {
		raw := make([]int16, len(flat))
		for i, x := range flat {
			if math.IsNaN(x) {
				raw[i] = PackedMissing
				continue
			}
			raw[i] = int16(math.Round((x - float64(s.AddOffset)) / float64(s.ScaleFactor)))
		}
		if err := vData.WriteInt16s(raw); err != nil {
			return fmt.Errorf("write %s: %w", s.Name, err)
		}
		return nil
	}

	raw := make([]float32, len(flat))
	for i, x := range flat {
		if math.IsNaN(x) {
			raw[i] = floatMissing
			continue
		}
		raw[i] = float32(x)
	}
	if err := vData.WriteFloat32s(raw); err != nil {
		return fmt.Errorf("write %s: %w", s.Name, err)
	}
	return nil
}

// flatten lays values out in file dimension order.
func flatten(s Synthetic, nTime, nLat, nLon int) []float64 {
	flat := make([]float64, 0, nTime*nLat*nLon)
	for t := 0; t < nTime; t++ {
		if s.LonFirst {
			for i := 0; i < nLon; i++ {
				flat = append(flat, s.Values[t][i]...)
			}
			continue
		}
		for j := 0; j < nLat; j++ {
			for i := 0; i < nLon; i++ {
				flat = append(flat, s.Values[t][i][j])
			}
		}
	}
	return flat
}

func validRange(values [][][]float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, slice := range values {
		for _, row := range slice {
			for _, x := range row {
				if math.IsNaN(x) {
					continue
				}
				lo = math.Min(lo, x)
				hi = math.Max(hi, x)
			}
		}
	}
	if lo > hi {
		return 0, 0
	}
	return lo, hi
}

func toFloat32s(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, x := range in {
		out[i] = float32(x)
	}
	return out
}
