// Package ncep provides access to NCEP/NCAR reanalysis monthly NetCDF files.
package ncep

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fhs/go-netcdf/netcdf"

	"go.ngs.io/geothermophone/internal/adapter/store"
	"go.ngs.io/geothermophone/internal/domain"
)

// Store loads gridded variables from a directory of NetCDF files.
type Store struct {
	dataDir string
	config  FileConfig
	cache   map[string]*domain.Variable // Cache decoded variables.
	mu      sync.RWMutex                // Protect cache.
}

// FileConfig defines the expected NetCDF file structure.
type FileConfig struct {
	LatVarName  string // E.g., "lat", "latitude".
	LonVarName  string // E.g., "lon", "longitude".
	TimeVarName string // E.g., "time".
}

// DefaultConfig returns the layout used by the reanalysis monthly means.
func DefaultConfig() FileConfig {
	return FileConfig{
		LatVarName:  "lat",
		LonVarName:  "lon",
		TimeVarName: "time",
	}
}

// NewStore creates a new NetCDF store rooted at dataDir.
func NewStore(dataDir string) *Store {
	return &Store{
		dataDir: dataDir,
		config:  DefaultConfig(),
		cache:   make(map[string]*domain.Variable),
	}
}

// Load decodes the named variable, using the cache if it was read before.
// The returned variable is shared and must not be modified.
func (s *Store) Load(name string) (*domain.Variable, error) {
	s.mu.RLock()
	if v, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return v, nil
	}
	s.mu.RUnlock()

	path, err := s.findFile(candidateFiles(name))
	if err != nil {
		return nil, fmt.Errorf("%w: %s in %s", store.ErrNotFound, name, s.dataDir)
	}

	v, err := LoadFile(path, name, s.config)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s from %s: %w", name, path, err)
	}

	s.mu.Lock()
	s.cache[name] = v
	s.mu.Unlock()

	return v, nil
}

// Available returns the catalog variables that have a file under dataDir.
func (s *Store) Available() ([]string, error) {
	if _, err := os.Stat(s.dataDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("data directory does not exist: %s", s.dataDir)
	}

	files := make(map[string]bool)
	err := filepath.WalkDir(s.dataDir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".nc") {
			files[strings.ToLower(d.Name())] = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk data directory: %w", err)
	}

	names := make([]string, 0, len(domain.KnownVariables))
	for name := range domain.KnownVariables {
		for _, candidate := range candidateFiles(name) {
			if files[candidate] {
				names = append(names, name)
				break
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

// candidateFiles lists file names that may hold the variable, most specific first.
func candidateFiles(name string) []string {
	lower := strings.ToLower(name)
	var candidates []string
	if info, ok := domain.GetVariableInfo(lower); ok {
		candidates = append(candidates, strings.ToLower(info.FileName))
	}
	return append(candidates,
		lower+".mon.mean.nc",
		lower+".nc",
	)
}

// findFile returns the first candidate found anywhere under dataDir.
func (s *Store) findFile(candidates []string) (string, error) {
	errNotFound := errors.New("not found")
	errFound := errors.New("found")

	for _, target := range candidates {
		var match string
		err := filepath.WalkDir(s.dataDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(d.Name(), target) {
				match = path
				return errFound
			}
			return nil
		})
		if errors.Is(err, errFound) {
			return match, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", errNotFound
}

// LoadFile reads a (time, lat, lon) or (time, lon, lat) variable from a NetCDF
// file and returns it ordered [time][lon][lat] in physical units.
func LoadFile(path, varName string, config FileConfig) (*domain.Variable, error) {
	nc, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("failed to open NetCDF file: %w", err)
	}
	defer func() { _ = nc.Close() }()

	latNames := []string{config.LatVarName, "latitude", "lat", "y"}
	lonNames := []string{config.LonVarName, "longitude", "lon", "x"}

	latData, err := readFirst1D(nc, latNames)
	if err != nil {
		return nil, fmt.Errorf("latitude variable not found (tried: %v)", latNames)
	}
	lonData, err := readFirst1D(nc, lonNames)
	if err != nil {
		return nil, fmt.Errorf("longitude variable not found (tried: %v)", lonNames)
	}
	timeData, err := readFirst1D(nc, []string{config.TimeVarName, "time", "t"})
	if err != nil {
		return nil, fmt.Errorf("time variable not found: %w", err)
	}

	dataVar, err := nc.Var(varName)
	if err != nil {
		return nil, fmt.Errorf("data variable %s not found: %w", varName, err)
	}

	dims, err := dataVar.Dims()
	if err != nil {
		return nil, fmt.Errorf("failed to get dimensions: %w", err)
	}
	if len(dims) != 3 {
		return nil, fmt.Errorf("expected 3D data, got %dD", len(dims))
	}
	lens := make([]int, 3)
	for i, d := range dims {
		n, err := d.Len()
		if err != nil {
			return nil, fmt.Errorf("failed to get dim%d length: %w", i, err)
		}
		lens[i] = int(n)
	}

	nTime, nLat, nLon := len(timeData), len(latData), len(lonData)
	if lens[0] != nTime {
		return nil, fmt.Errorf("time dimension mismatch: data has %d steps, time axis has %d", lens[0], nTime)
	}
	latFirst, err := latitudeFirst(dims, lens, nLat, nLon, latNames)
	if err != nil {
		return nil, err
	}

	flat, err := readFlatFloat64(dataVar, nTime*nLat*nLon)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}

	p := readPacking(dataVar)
	samples := make([][][]float64, nTime)
	for t := 0; t < nTime; t++ {
		slice := make([][]float64, nLon)
		for i := 0; i < nLon; i++ {
			slice[i] = make([]float64, nLat)
		}
		base := t * nLat * nLon
		for i := 0; i < nLon; i++ {
			for j := 0; j < nLat; j++ {
				var raw float64
				if latFirst {
					raw = flat[base+j*nLon+i]
				} else {
					raw = flat[base+i*nLat+j]
				}
				slice[i][j] = p.unpack(raw)
			}
		}
		samples[t] = slice
	}

	v := &domain.Variable{
		Name:    varName,
		Units:   readAttrString(dataVar, "units"),
		Samples: samples,
		Time:    timeData,
		Lon:     lonData,
		Lat:     latData,
	}
	if p.hasMissing {
		v.Missing = p.missing()
		v.HasMissing = true
	}
	if r, ok := readAttrFloats(dataVar, "actual_range", 2); ok {
		v.ActualRange = [2]float64{r[0], r[1]}
	}
	return v, nil
}

// latitudeFirst reports whether the spatial dimensions are stored (lat, lon).
// Dimension names decide first; lengths are used when names are unhelpful.
func latitudeFirst(dims []netcdf.Dim, lens []int, nLat, nLon int, latNames []string) (bool, error) {
	if name, err := dims[1].Name(); err == nil && containsFold(latNames, name) && lens[1] == nLat && lens[2] == nLon {
		return true, nil
	}
	if name, err := dims[2].Name(); err == nil && containsFold(latNames, name) && lens[1] == nLon && lens[2] == nLat {
		return false, nil
	}

	type dimOrder struct{ d1, d2 int }
	switch (dimOrder{lens[1], lens[2]}) {
	case dimOrder{nLat, nLon}:
		return true, nil
	case dimOrder{nLon, nLat}:
		return false, nil
	default:
		return false, fmt.Errorf("dimension mismatch: data is [%d, %d], expected [%d, %d] or [%d, %d]",
			lens[1], lens[2], nLat, nLon, nLon, nLat)
	}
}

func containsFold(names []string, s string) bool {
	for _, n := range names {
		if strings.EqualFold(n, s) {
			return true
		}
	}
	return false
}

// packing holds the scale/offset encoding of a variable.
type packing struct {
	scale      float64
	offset     float64
	rawMissing float64
	hasMissing bool
}

func readPacking(v netcdf.Var) packing {
	p := packing{scale: 1}
	if vals, ok := readAttrFloats(v, "scale_factor", 1); ok {
		p.scale = vals[0]
	}
	if vals, ok := readAttrFloats(v, "add_offset", 1); ok {
		p.offset = vals[0]
	}
	p.rawMissing, p.hasMissing = getFillValue(v)
	return p
}

// missing returns the unpacked fill value.
func (p packing) missing() float64 {
	return p.rawMissing*p.scale + p.offset
}

// unpack converts a stored value to physical units. Raw fill values map to
// exactly missing(), so equality checks downstream still hold.
func (p packing) unpack(raw float64) float64 {
	if p.hasMissing && raw == p.rawMissing {
		return p.missing()
	}
	return raw*p.scale + p.offset
}

// getFillValue returns the missing_value or _FillValue attribute if present as float64.
func getFillValue(v netcdf.Var) (float64, bool) {
	for _, name := range []string{"missing_value", "_FillValue"} {
		if vals, ok := readAttrFloats(v, name, 1); ok {
			return vals[0], true
		}
	}
	return 0, false
}

// readAttrFloats reads the first n values of a numeric attribute as float64.
func readAttrFloats(v netcdf.Var, name string, n int) ([]float64, bool) {
	a := v.Attr(name)
	length, err := a.Len()
	if err != nil || int(length) < n {
		return nil, false
	}
	t, err := a.Type()
	if err != nil {
		return nil, false
	}

	out := make([]float64, length)
	switch t {
	case netcdf.DOUBLE:
		if err := a.ReadFloat64s(out); err != nil {
			return nil, false
		}
	case netcdf.FLOAT:
		buf := make([]float32, length)
		if err := a.ReadFloat32s(buf); err != nil {
			return nil, false
		}
		for i, x := range buf {
			out[i] = float64(x)
		}
	case netcdf.INT:
		buf := make([]int32, length)
		if err := a.ReadInt32s(buf); err != nil {
			return nil, false
		}
		for i, x := range buf {
			out[i] = float64(x)
		}
	case netcdf.SHORT:
		buf := make([]int16, length)
		if err := a.ReadInt16s(buf); err != nil {
			return nil, false
		}
		for i, x := range buf {
			out[i] = float64(x)
		}
	default:
		return nil, false
	}
	return out[:n], true
}

// readAttrString reads a text attribute, returning "" if absent.
func readAttrString(v netcdf.Var, name string) string {
	a := v.Attr(name)
	length, err := a.Len()
	if err != nil || length == 0 {
		return ""
	}
	buf := make([]byte, length)
	if err := a.ReadBytes(buf); err != nil {
		return ""
	}
	return strings.TrimRight(string(buf), "\x00")
}

// readFirst1D reads the first of names that exists as a 1D variable.
func readFirst1D(nc netcdf.Dataset, names []string) ([]float64, error) {
	var lastErr error = fmt.Errorf("none of %v present", names)
	for _, name := range names {
		if name == "" {
			continue
		}
		v, err := nc.Var(name)
		if err != nil {
			continue
		}
		data, err := readFloat64Var(v)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// readFloat64Var reads a 1D float64 array from a NetCDF variable.
func readFloat64Var(v netcdf.Var) ([]float64, error) {
	dims, err := v.Dims()
	if err != nil {
		return nil, fmt.Errorf("failed to get dimensions: %w", err)
	}
	if len(dims) != 1 {
		return nil, fmt.Errorf("expected 1D variable, got %dD", len(dims))
	}
	length, err := dims[0].Len()
	if err != nil {
		return nil, err
	}
	return readFlatFloat64(v, int(length))
}

// readFlatFloat64 reads total values of a numeric variable as float64.
func readFlatFloat64(v netcdf.Var, total int) ([]float64, error) {
	t, err := v.Type()
	if err != nil {
		return nil, fmt.Errorf("failed to get var type: %v", err)
	}

	flat := make([]float64, total)
	switch t {
	case netcdf.DOUBLE:
		if err := v.ReadFloat64s(flat); err != nil {
			return nil, err
		}
	case netcdf.FLOAT:
		tmp := make([]float32, total)
		if err := v.ReadFloat32s(tmp); err != nil {
			return nil, err
		}
		for i, val := range tmp {
			flat[i] = float64(val)
		}
	case netcdf.INT:
		tmp := make([]int32, total)
		if err := v.ReadInt32s(tmp); err != nil {
			return nil, err
		}
		for i, val := range tmp {
			flat[i] = float64(val)
		}
	case netcdf.SHORT:
		tmp := make([]int16, total)
		if err := v.ReadInt16s(tmp); err != nil {
			return nil, err
		}
		for i, val := range tmp {
			flat[i] = float64(val)
		}
	default:
		return nil, fmt.Errorf("unsupported data type: %v", t)
	}
	return flat, nil
}
