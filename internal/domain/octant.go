package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// LonBands is the number of longitude bands.
	LonBands = 4
	// LatBands is the number of latitude bands.
	LatBands = 2
	// NumOctants is the number of regions a grid is split into.
	NumOctants = LonBands * LatBands
)

// OctantKey identifies one of the eight regions by (longitude band, latitude band).
type OctantKey struct {
	Lon int // 0..3.
	Lat int // 0..1.
}

// Index returns the dense index of the key in [0, NumOctants).
func (k OctantKey) Index() int {
	return k.Lon*LatBands + k.Lat
}

// Valid reports whether both bands are in range.
func (k OctantKey) Valid() bool {
	return k.Lon >= 0 && k.Lon < LonBands && k.Lat >= 0 && k.Lat < LatBands
}

// String formats the key as "lon-lat", e.g. "2-1".
func (k OctantKey) String() string {
	return strconv.Itoa(k.Lon) + "-" + strconv.Itoa(k.Lat)
}

// ParseOctantKey parses the "lon-lat" form produced by String.
func ParseOctantKey(s string) (OctantKey, error) {
	lonStr, latStr, ok := strings.Cut(s, "-")
	if !ok {
		return OctantKey{}, fmt.Errorf("invalid octant key %q: expected lon-lat", s)
	}
	lon, err := strconv.Atoi(lonStr)
	if err != nil {
		return OctantKey{}, fmt.Errorf("invalid octant key %q: %w", s, err)
	}
	lat, err := strconv.Atoi(latStr)
	if err != nil {
		return OctantKey{}, fmt.Errorf("invalid octant key %q: %w", s, err)
	}
	k := OctantKey{Lon: lon, Lat: lat}
	if !k.Valid() {
		return OctantKey{}, fmt.Errorf("invalid octant key %q: bands out of range", s)
	}
	return k, nil
}

// OctantAt returns the key with the given dense index.
func OctantAt(i int) OctantKey {
	return OctantKey{Lon: i / LatBands, Lat: i % LatBands}
}

// AllOctants returns every key in index order.
func AllOctants() []OctantKey {
	keys := make([]OctantKey, NumOctants)
	for i := range keys {
		keys[i] = OctantAt(i)
	}
	return keys
}

// Partitioner assigns grid positions to octants using fixed fractional bands.
//
// The extents may be index counts or physical coordinate spans, as long as
// Classify is called with values in the same unit.
type Partitioner struct {
	lonExtent  float64
	latExtent  float64
	lonDivisor float64
	latDivisor float64
}

// NewPartitioner creates a partitioner for the given extents.
func NewPartitioner(lonExtent, latExtent float64) (*Partitioner, error) {
	if !(lonExtent > 0) || math.IsInf(lonExtent, 0) {
		return nil, fmt.Errorf("longitude extent must be positive and finite, got %v", lonExtent)
	}
	if !(latExtent > 0) || math.IsInf(latExtent, 0) {
		return nil, fmt.Errorf("latitude extent must be positive and finite, got %v", latExtent)
	}
	return &Partitioner{
		lonExtent:  lonExtent,
		latExtent:  latExtent,
		lonDivisor: lonExtent / LonBands,
		latDivisor: latExtent / LatBands,
	}, nil
}

// Classify returns the octant containing (lon, lat). A value exactly on a band
// boundary belongs to the higher band.
func (p *Partitioner) Classify(lon, lat float64) (OctantKey, error) {
	if !(lon >= 0 && lon < p.lonExtent) {
		return OctantKey{}, fmt.Errorf("%w: longitude %v not in [0, %v)", ErrInvalidCoordinate, lon, p.lonExtent)
	}
	if !(lat >= 0 && lat < p.latExtent) {
		return OctantKey{}, fmt.Errorf("%w: latitude %v not in [0, %v)", ErrInvalidCoordinate, lat, p.latExtent)
	}

	k := OctantKey{
		Lon: int(math.Floor(lon / p.lonDivisor)),
		Lat: int(math.Floor(lat / p.latDivisor)),
	}
	// Rounding must never push the top index into a fifth band.
	if !k.Valid() {
		return OctantKey{}, fmt.Errorf("%w: (%v, %v) resolved to band %s", ErrInvalidCoordinate, lon, lat, k)
	}
	return k, nil
}

// CellMap classifies every index of an nLon x nLat grid once. The result is
// indexed [lon][lat] and holds dense octant indices.
func (p *Partitioner) CellMap(nLon, nLat int) ([][]int, error) {
	cells := make([][]int, nLon)
	for i := 0; i < nLon; i++ {
		cells[i] = make([]int, nLat)
		for j := 0; j < nLat; j++ {
			k, err := p.Classify(float64(i), float64(j))
			if err != nil {
				return nil, err
			}
			cells[i][j] = k.Index()
		}
	}
	return cells, nil
}
