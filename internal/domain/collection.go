package domain

// Collection maps each octant to a time-ordered series, indexed by
// OctantKey.Index. A nil entry means the octant is absent; a present octant
// with no admitted timesteps holds an empty, non-nil slice.
type Collection [NumOctants][]float64

// Get returns the series for k and whether the octant is present.
func (c *Collection) Get(k OctantKey) ([]float64, bool) {
	s := c[k.Index()]
	return s, s != nil
}

// Set stores the series for k. A nil series is stored as empty.
func (c *Collection) Set(k OctantKey, values []float64) {
	if values == nil {
		values = []float64{}
	}
	c[k.Index()] = values
}

// Keys returns the present octants in index order.
func (c *Collection) Keys() []OctantKey {
	keys := make([]OctantKey, 0, NumOctants)
	for i, s := range c {
		if s != nil {
			keys = append(keys, OctantAt(i))
		}
	}
	return keys
}

// Len returns the length of the series, or -1 if present octants disagree.
func (c *Collection) Len() int {
	n := -1
	for _, s := range c {
		if s == nil {
			continue
		}
		if n == -1 {
			n = len(s)
		} else if n != len(s) {
			return -1
		}
	}
	if n == -1 {
		return 0
	}
	return n
}

// Clone returns a deep copy.
func (c *Collection) Clone() Collection {
	var out Collection
	for i, s := range c {
		if s != nil {
			out[i] = append([]float64{}, s...)
		}
	}
	return out
}

// Map returns the collection keyed by the string form of each present octant.
func (c *Collection) Map() map[string][]float64 {
	m := make(map[string][]float64, NumOctants)
	for _, k := range c.Keys() {
		m[k.String()] = c[k.Index()]
	}
	return m
}
