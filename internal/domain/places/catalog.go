package places

import (
	"context"
	"math"
	"slices"
	"sync"

	"outsy/internal/directory"
	"outsy/internal/shared/geo"
	"outsy/internal/state"
)

// Catalog is the in-memory mirror of a place query. Every snapshot replaces
// the previous contents wholesale; there is no merge.
type Catalog struct {
	places *state.Cell[[]Place]

	mu      sync.Mutex
	index   *geo.Index
	indexed []Place
}

func NewCatalog() *Catalog {
	return &Catalog{places: state.NewCell([]Place{})}
}

// Replace swaps in places and notifies observers before returning. Places
// sharing an id collapse into one entry at the first position, last write wins.
func (c *Catalog) Replace(places []Place) {
	c.places.Set(dedupe(places))
}

// Apply decodes snap into the catalog and returns how many documents were
// dropped because they could not be decoded.
func (c *Catalog) Apply(snap directory.Snapshot) int {
	decoded, dropped := DecodeAll(snap)
	c.Replace(decoded)
	return dropped
}

// Reset empties the catalog.
func (c *Catalog) Reset() {
	c.places.Set([]Place{})
}

func (c *Catalog) Places() []Place {
	return slices.Clone(c.places.Get())
}

// Find returns the place with id, if present.
func (c *Catalog) Find(id string) (Place, bool) {
	for _, p := range c.places.Get() {
		if p.ID == id {
			return p, true
		}
	}
	return Place{}, false
}

func (c *Catalog) Len() int {
	return len(c.places.Get())
}

func (c *Catalog) Categories() []string {
	return AvailableCategories(c.places.Get())
}

// Search runs Filter over the current contents. An active radius stage is
// answered from the spatial index first.
func (c *Catalog) Search(f SearchFilter) []Place {
	if f.IsEmpty() {
		return c.Places()
	}
	if f.RadiusActive() && !math.IsNaN(*f.RadiusKm) {
		return Filter(c.Nearby(*f.Origin, *f.RadiusKm), f.WithoutRadius())
	}
	return Filter(c.places.Get(), f)
}

// Nearby returns the places within radiusKm of origin, in catalog order.
// The result equals Filter with only the radius stage active.
func (c *Catalog) Nearby(origin geo.Point, radiusKm float64) []Place {
	current := c.places.Get()
	idx := c.spatialIndex(current)

	hits := idx.Within(origin, radiusKm)
	out := make([]Place, 0, len(hits))
	for _, i := range hits {
		out = append(out, current[i])
	}
	return out
}

// spatialIndex returns an index over current, rebuilding it when the
// catalog has been replaced since the last build.
func (c *Catalog) spatialIndex(current []Place) *geo.Index {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.index != nil && sameBacking(c.indexed, current) {
		return c.index
	}
	points := make([]geo.Point, len(current))
	for i, p := range current {
		points[i] = p.Location
	}
	c.index = geo.NewIndex(points)
	c.indexed = current
	return c.index
}

func (c *Catalog) Observe(fn func([]Place)) (cancel func()) {
	return c.places.Observe(fn)
}

func (c *Catalog) Watch(ctx context.Context) <-chan []Place {
	return c.places.Watch(ctx)
}

func dedupe(places []Place) []Place {
	out := make([]Place, 0, len(places))
	pos := make(map[string]int, len(places))
	for _, p := range places {
		if p.ID != "" {
			if i, ok := pos[p.ID]; ok {
				out[i] = p
				continue
			}
			pos[p.ID] = len(out)
		}
		out = append(out, p)
	}
	return out
}

func sameBacking(a, b []Place) bool {
	if len(a) != len(b) {
		return false
	}
	return len(a) == 0 || &a[0] == &b[0]
}
