package places

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outsy/internal/directory"
	"outsy/internal/shared/geo"
)

func doc(t *testing.T, p Place) directory.Document {
	t.Helper()
	data, err := json.Marshal(p.Fields())
	require.NoError(t, err)
	return directory.Document{ID: p.ID, Data: data}
}

func TestCatalogReplacesWholesale(t *testing.T) {
	cat := NewCatalog()

	cat.Apply(directory.Snapshot{
		doc(t, Place{ID: "a", Name: "A"}),
		doc(t, Place{ID: "b", Name: "B"}),
	})
	require.Equal(t, 2, cat.Len())

	cat.Apply(directory.Snapshot{
		doc(t, Place{ID: "b", Name: "B2"}),
		doc(t, Place{ID: "c", Name: "C"}),
	})
	assert.Equal(t, []string{"B2", "C"}, names(cat.Places()))
}

func TestCatalogApplyDropsUndecodable(t *testing.T) {
	cat := NewCatalog()
	dropped := cat.Apply(directory.Snapshot{
		doc(t, Place{ID: "a", Name: "A"}),
		{ID: "bad", Data: json.RawMessage(`{"location":[1,2]}`)},
		doc(t, Place{ID: "c", Name: "C"}),
	})

	assert.Equal(t, 1, dropped)
	assert.Equal(t, []string{"A", "C"}, names(cat.Places()))
}

func TestCatalogNotifiesSynchronously(t *testing.T) {
	cat := NewCatalog()

	var seen [][]string
	cancel := cat.Observe(func(ps []Place) {
		seen = append(seen, names(ps))
	})

	cat.Replace([]Place{{ID: "a", Name: "A"}})
	require.Len(t, seen, 1, "observer runs before Replace returns")
	assert.Equal(t, []string{"A"}, seen[0])

	cat.Reset()
	require.Len(t, seen, 2)
	assert.Empty(t, seen[1])

	cancel()
	cat.Replace([]Place{{ID: "b", Name: "B"}})
	assert.Len(t, seen, 2)
}

func TestCatalogDedupesByID(t *testing.T) {
	cat := NewCatalog()
	cat.Replace([]Place{
		{ID: "a", Name: "A"},
		{ID: "b", Name: "B"},
		{ID: "a", Name: "A2"},
	})
	assert.Equal(t, []string{"A2", "B"}, names(cat.Places()))
}

func TestCatalogPlacesIsACopy(t *testing.T) {
	cat := NewCatalog()
	cat.Replace([]Place{{ID: "a", Name: "A"}})

	got := cat.Places()
	got[0].Name = "mutated"
	assert.Equal(t, "A", cat.Places()[0].Name)
}

func TestCatalogCategoriesAndSearch(t *testing.T) {
	cat := NewCatalog()
	cat.Replace([]Place{
		{ID: "1", Name: "Loud Pub", Category: "Pub"},
		{ID: "2", Name: "Cafe Central", Category: "Cafe"},
		{ID: "3", Name: "Quiet Pub", Category: "Pub"},
	})

	assert.ElementsMatch(t, []string{"Pub", "Cafe"}, cat.Categories())
	assert.Equal(t, []string{"Loud Pub", "Quiet Pub"}, names(cat.Search(SearchFilter{}.WithCategory("Pub"))))
}

func TestCatalogNearbyMatchesFilter(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	places := make([]Place, 500)
	for i := range places {
		places[i] = Place{
			ID:       string(rune('A'+i%26)) + string(rune('a'+i/26)),
			Location: geo.Point{Lat: 44 + r.Float64()*2 - 1, Lng: 20 + r.Float64()*2 - 1},
		}
	}

	cat := NewCatalog()
	cat.Replace(places)
	origin := geo.Point{Lat: 44.2, Lng: 20.3}

	for _, radius := range []float64{0, 1, 10, 35, 120, 500} {
		want := Filter(places, SearchFilter{}.WithRadius(radius).WithOrigin(origin))
		assert.Equal(t, want, cat.Nearby(origin, radius), "radius %v", radius)
	}

	cat.Replace(places[:10])
	want := Filter(places[:10], SearchFilter{}.WithRadius(500).WithOrigin(origin))
	assert.Equal(t, want, cat.Nearby(origin, 500), "index is rebuilt after replace")
}

func TestCatalogSearchWithRadiusMatchesFilter(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	categories := []string{"Pub", "Cafe", "Park"}
	places := make([]Place, 300)
	for i := range places {
		places[i] = Place{
			ID:       fmt.Sprintf("p%03d", i),
			Name:     fmt.Sprintf("Place %d", i),
			Category: categories[i%len(categories)],
			Location: geo.Point{Lat: 44 + r.Float64() - 0.5, Lng: 20 + r.Float64() - 0.5},
		}
	}

	origin := geo.Point{Lat: 44.1, Lng: 20.05}
	filters := []SearchFilter{
		SearchFilter{}.WithRadius(5).WithOrigin(origin),
		SearchFilter{}.WithRadius(20).WithOrigin(origin),
		SearchFilter{}.WithRadius(20).WithOrigin(origin).WithCategory("Pub"),
		SearchFilter{}.WithRadius(40).WithOrigin(origin).WithQuery("place 1"),
		SearchFilter{}.WithRadius(math.NaN()).WithOrigin(origin),
		SearchFilter{}.WithRadius(15),
		{},
	}

	// Longitudes past +-180 are never range-checked on decode; haversine
	// wraps them onto the origin.
	wrapped := append(slices.Clone(places),
		Place{ID: "wrapped-east", Name: "Wrapped", Category: "Pub", Location: geo.Point{Lat: 44.1, Lng: 380.05}},
		Place{ID: "wrapped-west", Name: "Wrapped", Category: "Cafe", Location: geo.Point{Lat: 44.1, Lng: -339.95}},
	)

	for _, set := range [][]Place{places, wrapped} {
		cat := NewCatalog()
		cat.Replace(set)
		for _, f := range filters {
			assert.Equal(t, Filter(set, f), cat.Search(f))
		}
	}

	cat := NewCatalog()
	cat.Replace(wrapped)
	got := cat.Search(SearchFilter{}.WithRadius(0.01).WithOrigin(origin))
	assert.Equal(t, []string{"Wrapped", "Wrapped"}, names(got))
}

func TestCatalogFind(t *testing.T) {
	cat := NewCatalog()
	cat.Replace([]Place{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}})

	p, ok := cat.Find("b")
	require.True(t, ok)
	assert.Equal(t, "B", p.Name)

	_, ok = cat.Find("zzz")
	assert.False(t, ok)
}
