package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"outsy/internal/directory"
	"outsy/internal/domain/places"
	"outsy/internal/shared/geo"
)

func names(ps []places.Place) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Name)
	}
	return out
}

func seed(t *testing.T, dir *directory.Memory, ps ...places.Place) {
	t.Helper()
	for _, p := range ps {
		require.NoError(t, dir.SetDocument(context.Background(), places.Collection, p.ID, p.Fields()))
	}
}

func newBrowse(t *testing.T) (*Browse, *directory.Memory) {
	t.Helper()
	dir := directory.NewMemory()
	seed(t, dir,
		places.Place{ID: "1", Name: "Cafe Central", Category: "Cafe", Location: geo.Point{Lat: 44.0, Lng: 20.0}},
		places.Place{ID: "2", Name: "Loud Pub", Category: "Pub", Location: geo.Point{Lat: 44.1, Lng: 20.1}},
	)
	b := NewBrowse(places.NewFeed(dir, zap.NewNop().Sugar()), zap.NewNop().Sugar())
	t.Cleanup(func() { _ = b.Close() })
	return b, dir
}

func TestBrowseStartLoadsEverything(t *testing.T) {
	b, _ := newBrowse(t)

	var loading []bool
	b.Loading().Observe(func(v bool) { loading = append(loading, v) })

	require.NoError(t, b.Start(context.Background()))
	assert.Equal(t, []string{"Cafe Central", "Loud Pub"}, names(b.Displayed().Get()))
	assert.False(t, b.Loading().Get())
	assert.Contains(t, loading, true)
	assert.ElementsMatch(t, []string{"Cafe", "Pub"}, b.Categories())
}

func TestBrowseFilterChangesRecompute(t *testing.T) {
	b, _ := newBrowse(t)
	require.NoError(t, b.Start(context.Background()))

	b.SetCategory("Pub")
	assert.Equal(t, []string{"Loud Pub"}, names(b.Displayed().Get()))

	b.ClearCategory()
	b.SetQuery("CAFE")
	assert.Equal(t, []string{"Cafe Central"}, names(b.Displayed().Get()))

	b.SetQuery("")
	b.SearchNearby(geo.Point{Lat: 44.0, Lng: 20.0}, 5)
	assert.Equal(t, []string{"Cafe Central"}, names(b.Displayed().Get()))
	require.NotNil(t, b.UserLocation().Get())

	b.ClearFilters()
	assert.Len(t, b.Displayed().Get(), 2)
	assert.NotNil(t, b.UserLocation().Get(), "location survives clearing filters")
}

func TestBrowseLocationAloneDoesNotNarrow(t *testing.T) {
	b, _ := newBrowse(t)
	require.NoError(t, b.Start(context.Background()))

	b.SetUserLocation(geo.Point{Lat: 10, Lng: 10})
	assert.Len(t, b.Displayed().Get(), 2)
	assert.False(t, b.Filter().Get().RadiusActive())
}

func TestBrowseSnapshotRecomputesWithCurrentFilter(t *testing.T) {
	b, dir := newBrowse(t)
	require.NoError(t, b.Start(context.Background()))
	b.SetCategory("Pub")

	var seen [][]string
	b.Displayed().Observe(func(ps []places.Place) { seen = append(seen, names(ps)) })

	seed(t, dir, places.Place{ID: "3", Name: "Quiet Pub", Category: "Pub"})
	require.NotEmpty(t, seen)
	assert.Equal(t, []string{"Loud Pub", "Quiet Pub"}, seen[len(seen)-1])
}

func TestBrowseSubscriptionErrorKeepsPlaces(t *testing.T) {
	b, dir := newBrowse(t)
	require.NoError(t, b.Start(context.Background()))

	dir.Fail(places.Collection, errors.New("permission denied"))
	assert.Equal(t, "permission denied", b.ErrorMessage().Get())
	assert.Len(t, b.Displayed().Get(), 2)
	assert.False(t, b.Loading().Get())

	b.ClearError()
	assert.Empty(t, b.ErrorMessage().Get())
}

func TestBrowseCloseResetsAndStops(t *testing.T) {
	b, dir := newBrowse(t)
	require.NoError(t, b.Start(context.Background()))

	require.NoError(t, b.Close())
	assert.Zero(t, b.Catalog().Len())
	assert.Empty(t, b.Displayed().Get())

	seed(t, dir, places.Place{ID: "3", Name: "Late"})
	assert.Zero(t, b.Catalog().Len())

	require.NoError(t, b.Refresh(context.Background()))
	assert.Equal(t, 3, b.Catalog().Len())
}

func newOwner(t *testing.T, ownerID string) (*Owner, *directory.Memory) {
	t.Helper()
	dir := directory.NewMemory()
	seed(t, dir,
		places.Place{ID: "1", OwnerID: "o1", Name: "Mine"},
		places.Place{ID: "2", OwnerID: "o2", Name: "Theirs"},
	)
	logger := zap.NewNop().Sugar()
	o := NewOwner(ownerID, places.NewService(dir, nil, logger), places.NewFeed(dir, logger), logger)
	t.Cleanup(func() { _ = o.Close() })
	return o, dir
}

func TestOwnerSeesOnlyOwnPlaces(t *testing.T) {
	o, _ := newOwner(t, "o1")
	require.NoError(t, o.Start(context.Background()))
	assert.Equal(t, []string{"Mine"}, names(o.Places().Places()))
}

func TestOwnerAddPlaceRequiresLocation(t *testing.T) {
	o, _ := newOwner(t, "o1")
	require.NoError(t, o.Start(context.Background()))

	_, err := o.AddPlace(context.Background(), "New", "Bar", "", nil)
	assert.ErrorIs(t, err, ErrNoLocation)
	assert.False(t, o.Loading().Get())
	assert.Empty(t, o.ErrorMessage().Get())

	o.SetSelectedLocation(&geo.Point{Lat: 44.8, Lng: 20.4})
	o.SetSelectedLocation(nil)
	_, err = o.AddPlace(context.Background(), "New", "Bar", "", nil)
	assert.ErrorIs(t, err, ErrNoLocation, "only the map selection places a new venue")
	assert.Equal(t, []string{"Mine"}, names(o.Places().Places()))
}

func TestOwnerAddPlace(t *testing.T) {
	o, _ := newOwner(t, "o1")
	require.NoError(t, o.Start(context.Background()))

	o.SetSelectedLocation(&geo.Point{Lat: 44.8, Lng: 20.4})
	id, err := o.AddPlace(context.Background(), "New Bar", "Bar", "cocktails", nil)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	assert.True(t, o.PlaceAdded().Get())
	assert.Nil(t, o.SelectedLocation().Get())
	assert.False(t, o.Loading().Get())
	assert.Equal(t, []string{"Mine", "New Bar"}, names(o.Places().Places()), "the live feed delivers the new place")

	o.ClearPlaceAdded()
	assert.False(t, o.PlaceAdded().Get())
}

func TestOwnerAddPlaceValidationError(t *testing.T) {
	o, _ := newOwner(t, "o1")
	require.NoError(t, o.Start(context.Background()))

	o.SetSelectedLocation(&geo.Point{Lat: 44.8, Lng: 20.4})
	_, err := o.AddPlace(context.Background(), "", "Bar", "", nil)
	require.Error(t, err)
	assert.Contains(t, o.ErrorMessage().Get(), "name")
	assert.False(t, o.PlaceAdded().Get())
	assert.NotNil(t, o.SelectedLocation().Get(), "selection kept for retry")
}

func TestOwnerWithoutAccount(t *testing.T) {
	o, _ := newOwner(t, "")
	require.NoError(t, o.Start(context.Background()))
	assert.Zero(t, o.Places().Len())

	o.SetSelectedLocation(&geo.Point{Lat: 1, Lng: 1})
	_, err := o.AddPlace(context.Background(), "X", "Bar", "", nil)
	assert.ErrorIs(t, err, places.ErrNotAuthenticated)
	assert.Equal(t, "User not logged in.", o.ErrorMessage().Get())
}
