// Package session holds the per-screen state of the two map views: the
// browsing user's and the place owner's. Each session owns its cells and is
// their only writer.
package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"outsy/internal/directory"
	"outsy/internal/domain/places"
	"outsy/internal/shared/geo"
	"outsy/internal/state"
)

const loadPlacesFailed = "Error loading places"

// Browse keeps the displayed subset equal to Filter(catalog, filter). A new
// snapshot or any filter change recomputes it before the triggering call
// returns. Observers of the displayed cell must not call back into Browse.
type Browse struct {
	feed   *places.Feed
	logger *zap.SugaredLogger

	catalog   *places.Catalog
	filter    *state.Cell[places.SearchFilter]
	displayed *state.Cell[[]places.Place]
	location  *state.Cell[*geo.Point]
	loading   *state.Cell[bool]
	errMsg    *state.Cell[string]

	recomputeMu sync.Mutex

	subMu sync.Mutex
	sub   directory.Subscription
}

func NewBrowse(feed *places.Feed, logger *zap.SugaredLogger) *Browse {
	b := &Browse{
		feed:      feed,
		logger:    logger,
		catalog:   places.NewCatalog(),
		filter:    state.NewCell(places.SearchFilter{}),
		displayed: state.NewCell([]places.Place{}),
		location:  state.NewCell[*geo.Point](nil),
		loading:   state.NewCell(false),
		errMsg:    state.NewCell(""),
	}
	b.catalog.Observe(func([]places.Place) {
		b.loading.Set(false)
		b.recompute()
	})
	b.filter.Observe(func(places.SearchFilter) { b.recompute() })
	return b
}

// Start subscribes to every place. Calling it again replaces the running
// subscription.
func (b *Browse) Start(ctx context.Context) error {
	b.subMu.Lock()
	defer b.subMu.Unlock()

	b.stopLocked()
	b.loading.Set(true)
	b.errMsg.Set("")

	sub, err := b.feed.Global(ctx, b.catalog, func(err error) {
		b.logger.Errorw("error loading places", "error", err.Error())
		b.errMsg.Set(userMessage(err, loadPlacesFailed))
		b.loading.Set(false)
	})
	if err != nil {
		b.loading.Set(false)
		b.errMsg.Set(userMessage(err, loadPlacesFailed))
		return err
	}
	b.sub = sub
	return nil
}

// Refresh tears the subscription down and subscribes again.
func (b *Browse) Refresh(ctx context.Context) error {
	return b.Start(ctx)
}

// Close stops delivery and empties the catalog.
func (b *Browse) Close() error {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	return b.stopLocked()
}

func (b *Browse) stopLocked() error {
	if b.sub == nil {
		return nil
	}
	err := b.sub.Close()
	b.sub = nil
	b.catalog.Reset()
	return err
}

func (b *Browse) SetQuery(q string) {
	b.filter.Update(func(f places.SearchFilter) places.SearchFilter { return f.WithQuery(q) })
}

func (b *Browse) SetCategory(category string) {
	b.filter.Update(func(f places.SearchFilter) places.SearchFilter { return f.WithCategory(category) })
}

func (b *Browse) ClearCategory() {
	b.filter.Update(func(f places.SearchFilter) places.SearchFilter { return f.WithoutCategory() })
}

// SetUserLocation records where the user is and makes it the radius origin.
func (b *Browse) SetUserLocation(p geo.Point) {
	b.location.Set(&p)
	b.filter.Update(func(f places.SearchFilter) places.SearchFilter { return f.WithOrigin(p) })
}

// SearchNearby narrows to places within radiusKm of origin.
func (b *Browse) SearchNearby(origin geo.Point, radiusKm float64) {
	b.location.Set(&origin)
	b.filter.Update(func(f places.SearchFilter) places.SearchFilter {
		return f.WithOrigin(origin).WithRadius(radiusKm)
	})
}

// ClearFilters resets every criterion, the radius origin included. The
// recorded user location is kept.
func (b *Browse) ClearFilters() {
	b.filter.Set(places.SearchFilter{})
}

func (b *Browse) ClearError() {
	b.errMsg.Set("")
}

// Categories derives the distinct categories of the whole catalog.
func (b *Browse) Categories() []string {
	return b.catalog.Categories()
}

func (b *Browse) recompute() {
	b.recomputeMu.Lock()
	defer b.recomputeMu.Unlock()
	b.displayed.Set(b.catalog.Search(b.filter.Get()))
}

func (b *Browse) Catalog() *places.Catalog { return b.catalog }
func (b *Browse) Displayed() state.Reader[[]places.Place] { return b.displayed }
func (b *Browse) Filter() state.Reader[places.SearchFilter] { return b.filter }
func (b *Browse) UserLocation() state.Reader[*geo.Point] { return b.location }
func (b *Browse) Loading() state.Reader[bool] { return b.loading }
func (b *Browse) ErrorMessage() state.Reader[string] { return b.errMsg }

func userMessage(err error, fallback string) string {
	if err == nil || err.Error() == "" {
		return fallback
	}
	return err.Error()
}
