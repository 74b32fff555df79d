package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"outsy/internal/directory"
	"outsy/internal/domain/places"
	"outsy/internal/shared/geo"
	"outsy/internal/state"
)

var ErrNoLocation = errors.New("select a location on the map first")

const (
	loadOwnerPlacesFailed = "Failed to load places"
	notLoggedIn           = "User not logged in."
	unknownError          = "Unknown error."
)

// Owner is the place owner's view: their own places, a location picked on
// the map and the add-place flow.
type Owner struct {
	ownerID string
	svc     *places.Service
	feed    *places.Feed
	logger  *zap.SugaredLogger

	catalog    *places.Catalog
	selected   *state.Cell[*geo.Point]
	loading    *state.Cell[bool]
	placeAdded *state.Cell[bool]
	errMsg     *state.Cell[string]

	subMu sync.Mutex
	sub   directory.Subscription
}

func NewOwner(ownerID string, svc *places.Service, feed *places.Feed, logger *zap.SugaredLogger) *Owner {
	return &Owner{
		ownerID:    ownerID,
		svc:        svc,
		feed:       feed,
		logger:     logger,
		catalog:    places.NewCatalog(),
		selected:   state.NewCell[*geo.Point](nil),
		loading:    state.NewCell(false),
		placeAdded: state.NewCell(false),
		errMsg:     state.NewCell(""),
	}
}

// Start subscribes to the owner's places. New places show up through the
// subscription, so adding one never resubscribes.
func (o *Owner) Start(ctx context.Context) error {
	o.subMu.Lock()
	defer o.subMu.Unlock()

	o.stopLocked()
	sub, err := o.feed.Owner(ctx, o.ownerID, o.catalog, func(err error) {
		o.logger.Errorw("error loading owner places", "owner_id", o.ownerID, "error", err.Error())
		o.errMsg.Set(userMessage(err, loadOwnerPlacesFailed))
	})
	if err != nil {
		o.errMsg.Set(userMessage(err, loadOwnerPlacesFailed))
		return err
	}
	o.sub = sub
	return nil
}

func (o *Owner) Close() error {
	o.subMu.Lock()
	defer o.subMu.Unlock()
	return o.stopLocked()
}

func (o *Owner) stopLocked() error {
	if o.sub == nil {
		return nil
	}
	err := o.sub.Close()
	o.sub = nil
	o.catalog.Reset()
	return err
}

func (o *Owner) SetSelectedLocation(p *geo.Point) {
	o.selected.Set(p)
}

// AddPlace creates a place at the selected location. On success the
// selection is cleared and PlaceAdded turns true; on failure ErrorMessage
// carries the reason.
func (o *Owner) AddPlace(ctx context.Context, name, category, description string, image []byte) (string, error) {
	loc := o.selected.Get()
	if loc == nil {
		return "", ErrNoLocation
	}
	if o.ownerID == "" {
		o.errMsg.Set(notLoggedIn)
		return "", places.ErrNotAuthenticated
	}

	o.loading.Set(true)
	o.placeAdded.Set(false)
	o.errMsg.Set("")

	id, err := o.svc.Create(ctx, places.NewPlace{
		OwnerID:     o.ownerID,
		Name:        name,
		Location:    *loc,
		Category:    category,
		Description: description,
		Image:       image,
	})
	o.loading.Set(false)
	if err != nil {
		o.errMsg.Set(userMessage(err, unknownError))
		return "", err
	}

	o.placeAdded.Set(true)
	o.selected.Set(nil)
	return id, nil
}

func (o *Owner) ClearError() {
	o.errMsg.Set("")
}

func (o *Owner) ClearPlaceAdded() {
	o.placeAdded.Set(false)
}

func (o *Owner) Places() *places.Catalog { return o.catalog }
func (o *Owner) SelectedLocation() state.Reader[*geo.Point] { return o.selected }
func (o *Owner) Loading() state.Reader[bool] { return o.loading }
func (o *Owner) PlaceAdded() state.Reader[bool] { return o.placeAdded }
func (o *Owner) ErrorMessage() state.Reader[string] { return o.errMsg }
