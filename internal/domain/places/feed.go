package places

import (
	"context"

	"go.uber.org/zap"

	"outsy/internal/directory"
)

// Feed binds live place queries to catalogs.
type Feed struct {
	dir    directory.Service
	logger *zap.SugaredLogger
}

func NewFeed(dir directory.Service, logger *zap.SugaredLogger) *Feed {
	return &Feed{dir: dir, logger: logger}
}

// Global mirrors every place into cat.
func (f *Feed) Global(ctx context.Context, cat *Catalog, onErr func(error)) (directory.Subscription, error) {
	return f.bind(ctx, directory.Collection(Collection), cat, onErr)
}

// Owner mirrors the places of ownerID into cat. Without an owner the catalog
// is emptied and nothing is subscribed.
func (f *Feed) Owner(ctx context.Context, ownerID string, cat *Catalog, onErr func(error)) (directory.Subscription, error) {
	if ownerID == "" {
		cat.Reset()
		return noopSubscription{}, nil
	}
	return f.bind(ctx, directory.Collection(Collection).WhereEqual(ownerField, ownerID), cat, onErr)
}

// bind is shared by both views. A subscription error leaves the catalog at
// its last delivered value and is handed to onErr. Closing the subscription
// stops delivery but does not empty the catalog; that is the owner's call.
func (f *Feed) bind(ctx context.Context, q directory.Query, cat *Catalog, onErr func(error)) (directory.Subscription, error) {
	sub, err := f.dir.Subscribe(ctx, q, func(snap directory.Snapshot, err error) {
		if err != nil {
			f.logger.Warnw("place subscription error", "collection", q.Collection, "error", err.Error())
			if onErr != nil {
				onErr(err)
			}
			return
		}
		if dropped := cat.Apply(snap); dropped > 0 {
			f.logger.Debugw("dropped undecodable places", "count", dropped, "received", len(snap))
		}
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

type noopSubscription struct{}

func (noopSubscription) Close() error { return nil }
