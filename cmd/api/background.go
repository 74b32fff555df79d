package main

import (
	"context"
	"errors"
	"time"

	"outsy/internal/directory"
)

const catalogRetryDelay = 5 * time.Second

// syncCatalog keeps app.catalog subscribed to every place until ctx is done.
// Transient errors are only logged: the backend keeps the subscription and
// the catalog keeps its last snapshot. A closed subscription is replaced
// after retry.
func (app *application) syncCatalog(ctx context.Context, retry time.Duration) {
	for {
		closed := make(chan struct{}, 1)
		sub, err := app.store.Feed.Global(ctx, app.catalog, func(err error) {
			if errors.Is(err, directory.ErrClosed) {
				select {
				case closed <- struct{}{}:
				default:
				}
			}
		})
		if err != nil {
			app.logger.Errorw("place catalog subscribe failed", "error", err.Error(), "retry_in", retry)
		} else {
			app.logger.Infow("place catalog subscribed", "places", app.catalog.Len())

			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case <-closed:
				app.logger.Errorw("place catalog subscription closed, resubscribing", "retry_in", retry)
				_ = sub.Close()
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(retry):
		}
	}
}
