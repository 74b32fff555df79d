package reviews

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"outsy/internal/directory"
)

type Service struct {
	dir    directory.Service
	logger *zap.SugaredLogger
}

func NewService(dir directory.Service, logger *zap.SugaredLogger) *Service {
	return &Service{dir: dir, logger: logger}
}

// Add stores r under a freshly allocated id and returns it.
func (s *Service) Add(ctx context.Context, r Review) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}

	id, err := s.dir.CreateDocument(ctx, Collection)
	if err != nil {
		return "", fmt.Errorf("allocate review id: %w", err)
	}
	r.ID = id

	if err := s.dir.SetDocument(ctx, Collection, id, r.Fields()); err != nil {
		return "", fmt.Errorf("failed to add review: %w", err)
	}
	s.logger.Infow("review added", "review_id", id, "place_id", r.PlaceID, "user_id", r.UserID)
	return id, nil
}

// ForPlace reads the reviews of placeID once, newest first.
func (s *Service) ForPlace(ctx context.Context, placeID string) ([]Review, error) {
	snap, err := s.dir.Get(ctx, byPlace(placeID))
	if err != nil {
		return nil, fmt.Errorf("failed to load reviews: %w", err)
	}
	return s.decode(snap), nil
}

// Watch delivers the reviews of placeID, newest first, on every change.
// Errors go to onErr; the previous list stays valid.
func (s *Service) Watch(ctx context.Context, placeID string, fn func([]Review), onErr func(error)) (directory.Subscription, error) {
	return s.dir.Subscribe(ctx, byPlace(placeID), func(snap directory.Snapshot, err error) {
		if err != nil {
			s.logger.Warnw("review subscription error", "place_id", placeID, "error", err.Error())
			if onErr != nil {
				onErr(err)
			}
			return
		}
		fn(s.decode(snap))
	})
}

func byPlace(placeID string) directory.Query {
	return directory.Collection(Collection).WhereEqual(placeField, placeID)
}

func (s *Service) decode(snap directory.Snapshot) []Review {
	out := make([]Review, 0, len(snap))
	for _, doc := range snap {
		r, err := Decode(doc)
		if err != nil {
			s.logger.Debugw("dropped undecodable review", "review_id", doc.ID, "error", err.Error())
			continue
		}
		out = append(out, r)
	}
	slices.SortStableFunc(out, func(a, b Review) int {
		return cmp.Compare(b.CreatedAt.UnixNano(), a.CreatedAt.UnixNano())
	})
	return out
}
