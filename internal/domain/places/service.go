package places

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"outsy/internal/directory"
	"outsy/internal/media"
	"outsy/internal/validation"
)

type Service struct {
	dir    directory.Service
	media  media.Uploader
	logger *zap.SugaredLogger
}

func NewService(dir directory.Service, uploader media.Uploader, logger *zap.SugaredLogger) *Service {
	if uploader == nil {
		uploader = media.Disabled{}
	}
	return &Service{dir: dir, media: uploader, logger: logger}
}

// Create persists a new place and returns its id. The id is allocated before
// anything is written so the image can be stored under it. A failed image
// upload is logged and the place is saved without an image.
func (s *Service) Create(ctx context.Context, in NewPlace) (string, error) {
	if strings.TrimSpace(in.OwnerID) == "" {
		return "", ErrNotAuthenticated
	}
	if err := validation.Struct(in); err != nil {
		return "", err
	}

	id, err := s.dir.CreateDocument(ctx, Collection)
	if err != nil {
		return "", fmt.Errorf("allocate place id: %w", err)
	}

	place := Place{
		ID:          id,
		OwnerID:     in.OwnerID,
		Name:        in.Name,
		Location:    in.Location,
		Category:    in.Category,
		Description: in.Description,
	}

	if len(in.Image) > 0 {
		url, err := s.media.Upload(ctx, media.PlaceImagePath(id), in.Image)
		if err != nil {
			s.logger.Warnw("place image upload failed, saving without image", "place_id", id, "error", err.Error())
		} else {
			place.ImageURL = url
		}
	}

	if err := s.dir.SetDocument(ctx, Collection, id, place.Fields()); err != nil {
		return "", fmt.Errorf("failed to add place: %w", err)
	}

	s.logger.Infow("place created", "place_id", id, "owner_id", in.OwnerID, "has_image", place.ImageURL != "")
	return id, nil
}

// List reads every place once.
func (s *Service) List(ctx context.Context) ([]Place, error) {
	return s.list(ctx, directory.Collection(Collection))
}

// ListByOwner reads the places of ownerID once. No owner means no places.
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]Place, error) {
	if ownerID == "" {
		return []Place{}, nil
	}
	return s.list(ctx, directory.Collection(Collection).WhereEqual(ownerField, ownerID))
}

func (s *Service) list(ctx context.Context, q directory.Query) ([]Place, error) {
	snap, err := s.dir.Get(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to load places: %w", err)
	}
	out, dropped := DecodeAll(snap)
	if dropped > 0 {
		s.logger.Debugw("dropped undecodable places", "count", dropped)
	}
	return out, nil
}
