package storage

import (
	"go.uber.org/zap"

	"outsy/internal/directory"
	"outsy/internal/domain/places"
	"outsy/internal/domain/reviews"
	"outsy/internal/media"
)

// Container groups the domain services that share one directory backend.
type Container struct {
	Directory directory.Service
	Places    *places.Service
	Reviews   *reviews.Service
	Feed      *places.Feed
}

func NewContainer(dir directory.Service, uploader media.Uploader, logger *zap.SugaredLogger) *Container {
	return &Container{
		Directory: dir,
		Places:    places.NewService(dir, uploader, logger),
		Reviews:   reviews.NewService(dir, logger),
		Feed:      places.NewFeed(dir, logger),
	}
}
