// Package media is the client side of the Media Store: binary uploads that
// come back as retrievable URLs.
package media

import (
	"context"
	"errors"
	"path"
	"strings"
)

var ErrDisabled = errors.New("media: uploads are not configured")

type Uploader interface {
	Upload(ctx context.Context, path string, data []byte) (string, error)
}

// PlaceImagePath is where the cover image of a place is stored.
func PlaceImagePath(placeID string) string {
	return path.Join("places", placeID, "image.jpg")
}

// publicID strips the extension; the store appends its own based on content.
func publicID(p string) string {
	p = strings.TrimPrefix(p, "/")
	return strings.TrimSuffix(p, path.Ext(p))
}

// Disabled rejects every upload. Callers that degrade on upload failure keep
// working without a Media Store.
type Disabled struct{}

func (Disabled) Upload(context.Context, string, []byte) (string, error) {
	return "", ErrDisabled
}
