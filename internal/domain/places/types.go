package places

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"outsy/internal/directory"
	"outsy/internal/shared/geo"
)

// Collection is the Directory Service collection holding place documents.
const Collection = "places"

const ownerField = "ownerId"

var (
	ErrNotAuthenticated = errors.New("owner must be signed in to add a place")
	ErrEmptyDocument    = errors.New("place document has no fields")
)

// Place is a venue as stored in the directory. Every field defaults to its
// zero value when the document omits it; a zero Rating means "no ratings yet"
// and an empty ImageURL means "no image".
type Place struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Name        string    `json:"name"`
	Location    geo.Point `json:"location"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Rating      float64   `json:"rating"`
	ImageURL    string    `json:"imageUrl"`
}

// NewPlace is the input of a create. OwnerID comes from the authenticated
// caller, never from the payload.
type NewPlace struct {
	OwnerID     string    `json:"-"`
	Name        string    `json:"name" validate:"required,max=120"`
	Location    geo.Point `json:"location"`
	Category    string    `json:"category" validate:"required,max=60"`
	Description string    `json:"description" validate:"max=2000"`
	Image       []byte    `json:"-"`
}

// Decode builds a Place from a directory document. The document id always
// wins over any id stored in the fields.
func Decode(doc directory.Document) (Place, error) {
	data := bytes.TrimSpace(doc.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Place{}, ErrEmptyDocument
	}

	var p Place
	if err := json.Unmarshal(data, &p); err != nil {
		return Place{}, fmt.Errorf("decode place %s: %w", doc.ID, err)
	}
	p.ID = doc.ID
	return p, nil
}

// DecodeAll decodes every document of snap and reports how many were dropped.
func DecodeAll(snap directory.Snapshot) ([]Place, int) {
	out := make([]Place, 0, len(snap))
	dropped := 0
	for _, doc := range snap {
		p, err := Decode(doc)
		if err != nil {
			dropped++
			continue
		}
		out = append(out, p)
	}
	return out, dropped
}

// Fields is the document form of p.
func (p Place) Fields() directory.Fields {
	return directory.Fields{
		"id":          p.ID,
		"ownerId":     p.OwnerID,
		"name":        p.Name,
		"location":    map[string]float64{"lat": p.Location.Lat, "lng": p.Location.Lng},
		"category":    p.Category,
		"description": p.Description,
		"rating":      p.Rating,
		"imageUrl":    p.ImageURL,
	}
}
