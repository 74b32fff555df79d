package reviews

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"outsy/internal/directory"
	"outsy/internal/validation"
)

const (
	Collection = "reviews"

	MinRating = 1.0
	MaxRating = 5.0
)

const placeField = "placeId"

var ErrEmptyDocument = errors.New("review document has no fields")

// Review is immutable once written.
type Review struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId" validate:"required"`
	Username  string    `json:"username"`
	PlaceID   string    `json:"placeId" validate:"required"`
	Rating    float64   `json:"rating" validate:"gte=1,lte=5"`
	Comment   string    `json:"comment" validate:"required,max=2000"`
	CreatedAt time.Time `json:"createdAt"`
}

// New builds a review stamped with the current time. The rating must lie in
// [MinRating, MaxRating] and the comment must contain more than whitespace.
func New(userID, username, placeID string, rating float64, comment string) (Review, error) {
	r := Review{
		UserID:    userID,
		Username:  username,
		PlaceID:   placeID,
		Rating:    rating,
		Comment:   strings.TrimSpace(comment),
		CreatedAt: time.Now().UTC(),
	}
	if err := r.Validate(); err != nil {
		return Review{}, err
	}
	return r, nil
}

func (r Review) Validate() error {
	return validation.Struct(r)
}

// Decode builds a Review from a directory document. A missing createdAt is
// read as now.
func Decode(doc directory.Document) (Review, error) {
	data := bytes.TrimSpace(doc.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Review{}, ErrEmptyDocument
	}

	var r Review
	if err := json.Unmarshal(data, &r); err != nil {
		return Review{}, fmt.Errorf("decode review %s: %w", doc.ID, err)
	}
	r.ID = doc.ID
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return r, nil
}

func (r Review) Fields() directory.Fields {
	return directory.Fields{
		"id":        r.ID,
		"userId":    r.UserID,
		"username":  r.Username,
		"placeId":   r.PlaceID,
		"rating":    r.Rating,
		"comment":   r.Comment,
		"createdAt": r.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

type Summary struct {
	Total   int     `json:"total"`
	Average float64 `json:"average"`
}

// Summarize counts reviews and averages their rating to one decimal.
func Summarize(list []Review) Summary {
	if len(list) == 0 {
		return Summary{}
	}
	var sum float64
	for _, r := range list {
		sum += r.Rating
	}
	avg := sum / float64(len(list))
	return Summary{Total: len(list), Average: math.Round(avg*10) / 10}
}
