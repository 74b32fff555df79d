package reviews

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"outsy/internal/directory"
	"outsy/internal/validation"
)

func TestNewEnforcesRatingRange(t *testing.T) {
	for _, rating := range []float64{1, 3.5, 5} {
		r, err := New("u1", "ana", "p1", rating, "great coffee")
		require.NoError(t, err, rating)
		assert.Equal(t, rating, r.Rating)
		assert.False(t, r.CreatedAt.IsZero())
	}

	for _, rating := range []float64{0, 0.99, 5.01, -1} {
		_, err := New("u1", "ana", "p1", rating, "great coffee")
		var verrs validation.Errors
		require.True(t, errors.As(err, &verrs), rating)
		assert.Contains(t, verrs, "rating")
	}
}

func TestNewRequiresComment(t *testing.T) {
	_, err := New("u1", "ana", "p1", 4, "   ")
	var verrs validation.Errors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "is required", verrs["comment"])

	r, err := New("u1", "ana", "p1", 4, "  nice  ")
	require.NoError(t, err)
	assert.Equal(t, "nice", r.Comment)
}

func TestNewRequiresAuthorAndPlace(t *testing.T) {
	_, err := New("", "", "", 4, "ok")
	var verrs validation.Errors
	require.True(t, errors.As(err, &verrs))
	assert.Contains(t, verrs, "userId")
	assert.Contains(t, verrs, "placeId")
}

func TestDecode(t *testing.T) {
	r, err := Decode(directory.Document{ID: "r1", Data: json.RawMessage(`{"rating":4.5,"comment":"ok","createdAt":"2024-05-01T10:00:00Z"}`)})
	require.NoError(t, err)
	assert.Equal(t, "r1", r.ID)
	assert.Equal(t, 4.5, r.Rating)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), r.CreatedAt.UTC())

	r, err = Decode(directory.Document{ID: "r2", Data: json.RawMessage(`{"comment":"no timestamp"}`)})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), r.CreatedAt, time.Minute)

	_, err = Decode(directory.Document{ID: "r3", Data: json.RawMessage(`{"rating":"high"}`)})
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))
	assert.Equal(t, Summary{Total: 3, Average: 3.7}, Summarize([]Review{{Rating: 5}, {Rating: 4}, {Rating: 2}}))
	assert.Equal(t, Summary{Total: 2, Average: 4.5}, Summarize([]Review{{Rating: 4.5}, {Rating: 4.5}}))
}

func stamped(t *testing.T, placeID, comment string, at time.Time) Review {
	t.Helper()
	r, err := New("u1", "ana", placeID, 4, comment)
	require.NoError(t, err)
	r.CreatedAt = at
	return r
}

func TestServiceAddAndForPlace(t *testing.T) {
	ctx := context.Background()
	svc := NewService(directory.NewMemory(), zap.NewNop().Sugar())
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	_, err := svc.Add(ctx, stamped(t, "p1", "first", base))
	require.NoError(t, err)
	_, err = svc.Add(ctx, stamped(t, "p2", "elsewhere", base.Add(time.Minute)))
	require.NoError(t, err)
	id, err := svc.Add(ctx, stamped(t, "p1", "second", base.Add(time.Hour)))
	require.NoError(t, err)

	got, err := svc.ForPlace(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "second", got[0].Comment)
	assert.Equal(t, id, got[0].ID)
	assert.Equal(t, "first", got[1].Comment)
}

func TestServiceAddRejectsInvalid(t *testing.T) {
	svc := NewService(directory.NewMemory(), zap.NewNop().Sugar())
	_, err := svc.Add(context.Background(), Review{UserID: "u1", PlaceID: "p1", Rating: 9, Comment: "x"})
	assert.Error(t, err)
}

func TestServiceWatch(t *testing.T) {
	ctx := context.Background()
	mem := directory.NewMemory()
	svc := NewService(mem, zap.NewNop().Sugar())
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	var lists [][]Review
	sub, err := svc.Watch(ctx, "p1", func(rs []Review) { lists = append(lists, rs) }, nil)
	require.NoError(t, err)

	require.Len(t, lists, 1)
	assert.Empty(t, lists[0])

	_, err = svc.Add(ctx, stamped(t, "p1", "old", base))
	require.NoError(t, err)
	_, err = svc.Add(ctx, stamped(t, "p1", "new", base.Add(time.Hour)))
	require.NoError(t, err)

	last := lists[len(lists)-1]
	require.Len(t, last, 2)
	assert.Equal(t, "new", last[0].Comment)

	require.NoError(t, sub.Close())
	count := len(lists)
	_, err = svc.Add(ctx, stamped(t, "p1", "late", base.Add(2*time.Hour)))
	require.NoError(t, err)
	assert.Len(t, lists, count)
}
