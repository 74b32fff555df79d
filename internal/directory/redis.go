package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "directory"

// Redis keeps every collection in one hash (document id -> JSON fields) and
// announces writes on a per-collection pub/sub channel. Subscribers re-read
// the whole hash on every announcement, so each delivery is a full snapshot.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, prefix: defaultRedisPrefix}
}

func (r *Redis) collectionKey(collection string) string {
	return r.prefix + ":" + collection
}

func (r *Redis) changesChannel(collection string) string {
	return r.prefix + ":" + collection + ":changes"
}

func (r *Redis) Get(ctx context.Context, q Query) (Snapshot, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}

	all, err := r.client.HGetAll(ctx, r.collectionKey(q.Collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall %s: %w", q.Collection, err)
	}

	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	snap := make(Snapshot, 0, len(ids))
	for _, id := range ids {
		data := json.RawMessage(all[id])
		if !q.Where.matches(data) {
			continue
		}
		snap = append(snap, Document{ID: id, Data: data})
	}
	return snap, nil
}

func (r *Redis) CreateDocument(_ context.Context, collection string) (string, error) {
	if collection == "" {
		return "", ErrEmptyCollection
	}
	return uuid.NewString(), nil
}

func (r *Redis) SetDocument(ctx context.Context, collection, id string, fields Fields) error {
	if collection == "" {
		return ErrEmptyCollection
	}
	if id == "" {
		return ErrEmptyID
	}
	data, err := encodeFields(fields)
	if err != nil {
		return err
	}

	if err := r.client.HSet(ctx, r.collectionKey(collection), id, []byte(data)).Err(); err != nil {
		return fmt.Errorf("redis hset %s/%s: %w", collection, id, err)
	}
	if err := r.client.Publish(ctx, r.changesChannel(collection), id).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", collection, err)
	}
	return nil
}

type redisSubscription struct {
	g      *guard
	pubsub *redis.PubSub
	cancel context.CancelFunc
	done   chan struct{}
}

func (r *Redis) Subscribe(ctx context.Context, q Query, fn Listener) (Subscription, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}

	pubsub := r.client.Subscribe(ctx, r.changesChannel(q.Collection))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", q.Collection, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	sub := &redisSubscription{
		g:      newGuard(fn),
		pubsub: pubsub,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go sub.run(runCtx, r, q)
	return sub, nil
}

// run owns the pubsub connection and releases it on exit, whether the
// subscription was closed or its context ended.
func (s *redisSubscription) run(ctx context.Context, r *Redis, q Query) {
	defer close(s.done)
	defer func() { _ = s.pubsub.Close() }()

	refresh := func() {
		snap, err := r.Get(ctx, q)
		if ctx.Err() != nil {
			return
		}
		s.g.deliver(snap, err)
	}

	messages := s.pubsub.Channel()
	refresh()
	for {
		select {
		case <-ctx.Done():
			s.g.close()
			return
		case _, ok := <-messages:
			if !ok {
				s.g.deliver(nil, ErrClosed)
				return
			}
			refresh()
		}
	}
}

func (s *redisSubscription) Close() error {
	s.g.close()
	s.cancel()
	<-s.done
	return nil
}
