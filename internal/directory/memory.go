package directory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Directory Service. Snapshots are delivered
// synchronously on the goroutine that caused them, which makes it the
// backend of choice for tests and for running the API without infrastructure.
type Memory struct {
	mu          sync.Mutex
	collections map[string]*memCollection
	subs        map[string][]*memSubscription
}

// memCollection keeps documents in insertion order. version counts writes:
// snapshots are built under the directory lock but delivered outside it, so
// concurrent writers can reach a listener out of order, and the version lets
// a subscription drop the stale one.
type memCollection struct {
	order   []string
	docs    map[string]json.RawMessage
	version uint64
}

type memSubscription struct {
	m *Memory
	q Query
	g *guard

	mu        sync.Mutex
	delivered bool
	version   uint64
}

func NewMemory() *Memory {
	return &Memory{
		collections: map[string]*memCollection{},
		subs:        map[string][]*memSubscription{},
	}
}

func (m *Memory) Subscribe(ctx context.Context, q Query, fn Listener) (Subscription, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}

	sub := &memSubscription{m: m, q: q, g: newGuard(fn)}

	m.mu.Lock()
	m.subs[q.Collection] = append(m.subs[q.Collection], sub)
	snap, version := m.snapshotLocked(q)
	m.mu.Unlock()

	sub.deliver(version, snap)
	context.AfterFunc(ctx, func() { _ = sub.Close() })
	return sub, nil
}

func (m *Memory) Get(_ context.Context, q Query) (Snapshot, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, _ := m.snapshotLocked(q)
	return snap, nil
}

func (m *Memory) CreateDocument(_ context.Context, collection string) (string, error) {
	if collection == "" {
		return "", ErrEmptyCollection
	}
	return uuid.NewString(), nil
}

func (m *Memory) SetDocument(_ context.Context, collection, id string, fields Fields) error {
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
	m.put(collection, id, data)
	return nil
}

// PutRaw stores data verbatim, bypassing field encoding. It exists so callers
// can reproduce documents written by other clients, malformed ones included.
func (m *Memory) PutRaw(collection, id string, data json.RawMessage) {
	m.put(collection, id, data)
}

// Fail pushes err to every live subscription on collection.
func (m *Memory) Fail(collection string, err error) {
	m.mu.Lock()
	subs := append([]*memSubscription(nil), m.subs[collection]...)
	m.mu.Unlock()

	for _, sub := range subs {
		sub.g.deliver(nil, err)
	}
}

func (m *Memory) put(collection, id string, data json.RawMessage) {
	m.mu.Lock()
	c := m.collections[collection]
	if c == nil {
		c = &memCollection{docs: map[string]json.RawMessage{}}
		m.collections[collection] = c
	}
	if _, ok := c.docs[id]; !ok {
		c.order = append(c.order, id)
	}
	c.docs[id] = data
	c.version++

	type pending struct {
		sub     *memSubscription
		snap    Snapshot
		version uint64
	}
	var deliveries []pending
	for _, sub := range m.subs[collection] {
		snap, version := m.snapshotLocked(sub.q)
		deliveries = append(deliveries, pending{sub: sub, snap: snap, version: version})
	}
	m.mu.Unlock()

	for _, d := range deliveries {
		d.sub.deliver(d.version, d.snap)
	}
}

func (m *Memory) snapshotLocked(q Query) (Snapshot, uint64) {
	c := m.collections[q.Collection]
	if c == nil {
		return Snapshot{}, 0
	}
	snap := make(Snapshot, 0, len(c.order))
	for _, id := range c.order {
		data := c.docs[id]
		if !q.Where.matches(data) {
			continue
		}
		snap = append(snap, Document{ID: id, Data: data})
	}
	return snap, c.version
}

// deliver hands snap to the listener unless a newer snapshot already got
// there first.
func (s *memSubscription) deliver(version uint64, snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delivered && version <= s.version {
		return
	}
	if s.g.deliver(snap, nil) {
		s.delivered, s.version = true, version
	}
}

func (s *memSubscription) Close() error {
	if !s.g.close() {
		return nil
	}

	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	subs := s.m.subs[s.q.Collection]
	for i, existing := range subs {
		if existing == s {
			s.m.subs[s.q.Collection] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	return nil
}
