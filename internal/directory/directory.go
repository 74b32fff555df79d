// Package directory is the client side of the Directory Service: a document
// store with per-collection live queries. Implementations deliver whole
// snapshots; there is no incremental patch protocol.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrClosed          = errors.New("directory: subscription closed")
	ErrEmptyCollection = errors.New("directory: collection name is required")
	ErrEmptyID         = errors.New("directory: document id is required")
)

// Fields is the JSON-compatible field map of a document.
type Fields map[string]any

// Document is one stored record. Data holds the raw JSON field map; decoding
// into a typed record is left to the consumer.
type Document struct {
	ID   string
	Data json.RawMessage
}

// Snapshot is one complete push of a query's current result set.
type Snapshot []Document

// Predicate is an equality constraint on a top-level field.
type Predicate struct {
	Field string
	Value string
}

type Query struct {
	Collection string
	Where      *Predicate
}

// Collection returns an unfiltered query over name.
func Collection(name string) Query {
	return Query{Collection: name}
}

// WhereEqual returns q narrowed to documents whose field equals value.
func (q Query) WhereEqual(field, value string) Query {
	q.Where = &Predicate{Field: field, Value: value}
	return q
}

// Listener receives either a snapshot or an error, never both.
type Listener func(Snapshot, error)

// Subscription is a live query handle. After Close returns the listener is
// never invoked again. Close must not be called from inside the listener.
type Subscription interface {
	Close() error
}

type Service interface {
	Subscribe(ctx context.Context, q Query, fn Listener) (Subscription, error)
	Get(ctx context.Context, q Query) (Snapshot, error)
	CreateDocument(ctx context.Context, collection string) (string, error)
	SetDocument(ctx context.Context, collection, id string, fields Fields) error
}

func (q Query) validate() error {
	if q.Collection == "" {
		return ErrEmptyCollection
	}
	return nil
}

// matches evaluates the predicate against a raw document. Non-string values
// are compared through their JSON text, which is what the Postgres backend's
// ->> operator does as well.
func (p *Predicate) matches(data json.RawMessage) bool {
	if p == nil {
		return true
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return false
	}
	raw, ok := fields[p.Field]
	if !ok {
		return false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s == p.Value
	}
	return string(raw) == p.Value
}

func encodeFields(fields Fields) (json.RawMessage, error) {
	if fields == nil {
		fields = Fields{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	return data, nil
}

// guard serializes deliveries to a listener and enforces the
// no-callback-after-close contract.
type guard struct {
	mu     sync.Mutex
	closed bool
	fn     Listener
}

func newGuard(fn Listener) *guard {
	return &guard{fn: fn}
}

func (g *guard) deliver(snap Snapshot, err error) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	g.fn(snap, err)
	return true
}

// close reports whether this call was the one that closed the guard.
func (g *guard) close() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	g.closed = true
	return true
}

func (g *guard) isClosed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}
