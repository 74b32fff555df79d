package directory

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"outsy/internal/db"
)

const DefaultPollInterval = 2 * time.Second

const schema = `
CREATE TABLE IF NOT EXISTS directory_documents (
    collection TEXT NOT NULL,
    id         TEXT NOT NULL,
    fields     JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (collection, id)
)`

// Postgres stores documents as JSONB rows. Live queries poll: every interval
// the query is re-run and the snapshot is delivered when it differs from the
// last one delivered.
type Postgres struct {
	db       db.Querier
	interval time.Duration
}

func NewPostgres(q db.Querier, interval time.Duration) *Postgres {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Postgres{db: q, interval: interval}
}

// Migrate creates the documents table if it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate directory_documents: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, q Query) (Snapshot, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}

	query := `SELECT id, fields FROM directory_documents WHERE collection = $1`
	args := []any{q.Collection}
	if q.Where != nil {
		query += ` AND fields->>$2 = $3`
		args = append(args, q.Where.Field, q.Where.Value)
	}
	query += ` ORDER BY created_at, id`

	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying %s: %w", q.Collection, err)
	}
	defer rows.Close()

	snap := Snapshot{}
	for rows.Next() {
		var (
			id   string
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("error scanning %s row: %w", q.Collection, err)
		}
		snap = append(snap, Document{ID: id, Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return snap, nil
}

// CreateDocument asks the database for a fresh identifier; nothing is
// written until SetDocument.
func (p *Postgres) CreateDocument(ctx context.Context, collection string) (string, error) {
	if collection == "" {
		return "", ErrEmptyCollection
	}
	var id string
	if err := p.db.QueryRow(ctx, `SELECT gen_random_uuid()::text`).Scan(&id); err != nil {
		return "", fmt.Errorf("allocate %s id: %w", collection, err)
	}
	return id, nil
}

func (p *Postgres) SetDocument(ctx context.Context, collection, id string, fields Fields) error {
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

	const query = `
		INSERT INTO directory_documents (collection, id, fields)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection, id) DO UPDATE
		SET fields = EXCLUDED.fields, updated_at = now()
	`
	if _, err := p.db.Exec(ctx, query, collection, id, []byte(data)); err != nil {
		return fmt.Errorf("failed to set %s/%s: %w", collection, id, err)
	}
	return nil
}

type pollSubscription struct {
	g      *guard
	cancel context.CancelFunc
	done   chan struct{}
}

func (p *Postgres) Subscribe(ctx context.Context, q Query, fn Listener) (Subscription, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	sub := &pollSubscription{
		g:      newGuard(fn),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go sub.run(runCtx, p, q)
	return sub, nil
}

func (s *pollSubscription) run(ctx context.Context, p *Postgres, q Query) {
	defer close(s.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var last Snapshot
	delivered := false
	poll := func() {
		snap, err := p.Get(ctx, q)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			delivered = false
			s.g.deliver(nil, err)
			return
		}
		if delivered && sameSnapshot(last, snap) {
			return
		}
		last, delivered = snap, true
		s.g.deliver(snap, nil)
	}

	// Run once immediately
	poll()
	for {
		select {
		case <-ctx.Done():
			s.g.close()
			return
		case <-ticker.C:
			poll()
		}
	}
}

func (s *pollSubscription) Close() error {
	s.g.close()
	s.cancel()
	<-s.done
	return nil
}

func sameSnapshot(a, b Snapshot) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || !bytes.Equal(a[i].Data, b[i].Data) {
			return false
		}
	}
	return true
}
