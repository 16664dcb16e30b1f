package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	pkgerrors "github.com/absmach/flcoord/pkg/errors"
	"github.com/absmach/flcoord/pkg/storage"
)

const SnapshotKey = "clients_status"

var DefaultClientIDs = []string{"1", "2", "3"}

// ClientRecord is the deployment lifecycle of one client. Acknowledged is
// expected to imply Deployed, but acknowledgement itself does not check it.
type ClientRecord struct {
	Deployed     bool       `json:"deployed"`
	Acknowledged bool       `json:"ack"`
	ModelName    *string    `json:"model"`
	Timestamp    *time.Time `json:"timestamp"`
}

type Table map[string]ClientRecord

type Option func(*Store)

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Store keeps the status table as one whole-table snapshot. Each mutator
// reads, modifies and writes the table under a single lock. Callers that
// combine Load and Save themselves get no isolation: the last Save wins.
type Store struct {
	mu        sync.Mutex
	storage   storage.Storage
	clientIDs []string
	now       func() time.Time
}

func NewStore(st storage.Storage, clientIDs []string, opts ...Option) *Store {
	if len(clientIDs) == 0 {
		clientIDs = DefaultClientIDs
	}
	s := &Store{
		storage:   st,
		clientIDs: slices.Clone(clientIDs),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// ClientIDs returns the configured population in its fixed order.
func (s *Store) ClientIDs() []string {
	return slices.Clone(s.clientIDs)
}

func (s *Store) Load(ctx context.Context) (Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load(ctx)
}

func (s *Store) Save(ctx context.Context, table Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.save(ctx, table)
}

func (s *Store) Get(ctx context.Context, id string) (ClientRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := s.load(ctx)
	if err != nil {
		return ClientRecord{}, err
	}
	rec, ok := table[id]
	if !ok {
		return ClientRecord{}, fmt.Errorf("%w: %s", pkgerrors.ErrClientNotFound, id)
	}

	return rec, nil
}

func (s *Store) Acknowledge(ctx context.Context, id string) (ClientRecord, error) {
	return s.update(ctx, id, func(rec *ClientRecord, now time.Time) {
		rec.Acknowledged = true
		rec.Timestamp = &now
	})
}

// MarkDeployed records a completed deployment and clears any earlier
// acknowledgement.
func (s *Store) MarkDeployed(ctx context.Context, id, modelName string) (ClientRecord, error) {
	return s.update(ctx, id, func(rec *ClientRecord, now time.Time) {
		rec.Deployed = true
		rec.Acknowledged = false
		rec.ModelName = &modelName
		rec.Timestamp = &now
	})
}

func (s *Store) update(ctx context.Context, id string, mutate func(*ClientRecord, time.Time)) (ClientRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := s.load(ctx)
	if err != nil {
		return ClientRecord{}, err
	}
	rec, ok := table[id]
	if !ok {
		return ClientRecord{}, fmt.Errorf("%w: %s", pkgerrors.ErrClientNotFound, id)
	}
	mutate(&rec, s.now().UTC())
	table[id] = rec

	if err := s.save(ctx, table); err != nil {
		return ClientRecord{}, err
	}

	return rec, nil
}

func (s *Store) load(ctx context.Context) (Table, error) {
	data, err := s.storage.Get(ctx, SnapshotKey)
	switch {
	case errors.Is(err, pkgerrors.ErrNotFound):
		table := s.defaults()
		if err := s.save(ctx, table); err != nil {
			return nil, err
		}

		return table, nil
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.ErrIO, err)
	}

	var stored Table
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrIO, err)
	}

	table := make(Table, len(s.clientIDs))
	filled := false
	for _, id := range s.clientIDs {
		rec, ok := stored[id]
		if !ok {
			filled = true
		}
		table[id] = rec
	}
	if filled {
		if err := s.save(ctx, table); err != nil {
			return nil, err
		}
	}

	return table, nil
}

func (s *Store) save(ctx context.Context, table Table) error {
	data, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.ErrIO, err)
	}
	if err := s.storage.Put(ctx, SnapshotKey, data); err != nil {
		return pkgerrors.Wrap(pkgerrors.ErrIO, err)
	}

	return nil
}

func (s *Store) defaults() Table {
	table := make(Table, len(s.clientIDs))
	for _, id := range s.clientIDs {
		table[id] = ClientRecord{}
	}

	return table
}
