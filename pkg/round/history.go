package round

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"time"

	pkgerrors "github.com/absmach/flcoord/pkg/errors"
	"github.com/absmach/flcoord/pkg/storage"
)

const HistoryKey = "training_history"

type ClientMetrics struct {
	ID           string   `json:"id"`
	TrainingTime string   `json:"trainingTime"`
	ModelSize    int64    `json:"modelSize"`
	Loss         *float64 `json:"loss"`
	Accuracy     *float64 `json:"accuracy"`
}

type GlobalMetrics struct {
	Loss           *float64 `json:"loss"`
	Accuracy       *float64 `json:"accuracy"`
	CompletionRate int      `json:"completionRate"`
	TimeElapsed    string   `json:"timeElapsed"`
}

// Record summarises one completed round. ModelSize is the local artifact
// size in bytes.
type Record struct {
	RoundNumber int             `json:"roundNumber"`
	StartedAt   time.Time       `json:"startedAt"`
	CompletedAt time.Time       `json:"completedAt"`
	Clients     []ClientMetrics `json:"clients"`
	Global      GlobalMetrics   `json:"global"`
}

// History is an append-only list of round records kept as one snapshot.
type History struct {
	mu      sync.Mutex
	storage storage.Storage
}

func NewHistory(st storage.Storage) *History {
	return &History{storage: st}
}

func (h *History) List(ctx context.Context) ([]Record, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.list(ctx)
}

// Append numbers rec after the last stored round and persists it.
func (h *History) Append(ctx context.Context, rec Record) (Record, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	records, err := h.list(ctx)
	if err != nil {
		return Record{}, err
	}
	rec.RoundNumber = len(records) + 1
	rec.Clients = slices.Clone(rec.Clients)
	records = append(records, rec)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return Record{}, pkgerrors.Wrap(pkgerrors.ErrIO, err)
	}
	if err := h.storage.Put(ctx, HistoryKey, data); err != nil {
		return Record{}, pkgerrors.Wrap(pkgerrors.ErrIO, err)
	}

	return rec, nil
}

func (h *History) list(ctx context.Context) ([]Record, error) {
	data, err := h.storage.Get(ctx, HistoryKey)
	switch {
	case errors.Is(err, pkgerrors.ErrNotFound):
		return []Record{}, nil
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.ErrIO, err)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrIO, err)
	}
	if records == nil {
		records = []Record{}
	}

	return records, nil
}
