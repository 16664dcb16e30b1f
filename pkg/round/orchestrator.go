package round

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/absmach/flcoord/pkg/artifact"
	pkgerrors "github.com/absmach/flcoord/pkg/errors"
	"github.com/absmach/flcoord/pkg/fl"
	"github.com/absmach/flcoord/pkg/trainer"
)

type ClientRun struct {
	ID       string `json:"id"`
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	Duration string `json:"duration"`
}

type Summary struct {
	State    State       `json:"state"`
	Record   *Record     `json:"record,omitempty"`
	Clients  []ClientRun `json:"clients"`
	Artifact string      `json:"artifact,omitempty"`
	Error    string      `json:"error,omitempty"`
}

type Option func(*Orchestrator)

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// Orchestrator sequences initialisation, training and aggregation for the
// configured clients. Overlapping rounds are not coordinated.
type Orchestrator struct {
	layout     artifact.Layout
	codec      artifact.Codec
	trainer    trainer.Trainer
	aggregator fl.Aggregator
	history    *History
	clientIDs  []string
	logger     *slog.Logger
	now        func() time.Time
}

func NewOrchestrator(layout artifact.Layout, codec artifact.Codec, tr trainer.Trainer, agg fl.Aggregator, history *History, clientIDs []string, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		layout:     layout,
		codec:      codec,
		trainer:    tr,
		aggregator: agg,
		history:    history,
		clientIDs:  slices.Clone(clientIDs),
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	return o
}

// InitGlobal writes a default-constructed model to the initial global path.
func (o *Orchestrator) InitGlobal(_ context.Context) (string, error) {
	model, err := o.codec.Default()
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.ErrIO, err)
	}
	model.CreatedAt = o.now().UTC()

	path := o.layout.InitialPath()
	if err := o.codec.Save(path, model); err != nil {
		return "", err
	}

	return path, nil
}

func (o *Orchestrator) TrainClient(ctx context.Context, id string, samples int) (trainer.Result, error) {
	if !slices.Contains(o.clientIDs, id) {
		return trainer.Result{}, fmt.Errorf("%w: %s", pkgerrors.ErrClientNotFound, id)
	}

	return o.trainer.Train(ctx, id, samples)
}

// Aggregate averages whatever local artifacts the clients currently hold.
func (o *Orchestrator) Aggregate(_ context.Context) (string, error) {
	return o.aggregate()
}

func (o *Orchestrator) aggregate() (string, error) {
	sets := make([]fl.WeightSet, 0, len(o.clientIDs))
	for _, id := range o.clientIDs {
		path := o.layout.LocalPath(id)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", fmt.Errorf("%w: client %s", pkgerrors.ErrMissingClientArtifact, id)
			}

			return "", pkgerrors.Wrap(pkgerrors.ErrIO, err)
		}
		model, err := o.codec.Load(path)
		if err != nil {
			return "", fmt.Errorf("%w: client %s: %w", pkgerrors.ErrAggregationFailed, id, err)
		}
		sets = append(sets, model.Weights)
	}

	avg, err := o.aggregator.Aggregate(sets)
	if err != nil {
		return "", fmt.Errorf("%w: %w", pkgerrors.ErrAggregationFailed, err)
	}

	path := o.layout.UpdatedPath()
	model := artifact.Model{Weights: avg, Trained: true, CreatedAt: o.now().UTC()}
	if err := o.codec.Save(path, model); err != nil {
		return "", err
	}

	return path, nil
}

// RunRound trains every configured client in order, then aggregates their
// fresh artifacts. The first trainer failure ends the round in Failed state
// and nothing is aggregated or recorded.
func (o *Orchestrator) RunRound(ctx context.Context, samples int) (Summary, error) {
	sm := &machine{state: NotStarted}
	summary := Summary{Clients: []ClientRun{}}
	fail := func(err error) (Summary, error) {
		if terr := sm.to(Failed); terr != nil {
			err = errors.Join(err, terr)
		}
		summary.State = sm.state
		summary.Error = err.Error()
		o.logger.Warn("round failed", slog.String("error", err.Error()))

		return summary, err
	}

	if samples <= 0 {
		return fail(fmt.Errorf("%w: %d", pkgerrors.ErrInvalidSamples, samples))
	}
	started := o.now()

	switch _, err := os.Stat(o.layout.InitialPath()); {
	case errors.Is(err, os.ErrNotExist):
		if err := sm.to(Initializing); err != nil {
			return fail(err)
		}
		if _, err := o.InitGlobal(ctx); err != nil {
			return fail(err)
		}
	case err != nil:
		return fail(pkgerrors.Wrap(pkgerrors.ErrIO, err))
	}

	if err := sm.to(Training); err != nil {
		return fail(err)
	}
	metrics := make([]ClientMetrics, 0, len(o.clientIDs))
	for _, id := range o.clientIDs {
		// A local artifact left over from an earlier round must not be
		// aggregated as if this round produced it.
		if err := os.Remove(o.layout.LocalPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fail(pkgerrors.Wrap(pkgerrors.ErrIO, err))
		}

		res, err := o.trainer.Train(ctx, id, samples)
		summary.Clients = append(summary.Clients, ClientRun{
			ID:       id,
			ExitCode: res.ExitCode,
			Stdout:   res.Stdout,
			Stderr:   res.Stderr,
			Duration: res.Duration.String(),
		})
		if err != nil {
			return fail(err)
		}

		cm := ClientMetrics{ID: id, TrainingTime: res.Duration.Round(time.Millisecond).String()}
		if info, err := os.Stat(o.layout.LocalPath(id)); err == nil {
			cm.ModelSize = info.Size()
		}
		if m, ok := trainer.ParseMetrics(res.Stdout); ok {
			cm.Loss, cm.Accuracy = m.Loss, m.Accuracy
		}
		metrics = append(metrics, cm)
	}

	if err := sm.to(Aggregating); err != nil {
		return fail(err)
	}
	path, err := o.aggregate()
	if err != nil {
		return fail(err)
	}
	summary.Artifact = path

	completed := o.now()
	rec, err := o.history.Append(ctx, Record{
		StartedAt:   started.UTC(),
		CompletedAt: completed.UTC(),
		Clients:     metrics,
		Global:      globalMetrics(metrics, len(o.clientIDs), completed.Sub(started)),
	})
	if err != nil {
		return fail(err)
	}
	if err := sm.to(Completed); err != nil {
		return fail(err)
	}
	summary.State = sm.state
	summary.Record = &rec

	return summary, nil
}

func globalMetrics(clients []ClientMetrics, population int, elapsed time.Duration) GlobalMetrics {
	g := GlobalMetrics{TimeElapsed: elapsed.Round(time.Millisecond).String()}
	if population > 0 {
		g.CompletionRate = len(clients) * 100 / population
	}
	g.Loss = mean(clients, func(c ClientMetrics) *float64 { return c.Loss })
	g.Accuracy = mean(clients, func(c ClientMetrics) *float64 { return c.Accuracy })

	return g
}

func mean(clients []ClientMetrics, field func(ClientMetrics) *float64) *float64 {
	var sum float64
	n := 0
	for _, c := range clients {
		if v := field(c); v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	m := sum / float64(n)

	return &m
}
