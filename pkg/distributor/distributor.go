package distributor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/absmach/flcoord/pkg/artifact"
	pkgerrors "github.com/absmach/flcoord/pkg/errors"
	"github.com/absmach/flcoord/pkg/status"
)

const DefChunkSize = 64 * 1024

var errAborted = errors.New("distribution abandoned by consumer")

// StatusRecorder is the part of the status store the distributor needs.
type StatusRecorder interface {
	Get(ctx context.Context, id string) (status.ClientRecord, error)
	MarkDeployed(ctx context.Context, id, modelName string) (status.ClientRecord, error)
}

type Option func(*Distributor)

func WithChunkSize(size int) Option {
	return func(d *Distributor) {
		if size > 0 {
			d.chunkSize = size
		}
	}
}

// Distributor copies a server artifact into client deployment locations one
// target at a time. Concurrent calls are not coordinated with each other.
type Distributor struct {
	layout    artifact.Layout
	status    StatusRecorder
	chunkSize int
	logger    *slog.Logger
}

func New(layout artifact.Layout, st StatusRecorder, logger *slog.Logger, opts ...Option) *Distributor {
	d := &Distributor{
		layout:    layout,
		status:    st,
		chunkSize: DefChunkSize,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Resolve returns the path of a server artifact after checking that it
// exists and is a regular file.
func (d *Distributor) Resolve(name string) (string, os.FileInfo, error) {
	src, err := d.layout.ServerArtifact(name)
	if err != nil {
		return "", nil, err
	}
	info, err := os.Stat(src)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return "", nil, fmt.Errorf("%w: %s", pkgerrors.ErrArtifactNotFound, name)
	case err != nil:
		return "", nil, pkgerrors.Wrap(pkgerrors.ErrIO, err)
	case !info.Mode().IsRegular():
		return "", nil, fmt.Errorf("%w: %s is not a regular file", pkgerrors.ErrArtifactNotFound, name)
	}

	return src, info, nil
}

// DistributeSync copies the artifact to every target and reports only the
// per-client outcomes.
func (d *Distributor) DistributeSync(ctx context.Context, name string, targets []string) ([]Outcome, error) {
	return d.Distribute(ctx, name, targets, func(Event) error { return nil })
}

// Distribute copies the artifact to each target in order. A failed client
// yields an error event and the batch continues; a done event closes the
// stream. If ctx is cancelled or the sink fails, it stops without emitting
// further events and returns the cause.
func (d *Distributor) Distribute(ctx context.Context, name string, targets []string, sink Sink) ([]Outcome, error) {
	src, info, err := d.Resolve(name)
	if err != nil {
		return nil, err
	}
	total := info.Size()

	outcomes := make([]Outcome, 0, len(targets))
	overall := make(map[string]int, len(targets))
	mean := func() int {
		if len(targets) == 0 {
			return 0
		}
		sum := 0
		for _, p := range overall {
			sum += p
		}

		return sum / len(targets)
	}

	emit := func(ev Event) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := sink(ev); err != nil {
			return fmt.Errorf("%w: %w", errAborted, err)
		}

		return nil
	}

	for _, cid := range targets {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}

		dest, err := d.deliver(ctx, src, cid, total, func(pct int) error {
			overall[cid] = pct

			return emit(Event{Kind: KindProgress, Client: cid, Progress: pct, Overall: mean()})
		})
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, errAborted) {
				d.logger.Info("distribution abandoned", slog.String("client_id", cid), slog.String("artifact", name))

				return outcomes, abandoned(ctx, err)
			}
			d.logger.Warn("failed to deploy artifact", slog.String("client_id", cid), slog.String("artifact", name), slog.Any("error", err))
			outcomes = append(outcomes, Outcome{Client: cid, Status: OutcomeError, Error: err.Error()})
			if err := emit(Event{Kind: KindError, Client: cid, Error: err.Error()}); err != nil {
				return outcomes, abandoned(ctx, err)
			}

			continue
		}

		// The copy is in place; record it even if the consumer is gone.
		if _, err := d.status.MarkDeployed(context.WithoutCancel(ctx), cid, name); err != nil {
			d.logger.Warn("failed to record deployment", slog.String("client_id", cid), slog.Any("error", err))
			outcomes = append(outcomes, Outcome{Client: cid, Status: OutcomeError, Path: dest, Error: err.Error()})
			if err := emit(Event{Kind: KindError, Client: cid, Error: err.Error()}); err != nil {
				return outcomes, abandoned(ctx, err)
			}

			continue
		}

		outcomes = append(outcomes, Outcome{Client: cid, Status: OutcomeDeployed, Path: dest})
		overall[cid] = 100
		if err := emit(Event{Kind: KindFinished, Client: cid, Progress: 100}); err != nil {
			return outcomes, abandoned(ctx, err)
		}
	}

	if err := emit(Event{Kind: KindDone}); err != nil {
		return outcomes, abandoned(ctx, err)
	}

	return outcomes, nil
}

// deliver copies src into the client's deployment path through a temp file
// in the same directory. progress is called after every chunk.
func (d *Distributor) deliver(ctx context.Context, src, cid string, total int64, progress func(int) error) (string, error) {
	if err := artifact.ValidateClientID(cid); err != nil {
		return "", err
	}
	if _, err := d.status.Get(ctx, cid); err != nil {
		return "", err
	}

	dest := d.layout.DeployedPath(cid)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.ErrIO, err)
	}

	in, err := os.Open(src)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.ErrIO, err)
	}
	defer in.Close()

	out, err := os.CreateTemp(filepath.Dir(dest), ".deploy-*")
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.ErrIO, err)
	}
	tmp := out.Name()
	committed := false
	defer func() {
		if !committed {
			out.Close()
			os.Remove(tmp)
		}
	}()

	buf := make([]byte, d.chunkSize)
	var copied int64
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, rerr := io.ReadFull(in, buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				return "", pkgerrors.Wrap(pkgerrors.ErrIO, err)
			}
			copied += int64(n)
			if err := progress(percent(copied, total)); err != nil {
				return "", err
			}
		}
		if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
			break
		}
		if rerr != nil {
			return "", pkgerrors.Wrap(pkgerrors.ErrIO, rerr)
		}
	}

	if err := out.Close(); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.ErrIO, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.ErrIO, err)
	}
	committed = true

	return dest, nil
}

func percent(copied, total int64) int {
	if total <= 0 {
		return 100
	}

	return int(copied * 100 / total)
}

func abandoned(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	return err
}
