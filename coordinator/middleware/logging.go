package middleware

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/absmach/flcoord/coordinator"
	"github.com/absmach/flcoord/pkg/distributor"
	"github.com/absmach/flcoord/pkg/round"
	"github.com/absmach/flcoord/pkg/status"
	"github.com/absmach/flcoord/pkg/trainer"
)

var _ coordinator.Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    coordinator.Service
}

func Logging(logger *slog.Logger, svc coordinator.Service) coordinator.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) InitGlobal(ctx context.Context) (resp coordinator.ArtifactInfo, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("path", resp.Path),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Init global model failed", args...)

			return
		}
		lm.logger.Info("Init global model completed successfully", args...)
	}(time.Now())

	return lm.svc.InitGlobal(ctx)
}

func (lm *loggingMiddleware) TrainClient(ctx context.Context, clientID string, samples int) (resp trainer.Result, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("client",
				slog.String("id", clientID),
				slog.Int("samples", samples),
				slog.Int("exit_code", resp.ExitCode),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Train client failed", args...)

			return
		}
		lm.logger.Info("Train client completed successfully", args...)
	}(time.Now())

	return lm.svc.TrainClient(ctx, clientID, samples)
}

func (lm *loggingMiddleware) Aggregate(ctx context.Context) (resp coordinator.ArtifactInfo, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("path", resp.Path),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Aggregate failed", args...)

			return
		}
		lm.logger.Info("Aggregate completed successfully", args...)
	}(time.Now())

	return lm.svc.Aggregate(ctx)
}

func (lm *loggingMiddleware) Acknowledge(ctx context.Context, clientID string) (resp status.ClientRecord, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("client",
				slog.String("id", clientID),
				slog.Bool("deployed", resp.Deployed),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Acknowledge failed", args...)

			return
		}
		lm.logger.Info("Acknowledge completed successfully", args...)
	}(time.Now())

	return lm.svc.Acknowledge(ctx, clientID)
}

func (lm *loggingMiddleware) Status(ctx context.Context) (resp status.Table, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("clients", len(resp)),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get status failed", args...)

			return
		}
		lm.logger.Info("Get status completed successfully", args...)
	}(time.Now())

	return lm.svc.Status(ctx)
}

func (lm *loggingMiddleware) Distribute(ctx context.Context, modelName string, clientIDs []string) (resp []distributor.Outcome, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("distribution",
				slog.String("model", modelName),
				slog.String("clients", strings.Join(clientIDs, ",")),
				slog.Int("outcomes", len(resp)),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Distribute failed", args...)

			return
		}
		lm.logger.Info("Distribute completed successfully", args...)
	}(time.Now())

	return lm.svc.Distribute(ctx, modelName, clientIDs)
}

func (lm *loggingMiddleware) DistributeStream(ctx context.Context, modelName string, clientIDs []string, sink distributor.Sink) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("distribution",
				slog.String("model", modelName),
				slog.String("clients", strings.Join(clientIDs, ",")),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Distribute stream failed", args...)

			return
		}
		lm.logger.Info("Distribute stream completed successfully", args...)
	}(time.Now())

	return lm.svc.DistributeStream(ctx, modelName, clientIDs, sink)
}

func (lm *loggingMiddleware) Download(ctx context.Context) (resp coordinator.Artifact, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("name", resp.Name),
			slog.Int64("size", resp.Size),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Download failed", args...)

			return
		}
		lm.logger.Info("Download completed successfully", args...)
	}(time.Now())

	return lm.svc.Download(ctx)
}

func (lm *loggingMiddleware) RunRound(ctx context.Context, samples int, distribute bool) (resp coordinator.RoundResult, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("round",
				slog.Int("samples_per_client", samples),
				slog.Bool("distribute", distribute),
				slog.String("state", resp.State.String()),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Run round failed", args...)

			return
		}
		lm.logger.Info("Run round completed successfully", args...)
	}(time.Now())

	return lm.svc.RunRound(ctx, samples, distribute)
}

func (lm *loggingMiddleware) History(ctx context.Context) (resp []round.Record, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("rounds", len(resp)),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get history failed", args...)

			return
		}
		lm.logger.Info("Get history completed successfully", args...)
	}(time.Now())

	return lm.svc.History(ctx)
}

func (lm *loggingMiddleware) ModelStatus(ctx context.Context) (resp coordinator.ModelStatus, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get model status failed", args...)

			return
		}
		lm.logger.Info("Get model status completed successfully", args...)
	}(time.Now())

	return lm.svc.ModelStatus(ctx)
}

func (lm *loggingMiddleware) Subscribe(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Subscribe failed", args...)

			return
		}
		lm.logger.Info("Subscribe completed successfully", args...)
	}(time.Now())

	return lm.svc.Subscribe(ctx)
}
