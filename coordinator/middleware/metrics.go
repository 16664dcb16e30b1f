package middleware

import (
	"context"
	"time"

	"github.com/absmach/flcoord/coordinator"
	"github.com/absmach/flcoord/pkg/distributor"
	"github.com/absmach/flcoord/pkg/round"
	"github.com/absmach/flcoord/pkg/status"
	"github.com/absmach/flcoord/pkg/trainer"
	"github.com/go-kit/kit/metrics"
)

var _ coordinator.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     coordinator.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc coordinator.Service) coordinator.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) observe(method string, begin time.Time) {
	mm.counter.With("method", method).Add(1)
	mm.latency.With("method", method).Observe(time.Since(begin).Seconds())
}

func (mm *metricsMiddleware) InitGlobal(ctx context.Context) (coordinator.ArtifactInfo, error) {
	defer mm.observe("init-global", time.Now())

	return mm.svc.InitGlobal(ctx)
}

func (mm *metricsMiddleware) TrainClient(ctx context.Context, clientID string, samples int) (trainer.Result, error) {
	defer mm.observe("train-client", time.Now())

	return mm.svc.TrainClient(ctx, clientID, samples)
}

func (mm *metricsMiddleware) Aggregate(ctx context.Context) (coordinator.ArtifactInfo, error) {
	defer mm.observe("aggregate", time.Now())

	return mm.svc.Aggregate(ctx)
}

func (mm *metricsMiddleware) Acknowledge(ctx context.Context, clientID string) (status.ClientRecord, error) {
	defer mm.observe("acknowledge", time.Now())

	return mm.svc.Acknowledge(ctx, clientID)
}

func (mm *metricsMiddleware) Status(ctx context.Context) (status.Table, error) {
	defer mm.observe("status", time.Now())

	return mm.svc.Status(ctx)
}

func (mm *metricsMiddleware) Distribute(ctx context.Context, modelName string, clientIDs []string) ([]distributor.Outcome, error) {
	defer mm.observe("distribute", time.Now())

	return mm.svc.Distribute(ctx, modelName, clientIDs)
}

func (mm *metricsMiddleware) DistributeStream(ctx context.Context, modelName string, clientIDs []string, sink distributor.Sink) error {
	defer mm.observe("distribute-stream", time.Now())

	return mm.svc.DistributeStream(ctx, modelName, clientIDs, sink)
}

func (mm *metricsMiddleware) Download(ctx context.Context) (coordinator.Artifact, error) {
	defer mm.observe("download", time.Now())

	return mm.svc.Download(ctx)
}

func (mm *metricsMiddleware) RunRound(ctx context.Context, samples int, distribute bool) (coordinator.RoundResult, error) {
	defer mm.observe("run-round", time.Now())

	return mm.svc.RunRound(ctx, samples, distribute)
}

func (mm *metricsMiddleware) History(ctx context.Context) ([]round.Record, error) {
	defer mm.observe("history", time.Now())

	return mm.svc.History(ctx)
}

func (mm *metricsMiddleware) ModelStatus(ctx context.Context) (coordinator.ModelStatus, error) {
	defer mm.observe("model-status", time.Now())

	return mm.svc.ModelStatus(ctx)
}

func (mm *metricsMiddleware) Subscribe(ctx context.Context) error {
	defer mm.observe("subscribe", time.Now())

	return mm.svc.Subscribe(ctx)
}
