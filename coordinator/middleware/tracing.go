package middleware

import (
	"context"
	"strings"

	"github.com/absmach/flcoord/coordinator"
	"github.com/absmach/flcoord/pkg/distributor"
	"github.com/absmach/flcoord/pkg/round"
	"github.com/absmach/flcoord/pkg/status"
	"github.com/absmach/flcoord/pkg/trainer"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var _ coordinator.Service = (*tracing)(nil)

type tracing struct {
	tracer trace.Tracer
	svc    coordinator.Service
}

func Tracing(tracer trace.Tracer, svc coordinator.Service) coordinator.Service {
	return &tracing{tracer, svc}
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (tm *tracing) InitGlobal(ctx context.Context) (resp coordinator.ArtifactInfo, err error) {
	ctx, span := tm.tracer.Start(ctx, "init-global")
	defer func() { end(span, err) }()

	return tm.svc.InitGlobal(ctx)
}

func (tm *tracing) TrainClient(ctx context.Context, clientID string, samples int) (resp trainer.Result, err error) {
	ctx, span := tm.tracer.Start(ctx, "train-client", trace.WithAttributes(
		attribute.String("client_id", clientID),
		attribute.Int("samples", samples),
	))
	defer func() { end(span, err) }()

	return tm.svc.TrainClient(ctx, clientID, samples)
}

func (tm *tracing) Aggregate(ctx context.Context) (resp coordinator.ArtifactInfo, err error) {
	ctx, span := tm.tracer.Start(ctx, "aggregate")
	defer func() { end(span, err) }()

	return tm.svc.Aggregate(ctx)
}

func (tm *tracing) Acknowledge(ctx context.Context, clientID string) (resp status.ClientRecord, err error) {
	ctx, span := tm.tracer.Start(ctx, "acknowledge", trace.WithAttributes(
		attribute.String("client_id", clientID),
	))
	defer func() { end(span, err) }()

	return tm.svc.Acknowledge(ctx, clientID)
}

func (tm *tracing) Status(ctx context.Context) (resp status.Table, err error) {
	ctx, span := tm.tracer.Start(ctx, "status")
	defer func() { end(span, err) }()

	return tm.svc.Status(ctx)
}

func (tm *tracing) Distribute(ctx context.Context, modelName string, clientIDs []string) (resp []distributor.Outcome, err error) {
	ctx, span := tm.tracer.Start(ctx, "distribute", trace.WithAttributes(
		attribute.String("model", modelName),
		attribute.String("clients", strings.Join(clientIDs, ",")),
	))
	defer func() { end(span, err) }()

	return tm.svc.Distribute(ctx, modelName, clientIDs)
}

func (tm *tracing) DistributeStream(ctx context.Context, modelName string, clientIDs []string, sink distributor.Sink) (err error) {
	ctx, span := tm.tracer.Start(ctx, "distribute-stream", trace.WithAttributes(
		attribute.String("model", modelName),
		attribute.String("clients", strings.Join(clientIDs, ",")),
	))
	defer func() { end(span, err) }()

	return tm.svc.DistributeStream(ctx, modelName, clientIDs, sink)
}

func (tm *tracing) Download(ctx context.Context) (resp coordinator.Artifact, err error) {
	ctx, span := tm.tracer.Start(ctx, "download")
	defer func() { end(span, err) }()

	return tm.svc.Download(ctx)
}

func (tm *tracing) RunRound(ctx context.Context, samples int, distribute bool) (resp coordinator.RoundResult, err error) {
	ctx, span := tm.tracer.Start(ctx, "run-round", trace.WithAttributes(
		attribute.Int("samples_per_client", samples),
		attribute.Bool("distribute", distribute),
	))
	defer func() { end(span, err) }()

	return tm.svc.RunRound(ctx, samples, distribute)
}

func (tm *tracing) History(ctx context.Context) (resp []round.Record, err error) {
	ctx, span := tm.tracer.Start(ctx, "history")
	defer func() { end(span, err) }()

	return tm.svc.History(ctx)
}

func (tm *tracing) ModelStatus(ctx context.Context) (resp coordinator.ModelStatus, err error) {
	ctx, span := tm.tracer.Start(ctx, "model-status")
	defer func() { end(span, err) }()

	return tm.svc.ModelStatus(ctx)
}

func (tm *tracing) Subscribe(ctx context.Context) (err error) {
	ctx, span := tm.tracer.Start(ctx, "subscribe")
	defer func() { end(span, err) }()

	return tm.svc.Subscribe(ctx)
}
