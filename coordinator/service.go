package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/absmach/flcoord/pkg/artifact"
	"github.com/absmach/flcoord/pkg/distributor"
	pkgerrors "github.com/absmach/flcoord/pkg/errors"
	"github.com/absmach/flcoord/pkg/mqtt"
	"github.com/absmach/flcoord/pkg/round"
	"github.com/absmach/flcoord/pkg/status"
	"github.com/absmach/flcoord/pkg/trainer"
)

type service struct {
	layout      artifact.Layout
	status      *status.Store
	distributor *distributor.Distributor
	rounds      *round.Orchestrator
	history     *round.History
	pubsub      mqtt.PubSub
	topicPrefix string
	logger      *slog.Logger
}

func NewService(
	layout artifact.Layout,
	store *status.Store,
	dist *distributor.Distributor,
	rounds *round.Orchestrator,
	history *round.History,
	pubsub mqtt.PubSub,
	topicPrefix string,
	logger *slog.Logger,
) Service {
	if topicPrefix == "" {
		topicPrefix = mqtt.DefTopicPrefix
	}

	return &service{
		layout:      layout,
		status:      store,
		distributor: dist,
		rounds:      rounds,
		history:     history,
		pubsub:      pubsub,
		topicPrefix: topicPrefix,
		logger:      logger,
	}
}

func (svc *service) InitGlobal(ctx context.Context) (ArtifactInfo, error) {
	path, err := svc.rounds.InitGlobal(context.WithoutCancel(ctx))
	if err != nil {
		return ArtifactInfo{}, err
	}

	return ArtifactInfo{Name: filepath.Base(path), Path: path}, nil
}

func (svc *service) TrainClient(ctx context.Context, clientID string, samples int) (trainer.Result, error) {
	return svc.rounds.TrainClient(context.WithoutCancel(ctx), clientID, samples)
}

func (svc *service) Aggregate(ctx context.Context) (ArtifactInfo, error) {
	path, err := svc.rounds.Aggregate(context.WithoutCancel(ctx))
	if err != nil {
		return ArtifactInfo{}, err
	}

	return ArtifactInfo{Name: filepath.Base(path), Path: path}, nil
}

func (svc *service) Acknowledge(ctx context.Context, clientID string) (status.ClientRecord, error) {
	return svc.status.Acknowledge(ctx, clientID)
}

func (svc *service) Status(ctx context.Context) (status.Table, error) {
	return svc.status.Load(ctx)
}

func (svc *service) Distribute(ctx context.Context, modelName string, clientIDs []string) ([]distributor.Outcome, error) {
	ctx = context.WithoutCancel(ctx)
	modelName, clientIDs = svc.targets(modelName, clientIDs)

	outcomes, err := svc.distributor.DistributeSync(ctx, modelName, clientIDs)
	svc.notify(ctx, modelName, outcomes)

	return outcomes, err
}

func (svc *service) DistributeStream(ctx context.Context, modelName string, clientIDs []string, sink distributor.Sink) error {
	modelName, clientIDs = svc.targets(modelName, clientIDs)

	outcomes, err := svc.distributor.Distribute(ctx, modelName, clientIDs, sink)
	svc.notify(context.WithoutCancel(ctx), modelName, outcomes)

	return err
}

func (svc *service) Download(_ context.Context) (Artifact, error) {
	path := svc.layout.UpdatedPath()
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Artifact{}, fmt.Errorf("%w: %s", pkgerrors.ErrArtifactNotFound, svc.layout.UpdatedName)
		}

		return Artifact{}, pkgerrors.Wrap(pkgerrors.ErrIO, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()

		return Artifact{}, pkgerrors.Wrap(pkgerrors.ErrIO, err)
	}

	return Artifact{Name: svc.layout.UpdatedName, Size: info.Size(), Content: f}, nil
}

func (svc *service) RunRound(ctx context.Context, samples int, distribute bool) (RoundResult, error) {
	ctx = context.WithoutCancel(ctx)
	summary, err := svc.rounds.RunRound(ctx, samples)
	res := RoundResult{Summary: summary}
	if err != nil || !distribute {
		return res, err
	}

	res.Deployment, err = svc.Distribute(ctx, svc.layout.UpdatedName, nil)

	return res, err
}

func (svc *service) History(ctx context.Context) ([]round.Record, error) {
	return svc.history.List(ctx)
}

func (svc *service) ModelStatus(_ context.Context) (ModelStatus, error) {
	return ModelStatus{
		Status:  "ok",
		Initial: fileExists(svc.layout.InitialPath()),
		Updated: fileExists(svc.layout.UpdatedPath()),
	}, nil
}

func (svc *service) targets(modelName string, clientIDs []string) (string, []string) {
	if modelName == "" {
		modelName = svc.layout.UpdatedName
	}
	if len(clientIDs) == 0 {
		clientIDs = svc.status.ClientIDs()
	}

	return modelName, clientIDs
}

func fileExists(path string) bool {
	info, err := os.Stat(path)

	return err == nil && info.Mode().IsRegular()
}
