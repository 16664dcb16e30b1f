package coordinator

import (
	"context"
	"io"

	"github.com/absmach/flcoord/pkg/distributor"
	"github.com/absmach/flcoord/pkg/round"
	"github.com/absmach/flcoord/pkg/status"
	"github.com/absmach/flcoord/pkg/trainer"
)

// Service coordinates one federation. Once started, every operation except
// DistributeStream runs to completion whatever happens to ctx.
type Service interface {
	// InitGlobal writes a freshly constructed initial global model.
	InitGlobal(ctx context.Context) (ArtifactInfo, error)
	TrainClient(ctx context.Context, clientID string, samples int) (trainer.Result, error)
	// Aggregate averages the clients' current local models into the updated
	// global model.
	Aggregate(ctx context.Context) (ArtifactInfo, error)

	Acknowledge(ctx context.Context, clientID string) (status.ClientRecord, error)
	Status(ctx context.Context) (status.Table, error)

	// Distribute copies a server artifact to the given clients, or to every
	// configured client when none are named.
	Distribute(ctx context.Context, modelName string, clientIDs []string) ([]distributor.Outcome, error)
	// DistributeStream is Distribute with live progress. It returns before
	// calling sink when the artifact cannot be resolved.
	DistributeStream(ctx context.Context, modelName string, clientIDs []string, sink distributor.Sink) error
	Download(ctx context.Context) (Artifact, error)

	RunRound(ctx context.Context, samples int, distribute bool) (RoundResult, error)
	History(ctx context.Context) ([]round.Record, error)
	ModelStatus(ctx context.Context) (ModelStatus, error)

	// Subscribe listens for client acknowledgements over MQTT.
	Subscribe(ctx context.Context) error
}

type ArtifactInfo struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Artifact is a downloadable model. The caller closes Content.
type Artifact struct {
	Name    string
	Size    int64
	Content io.ReadCloser
}

type RoundResult struct {
	round.Summary
	Deployment []distributor.Outcome `json:"deployment,omitempty"`
}

type ModelStatus struct {
	Status  string `json:"status"`
	Initial bool   `json:"global_model_init"`
	Updated bool   `json:"global_model_updated"`
}

type DeploymentNotice struct {
	ClientID  string `json:"client_id"`
	ModelName string `json:"model"`
	Path      string `json:"path"`
}
