package coordinator_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/absmach/flcoord/coordinator"
	"github.com/absmach/flcoord/pkg/artifact"
	"github.com/absmach/flcoord/pkg/distributor"
	pkgerrors "github.com/absmach/flcoord/pkg/errors"
	"github.com/absmach/flcoord/pkg/fl"
	"github.com/absmach/flcoord/pkg/mqtt"
	"github.com/absmach/flcoord/pkg/mqtt/mocks"
	"github.com/absmach/flcoord/pkg/round"
	"github.com/absmach/flcoord/pkg/status"
	"github.com/absmach/flcoord/pkg/storage"
	"github.com/absmach/flcoord/pkg/trainer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	shapes    = [][]int{{2, 2}, {2}}
	clientIDs = []string{"1", "2", "3"}
)

// constTrainer writes a local model filled with the client's numeric id.
type constTrainer struct {
	codec  artifact.Codec
	layout artifact.Layout
}

func (c constTrainer) Train(_ context.Context, id string, _ int) (trainer.Result, error) {
	fill := map[string]float64{"1": 1, "2": 2, "3": 3}[id]
	ws := make(fl.WeightSet, len(shapes))
	for i, s := range shapes {
		t := fl.Zeros(s...)
		for j := range t.Data {
			t.Data[j] = fill
		}
		ws[i] = t
	}

	return trainer.Result{Stdout: "ok"}, c.codec.Save(c.layout.LocalPath(id), artifact.Model{Weights: ws, Trained: true})
}

type fixture struct {
	svc    coordinator.Service
	layout artifact.Layout
	store  *status.Store
	pubsub *mocks.MockPubSub
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	layout := artifact.NewLayout(t.TempDir())
	codec, err := artifact.NewCBORCodec(shapes, 1)
	require.NoError(t, err)

	store := status.NewStore(storage.NewInMemoryStorage(), clientIDs)
	history := round.NewHistory(storage.NewInMemoryStorage())
	dist := distributor.New(layout, store, logger)
	orch := round.NewOrchestrator(layout, codec, constTrainer{codec: codec, layout: layout}, fl.NewFedAvgAggregator(), history, clientIDs, logger)
	ps := new(mocks.MockPubSub)

	return fixture{
		svc:    coordinator.NewService(layout, store, dist, orch, history, ps, "", logger),
		layout: layout,
		store:  store,
		pubsub: ps,
	}
}

func writeUpdated(t *testing.T, layout artifact.Layout, data []byte) {
	t.Helper()

	require.NoError(t, os.MkdirAll(layout.ServerDir(), 0o755))
	require.NoError(t, os.WriteFile(layout.UpdatedPath(), data, 0o644))
}

func TestSubscribe_AcknowledgesFromTopic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var handler mqtt.Handler
	f.pubsub.On("Subscribe", mock.Anything, "fl/clients/+/ack", mock.Anything).
		Run(func(args mock.Arguments) { handler = args.Get(2).(mqtt.Handler) }).
		Return(nil)

	require.NoError(t, f.svc.Subscribe(ctx))
	require.NotNil(t, handler)

	cases := []struct {
		desc  string
		topic string
		err   error
	}{
		{desc: "known client", topic: "fl/clients/2/ack"},
		{desc: "unknown client", topic: "fl/clients/9/ack", err: pkgerrors.ErrClientNotFound},
		{desc: "foreign topic", topic: "other/clients/2/ack", err: errors.New("acknowledgement topic carries no client id")},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			err := handler(tc.topic, map[string]any{})
			switch {
			case tc.err == nil:
				assert.NoError(t, err)
			case errors.Is(tc.err, pkgerrors.ErrClientNotFound):
				assert.ErrorIs(t, err, tc.err)
			default:
				assert.EqualError(t, err, tc.err.Error())
			}
		})
	}

	rec, err := f.store.Get(ctx, "2")
	require.NoError(t, err)
	assert.True(t, rec.Acknowledged)
	f.pubsub.AssertExpectations(t)
}

func TestSubscribe_PropagatesBrokerError(t *testing.T) {
	f := newFixture(t)
	f.pubsub.On("Subscribe", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	assert.EqualError(t, f.svc.Subscribe(context.Background()), "broker down")
}

func TestDistribute_NotifiesDeployedClients(t *testing.T) {
	f := newFixture(t)
	writeUpdated(t, f.layout, []byte("weights"))

	for _, id := range []string{"1", "3"} {
		f.pubsub.On("Publish", mock.Anything, "fl/clients/"+id+"/deployed", coordinator.DeploymentNotice{
			ClientID:  id,
			ModelName: f.layout.UpdatedName,
			Path:      f.layout.DeployedPath(id),
		}).Return(nil).Once()
	}

	outcomes, err := f.svc.Distribute(context.Background(), "", []string{"1", "9", "3"})
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	assert.Equal(t, distributor.OutcomeDeployed, outcomes[0].Status)
	assert.Equal(t, distributor.OutcomeError, outcomes[1].Status)
	assert.Equal(t, distributor.OutcomeDeployed, outcomes[2].Status)

	f.pubsub.AssertExpectations(t)
	f.pubsub.AssertNotCalled(t, "Publish", mock.Anything, "fl/clients/9/deployed", mock.Anything)
}

func TestDistribute_PublishFailureKeepsDeployment(t *testing.T) {
	f := newFixture(t)
	writeUpdated(t, f.layout, []byte("weights"))
	f.pubsub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	outcomes, err := f.svc.Distribute(context.Background(), "", nil)
	require.NoError(t, err)
	require.Len(t, outcomes, len(clientIDs))

	table, err := f.svc.Status(context.Background())
	require.NoError(t, err)
	for _, id := range clientIDs {
		assert.True(t, table[id].Deployed, "client %s should be deployed", id)
		assert.FileExists(t, f.layout.DeployedPath(id))
	}
}

func TestCancelledCallerDoesNotStopOperations(t *testing.T) {
	f := newFixture(t)
	writeUpdated(t, f.layout, []byte("weights"))
	f.pubsub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes, err := f.svc.Distribute(ctx, "", nil)
	require.NoError(t, err)
	require.Len(t, outcomes, len(clientIDs))
	for _, o := range outcomes {
		assert.Equal(t, distributor.OutcomeDeployed, o.Status)
	}

	res, err := f.svc.RunRound(ctx, 10, false)
	require.NoError(t, err)
	assert.Equal(t, round.Completed, res.State)
}

func TestDistributeStream_FollowsCancellation(t *testing.T) {
	f := newFixture(t)
	writeUpdated(t, f.layout, []byte("weights"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var events []distributor.Event
	err := f.svc.DistributeStream(ctx, "", nil, func(ev distributor.Event) error {
		events = append(events, ev)

		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, events)
	f.pubsub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestDistribute_MissingArtifact(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Distribute(context.Background(), "", nil)
	assert.ErrorIs(t, err, pkgerrors.ErrArtifactNotFound)
	f.pubsub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestDownload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Download(ctx)
	assert.ErrorIs(t, err, pkgerrors.ErrArtifactNotFound)

	writeUpdated(t, f.layout, []byte("global weights"))
	a, err := f.svc.Download(ctx)
	require.NoError(t, err)
	defer a.Content.Close()

	data, err := io.ReadAll(a.Content)
	require.NoError(t, err)
	assert.Equal(t, "global weights", string(data))
	assert.Equal(t, int64(len(data)), a.Size)
	assert.Equal(t, f.layout.UpdatedName, a.Name)
}

func TestModelStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st, err := f.svc.ModelStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, coordinator.ModelStatus{Status: "ok"}, st)

	_, err = f.svc.InitGlobal(ctx)
	require.NoError(t, err)

	st, err = f.svc.ModelStatus(ctx)
	require.NoError(t, err)
	assert.True(t, st.Initial)
	assert.False(t, st.Updated)
}

func TestRunRound_Distributes(t *testing.T) {
	f := newFixture(t)
	f.pubsub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()

	res, err := f.svc.RunRound(ctx, 10, true)
	require.NoError(t, err)
	assert.Equal(t, round.Completed, res.State)
	require.Len(t, res.Deployment, len(clientIDs))
	for _, o := range res.Deployment {
		assert.Equal(t, distributor.OutcomeDeployed, o.Status)
	}
	f.pubsub.AssertNumberOfCalls(t, "Publish", len(clientIDs))

	history, err := f.svc.History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestRunRound_WithoutDistribution(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.RunRound(context.Background(), 10, false)
	require.NoError(t, err)
	assert.Empty(t, res.Deployment)
	assert.NoFileExists(t, f.layout.DeployedPath("1"))
	f.pubsub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}
