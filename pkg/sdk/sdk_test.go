package sdk_test

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/absmach/flcoord/coordinator"
	"github.com/absmach/flcoord/coordinator/api"
	"github.com/absmach/flcoord/coordinator/mocks"
	"github.com/absmach/flcoord/pkg/distributor"
	pkgerrors "github.com/absmach/flcoord/pkg/errors"
	"github.com/absmach/flcoord/pkg/round"
	"github.com/absmach/flcoord/pkg/sdk"
	"github.com/absmach/flcoord/pkg/status"
	"github.com/absmach/flcoord/pkg/trainer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newSDK(t *testing.T) (sdk.SDK, *mocks.MockService) {
	t.Helper()

	svc := new(mocks.MockService)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts := httptest.NewServer(api.MakeHandler(svc, logger, "sdk-test"))
	t.Cleanup(ts.Close)

	return sdk.NewSDK(sdk.Config{CoordinatorURL: ts.URL + "/"}), svc
}

func TestTrainClient(t *testing.T) {
	s, svc := newSDK(t)
	svc.On("TrainClient", mock.Anything, "1", 400).Return(trainer.Result{Stdout: "loss 0.1"}, nil)
	svc.On("TrainClient", mock.Anything, "2", 25).Return(trainer.Result{}, &trainer.TrainerError{ClientID: "2", ExitCode: 1, Stderr: "boom"})

	cases := []struct {
		desc     string
		clientID string
		samples  uint64
		stdout   string
		err      string
	}{
		{desc: "default samples", clientID: "1", stdout: "loss 0.1"},
		{desc: "trainer failure", clientID: "2", samples: 25, err: "502"},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			res, err := s.TrainClient(tc.clientID, tc.samples)
			if tc.err != "" {
				require.ErrorIs(t, err, sdk.ErrUnexpectedResponse)
				assert.Contains(t, err.Error(), tc.err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.stdout, res.Stdout)
			assert.Equal(t, tc.clientID, res.ClientID)
		})
	}
}

func TestModels(t *testing.T) {
	s, svc := newSDK(t)
	svc.On("InitGlobal", mock.Anything).Return(coordinator.ArtifactInfo{Name: "global_model_init.cbor", Path: "data/server/global_model_init.cbor"}, nil)
	svc.On("Aggregate", mock.Anything).Return(coordinator.ArtifactInfo{}, pkgerrors.ErrMissingClientArtifact)
	svc.On("ModelStatus", mock.Anything).Return(coordinator.ModelStatus{Status: "ok", Updated: true}, nil)

	info, err := s.InitGlobal()
	require.NoError(t, err)
	assert.Equal(t, "global_model_init.cbor", info.Name)

	_, err = s.Aggregate()
	require.ErrorIs(t, err, sdk.ErrUnexpectedResponse)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "client model artifact not found")

	st, err := s.ModelStatus()
	require.NoError(t, err)
	assert.Equal(t, sdk.ModelStatus{Status: "ok", Updated: true}, st)
}

func TestDistribute(t *testing.T) {
	s, svc := newSDK(t)
	svc.On("Distribute", mock.Anything, "", []string{"1", "2"}).Return([]distributor.Outcome{
		{Client: "1", Status: distributor.OutcomeDeployed, Path: "clients/client1/deployed_model.cbor"},
		{Client: "2", Status: distributor.OutcomeError, Error: "io failure"},
	}, nil)

	outcomes, err := s.Distribute("", []string{"1", "2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]sdk.Outcome{
		"1": {Client: "1", Status: "deployed", Path: "clients/client1/deployed_model.cbor"},
		"2": {Client: "2", Status: "error", Error: "io failure"},
	}, outcomes)
}

func TestDistributeStream(t *testing.T) {
	s, svc := newSDK(t)
	events := []distributor.Event{
		{Kind: distributor.KindProgress, Client: "1", Progress: 50, Overall: 50},
		{Kind: distributor.KindFinished, Client: "1", Progress: 100},
		{Kind: distributor.KindDone},
	}
	svc.On("DistributeStream", mock.Anything, "global_model_init.cbor", []string{"1"}, mock.Anything).Return(nil, events)

	var got []sdk.Event
	err := s.DistributeStream("global_model_init.cbor", []string{"1"}, func(ev sdk.Event) error {
		got = append(got, ev)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, sdk.Event{Client: "1", Progress: 50, Overall: 50}, got[0])
	assert.Equal(t, sdk.Event{Client: "1", Progress: 100, Finished: true}, got[1])
	assert.True(t, got[2].Done())
	assert.Equal(t, "complete", got[2].Status)
}

func TestDistributeStream_HandlerStops(t *testing.T) {
	s, svc := newSDK(t)
	events := []distributor.Event{
		{Kind: distributor.KindProgress, Client: "1", Progress: 50, Overall: 50},
		{Kind: distributor.KindDone},
	}
	svc.On("DistributeStream", mock.Anything, "", []string(nil), mock.Anything).Return(nil, events)

	errStop := errors.New("stop")
	calls := 0
	err := s.DistributeStream("", nil, func(sdk.Event) error {
		calls++
		return errStop
	})
	assert.ErrorIs(t, err, errStop)
	assert.Equal(t, 1, calls)
}

func TestDistributeStream_NotFound(t *testing.T) {
	s, svc := newSDK(t)
	svc.On("DistributeStream", mock.Anything, "missing.cbor", []string(nil), mock.Anything).Return(pkgerrors.ErrArtifactNotFound, nil)

	err := s.DistributeStream("missing.cbor", nil, func(sdk.Event) error { return nil })
	require.ErrorIs(t, err, sdk.ErrUnexpectedResponse)
	assert.Contains(t, err.Error(), "artifact not found")
}

func TestDownload(t *testing.T) {
	s, svc := newSDK(t)
	content := "updated global weights"
	svc.On("Download", mock.Anything).Return(coordinator.Artifact{
		Name:    "global_model_updated.cbor",
		Size:    int64(len(content)),
		Content: io.NopCloser(strings.NewReader(content)),
	}, nil)

	var buf bytes.Buffer
	n, err := s.Download(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), n)
	assert.Equal(t, content, buf.String())
}

func TestClients(t *testing.T) {
	s, svc := newSDK(t)
	model := "global_model_updated.cbor"
	svc.On("Status", mock.Anything).Return(status.Table{
		"1": {Deployed: true, ModelName: &model},
		"2": {},
	}, nil)
	svc.On("Acknowledge", mock.Anything, "1").Return(status.ClientRecord{Deployed: true, Acknowledged: true, ModelName: &model}, nil)

	table, err := s.Status()
	require.NoError(t, err)
	require.Len(t, table, 2)
	assert.True(t, table["1"].Deployed)
	require.NotNil(t, table["1"].Model)
	assert.Equal(t, model, *table["1"].Model)
	assert.Nil(t, table["2"].Timestamp)

	ack, err := s.Acknowledge("1")
	require.NoError(t, err)
	assert.Equal(t, "1", ack.Client)
	assert.True(t, ack.Acknowledged)
}

func TestRounds(t *testing.T) {
	s, svc := newSDK(t)
	svc.On("RunRound", mock.Anything, 400, true).Return(coordinator.RoundResult{
		Summary:    round.Summary{State: round.Completed, Record: &round.Record{RoundNumber: 1}},
		Deployment: []distributor.Outcome{{Client: "1", Status: distributor.OutcomeDeployed}},
	}, nil)
	svc.On("History", mock.Anything).Return([]round.Record{{RoundNumber: 1}, {RoundNumber: 2}}, nil)

	r, err := s.RunRound(0, true)
	require.NoError(t, err)
	assert.Equal(t, "Completed", r.State)
	require.NotNil(t, r.Record)
	assert.Equal(t, 1, r.Record.RoundNumber)
	assert.Len(t, r.Deployment, 1)

	h, err := s.History()
	require.NoError(t, err)
	assert.Equal(t, 2, h.TotalRounds)
	assert.Equal(t, 2, h.Rounds[1].RoundNumber)
}
