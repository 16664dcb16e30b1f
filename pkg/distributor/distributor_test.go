package distributor_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/absmach/flcoord/pkg/artifact"
	"github.com/absmach/flcoord/pkg/distributor"
	pkgerrors "github.com/absmach/flcoord/pkg/errors"
	"github.com/absmach/flcoord/pkg/status"
	"github.com/absmach/flcoord/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modelName = "global_model_updated.cbor"

type fixture struct {
	layout  artifact.Layout
	store   *status.Store
	dist    *distributor.Distributor
	payload []byte
}

func newFixture(t *testing.T, size int) fixture {
	t.Helper()

	layout := artifact.NewLayout(t.TempDir())
	require.NoError(t, os.MkdirAll(layout.ServerDir(), 0o755))
	payload := bytes.Repeat([]byte{0xab}, size)
	require.NoError(t, os.WriteFile(filepath.Join(layout.ServerDir(), modelName), payload, 0o644))

	store := status.NewStore(storage.NewInMemoryStorage(), nil)

	return fixture{
		layout:  layout,
		store:   store,
		dist:    distributor.New(layout, store, slog.Default()),
		payload: payload,
	}
}

type recorder struct {
	events []distributor.Event
}

func (r *recorder) sink(ev distributor.Event) error {
	r.events = append(r.events, ev)

	return nil
}

func (r *recorder) count(kind distributor.EventKind, client string) int {
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind && ev.Client == client {
			n++
		}
	}

	return n
}

func TestDistribute_ProgressEvents(t *testing.T) {
	f := newFixture(t, 128*1024)
	rec := &recorder{}

	outcomes, err := f.dist.Distribute(context.Background(), modelName, []string{"1", "2"}, rec.sink)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	assert.Equal(t, 2, rec.count(distributor.KindProgress, "1"))
	assert.Equal(t, 2, rec.count(distributor.KindProgress, "2"))
	assert.Equal(t, 1, rec.count(distributor.KindFinished, "1"))
	assert.Equal(t, 1, rec.count(distributor.KindFinished, "2"))
	assert.Equal(t, 1, rec.count(distributor.KindDone, ""))
	require.Len(t, rec.events, 7)

	expected := []distributor.Event{
		{Kind: distributor.KindProgress, Client: "1", Progress: 50, Overall: 25},
		{Kind: distributor.KindProgress, Client: "1", Progress: 100, Overall: 50},
		{Kind: distributor.KindFinished, Client: "1", Progress: 100},
		{Kind: distributor.KindProgress, Client: "2", Progress: 50, Overall: 75},
		{Kind: distributor.KindProgress, Client: "2", Progress: 100, Overall: 100},
		{Kind: distributor.KindFinished, Client: "2", Progress: 100},
		{Kind: distributor.KindDone},
	}
	assert.Equal(t, expected, rec.events)
}

func TestDistribute_UpdatesStatus(t *testing.T) {
	f := newFixture(t, 1000)
	ctx := context.Background()

	_, err := f.store.Acknowledge(ctx, "1")
	require.NoError(t, err)

	_, err = f.dist.Distribute(ctx, modelName, []string{"1", "3"}, (&recorder{}).sink)
	require.NoError(t, err)

	table, err := f.store.Load(ctx)
	require.NoError(t, err)
	for _, id := range []string{"1", "3"} {
		rec := table[id]
		assert.True(t, rec.Deployed)
		assert.False(t, rec.Acknowledged)
		require.NotNil(t, rec.ModelName)
		assert.Equal(t, modelName, *rec.ModelName)
		assert.NotNil(t, rec.Timestamp)

		data, err := os.ReadFile(f.layout.DeployedPath(id))
		require.NoError(t, err)
		assert.Equal(t, f.payload, data)
	}
	assert.False(t, table["2"].Deployed)
}

func TestDistribute_ContinuesAfterClientFailure(t *testing.T) {
	f := newFixture(t, 64*1024)
	rec := &recorder{}

	outcomes, err := f.dist.Distribute(context.Background(), modelName, []string{"1", "7", "2"}, rec.sink)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	assert.Equal(t, distributor.OutcomeDeployed, outcomes[0].Status)
	assert.Equal(t, distributor.OutcomeError, outcomes[1].Status)
	assert.NotEmpty(t, outcomes[1].Error)
	assert.Equal(t, distributor.OutcomeDeployed, outcomes[2].Status)

	assert.Equal(t, 1, rec.count(distributor.KindError, "7"))
	assert.Equal(t, 1, rec.count(distributor.KindFinished, "2"))
	assert.Equal(t, distributor.KindDone, rec.events[len(rec.events)-1].Kind)

	// Client 2's only chunk averages over all three targets.
	for _, ev := range rec.events {
		if ev.Kind == distributor.KindProgress && ev.Client == "2" {
			assert.Equal(t, 66, ev.Overall)
		}
	}
}

func TestDistribute_ArtifactErrors(t *testing.T) {
	f := newFixture(t, 10)

	cases := []struct {
		desc string
		name string
		err  error
	}{
		{
			desc: "missing artifact",
			name: "nope.cbor",
			err:  pkgerrors.ErrArtifactNotFound,
		},
		{
			desc: "name escaping the server dir",
			name: "../clients/x",
			err:  pkgerrors.ErrValidation,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			rec := &recorder{}
			_, err := f.dist.Distribute(context.Background(), tc.name, []string{"1"}, rec.sink)
			assert.ErrorIs(t, err, tc.err)
			assert.Empty(t, rec.events)
		})
	}
}

func TestDistribute_ConsumerDisconnect(t *testing.T) {
	f := newFixture(t, 256*1024)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var events []distributor.Event
	sink := func(ev distributor.Event) error {
		events = append(events, ev)
		if len(events) == 2 {
			cancel()
		}

		return nil
	}

	_, err := f.dist.Distribute(ctx, modelName, []string{"1", "2"}, sink)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, events, 2)
	for _, ev := range events {
		assert.Equal(t, distributor.KindProgress, ev.Kind)
	}

	table, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, table["1"].Deployed)
	assert.False(t, table["2"].Deployed)
	assert.NoFileExists(t, f.layout.DeployedPath("1"))

	entries, err := os.ReadDir(f.layout.ClientDir("1"))
	require.NoError(t, err)
	assert.Empty(t, entries, "partial copy should be removed")
}

func TestDistribute_SinkFailureStops(t *testing.T) {
	f := newFixture(t, 128*1024)

	calls := 0
	sink := func(distributor.Event) error {
		calls++

		return errors.New("broken pipe")
	}

	_, err := f.dist.Distribute(context.Background(), modelName, []string{"1", "2"}, sink)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDistribute_EmptyArtifact(t *testing.T) {
	f := newFixture(t, 0)
	rec := &recorder{}

	_, err := f.dist.Distribute(context.Background(), modelName, []string{"1"}, rec.sink)
	require.NoError(t, err)

	assert.Equal(t, 0, rec.count(distributor.KindProgress, "1"))
	assert.Equal(t, 1, rec.count(distributor.KindFinished, "1"))
	assert.FileExists(t, f.layout.DeployedPath("1"))
}

type failingRecorder struct {
	*status.Store
	failFor string
}

func (r failingRecorder) MarkDeployed(ctx context.Context, id, modelName string) (status.ClientRecord, error) {
	if id == r.failFor {
		return status.ClientRecord{}, errors.New("status snapshot unavailable")
	}

	return r.Store.MarkDeployed(ctx, id, modelName)
}

func TestDistribute_StatusFailureIsNotFinished(t *testing.T) {
	f := newFixture(t, 16)
	dist := distributor.New(f.layout, failingRecorder{Store: f.store, failFor: "1"}, slog.Default())
	rec := &recorder{}

	outcomes, err := dist.Distribute(context.Background(), modelName, []string{"1", "2"}, rec.sink)
	require.NoError(t, err)

	assert.Equal(t, 0, rec.count(distributor.KindFinished, "1"))
	assert.Equal(t, 1, rec.count(distributor.KindError, "1"))
	assert.Equal(t, 1, rec.count(distributor.KindFinished, "2"))
	assert.Equal(t, distributor.KindDone, rec.events[len(rec.events)-1].Kind)

	require.Len(t, outcomes, 2)
	assert.Equal(t, distributor.OutcomeError, outcomes[0].Status)
	assert.Equal(t, distributor.OutcomeDeployed, outcomes[1].Status)
}

func TestDistribute_RecordsBeforeFinished(t *testing.T) {
	f := newFixture(t, 16)

	var deployedAtFinish bool
	sink := func(ev distributor.Event) error {
		if ev.Kind == distributor.KindFinished {
			r, err := f.store.Get(context.Background(), ev.Client)
			require.NoError(t, err)
			deployedAtFinish = r.Deployed

			return errors.New("client went away")
		}

		return nil
	}

	_, err := f.dist.Distribute(context.Background(), modelName, []string{"1", "2"}, sink)
	require.Error(t, err)
	assert.True(t, deployedAtFinish)

	r, err := f.store.Get(context.Background(), "2")
	require.NoError(t, err)
	assert.False(t, r.Deployed)
}

func TestDistributeSync(t *testing.T) {
	f := newFixture(t, 100*1024)

	outcomes, err := f.dist.DistributeSync(context.Background(), modelName, []string{"2", "1"})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, "2", outcomes[0].Client)
	assert.Equal(t, f.layout.DeployedPath("2"), outcomes[0].Path)
	assert.Equal(t, "1", outcomes[1].Client)

	rec, err := f.store.Get(context.Background(), "2")
	require.NoError(t, err)
	assert.True(t, rec.Deployed)
}

func TestWithChunkSize(t *testing.T) {
	layout := artifact.NewLayout(t.TempDir())
	require.NoError(t, os.MkdirAll(layout.ServerDir(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(layout.ServerDir(), modelName), make([]byte, 40), 0o644))
	store := status.NewStore(storage.NewInMemoryStorage(), nil)
	dist := distributor.New(layout, store, slog.Default(), distributor.WithChunkSize(10))
	rec := &recorder{}

	_, err := dist.Distribute(context.Background(), modelName, []string{"1"}, rec.sink)
	require.NoError(t, err)
	assert.Equal(t, 4, rec.count(distributor.KindProgress, "1"))
}

func TestEventMarshalJSON(t *testing.T) {
	cases := []struct {
		desc  string
		event distributor.Event
		json  string
	}{
		{
			desc:  "progress",
			event: distributor.Event{Kind: distributor.KindProgress, Client: "1", Progress: 50, Overall: 25},
			json:  `{"client":"1","progress":50,"overall":25}`,
		},
		{
			desc:  "finished",
			event: distributor.Event{Kind: distributor.KindFinished, Client: "1"},
			json:  `{"client":"1","progress":100,"finished":true}`,
		},
		{
			desc:  "error",
			event: distributor.Event{Kind: distributor.KindError, Client: "2", Error: "disk full"},
			json:  `{"client":"2","error":"disk full"}`,
		},
		{
			desc:  "done",
			event: distributor.Event{Kind: distributor.KindDone},
			json:  `{"status":"complete"}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			data, err := json.Marshal(tc.event)
			require.NoError(t, err)
			assert.JSONEq(t, tc.json, string(data))
		})
	}
}
