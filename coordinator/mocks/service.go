package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/absmach/flcoord/coordinator"
	"github.com/absmach/flcoord/pkg/distributor"
	"github.com/absmach/flcoord/pkg/round"
	"github.com/absmach/flcoord/pkg/status"
	"github.com/absmach/flcoord/pkg/trainer"
)

var _ coordinator.Service = (*MockService)(nil)

// MockService is a mock implementation of the coordinator.Service interface
type MockService struct {
	mock.Mock
}

func (m *MockService) InitGlobal(ctx context.Context) (coordinator.ArtifactInfo, error) {
	args := m.Called(ctx)
	return args.Get(0).(coordinator.ArtifactInfo), args.Error(1)
}

func (m *MockService) TrainClient(ctx context.Context, clientID string, samples int) (trainer.Result, error) {
	args := m.Called(ctx, clientID, samples)
	return args.Get(0).(trainer.Result), args.Error(1)
}

func (m *MockService) Aggregate(ctx context.Context) (coordinator.ArtifactInfo, error) {
	args := m.Called(ctx)
	return args.Get(0).(coordinator.ArtifactInfo), args.Error(1)
}

func (m *MockService) Acknowledge(ctx context.Context, clientID string) (status.ClientRecord, error) {
	args := m.Called(ctx, clientID)
	return args.Get(0).(status.ClientRecord), args.Error(1)
}

func (m *MockService) Status(ctx context.Context) (status.Table, error) {
	args := m.Called(ctx)
	return args.Get(0).(status.Table), args.Error(1)
}

func (m *MockService) Distribute(ctx context.Context, modelName string, clientIDs []string) ([]distributor.Outcome, error) {
	args := m.Called(ctx, modelName, clientIDs)
	return args.Get(0).([]distributor.Outcome), args.Error(1)
}

// DistributeStream replays any events passed as the second return value
// through sink before returning the first.
func (m *MockService) DistributeStream(ctx context.Context, modelName string, clientIDs []string, sink distributor.Sink) error {
	args := m.Called(ctx, modelName, clientIDs, sink)
	if events, ok := args.Get(1).([]distributor.Event); ok {
		for _, ev := range events {
			if err := sink(ev); err != nil {
				return err
			}
		}
	}
	return args.Error(0)
}

func (m *MockService) Download(ctx context.Context) (coordinator.Artifact, error) {
	args := m.Called(ctx)
	return args.Get(0).(coordinator.Artifact), args.Error(1)
}

func (m *MockService) RunRound(ctx context.Context, samples int, distribute bool) (coordinator.RoundResult, error) {
	args := m.Called(ctx, samples, distribute)
	return args.Get(0).(coordinator.RoundResult), args.Error(1)
}

func (m *MockService) History(ctx context.Context) ([]round.Record, error) {
	args := m.Called(ctx)
	return args.Get(0).([]round.Record), args.Error(1)
}

func (m *MockService) ModelStatus(ctx context.Context) (coordinator.ModelStatus, error) {
	args := m.Called(ctx)
	return args.Get(0).(coordinator.ModelStatus), args.Error(1)
}

func (m *MockService) Subscribe(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
