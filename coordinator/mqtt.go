package coordinator

import (
	"context"
	"errors"
	"log/slog"

	"github.com/absmach/flcoord/pkg/distributor"
	"github.com/absmach/flcoord/pkg/mqtt"
)

var errInvalidAckTopic = errors.New("acknowledgement topic carries no client id")

func (svc *service) Subscribe(ctx context.Context) error {
	return svc.pubsub.Subscribe(ctx, mqtt.AckTopic(svc.topicPrefix), svc.handleAck(ctx))
}

func (svc *service) handleAck(ctx context.Context) mqtt.Handler {
	return func(topic string, _ map[string]any) error {
		clientID, ok := mqtt.ClientIDFromTopic(svc.topicPrefix, topic)
		if !ok {
			return errInvalidAckTopic
		}
		if _, err := svc.status.Acknowledge(ctx, clientID); err != nil {
			return err
		}
		svc.logger.InfoContext(ctx, "client acknowledged deployment", slog.String("client_id", clientID))

		return nil
	}
}

// notify tells each successfully deployed client about its new model.
// Publish failures are logged; the deployment itself already succeeded.
func (svc *service) notify(ctx context.Context, modelName string, outcomes []distributor.Outcome) {
	for _, o := range outcomes {
		if o.Status != distributor.OutcomeDeployed {
			continue
		}
		notice := DeploymentNotice{ClientID: o.Client, ModelName: modelName, Path: o.Path}
		if err := svc.pubsub.Publish(ctx, mqtt.DeployedTopic(svc.topicPrefix, o.Client), notice); err != nil {
			svc.logger.Warn("failed to publish deployment notice", slog.String("client_id", o.Client), slog.Any("error", err))
		}
	}
}
