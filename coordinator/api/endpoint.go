package api

import (
	"context"
	"errors"

	"github.com/absmach/flcoord/coordinator"
	pkgerrors "github.com/absmach/flcoord/pkg/errors"
	"github.com/absmach/flcoord/pkg/round"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/go-kit/kit/endpoint"
)

func initGlobalEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		info, err := svc.InitGlobal(ctx)
		if err != nil {
			return artifactRes{}, err
		}

		return artifactRes{
			ArtifactInfo: info,
			created:      true,
		}, nil
	}
}

func aggregateEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		info, err := svc.Aggregate(ctx)
		if err != nil {
			return artifactRes{}, err
		}

		return artifactRes{
			ArtifactInfo: info,
		}, nil
	}
}

func trainClientEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(trainReq)
		if !ok {
			return trainRes{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return trainRes{}, errors.Join(apiutil.ErrValidation, err)
		}

		res, err := svc.TrainClient(ctx, req.clientID, int(req.samples))
		if err != nil {
			return trainRes{}, err
		}

		return trainRes{
			ClientID: req.clientID,
			ExitCode: res.ExitCode,
			Stdout:   res.Stdout,
			Stderr:   res.Stderr,
			Duration: res.Duration.String(),
		}, nil
	}
}

func acknowledgeEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return ackRes{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return ackRes{}, errors.Join(apiutil.ErrValidation, err)
		}

		rec, err := svc.Acknowledge(ctx, req.id)
		if err != nil {
			return ackRes{}, err
		}

		return ackRes{
			Client:       req.id,
			ClientRecord: rec,
		}, nil
	}
}

func statusEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		table, err := svc.Status(ctx)
		if err != nil {
			return statusRes{}, err
		}

		return statusRes(table), nil
	}
}

func distributeEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(distributeReq)
		if !ok {
			return distributeRes{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return distributeRes{}, errors.Join(apiutil.ErrValidation, err)
		}

		outcomes, err := svc.Distribute(ctx, req.modelName, req.clientIDs)
		if err != nil {
			return distributeRes{}, err
		}

		res := make(distributeRes, len(outcomes))
		for _, o := range outcomes {
			res[o.Client] = o
		}

		return res, nil
	}
}

func runRoundEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(roundReq)
		if !ok {
			return roundRes{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return roundRes{}, errors.Join(apiutil.ErrValidation, err)
		}

		res, err := svc.RunRound(ctx, int(req.samples), req.distribute)
		if err != nil {
			return roundRes{}, err
		}

		return roundRes{
			RoundResult: res,
		}, nil
	}
}

func historyEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		records, err := svc.History(ctx)
		if err != nil {
			return historyRes{}, err
		}
		if records == nil {
			records = []round.Record{}
		}

		return historyRes{
			Rounds:      records,
			TotalRounds: len(records),
		}, nil
	}
}

func modelStatusEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		st, err := svc.ModelStatus(ctx)
		if err != nil {
			return modelStatusRes{}, err
		}

		return modelStatusRes{
			ModelStatus: st,
		}, nil
	}
}

func downloadEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		a, err := svc.Download(ctx)
		if err != nil {
			return downloadRes{}, err
		}

		return downloadRes{
			Artifact: a,
		}, nil
	}
}
