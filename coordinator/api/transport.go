package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/absmach/flcoord/coordinator"
	"github.com/absmach/flcoord/pkg/api"
	pkgerrors "github.com/absmach/flcoord/pkg/errors"
	"github.com/absmach/supermq"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const clientIDKey = "clientID"

func MakeHandler(svc coordinator.Service, logger *slog.Logger, instanceID string) http.Handler {
	mux := chi.NewRouter()

	encodeError := apiutil.LoggingErrorEncoder(logger, api.EncodeError)
	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(encodeError),
	}

	mux.Route("/models", func(r chi.Router) {
		r.Post("/init", otelhttp.NewHandler(kithttp.NewServer(
			initGlobalEndpoint(svc),
			kithttp.NopRequestDecoder,
			api.EncodeResponse,
			opts...,
		), "init-global").ServeHTTP)
		r.Post("/aggregate", otelhttp.NewHandler(kithttp.NewServer(
			aggregateEndpoint(svc),
			kithttp.NopRequestDecoder,
			api.EncodeResponse,
			opts...,
		), "aggregate").ServeHTTP)
		r.Post("/distribute", otelhttp.NewHandler(kithttp.NewServer(
			distributeEndpoint(svc),
			decodeDistributeReq,
			api.EncodeResponse,
			opts...,
		), "distribute").ServeHTTP)
		r.Get("/distribute/stream", otelhttp.NewHandler(
			distributeStreamHandler(svc, logger, encodeError),
			"distribute-stream",
		).ServeHTTP)
		r.Get("/download", otelhttp.NewHandler(kithttp.NewServer(
			downloadEndpoint(svc),
			kithttp.NopRequestDecoder,
			encodeDownloadResponse,
			opts...,
		), "download").ServeHTTP)
		r.Get("/status", otelhttp.NewHandler(kithttp.NewServer(
			modelStatusEndpoint(svc),
			kithttp.NopRequestDecoder,
			api.EncodeResponse,
			opts...,
		), "model-status").ServeHTTP)
	})

	mux.Route("/clients", func(r chi.Router) {
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			statusEndpoint(svc),
			kithttp.NopRequestDecoder,
			api.EncodeResponse,
			opts...,
		), "status").ServeHTTP)
		r.Route("/{clientID}", func(r chi.Router) {
			r.Post("/train", otelhttp.NewHandler(kithttp.NewServer(
				trainClientEndpoint(svc),
				decodeTrainReq,
				api.EncodeResponse,
				opts...,
			), "train-client").ServeHTTP)
			r.Post("/ack", otelhttp.NewHandler(kithttp.NewServer(
				acknowledgeEndpoint(svc),
				decodeEntityReq(clientIDKey),
				api.EncodeResponse,
				opts...,
			), "acknowledge").ServeHTTP)
		})
	})

	mux.Route("/rounds", func(r chi.Router) {
		r.Post("/", otelhttp.NewHandler(kithttp.NewServer(
			runRoundEndpoint(svc),
			decodeRoundReq,
			api.EncodeResponse,
			opts...,
		), "run-round").ServeHTTP)
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			historyEndpoint(svc),
			kithttp.NopRequestDecoder,
			api.EncodeResponse,
			opts...,
		), "history").ServeHTTP)
	})

	mux.Get("/health", supermq.Health("coordinator", instanceID))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func decodeEntityReq(key string) kithttp.DecodeRequestFunc {
	return func(_ context.Context, r *http.Request) (any, error) {
		return entityReq{
			id: chi.URLParam(r, key),
		}, nil
	}
}

func decodeTrainReq(_ context.Context, r *http.Request) (any, error) {
	s, err := apiutil.ReadNumQuery[uint64](r, api.SamplesKey, api.DefSamples)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	return trainReq{
		clientID: chi.URLParam(r, clientIDKey),
		samples:  s,
	}, nil
}

func decodeDistributeReq(_ context.Context, r *http.Request) (any, error) {
	return readDistributeReq(r), nil
}

func readDistributeReq(r *http.Request) distributeReq {
	q := r.URL.Query()

	return distributeReq{
		modelName: strings.TrimSpace(q.Get(api.ModelNameKey)),
		clientIDs: splitClients(q.Get(api.ClientsKey)),
	}
}

func decodeRoundReq(_ context.Context, r *http.Request) (any, error) {
	s, err := apiutil.ReadNumQuery[uint64](r, api.RoundSamplesKey, api.DefSamples)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	distribute := false
	if v := r.URL.Query().Get(api.DistributeKey); v != "" {
		distribute, err = strconv.ParseBool(v)
		if err != nil {
			return nil, errors.Join(apiutil.ErrValidation, err)
		}
	}

	return roundReq{
		samples:    s,
		distribute: distribute,
	}, nil
}

// splitClients parses a comma-separated client list, dropping blanks.
func splitClients(raw string) []string {
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}

	return ids
}

func encodeDownloadResponse(_ context.Context, w http.ResponseWriter, response any) error {
	res, ok := response.(downloadRes)
	if !ok {
		return errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
	}
	defer res.Content.Close()

	w.Header().Set("Content-Type", api.OctetStreamType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Name))
	w.Header().Set("Content-Length", strconv.FormatInt(res.Size, 10))
	w.WriteHeader(http.StatusOK)

	_, err := io.Copy(w, res.Content)

	return err
}
