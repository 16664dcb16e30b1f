package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	pkgerrors "github.com/absmach/flcoord/pkg/errors"
	"github.com/absmach/flcoord/pkg/trainer"
	"github.com/absmach/supermq"
	apiutil "github.com/absmach/supermq/api/http/util"
)

const (
	ContentType     = "application/json"
	OctetStreamType = "application/octet-stream"
	EventStreamType = "text/event-stream"

	DefSamples      = 400
	SamplesKey      = "samples"
	RoundSamplesKey = "samples_per_client"
	DistributeKey   = "distribute"
	ModelNameKey    = "model_name"
	ClientsKey      = "clients"
)

type errorResponse struct {
	Error    string `json:"error"`
	ClientID string `json:"client_id,omitempty"`
	ExitCode *int   `json:"exit_code,omitempty"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
}

func EncodeResponse(_ context.Context, w http.ResponseWriter, response any) error {
	if ar, ok := response.(supermq.Response); ok {
		for k, v := range ar.Headers() {
			w.Header().Set(k, v)
		}
		w.Header().Set("Content-Type", ContentType)
		w.WriteHeader(ar.Code())

		if ar.Empty() {
			return nil
		}
	}

	return json.NewEncoder(w).Encode(response)
}

func EncodeError(_ context.Context, err error, w http.ResponseWriter) {
	w.Header().Set("Content-Type", ContentType)

	body := errorResponse{Error: err.Error()}

	var terr *trainer.TrainerError
	switch {
	case errors.As(err, &terr):
		body.ClientID = terr.ClientID
		body.ExitCode = &terr.ExitCode
		body.Stdout = terr.Stdout
		body.Stderr = terr.Stderr
		w.WriteHeader(http.StatusBadGateway)
	case errors.Is(err, pkgerrors.ErrAggregationFailed):
		w.WriteHeader(http.StatusUnprocessableEntity)
	case errors.Is(err, pkgerrors.ErrNotFound):
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, pkgerrors.ErrValidation),
		errors.Is(err, apiutil.ErrValidation),
		errors.Is(err, pkgerrors.ErrEmptyKey):
		w.WriteHeader(http.StatusBadRequest)
	case errors.Is(err, pkgerrors.ErrExternalProcess):
		w.WriteHeader(http.StatusBadGateway)
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}

	_ = json.NewEncoder(w).Encode(body)
}
