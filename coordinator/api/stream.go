package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/absmach/flcoord/coordinator"
	"github.com/absmach/flcoord/pkg/api"
	"github.com/absmach/flcoord/pkg/distributor"
	apiutil "github.com/absmach/supermq/api/http/util"
	kithttp "github.com/go-kit/kit/transport/http"
)

// eventWriter frames distribution events as server-sent events. Headers are
// written with the first event so that failures before it can still be
// reported with a regular error response.
type eventWriter struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	started bool
}

func newEventWriter(w http.ResponseWriter) *eventWriter {
	return &eventWriter{w: w, rc: http.NewResponseController(w)}
}

func (ew *eventWriter) send(ev distributor.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	if !ew.started {
		h := ew.w.Header()
		h.Set("Content-Type", api.EventStreamType)
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		ew.w.WriteHeader(http.StatusOK)
		ew.started = true
	}

	if ev.Kind == distributor.KindDone {
		if _, err := ew.w.Write([]byte("event: done\n")); err != nil {
			return err
		}
	}
	if _, err := ew.w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := ew.w.Write(data); err != nil {
		return err
	}
	if _, err := ew.w.Write([]byte("\n\n")); err != nil {
		return err
	}

	if err := ew.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}

	return nil
}

func distributeStreamHandler(svc coordinator.Service, logger *slog.Logger, encodeError kithttp.ErrorEncoder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		req := readDistributeReq(r)
		if err := req.validate(); err != nil {
			encodeError(ctx, errors.Join(apiutil.ErrValidation, err), w)

			return
		}

		ew := newEventWriter(w)
		err := svc.DistributeStream(ctx, req.modelName, req.clientIDs, ew.send)
		switch {
		case err == nil:
		case !ew.started:
			encodeError(ctx, err, w)
		default:
			logger.Debug("distribution stream ended early", slog.Any("error", err))
		}
	}
}
