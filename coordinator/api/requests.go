package api

import (
	"github.com/absmach/flcoord/pkg/artifact"
	pkgerrors "github.com/absmach/flcoord/pkg/errors"
	apiutil "github.com/absmach/supermq/api/http/util"
)

type entityReq struct {
	id string
}

func (e *entityReq) validate() error {
	if e.id == "" {
		return apiutil.ErrMissingID
	}

	return nil
}

type trainReq struct {
	clientID string
	samples  uint64
}

func (t *trainReq) validate() error {
	if t.clientID == "" {
		return apiutil.ErrMissingID
	}
	if t.samples == 0 {
		return pkgerrors.ErrInvalidSamples
	}

	return nil
}

type distributeReq struct {
	modelName string
	clientIDs []string
}

// An empty model name selects the updated global artifact and an empty
// client list selects every configured client.
func (d *distributeReq) validate() error {
	if d.modelName == "" {
		return nil
	}

	return artifact.ValidateName(d.modelName)
}

type roundReq struct {
	samples    uint64
	distribute bool
}

func (r *roundReq) validate() error {
	if r.samples == 0 {
		return pkgerrors.ErrInvalidSamples
	}

	return nil
}
