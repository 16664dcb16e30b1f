package fl

import (
	"fmt"

	pkgerrors "github.com/absmach/flcoord/pkg/errors"
)

var (
	ErrEmptyInput    = fmt.Errorf("%w: no weight sets to average", pkgerrors.ErrValidation)
	ErrShapeMismatch = fmt.Errorf("%w: weight sets are not compatible", pkgerrors.ErrValidation)
	ErrInvalidTensor = fmt.Errorf("%w: tensor data does not match its shape", pkgerrors.ErrValidation)
)
