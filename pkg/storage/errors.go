package storage

import (
	"errors"
	"fmt"

	pkgerrors "github.com/absmach/flcoord/pkg/errors"
)

var (
	ErrNotFound        = fmt.Errorf("snapshot %w", pkgerrors.ErrNotFound)
	ErrUnsupportedType = errors.New("unsupported storage type")
	ErrInvalidKey      = errors.New("invalid snapshot key")
)
