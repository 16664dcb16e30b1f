package artifact

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	pkgerrors "github.com/absmach/flcoord/pkg/errors"
	"github.com/absmach/flcoord/pkg/fl"
	"github.com/fxamacker/cbor/v2"
)

const (
	format  = "flcoord.weights"
	version = 1
)

var errUnsupportedFormat = errors.New("unsupported artifact format")

// Model is what a model artifact carries: its weight set and whether it
// has been trained on client data.
type Model struct {
	Weights   fl.WeightSet
	Trained   bool
	CreatedAt time.Time
}

// Codec loads and saves model artifacts and constructs the initial global model.
type Codec interface {
	Load(path string) (Model, error)
	Save(path string, m Model) error
	Default() (Model, error)
}

type envelope struct {
	Format    string       `cbor:"format"`
	Version   int          `cbor:"version"`
	Trained   bool         `cbor:"trained"`
	CreatedAt time.Time    `cbor:"created_at"`
	Weights   fl.WeightSet `cbor:"weights"`
}

type cborCodec struct {
	shapes [][]int
	seed   uint64
	enc    cbor.EncMode
}

// NewCBORCodec returns a codec storing artifacts as CBOR documents. The
// default model has one tensor per entry in shapes: rank-1 tensors start at
// zero, higher ranks use Glorot-uniform values drawn from seed.
func NewCBORCodec(shapes [][]int, seed uint64) (Codec, error) {
	enc, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		return nil, err
	}

	return &cborCodec{
		shapes: shapes,
		seed:   seed,
		enc:    enc,
	}, nil
}

func (c *cborCodec) Load(path string) (Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Model{}, fmt.Errorf("%w: %s", pkgerrors.ErrArtifactNotFound, filepath.Base(path))
		}

		return Model{}, pkgerrors.Wrap(pkgerrors.ErrIO, err)
	}

	var env envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return Model{}, pkgerrors.Wrap(pkgerrors.ErrIO, fmt.Errorf("decode %s: %w", filepath.Base(path), err))
	}
	if env.Format != format || env.Version != version {
		return Model{}, pkgerrors.Wrap(pkgerrors.ErrIO, fmt.Errorf("%w: %s v%d", errUnsupportedFormat, env.Format, env.Version))
	}
	if err := env.Weights.Validate(); err != nil {
		return Model{}, err
	}

	return Model{
		Weights:   env.Weights,
		Trained:   env.Trained,
		CreatedAt: env.CreatedAt,
	}, nil
}

func (c *cborCodec) Save(path string, m Model) error {
	if err := m.Weights.Validate(); err != nil {
		return err
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	data, err := c.enc.Marshal(envelope{
		Format:    format,
		Version:   version,
		Trained:   m.Trained,
		CreatedAt: m.CreatedAt,
		Weights:   m.Weights,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.ErrIO, err)
	}

	return WriteFileAtomic(path, data)
}

func (c *cborCodec) Default() (Model, error) {
	rng := rand.New(rand.NewPCG(c.seed, c.seed^0x9e3779b97f4a7c15))
	ws := make(fl.WeightSet, len(c.shapes))
	for i, shape := range c.shapes {
		t := fl.Zeros(shape...)
		if len(shape) >= 2 {
			fanIn, fanOut := fans(shape)
			limit := math.Sqrt(6 / float64(fanIn+fanOut))
			for j := range t.Data {
				t.Data[j] = (rng.Float64()*2 - 1) * limit
			}
		}
		ws[i] = t
	}

	return Model{Weights: ws, CreatedAt: time.Now().UTC()}, nil
}

// fans follows the kernel layout [receptive..., in, out].
func fans(shape []int) (int, int) {
	rf := 1
	for _, d := range shape[:len(shape)-2] {
		rf *= d
	}

	return rf * shape[len(shape)-2], rf * shape[len(shape)-1]
}

// WriteFileAtomic writes data to a temp file next to path and renames it into
// place, so readers see either the old or the new content.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return pkgerrors.Wrap(pkgerrors.ErrIO, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.ErrIO, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()

		return pkgerrors.Wrap(pkgerrors.ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		return pkgerrors.Wrap(pkgerrors.ErrIO, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return pkgerrors.Wrap(pkgerrors.ErrIO, err)
	}

	return nil
}
