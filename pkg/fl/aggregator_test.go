package fl_test

import (
	"errors"
	"fmt"
	"testing"

	pkgerrors "github.com/absmach/flcoord/pkg/errors"
	"github.com/absmach/flcoord/pkg/fl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tolerance = 1e-12

func tensor(t *testing.T, shape []int, data ...float64) fl.Tensor {
	t.Helper()
	ts, err := fl.NewTensor(shape, data)
	require.NoError(t, err)

	return ts
}

func TestAverage(t *testing.T) {
	a := fl.WeightSet{
		tensor(t, []int{2, 2}, 1, 2, 3, 4),
		tensor(t, []int{2}, 10, 20),
	}
	b := fl.WeightSet{
		tensor(t, []int{2, 2}, 3, 4, 5, 6),
		tensor(t, []int{2}, 30, 40),
	}
	c := fl.WeightSet{
		tensor(t, []int{2, 2}, 5, 6, 7, 8),
		tensor(t, []int{2}, 50, 60),
	}

	cases := []struct {
		desc string
		sets []fl.WeightSet
		want fl.WeightSet
		err  error
	}{
		{
			desc: "average three compatible sets",
			sets: []fl.WeightSet{a, b, c},
			want: fl.WeightSet{
				tensor(t, []int{2, 2}, 3, 4, 5, 6),
				tensor(t, []int{2}, 30, 40),
			},
		},
		{
			desc: "single set is returned unchanged",
			sets: []fl.WeightSet{a},
			want: a,
		},
		{
			desc: "empty input",
			sets: nil,
			err:  fl.ErrEmptyInput,
		},
		{
			desc: "differing tensor count",
			sets: []fl.WeightSet{a, {tensor(t, []int{2, 2}, 1, 1, 1, 1)}},
			err:  fl.ErrShapeMismatch,
		},
		{
			desc: "differing shape at second position",
			sets: []fl.WeightSet{a, {tensor(t, []int{2, 2}, 1, 1, 1, 1), tensor(t, []int{1, 2}, 1, 1)}},
			err:  fl.ErrShapeMismatch,
		},
		{
			desc: "same element count but transposed shape",
			sets: []fl.WeightSet{a, {tensor(t, []int{4}, 1, 1, 1, 1), tensor(t, []int{2}, 1, 1)}},
			err:  fl.ErrShapeMismatch,
		},
		{
			desc: "tensor data does not fill its shape",
			sets: []fl.WeightSet{a, {fl.Tensor{Shape: []int{2, 2}, Data: []float64{1}}, tensor(t, []int{2}, 1, 1)}},
			err:  fl.ErrInvalidTensor,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			got, err := fl.Average(tc.sets)
			assert.True(t, errors.Is(err, tc.err), fmt.Sprintf("%s: expected error %v, got %v", tc.desc, tc.err, err))
			if tc.err != nil {
				assert.Nil(t, got)
				assert.True(t, errors.Is(err, pkgerrors.ErrValidation))

				return
			}
			require.Len(t, got, len(tc.want))
			for i := range tc.want {
				assert.Equal(t, tc.want[i].Shape, got[i].Shape)
				assert.InDeltaSlice(t, tc.want[i].Data, got[i].Data, tolerance)
			}
			for _, in := range tc.sets {
				assert.True(t, got.Compatible(in))
			}
		})
	}
}

func TestAverageIsUnweighted(t *testing.T) {
	// Client sample counts would be 10 and 990; the mean must ignore them.
	small := fl.WeightSet{tensor(t, []int{1}, 0)}
	large := fl.WeightSet{tensor(t, []int{1}, 100)}

	got, err := fl.NewFedAvgAggregator().Aggregate([]fl.WeightSet{small, large})
	require.NoError(t, err)
	assert.InDelta(t, 50.0, got[0].Data[0], tolerance)
}

func TestAverageDoesNotAliasInput(t *testing.T) {
	in := fl.WeightSet{tensor(t, []int{3}, 1, 2, 3)}

	got, err := fl.Average([]fl.WeightSet{in})
	require.NoError(t, err)

	got[0].Data[0] = 42
	assert.Equal(t, 1.0, in[0].Data[0])
}

func TestAverageScalarTensors(t *testing.T) {
	a := fl.WeightSet{tensor(t, nil, 1)}
	b := fl.WeightSet{tensor(t, []int{}, 2)}

	got, err := fl.Average([]fl.WeightSet{a, b})
	require.NoError(t, err)
	assert.InDelta(t, 1.5, got[0].Data[0], tolerance)
}

func TestWeightSetCompatible(t *testing.T) {
	a := fl.WeightSet{fl.Zeros(3, 3, 1, 8), fl.Zeros(8)}

	cases := []struct {
		desc string
		b    fl.WeightSet
		want bool
	}{
		{desc: "identical shapes", b: fl.WeightSet{fl.Zeros(3, 3, 1, 8), fl.Zeros(8)}, want: true},
		{desc: "fewer tensors", b: fl.WeightSet{fl.Zeros(3, 3, 1, 8)}, want: false},
		{desc: "different bias length", b: fl.WeightSet{fl.Zeros(3, 3, 1, 8), fl.Zeros(16)}, want: false},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.want, a.Compatible(tc.b))
			assert.Equal(t, tc.want, tc.b.Compatible(a))
		})
	}
}
