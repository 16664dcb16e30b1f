package fl

import "fmt"

type Aggregator interface {
	Aggregate(sets []WeightSet) (WeightSet, error)
}

// FedAvgAggregator averages client weight sets with uniform client weighting:
// every client contributes equally regardless of how many samples it saw.
type FedAvgAggregator struct{}

func NewFedAvgAggregator() Aggregator {
	return &FedAvgAggregator{}
}

func (f *FedAvgAggregator) Aggregate(sets []WeightSet) (WeightSet, error) {
	return Average(sets)
}

// Average returns the element-wise arithmetic mean of the given weight sets.
// All inputs are checked for compatibility before any arithmetic. Values are
// summed in input order and divided by the count once at the end.
func Average(sets []WeightSet) (WeightSet, error) {
	if len(sets) == 0 {
		return nil, ErrEmptyInput
	}

	ref := sets[0]
	for i, ws := range sets {
		if err := ws.Validate(); err != nil {
			return nil, fmt.Errorf("weight set %d: %w", i, err)
		}
		if !ref.Compatible(ws) {
			return nil, fmt.Errorf("%w: weight set %d has shapes %v, want %v", ErrShapeMismatch, i, ws.Shapes(), ref.Shapes())
		}
	}

	count := float64(len(sets))
	out := make(WeightSet, len(ref))
	for i := range ref {
		sum := make([]float64, len(ref[i].Data))
		for _, ws := range sets {
			for j, v := range ws[i].Data {
				sum[j] += v
			}
		}
		for j := range sum {
			sum[j] /= count
		}
		out[i] = Tensor{
			Shape: append([]int(nil), ref[i].Shape...),
			Data:  sum,
		}
	}

	return out, nil
}
