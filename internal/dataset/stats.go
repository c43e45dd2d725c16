package dataset

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// ChannelStats returns the per-channel mean and population standard
// deviation of every CHW feature tensor in s.
func ChannelStats(s Store) (mean, std []float64, err error) {
	n := s.Len()
	if n == 0 {
		return nil, nil, errors.New("dataset: stats of empty store")
	}
	var sum, sumSq []float64
	var count float64
	for i := 0; i < n; i++ {
		sample, err := s.Get(i)
		if err != nil {
			return nil, nil, err
		}
		f := sample.Features
		if f.Dims() != 3 {
			return nil, nil, errors.Errorf("dataset: stats sample %d has shape %v, want CHW", i, f.Shape)
		}
		if sum == nil {
			sum = make([]float64, f.Shape[0])
			sumSq = make([]float64, f.Shape[0])
		}
		if f.Shape[0] != len(sum) {
			return nil, nil, errors.Errorf("dataset: stats sample %d has %d channels, want %d", i, f.Shape[0], len(sum))
		}
		plane := f.Shape[1] * f.Shape[2]
		for c := range sum {
			ch := f.Data[c*plane : (c+1)*plane]
			sum[c] += floats.Sum(ch)
			sumSq[c] += floats.Dot(ch, ch)
		}
		count += float64(plane)
	}
	mean = make([]float64, len(sum))
	std = make([]float64, len(sum))
	for c := range sum {
		mean[c] = sum[c] / count
		std[c] = math.Sqrt(math.Max(sumSq[c]/count-mean[c]*mean[c], 0))
	}
	return mean, std, nil
}
