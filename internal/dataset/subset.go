package dataset

import (
	"math/rand"
	"slices"

	"github.com/pkg/errors"
)

// SubsetStore exposes a selection of another store's samples, renumbered 0..len-1.
type SubsetStore struct {
	src     Store
	indices []int
}

// Subset returns a view of src restricted to indices, in the given order.
func Subset(src Store, indices []int) (*SubsetStore, error) {
	n := src.Len()
	for _, ix := range indices {
		if err := checkIndex(ix, n); err != nil {
			return nil, errors.Wrap(err, "dataset: subset")
		}
	}
	return &SubsetStore{src: src, indices: slices.Clone(indices)}, nil
}

// Take returns the first n samples of src, or all of them if n exceeds its length.
func Take(src Store, n int) (*SubsetStore, error) {
	if n < 0 {
		return nil, errors.Errorf("dataset: take %d samples", n)
	}
	n = min(n, src.Len())
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	return &SubsetStore{src: src, indices: indices}, nil
}

// Split partitions src into disjoint train and validation views. The
// validation view gets round(fraction*Len) samples drawn by a seeded shuffle.
func Split(src Store, fraction float64, seed int64) (train, valid *SubsetStore, err error) {
	if fraction < 0 || fraction >= 1 {
		return nil, nil, errors.Errorf("dataset: split fraction %.3f outside [0,1)", fraction)
	}
	n := src.Len()
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	nvalid := int(fraction*float64(n) + 0.5)
	if n > 0 && nvalid >= n {
		nvalid = n - 1
	}
	validIdx := slices.Clone(perm[:nvalid])
	trainIdx := slices.Clone(perm[nvalid:])
	// keep each view in source order so an unshuffled pass is stable
	slices.Sort(validIdx)
	slices.Sort(trainIdx)
	return &SubsetStore{src: src, indices: trainIdx}, &SubsetStore{src: src, indices: validIdx}, nil
}

// Len returns the number of selected samples.
func (s *SubsetStore) Len() int { return len(s.indices) }

// Get returns the i-th selected sample.
func (s *SubsetStore) Get(i int) (Sample, error) {
	if err := checkIndex(i, len(s.indices)); err != nil {
		return Sample{}, err
	}
	return s.src.Get(s.indices[i])
}

// Indices returns the source positions backing the view.
func (s *SubsetStore) Indices() []int { return slices.Clone(s.indices) }
