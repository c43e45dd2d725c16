package loader

import (
	"context"
	"errors"
	"io"
	"slices"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finetune-forge/internal/dataset"
	"finetune-forge/internal/tensor"
)

func indexStore(t *testing.T, n int) *dataset.Memory {
	t.Helper()
	features := make([]tensor.Tensor, n)
	labels := make([]int, n)
	for i := range features {
		features[i], _ = tensor.FromData([]float64{float64(i), -float64(i)}, 2)
		labels[i] = i
	}
	s, err := dataset.NewMemory(features, labels)
	require.NoError(t, err)
	return s
}

func collect(t *testing.T, p *Pass) []Batch {
	t.Helper()
	var out []Batch
	for b, err := range p.All(context.Background()) {
		require.NoError(t, err)
		out = append(out, b)
	}
	return out
}

func TestSequentialEvenBatches(t *testing.T) {
	l, err := New(indexStore(t, 10), Options{BatchSize: 2})
	require.NoError(t, err)
	require.Equal(t, 5, l.Len())

	batches := collect(t, l.Pass())
	require.Len(t, batches, 5)
	for i, b := range batches {
		want := []int{2 * i, 2*i + 1}
		assert.Equal(t, want, b.Indices)
		assert.Equal(t, want, b.Labels)
		assert.Equal(t, []int{2, 2}, b.Inputs.Shape)
		assert.Equal(t, float64(2*i+1), b.Inputs.At(1, 0))
	}
}

func TestTrailingPartialBatch(t *testing.T) {
	l, err := New(indexStore(t, 9), Options{BatchSize: 2})
	require.NoError(t, err)
	require.Equal(t, 5, l.Len())

	batches := collect(t, l.Pass())
	require.Len(t, batches, 5)
	for _, b := range batches[:4] {
		assert.Equal(t, 2, b.Size())
	}
	assert.Equal(t, 1, batches[4].Size())
	assert.Equal(t, []int{8}, batches[4].Indices)
	assert.Equal(t, []int{1, 2}, batches[4].Inputs.Shape)
}

func TestDropLast(t *testing.T) {
	l, err := New(indexStore(t, 9), Options{BatchSize: 2, DropLast: true, Shuffle: true, Seed: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, l.Len())
	assert.Equal(t, 8, l.Samples())

	batches := collect(t, l.Pass())
	require.Len(t, batches, 4)
	for _, b := range batches {
		assert.Equal(t, 2, b.Size())
	}

	_, err = New(indexStore(t, 3), Options{BatchSize: 4, DropLast: true})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestShuffleDrawsFreshPermutations(t *testing.T) {
	const n = 50
	l, err := New(indexStore(t, n), Options{BatchSize: 4, Shuffle: true, Seed: 99})
	require.NoError(t, err)

	var orders [][]int
	for pass := 0; pass < 2; pass++ {
		var order []int
		for _, b := range collect(t, l.Pass()) {
			order = append(order, b.Indices...)
			assert.Equal(t, b.Indices, b.Labels)
		}
		require.Len(t, order, n)
		sorted := slices.Clone(order)
		slices.Sort(sorted)
		for i, v := range sorted {
			require.Equal(t, i, v, "pass %d is not a bijection", pass)
		}
		orders = append(orders, order)
	}
	assert.NotEqual(t, orders[0], orders[1])
}

func TestShuffleReproducibleBySeed(t *testing.T) {
	a, err := New(indexStore(t, 20), Options{BatchSize: 3, Shuffle: true, Seed: 7})
	require.NoError(t, err)
	b, err := New(indexStore(t, 20), Options{BatchSize: 3, Shuffle: true, Seed: 7})
	require.NoError(t, err)
	assert.Equal(t, a.Pass().Order(), b.Pass().Order())
}

func TestConfigErrors(t *testing.T) {
	_, err := New(indexStore(t, 4), Options{BatchSize: 0})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "batch size", ce.Field)

	_, err = New(indexStore(t, 4), Options{BatchSize: -3})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	empty, err := dataset.NewMemory(nil, nil)
	require.NoError(t, err)
	_, err = New(empty, Options{BatchSize: 2})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(nil, Options{BatchSize: 2})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestOptionsDefaults(t *testing.T) {
	l, err := New(indexStore(t, 3), Options{BatchSize: 2})
	require.NoError(t, err)
	opts := l.Options()
	assert.Equal(t, 1, opts.Workers)
	assert.NotZero(t, opts.Seed)

	l, err = New(indexStore(t, 3), Options{BatchSize: 2, Seed: 7, Workers: 3})
	require.NoError(t, err)
	assert.Equal(t, Options{BatchSize: 2, Seed: 7, Workers: 3}, l.Options())
}

func TestNextReturnsEOF(t *testing.T) {
	l, err := New(indexStore(t, 3), Options{BatchSize: 5})
	require.NoError(t, err)
	p := l.Pass()
	b, err := p.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, b.Size())
	_, err = p.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
	_, err = p.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestNextHonorsContext(t *testing.T) {
	l, err := New(indexStore(t, 3), Options{BatchSize: 1})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Pass().Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

type countingStore struct {
	dataset.Store
	lenCalls atomic.Int32
	failAt   int
}

func (c *countingStore) Len() int {
	c.lenCalls.Add(1)
	return c.Store.Len()
}

func (c *countingStore) Get(i int) (dataset.Sample, error) {
	if i == c.failAt {
		return dataset.Sample{}, errors.New("boom")
	}
	return c.Store.Get(i)
}

func TestLenQueriedOnce(t *testing.T) {
	cs := &countingStore{Store: indexStore(t, 6), failAt: -1}
	l, err := New(cs, Options{BatchSize: 2})
	require.NoError(t, err)
	collect(t, l.Pass())
	collect(t, l.Pass())
	assert.Equal(t, int32(1), cs.lenCalls.Load())
}

func TestGetErrorIsFatal(t *testing.T) {
	for _, workers := range []int{1, 4} {
		cs := &countingStore{Store: indexStore(t, 6), failAt: 3}
		l, err := New(cs, Options{BatchSize: 2, Workers: workers})
		require.NoError(t, err)

		var got int
		var lastErr error
		for b, err := range l.Batches(context.Background()) {
			if err != nil {
				lastErr = err
				continue
			}
			got += b.Size()
		}
		assert.Equal(t, 2, got, "workers=%d", workers)
		assert.EqualError(t, lastErr, "loader: sample 3: boom")
	}
}

func TestParallelAssemblyKeepsOrder(t *testing.T) {
	l, err := New(indexStore(t, 17), Options{BatchSize: 5, Workers: 4})
	require.NoError(t, err)
	var labels []int
	for _, b := range collect(t, l.Pass()) {
		labels = append(labels, b.Labels...)
		for i, ix := range b.Indices {
			assert.Equal(t, float64(ix), b.Inputs.At(i, 0))
		}
	}
	assert.Len(t, labels, 17)
	assert.True(t, slices.IsSorted(labels))
}

func TestShapeMismatchSurfaces(t *testing.T) {
	a := tensor.New(2)
	b := tensor.New(3)
	s, err := dataset.NewMemory([]tensor.Tensor{a, b}, []int{0, 1})
	require.NoError(t, err)
	l, err := New(s, Options{BatchSize: 2})
	require.NoError(t, err)
	_, err = l.Pass().Next(context.Background())
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
}
