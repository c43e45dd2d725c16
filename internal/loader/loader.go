// Package loader groups the samples of a dataset.Store into batches, optionally
// visiting them in a fresh random order on every pass.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"finetune-forge/internal/dataset"
	"finetune-forge/internal/tensor"
)

// ErrInvalidConfig is matched by every ConfigError.
var ErrInvalidConfig = errors.New("loader: invalid configuration")

// ConfigError reports a loader option that cannot produce batches.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("loader: invalid %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// Options configures batching.
type Options struct {
	BatchSize int
	Shuffle   bool
	// DropLast discards a trailing batch smaller than BatchSize.
	DropLast bool
	// Seed feeds the shuffle source; zero picks a time based seed.
	Seed int64
	// Workers bounds concurrent Get calls while one batch is assembled.
	Workers int
}

// Batch is a group of consecutive samples from one pass.
type Batch struct {
	// Indices are the store positions the batch was built from, in order.
	Indices []int
	// Inputs stacks the feature tensors along a new leading axis.
	Inputs tensor.Tensor
	Labels []int
}

// Size returns the number of samples in the batch.
func (b Batch) Size() int { return len(b.Labels) }

// Loader produces passes over a store. It is not safe for concurrent use.
type Loader struct {
	store dataset.Store
	opts  Options
	size  int
	rng   *rand.Rand
}

// New validates opts against store. The store's length is read once here.
func New(store dataset.Store, opts Options) (*Loader, error) {
	if opts.BatchSize <= 0 {
		return nil, &ConfigError{Field: "batch size", Reason: fmt.Sprintf("must be > 0 (got %d)", opts.BatchSize)}
	}
	if store == nil {
		return nil, &ConfigError{Field: "store", Reason: "nil"}
	}
	size := store.Len()
	if size == 0 {
		return nil, &ConfigError{Field: "store", Reason: "empty"}
	}
	if opts.DropLast && size < opts.BatchSize {
		return nil, &ConfigError{Field: "batch size", Reason: fmt.Sprintf("%d exceeds store size %d with drop last", opts.BatchSize, size)}
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	return &Loader{
		store: store,
		opts:  opts,
		size:  size,
		rng:   rand.New(rand.NewSource(opts.Seed)),
	}, nil
}

// Len returns the number of batches in one pass.
func (l *Loader) Len() int {
	if l.opts.DropLast {
		return l.size / l.opts.BatchSize
	}
	return (l.size + l.opts.BatchSize - 1) / l.opts.BatchSize
}

// Samples returns the number of samples visited in one pass.
func (l *Loader) Samples() int {
	if l.opts.DropLast {
		return l.Len() * l.opts.BatchSize
	}
	return l.size
}

// Options returns the effective options.
func (l *Loader) Options() Options { return l.opts }

// Pass starts a new traversal. With Shuffle set every call draws an
// independent permutation.
func (l *Loader) Pass() *Pass {
	order := make([]int, l.size)
	for i := range order {
		order[i] = i
	}
	if l.opts.Shuffle {
		l.rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}
	return &Pass{loader: l, order: order[:l.Samples()]}
}

// Batches is shorthand for Pass().All(ctx).
func (l *Loader) Batches(ctx context.Context) iter.Seq2[Batch, error] {
	return l.Pass().All(ctx)
}

// Pass is one traversal of the store.
type Pass struct {
	loader *Loader
	order  []int
	next   int
}

// Order returns the index order of this pass.
func (p *Pass) Order() []int {
	return append([]int(nil), p.order...)
}

// Next assembles the next batch. It returns io.EOF once the pass is exhausted.
func (p *Pass) Next(ctx context.Context) (Batch, error) {
	if err := ctx.Err(); err != nil {
		return Batch{}, err
	}
	if p.next >= len(p.order) {
		return Batch{}, io.EOF
	}
	end := min(p.next+p.loader.opts.BatchSize, len(p.order))
	indices := p.order[p.next:end:end]
	batch, err := p.loader.assemble(ctx, indices)
	if err != nil {
		return Batch{}, err
	}
	p.next = end
	return batch, nil
}

// All yields the remaining batches of the pass. Iteration stops after the
// first error, which is yielded alongside an empty batch.
func (p *Pass) All(ctx context.Context) iter.Seq2[Batch, error] {
	return func(yield func(Batch, error) bool) {
		for {
			b, err := p.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(b, err) || err != nil {
				return
			}
		}
	}
}

func (l *Loader) assemble(ctx context.Context, indices []int) (Batch, error) {
	samples := make([]dataset.Sample, len(indices))
	if l.opts.Workers == 1 {
		for i, ix := range indices {
			s, err := l.store.Get(ix)
			if err != nil {
				return Batch{}, fmt.Errorf("loader: sample %d: %w", ix, err)
			}
			samples[i] = s
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(l.opts.Workers)
		for i, ix := range indices {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				s, err := l.store.Get(ix)
				if err != nil {
					return fmt.Errorf("loader: sample %d: %w", ix, err)
				}
				samples[i] = s
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return Batch{}, err
		}
	}

	features := make([]tensor.Tensor, len(samples))
	labels := make([]int, len(samples))
	for i, s := range samples {
		features[i] = s.Features
		labels[i] = s.Label
	}
	inputs, err := tensor.Stack(features)
	if err != nil {
		return Batch{}, fmt.Errorf("loader: batch at %d: %w", indices[0], err)
	}
	return Batch{
		Indices: append([]int(nil), indices...),
		Inputs:  inputs,
		Labels:  labels,
	}, nil
}
