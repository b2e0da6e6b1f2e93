// Package dataset implements the input pipeline: loading examples from
// npz archives and slicing them into shuffled mini-batches.
package dataset

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/fengrk/pymltools/internal/tensor"
	"github.com/sbinet/npyio/npz"
)

// Dataset holds an in-memory set of examples: a float feature matrix,
// integer class labels and a filename per example. Labels may be nil for
// prediction-only data.
type Dataset struct {
	X         []float32 // [N * Dim], row-major
	Labels    []int64   // [N], nil when unlabeled
	Filenames []string  // [N]
	Dim       int
}

// Len returns the number of examples.
func (d *Dataset) Len() int {
	if d.Dim == 0 {
		return 0
	}
	return len(d.X) / d.Dim
}

// New builds a dataset from raw slices, synthesising filenames when none
// are given.
func New(x []float32, labels []int64, filenames []string, dim int) (*Dataset, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("dataset: dimension must be positive, got %d", dim)
	}
	if len(x)%dim != 0 {
		return nil, fmt.Errorf("dataset: %d values do not divide into rows of %d", len(x), dim)
	}
	n := len(x) / dim
	if labels != nil && len(labels) != n {
		return nil, fmt.Errorf("dataset: %d labels for %d examples", len(labels), n)
	}
	if filenames == nil {
		filenames = syntheticFilenames(n)
	} else if len(filenames) != n {
		return nil, fmt.Errorf("dataset: %d filenames for %d examples", len(filenames), n)
	}
	return &Dataset{X: x, Labels: labels, Filenames: filenames, Dim: dim}, nil
}

// FromNPZ loads a dataset from an npz archive.
//
// The archive must contain "x.npy" with shape [N, ...] (trailing axes
// flatten into the feature dimension) holding float32 or uint8 values;
// uint8 scales to [0, 1]. An optional "y.npy" holds labels as int64 or
// uint8. Filenames are synthesised since npz archives carry none.
func FromNPZ(path string) (*Dataset, error) {
	r, err := npz.Open(path)
	if err != nil {
		return nil, fmt.Errorf("while opening data file: %w", err)
	}
	defer r.Close()

	x, dim, err := loadFeatures(r)
	if err != nil {
		return nil, fmt.Errorf("while reading x.npy: %w", err)
	}

	var labels []int64
	if hasEntry(r, "y.npy") {
		labels, err = loadLabels(r)
		if err != nil {
			return nil, fmt.Errorf("while reading y.npy: %w", err)
		}
	}

	return New(x, labels, nil, dim)
}

func hasEntry(r *npz.Reader, name string) bool {
	for _, k := range r.Keys() {
		if k == name {
			return true
		}
	}
	return false
}

func loadFeatures(r *npz.Reader) ([]float32, int, error) {
	header := r.Header("x.npy")
	shape := header.Descr.Shape
	if len(shape) < 2 {
		return nil, 0, fmt.Errorf("x.npy must be at least 2D, got shape %v", shape)
	}
	dim := 1
	for _, s := range shape[1:] {
		dim *= s
	}

	// numpy type descriptors: "<f4" float32, "|u1" uint8.
	switch {
	case strings.HasSuffix(header.Descr.Type, "f4"):
		var x []float32
		if err := r.Read("x.npy", &x); err != nil {
			return nil, 0, err
		}
		return x, dim, nil

	case strings.HasSuffix(header.Descr.Type, "u1"):
		var raw []uint8
		if err := r.Read("x.npy", &raw); err != nil {
			return nil, 0, err
		}
		x := make([]float32, len(raw))
		for i, v := range raw {
			x[i] = float32(v) / 255
		}
		return x, dim, nil

	default:
		return nil, 0, fmt.Errorf("unsupported x.npy dtype %q", header.Descr.Type)
	}
}

func loadLabels(r *npz.Reader) ([]int64, error) {
	header := r.Header("y.npy")

	switch {
	case strings.HasSuffix(header.Descr.Type, "i8"):
		var y []int64
		if err := r.Read("y.npy", &y); err != nil {
			return nil, err
		}
		return y, nil

	case strings.HasSuffix(header.Descr.Type, "u1"):
		var raw []uint8
		if err := r.Read("y.npy", &raw); err != nil {
			return nil, err
		}
		y := make([]int64, len(raw))
		for i, v := range raw {
			y[i] = int64(v)
		}
		return y, nil

	default:
		return nil, fmt.Errorf("unsupported y.npy dtype %q", header.Descr.Type)
	}
}

func syntheticFilenames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("sample-%06d", i)
	}
	return names
}

// Batch is one mini-batch ready for the model: features as a
// [batch, dim] float32 tensor and labels as a [batch] int64 tensor
// (nil when the dataset is unlabeled).
type Batch struct {
	X         *tensor.RawTensor
	Labels    *tensor.RawTensor
	Filenames []string
}

// BatchConfig controls batch iteration.
type BatchConfig struct {
	BatchSize int
	Shuffle   bool  // Shuffle example order each pass
	DropTail  bool  // Drop the final ragged batch (training)
	Seed      int64 // Shuffle seed
}

// Batches returns an iterator over one pass of the dataset.
func (d *Dataset) Batches(cfg BatchConfig) *Iterator {
	if cfg.BatchSize <= 0 {
		panic(fmt.Sprintf("dataset: batch size must be positive, got %d", cfg.BatchSize))
	}

	order := make([]int, d.Len())
	for i := range order {
		order[i] = i
	}
	if cfg.Shuffle {
		rng := rand.New(rand.NewSource(cfg.Seed))
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}

	return &Iterator{ds: d, cfg: cfg, order: order}
}

// Passes returns a function producing one iterator per call, suitable
// as a training input function. Each call advances the shuffle seed by
// the pass count, so successive epochs see different batch orders while
// the whole run stays reproducible from cfg.Seed.
func (d *Dataset) Passes(cfg BatchConfig) func() (*Iterator, error) {
	var pass int64
	return func() (*Iterator, error) {
		c := cfg
		c.Seed = cfg.Seed + pass
		pass++
		return d.Batches(c), nil
	}
}

// Iterator walks a dataset one batch at a time.
type Iterator struct {
	ds    *Dataset
	cfg   BatchConfig
	order []int
	pos   int
}

// Next returns the next batch, or false when the pass is exhausted.
func (it *Iterator) Next() (Batch, bool) {
	remaining := len(it.order) - it.pos
	if remaining <= 0 {
		return Batch{}, false
	}
	size := it.cfg.BatchSize
	if remaining < size {
		if it.cfg.DropTail {
			return Batch{}, false
		}
		size = remaining
	}

	indices := it.order[it.pos : it.pos+size]
	it.pos += size
	return it.ds.gather(indices), true
}

// gather copies the selected examples into fresh batch tensors.
func (d *Dataset) gather(indices []int) Batch {
	x, err := tensor.NewRaw(tensor.Shape{len(indices), d.Dim}, tensor.Float32, tensor.CPU)
	if err != nil {
		panic(err)
	}
	xData := x.AsFloat32()
	filenames := make([]string, len(indices))
	for n, i := range indices {
		copy(xData[n*d.Dim:(n+1)*d.Dim], d.X[i*d.Dim:(i+1)*d.Dim])
		filenames[n] = d.Filenames[i]
	}

	batch := Batch{X: x, Filenames: filenames}
	if d.Labels != nil {
		labels, err := tensor.NewRaw(tensor.Shape{len(indices)}, tensor.Int64, tensor.CPU)
		if err != nil {
			panic(err)
		}
		lData := labels.AsInt64()
		for n, i := range indices {
			lData[n] = d.Labels[i]
		}
		batch.Labels = labels
	}
	return batch
}
