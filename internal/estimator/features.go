package estimator

import (
	"github.com/fengrk/pymltools/internal/dataset"
	"github.com/fengrk/pymltools/internal/tensor"
)

// Features is one input batch as seen by a model function: the float
// feature tensor, the int64 label tensor (nil in predict-only input),
// and a filename per example.
type Features struct {
	X         *tensor.RawTensor // float32 [batch, dim]
	Labels    *tensor.RawTensor // int64 [batch], may be nil
	Filenames []string
}

// BatchSize returns the number of examples in the batch.
func (f *Features) BatchSize() int {
	return f.X.Shape()[0]
}

// FromBatch adapts a dataset batch into model-function features.
func FromBatch(b dataset.Batch) *Features {
	return &Features{X: b.X, Labels: b.Labels, Filenames: b.Filenames}
}
