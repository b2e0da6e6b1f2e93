package cpu

import (
	"fmt"

	"github.com/fengrk/pymltools/internal/tensor"
)

// Reshape returns a view of the tensor with a new shape.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	result, err := t.WithShape(newShape)
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	return result
}

// Transpose permutes tensor dimensions. Without explicit axes a 2D
// tensor is transposed in the usual sense.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()

	if len(axes) == 0 {
		if len(shape) != 2 {
			panic(fmt.Sprintf("transpose: default axes only defined for 2D tensors, got %v", shape))
		}
		axes = []int{1, 0}
	}
	if len(axes) != len(shape) {
		panic(fmt.Sprintf("transpose: %d axes for %d dimensions", len(axes), len(shape)))
	}

	outShape := make(tensor.Shape, len(shape))
	seen := make([]bool, len(shape))
	for d, ax := range axes {
		if ax < 0 || ax >= len(shape) || seen[ax] {
			panic(fmt.Sprintf("transpose: invalid axes %v for shape %v", axes, shape))
		}
		seen[ax] = true
		outShape[d] = shape[ax]
	}

	result, err := tensor.NewRaw(outShape, t.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("transpose: failed to create result tensor: %v", err))
	}
	if t.DType() != tensor.Float32 {
		panic(fmt.Sprintf("transpose: unsupported dtype %s", t.DType()))
	}

	inStrides := shape.ComputeStrides()
	outStrides := outShape.ComputeStrides()
	xv, out := t.AsFloat32(), result.AsFloat32()

	n := t.NumElements()
	for oi := 0; oi < n; oi++ {
		rem, ii := oi, 0
		for d := range outShape {
			c := rem / outStrides[d]
			rem %= outStrides[d]
			ii += c * inStrides[axes[d]]
		}
		out[oi] = xv[ii]
	}
	return result
}
