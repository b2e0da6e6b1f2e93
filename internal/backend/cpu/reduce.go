package cpu

import (
	"fmt"

	"github.com/fengrk/pymltools/internal/tensor"
)

// Sum reduces the whole tensor to a single-element tensor.
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result, err := tensor.NewRaw(tensor.Shape{1}, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("sum: failed to create result tensor: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		var total float32
		for _, v := range x.AsFloat32() {
			total += v
		}
		result.AsFloat32()[0] = total
	case tensor.Float64:
		var total float64
		for _, v := range x.AsFloat64() {
			total += v
		}
		result.AsFloat64()[0] = total
	default:
		panic(fmt.Sprintf("sum: unsupported dtype %s", x.DType()))
	}
	return result
}

// SumDim sums along a dimension.
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return cpu.reduceDim("sum_dim", x, dim, keepDim, false)
}

// MeanDim averages along a dimension.
func (cpu *CPUBackend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return cpu.reduceDim("mean_dim", x, dim, keepDim, true)
}

func (cpu *CPUBackend) reduceDim(name string, x *tensor.RawTensor, dim int, keepDim, mean bool) *tensor.RawTensor {
	shape := x.Shape()
	if dim < 0 || dim >= len(shape) {
		panic(fmt.Sprintf("%s: dimension %d out of range for shape %v", name, dim, shape))
	}
	if x.DType() != tensor.Float32 {
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, x.DType()))
	}

	outShape := reducedShape(shape, dim, keepDim)
	result, err := tensor.NewRaw(outShape, tensor.Float32, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", name, err))
	}

	outer, size, inner := splitAt(shape, dim)
	xv, out := x.AsFloat32(), result.AsFloat32()

	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			var total float32
			base := o*size*inner + in
			for k := 0; k < size; k++ {
				total += xv[base+k*inner]
			}
			if mean {
				total /= float32(size)
			}
			out[o*inner+in] = total
		}
	}
	return result
}

// Argmax returns the index of the maximum value along a dimension.
// The result has dtype int64.
func (cpu *CPUBackend) Argmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	if dim < 0 || dim >= len(shape) {
		panic(fmt.Sprintf("argmax: dimension %d out of range for shape %v", dim, shape))
	}
	if x.DType() != tensor.Float32 {
		panic(fmt.Sprintf("argmax: unsupported dtype %s", x.DType()))
	}

	outShape := reducedShape(shape, dim, false)
	result, err := tensor.NewRaw(outShape, tensor.Int64, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("argmax: failed to create result tensor: %v", err))
	}

	outer, size, inner := splitAt(shape, dim)
	xv, out := x.AsFloat32(), result.AsInt64()

	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			base := o*size*inner + in
			best, bestIdx := xv[base], int64(0)
			for k := 1; k < size; k++ {
				if v := xv[base+k*inner]; v > best {
					best, bestIdx = v, int64(k)
				}
			}
			out[o*inner+in] = bestIdx
		}
	}
	return result
}

// reducedShape drops (or keeps as 1) the reduced dimension. Reducing the
// only dimension yields Shape{1}: single-element results stay addressable.
func reducedShape(shape tensor.Shape, dim int, keepDim bool) tensor.Shape {
	out := make(tensor.Shape, 0, len(shape))
	for d, s := range shape {
		if d == dim {
			if keepDim {
				out = append(out, 1)
			}
			continue
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		out = tensor.Shape{1}
	}
	return out
}

// splitAt decomposes a shape around dim into outer, size, inner extents.
func splitAt(shape tensor.Shape, dim int) (outer, size, inner int) {
	outer, size, inner = 1, shape[dim], 1
	for d := 0; d < dim; d++ {
		outer *= shape[d]
	}
	for d := dim + 1; d < len(shape); d++ {
		inner *= shape[d]
	}
	return outer, size, inner
}
