package cpu

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/fengrk/pymltools/internal/tensor"
)

// Softmax applies softmax along the given dimension, stabilised by the
// usual max subtraction.
func (cpu *CPUBackend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	if dim < 0 || dim >= len(shape) {
		panic(fmt.Sprintf("softmax: dimension %d out of range for shape %v", dim, shape))
	}
	if x.DType() != tensor.Float32 {
		panic(fmt.Sprintf("softmax: unsupported dtype %s", x.DType()))
	}

	result, err := tensor.NewRaw(shape, tensor.Float32, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("softmax: failed to create result tensor: %v", err))
	}

	outer, size, inner := splitAt(shape, dim)
	xv, out := x.AsFloat32(), result.AsFloat32()

	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			base := o*size*inner + in

			maxV := xv[base]
			for k := 1; k < size; k++ {
				if v := xv[base+k*inner]; v > maxV {
					maxV = v
				}
			}

			var sum float32
			for k := 0; k < size; k++ {
				e := math32.Exp(xv[base+k*inner] - maxV)
				out[base+k*inner] = e
				sum += e
			}
			for k := 0; k < size; k++ {
				out[base+k*inner] /= sum
			}
		}
	}
	return result
}
