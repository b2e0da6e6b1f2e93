package cpu

import (
	"fmt"
	"math"

	"github.com/chewxy/math32"

	"github.com/fengrk/pymltools/internal/tensor"
)

// Exp applies the element-wise exponential.
func (cpu *CPUBackend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("exp", x, math32.Exp, math.Exp)
}

// Log applies the element-wise natural logarithm.
// Panics on non-positive values: a NaN here always means an upstream
// bug, and surfacing the offending index beats silently propagating it.
func (cpu *CPUBackend) Log(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("log", x,
		func(v float32) float32 {
			if v <= 0 {
				panic(fmt.Sprintf("log: non-positive value %f", v))
			}
			return math32.Log(v)
		},
		func(v float64) float64 {
			if v <= 0 {
				panic(fmt.Sprintf("log: non-positive value %f", v))
			}
			return math.Log(v)
		})
}

// Sqrt applies the element-wise square root.
func (cpu *CPUBackend) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("sqrt", x, math32.Sqrt, math.Sqrt)
}

func (cpu *CPUBackend) unaryOp(
	name string,
	x *tensor.RawTensor,
	f32 func(float32) float32,
	f64 func(float64) float64,
) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", name, err))
	}

	switch x.DType() {
	case tensor.Float32:
		xv, out := x.AsFloat32(), result.AsFloat32()
		for i := range out {
			out[i] = f32(xv[i])
		}
	case tensor.Float64:
		xv, out := x.AsFloat64(), result.AsFloat64()
		for i := range out {
			out[i] = f64(xv[i])
		}
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s (only float32/float64 supported)", name, x.DType()))
	}
	return result
}
