package cpu

import (
	"fmt"

	"github.com/fengrk/pymltools/internal/tensor"
)

// MulScalar multiplies every element by a scalar.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	return cpu.scalarOp("mul_scalar", x, scalar,
		func(v, s float32) float32 { return v * s },
		func(v, s float64) float64 { return v * s })
}

// AddScalar adds a scalar to every element.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	return cpu.scalarOp("add_scalar", x, scalar,
		func(v, s float32) float32 { return v + s },
		func(v, s float64) float64 { return v + s })
}

// SubScalar subtracts a scalar from every element.
func (cpu *CPUBackend) SubScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	return cpu.scalarOp("sub_scalar", x, scalar,
		func(v, s float32) float32 { return v - s },
		func(v, s float64) float64 { return v - s })
}

// DivScalar divides every element by a scalar.
func (cpu *CPUBackend) DivScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	return cpu.scalarOp("div_scalar", x, scalar,
		func(v, s float32) float32 { return v / s },
		func(v, s float64) float64 { return v / s })
}

func (cpu *CPUBackend) scalarOp(
	name string,
	x *tensor.RawTensor,
	scalar any,
	f32 func(v, s float32) float32,
	f64 func(v, s float64) float64,
) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", name, err))
	}

	switch x.DType() {
	case tensor.Float32:
		s, ok := toFloat64(scalar)
		if !ok {
			panic(fmt.Sprintf("%s: unsupported scalar type %T", name, scalar))
		}
		xv, out := x.AsFloat32(), result.AsFloat32()
		sf := float32(s)
		for i := range out {
			out[i] = f32(xv[i], sf)
		}
	case tensor.Float64:
		s, ok := toFloat64(scalar)
		if !ok {
			panic(fmt.Sprintf("%s: unsupported scalar type %T", name, scalar))
		}
		xv, out := x.AsFloat64(), result.AsFloat64()
		for i := range out {
			out[i] = f64(xv[i], s)
		}
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, x.DType()))
	}
	return result
}

func toFloat64(scalar any) (float64, bool) {
	switch s := scalar.(type) {
	case float32:
		return float64(s), true
	case float64:
		return s, true
	case int:
		return float64(s), true
	case int32:
		return float64(s), true
	case int64:
		return float64(s), true
	default:
		return 0, false
	}
}
