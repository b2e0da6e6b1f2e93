// Package cpu implements the pure-Go CPU backend.
package cpu

import (
	"fmt"

	"github.com/fengrk/pymltools/internal/parallel"
	"github.com/fengrk/pymltools/internal/tensor"
)

// CPUBackend implements tensor operations on the CPU.
type CPUBackend struct {
	device   tensor.Device
	parallel parallel.Config
}

// New creates a new CPU backend.
func New() *CPUBackend {
	return &CPUBackend{
		device:   tensor.CPU,
		parallel: parallel.DefaultConfig(),
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("add", a, b,
		func(x, y float32) float32 { return x + y },
		func(x, y float64) float64 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("sub", a, b,
		func(x, y float32) float32 { return x - y },
		func(x, y float64) float64 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("mul", a, b,
		func(x, y float32) float32 { return x * y },
		func(x, y float64) float64 { return x * y })
}

// Div performs element-wise division with broadcasting.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("div", a, b,
		func(x, y float32) float32 { return x / y },
		func(x, y float64) float64 { return x / y })
}

// binaryOp applies an element-wise binary kernel with broadcasting.
func (cpu *CPUBackend) binaryOp(
	name string,
	a, b *tensor.RawTensor,
	f32 func(x, y float32) float32,
	f64 func(x, y float64) float64,
) *tensor.RawTensor {
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch: %s vs %s", name, a.DType(), b.DType()))
	}

	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	result, err := tensor.NewRaw(outShape, a.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", name, err))
	}

	if !needsBroadcast && a.Shape().Equal(b.Shape()) {
		switch a.DType() {
		case tensor.Float32:
			av, bv, out := a.AsFloat32(), b.AsFloat32(), result.AsFloat32()
			for i := range out {
				out[i] = f32(av[i], bv[i])
			}
		case tensor.Float64:
			av, bv, out := a.AsFloat64(), b.AsFloat64(), result.AsFloat64()
			for i := range out {
				out[i] = f64(av[i], bv[i])
			}
		default:
			panic(fmt.Sprintf("%s: unsupported dtype %s", name, a.DType()))
		}
		return result
	}

	// Broadcasting path: walk output coordinates, mapping each back onto
	// the (possibly size-1) source dimensions.
	switch a.DType() {
	case tensor.Float32:
		av, bv, out := a.AsFloat32(), b.AsFloat32(), result.AsFloat32()
		broadcastLoop(outShape, a.Shape(), b.Shape(), func(oi, ai, bi int) {
			out[oi] = f32(av[ai], bv[bi])
		})
	case tensor.Float64:
		av, bv, out := a.AsFloat64(), b.AsFloat64(), result.AsFloat64()
		broadcastLoop(outShape, a.Shape(), b.Shape(), func(oi, ai, bi int) {
			out[oi] = f64(av[ai], bv[bi])
		})
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, a.DType()))
	}
	return result
}

// broadcastLoop iterates all flat output offsets alongside the
// corresponding flat source offsets for two broadcast operands.
func broadcastLoop(outShape, aShape, bShape tensor.Shape, visit func(oi, ai, bi int)) {
	outStrides := outShape.ComputeStrides()
	aStrides := broadcastStrides(outShape, aShape)
	bStrides := broadcastStrides(outShape, bShape)

	n := outShape.NumElements()
	coord := make([]int, len(outShape))
	for oi := 0; oi < n; oi++ {
		rem := oi
		ai, bi := 0, 0
		for d := range outShape {
			coord[d] = rem / outStrides[d]
			rem %= outStrides[d]
			ai += coord[d] * aStrides[d]
			bi += coord[d] * bStrides[d]
		}
		visit(oi, ai, bi)
	}
}

// broadcastStrides returns per-output-dimension strides into a source
// tensor, with 0 strides on broadcast (size-1 or missing) dimensions.
func broadcastStrides(outShape, srcShape tensor.Shape) []int {
	srcStrides := srcShape.ComputeStrides()
	strides := make([]int, len(outShape))
	offset := len(outShape) - len(srcShape)
	for d := range outShape {
		sd := d - offset
		if sd < 0 || srcShape[sd] == 1 {
			strides[d] = 0
			continue
		}
		strides[d] = srcStrides[sd]
	}
	return strides
}
