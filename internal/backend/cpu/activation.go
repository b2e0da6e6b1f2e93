package cpu

import (
	"math"

	"github.com/chewxy/math32"

	"github.com/fengrk/pymltools/internal/tensor"
)

// Activation kernels with their gradient counterparts. The nn package
// discovers these through small capability interfaces rather than the
// core Backend interface, so other backends may implement a subset.

// ReLU applies max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("relu", x,
		func(v float32) float32 { return math32.Max(0, v) },
		func(v float64) float64 {
			if v < 0 {
				return 0
			}
			return v
		})
}

// ReLUGrad computes gradOut * 1[x > 0].
func (cpu *CPUBackend) ReLUGrad(x, gradOut *tensor.RawTensor) *tensor.RawTensor {
	return cpu.gradOp("relu_grad", x, gradOut, func(xi, g float32) float32 {
		if xi > 0 {
			return g
		}
		return 0
	})
}

// Sigmoid applies 1/(1+exp(-x)) element-wise.
func (cpu *CPUBackend) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("sigmoid", x,
		func(v float32) float32 { return 1 / (1 + math32.Exp(-v)) },
		func(v float64) float64 { return 1 / (1 + math.Exp(-v)) })
}

// SigmoidGrad computes gradOut * s * (1-s) where s = sigmoid(x).
func (cpu *CPUBackend) SigmoidGrad(x, gradOut *tensor.RawTensor) *tensor.RawTensor {
	return cpu.gradOp("sigmoid_grad", x, gradOut, func(xi, g float32) float32 {
		s := 1 / (1 + math32.Exp(-xi))
		return g * s * (1 - s)
	})
}

// Tanh applies the hyperbolic tangent element-wise.
func (cpu *CPUBackend) Tanh(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("tanh", x, math32.Tanh, math.Tanh)
}

// TanhGrad computes gradOut * (1 - tanh(x)^2).
func (cpu *CPUBackend) TanhGrad(x, gradOut *tensor.RawTensor) *tensor.RawTensor {
	return cpu.gradOp("tanh_grad", x, gradOut, func(xi, g float32) float32 {
		t := math32.Tanh(xi)
		return g * (1 - t*t)
	})
}

func (cpu *CPUBackend) gradOp(name string, x, gradOut *tensor.RawTensor, f func(xi, g float32) float32) *tensor.RawTensor {
	if !x.Shape().Equal(gradOut.Shape()) {
		panic(name + ": input and gradient shapes differ")
	}
	result, err := tensor.NewRaw(x.Shape(), tensor.Float32, cpu.device)
	if err != nil {
		panic(name + ": failed to create result tensor")
	}
	xv, gv, out := x.AsFloat32(), gradOut.AsFloat32(), result.AsFloat32()
	for i := range out {
		out[i] = f(xv[i], gv[i])
	}
	return result
}
