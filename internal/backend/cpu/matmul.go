package cpu

import (
	"fmt"

	"github.com/fengrk/pymltools/internal/parallel"
	"github.com/fengrk/pymltools/internal/tensor"
)

// MatMul performs 2D matrix multiplication: [M, K] @ [K, N] -> [M, N].
// Output rows are computed in parallel for large matrices.
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape, bShape := a.Shape(), b.Shape()
	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: expected 2D tensors, got %v @ %v", aShape, bShape))
	}
	if aShape[1] != bShape[0] {
		panic(fmt.Sprintf("matmul: inner dimensions mismatch: %v @ %v", aShape, bShape))
	}
	if a.DType() != tensor.Float32 || b.DType() != tensor.Float32 {
		panic(fmt.Sprintf("matmul: only float32 supported, got %s @ %s", a.DType(), b.DType()))
	}

	m, k, n := aShape[0], aShape[1], bShape[1]

	result, err := tensor.NewRaw(tensor.Shape{m, n}, tensor.Float32, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("matmul: failed to create result tensor: %v", err))
	}

	av, bv, out := a.AsFloat32(), b.AsFloat32(), result.AsFloat32()

	cfg := cpu.parallel
	cfg.MinChunkSize = 1 // Each row is already a k*n unit of work.
	parallel.For(m, func(i int) {
		rowA := av[i*k : (i+1)*k]
		rowOut := out[i*n : (i+1)*n]
		// ikj order keeps the inner loop walking b contiguously.
		for kk := 0; kk < k; kk++ {
			aik := rowA[kk]
			if aik == 0 {
				continue
			}
			rowB := bv[kk*n : (kk+1)*n]
			for j := range rowOut {
				rowOut[j] += aik * rowB[j]
			}
		}
	}, cfg)

	return result
}
