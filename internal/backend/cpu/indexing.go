package cpu

import (
	"fmt"

	"github.com/fengrk/pymltools/internal/tensor"
)

// GatherRows selects whole rows of a 2D tensor by int32 index.
// Result shape is [len(indices), dim].
func (cpu *CPUBackend) GatherRows(x *tensor.RawTensor, indices *tensor.RawTensor) *tensor.RawTensor {
	shape := x.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("gather_rows: expected 2D tensor, got %v", shape))
	}
	if x.DType() != tensor.Float32 || indices.DType() != tensor.Int32 {
		panic(fmt.Sprintf("gather_rows: expected float32 source and int32 indices, got %s/%s",
			x.DType(), indices.DType()))
	}

	numRows, dim := shape[0], shape[1]
	idx := indices.AsInt32()

	result, err := tensor.NewRaw(tensor.Shape{len(idx), dim}, tensor.Float32, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("gather_rows: failed to create result tensor: %v", err))
	}

	xv, out := x.AsFloat32(), result.AsFloat32()
	for n, i := range idx {
		if int(i) < 0 || int(i) >= numRows {
			panic(fmt.Sprintf("gather_rows: index %d out of range [0, %d)", i, numRows))
		}
		copy(out[n*dim:(n+1)*dim], xv[int(i)*dim:(int(i)+1)*dim])
	}
	return result
}

// ScatterAddRows accumulates value rows into dst rows in place.
// Duplicate indices accumulate additively, matching scatter-add
// semantics: dst[indices[n]] += values[n] for every n in order.
func (cpu *CPUBackend) ScatterAddRows(dst *tensor.RawTensor, indices *tensor.RawTensor, values *tensor.RawTensor) {
	dstShape, valShape := dst.Shape(), values.Shape()
	if len(dstShape) != 2 || len(valShape) != 2 {
		panic(fmt.Sprintf("scatter_add_rows: expected 2D tensors, got %v and %v", dstShape, valShape))
	}
	if dstShape[1] != valShape[1] {
		panic(fmt.Sprintf("scatter_add_rows: row width mismatch: %d vs %d", dstShape[1], valShape[1]))
	}
	if dst.DType() != tensor.Float32 || values.DType() != tensor.Float32 || indices.DType() != tensor.Int32 {
		panic(fmt.Sprintf("scatter_add_rows: expected float32 tensors and int32 indices, got %s/%s/%s",
			dst.DType(), values.DType(), indices.DType()))
	}

	idx := indices.AsInt32()
	if len(idx) != valShape[0] {
		panic(fmt.Sprintf("scatter_add_rows: %d indices for %d value rows", len(idx), valShape[0]))
	}

	numRows, dim := dstShape[0], dstShape[1]
	dv, vv := dst.AsFloat32(), values.AsFloat32()
	for n, i := range idx {
		if int(i) < 0 || int(i) >= numRows {
			panic(fmt.Sprintf("scatter_add_rows: index %d out of range [0, %d)", i, numRows))
		}
		row := dv[int(i)*dim : (int(i)+1)*dim]
		src := vv[n*dim : (n+1)*dim]
		for d := range row {
			row[d] += src[d]
		}
	}
}

// Embedding looks up weight rows for every index. The result shape is
// the index shape with the embedding dimension appended.
func (cpu *CPUBackend) Embedding(weight, indices *tensor.RawTensor) *tensor.RawTensor {
	wShape := weight.Shape()
	if len(wShape) != 2 {
		panic(fmt.Sprintf("embedding: weight must be 2D, got %v", wShape))
	}
	if weight.DType() != tensor.Float32 || indices.DType() != tensor.Int32 {
		panic(fmt.Sprintf("embedding: expected float32 weight and int32 indices, got %s/%s",
			weight.DType(), indices.DType()))
	}

	numEmbed, dim := wShape[0], wShape[1]
	idx := indices.AsInt32()

	outShape := append(indices.Shape().Clone(), dim)
	result, err := tensor.NewRaw(outShape, tensor.Float32, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("embedding: failed to create result tensor: %v", err))
	}

	wv, out := weight.AsFloat32(), result.AsFloat32()
	for n, i := range idx {
		if int(i) < 0 || int(i) >= numEmbed {
			panic(fmt.Sprintf("embedding: index %d out of range [0, %d)", i, numEmbed))
		}
		copy(out[n*dim:(n+1)*dim], wv[int(i)*dim:(int(i)+1)*dim])
	}
	return result
}
