package tensor

import "fmt"

// IndexedSlices is a sparse gradient for a 2D parameter: a set of value
// rows and the parameter rows they belong to. Embedding lookups produce
// gradients in this form, and sparse-aware optimizers consume it without
// ever materialising the dense [numRows, dim] gradient.
//
// Indices may repeat; consumers must treat repeated indices additively.
type IndexedSlices struct {
	Indices *RawTensor // int32 [n]
	Values  *RawTensor // float32 [n, dim]
}

// NewIndexedSlices validates and pairs indices with value rows.
func NewIndexedSlices(indices, values *RawTensor) (*IndexedSlices, error) {
	if indices.DType() != Int32 {
		return nil, fmt.Errorf("indexed slices: indices must be int32, got %s", indices.DType())
	}
	if values.DType() != Float32 {
		return nil, fmt.Errorf("indexed slices: values must be float32, got %s", values.DType())
	}
	if len(values.Shape()) != 2 {
		return nil, fmt.Errorf("indexed slices: values must be 2D [n, dim], got %v", values.Shape())
	}
	if indices.NumElements() != values.Shape()[0] {
		return nil, fmt.Errorf("indexed slices: %d indices for %d value rows",
			indices.NumElements(), values.Shape()[0])
	}
	return &IndexedSlices{Indices: indices, Values: values}, nil
}

// Dim returns the width of each value row.
func (s *IndexedSlices) Dim() int {
	return s.Values.Shape()[1]
}

// Len returns the number of (index, row) pairs.
func (s *IndexedSlices) Len() int {
	return s.Indices.NumElements()
}

// Unique returns an equivalent IndexedSlices in which every index
// appears at most once, with duplicate rows summed. Order follows first
// appearance.
func (s *IndexedSlices) Unique() *IndexedSlices {
	idx := s.Indices.AsInt32()
	vals := s.Values.AsFloat32()
	dim := s.Dim()

	order := make([]int32, 0, len(idx))
	pos := make(map[int32]int, len(idx))
	for _, i := range idx {
		if _, seen := pos[i]; !seen {
			pos[i] = len(order)
			order = append(order, i)
		}
	}

	if len(order) == len(idx) {
		return s
	}

	outIdx, err := NewRaw(Shape{len(order)}, Int32, s.Indices.Device())
	if err != nil {
		panic(err)
	}
	outVals, err := NewRaw(Shape{len(order), dim}, Float32, s.Values.Device())
	if err != nil {
		panic(err)
	}
	copy(outIdx.AsInt32(), order)

	outData := outVals.AsFloat32()
	for n, i := range idx {
		row := outData[pos[i]*dim : (pos[i]+1)*dim]
		src := vals[n*dim : (n+1)*dim]
		for d := range row {
			row[d] += src[d]
		}
	}

	out, err := NewIndexedSlices(outIdx, outVals)
	if err != nil {
		panic(err)
	}
	return out
}

// Dense materialises the sparse gradient as a dense [numRows, dim]
// tensor. Used by optimizers without a sparse path and in tests.
func (s *IndexedSlices) Dense(numRows int) *RawTensor {
	dim := s.Dim()
	out, err := NewRaw(Shape{numRows, dim}, Float32, s.Values.Device())
	if err != nil {
		panic(err)
	}

	outData := out.AsFloat32()
	idx := s.Indices.AsInt32()
	vals := s.Values.AsFloat32()
	for n, i := range idx {
		if int(i) < 0 || int(i) >= numRows {
			panic(fmt.Sprintf("indexed slices: index %d out of range [0, %d)", i, numRows))
		}
		row := outData[int(i)*dim : (int(i)+1)*dim]
		src := vals[n*dim : (n+1)*dim]
		for d := range row {
			row[d] += src[d]
		}
	}
	return out
}
