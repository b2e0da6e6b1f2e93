// Copyright 2025 The pymltools Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides type-safe tensors for pymltools.
//
// The package defines the core types shared by every backend and
// training component:
//   - Tensor[T, B]: high-level generic tensor with type safety
//   - RawTensor: low-level untyped tensor for backend implementations
//   - IndexedSlices: sparse row-wise gradients
//   - Shape, DataType, Device: core type definitions
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	y := tensor.Ones[float32](tensor.Shape{2, 3}, backend)
//	z := x.Add(y)  // Element-wise addition
package tensor

import (
	"github.com/fengrk/pymltools/internal/tensor"
)

// DType is a constraint for tensor element types.
// Supported types: float32, float64, int32, int64, uint8, bool.
type DType = tensor.DType

// DataType carries runtime type information for tensors.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
	Int32   DataType = tensor.Int32
	Int64   DataType = tensor.Int64
	Uint8   DataType = tensor.Uint8
	Bool    DataType = tensor.Bool
)

// Device represents the device where tensor data resides.
type Device = tensor.Device

// Device constants.
const (
	CPU Device = tensor.CPU
)

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// Backend is the interface compute backends implement. The typed
// Tensor methods dispatch into it.
type Backend = tensor.Backend

// Tensor is a generic type-safe tensor.
//
// T is the element type (float32, float64, int32, int64, uint8, bool).
// B is the backend implementation.
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	y := tensor.Ones[float32](tensor.Shape{2, 3}, backend)
//	z := x.MatMul(y.Transpose())
type Tensor[T DType, B Backend] = tensor.Tensor[T, B]

// RawTensor is the low-level tensor representation: a flat byte buffer
// plus shape, strides, dtype and device.
type RawTensor = tensor.RawTensor

// IndexedSlices is a sparse row-wise gradient: int32 row indices and a
// dense block of gradient rows. Duplicate indices are additive.
type IndexedSlices = tensor.IndexedSlices

// New wraps a RawTensor in a typed Tensor. It panics when the raw
// tensor's dtype does not match T.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	return tensor.New[T](raw, b)
}

// FromSlice creates a tensor from a Go slice and a shape.
//
// Example:
//
//	x, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	return tensor.FromSlice(data, shape, b)
}

// NewRaw allocates a zero-filled raw tensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// NewIndexedSlices builds a sparse gradient from int32 indices and a
// dense [n, dim] float32 value block.
func NewIndexedSlices(indices, values *RawTensor) (*IndexedSlices, error) {
	return tensor.NewIndexedSlices(indices, values)
}

// Zeros creates a tensor filled with zeros.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Zeros[T](shape, b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Ones[T](shape, b)
}

// Full creates a tensor filled with the given value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	return tensor.Full(shape, value, b)
}

// Scalar creates a zero-dimensional tensor holding one value.
func Scalar[T DType, B Backend](value T, b B) *Tensor[T, B] {
	return tensor.Scalar(value, b)
}

// Randn creates a tensor with standard-normal random values.
func Randn[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Randn[T](shape, b)
}

// Rand creates a tensor with uniform random values in [0, 1).
func Rand[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Rand[T](shape, b)
}

// BroadcastShapes computes the broadcast result shape of two shapes
// following NumPy rules. The bool reports whether broadcasting was
// needed.
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	return tensor.BroadcastShapes(a, b)
}
