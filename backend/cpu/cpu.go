// Copyright 2025 The pymltools Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go CPU backend for pymltools tensors.
//
// Example:
//
//	import (
//	    "github.com/fengrk/pymltools/backend/cpu"
//	    "github.com/fengrk/pymltools/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	}
package cpu

import (
	internalcpu "github.com/fengrk/pymltools/internal/backend/cpu"
	"github.com/fengrk/pymltools/tensor"
)

// Backend is the CPU backend implementation. All operations are pure
// Go with worker-pool parallelism for the heavy kernels.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new CPU backend.
func New() *Backend {
	return internalcpu.New()
}
