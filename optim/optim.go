// Copyright 2025 The pymltools Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides optimizers for pymltools.
//
// All optimizers accept dense gradients via Step and sparse row-wise
// gradients via StepSparse. MaskedAdam is the variant built for
// embedding tables: on sparse steps it updates only the rows the batch
// touched, leaving every other row bit-identical.
//
// Example:
//
//	backend := cpu.New()
//	model := nn.NewLinear(784, 10, backend)
//	optimizer := optim.NewAdam(
//	    model.Parameters(),
//	    optim.AdamConfig{LR: 0.001},
//	    backend,
//	)
package optim

import (
	"github.com/fengrk/pymltools/internal/nn"
	"github.com/fengrk/pymltools/internal/optim"
	"github.com/fengrk/pymltools/tensor"
)

// Optimizer is the common interface for all optimizers.
type Optimizer = optim.Optimizer

// Config is the base configuration shared by optimizers.
type Config = optim.Config

// SGD is stochastic gradient descent with optional momentum.
type SGD[B tensor.Backend] = optim.SGD[B]

// SGDConfig configures SGD.
type SGDConfig = optim.SGDConfig

// NewSGD creates an SGD optimizer.
//
// Example:
//
//	optimizer := optim.NewSGD(
//	    model.Parameters(),
//	    optim.SGDConfig{LR: 0.01, Momentum: 0.9},
//	    backend,
//	)
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig, backend B) *SGD[B] {
	return optim.NewSGD(params, config, backend)
}

// Adam is the Adam optimizer with bias correction. Its sparse step
// follows the canonical formulation: moments are updated sparsely but
// the parameter update is dense, so rows with stale momentum keep
// moving.
type Adam[B tensor.Backend] = optim.Adam[B]

// AdamConfig configures Adam and MaskedAdam.
type AdamConfig = optim.AdamConfig

// NewAdam creates an Adam optimizer. Zero-value config fields fall
// back to LR 0.001, betas (0.9, 0.999) and epsilon 1e-8.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig, backend B) *Adam[B] {
	return optim.NewAdam(params, config, backend)
}

// MaskedAdam is Adam with a masked sparse step: only the rows whose
// indices appear in the sparse gradient are updated, so untouched
// embedding rows stay bit-identical. Moments still decay over the full
// tensor every step.
type MaskedAdam[B tensor.Backend] = optim.MaskedAdam[B]

// NewMaskedAdam creates a MaskedAdam optimizer.
//
// Example:
//
//	table := nn.NewEmbedding(100000, 64, backend)
//	optimizer := optim.NewMaskedAdam(
//	    table.Parameters(),
//	    optim.AdamConfig{LR: 0.001},
//	    backend,
//	)
func NewMaskedAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig, backend B) *MaskedAdam[B] {
	return optim.NewMaskedAdam(params, config, backend)
}

// DenseGrads collects the accumulated dense gradients of the given
// parameters into the map form Step expects.
func DenseGrads[B tensor.Backend](params []*nn.Parameter[B]) map[*tensor.RawTensor]*tensor.RawTensor {
	return optim.DenseGrads(params)
}

// SparseGrads collects the accumulated sparse gradients of the given
// parameters into the map form StepSparse expects.
func SparseGrads[B tensor.Backend](params []*nn.Parameter[B]) map[*tensor.RawTensor]*tensor.IndexedSlices {
	return optim.SparseGrads(params)
}
