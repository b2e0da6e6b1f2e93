// Copyright 2025 The pymltools Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package schedule provides learning rate schedules for pymltools.
package schedule

import (
	"github.com/fengrk/pymltools/internal/schedule"
)

// Schedule maps a global step to a learning rate.
type Schedule = schedule.Schedule

// Constant keeps the learning rate fixed.
type Constant = schedule.Constant

// ExponentialDecay multiplies the base rate by Rate^(step/DecaySteps),
// optionally in staircase jumps.
type ExponentialDecay = schedule.ExponentialDecay

// PiecewiseConstant holds a rate between each pair of step boundaries.
type PiecewiseConstant = schedule.PiecewiseConstant

// CosineAnnealing warms up linearly, then follows a half cosine from
// the base rate down to the minimum.
type CosineAnnealing = schedule.CosineAnnealing
