// Package schedule implements learning-rate schedules.
//
// A Schedule maps a global training step to a learning rate. The
// estimator queries the schedule once per step and pushes the result
// into the optimizer via SetLR, so schedules stay stateless and
// resumable: restoring a checkpointed step counter restores the exact
// learning rate.
package schedule

import "math"

// Schedule maps a zero-based global step to a learning rate.
type Schedule interface {
	LR(step int64) float32
}

// Constant returns the same learning rate for every step.
type Constant struct {
	Rate float32
}

// LR implements Schedule.
func (c Constant) LR(step int64) float32 {
	return c.Rate
}

// ExponentialDecay decays the base rate by a multiplicative factor every
// DecaySteps steps:
//
//	lr = Base * Rate^(step / DecaySteps)
//
// With Staircase set, the exponent truncates to an integer so the rate
// drops in discrete jumps instead of decaying continuously.
type ExponentialDecay struct {
	Base       float32
	Rate       float32 // Decay factor per DecaySteps, in (0, 1]
	DecaySteps int64
	Staircase  bool
}

// LR implements Schedule.
func (e ExponentialDecay) LR(step int64) float32 {
	if e.DecaySteps <= 0 {
		return e.Base
	}
	exp := float64(step) / float64(e.DecaySteps)
	if e.Staircase {
		exp = math.Floor(exp)
	}
	return e.Base * float32(math.Pow(float64(e.Rate), exp))
}

// PiecewiseConstant holds the rate fixed between boundaries.
//
// Boundaries must be ascending. Rates needs one more entry than
// Boundaries: Rates[i] applies while step < Boundaries[i], and the last
// rate applies forever after.
type PiecewiseConstant struct {
	Boundaries []int64
	Rates      []float32
}

// LR implements Schedule.
func (p PiecewiseConstant) LR(step int64) float32 {
	for i, b := range p.Boundaries {
		if step < b {
			return p.Rates[i]
		}
	}
	return p.Rates[len(p.Rates)-1]
}

// CosineAnnealing ramps linearly from zero over WarmupSteps, then decays
// along a half cosine from Base to Min over the remaining steps up to
// TotalSteps, and holds Min afterwards.
type CosineAnnealing struct {
	Base        float32
	Min         float32
	WarmupSteps int64
	TotalSteps  int64
}

// LR implements Schedule.
func (c CosineAnnealing) LR(step int64) float32 {
	// Phase 1: linear warmup.
	if step < c.WarmupSteps {
		return c.Base * float32(step+1) / float32(c.WarmupSteps)
	}

	// Phase 3: constant minimum.
	if step >= c.TotalSteps || c.TotalSteps <= c.WarmupSteps {
		return c.Min
	}

	// Phase 2: cosine decay.
	progress := float64(step-c.WarmupSteps) / float64(c.TotalSteps-c.WarmupSteps)
	cosine := 0.5 * (1.0 + math.Cos(math.Pi*progress))
	return c.Min + (c.Base-c.Min)*float32(cosine)
}
