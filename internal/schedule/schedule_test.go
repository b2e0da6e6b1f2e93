package schedule_test

import (
	"testing"

	"github.com/fengrk/pymltools/internal/schedule"
	"github.com/stretchr/testify/assert"
)

func TestConstant(t *testing.T) {
	s := schedule.Constant{Rate: 0.01}
	assert.Equal(t, float32(0.01), s.LR(0))
	assert.Equal(t, float32(0.01), s.LR(1_000_000))
}

func TestExponentialDecay(t *testing.T) {
	s := schedule.ExponentialDecay{Base: 0.1, Rate: 0.5, DecaySteps: 10}

	assert.InDelta(t, 0.1, s.LR(0), 1e-7)
	// Halfway through the first decay period the continuous rate has
	// dropped by sqrt(0.5).
	assert.InDelta(t, 0.1*0.70710678, s.LR(5), 1e-7)
	assert.InDelta(t, 0.05, s.LR(10), 1e-7)
	assert.InDelta(t, 0.025, s.LR(20), 1e-7)
}

func TestExponentialDecay_Staircase(t *testing.T) {
	s := schedule.ExponentialDecay{Base: 0.1, Rate: 0.5, DecaySteps: 10, Staircase: true}

	// Rate holds within a period and drops at the boundary.
	assert.InDelta(t, 0.1, s.LR(0), 1e-7)
	assert.InDelta(t, 0.1, s.LR(9), 1e-7)
	assert.InDelta(t, 0.05, s.LR(10), 1e-7)
	assert.InDelta(t, 0.05, s.LR(19), 1e-7)
	assert.InDelta(t, 0.025, s.LR(20), 1e-7)
}

func TestPiecewiseConstant(t *testing.T) {
	s := schedule.PiecewiseConstant{
		Boundaries: []int64{100, 200},
		Rates:      []float32{0.1, 0.01, 0.001},
	}

	assert.Equal(t, float32(0.1), s.LR(0))
	assert.Equal(t, float32(0.1), s.LR(99))
	assert.Equal(t, float32(0.01), s.LR(100))
	assert.Equal(t, float32(0.01), s.LR(199))
	assert.Equal(t, float32(0.001), s.LR(200))
	assert.Equal(t, float32(0.001), s.LR(10_000))
}

func TestCosineAnnealing(t *testing.T) {
	s := schedule.CosineAnnealing{Base: 0.1, Min: 0.001, WarmupSteps: 10, TotalSteps: 110}

	// Warmup ramps linearly and reaches the base rate.
	assert.InDelta(t, 0.01, s.LR(0), 1e-7)
	assert.InDelta(t, 0.05, s.LR(4), 1e-7)
	assert.InDelta(t, 0.1, s.LR(10), 1e-7)

	// Midpoint of the cosine phase sits halfway between base and min.
	assert.InDelta(t, 0.0505, s.LR(60), 1e-6)

	// Past the horizon the rate holds at the floor.
	assert.InDelta(t, 0.001, s.LR(110), 1e-7)
	assert.InDelta(t, 0.001, s.LR(10_000), 1e-7)
}
