package parallel_test

import (
	"sync/atomic"
	"testing"

	"github.com/fengrk/pymltools/internal/parallel"
	"github.com/stretchr/testify/assert"
)

func TestFor_VisitsEveryIndexOnce(t *testing.T) {
	for _, cfg := range []parallel.Config{
		{Enabled: false},
		{Enabled: true, NumWorkers: 4, MinChunkSize: 1},
		{Enabled: true, NumWorkers: 3, MinChunkSize: 64},
		parallel.DefaultConfig(),
	} {
		const n = 1000
		counts := make([]int32, n)
		parallel.For(n, func(i int) {
			atomic.AddInt32(&counts[i], 1)
		}, cfg)

		for i, c := range counts {
			assert.Equal(t, int32(1), c, "index %d visited %d times (cfg %+v)", i, c, cfg)
		}
	}
}

func TestFor_ZeroIterations(t *testing.T) {
	called := false
	parallel.For(0, func(int) { called = true }, parallel.DefaultConfig())
	assert.False(t, called)
}

func TestFor_SequentialWhenSmall(t *testing.T) {
	// Below MinChunkSize the loop runs inline in order.
	var order []int
	parallel.For(8, func(i int) { order = append(order, i) }, parallel.Config{
		Enabled:      true,
		NumWorkers:   4,
		MinChunkSize: 64,
	})
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, order)
}

func TestDefaultConfig(t *testing.T) {
	cfg := parallel.DefaultConfig()
	assert.Greater(t, cfg.NumWorkers, 0)
	assert.Greater(t, cfg.MinChunkSize, 0)
}
