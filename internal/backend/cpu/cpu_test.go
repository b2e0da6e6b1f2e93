package cpu_test

import (
	"math"
	"testing"

	"github.com/fengrk/pymltools/internal/backend/cpu"
	"github.com/fengrk/pymltools/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawF32(t *testing.T, shape tensor.Shape, data []float32) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(raw.AsFloat32(), data)
	return raw
}

func rawI32(t *testing.T, data []int32) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.NewRaw(tensor.Shape{len(data)}, tensor.Int32, tensor.CPU)
	require.NoError(t, err)
	copy(raw.AsInt32(), data)
	return raw
}

func TestBinaryOps(t *testing.T) {
	backend := cpu.New()
	a := rawF32(t, tensor.Shape{2, 2}, []float32{1, 2, 3, 4})
	b := rawF32(t, tensor.Shape{2, 2}, []float32{4, 3, 2, 1})

	assert.Equal(t, []float32{5, 5, 5, 5}, backend.Add(a, b).AsFloat32())
	assert.Equal(t, []float32{-3, -1, 1, 3}, backend.Sub(a, b).AsFloat32())
	assert.Equal(t, []float32{4, 6, 6, 4}, backend.Mul(a, b).AsFloat32())
	assert.Equal(t, []float32{0.25, 2.0 / 3.0, 1.5, 4}, backend.Div(a, b).AsFloat32())
}

func TestBinaryOps_Broadcasting(t *testing.T) {
	backend := cpu.New()
	matrix := rawF32(t, tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	row := rawF32(t, tensor.Shape{3}, []float32{10, 20, 30})
	col := rawF32(t, tensor.Shape{2, 1}, []float32{100, 200})

	sum := backend.Add(matrix, row)
	assert.True(t, sum.Shape().Equal(tensor.Shape{2, 3}))
	assert.Equal(t, []float32{11, 22, 33, 14, 25, 36}, sum.AsFloat32())

	scaled := backend.Add(matrix, col)
	assert.Equal(t, []float32{101, 102, 103, 204, 205, 206}, scaled.AsFloat32())
}

func TestMatMul(t *testing.T) {
	backend := cpu.New()
	a := rawF32(t, tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	b := rawF32(t, tensor.Shape{3, 2}, []float32{7, 8, 9, 10, 11, 12})

	c := backend.MatMul(a, b)
	assert.True(t, c.Shape().Equal(tensor.Shape{2, 2}))
	assert.Equal(t, []float32{58, 64, 139, 154}, c.AsFloat32())
}

func TestMatMul_ShapeMismatchPanics(t *testing.T) {
	backend := cpu.New()
	a := rawF32(t, tensor.Shape{2, 3}, make([]float32, 6))
	b := rawF32(t, tensor.Shape{2, 2}, make([]float32, 4))
	assert.Panics(t, func() { backend.MatMul(a, b) })
}

func TestScalarOps(t *testing.T) {
	backend := cpu.New()
	x := rawF32(t, tensor.Shape{3}, []float32{1, 2, 3})

	assert.Equal(t, []float32{2, 4, 6}, backend.MulScalar(x, float32(2)).AsFloat32())
	assert.Equal(t, []float32{2, 3, 4}, backend.AddScalar(x, float32(1)).AsFloat32())
	assert.Equal(t, []float32{0, 1, 2}, backend.SubScalar(x, float32(1)).AsFloat32())
	assert.Equal(t, []float32{0.5, 1, 1.5}, backend.DivScalar(x, float32(2)).AsFloat32())
}

func TestUnaryOps(t *testing.T) {
	backend := cpu.New()
	x := rawF32(t, tensor.Shape{2}, []float32{0, 1})

	exp := backend.Exp(x).AsFloat32()
	assert.InDelta(t, 1.0, exp[0], 1e-6)
	assert.InDelta(t, math.E, exp[1], 1e-5)

	y := rawF32(t, tensor.Shape{2}, []float32{1, math.E})
	logs := backend.Log(y).AsFloat32()
	assert.InDelta(t, 0.0, logs[0], 1e-6)
	assert.InDelta(t, 1.0, logs[1], 1e-5)

	z := rawF32(t, tensor.Shape{2}, []float32{4, 9})
	assert.Equal(t, []float32{2, 3}, backend.Sqrt(z).AsFloat32())
}

func TestActivations(t *testing.T) {
	backend := cpu.New()
	x := rawF32(t, tensor.Shape{3}, []float32{-1, 0, 2})

	assert.Equal(t, []float32{0, 0, 2}, backend.ReLU(x).AsFloat32())

	sig := backend.Sigmoid(x).AsFloat32()
	assert.InDelta(t, 0.26894, sig[0], 1e-4)
	assert.InDelta(t, 0.5, sig[1], 1e-6)
	assert.InDelta(t, 0.88080, sig[2], 1e-4)

	tanh := backend.Tanh(x).AsFloat32()
	assert.InDelta(t, -0.76159, tanh[0], 1e-4)
	assert.InDelta(t, 0.0, tanh[1], 1e-6)

	grad := rawF32(t, tensor.Shape{3}, []float32{1, 1, 1})
	reluGrad := backend.ReLUGrad(x, grad).AsFloat32()
	assert.Equal(t, []float32{0, 0, 1}, reluGrad)
}

func TestReduce(t *testing.T) {
	backend := cpu.New()
	x := rawF32(t, tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})

	total := backend.Sum(x)
	assert.Equal(t, float32(21), total.AsFloat32()[0])

	rows := backend.SumDim(x, 1, false)
	assert.True(t, rows.Shape().Equal(tensor.Shape{2}))
	assert.Equal(t, []float32{6, 15}, rows.AsFloat32())

	cols := backend.SumDim(x, 0, false)
	assert.Equal(t, []float32{5, 7, 9}, cols.AsFloat32())

	kept := backend.SumDim(x, 1, true)
	assert.True(t, kept.Shape().Equal(tensor.Shape{2, 1}))

	mean := backend.MeanDim(x, 1, false)
	assert.Equal(t, []float32{2, 5}, mean.AsFloat32())
}

func TestArgmax(t *testing.T) {
	backend := cpu.New()
	x := rawF32(t, tensor.Shape{2, 3}, []float32{1, 5, 2, 7, 0, 3})

	am := backend.Argmax(x, 1)
	assert.Equal(t, tensor.Int64, am.DType())
	assert.Equal(t, []int64{1, 0}, am.AsInt64())
}

func TestSoftmax(t *testing.T) {
	backend := cpu.New()
	x := rawF32(t, tensor.Shape{2, 3}, []float32{1, 2, 3, 1000, 1000, 1000})

	sm := backend.Softmax(x, 1).AsFloat32()

	// Rows sum to one and ordering is preserved.
	assert.InDelta(t, 1.0, sm[0]+sm[1]+sm[2], 1e-5)
	assert.Greater(t, sm[2], sm[1])
	assert.Greater(t, sm[1], sm[0])

	// Max subtraction keeps large logits finite.
	for _, v := range sm[3:] {
		assert.InDelta(t, 1.0/3.0, v, 1e-5)
		assert.False(t, math.IsNaN(float64(v)))
	}
}

func TestReshapeTranspose(t *testing.T) {
	backend := cpu.New()
	x := rawF32(t, tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})

	r := backend.Reshape(x, tensor.Shape{3, 2})
	assert.True(t, r.Shape().Equal(tensor.Shape{3, 2}))
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, r.AsFloat32())

	tr := backend.Transpose(x)
	assert.True(t, tr.Shape().Equal(tensor.Shape{3, 2}))
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, tr.AsFloat32())
}

func TestGatherRows(t *testing.T) {
	backend := cpu.New()
	x := rawF32(t, tensor.Shape{3, 2}, []float32{1, 2, 3, 4, 5, 6})

	out := backend.GatherRows(x, rawI32(t, []int32{2, 0, 2}))
	assert.True(t, out.Shape().Equal(tensor.Shape{3, 2}))
	assert.Equal(t, []float32{5, 6, 1, 2, 5, 6}, out.AsFloat32())
}

func TestGatherRows_OutOfRangePanics(t *testing.T) {
	backend := cpu.New()
	x := rawF32(t, tensor.Shape{2, 2}, []float32{1, 2, 3, 4})
	assert.Panics(t, func() { backend.GatherRows(x, rawI32(t, []int32{2})) })
}

func TestScatterAddRows(t *testing.T) {
	backend := cpu.New()
	dst := rawF32(t, tensor.Shape{3, 2}, []float32{1, 1, 1, 1, 1, 1})
	values := rawF32(t, tensor.Shape{3, 2}, []float32{10, 10, 1, 2, 20, 20})

	// Duplicate index 0 accumulates.
	backend.ScatterAddRows(dst, rawI32(t, []int32{0, 1, 0}), values)
	assert.Equal(t, []float32{31, 31, 2, 3, 1, 1}, dst.AsFloat32())
}

func TestEmbedding(t *testing.T) {
	backend := cpu.New()
	weight := rawF32(t, tensor.Shape{4, 3}, []float32{
		0, 0, 0,
		1, 1, 1,
		2, 2, 2,
		3, 3, 3,
	})

	out := backend.Embedding(weight, rawI32(t, []int32{3, 1}))
	assert.True(t, out.Shape().Equal(tensor.Shape{2, 3}))
	assert.Equal(t, []float32{3, 3, 3, 1, 1, 1}, out.AsFloat32())
}
