package tensor_test

import (
	"testing"

	"github.com/fengrk/pymltools/internal/backend/cpu"
	"github.com/fengrk/pymltools/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape_NumElements(t *testing.T) {
	assert.Equal(t, 24, tensor.Shape{2, 3, 4}.NumElements())
	assert.Equal(t, 1, tensor.Shape{}.NumElements())
	assert.Equal(t, 0, tensor.Shape{3, 0}.NumElements())
}

func TestShape_ComputeStrides(t *testing.T) {
	assert.Equal(t, []int{12, 4, 1}, tensor.Shape{2, 3, 4}.ComputeStrides())
	assert.Equal(t, []int{1}, tensor.Shape{5}.ComputeStrides())
}

func TestShape_Validate(t *testing.T) {
	assert.NoError(t, tensor.Shape{2, 3}.Validate())
	assert.NoError(t, tensor.Shape{0}.Validate())
	assert.Error(t, tensor.Shape{2, -1}.Validate())
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		a, b, want tensor.Shape
		broadcast  bool
	}{
		{tensor.Shape{2, 3}, tensor.Shape{2, 3}, tensor.Shape{2, 3}, false},
		{tensor.Shape{3, 1}, tensor.Shape{3, 4}, tensor.Shape{3, 4}, true},
		{tensor.Shape{4}, tensor.Shape{2, 4}, tensor.Shape{2, 4}, true},
		{tensor.Shape{}, tensor.Shape{5}, tensor.Shape{5}, true},
	}
	for _, tc := range tests {
		got, broadcast, err := tensor.BroadcastShapes(tc.a, tc.b)
		require.NoError(t, err)
		assert.True(t, got.Equal(tc.want), "%v x %v -> %v, want %v", tc.a, tc.b, got, tc.want)
		assert.Equal(t, tc.broadcast, broadcast)
	}

	_, _, err := tensor.BroadcastShapes(tensor.Shape{2, 3}, tensor.Shape{4, 3})
	assert.Error(t, err)
}

func TestRawTensor_TypedViews(t *testing.T) {
	raw, err := tensor.NewRaw(tensor.Shape{2, 2}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)

	view := raw.AsFloat32()
	require.Len(t, view, 4)
	view[3] = 42

	// The view shares storage with the tensor bytes.
	assert.Equal(t, float32(42), raw.AsFloat32()[3])
	assert.Equal(t, 16, raw.ByteSize())
}

func TestRawTensor_ViewDTypeMismatchPanics(t *testing.T) {
	raw, err := tensor.NewRaw(tensor.Shape{2}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	assert.Panics(t, func() { raw.AsInt64() })
}

func TestRawTensor_Clone(t *testing.T) {
	raw, err := tensor.NewRaw(tensor.Shape{3}, tensor.Int64, tensor.CPU)
	require.NoError(t, err)
	raw.AsInt64()[0] = 7

	clone := raw.Clone()
	clone.AsInt64()[0] = 9

	assert.Equal(t, int64(7), raw.AsInt64()[0])
	assert.Equal(t, int64(9), clone.AsInt64()[0])
}

func TestRawTensor_WithShape(t *testing.T) {
	raw, err := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)

	reshaped, err := raw.WithShape(tensor.Shape{3, 2})
	require.NoError(t, err)
	assert.True(t, reshaped.Shape().Equal(tensor.Shape{3, 2}))

	_, err = raw.WithShape(tensor.Shape{4, 2})
	assert.Error(t, err)
}

func TestFromSlice_AtSet(t *testing.T) {
	backend := cpu.New()
	x, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	require.NoError(t, err)

	assert.Equal(t, float32(6), x.At(1, 2))
	x.Set(10, 0, 1)
	assert.Equal(t, float32(10), x.At(0, 1))
	assert.Equal(t, []float32{1, 10, 3, 4, 5, 6}, x.Data())

	_, err = tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{2, 2}, backend)
	assert.Error(t, err)
}

func TestScalar_Item(t *testing.T) {
	backend := cpu.New()
	s := tensor.Scalar(float32(3.5), backend)
	assert.Equal(t, float32(3.5), s.Item())
}

func TestCreation(t *testing.T) {
	backend := cpu.New()

	z := tensor.Zeros[float32](tensor.Shape{2, 2}, backend)
	assert.Equal(t, []float32{0, 0, 0, 0}, z.Data())

	o := tensor.Ones[float32](tensor.Shape{3}, backend)
	assert.Equal(t, []float32{1, 1, 1}, o.Data())

	f := tensor.Full(tensor.Shape{2}, float32(2.5), backend)
	assert.Equal(t, []float32{2.5, 2.5}, f.Data())

	r := tensor.Rand[float32](tensor.Shape{100}, backend)
	for _, v := range r.Data() {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.Less(t, v, float32(1))
	}
}

func TestTensor_CloneIndependent(t *testing.T) {
	backend := cpu.New()
	x, err := tensor.FromSlice([]float32{1, 2}, tensor.Shape{2}, backend)
	require.NoError(t, err)

	y := x.Clone()
	y.Set(5, 0)

	assert.Equal(t, float32(1), x.At(0))
	assert.Equal(t, float32(5), y.At(0))
}

func newSparse(t *testing.T, indices []int32, values []float32, dim int) *tensor.IndexedSlices {
	t.Helper()
	idx, err := tensor.NewRaw(tensor.Shape{len(indices)}, tensor.Int32, tensor.CPU)
	require.NoError(t, err)
	copy(idx.AsInt32(), indices)
	val, err := tensor.NewRaw(tensor.Shape{len(indices), dim}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(val.AsFloat32(), values)
	s, err := tensor.NewIndexedSlices(idx, val)
	require.NoError(t, err)
	return s
}

func TestIndexedSlices_Validation(t *testing.T) {
	idx, err := tensor.NewRaw(tensor.Shape{2}, tensor.Int32, tensor.CPU)
	require.NoError(t, err)
	val, err := tensor.NewRaw(tensor.Shape{3, 4}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)

	// Row count mismatch between indices and values.
	_, err = tensor.NewIndexedSlices(idx, val)
	assert.Error(t, err)
}

func TestIndexedSlices_Unique(t *testing.T) {
	s := newSparse(t, []int32{2, 0, 2}, []float32{
		1, 1,
		2, 2,
		3, 3,
	}, 2)

	u := s.Unique()
	assert.Equal(t, 2, u.Len())
	assert.Equal(t, 2, u.Dim())

	// First occurrence order is preserved and duplicate rows summed.
	assert.Equal(t, []int32{2, 0}, u.Indices.AsInt32())
	assert.Equal(t, []float32{4, 4, 2, 2}, u.Values.AsFloat32())
}

func TestIndexedSlices_UniqueAlreadyUnique(t *testing.T) {
	s := newSparse(t, []int32{1, 3}, []float32{1, 2, 3, 4}, 2)
	u := s.Unique()
	assert.Equal(t, []int32{1, 3}, u.Indices.AsInt32())
	assert.Equal(t, []float32{1, 2, 3, 4}, u.Values.AsFloat32())
}

func TestIndexedSlices_Dense(t *testing.T) {
	s := newSparse(t, []int32{1, 1, 3}, []float32{
		1, 2,
		10, 20,
		5, 6,
	}, 2)

	dense := s.Dense(4)
	assert.True(t, dense.Shape().Equal(tensor.Shape{4, 2}))
	assert.Equal(t, []float32{
		0, 0,
		11, 22,
		0, 0,
		5, 6,
	}, dense.AsFloat32())
}
