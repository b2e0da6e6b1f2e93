package tensor

// Backend defines the interface that compute backends must implement.
// Backends handle the actual computation for tensor operations; the
// typed Tensor methods dispatch into it.
type Backend interface {
	// Element-wise binary operations with NumPy-style broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// Matrix operations.
	MatMul(a, b *RawTensor) *RawTensor

	// Shape operations.
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor

	// Scalar operations (element-wise with a scalar operand).
	MulScalar(x *RawTensor, scalar any) *RawTensor
	AddScalar(x *RawTensor, scalar any) *RawTensor
	SubScalar(x *RawTensor, scalar any) *RawTensor
	DivScalar(x *RawTensor, scalar any) *RawTensor

	// Math operations (element-wise).
	Exp(x *RawTensor) *RawTensor
	Log(x *RawTensor) *RawTensor
	Sqrt(x *RawTensor) *RawTensor

	// Softmax along a dimension, numerically stabilised.
	Softmax(x *RawTensor, dim int) *RawTensor

	// Reduction operations.
	Sum(x *RawTensor) *RawTensor
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor
	MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor
	Argmax(x *RawTensor, dim int) *RawTensor

	// Row indexing operations over 2D tensors. GatherRows selects whole
	// rows by index; ScatterAddRows accumulates value rows into the
	// destination rows in place (duplicate indices accumulate). These are
	// the primitives behind embedding lookup and sparse optimizer updates.
	GatherRows(x *RawTensor, indices *RawTensor) *RawTensor
	ScatterAddRows(dst *RawTensor, indices *RawTensor, values *RawTensor)

	// Embedding lookup: rows of weight selected by an index tensor of
	// any shape, producing [indices..., embedDim].
	Embedding(weight, indices *RawTensor) *RawTensor

	// Metadata.
	Name() string
	Device() Device
}
