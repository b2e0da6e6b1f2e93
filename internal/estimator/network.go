package estimator

import (
	"github.com/fengrk/pymltools/internal/nn"
	"github.com/fengrk/pymltools/internal/tensor"
)

// Network is the user-supplied model body a model function wraps. It is
// the same contract as nn.Module plus a training flag on Forward, for
// networks whose behavior differs between training and inference.
type Network[B tensor.Backend] interface {
	Forward(x *tensor.Tensor[float32, B], training bool) *tensor.Tensor[float32, B]
	Backward(gradOut *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]
	Parameters() []*nn.Parameter[B]
	StateDict() map[string]*tensor.RawTensor
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// moduleNetwork adapts an nn.Module, which has no training/inference
// distinction, into a Network.
type moduleNetwork[B tensor.Backend] struct {
	nn.Module[B]
}

// WrapModule lifts an nn.Module into a Network. The training flag is
// ignored.
func WrapModule[B tensor.Backend](m nn.Module[B]) Network[B] {
	return moduleNetwork[B]{m}
}

func (w moduleNetwork[B]) Forward(x *tensor.Tensor[float32, B], _ bool) *tensor.Tensor[float32, B] {
	return w.Module.Forward(x)
}
