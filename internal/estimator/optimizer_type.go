package estimator

import (
	"fmt"
	"strings"

	"github.com/fengrk/pymltools/internal/nn"
	"github.com/fengrk/pymltools/internal/optim"
	"github.com/fengrk/pymltools/internal/tensor"
)

// OptimizerType selects the optimizer a model function builds for its
// train op.
type OptimizerType string

// Supported optimizer types.
const (
	OptimizerSGD        OptimizerType = "sgd"
	OptimizerAdam       OptimizerType = "adam"
	OptimizerMaskedAdam OptimizerType = "masked_adam"
)

// ParseOptimizerType parses a case-insensitive optimizer name.
func ParseOptimizerType(s string) (OptimizerType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sgd":
		return OptimizerSGD, nil
	case "adam":
		return OptimizerAdam, nil
	case "masked_adam", "maskedadam", "masked-adam":
		return OptimizerMaskedAdam, nil
	default:
		return "", fmt.Errorf("unknown optimizer type %q (want sgd, adam or masked_adam)", s)
	}
}

// String returns the canonical optimizer name.
func (t OptimizerType) String() string {
	return string(t)
}

// UnmarshalYAML parses the optimizer name from a YAML scalar.
func (t *OptimizerType) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseOptimizerType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// newOptimizer constructs the optimizer for a model function's train op.
func newOptimizer[B tensor.Backend](t OptimizerType, lr float32, params []*nn.Parameter[B], backend B) (optim.Optimizer, error) {
	switch t {
	case OptimizerSGD:
		return optim.NewSGD(params, optim.SGDConfig{LR: lr}, backend), nil
	case OptimizerAdam:
		return optim.NewAdam(params, optim.AdamConfig{LR: lr}, backend), nil
	case OptimizerMaskedAdam:
		return optim.NewMaskedAdam(params, optim.AdamConfig{LR: lr}, backend), nil
	default:
		return nil, fmt.Errorf("unknown optimizer type %q", t)
	}
}
