// Package estimator implements the glue between a user-defined network
// and the training machinery: model functions for the triplet and
// softmax heads, mode dispatch, streaming metrics, and a train /
// evaluate / predict driver with checkpointing.
package estimator

// ModeKeys names the three phases a model function can be called in.
type ModeKeys int

const (
	// Train runs the network in training mode and builds a train op.
	Train ModeKeys = iota
	// Eval runs inference and computes loss plus eval metrics.
	Eval
	// Predict runs inference and emits predictions only.
	Predict
)

// String returns the mode name.
func (m ModeKeys) String() string {
	switch m {
	case Train:
		return "train"
	case Eval:
		return "eval"
	case Predict:
		return "predict"
	default:
		return "unknown"
	}
}
