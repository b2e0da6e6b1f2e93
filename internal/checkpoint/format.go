// Package checkpoint persists training state to disk.
//
// A checkpoint file carries the model state dict, the optimizer state
// dict, and the training counters needed to resume: global step, epoch
// and last loss. The binary layout is:
//
//	magic "PYMT" | version u32 | flags u32 | header size u64 |
//	JSON header | padding to 64-byte alignment |
//	tensor data section | SHA-256 of the data section
//
// Tensors are written in sorted name order so identical state produces
// identical files.
package checkpoint

import (
	"time"

	"github.com/fengrk/pymltools/internal/tensor"
)

// Format constants.
const (
	MagicBytes      = "PYMT"
	FormatVersion   = 1
	HeaderAlignment = 64 // Align tensor data to 64 bytes
	ChecksumSize    = 32 // SHA-256
)

// Flags for the checkpoint format.
const (
	FlagHasOptimizer uint32 = 1 << 0 // optimizer state included
	FlagHasMetadata  uint32 = 1 << 1 // custom metadata included
)

// Name prefixes separating the two state dicts in the tensor section.
const (
	modelPrefix = "model."
	optimPrefix = "optim."
)

// Header is the JSON header of a checkpoint file.
type Header struct {
	FormatVersion int               `json:"format_version"`
	ToolVersion   string            `json:"tool_version"`
	CreatedAt     time.Time         `json:"created_at"`
	Training      TrainingMeta      `json:"training"`
	Tensors       []TensorMeta      `json:"tensors"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// TrainingMeta carries the counters needed to resume training.
type TrainingMeta struct {
	Step          int64   `json:"step"`
	Epoch         int     `json:"epoch"`
	Loss          float64 `json:"loss"`
	OptimizerType string  `json:"optimizer_type"`
}

// TensorMeta describes one tensor in the data section.
type TensorMeta struct {
	Name   string `json:"name"`
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // Bytes from the start of the data section
	Size   int64  `json:"size"`
}

// Data type string constants for serialization.
const (
	dtypeFloat32 = "float32"
	dtypeFloat64 = "float64"
	dtypeInt32   = "int32"
	dtypeInt64   = "int64"
	dtypeUint8   = "uint8"
	dtypeBool    = "bool"
)

func dtypeToString(dt tensor.DataType) string {
	switch dt {
	case tensor.Float32:
		return dtypeFloat32
	case tensor.Float64:
		return dtypeFloat64
	case tensor.Int32:
		return dtypeInt32
	case tensor.Int64:
		return dtypeInt64
	case tensor.Uint8:
		return dtypeUint8
	case tensor.Bool:
		return dtypeBool
	default:
		return "unknown"
	}
}

func stringToDtype(s string) (tensor.DataType, bool) {
	switch s {
	case dtypeFloat32:
		return tensor.Float32, true
	case dtypeFloat64:
		return tensor.Float64, true
	case dtypeInt32:
		return tensor.Int32, true
	case dtypeInt64:
		return tensor.Int64, true
	case dtypeUint8:
		return tensor.Uint8, true
	case dtypeBool:
		return tensor.Bool, true
	default:
		return 0, false
	}
}
