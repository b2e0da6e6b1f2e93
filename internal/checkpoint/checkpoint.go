package checkpoint

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fengrk/pymltools/internal/tensor"
)

const toolVersion = "0.3.0"

// maxHeaderSize bounds the JSON header to keep a corrupted size field
// from triggering a huge allocation.
const maxHeaderSize = 64 << 20

// State is the complete training state held by one checkpoint.
type State struct {
	Step          int64
	Epoch         int
	Loss          float64
	OptimizerType string
	Model         map[string]*tensor.RawTensor
	Optimizer     map[string]*tensor.RawTensor
	Metadata      map[string]string
}

// Save writes the state to path, replacing any existing file. The write
// goes through a temp file and rename so a crash never leaves a
// truncated checkpoint behind.
func Save(path string, state *State) error {
	buf, err := encode(state)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit checkpoint: %w", err)
	}
	return nil
}

// SaveStep writes the state into dir under a step-numbered filename and
// returns the path.
func SaveStep(dir string, state *State) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create checkpoint dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("ckpt-%09d.pymt", state.Step))
	if err := Save(path, state); err != nil {
		return "", err
	}
	return path, nil
}

// LatestPath returns the checkpoint in dir with the highest step number.
// Returns ErrNoCheckpoint if the directory has none.
func LatestPath(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoCheckpoint
		}
		return "", fmt.Errorf("read checkpoint dir: %w", err)
	}

	latest := ""
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "ckpt-") || !strings.HasSuffix(name, ".pymt") {
			continue
		}
		if name > latest {
			latest = name
		}
	}
	if latest == "" {
		return "", ErrNoCheckpoint
	}
	return filepath.Join(dir, latest), nil
}

// Load reads and validates a checkpoint file.
func Load(path string) (*State, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	return decode(buf)
}

// encode serializes the state into the on-disk byte layout.
func encode(state *State) ([]byte, error) {
	names, data := collectTensors(state)

	header := Header{
		FormatVersion: FormatVersion,
		ToolVersion:   toolVersion,
		CreatedAt:     time.Now().UTC(),
		Training: TrainingMeta{
			Step:          state.Step,
			Epoch:         state.Epoch,
			Loss:          state.Loss,
			OptimizerType: state.OptimizerType,
		},
		Metadata: state.Metadata,
	}

	var offset int64
	header.Tensors = make([]TensorMeta, 0, len(names))
	for _, name := range names {
		raw := data[name]
		size := int64(raw.ByteSize())
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  dtypeToString(raw.DType()),
			Shape:  []int(raw.Shape()),
			Offset: offset,
			Size:   size,
		})
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("marshal header: %w", err)
	}

	flags := uint32(0)
	if len(state.Optimizer) > 0 {
		flags |= FlagHasOptimizer
	}
	if len(state.Metadata) > 0 {
		flags |= FlagHasMetadata
	}

	var buf bytes.Buffer
	buf.WriteString(MagicBytes)
	binary.Write(&buf, binary.LittleEndian, uint32(FormatVersion))
	binary.Write(&buf, binary.LittleEndian, flags)
	binary.Write(&buf, binary.LittleEndian, uint64(len(headerJSON)))
	buf.Write(headerJSON)

	// Pad so the data section starts on an aligned boundary.
	if pad := (HeaderAlignment - buf.Len()%HeaderAlignment) % HeaderAlignment; pad > 0 {
		buf.Write(make([]byte, pad))
	}

	dataStart := buf.Len()
	for _, name := range names {
		buf.Write(data[name].Data())
	}

	sum := sha256.Sum256(buf.Bytes()[dataStart:])
	buf.Write(sum[:])

	return buf.Bytes(), nil
}

// decode parses and validates the on-disk byte layout.
func decode(buf []byte) (*State, error) {
	if len(buf) < len(MagicBytes)+4+4+8 {
		return nil, ErrInvalidMagic
	}
	if string(buf[:len(MagicBytes)]) != MagicBytes {
		return nil, ErrInvalidMagic
	}
	version := binary.LittleEndian.Uint32(buf[4:8])
	if version != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	headerSize := binary.LittleEndian.Uint64(buf[12:20])
	if headerSize > maxHeaderSize {
		return nil, ErrHeaderTooLarge
	}

	headerEnd := 20 + int(headerSize)
	if headerEnd > len(buf) {
		return nil, ErrHeaderTooLarge
	}
	var header Header
	if err := json.Unmarshal(buf[20:headerEnd], &header); err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}

	dataStart := headerEnd + (HeaderAlignment-headerEnd%HeaderAlignment)%HeaderAlignment
	if len(buf) < dataStart+ChecksumSize {
		return nil, ErrOutOfBounds
	}
	dataSection := buf[dataStart : len(buf)-ChecksumSize]

	var stored [ChecksumSize]byte
	copy(stored[:], buf[len(buf)-ChecksumSize:])
	if sha256.Sum256(dataSection) != stored {
		return nil, ErrChecksumMismatch
	}

	state := &State{
		Step:          header.Training.Step,
		Epoch:         header.Training.Epoch,
		Loss:          header.Training.Loss,
		OptimizerType: header.Training.OptimizerType,
		Model:         make(map[string]*tensor.RawTensor),
		Optimizer:     make(map[string]*tensor.RawTensor),
		Metadata:      header.Metadata,
	}

	for _, meta := range header.Tensors {
		if meta.Offset < 0 || meta.Size < 0 || meta.Offset+meta.Size > int64(len(dataSection)) {
			return nil, fmt.Errorf("%w: tensor %q", ErrOutOfBounds, meta.Name)
		}
		dtype, ok := stringToDtype(meta.DType)
		if !ok {
			return nil, fmt.Errorf("tensor %q: unknown dtype %q", meta.Name, meta.DType)
		}
		raw, err := tensor.NewRaw(tensor.Shape(meta.Shape), dtype, tensor.CPU)
		if err != nil {
			return nil, fmt.Errorf("tensor %q: %w", meta.Name, err)
		}
		if int64(raw.ByteSize()) != meta.Size {
			return nil, fmt.Errorf("tensor %q: size %d does not match shape %v", meta.Name, meta.Size, meta.Shape)
		}
		copy(raw.Data(), dataSection[meta.Offset:meta.Offset+meta.Size])

		switch {
		case strings.HasPrefix(meta.Name, modelPrefix):
			state.Model[strings.TrimPrefix(meta.Name, modelPrefix)] = raw
		case strings.HasPrefix(meta.Name, optimPrefix):
			state.Optimizer[strings.TrimPrefix(meta.Name, optimPrefix)] = raw
		default:
			return nil, fmt.Errorf("tensor %q: unknown name prefix", meta.Name)
		}
	}

	return state, nil
}

// collectTensors flattens the two state dicts into one prefixed,
// name-sorted tensor list.
func collectTensors(state *State) ([]string, map[string]*tensor.RawTensor) {
	data := make(map[string]*tensor.RawTensor, len(state.Model)+len(state.Optimizer))
	for name, raw := range state.Model {
		data[modelPrefix+name] = raw
	}
	for name, raw := range state.Optimizer {
		data[optimPrefix+name] = raw
	}

	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, data
}
