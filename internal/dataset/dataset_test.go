package dataset_test

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/fengrk/pymltools/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeNPY serialises a minimal npy v1.0 stream: magic, padded header
// dict, little-endian payload.
func writeNPY(t *testing.T, w *zip.Writer, name, descr string, shape []int, payload []byte) {
	t.Helper()

	shapeStr := ""
	for _, s := range shape {
		shapeStr += fmt.Sprintf("%d, ", s)
	}
	header := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': (%s), }", descr, shapeStr)
	// Pad with spaces so magic+len+header is a multiple of 64, ending in \n.
	total := 10 + len(header) + 1
	pad := (64 - total%64) % 64
	for i := 0; i < pad; i++ {
		header += " "
	}
	header += "\n"

	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY")
	buf.WriteByte(1)
	buf.WriteByte(0)
	binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)
	buf.Write(payload)

	f, err := w.Create(name)
	require.NoError(t, err)
	_, err = f.Write(buf.Bytes())
	require.NoError(t, err)
}

func floatPayload(vals []float32) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, vals)
	return buf.Bytes()
}

func int64Payload(vals []int64) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, vals)
	return buf.Bytes()
}

func writeNPZ(t *testing.T, path string, build func(w *zip.Writer)) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	build(zw)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestFromNPZ_Float32(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.npz")
	writeNPZ(t, path, func(w *zip.Writer) {
		writeNPY(t, w, "x.npy", "<f4", []int{3, 2}, floatPayload([]float32{1, 2, 3, 4, 5, 6}))
		writeNPY(t, w, "y.npy", "<i8", []int{3}, int64Payload([]int64{0, 1, 2}))
	})

	ds, err := dataset.FromNPZ(path)
	require.NoError(t, err)

	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, 2, ds.Dim)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, ds.X)
	assert.Equal(t, []int64{0, 1, 2}, ds.Labels)
	assert.Equal(t, []string{"sample-000000", "sample-000001", "sample-000002"}, ds.Filenames)
}

func TestFromNPZ_Uint8Scaling(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.npz")
	writeNPZ(t, path, func(w *zip.Writer) {
		writeNPY(t, w, "x.npy", "|u1", []int{2, 2}, []byte{0, 51, 102, 255})
	})

	ds, err := dataset.FromNPZ(path)
	require.NoError(t, err)

	assert.Equal(t, 2, ds.Len())
	assert.Nil(t, ds.Labels)
	assert.InDeltaSlice(t, []float32{0, 0.2, 0.4, 1.0}, ds.X, 1e-6)
}

func TestFromNPZ_FlattensTrailingAxes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.npz")
	vals := make([]float32, 2*3*4)
	for i := range vals {
		vals[i] = float32(i)
	}
	writeNPZ(t, path, func(w *zip.Writer) {
		writeNPY(t, w, "x.npy", "<f4", []int{2, 3, 4}, floatPayload(vals))
	})

	ds, err := dataset.FromNPZ(path)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())
	assert.Equal(t, 12, ds.Dim)
}

func TestNew_Validation(t *testing.T) {
	_, err := dataset.New([]float32{1, 2, 3}, nil, nil, 2)
	assert.Error(t, err)

	_, err = dataset.New([]float32{1, 2, 3, 4}, []int64{0}, nil, 2)
	assert.Error(t, err)

	ds, err := dataset.New([]float32{1, 2, 3, 4}, []int64{0, 1}, nil, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())
}

func TestBatches_DropTail(t *testing.T) {
	ds, err := dataset.New(
		[]float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		[]int64{0, 1, 2, 3, 4},
		nil, 2,
	)
	require.NoError(t, err)

	// Training pass drops the ragged tail.
	it := ds.Batches(dataset.BatchConfig{BatchSize: 2, DropTail: true})
	count := 0
	for {
		batch, ok := it.Next()
		if !ok {
			break
		}
		assert.Equal(t, 2, batch.X.Shape()[0])
		count++
	}
	assert.Equal(t, 2, count)

	// Eval pass keeps it.
	it = ds.Batches(dataset.BatchConfig{BatchSize: 2})
	sizes := []int{}
	for {
		batch, ok := it.Next()
		if !ok {
			break
		}
		sizes = append(sizes, batch.X.Shape()[0])
	}
	assert.Equal(t, []int{2, 2, 1}, sizes)
}

func TestBatches_ShuffleIsSeededAndComplete(t *testing.T) {
	n, dim := 20, 1
	x := make([]float32, n)
	labels := make([]int64, n)
	for i := range x {
		x[i] = float32(i)
		labels[i] = int64(i)
	}
	ds, err := dataset.New(x, labels, nil, dim)
	require.NoError(t, err)

	collect := func(seed int64) []float32 {
		var out []float32
		it := ds.Batches(dataset.BatchConfig{BatchSize: 7, Shuffle: true, Seed: seed})
		for {
			batch, ok := it.Next()
			if !ok {
				break
			}
			out = append(out, batch.X.AsFloat32()...)
			// Labels must travel with their features.
			for i, l := range batch.Labels.AsInt64() {
				assert.Equal(t, float32(l), batch.X.AsFloat32()[i])
			}
		}
		return out
	}

	a := collect(42)
	b := collect(42)
	c := collect(7)

	assert.Equal(t, a, b, "same seed must give the same order")
	assert.NotEqual(t, a, c, "different seeds should give different orders")

	// Every example appears exactly once.
	seen := make(map[float32]int)
	for _, v := range a {
		seen[v]++
	}
	assert.Len(t, seen, n)
}

func TestPasses_ReshufflesEachPass(t *testing.T) {
	n := 16
	x := make([]float32, n)
	for i := range x {
		x[i] = float32(i)
	}
	ds, err := dataset.New(x, nil, nil, 1)
	require.NoError(t, err)

	drain := func(it *dataset.Iterator) []float32 {
		var out []float32
		for {
			batch, ok := it.Next()
			if !ok {
				return out
			}
			out = append(out, batch.X.AsFloat32()...)
		}
	}

	cfg := dataset.BatchConfig{BatchSize: 4, Shuffle: true, Seed: 42}
	inputFn := ds.Passes(cfg)

	first, err := inputFn()
	require.NoError(t, err)
	second, err := inputFn()
	require.NoError(t, err)
	passA, passB := drain(first), drain(second)

	// Each pass uses its own seed, so epochs do not replay the same
	// batch order.
	assert.NotEqual(t, passA, passB)

	// The per-pass seed is the base seed plus the pass count, keeping
	// the whole run reproducible.
	assert.Equal(t, drain(ds.Batches(cfg)), passA)
	shifted := cfg
	shifted.Seed = cfg.Seed + 1
	assert.Equal(t, drain(ds.Batches(shifted)), passB)
}

func TestBatches_Filenames(t *testing.T) {
	ds, err := dataset.New([]float32{1, 2}, nil, []string{"a.png", "b.png"}, 1)
	require.NoError(t, err)

	it := ds.Batches(dataset.BatchConfig{BatchSize: 2})
	batch, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, []string{"a.png", "b.png"}, batch.Filenames)
	assert.Nil(t, batch.Labels)
}
