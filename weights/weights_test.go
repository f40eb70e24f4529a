package weights

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() StateDict {
	return StateDict{
		"conv1.weight":            {Shape: []int{2, 1, 1, 1}, Data: []float32{0.25, -1.5}},
		"bn1.running_var":         {Shape: []int{2}, Data: []float32{1, 3.0e-7}},
		"bn1.num_batches_tracked": {Shape: []int{}, Data: []float32{42}},
	}
}

func TestCompressedIsByteStable(t *testing.T) {
	var a, b bytes.Buffer
	require.NoError(t, sample().WriteCompressed(&a))
	require.NoError(t, sample().WriteCompressed(&b))
	assert.Equal(t, a.Bytes(), b.Bytes())

	sd, err := ReadCompressed(&a)
	require.NoError(t, err)
	assert.Equal(t, sample().Keys(), sd.Keys())
	assert.Equal(t, []float32{1, 3.0e-7}, sd["bn1.running_var"].Data)
	assert.Empty(t, sd["bn1.num_batches_tracked"].Shape)
}

func TestLoadDispatchesOnExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model"+CompressedExt)
	require.NoError(t, sample().WriteCompressedFile(path))

	sd, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, sd, 3)

	_, err = Load(filepath.Join(dir, "model.onnx"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(dir, "missing.pt"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk"+CompressedExt), []byte("junk"), 0o644))
	_, err = Load(filepath.Join(dir, "junk"+CompressedExt))
	assert.Error(t, err)
}

func TestLoadRejectsInconsistentParam(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad"+CompressedExt)
	sd := StateDict{"w": {Shape: []int{3}, Data: []float32{1, 2}}}
	require.NoError(t, sd.WriteCompressedFile(path))
	_, err := Load(path)
	assert.Error(t, err)
}

// testdata/checkpoint.pt is written by testdata/make_checkpoint.py.
func TestLoadPyTorchCheckpoint(t *testing.T) {
	sd, err := Load(filepath.Join("testdata", "checkpoint.pt"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "n"}, sd.Keys())

	assert.Equal(t, []int{2, 3}, sd["a"].Shape)
	assert.Equal(t, []float32{0, 1, 2, 3, 4, 5}, sd["a"].Data)

	// transposed view of a's storage
	assert.Equal(t, []int{3, 2}, sd["b"].Shape)
	assert.Equal(t, []float32{0, 3, 1, 4, 2, 5}, sd["b"].Data)

	assert.Equal(t, []int{2}, sd["c"].Shape)
	assert.Equal(t, []float32{2, 3}, sd["c"].Data)

	assert.Empty(t, sd["n"].Shape)
	assert.Equal(t, []float32{42}, sd["n"].Data)

	data, err := sd.Lookup("b", []int{3, 2})
	require.NoError(t, err)
	assert.Equal(t, sd["b"].Data, data)
}

func TestLookupChecksShape(t *testing.T) {
	sd := sample()
	v, err := sd.Lookup("conv1.weight", []int{2, 1, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -1.5}, v)

	_, err = sd.Lookup("conv1.weight", []int{1, 2, 1, 1})
	assert.Error(t, err)
	_, err = sd.Lookup("fc.weight", []int{1})
	assert.Error(t, err)
}

func FuzzReadCompressed(f *testing.F) {
	var buf bytes.Buffer
	_ = sample().WriteCompressed(&buf)
	f.Add(buf.Bytes())
	f.Fuzz(func(t *testing.T, data []byte) {
		// must never panic on arbitrary input
		_, _ = ReadCompressed(bytes.NewReader(data))
	})
}
