package embedding

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sbinet/npyio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendKeepsRowsAligned(t *testing.T) {
	s := New(3)
	require.NoError(t, s.Append("uploader/a.jpg", []float32{1, 2, 3}))
	assert.Error(t, s.Append("uploader/b.jpg", []float32{1, 2}))
	assert.Equal(t, 1, s.Len())
	assert.Len(t, s.Vectors, 1)

	v, ok := s.Row("uploader/a.jpg")
	assert.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, v)
	_, ok = s.Row("uploader/b.jpg")
	assert.False(t, ok)

	s.Paths = append(s.Paths, "orphan")
	assert.Error(t, s.Validate())
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	matrix := filepath.Join(dir, "image_features_embedding.npy")
	paths := filepath.Join(dir, "img_files.json")

	s := New(4)
	require.NoError(t, s.Append("uploader/x.png", []float32{0.5, -1, 3.25, 1e-7}))
	require.NoError(t, s.Append("uploader/y.png", []float32{0, 0, 0, 7}))
	require.NoError(t, Save(s, matrix, paths))

	got, err := Load(matrix, paths)
	require.NoError(t, err)
	assert.Equal(t, s.Dim, got.Dim)
	assert.Equal(t, s.Paths, got.Paths)
	assert.Equal(t, s.Vectors, got.Vectors)
}

func TestSaveEmptySet(t *testing.T) {
	dir := t.TempDir()
	matrix := filepath.Join(dir, "m.npy")
	paths := filepath.Join(dir, "p.json")
	require.NoError(t, Save(New(512), matrix, paths))

	buf, err := os.ReadFile(paths)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(buf))

	got, err := Load(matrix, paths)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
	assert.Equal(t, 512, got.Dim)

	f, err := os.Open(matrix)
	require.NoError(t, err)
	defer f.Close()
	r, err := npyio.NewReader(f)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 512}, r.Header.Descr.Shape)
}

func TestLoadDetectsMisalignedFiles(t *testing.T) {
	dir := t.TempDir()
	matrix := filepath.Join(dir, "m.npy")
	paths := filepath.Join(dir, "p.json")

	s := New(2)
	require.NoError(t, s.Append("a", []float32{1, 2}))
	require.NoError(t, s.Append("b", []float32{3, 4}))
	require.NoError(t, Save(s, matrix, paths))
	require.NoError(t, os.WriteFile(paths, []byte(`["a"]`), 0o644))

	_, err := Load(matrix, paths)
	assert.Error(t, err)
}

func TestVectorBlob(t *testing.T) {
	v := []float32{0, 1.5, -2.25, 3.75}
	got, err := DecodeVector(EncodeVector(v))
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = DecodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
	assert.Nil(t, EncodeVector(nil))
}
