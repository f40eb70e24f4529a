package inference

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/neurlang/imgembed/datasets/imagedir"
	"github.com/neurlang/imgembed/net/resnet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

const testSize = 32

func writeImages(t *testing.T, dir string, n int) []string {
	t.Helper()
	var paths []string
	for i := 0; i < n; i++ {
		img := image.NewNRGBA(image.Rect(0, 0, 20+i, 24))
		for y := 0; y < img.Bounds().Dy(); y++ {
			for x := 0; x < img.Bounds().Dx(); x++ {
				img.Set(x, y, color.NRGBA{R: uint8(x * 11 * (i + 1)), G: uint8(y * 7), B: uint8(40 * i), A: 255})
			}
		}
		p := filepath.Join(dir, fmt.Sprintf("img%02d.png", i))
		f, err := os.Create(p)
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, img))
		require.NoError(t, f.Close())
		paths = append(paths, p)
	}
	return paths
}

func extractor(batch int) *Extractor {
	net := resnet.MustNew(resnet.DefaultArch)
	net.Init(1, false)
	o := imagedir.DefaultOptions()
	o.Size = testSize
	o.Workers = 3
	return &Extractor{Net: net, Images: o, BatchSize: batch}
}

func TestRunAlignsRowsWithPaths(t *testing.T) {
	dir := t.TempDir()
	paths := writeImages(t, dir, 5)

	set, err := extractor(2).Run(context.Background(), dir)
	require.NoError(t, err)
	require.NoError(t, set.Validate())
	assert.Equal(t, paths, set.Paths)
	assert.Equal(t, 512, set.Dim)
	assert.Len(t, set.Vectors, 5)

	for i, p := range paths {
		single, err := extractor(0).EmbedFile(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, single, set.Vectors[i], "row %d", i)
	}
}

func TestRunIsDeterministicAcrossBatchSizes(t *testing.T) {
	dir := t.TempDir()
	writeImages(t, dir, 4)

	a, err := extractor(0).Run(context.Background(), dir)
	require.NoError(t, err)
	b, err := extractor(0).Run(context.Background(), dir)
	require.NoError(t, err)
	c, err := extractor(3).Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, a.Vectors, b.Vectors)
	assert.Equal(t, a.Vectors, c.Vectors)
}

func TestRunSingleImageKeepsWidth(t *testing.T) {
	dir := t.TempDir()
	writeImages(t, dir, 1)
	set, err := extractor(0).Run(context.Background(), dir)
	require.NoError(t, err)
	require.Equal(t, 1, set.Len())
	assert.Len(t, set.Vectors[0], 512)
}

func TestRunEmptyDirectory(t *testing.T) {
	set, err := extractor(0).Run(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
	assert.Equal(t, 512, set.Dim)
}

func TestRunFailsOnUndecodableFile(t *testing.T) {
	dir := t.TempDir()
	writeImages(t, dir, 2)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("hello"), 0o644))

	_, err := extractor(0).Run(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "readme.txt")

	_, err = extractor(0).Run(context.Background(), filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestRunHonorsCancellation(t *testing.T) {
	dir := t.TempDir()
	writeImages(t, dir, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := extractor(1).Run(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}

type badNet struct{}

func (badNet) OutDim() int { return 4 }

func (badNet) Forward(x *tensor.Dense) (*tensor.Dense, error) {
	return tensor.New(tensor.WithShape(x.Shape()[0], 3), tensor.WithBacking(make([]float32, x.Shape()[0]*3))), nil
}

func TestEmbedChecksOutputShape(t *testing.T) {
	dir := t.TempDir()
	paths := writeImages(t, dir, 1)
	e := extractor(0)
	e.Net = badNet{}
	_, err := e.Embed(context.Background(), paths)
	assert.Error(t, err)

	e.BatchSize = -1
	_, err = e.Embed(context.Background(), paths)
	assert.Error(t, err)
}
