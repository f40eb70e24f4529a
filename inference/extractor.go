// Package inference runs a feature backbone over a directory of images and
// collects one embedding row per image.
package inference

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neurlang/imgembed/datasets/imagedir"
	"github.com/neurlang/imgembed/embedding"
	"gorgonia.org/tensor"
)

// Net maps a [N, 3, H, W] batch to [N, OutDim] features.
type Net interface {
	Forward(x *tensor.Dense) (*tensor.Dense, error)
	OutDim() int
}

// Extractor embeds image files with Net.
type Extractor struct {
	Net    Net
	Images imagedir.Options

	// BatchSize is the number of images per forward pass; 0 puts every image
	// in a single batch.
	BatchSize int

	Log *slog.Logger
}

func (e *Extractor) log() *slog.Logger {
	if e.Log == nil {
		return slog.Default()
	}
	return e.Log
}

// Run embeds every file of dir in lexical order. An empty directory yields an
// empty set of width Net.OutDim().
func (e *Extractor) Run(ctx context.Context, dir string) (*embedding.Set, error) {
	paths, err := imagedir.List(dir, e.Images.SkipHidden)
	if err != nil {
		return nil, err
	}
	e.log().Info("listed images", "dir", dir, "count", len(paths))
	return e.Embed(ctx, paths)
}

// Embed embeds paths; row i of the result belongs to paths[i]. Any
// undecodable file fails the whole run.
func (e *Extractor) Embed(ctx context.Context, paths []string) (*embedding.Set, error) {
	if e.Net == nil {
		return nil, fmt.Errorf("inference: no network")
	}
	if e.BatchSize < 0 {
		return nil, fmt.Errorf("inference: negative batch size %d", e.BatchSize)
	}
	dim := e.Net.OutDim()
	set := embedding.New(dim)
	if len(paths) == 0 {
		return set, nil
	}

	size := e.BatchSize
	if size == 0 || size > len(paths) {
		size = len(paths)
	}
	batches := (len(paths) + size - 1) / size
	for b := 0; b < batches; b++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		chunk := paths[b*size : min((b+1)*size, len(paths))]

		x, err := imagedir.Batch(chunk, e.Images)
		if err != nil {
			return nil, fmt.Errorf("inference: %w", err)
		}
		y, err := e.Net.Forward(x)
		if err != nil {
			return nil, fmt.Errorf("inference: batch %d: %w", b, err)
		}
		if shape := y.Shape(); len(shape) != 2 || shape[0] != len(chunk) || shape[1] != dim {
			return nil, fmt.Errorf("inference: batch %d: output shape %v, want [%d %d]", b, []int(shape), len(chunk), dim)
		}
		out := y.Float32s()
		for i, p := range chunk {
			if err := set.Append(p, out[i*dim:(i+1)*dim]); err != nil {
				return nil, err
			}
		}
		e.log().Debug("embedded batch", "batch", b+1, "of", batches, "images", len(chunk), "took", time.Since(start))
	}
	return set, nil
}

// EmbedFile embeds a single image.
func (e *Extractor) EmbedFile(ctx context.Context, path string) ([]float32, error) {
	set, err := e.Embed(ctx, []string{path})
	if err != nil {
		return nil, err
	}
	return set.Vectors[0], nil
}
