// Package imagedir turns a directory of image files into batches of
// normalized float32 tensors.
package imagedir

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/neurlang/imgembed/layer"
	"github.com/neurlang/imgembed/parallel"
	"gorgonia.org/tensor"
)

// DefaultSize is the side of the square the images are resized to.
const DefaultSize = 224

// ImageNet channel statistics, used when Options.Normalize is set.
var (
	ImageNetMean = [3]float32{0.485, 0.456, 0.406}
	ImageNetStd  = [3]float32{0.229, 0.224, 0.225}
)

// Options controls how images are listed and converted.
type Options struct {
	// Size is the side of the square every image is resized to.
	Size int

	// Normalize subtracts Mean and divides by Std per channel after scaling to [0, 1].
	Normalize bool
	Mean, Std [3]float32

	// SkipHidden ignores file names starting with a dot.
	SkipHidden bool

	// Workers bounds the number of images decoded concurrently.
	Workers int
}

// DefaultOptions returns 224x224, no normalization, hidden files skipped.
func DefaultOptions() Options {
	return Options{
		Size:       DefaultSize,
		Mean:       ImageNetMean,
		Std:        ImageNetStd,
		SkipHidden: true,
		Workers:    1,
	}
}

// Validate checks the options for values the loader cannot work with.
func (o Options) Validate() error {
	if o.Size <= 0 {
		return fmt.Errorf("imagedir: size %d must be positive", o.Size)
	}
	if o.Normalize {
		for c, s := range o.Std {
			if s == 0 {
				return fmt.Errorf("imagedir: std of channel %d is zero", c)
			}
		}
	}
	return nil
}

// List returns the regular files of dir, joined with dir, in lexical order.
// Subdirectories are not descended into.
func List(dir string, skipHidden bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("imagedir: %w", err)
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if skipHidden && strings.HasPrefix(e.Name(), ".") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if e.IsDir() {
			continue
		}
		if e.Type()&os.ModeSymlink != 0 {
			fi, err := os.Stat(path)
			if err != nil {
				return nil, fmt.Errorf("imagedir: %w", err)
			}
			if !fi.Mode().IsRegular() {
				continue
			}
		} else if !e.Type().IsRegular() {
			continue
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Batch loads paths into a tensor of shape [N, 3, Size, Size]; image i of
// the batch is paths[i]. Decoding runs on up to o.Workers goroutines, each
// writing only its own slot. The first failing path (by index) aborts the batch.
func Batch(paths []string, o Options) (*tensor.Dense, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("imagedir: empty batch")
	}
	per := 3 * o.Size * o.Size
	data := make([]float32, len(paths)*per)
	err := parallel.ForEachErr(len(paths), o.Workers, func(i int) error {
		return LoadInto(data[i*per:(i+1)*per], paths[i], o)
	})
	if err != nil {
		return nil, err
	}
	return layer.NewDense(data, len(paths), 3, o.Size, o.Size), nil
}
