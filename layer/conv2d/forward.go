package conv2d

import "fmt"
import "github.com/neurlang/imgembed/layer"
import "gonum.org/v1/gonum/blas"
import "gonum.org/v1/gonum/blas/blas32"
import "gorgonia.org/tensor"

// OutputSize returns the spatial output size for an input of size n.
func (f *Conv2D) OutputSize(n int) int {
	return (n+2*f.padding-f.kernel)/f.stride + 1
}

// Forward convolves every image of the batch x. Each image is unfolded with
// im2col and multiplied by the weight matrix, so an output row never depends
// on other images in the batch.
func (f *Conv2D) Forward(x *tensor.Dense) (*tensor.Dense, error) {
	n, c, h, w, err := layer.Dims4(x)
	if err != nil {
		return nil, fmt.Errorf("Conv2D: %w", err)
	}
	if c != f.in {
		return nil, fmt.Errorf("Conv2D: input has %d channels, want %d", c, f.in)
	}
	if h+2*f.padding < f.kernel || w+2*f.padding < f.kernel {
		return nil, fmt.Errorf("Conv2D: input %dx%d is smaller than kernel %d", h, w, f.kernel)
	}
	oh, ow := f.OutputSize(h), f.OutputSize(w)
	rows := c * f.kernel * f.kernel
	cols := oh * ow

	src := x.Float32s()
	dst := make([]float32, n*f.out*cols)
	col := make([]float32, rows*cols)

	weight := blas32.General{Rows: f.out, Cols: rows, Stride: rows, Data: f.weight}
	unfolded := blas32.General{Rows: rows, Cols: cols, Stride: cols, Data: col}

	for i := 0; i < n; i++ {
		f.im2col(src[i*c*h*w:(i+1)*c*h*w], c, h, w, oh, ow, col)
		out := blas32.General{Rows: f.out, Cols: cols, Stride: cols, Data: dst[i*f.out*cols : (i+1)*f.out*cols]}
		blas32.Gemm(blas.NoTrans, blas.NoTrans, 1, weight, unfolded, 0, out)
	}
	return layer.NewDense(dst, n, f.out, oh, ow), nil
}

// im2col lays out every receptive field of img as a column of col.
func (f *Conv2D) im2col(img []float32, c, h, w, oh, ow int, col []float32) {
	k := f.kernel
	cols := oh * ow
	for ch := 0; ch < c; ch++ {
		plane := img[ch*h*w : (ch+1)*h*w]
		for ki := 0; ki < k; ki++ {
			for kj := 0; kj < k; kj++ {
				row := col[((ch*k+ki)*k+kj)*cols:][:cols]
				for oy := 0; oy < oh; oy++ {
					iy := oy*f.stride - f.padding + ki
					if iy < 0 || iy >= h {
						for ox := 0; ox < ow; ox++ {
							row[oy*ow+ox] = 0
						}
						continue
					}
					for ox := 0; ox < ow; ox++ {
						ix := ox*f.stride - f.padding + kj
						if ix < 0 || ix >= w {
							row[oy*ow+ox] = 0
						} else {
							row[oy*ow+ox] = plane[iy*w+ix]
						}
					}
				}
			}
		}
	}
}
