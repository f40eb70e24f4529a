package imagedir

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Decode reads any registered image format (JPEG, PNG, GIF, BMP, TIFF, WebP).
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	return img, err
}

// Load decodes the image at path and converts it to a CHW float32 slice of
// length 3*Size*Size.
func Load(path string, o Options) ([]float32, error) {
	dst := make([]float32, 3*o.Size*o.Size)
	if err := LoadInto(dst, path, o); err != nil {
		return nil, err
	}
	return dst, nil
}

// LoadInto is Load writing into dst.
func LoadInto(dst []float32, path string, o Options) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("imagedir: %w", err)
	}
	defer f.Close()
	img, err := Decode(f)
	if err != nil {
		return fmt.Errorf("imagedir: decode %s: %w", path, err)
	}
	if err := ToTensor(dst, img, o); err != nil {
		return fmt.Errorf("imagedir: %s: %w", path, err)
	}
	return nil
}

// RGB converts img to an opaque RGB image. Alpha is dropped rather than
// composited, and grayscale or paletted images are expanded to three channels.
func RGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			i := out.PixOffset(x-b.Min.X, y-b.Min.Y)
			out.Pix[i+0] = c.R
			out.Pix[i+1] = c.G
			out.Pix[i+2] = c.B
			out.Pix[i+3] = 0xff
		}
	}
	return out
}

// Resize scales img to size x size with bilinear interpolation, ignoring the aspect ratio.
func Resize(img *image.RGBA, size int) *image.RGBA {
	if img.Bounds().Dx() == size && img.Bounds().Dy() == size {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// ToTensor writes img into dst in CHW order, scaled to [0, 1] and optionally normalized.
func ToTensor(dst []float32, img image.Image, o Options) error {
	if len(dst) != 3*o.Size*o.Size {
		return fmt.Errorf("destination holds %d values, want %d", len(dst), 3*o.Size*o.Size)
	}
	if img.Bounds().Empty() {
		return fmt.Errorf("empty image")
	}
	rgb := Resize(RGB(img), o.Size)
	plane := o.Size * o.Size
	for y := 0; y < o.Size; y++ {
		for x := 0; x < o.Size; x++ {
			i := rgb.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				v := float32(rgb.Pix[i+c]) / 255
				if o.Normalize {
					v = (v - o.Mean[c]) / o.Std[c]
				}
				dst[c*plane+y*o.Size+x] = v
			}
		}
	}
	return nil
}
