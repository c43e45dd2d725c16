package transform

import (
	"errors"
	"image"
	"image/color"
	"math"
	"slices"

	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/floats"

	"finetune-forge/internal/tensor"
)

// Grid views a flat row-major pixel buffer as a single channel image. The
// buffer is shared, not copied.
func Grid(pix []uint8, height, width int) *image.Gray {
	return &image.Gray{Pix: pix, Stride: width, Rect: image.Rect(0, 0, width, height)}
}

// GrayToRGB repeats a single channel into three identical channels.
// Images that already carry colour are returned unchanged.
func GrayToRGB() ImageStep {
	return func(img image.Image) image.Image {
		if !isGray(img) {
			return img
		}
		b := img.Bounds()
		dst := image.NewRGBA(b)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
				dst.SetRGBA(x, y, color.RGBA{R: g.Y, G: g.Y, B: g.Y, A: 0xff})
			}
		}
		return dst
	}
}

// Resize scales img so its shorter side equals size, keeping aspect ratio.
func Resize(size int) ImageStep {
	return func(img image.Image) image.Image {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w == 0 || h == 0 {
			return img
		}
		var ow, oh int
		if w <= h {
			ow, oh = size, size*h/w
		} else {
			ow, oh = size*w/h, size
		}
		if ow == w && oh == h {
			return img
		}
		dst := newLike(img, image.Rect(0, 0, ow, oh))
		draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		return dst
	}
}

// CenterCrop cuts a size×size square out of the middle of img. Sources
// smaller than size are zero padded.
func CenterCrop(size int) ImageStep {
	return func(img image.Image) image.Image {
		b := img.Bounds()
		if b.Dx() == size && b.Dy() == size {
			return img
		}
		x0 := int(math.Round(float64(b.Dx()-size) / 2))
		y0 := int(math.Round(float64(b.Dy()-size) / 2))
		dst := newLike(img, image.Rect(0, 0, size, size))
		draw.Draw(dst, dst.Bounds(), img, image.Pt(b.Min.X+x0, b.Min.Y+y0), draw.Src)
		return dst
	}
}

// ToTensor converts img to a CHW tensor with values scaled to [0,1].
// Grey images yield one channel, everything else three.
func ToTensor(img image.Image) tensor.Tensor {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if g, ok := img.(*image.Gray); ok {
		t := tensor.New(1, h, w)
		for y := 0; y < h; y++ {
			row := g.Pix[g.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := 0; x < w; x++ {
				t.Data[y*w+x] = float64(row[x]) / 255
			}
		}
		return t
	}
	if isGray(img) {
		t := tensor.New(1, h, w)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				g := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
				t.Data[y*w+x] = float64(g.Y) / 65535
			}
		}
		return t
	}
	t := tensor.New(3, h, w)
	plane := h * w
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			off := y*w + x
			t.Data[off] = float64(r) / 65535
			t.Data[plane+off] = float64(g) / 65535
			t.Data[2*plane+off] = float64(bl) / 65535
		}
	}
	return t
}

// Normalize subtracts mean and divides by std for each channel of a CHW tensor.
func Normalize(mean, std []float64) TensorStep {
	mean, std = slices.Clone(mean), slices.Clone(std)
	return func(t tensor.Tensor) (tensor.Tensor, error) {
		if len(mean) != len(std) {
			return tensor.Tensor{}, errors.New("normalize: mean and std lengths differ")
		}
		if t.Dims() != 3 || t.Shape[0] != len(mean) {
			want := []int{len(mean), -1, -1}
			return tensor.Tensor{}, &tensor.ShapeError{Expected: want, Actual: t.Shape}
		}
		out := t.Clone()
		plane := t.Shape[1] * t.Shape[2]
		for c := range mean {
			if std[c] == 0 {
				return tensor.Tensor{}, errors.New("normalize: zero standard deviation")
			}
			ch := out.Data[c*plane : (c+1)*plane]
			floats.AddConst(-mean[c], ch)
			floats.Scale(1/std[c], ch)
		}
		return out, nil
	}
}

// ExpectShape fails unless the tensor has exactly the given shape.
func ExpectShape(shape ...int) TensorStep {
	shape = slices.Clone(shape)
	return func(t tensor.Tensor) (tensor.Tensor, error) {
		if !slices.Equal(t.Shape, shape) {
			return tensor.Tensor{}, &tensor.ShapeError{Expected: shape, Actual: t.Shape}
		}
		return t, nil
	}
}

func isGray(img image.Image) bool {
	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		return true
	}
	return false
}

func newLike(img image.Image, r image.Rectangle) draw.Image {
	if isGray(img) {
		return image.NewGray(r)
	}
	return image.NewRGBA(r)
}
