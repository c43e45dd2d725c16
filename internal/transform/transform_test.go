package transform

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finetune-forge/internal/tensor"
)

func gradient(h, w int) []uint8 {
	pix := make([]uint8, h*w)
	for i := range pix {
		pix[i] = uint8(i % 256)
	}
	return pix
}

func TestGridSharesBuffer(t *testing.T) {
	pix := gradient(2, 3)
	g := Grid(pix, 2, 3)
	assert.Equal(t, image.Rect(0, 0, 3, 2), g.Bounds())
	assert.Equal(t, uint8(4), g.GrayAt(1, 1).Y)
}

func TestToTensorGray(t *testing.T) {
	pix := []uint8{0, 255, 51, 102}
	x := ToTensor(Grid(pix, 2, 2))
	assert.Equal(t, []int{1, 2, 2}, x.Shape)
	assert.InDelta(t, 1.0, x.At(0, 0, 1), 1e-9)
	assert.InDelta(t, 0.2, x.At(0, 1, 0), 1e-9)
}

func TestGrayToRGBRepeatsChannel(t *testing.T) {
	src := Grid([]uint8{10, 20, 30, 40}, 2, 2)
	rgb := GrayToRGB()(src)
	x := ToTensor(rgb)
	require.Equal(t, []int{3, 2, 2}, x.Shape)
	for c := 0; c < 3; c++ {
		assert.Equal(t, x.At(0, 1, 1), x.At(c, 1, 1))
	}
	// source untouched
	assert.Equal(t, uint8(40), src.Pix[3])
}

func TestResizeShorterSide(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 40, 20))
	out := Resize(10)(src)
	assert.Equal(t, 20, out.Bounds().Dx())
	assert.Equal(t, 10, out.Bounds().Dy())

	gray := Resize(56)(Grid(gradient(28, 28), 28, 28))
	assert.Equal(t, image.Rect(0, 0, 56, 56), gray.Bounds())
	assert.Equal(t, color.GrayModel, gray.ColorModel())
}

func TestCenterCrop(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 4, 4))
	src.SetGray(1, 1, color.Gray{Y: 200})
	out := CenterCrop(2)(src)
	require.Equal(t, image.Rect(0, 0, 2, 2), out.Bounds())
	assert.Equal(t, uint8(200), out.(*image.Gray).GrayAt(0, 0).Y)

	padded := CenterCrop(6)(src)
	require.Equal(t, image.Rect(0, 0, 6, 6), padded.Bounds())
	assert.Equal(t, uint8(0), padded.(*image.Gray).GrayAt(0, 0).Y)
	assert.Equal(t, uint8(200), padded.(*image.Gray).GrayAt(2, 2).Y)
}

func TestNormalize(t *testing.T) {
	x, _ := tensor.FromData([]float64{0.5, 0.5, 1, 1}, 2, 1, 2)
	y, err := Normalize([]float64{0.5, 0}, []float64{0.5, 2})(x)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0.5, 0.5}, y.Data)
	assert.Equal(t, 0.5, x.Data[0], "input must not be mutated")

	_, err = Normalize([]float64{0}, []float64{1})(x)
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
}

func TestImageNetPipeline(t *testing.T) {
	p := ImageNet(256, 224)
	out, err := p.Apply(Grid(gradient(28, 28), 28, 28))
	require.NoError(t, err)
	assert.Equal(t, []int{3, 224, 224}, out.Shape)
	for _, v := range out.Data {
		require.False(t, math.IsNaN(v))
	}

	again, err := p.Func()(Grid(gradient(28, 28), 28, 28))
	require.NoError(t, err)
	assert.True(t, out.Equal(again), "pipeline must be deterministic")
}

func TestExpectShapeFailure(t *testing.T) {
	p := Pipeline{Tensors: []TensorStep{ExpectShape(3, 8, 8)}}
	_, err := p.Apply(Grid(gradient(4, 4), 4, 4))
	require.Error(t, err)
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)

	_, err = p.Apply(nil)
	assert.Error(t, err)
}
