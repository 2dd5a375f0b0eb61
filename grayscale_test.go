package faceprep

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	imgWidth  = 10
	imgHeight = 10
)

func TestGrayscale_UniformColor(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, imgWidth, imgHeight))
	for i := 0; i < img.Bounds().Dx(); i++ {
		for j := 0; j < img.Bounds().Dy(); j++ {
			img.Set(i, j, color.RGBA{177, 177, 177, 255})
		}
	}

	gray := Grayscale(img)
	assert.Equal(t, image.Rect(0, 0, imgWidth, imgHeight), gray.Bounds())
	for _, px := range gray.Pix {
		assert.Equal(t, uint8(177), px)
	}
}

func TestGrayscale_LumaWeights(t *testing.T) {
	testCases := []struct {
		name string
		c    color.NRGBA
		want uint8
	}{
		{"red", color.NRGBA{R: 255, A: 255}, 76},
		{"green", color.NRGBA{G: 255, A: 255}, 150},
		{"blue", color.NRGBA{B: 255, A: 255}, 29},
		{"white", color.NRGBA{R: 255, G: 255, B: 255, A: 255}, 255},
		{"black", color.NRGBA{A: 255}, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
			for i := 0; i < 4; i++ {
				img.SetNRGBA(i%2, i/2, tc.c)
			}
			assert.Equal(t, tc.want, Grayscale(img).GrayAt(1, 1).Y)

			// The generic path must agree with the NRGBA fast path.
			rgba := image.NewRGBA(img.Bounds())
			for i := 0; i < 4; i++ {
				rgba.Set(i%2, i/2, tc.c)
			}
			assert.Equal(t, tc.want, Grayscale(rgba).GrayAt(0, 0).Y)
		})
	}
}

func TestGrayscale_YCbCrUsesLumaPlane(t *testing.T) {
	img := image.NewYCbCr(image.Rect(0, 0, 8, 6), image.YCbCrSubsampleRatio420)
	for i := range img.Y {
		img.Y[i] = uint8(i * 3)
	}
	for i := range img.Cb {
		img.Cb[i], img.Cr[i] = 90, 200
	}

	gray := Grayscale(img)
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			assert.Equal(t, img.Y[img.YOffset(x, y)], gray.GrayAt(x, y).Y)
		}
	}
}

func TestGrayscale_MovesOriginToZero(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = uint8(i)
	}
	sub := img.SubImage(image.Rect(1, 1, 3, 3)).(*image.Gray)

	gray := Grayscale(sub)
	assert.Equal(t, image.Rect(0, 0, 2, 2), gray.Bounds())
	assert.Equal(t, []uint8{5, 6, 9, 10}, gray.Pix)

	// A gray frame at the origin is used as it is.
	assert.Same(t, img, Grayscale(img))
}
