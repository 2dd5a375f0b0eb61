package faceprep

import (
	"image"
	"math"
)

// Normalize maps every pixel of the frame into the unit interval.
// The values are returned row by row, without stride padding.
func Normalize(src *image.Gray) []float64 {
	b := src.Bounds()
	dx, dy := b.Dx(), b.Dy()
	out := make([]float64, 0, dx*dy)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := src.Pix[src.PixOffset(b.Min.X, y):]
		for x := 0; x < dx; x++ {
			out = append(out, float64(row[x])/255.0)
		}
	}
	return out
}

// Quantize is the inverse of Normalize: it scales the values back to the
// 0..255 range, rounds them to the nearest integer and clamps out of range values.
func Quantize(values []float64, width, height int) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, width, height))
	for i := 0; i < width*height && i < len(values); i++ {
		v := math.Round(values[i] * 255.0)
		switch {
		case v < 0 || math.IsNaN(v):
			v = 0
		case v > 255:
			v = 255
		}
		dst.Pix[i] = uint8(v)
	}
	return dst
}
