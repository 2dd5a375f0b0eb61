package faceprep

import (
	"image"
	"image/color"
)

// Grayscale converts the image to a single channel frame with the min-point at (0, 0).
// The luma weights are the BT.601 ones: 0.299 R + 0.587 G + 0.114 B.
func Grayscale(src image.Image) *image.Gray {
	b := src.Bounds()
	if g, ok := src.(*image.Gray); ok && b.Min.X == 0 && b.Min.Y == 0 {
		return g
	}

	dx, dy := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, dx, dy))

	switch src := src.(type) {
	case *image.Gray:
		for y := 0; y < dy; y++ {
			si := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+dx], src.Pix[si:si+dx])
		}
	case *image.YCbCr:
		// The Y plane of a JFIF image already holds the BT.601 luma.
		for y := 0; y < dy; y++ {
			si := src.YOffset(b.Min.X, b.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+dx], src.Y[si:si+dx])
		}
	case *image.NRGBA:
		for y := 0; y < dy; y++ {
			si := src.PixOffset(b.Min.X, b.Min.Y+y)
			di := y * dst.Stride
			for x := 0; x < dx; x++ {
				// Alpha is ignored, like a decoder dropping it into a 3 channel buffer.
				dst.Pix[di+x] = luma(uint32(src.Pix[si]), uint32(src.Pix[si+1]), uint32(src.Pix[si+2]))
				si += 4
			}
		}
	default:
		for y := 0; y < dy; y++ {
			di := y * dst.Stride
			for x := 0; x < dx; x++ {
				c := color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
				dst.Pix[di+x] = luma(uint32(c.R), uint32(c.G), uint32(c.B))
			}
		}
	}
	return dst
}

// luma computes the rounded weighted sum of 8 bit channel values.
func luma(r, g, b uint32) uint8 {
	return uint8((299*r + 587*g + 114*b + 500) / 1000)
}
