package faceprep

import (
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/esimov/faceprep/utils"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	utils.SetColor(false)
	os.Exit(m.Run())
}

// brightDetector reports the bounding box of the pixels brighter than threshold.
// The synthetic "faces" of the tests are bright squares on a dark background.
type brightDetector struct {
	threshold uint8
}

func (d brightDetector) Detect(frame *image.Gray) ([]Rect, error) {
	b := frame.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, -1, -1

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if frame.GrayAt(x, y).Y <= d.threshold {
				continue
			}
			minX, minY = utils.Min(minX, x), utils.Min(minY, y)
			maxX, maxY = utils.Max(maxX, x), utils.Max(maxY, y)
		}
	}
	if maxX < 0 {
		return nil, nil
	}
	return []Rect{{X: minX - b.Min.X, Y: minY - b.Min.Y, Width: maxX - minX + 1, Height: maxY - minY + 1}}, nil
}

// fixedDetector returns the same regions, or error, for every frame.
type fixedDetector struct {
	rects []Rect
	err   error
	calls atomic.Int32
}

func (d *fixedDetector) Detect(frame *image.Gray) ([]Rect, error) {
	d.calls.Add(1)
	return d.rects, d.err
}

// faceImage draws a bright square, half the size of the shortest edge, in the middle of a dark image.
func faceImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.RGBA{30, 30, 30, 255}}, image.Point{}, draw.Src)

	side := utils.Min(w, h) / 2
	face := image.Rect((w-side)/2, (h-side)/2, (w+side)/2, (h+side)/2)
	draw.Draw(img, face, &image.Uniform{color.RGBA{250, 240, 230, 255}}, image.Point{}, draw.Src)
	return img
}

// blankImage returns an image without anything a detector could take for a face.
func blankImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.RGBA{40, 60, 80, 255}}, image.Point{}, draw.Src)
	return img
}

func saveImage(t *testing.T, path string, img image.Image) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		require.NoError(t, png.Encode(f, img))
	default:
		require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 95}))
	}
}

func loadImage(t *testing.T, path string) (image.Image, string) {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	img, format, err := image.Decode(f)
	require.NoError(t, err)
	return img, format
}
