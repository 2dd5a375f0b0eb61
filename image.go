package faceprep

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedFormat is returned when the output file extension has no encoder.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// encoders maps the lower cased output file extensions to the image encoders.
var encoders = map[string]func(*bytes.Buffer, image.Image) error{
	".jpg":  encodeJPEG,
	".jpeg": encodeJPEG,
	".png": func(w *bytes.Buffer, img image.Image) error {
		return png.Encode(w, img)
	},
	".gif":  encodeGIF,
	".bmp": func(w *bytes.Buffer, img image.Image) error {
		return bmp.Encode(w, img)
	},
	".tif":  encodeTIFF,
	".tiff": encodeTIFF,
}

// jpegQuality matches the usual default of image dataset tooling.
const jpegQuality = 95

func encodeJPEG(w *bytes.Buffer, img image.Image) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality})
}

// encodeGIF writes gray frames with a 256 level gray palette, so no dithering happens.
func encodeGIF(w *bytes.Buffer, img image.Image) error {
	g, ok := img.(*image.Gray)
	if !ok {
		return gif.Encode(w, img, nil)
	}
	pal := make(color.Palette, 256)
	for i := range pal {
		pal[i] = color.Gray{Y: uint8(i)}
	}
	b := g.Bounds()
	pm := image.NewPaletted(b, pal)
	for y := 0; y < b.Dy(); y++ {
		si := g.PixOffset(b.Min.X, b.Min.Y+y)
		copy(pm.Pix[y*pm.Stride:y*pm.Stride+b.Dx()], g.Pix[si:si+b.Dx()])
	}
	return gif.Encode(w, pm, nil)
}

func encodeTIFF(w *bytes.Buffer, img image.Image) error {
	return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
}

// IsSupportedOutput reports whether an encoder exists for the file extension of path.
func IsSupportedOutput(path string) bool {
	_, ok := encoders[strings.ToLower(filepath.Ext(path))]
	return ok
}

// decodeImg opens and decodes the image file found at path.
func decodeImg(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("could not decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// encodeImg encodes the image in the format implied by the extension of path.
func encodeImg(path string, img image.Image) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(path))
	encode, ok := encoders[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	var buf bytes.Buffer
	if err := encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeImg encodes the image and replaces the content of the file found at path.
// Nothing is written if the encoding fails.
func writeImg(path string, img image.Image) error {
	data, err := encodeImg(path, img)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("unable to create the destination file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("unable to write the destination file: %w", err)
	}
	return f.Close()
}
