package faceprep

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
)

// Default output size of the processed face.
const (
	DefaultWidth  = 128
	DefaultHeight = 128
)

// ErrNoFace is returned when the detector proposes no face region.
var ErrNoFace = errors.New("no face detected")

// Status is the outcome of processing one file.
type Status int

const (
	Processed Status = iota
	SkippedNoFace
	SkippedUnreadable
	Failed
)

func (s Status) String() string {
	switch s {
	case Processed:
		return "processed"
	case SkippedNoFace:
		return "no_face"
	case SkippedUnreadable:
		return "unreadable"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Selection is the policy used to choose one face among the detected regions.
type Selection int

const (
	// SelectFirst takes the first region, in the order the detector returned them.
	SelectFirst Selection = iota
	// SelectLargest takes the region with the biggest area.
	SelectLargest
)

// filters holds the resampling filters accepted by ParseFilter.
var filters = map[string]imaging.ResampleFilter{
	"nearest":    imaging.NearestNeighbor,
	"box":        imaging.Box,
	"linear":     imaging.Linear,
	"catmullrom": imaging.CatmullRom,
	"lanczos":    imaging.Lanczos,
}

// ParseFilter returns the resampling filter registered under name.
func ParseFilter(name string) (imaging.ResampleFilter, error) {
	f, ok := filters[strings.ToLower(name)]
	if !ok {
		return imaging.ResampleFilter{}, fmt.Errorf("unknown interpolation %q", name)
	}
	return f, nil
}

// Processor options
type Processor struct {
	Detector Detector
	// Filter is the resampling filter of the resize step.
	// The zero value is a nearest neighbour resize; NewProcessor sets imaging.Linear.
	Filter imaging.ResampleFilter
	// BlurSigma, when positive, smooths the frame handed to the detector.
	// The crop is always taken from the unblurred frame.
	BlurSigma float64
	Select    Selection
	Width     int
	Height    int
}

// NewProcessor returns a processor producing DefaultWidth x DefaultHeight
// faces with a bilinear resize.
func NewProcessor(d Detector) *Processor {
	return &Processor{
		Detector: d,
		Filter:   imaging.Linear,
		Width:    DefaultWidth,
		Height:   DefaultHeight,
	}
}

// Validate checks the processor options.
func (p *Processor) Validate() error {
	if p.Detector == nil {
		return errors.New("a face detector is required")
	}
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("invalid output size %dx%d", p.Width, p.Height)
	}
	if p.BlurSigma < 0 {
		return fmt.Errorf("blur sigma cannot be negative, got %.2f", p.BlurSigma)
	}
	return nil
}

// Process converts the source image to grayscale, detects a face on it,
// then returns the face cropped, resized and passed through the
// normalize/quantize round trip.
func (p *Processor) Process(src image.Image) (*image.Gray, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	frame := Grayscale(src)

	face, err := p.detect(frame)
	if err != nil {
		return nil, err
	}

	crop := imaging.Crop(frame, face.Rectangle(frame.Bounds().Min))
	resized := nrgbaToGray(imaging.Resize(crop, p.Width, p.Height, p.Filter))

	return Quantize(Normalize(resized), p.Width, p.Height), nil
}

// ProcessFile runs Process over the image file found at in and writes the
// result to out, in the format implied by the out file extension.
// The returned error explains any status other than Processed.
func (p *Processor) ProcessFile(in, out string) (Status, error) {
	img, err := decodeImg(in)
	if err != nil {
		return SkippedUnreadable, err
	}

	face, err := p.Process(img)
	if err != nil {
		if errors.Is(err, ErrNoFace) {
			return SkippedNoFace, err
		}
		return Failed, err
	}

	if err := writeImg(out, face); err != nil {
		return Failed, err
	}
	return Processed, nil
}

// detect runs the detector and picks one face region according to the selection policy.
func (p *Processor) detect(frame *image.Gray) (Rect, error) {
	input := frame
	if p.BlurSigma > 0 {
		input = nrgbaToGray(imaging.Blur(frame, p.BlurSigma))
	}

	faces, err := p.Detector.Detect(input)
	if err != nil {
		return Rect{}, fmt.Errorf("face detection failed: %w", err)
	}

	var (
		face  Rect
		found bool
	)
	for _, r := range faces {
		// Detectors are expected to clamp their output; anything else is dropped here.
		r, ok := clampRect(r, frame.Bounds().Dx(), frame.Bounds().Dy())
		if !ok {
			continue
		}
		if !found {
			face, found = r, true
			if p.Select == SelectFirst {
				break
			}
			continue
		}
		if r.Area() > face.Area() {
			face = r
		}
	}
	if !found {
		return Rect{}, ErrNoFace
	}
	return face, nil
}

// nrgbaToGray takes the red channel of an image whose channels are known to be equal.
func nrgbaToGray(src *image.NRGBA) *image.Gray {
	b := src.Bounds()
	dx, dy := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, dx, dy))

	for y := 0; y < dy; y++ {
		si := src.PixOffset(b.Min.X, b.Min.Y+y)
		di := y * dst.Stride
		for x := 0; x < dx; x++ {
			dst.Pix[di+x] = src.Pix[si]
			si += 4
		}
	}
	return dst
}
