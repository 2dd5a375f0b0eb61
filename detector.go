package faceprep

import (
	_ "embed"
	"errors"
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/esimov/faceprep/utils"
	pigo "github.com/esimov/pigo/core"
)

//go:embed data/facefinder
var cascadeFile []byte

// Rect is a face region in grayscale frame coordinates.
type Rect struct {
	X, Y          int
	Width, Height int
}

// Rectangle converts the region to an image.Rectangle anchored at min.
func (r Rect) Rectangle(min image.Point) image.Rectangle {
	return image.Rect(min.X+r.X, min.Y+r.Y, min.X+r.X+r.Width, min.Y+r.Y+r.Height)
}

// Area returns the number of pixels covered by the region.
func (r Rect) Area() int {
	return r.Width * r.Height
}

// Detector proposes face regions on a grayscale frame.
// Implementations must be safe for concurrent use once constructed.
type Detector interface {
	Detect(frame *image.Gray) ([]Rect, error)
}

// DetectorParams holds the tunables of a cascade detector.
type DetectorParams struct {
	// ScaleFactor is the multiplier between two successive scanning scales.
	ScaleFactor float64
	// MinNeighbors is the number of overlapping raw detections a region needs to be reported.
	MinNeighbors int
	MinSize      int
	MaxSize      int
	// ShiftFactor moves the detection window by this fraction of its size.
	ShiftFactor  float64
	IoUThreshold float64
	// QThreshold drops clustered regions whose summed score is below it.
	QThreshold float64
	// Angle is the plane rotation of the scanned faces, in the 0..1 range (1 = 2π).
	Angle float64
}

// DefaultDetectorParams returns the parameters used when nothing else is configured.
func DefaultDetectorParams() DetectorParams {
	return DetectorParams{
		ScaleFactor:  1.3,
		MinNeighbors: 5,
		MinSize:      20,
		MaxSize:      1000,
		ShiftFactor:  0.1,
		IoUThreshold: 0.2,
		QThreshold:   5.0,
	}
}

// Validate reports the first parameter which would make the cascade scan
// misbehave (e.g. never advance to the next scale).
func (dp DetectorParams) Validate() error {
	switch {
	case dp.MinSize < 1:
		return fmt.Errorf("min size must be positive, got %d", dp.MinSize)
	case dp.MaxSize < dp.MinSize:
		return fmt.Errorf("max size %d is smaller than min size %d", dp.MaxSize, dp.MinSize)
	case int(float64(dp.MinSize)*dp.ScaleFactor) <= dp.MinSize:
		return fmt.Errorf("scale factor %.2f does not grow a %dpx window", dp.ScaleFactor, dp.MinSize)
	case dp.ShiftFactor <= 0 || dp.ShiftFactor > 1:
		return fmt.Errorf("shift factor must be in (0, 1], got %.2f", dp.ShiftFactor)
	case dp.MinNeighbors < 0:
		return fmt.Errorf("min neighbors cannot be negative, got %d", dp.MinNeighbors)
	case dp.Angle < 0 || dp.Angle > 1:
		return fmt.Errorf("angle must be in [0, 1], got %.2f", dp.Angle)
	}
	return nil
}

// PigoDetector runs a pigo cascade over the frame.
// The unpacked classifier is only read after construction.
type PigoDetector struct {
	classifier *pigo.Pigo
	params     DetectorParams
}

var _ Detector = (*PigoDetector)(nil)

// NewPigoDetector unpacks the binary cascade file.
func NewPigoDetector(cascade []byte, params DetectorParams) (det *PigoDetector, err error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(cascade) < 16 {
		return nil, errors.New("the cascade file is too short")
	}

	// Unpack indexes straight into the packet, a truncated file panics.
	defer func() {
		if r := recover(); r != nil {
			det, err = nil, fmt.Errorf("error unpacking the cascade file: %v", r)
		}
	}()

	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("error unpacking the cascade file: %w", err)
	}
	return &PigoDetector{classifier: classifier, params: params}, nil
}

// NewDefaultDetector builds a PigoDetector on the bundled facefinder cascade.
func NewDefaultDetector(params DetectorParams) (*PigoDetector, error) {
	return NewPigoDetector(cascadeFile, params)
}

// Detect implements Detector.
func (pd *PigoDetector) Detect(frame *image.Gray) ([]Rect, error) {
	b := frame.Bounds()
	cols, rows := b.Dx(), b.Dy()
	if cols == 0 || rows == 0 {
		return nil, nil
	}

	cp := pigo.CascadeParams{
		MinSize:     pd.params.MinSize,
		MaxSize:     utils.Min(pd.params.MaxSize, utils.Min(cols, rows)),
		ShiftFactor: pd.params.ShiftFactor,
		ScaleFactor: pd.params.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: frame.Pix[frame.PixOffset(b.Min.X, b.Min.Y):],
			Rows:   rows,
			Cols:   cols,
			Dim:    frame.Stride,
		},
	}
	dets := pd.classifier.RunCascade(cp, pd.params.Angle)

	var rects []Rect
	for _, c := range clusterDetections(dets, pd.params.IoUThreshold) {
		if c.neighbors < pd.params.MinNeighbors || float64(c.Q) < pd.params.QThreshold {
			continue
		}
		if r, ok := clampRect(detectionToRect(c.Detection), cols, rows); ok {
			rects = append(rects, r)
		}
	}
	return rects, nil
}

// cluster is a merged detection together with the number of raw detections it absorbed.
type cluster struct {
	pigo.Detection
	neighbors int
}

// clusterDetections merges the raw detections overlapping more than iouThreshold.
// Strongest detections seed the clusters, so the returned slice is ordered
// from the most to the least confident region.
func clusterDetections(dets []pigo.Detection, iouThreshold float64) []cluster {
	sorted := make([]pigo.Detection, len(dets))
	copy(sorted, dets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Q > sorted[j].Q
	})

	assigned := make([]bool, len(sorted))
	var clusters []cluster

	for i := range sorted {
		if assigned[i] {
			continue
		}
		var (
			r, c, s, n int
			q          float32
		)
		for j := range sorted {
			if assigned[j] {
				continue
			}
			if iou(sorted[i], sorted[j]) > iouThreshold {
				assigned[j] = true
				r += sorted[j].Row
				c += sorted[j].Col
				s += sorted[j].Scale
				q += sorted[j].Q
				n++
			}
		}
		if n > 0 {
			clusters = append(clusters, cluster{
				Detection: pigo.Detection{Row: r / n, Col: c / n, Scale: s / n, Q: q},
				neighbors: n,
			})
		}
	}
	return clusters
}

// iou returns the intersection over union of two square detections.
func iou(d1, d2 pigo.Detection) float64 {
	r1, c1, s1 := float64(d1.Row), float64(d1.Col), float64(d1.Scale)
	r2, c2, s2 := float64(d2.Row), float64(d2.Col), float64(d2.Scale)

	overRow := math.Max(0, math.Min(r1+s1/2, r2+s2/2)-math.Max(r1-s1/2, r2-s2/2))
	overCol := math.Max(0, math.Min(c1+s1/2, c2+s2/2)-math.Max(c1-s1/2, c2-s2/2))

	union := s1*s1 + s2*s2 - overRow*overCol
	if union <= 0 {
		return 0
	}
	return overRow * overCol / union
}

// detectionToRect converts a pigo detection (center + side) into a Rect.
func detectionToRect(d pigo.Detection) Rect {
	return Rect{
		X:      d.Col - d.Scale/2,
		Y:      d.Row - d.Scale/2,
		Width:  d.Scale,
		Height: d.Scale,
	}
}

// clampRect cuts the region to the frame bounds.
// It returns false if nothing of the region is left inside the frame.
func clampRect(r Rect, width, height int) (Rect, bool) {
	x0 := utils.Clamp(r.X, 0, width)
	y0 := utils.Clamp(r.Y, 0, height)
	x1 := utils.Clamp(r.X+r.Width, 0, width)
	y1 := utils.Clamp(r.Y+r.Height, 0, height)

	if x1 <= x0 || y1 <= y0 {
		return Rect{}, false
	}
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}, true
}
