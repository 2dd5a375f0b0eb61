//go:build gocv
// +build gocv

package faceprep

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// HaarDetector runs an OpenCV Haar cascade (e.g. haarcascade_frontalface_default.xml).
// OpenCV's classifier is not safe for concurrent use, so every call takes the lock.
type HaarDetector struct {
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
	params     DetectorParams
}

var _ Detector = (*HaarDetector)(nil)

// NewHaarDetector loads the cascade XML file located at path.
func NewHaarDetector(path string, params DetectorParams) (*HaarDetector, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, fmt.Errorf("could not load the haar cascade file: %s", path)
	}
	return &HaarDetector{
		classifier: classifier,
		params:     params,
	}, nil
}

// Detect implements Detector.
func (hd *HaarDetector) Detect(frame *image.Gray) ([]Rect, error) {
	mat, err := gocv.ImageGrayToMatGray(frame)
	if err != nil {
		return nil, fmt.Errorf("could not convert the frame: %w", err)
	}
	defer mat.Close()

	hd.mu.Lock()
	found := hd.classifier.DetectMultiScaleWithParams(
		mat,
		hd.params.ScaleFactor,
		hd.params.MinNeighbors,
		0,
		image.Pt(hd.params.MinSize, hd.params.MinSize),
		image.Pt(hd.params.MaxSize, hd.params.MaxSize),
	)
	hd.mu.Unlock()

	cols, rows := frame.Bounds().Dx(), frame.Bounds().Dy()
	rects := make([]Rect, 0, len(found))
	for _, f := range found {
		r := Rect{X: f.Min.X, Y: f.Min.Y, Width: f.Dx(), Height: f.Dy()}
		if r, ok := clampRect(r, cols, rows); ok {
			rects = append(rects, r)
		}
	}
	return rects, nil
}

// Close releases the OpenCV classifier.
func (hd *HaarDetector) Close() error {
	return hd.classifier.Close()
}
