//go:build !gocv
// +build !gocv

package faceprep

import (
	"errors"
	"image"
)

// ErrNoOpenCV is returned by the Haar detector when the binary is built without the gocv tag.
var ErrNoOpenCV = errors.New("the haar detector requires building with the gocv tag")

// HaarDetector is the OpenCV Haar cascade detector. This build has no OpenCV support.
type HaarDetector struct{}

var _ Detector = (*HaarDetector)(nil)

// NewHaarDetector always fails without the gocv build tag.
func NewHaarDetector(_ string, _ DetectorParams) (*HaarDetector, error) {
	return nil, ErrNoOpenCV
}

// Detect implements Detector.
func (hd *HaarDetector) Detect(_ *image.Gray) ([]Rect, error) {
	return nil, ErrNoOpenCV
}

// Close is a no-op.
func (hd *HaarDetector) Close() error {
	return nil
}
