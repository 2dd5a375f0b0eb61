package faceprep

import (
	"image"
	"testing"

	pigo "github.com/esimov/pigo/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetector_DefaultParamsAreValid(t *testing.T) {
	dp := DefaultDetectorParams()
	assert.NoError(t, dp.Validate())
	assert.Equal(t, 1.3, dp.ScaleFactor)
	assert.Equal(t, 5, dp.MinNeighbors)
}

func TestDetector_InvalidParams(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*DetectorParams)
	}{
		{"zero min size", func(dp *DetectorParams) { dp.MinSize = 0 }},
		{"max below min", func(dp *DetectorParams) { dp.MaxSize = dp.MinSize - 1 }},
		{"scale factor not growing", func(dp *DetectorParams) { dp.ScaleFactor = 1.01 }},
		{"zero shift", func(dp *DetectorParams) { dp.ShiftFactor = 0 }},
		{"negative neighbors", func(dp *DetectorParams) { dp.MinNeighbors = -1 }},
		{"angle out of range", func(dp *DetectorParams) { dp.Angle = 1.5 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dp := DefaultDetectorParams()
			tc.modify(&dp)
			assert.Error(t, dp.Validate())

			_, err := NewPigoDetector(make([]byte, 64), dp)
			assert.Error(t, err)
		})
	}
}

func TestDetector_BrokenCascadeFile(t *testing.T) {
	_, err := NewPigoDetector([]byte("facefinder"), DefaultDetectorParams())
	assert.Error(t, err)

	// A header announcing more trees than the file holds.
	packet := make([]byte, 32)
	packet[8] = 6
	packet[12] = 200
	_, err = NewPigoDetector(packet, DefaultDetectorParams())
	assert.Error(t, err)
}

func TestDetector_ClampRect(t *testing.T) {
	testCases := []struct {
		name string
		in   Rect
		want Rect
		ok   bool
	}{
		{"inside", Rect{10, 10, 20, 20}, Rect{10, 10, 20, 20}, true},
		{"top left overflow", Rect{-5, -10, 20, 20}, Rect{0, 0, 15, 10}, true},
		{"bottom right overflow", Rect{90, 95, 20, 20}, Rect{90, 95, 10, 5}, true},
		{"larger than frame", Rect{-10, -10, 200, 200}, Rect{0, 0, 100, 100}, true},
		{"outside", Rect{150, 150, 20, 20}, Rect{}, false},
		{"empty", Rect{10, 10, 0, 5}, Rect{}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := clampRect(tc.in, 100, 100)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDetector_DetectionToRect(t *testing.T) {
	r := detectionToRect(pigo.Detection{Row: 50, Col: 40, Scale: 20, Q: 9})
	assert.Equal(t, Rect{X: 30, Y: 40, Width: 20, Height: 20}, r)
	assert.Equal(t, image.Rect(31, 42, 51, 62), r.Rectangle(image.Pt(1, 2)))
	assert.Equal(t, 400, r.Area())
}

func TestDetector_IoU(t *testing.T) {
	d := pigo.Detection{Row: 50, Col: 50, Scale: 20}
	assert.InDelta(t, 1.0, iou(d, d), 1e-9)
	assert.Equal(t, 0.0, iou(d, pigo.Detection{Row: 200, Col: 200, Scale: 20}))

	// Half overlapping along one axis: intersection 200, union 600.
	assert.InDelta(t, 1.0/3.0, iou(d, pigo.Detection{Row: 50, Col: 60, Scale: 20}), 1e-9)
}

func TestDetector_ClusterCountsNeighbors(t *testing.T) {
	var dets []pigo.Detection
	// Six overlapping detections around (100, 100).
	for i := 0; i < 6; i++ {
		dets = append(dets, pigo.Detection{Row: 100 + i, Col: 100 - i, Scale: 40, Q: 2})
	}
	// A lonely but strong detection far away.
	dets = append(dets, pigo.Detection{Row: 300, Col: 300, Scale: 40, Q: 20})

	clusters := clusterDetections(dets, 0.2)
	require.Len(t, clusters, 2)

	// The strongest detection seeds the first cluster.
	assert.Equal(t, 1, clusters[0].neighbors)
	assert.Equal(t, 300, clusters[0].Row)

	assert.Equal(t, 6, clusters[1].neighbors)
	assert.Equal(t, 102, clusters[1].Row)
	assert.Equal(t, 97, clusters[1].Col)
	assert.Equal(t, float32(12), clusters[1].Q)

	// The input slice is left untouched.
	assert.Equal(t, 300, dets[6].Row)
}

func TestDetector_ClusterEmpty(t *testing.T) {
	assert.Empty(t, clusterDetections(nil, 0.2))
}
