package vision

import (
	"time"
)

// RegionID identifier type
type RegionID string

// Rect is a bounding rectangle in frame pixel space.
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Center returns the center point of the rectangle.
func (r Rect) Center() (int, int) {
	return r.X + r.W/2, r.Y + r.H/2
}

// Point is a tracked center position.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// DefaultHistoryCap bounds the per-region position history.
const DefaultHistoryCap = 10

// Region is a rectangular area of a frame suspected of containing source code.
// It lives only as long as the per-frame loop references it; results are
// correlated back by ID, never by holding the Region itself.
type Region struct {
	ID         RegionID  `json:"id"`
	Rect       Rect      `json:"rect"`
	Confidence float64   `json:"confidence"`
	Text       string    `json:"text"`
	DetectedAt time.Time `json:"detected_at"`

	history    []Point
	historyCap int
}

// NewRegion creates a region with the default history cap.
func NewRegion(id RegionID, rect Rect, confidence float64, detectedAt time.Time) *Region {
	return &Region{
		ID:         id,
		Rect:       rect,
		Confidence: confidence,
		DetectedAt: detectedAt,
		historyCap: DefaultHistoryCap,
	}
}

// SetHistoryCap overrides the position-history bound. Values < 1 are ignored.
func (r *Region) SetHistoryCap(n int) {
	if n >= 1 {
		r.historyCap = n
	}
}

// Track appends the current center point to the motion history,
// evicting the oldest entry once the cap is reached.
func (r *Region) Track() {
	cx, cy := r.Rect.Center()
	cap := r.historyCap
	if cap < 1 {
		cap = DefaultHistoryCap
	}
	r.history = append(r.history, Point{X: cx, Y: cy})
	if len(r.history) > cap {
		r.history = r.history[len(r.history)-cap:]
	}
}

// History returns the tracked center positions, oldest first.
func (r *Region) History() []Point {
	return r.history
}
