package models

import (
	"time"
)

// ZoneType represents the semantic classification of a store zone
type ZoneType string

const (
	ZoneTypeEntrance  ZoneType = "entrance"
	ZoneTypeExit      ZoneType = "exit"
	ZoneTypeCheckout  ZoneType = "checkout"
	ZoneTypeHighTheft ZoneType = "high_theft"
	ZoneTypeStaffOnly ZoneType = "staff_only"
	ZoneTypeGeneral   ZoneType = "general"
)

// Point is a normalized coordinate in [0,1] frame space
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Zone is a polygon region of the store floor plan
type Zone struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Type           ZoneType `json:"type"`
	Polygon        []Point  `json:"polygon"`
	RiskMultiplier float64  `json:"risk_multiplier"`
	Enabled        bool     `json:"enabled"`
}

// BoundingBox is an axis-aligned box in normalized frame coordinates
type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Width returns the box width (never negative)
func (b BoundingBox) Width() float64 {
	if b.X2 < b.X1 {
		return 0
	}
	return b.X2 - b.X1
}

// Height returns the box height (never negative)
func (b BoundingBox) Height() float64 {
	if b.Y2 < b.Y1 {
		return 0
	}
	return b.Y2 - b.Y1
}

// Area returns the box area
func (b BoundingBox) Area() float64 {
	return b.Width() * b.Height()
}

// Center returns the box center point
func (b BoundingBox) Center() Point {
	return Point{X: (b.X1 + b.X2) / 2, Y: (b.Y1 + b.Y2) / 2}
}

// AspectRatio returns width/height, used as a coarse posture proxy.
// Returns 0 for degenerate boxes.
func (b BoundingBox) AspectRatio() float64 {
	h := b.Height()
	if h == 0 {
		return 0
	}
	return b.Width() / h
}

// Corners returns the four corner points of the box
func (b BoundingBox) Corners() []Point {
	return []Point{
		{X: b.X1, Y: b.Y1},
		{X: b.X2, Y: b.Y1},
		{X: b.X2, Y: b.Y2},
		{X: b.X1, Y: b.Y2},
	}
}

// PersonDetection is a single per-frame person detection from the upstream detector
type PersonDetection struct {
	BBox       BoundingBox `json:"bbox"`
	Confidence float64     `json:"confidence"`
}

// TrackHistorySize bounds the per-track bbox ring buffer
const TrackHistorySize = 10

// Track is a persistent identity over a sequence of detections.
// Instances are owned by the tracker store; callers receive copies.
type Track struct {
	TrackID     int64         `json:"track_id"`
	BBox        BoundingBox   `json:"bbox"`
	Confidence  float64       `json:"confidence"`
	BBoxHistory []BoundingBox `json:"bbox_history"`
	FirstSeen   time.Time     `json:"first_seen"`
	LastSeen    time.Time     `json:"last_seen"`
}

// ZoneVisit records a track entering a zone. Appended by the frame
// processing layer, not by the tracker.
type ZoneVisit struct {
	ZoneID   string    `json:"zone_id"`
	ZoneType ZoneType  `json:"zone_type"`
	Entered  time.Time `json:"entered_at"`
}

// Suspicion reason tags, stable strings used for audit and judge evidence
const (
	ReasonExitWithoutCheckout = "exit_without_checkout"
	ReasonDwellHighTheft      = "dwell_high_theft"
	ReasonTorsoRatioSpike     = "torso_ratio_spike"
)

// SuspicionResult is the pure output of the suspicion engine
type SuspicionResult struct {
	Score               float64  `json:"score"`
	Reasons             []string `json:"reasons"`
	ExitWithoutCheckout bool     `json:"exit_without_checkout"`
	DwellHighTheftSec   float64  `json:"dwell_high_theft_sec"`
	TorsoRatioSpike     bool     `json:"torso_ratio_spike"`
}

// FrameMetadata contains frame-level information from the upstream detector
type FrameMetadata struct {
	FrameID   int64     `json:"frame_id"`
	Timestamp time.Time `json:"timestamp"`
	CameraID  string    `json:"camera_id"`
}

// MessagePublisher interface for publishing incident notifications
type MessagePublisher interface {
	Publish(subject string, data interface{}) error
}
