package models

import (
	"fmt"
	"time"
)

// EventTypeShoplifting is the only event type the pipeline accepts
const EventTypeShoplifting = "shoplifting_detected"

// EventEvidence carries optional media references attached to an event
type EventEvidence struct {
	KeyframePath   string `json:"keyframe_path,omitempty"`
	KeyframeBase64 string `json:"keyframe_base64,omitempty"`
	ClipPath       string `json:"clip_path,omitempty"`
}

// ShopliftingEvent is the canonical event consumed by the pipeline.
// Immutable once built.
type ShopliftingEvent struct {
	EventType  string         `json:"event_type"`
	CameraID   string         `json:"camera_id"`
	Location   string         `json:"location"`
	Confidence float64        `json:"confidence"`
	Timestamp  time.Time      `json:"timestamp"`
	TrackID    *int64         `json:"track_id,omitempty"`
	Evidence   *EventEvidence `json:"evidence,omitempty"`

	// Populated by the frame processing layer when the event originates
	// in-process, absent for events received over the wire.
	SuspicionScore float64  `json:"suspicion_score,omitempty"`
	Reasons        []string `json:"reasons,omitempty"`
}

// Validate rejects malformed events at the boundary before they enter
// the pipeline.
func (e *ShopliftingEvent) Validate() error {
	if e == nil {
		return fmt.Errorf("event is nil")
	}
	if e.EventType != EventTypeShoplifting {
		return fmt.Errorf("unexpected event_type %q", e.EventType)
	}
	if e.CameraID == "" {
		return fmt.Errorf("camera_id is empty")
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range [0,1]", e.Confidence)
	}
	return nil
}

// Recommended actions returned by a concealment judge
const (
	ActionAlert   = "alert"
	ActionLogOnly = "log_only"
)

// JudgeEvidence is the input handed to a concealment judge
type JudgeEvidence struct {
	CameraID       string   `json:"camera_id"`
	TrackID        int64    `json:"track_id"`
	SuspicionScore float64  `json:"suspicion_score"`
	Reasons        []string `json:"reasons"`
	KeyframeBase64 string   `json:"keyframe_base64,omitempty"`
}

// JudgeResult is the output of a concealment judge strategy
type JudgeResult struct {
	ConcealmentLikely bool     `json:"concealment_likely"`
	Confidence        float64  `json:"confidence"`
	Evidence          []string `json:"evidence"`
	RecommendedAction string   `json:"recommended_action"`
	Backend           string   `json:"backend"`
}

// GateReason explains why the alert gate suppressed an event
type GateReason string

const (
	GateReasonBelowConfidence   GateReason = "below_confidence"
	GateReasonCameraCooldown    GateReason = "camera_cooldown"
	GateReasonTrackCooldown     GateReason = "track_cooldown"
	GateReasonPersistenceNotMet GateReason = "persistence_not_met"
)

// GateDecision is the outcome of one alert gate evaluation
type GateDecision struct {
	Allow  bool       `json:"allow"`
	Reason GateReason `json:"reason,omitempty"`
}

// VoiceResult is the outcome of one voice alert attempt
type VoiceResult struct {
	Success     bool   `json:"success"`
	AudioRef    string `json:"audio_ref,omitempty"`
	BackendUsed string `json:"backend_used"`
	Error       string `json:"error,omitempty"`
}

// IncidentStatus classifies a logged incident record
type IncidentStatus string

const (
	IncidentStatusTriggered    IncidentStatus = "triggered"
	IncidentStatusSuppressed   IncidentStatus = "suppressed"
	IncidentStatusFallbackUsed IncidentStatus = "fallback_used"
)

// SuppressedReasonPipelineError marks records written after an unexpected
// orchestrator failure
const SuppressedReasonPipelineError = "pipeline_error"

// IncidentRecord is one append-only audit record per gate decision.
// Immutable once written.
type IncidentRecord struct {
	ID               string         `json:"id"`
	Timestamp        time.Time      `json:"timestamp"`
	CameraID         string         `json:"camera_id"`
	Location         string         `json:"location"`
	TrackID          *int64         `json:"track_id,omitempty"`
	SuspicionScore   float64        `json:"suspicion_score"`
	EvidenceRefs     []string       `json:"evidence_refs,omitempty"`
	JudgeBackend     string         `json:"judge_backend,omitempty"`
	JudgeResult      *JudgeResult   `json:"judge_result,omitempty"`
	VoiceBackend     string         `json:"voice_backend,omitempty"`
	AudioRef         string         `json:"audio_ref,omitempty"`
	Status           IncidentStatus `json:"status"`
	SuppressedReason string         `json:"suppressed_reason,omitempty"`
}

// PipelineResult is the structured outcome returned to the pipeline caller
type PipelineResult struct {
	Admitted bool         `json:"admitted"`
	Gate     GateDecision `json:"gate"`
	Voice    *VoiceResult `json:"voice,omitempty"`
	Err      string       `json:"error,omitempty"`
}
