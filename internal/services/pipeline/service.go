package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"vigil-worker-go/internal/models"
	"vigil-worker-go/internal/services/voice"
)

// Gate decides whether an event becomes a spoken alert
type Gate interface {
	Evaluate(event *models.ShopliftingEvent, now time.Time) models.GateDecision
}

// Voice produces the audio artifact and queues playback
type Voice interface {
	Play(ctx context.Context, req voice.Request) models.VoiceResult
}

// IncidentSink records every gate decision
type IncidentSink interface {
	Append(record models.IncidentRecord) error
}

// Service orchestrates one event from RECEIVED to a terminal log record:
// RECEIVED → GATED → {ALLOWED → VOICED → LOGGED} | {REJECTED → LOGGED}.
// It never raises to its caller; unexpected errors become a structured
// failure plus a best-effort suppressed record.
type Service struct {
	gate             Gate
	voice            Voice
	incidents        IncidentSink
	publisher        models.MessagePublisher
	incidentsSubject string
}

func NewService(gate Gate, voiceSvc Voice, incidents IncidentSink) *Service {
	return &Service{
		gate:      gate,
		voice:     voiceSvc,
		incidents: incidents,
	}
}

// WithPublisher attaches an optional notification publisher, used for the
// dashboard feed. Pipeline behavior does not depend on it.
func (s *Service) WithPublisher(pub models.MessagePublisher, subject string) *Service {
	s.publisher = pub
	s.incidentsSubject = subject
	return s
}

// Process runs one canonical event through the gate, voice, and log steps
func (s *Service) Process(ctx context.Context, event *models.ShopliftingEvent, judgeResult *models.JudgeResult) (result models.PipelineResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Pipeline recovered from unexpected error")
			s.writeRecord(s.baseRecord(event, judgeResult, models.IncidentStatusSuppressed, models.SuppressedReasonPipelineError))
			result = models.PipelineResult{Admitted: false, Err: fmt.Sprintf("pipeline error: %v", r)}
		}
	}()

	if err := event.Validate(); err != nil {
		log.Warn().Err(err).Msg("Malformed event rejected at pipeline boundary")
		return models.PipelineResult{Admitted: false, Err: err.Error()}
	}

	decision := s.gate.Evaluate(event, time.Now())
	if !decision.Allow {
		log.Info().
			Str("camera_id", event.CameraID).
			Str("reason", string(decision.Reason)).
			Msg("Alert suppressed by gate")

		s.writeRecord(s.baseRecord(event, judgeResult, models.IncidentStatusSuppressed, string(decision.Reason)))
		return models.PipelineResult{Admitted: false, Gate: decision}
	}

	voiceResult := s.voice.Play(ctx, voice.Request{
		Location: event.Location,
		CameraID: event.CameraID,
		TrackID:  event.TrackID,
	})

	// The alert was admitted either way; a voice fallback still yields a
	// triggered record. Only a local-level artifact fault downgrades it.
	status := models.IncidentStatusTriggered
	if !voiceResult.Success {
		status = models.IncidentStatusFallbackUsed
		log.Error().
			Str("camera_id", event.CameraID).
			Str("error", voiceResult.Error).
			Msg("Voice alert produced no artifact")
	}

	record := s.baseRecord(event, judgeResult, status, "")
	record.VoiceBackend = voiceResult.BackendUsed
	record.AudioRef = voiceResult.AudioRef
	s.writeRecord(record)

	log.Info().
		Str("camera_id", event.CameraID).
		Str("location", event.Location).
		Str("voice_backend", voiceResult.BackendUsed).
		Float64("confidence", event.Confidence).
		Msg("🚨 Security alert triggered")

	return models.PipelineResult{Admitted: true, Gate: decision, Voice: &voiceResult}
}

func (s *Service) baseRecord(event *models.ShopliftingEvent, judgeResult *models.JudgeResult, status models.IncidentStatus, suppressedReason string) models.IncidentRecord {
	record := models.IncidentRecord{
		Timestamp:        time.Now(),
		Status:           status,
		SuppressedReason: suppressedReason,
	}
	if event == nil {
		return record
	}

	record.CameraID = event.CameraID
	record.Location = event.Location
	record.TrackID = event.TrackID
	record.SuspicionScore = event.SuspicionScore
	if event.Evidence != nil {
		if event.Evidence.KeyframePath != "" {
			record.EvidenceRefs = append(record.EvidenceRefs, event.Evidence.KeyframePath)
		}
		if event.Evidence.ClipPath != "" {
			record.EvidenceRefs = append(record.EvidenceRefs, event.Evidence.ClipPath)
		}
	}
	record.EvidenceRefs = append(record.EvidenceRefs, event.Reasons...)
	if judgeResult != nil {
		jr := *judgeResult
		record.JudgeBackend = jr.Backend
		record.JudgeResult = &jr
	}
	return record
}

// writeRecord appends the incident record and publishes the notification.
// Failures are reported and swallowed; the pipeline completes regardless.
func (s *Service) writeRecord(record models.IncidentRecord) {
	if err := s.incidents.Append(record); err != nil {
		log.Error().Err(err).Str("camera_id", record.CameraID).Msg("Incident log write failed")
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(s.incidentsSubject, record); err != nil {
			log.Warn().Err(err).Msg("Incident notification publish failed")
		}
	}
}
