package gating

import (
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"vigil-worker-go/internal/config"
	"vigil-worker-go/internal/models"
)

// persistenceBufferSize bounds the per-camera occurrence buffer
const persistenceBufferSize = 10

// Params holds the gate knobs
type Params struct {
	MinConfidence     float64
	CameraCooldown    time.Duration
	TrackCooldown     time.Duration // zero disables the per-track check
	PersistenceCount  int           // 1 disables the persistence rule
	PersistenceWindow time.Duration
}

// ParamsFromConfig maps the configuration surface onto gate params
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		MinConfidence:     cfg.GateMinConfidence,
		CameraCooldown:    cfg.CameraCooldown,
		TrackCooldown:     cfg.TrackCooldown,
		PersistenceCount:  cfg.PersistenceCount,
		PersistenceWindow: cfg.PersistenceWindow,
	}
}

// Service is the anti-spam gate. All state lives behind one mutex so the
// check-and-update sequence is atomic: two concurrent events for the same
// key within a cooldown window can never both be admitted.
type Service struct {
	params Params

	mu          sync.Mutex
	lastCamera  map[string]time.Time
	lastTrack   map[string]time.Time
	persistence map[string][]time.Time
}

func NewService(params Params) *Service {
	s := &Service{
		params:      params,
		lastCamera:  make(map[string]time.Time),
		lastTrack:   make(map[string]time.Time),
		persistence: make(map[string][]time.Time),
	}

	log.Info().
		Float64("min_confidence", params.MinConfidence).
		Dur("camera_cooldown", params.CameraCooldown).
		Dur("track_cooldown", params.TrackCooldown).
		Int("persistence_count", params.PersistenceCount).
		Msg("Alert gate initialized")

	return s
}

// Evaluate runs confidence → camera cooldown → track cooldown → persistence
// in order; the first failing check is the rejection reason. Last-trigger
// timestamps are updated in the same critical section as the admit decision.
func (s *Service) Evaluate(event *models.ShopliftingEvent, now time.Time) models.GateDecision {
	if event.Confidence < s.params.MinConfidence {
		return models.GateDecision{Allow: false, Reason: models.GateReasonBelowConfidence}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if last, ok := s.lastCamera[event.CameraID]; ok {
		if now.Sub(last) < s.params.CameraCooldown {
			return models.GateDecision{Allow: false, Reason: models.GateReasonCameraCooldown}
		}
	}

	trackKey := ""
	if s.params.TrackCooldown > 0 && event.TrackID != nil {
		trackKey = trackCooldownKey(event.CameraID, *event.TrackID)
		if last, ok := s.lastTrack[trackKey]; ok {
			if now.Sub(last) < s.params.TrackCooldown {
				return models.GateDecision{Allow: false, Reason: models.GateReasonTrackCooldown}
			}
		}
	}

	if s.params.PersistenceCount > 1 {
		if !s.recordOccurrence(event.CameraID, now) {
			return models.GateDecision{Allow: false, Reason: models.GateReasonPersistenceNotMet}
		}
	}

	s.lastCamera[event.CameraID] = now
	if trackKey != "" {
		s.lastTrack[trackKey] = now
	}

	return models.GateDecision{Allow: true}
}

// recordOccurrence appends an occurrence for the camera and reports whether
// the sliding-window count has reached the persistence requirement. Caller
// holds the mutex.
func (s *Service) recordOccurrence(cameraID string, now time.Time) bool {
	cutoff := now.Add(-s.params.PersistenceWindow)

	recent := s.persistence[cameraID][:0]
	for _, t := range s.persistence[cameraID] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	recent = append(recent, now)
	if len(recent) > persistenceBufferSize {
		recent = recent[len(recent)-persistenceBufferSize:]
	}
	s.persistence[cameraID] = recent

	return len(recent) >= s.params.PersistenceCount
}

// Reset clears all gate state for test isolation
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCamera = make(map[string]time.Time)
	s.lastTrack = make(map[string]time.Time)
	s.persistence = make(map[string][]time.Time)
}

func trackCooldownKey(cameraID string, trackID int64) string {
	return cameraID + "|" + strconv.FormatInt(trackID, 10)
}
