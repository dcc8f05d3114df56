package frameprocessing

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"vigil-worker-go/internal/config"
	"vigil-worker-go/internal/helpers"
	"vigil-worker-go/internal/logging"
	"vigil-worker-go/internal/models"
	"vigil-worker-go/internal/services/judge"
	"vigil-worker-go/internal/services/pipeline"
	"vigil-worker-go/internal/services/suspicion"
	"vigil-worker-go/internal/services/tracking"
)

// FrameResult summarizes one processed frame
type FrameResult struct {
	TracksUpdated int      `json:"tracks_updated"`
	Escalations   int      `json:"escalations"`
	EventsEmitted int      `json:"events_emitted"`
	Errors        []string `json:"errors,omitempty"`
}

// cameraState holds the per-camera mutable state: the track store, the zone
// configuration, and the per-track zone-visit history. Zone visits are
// appended here, not by the tracker.
type cameraState struct {
	location    string
	zones       []models.Zone
	tracker     *tracking.Service
	visits      map[int64][]models.ZoneVisit
	currentZone map[int64]string
}

// Service runs the per-frame detection path for every registered camera
type Service struct {
	cfg      *config.Config
	engine   *suspicion.Service
	judge    judge.Judge
	pipeline *pipeline.Service
	logger   zerolog.Logger

	mu      sync.Mutex
	cameras map[string]*cameraState
}

func NewService(cfg *config.Config, engine *suspicion.Service, j judge.Judge, p *pipeline.Service) *Service {
	return &Service{
		cfg:      cfg,
		engine:   engine,
		judge:    j,
		pipeline: p,
		logger:   logging.NewServiceLogger(cfg, "frameprocessing"),
		cameras:  make(map[string]*cameraState),
	}
}

// RegisterCamera configures a camera's location label and zone list.
// Re-registering replaces the zones but keeps tracker state.
func (s *Service) RegisterCamera(cameraID, location string, zones []models.Zone) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state, ok := s.cameras[cameraID]; ok {
		state.location = location
		state.zones = zones
		return
	}
	s.cameras[cameraID] = &cameraState{
		location:    location,
		zones:       zones,
		tracker:     tracking.NewService(s.cfg.TrackerIOUMatchMin),
		visits:      make(map[int64][]models.ZoneVisit),
		currentZone: make(map[int64]string),
	}

	logger := logging.WithCamera(s.logger, cameraID)
	logger.Info().
		Str("location", location).
		Int("zones", len(zones)).
		Msg("Camera registered for frame processing")
}

// ProcessFrame consumes one per-frame detection list: updates tracks,
// maintains zone-visit history, scores suspicion, and escalates through the
// judge into the pipeline.
func (s *Service) ProcessFrame(ctx context.Context, cameraID string, detections []models.PersonDetection, meta models.FrameMetadata) FrameResult {
	result := FrameResult{}

	state := s.state(cameraID)
	logger := logging.WithCamera(s.logger, cameraID)
	now := meta.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	tracks := state.tracker.Update(detections, now)
	result.TracksUpdated = len(tracks)

	for _, track := range tracks {
		// RegisterCamera may replace the zone slice concurrently, so zones
		// and location are snapshotted under the same lock as the visits.
		visits, zones, location := s.recordZoneVisit(state, track, now)

		suspicionResult := s.engine.Score(track, zones, visits, now)
		if s.cfg.ZoneRiskBlending {
			multiplier := helpers.ZoneRiskMultiplier(track.BBox, zones)
			suspicionResult.Score = helpers.Clamp(suspicionResult.Score*multiplier, 0, 100)
		}

		if !s.engine.ShouldEscalate(suspicionResult) {
			continue
		}
		result.Escalations++

		judgeResult := s.judge.Judge(ctx, models.JudgeEvidence{
			CameraID:       cameraID,
			TrackID:        track.TrackID,
			SuspicionScore: suspicionResult.Score,
			Reasons:        suspicionResult.Reasons,
		})
		if !judgeResult.ConcealmentLikely || judgeResult.RecommendedAction != models.ActionAlert {
			logger.Debug().
				Int64("track_id", track.TrackID).
				Float64("score", suspicionResult.Score).
				Str("action", judgeResult.RecommendedAction).
				Msg("Escalation judged below alert threshold")
			continue
		}

		trackID := track.TrackID
		event := &models.ShopliftingEvent{
			EventType:      models.EventTypeShoplifting,
			CameraID:       cameraID,
			Location:       location,
			Confidence:     judgeResult.Confidence,
			Timestamp:      now,
			TrackID:        &trackID,
			SuspicionScore: suspicionResult.Score,
			Reasons:        suspicionResult.Reasons,
		}

		outcome := s.pipeline.Process(ctx, event, &judgeResult)
		if outcome.Err != "" {
			result.Errors = append(result.Errors, outcome.Err)
			continue
		}
		if outcome.Admitted {
			result.EventsEmitted++
		}
	}

	s.expireStale(state, now)
	return result
}

// state returns the camera state, registering a bare camera on first sight
func (s *Service) state(cameraID string) *cameraState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.cameras[cameraID]; ok {
		return st
	}
	st := &cameraState{
		location:    cameraID,
		tracker:     tracking.NewService(s.cfg.TrackerIOUMatchMin),
		visits:      make(map[int64][]models.ZoneVisit),
		currentZone: make(map[int64]string),
	}
	s.cameras[cameraID] = st
	logger := logging.WithCamera(s.logger, cameraID)
	logger.Debug().Msg("Camera auto-registered without zones")
	return st
}

// recordZoneVisit appends a visit when the track's zone changed this frame.
// It returns the track's full visit history plus the zones and location
// snapshotted under the lock, since RegisterCamera can replace them.
func (s *Service) recordZoneVisit(state *cameraState, track models.Track, now time.Time) ([]models.ZoneVisit, []models.Zone, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	zone := helpers.ClassifyZone(track.BBox.Center(), state.zones)
	zoneID := ""
	if zone != nil {
		zoneID = zone.ID
	}

	if zoneID != state.currentZone[track.TrackID] {
		state.currentZone[track.TrackID] = zoneID
		if zone != nil {
			state.visits[track.TrackID] = append(state.visits[track.TrackID], models.ZoneVisit{
				ZoneID:   zone.ID,
				ZoneType: zone.Type,
				Entered:  now,
			})
			s.logger.Debug().
				Int64("track_id", track.TrackID).
				Str("zone_id", zone.ID).
				Str("zone_type", string(zone.Type)).
				Msg("Track entered zone")
		}
	}

	return append([]models.ZoneVisit(nil), state.visits[track.TrackID]...), state.zones, state.location
}

// expireStale evicts long-unseen tracks and their visit history when a
// track expiry is configured.
func (s *Service) expireStale(state *cameraState, now time.Time) {
	if s.cfg.TrackExpiry <= 0 {
		return
	}
	for _, id := range state.tracker.ExpireOlderThan(s.cfg.TrackExpiry, now) {
		s.mu.Lock()
		delete(state.visits, id)
		delete(state.currentZone, id)
		s.mu.Unlock()
	}
}

// Visits returns a copy of a track's zone-visit history, for inspection
func (s *Service) Visits(cameraID string, trackID int64) []models.ZoneVisit {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.cameras[cameraID]
	if !ok {
		return nil
	}
	return append([]models.ZoneVisit(nil), st.visits[trackID]...)
}
