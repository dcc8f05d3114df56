package tracking

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"vigil-worker-go/internal/helpers"
	"vigil-worker-go/internal/models"
)

// Associator decides which active track, if any, a detection belongs to.
// Isolated so a stronger assignment (e.g. min-cost bipartite matching) can
// replace the greedy default without touching callers.
type Associator interface {
	// Match returns the track id for the detection, or false when no
	// unmatched track qualifies.
	Match(det models.PersonDetection, candidates []*models.Track) (int64, bool)
}

// GreedyIOU is the default first-come association policy: the highest-IOU
// unmatched track above the threshold wins. Ties favor candidate order.
type GreedyIOU struct {
	MinIOU float64
}

func (g GreedyIOU) Match(det models.PersonDetection, candidates []*models.Track) (int64, bool) {
	bestIOU := g.MinIOU
	var bestID int64
	found := false
	for _, tr := range candidates {
		iou := helpers.IOU(det.BBox, tr.BBox)
		if iou > bestIOU {
			bestIOU = iou
			bestID = tr.TrackID
			found = true
		}
	}
	return bestID, found
}

// Service owns the shared track store for one camera. Track identities are
// monotonically increasing and never reused.
type Service struct {
	mu         sync.Mutex
	tracks     map[int64]*models.Track
	nextID     int64
	associator Associator
}

// NewService creates a tracker with the greedy IOU associator
func NewService(minIOU float64) *Service {
	return NewServiceWithAssociator(GreedyIOU{MinIOU: minIOU})
}

// NewServiceWithAssociator creates a tracker with a custom association policy
func NewServiceWithAssociator(a Associator) *Service {
	return &Service{
		tracks:     make(map[int64]*models.Track),
		nextID:     1,
		associator: a,
	}
}

// Update associates the full current-frame detection set against the active
// tracks and returns copies of the updated tracks, in detection input order.
// Tracks absent from the frame are left untouched; the match path never
// evicts.
func (s *Service) Update(detections []models.PersonDetection, now time.Time) []models.Track {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make(map[int64]bool, len(detections))
	updated := make([]models.Track, 0, len(detections))

	for _, det := range detections {
		candidates := make([]*models.Track, 0, len(s.tracks))
		for _, tr := range s.tracks {
			if !matched[tr.TrackID] {
				candidates = append(candidates, tr)
			}
		}
		// Map iteration order is random; candidate order must be stable
		// for the tie rule to hold.
		sortTracksByID(candidates)

		if id, ok := s.associator.Match(det, candidates); ok {
			tr := s.tracks[id]
			tr.BBoxHistory = append(tr.BBoxHistory, det.BBox)
			if len(tr.BBoxHistory) > models.TrackHistorySize {
				tr.BBoxHistory = tr.BBoxHistory[len(tr.BBoxHistory)-models.TrackHistorySize:]
			}
			tr.BBox = det.BBox
			tr.Confidence = det.Confidence
			tr.LastSeen = now
			matched[id] = true
			updated = append(updated, copyTrack(tr))
			continue
		}

		tr := &models.Track{
			TrackID:     s.nextID,
			BBox:        det.BBox,
			Confidence:  det.Confidence,
			BBoxHistory: []models.BoundingBox{det.BBox},
			FirstSeen:   now,
			LastSeen:    now,
		}
		s.nextID++
		s.tracks[tr.TrackID] = tr
		matched[tr.TrackID] = true
		updated = append(updated, copyTrack(tr))

		log.Debug().Int64("track_id", tr.TrackID).Msg("New track created")
	}

	return updated
}

// Get returns a copy of the track, if it exists
func (s *Service) Get(trackID int64) (models.Track, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tr, ok := s.tracks[trackID]
	if !ok {
		return models.Track{}, false
	}
	return copyTrack(tr), true
}

// ActiveCount returns the number of tracks in the store
func (s *Service) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tracks)
}

// ExpireOlderThan evicts tracks unseen for longer than age and returns the
// evicted ids. Maintenance operation, never called from the match path.
func (s *Service) ExpireOlderThan(age time.Duration, now time.Time) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []int64
	for id, tr := range s.tracks {
		if now.Sub(tr.LastSeen) > age {
			delete(s.tracks, id)
			evicted = append(evicted, id)
		}
	}
	if len(evicted) > 0 {
		log.Debug().Int("count", len(evicted)).Msg("Expired stale tracks")
	}
	return evicted
}

// Reset clears the store for test isolation. Identities keep increasing
// across resets.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks = make(map[int64]*models.Track)
}

func copyTrack(tr *models.Track) models.Track {
	out := *tr
	out.BBoxHistory = append([]models.BoundingBox(nil), tr.BBoxHistory...)
	return out
}

func sortTracksByID(tracks []*models.Track) {
	sort.Slice(tracks, func(i, j int) bool { return tracks[i].TrackID < tracks[j].TrackID })
}
