package suspicion

import (
	"time"

	"vigil-worker-go/internal/helpers"
	"vigil-worker-go/internal/models"
)

// Term weights. Additive, clamped to [0,100].
const (
	weightExitWithoutCheckout = 40
	weightDwellHighTheft      = 25
	weightTorsoRatioSpike     = 20
)

// Params holds the scoring knobs
type Params struct {
	// CheckoutMemory is how long a checkout visit keeps excusing an exit
	CheckoutMemory time.Duration
	// DwellThreshold is the cumulative high-theft dwell at which the term fires
	DwellThreshold time.Duration
	// TorsoSpikeDelta is the |last - mean| aspect ratio deviation that fires
	TorsoSpikeDelta float64
	// TorsoSpikeSamples is how many trailing aspect ratios feed the mean
	TorsoSpikeSamples int
	// EscalateThreshold is the score at which the judge is consulted
	EscalateThreshold float64
}

// DefaultParams returns the documented defaults
func DefaultParams() Params {
	return Params{
		CheckoutMemory:    60 * time.Second,
		DwellThreshold:    12 * time.Second,
		TorsoSpikeDelta:   0.25,
		TorsoSpikeSamples: 5,
		EscalateThreshold: 70,
	}
}

// Service scores tracks. Pure functions over inputs, no stored state.
type Service struct {
	params Params
}

func NewService(params Params) *Service {
	if params.TorsoSpikeSamples <= 0 {
		params.TorsoSpikeSamples = 5
	}
	return &Service{params: params}
}

// Score evaluates one track against its zone-visit history and the zone
// configuration at the given instant.
func (s *Service) Score(track models.Track, zones []models.Zone, visits []models.ZoneVisit, now time.Time) models.SuspicionResult {
	result := models.SuspicionResult{Reasons: []string{}}
	score := 0.0

	if s.exitWithoutCheckout(track, zones, visits, now) {
		result.ExitWithoutCheckout = true
		result.Reasons = append(result.Reasons, models.ReasonExitWithoutCheckout)
		score += weightExitWithoutCheckout
	}

	// Cumulative lifetime sum over every high-theft visit, not the current
	// visit's duration. Preserved verbatim as documented policy.
	result.DwellHighTheftSec = dwellHighTheftSeconds(visits, now)
	if result.DwellHighTheftSec >= s.params.DwellThreshold.Seconds() {
		result.Reasons = append(result.Reasons, models.ReasonDwellHighTheft)
		score += weightDwellHighTheft
	}

	if s.torsoRatioSpike(track) {
		result.TorsoRatioSpike = true
		result.Reasons = append(result.Reasons, models.ReasonTorsoRatioSpike)
		score += weightTorsoRatioSpike
	}

	result.Score = helpers.Clamp(score, 0, 100)
	return result
}

// ShouldEscalate reports whether the score crosses the escalation threshold
func (s *Service) ShouldEscalate(result models.SuspicionResult) bool {
	return result.Score >= s.params.EscalateThreshold
}

// exitWithoutCheckout fires when the track currently sits in an enabled exit
// zone and no checkout visit is recent enough to excuse it.
func (s *Service) exitWithoutCheckout(track models.Track, zones []models.Zone, visits []models.ZoneVisit, now time.Time) bool {
	zone := helpers.ClassifyZone(track.BBox.Center(), zones)
	if zone == nil || zone.Type != models.ZoneTypeExit {
		return false
	}

	cutoff := now.Add(-s.params.CheckoutMemory)
	for _, v := range visits {
		if v.ZoneType == models.ZoneTypeCheckout && !v.Entered.Before(cutoff) {
			return false
		}
	}
	return true
}

func dwellHighTheftSeconds(visits []models.ZoneVisit, now time.Time) float64 {
	total := 0.0
	for _, v := range visits {
		if v.ZoneType != models.ZoneTypeHighTheft {
			continue
		}
		if d := now.Sub(v.Entered).Seconds(); d > 0 {
			total += d
		}
	}
	return total
}

// torsoRatioSpike fires once the bbox history holds enough samples and the
// newest aspect ratio deviates from the trailing mean.
func (s *Service) torsoRatioSpike(track models.Track) bool {
	n := s.params.TorsoSpikeSamples
	if len(track.BBoxHistory) < n {
		return false
	}

	tail := track.BBoxHistory[len(track.BBoxHistory)-n:]
	sum := 0.0
	for _, b := range tail {
		sum += b.AspectRatio()
	}
	mean := sum / float64(n)
	last := tail[n-1].AspectRatio()

	diff := last - mean
	if diff < 0 {
		diff = -diff
	}
	return diff >= s.params.TorsoSpikeDelta
}
