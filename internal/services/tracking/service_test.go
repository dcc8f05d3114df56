package tracking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil-worker-go/internal/models"
)

func box(x1, y1, x2, y2 float64) models.BoundingBox {
	return models.BoundingBox{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

func TestUpdateCreatesTracks(t *testing.T) {
	svc := NewService(0.3)
	now := time.Now()

	tracks := svc.Update([]models.PersonDetection{
		{BBox: box(0, 0, 0.2, 0.4), Confidence: 0.9},
		{BBox: box(0.5, 0.5, 0.7, 0.9), Confidence: 0.8},
	}, now)

	require.Len(t, tracks, 2)
	assert.Equal(t, int64(1), tracks[0].TrackID)
	assert.Equal(t, int64(2), tracks[1].TrackID)
	assert.Equal(t, now, tracks[0].FirstSeen)
	assert.Len(t, tracks[0].BBoxHistory, 1)
}

func TestUpdateMatchesOverlappingDetection(t *testing.T) {
	svc := NewService(0.3)
	now := time.Now()

	first := svc.Update([]models.PersonDetection{
		{BBox: box(0, 0, 1, 1), Confidence: 0.9},
	}, now)
	require.Len(t, first, 1)

	// IOU 0.6 against the original box, above the 0.3 threshold
	second := svc.Update([]models.PersonDetection{
		{BBox: box(0, 0.25, 1, 1.25), Confidence: 0.85},
	}, now.Add(100*time.Millisecond))

	require.Len(t, second, 1)
	assert.Equal(t, first[0].TrackID, second[0].TrackID)
	assert.Equal(t, first[0].FirstSeen, second[0].FirstSeen)
	assert.Len(t, second[0].BBoxHistory, 2)
	assert.Equal(t, 1, svc.ActiveCount())
}

func TestUpdateLowIOUMintsNewTrack(t *testing.T) {
	svc := NewService(0.3)
	now := time.Now()

	svc.Update([]models.PersonDetection{{BBox: box(0, 0, 0.1, 0.1), Confidence: 0.9}}, now)
	tracks := svc.Update([]models.PersonDetection{{BBox: box(0.8, 0.8, 0.9, 0.9), Confidence: 0.9}}, now.Add(time.Second))

	require.Len(t, tracks, 1)
	assert.Equal(t, int64(2), tracks[0].TrackID)
	assert.Equal(t, 2, svc.ActiveCount())
}

func TestUpdateHistoryBounded(t *testing.T) {
	svc := NewService(0.3)
	now := time.Now()

	for i := 0; i < models.TrackHistorySize+5; i++ {
		svc.Update([]models.PersonDetection{{BBox: box(0, 0, 1, 1), Confidence: 0.9}}, now.Add(time.Duration(i)*time.Second))
	}

	tr, ok := svc.Get(1)
	require.True(t, ok)
	assert.Len(t, tr.BBoxHistory, models.TrackHistorySize)
	assert.Equal(t, 1, svc.ActiveCount())
}

func TestUpdateGreedyFirstComeAssignment(t *testing.T) {
	svc := NewService(0.3)
	now := time.Now()

	svc.Update([]models.PersonDetection{{BBox: box(0, 0, 1, 1), Confidence: 0.9}}, now)

	// Both detections overlap the single track; only the first one, in
	// input order, may claim it.
	tracks := svc.Update([]models.PersonDetection{
		{BBox: box(0, 0, 1, 1), Confidence: 0.9},
		{BBox: box(0.1, 0.1, 1.1, 1.1), Confidence: 0.9},
	}, now.Add(time.Second))

	require.Len(t, tracks, 2)
	assert.Equal(t, int64(1), tracks[0].TrackID)
	assert.Equal(t, int64(2), tracks[1].TrackID)
}

func TestTracksUntouchedWhenAbsent(t *testing.T) {
	svc := NewService(0.3)
	now := time.Now()

	svc.Update([]models.PersonDetection{{BBox: box(0, 0, 0.1, 0.1), Confidence: 0.9}}, now)
	svc.Update(nil, now.Add(time.Minute))

	tr, ok := svc.Get(1)
	require.True(t, ok)
	assert.Equal(t, now, tr.LastSeen)
}

func TestExpireOlderThan(t *testing.T) {
	svc := NewService(0.3)
	now := time.Now()

	svc.Update([]models.PersonDetection{{BBox: box(0, 0, 0.1, 0.1), Confidence: 0.9}}, now)
	svc.Update([]models.PersonDetection{
		{BBox: box(0, 0, 0.1, 0.1), Confidence: 0.9},
		{BBox: box(0.8, 0.8, 0.9, 0.9), Confidence: 0.9},
	}, now.Add(30*time.Second))

	// Both tracks were refreshed at +30s, so at +35s they are only 5s stale
	evicted := svc.ExpireOlderThan(10*time.Second, now.Add(35*time.Second))
	assert.Empty(t, evicted)

	evicted = svc.ExpireOlderThan(10*time.Second, now.Add(50*time.Second))
	assert.Len(t, evicted, 2)
	assert.Equal(t, 0, svc.ActiveCount())
}

func TestResetKeepsIdentitiesIncreasing(t *testing.T) {
	svc := NewService(0.3)
	now := time.Now()

	svc.Update([]models.PersonDetection{{BBox: box(0, 0, 0.1, 0.1), Confidence: 0.9}}, now)
	svc.Reset()
	assert.Equal(t, 0, svc.ActiveCount())

	tracks := svc.Update([]models.PersonDetection{{BBox: box(0, 0, 0.1, 0.1), Confidence: 0.9}}, now)
	require.Len(t, tracks, 1)
	assert.Equal(t, int64(2), tracks[0].TrackID)
}
