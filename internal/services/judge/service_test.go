package judge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil-worker-go/internal/config"
	"vigil-worker-go/internal/models"
)

func visionConfig(url string) *config.Config {
	return &config.Config{
		JudgeVisionEnabled:   true,
		JudgeVisionURL:       url,
		JudgeVisionAPIKey:    "test-key",
		JudgeVisionTimeout:   2 * time.Second,
		JudgeRateLimitCalls:  6,
		JudgeRateLimitWindow: 60 * time.Second,
	}
}

func TestLocalJudgeConcealmentLikely(t *testing.T) {
	j := NewLocalJudge()

	res := j.Judge(context.Background(), models.JudgeEvidence{
		CameraID: "cam-1",
		Reasons:  []string{models.ReasonExitWithoutCheckout, models.ReasonDwellHighTheft},
	})

	assert.True(t, res.ConcealmentLikely)
	assert.InDelta(t, 0.7, res.Confidence, 1e-9)
	assert.Equal(t, models.ActionAlert, res.RecommendedAction)
	assert.Equal(t, BackendLocal, res.Backend)
	assert.Contains(t, res.Evidence, models.ReasonExitWithoutCheckout)
}

func TestLocalJudgeUnlikely(t *testing.T) {
	j := NewLocalJudge()

	res := j.Judge(context.Background(), models.JudgeEvidence{
		CameraID: "cam-1",
		Reasons:  []string{models.ReasonDwellHighTheft},
	})

	assert.False(t, res.ConcealmentLikely)
	assert.InDelta(t, 0.2, res.Confidence, 1e-9)
	assert.Equal(t, models.ActionLogOnly, res.RecommendedAction)
}

func TestSelectWithoutCredentialsFallsBackToLocal(t *testing.T) {
	cfg := &config.Config{JudgeVisionEnabled: true}
	j := Select(cfg)
	assert.Equal(t, BackendLocal, j.Backend())

	cfg = &config.Config{JudgeVisionEnabled: false}
	assert.Equal(t, BackendLocal, Select(cfg).Backend())
}

func TestVisionJudgeHappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "cam-1", req["camera_id"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"concealment_likely": true,
			"confidence":         0.92,
			"evidence":           []string{"item tucked into jacket"},
			"recommended_action": "alert",
		})
	}))
	defer srv.Close()

	j := NewVisionJudge(visionConfig(srv.URL), NewLocalJudge())
	res := j.Judge(context.Background(), models.JudgeEvidence{CameraID: "cam-1", TrackID: 7})

	assert.True(t, res.ConcealmentLikely)
	assert.InDelta(t, 0.92, res.Confidence, 1e-9)
	assert.Equal(t, BackendVision, res.Backend)
}

func TestVisionJudgeFailureDelegatesToLocal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	j := NewVisionJudge(visionConfig(srv.URL), NewLocalJudge())
	res := j.Judge(context.Background(), models.JudgeEvidence{
		CameraID: "cam-1",
		Reasons:  []string{models.ReasonTorsoRatioSpike},
	})

	assert.Equal(t, BackendLocal, res.Backend)
	assert.True(t, res.ConcealmentLikely)
	assert.InDelta(t, 0.7, res.Confidence, 1e-9)
}

func TestVisionJudgeRateLimitDelegates(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"concealment_likely": false,
			"confidence":         0.1,
			"recommended_action": "log_only",
		})
	}))
	defer srv.Close()

	cfg := visionConfig(srv.URL)
	cfg.JudgeRateLimitCalls = 2
	j := NewVisionJudge(cfg, NewLocalJudge())

	ev := models.JudgeEvidence{CameraID: "cam-1"}
	for i := 0; i < 5; i++ {
		j.Judge(context.Background(), ev)
	}

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	// A different camera has its own budget
	j.Judge(context.Background(), models.JudgeEvidence{CameraID: "cam-2"})
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestSlidingWindowRecovers(t *testing.T) {
	w := newSlidingWindow(2, time.Minute)
	base := time.Now()

	assert.True(t, w.allow("cam-1", base))
	assert.True(t, w.allow("cam-1", base.Add(time.Second)))
	assert.False(t, w.allow("cam-1", base.Add(2*time.Second)))

	// Window slides: the first call ages out
	assert.True(t, w.allow("cam-1", base.Add(61*time.Second)))
}
