package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"vigil-worker-go/internal/config"
	"vigil-worker-go/internal/helpers"
	"vigil-worker-go/internal/models"
)

// VisionJudge calls an external vision endpoint to classify concealment.
// Every failure path delegates to the embedded local fallback; callers
// never see an error from this strategy.
type VisionJudge struct {
	url      string
	apiKey   string
	client   *http.Client
	fallback Judge
	limiter  *slidingWindow
}

func NewVisionJudge(cfg *config.Config, fallback Judge) *VisionJudge {
	return &VisionJudge{
		url:      cfg.JudgeVisionURL,
		apiKey:   cfg.JudgeVisionAPIKey,
		client:   &http.Client{Timeout: cfg.JudgeVisionTimeout},
		fallback: fallback,
		limiter:  newSlidingWindow(cfg.JudgeRateLimitCalls, cfg.JudgeRateLimitWindow),
	}
}

func (j *VisionJudge) Backend() string { return BackendVision }

type visionRequest struct {
	CameraID       string   `json:"camera_id"`
	TrackID        int64    `json:"track_id"`
	SuspicionScore float64  `json:"suspicion_score"`
	Reasons        []string `json:"reasons"`
	KeyframeBase64 string   `json:"keyframe_base64,omitempty"`
}

type visionResponse struct {
	ConcealmentLikely bool     `json:"concealment_likely"`
	Confidence        float64  `json:"confidence"`
	Evidence          []string `json:"evidence"`
	RecommendedAction string   `json:"recommended_action"`
}

func (j *VisionJudge) Judge(ctx context.Context, evidence models.JudgeEvidence) models.JudgeResult {
	if !j.limiter.allow(evidence.CameraID, time.Now()) {
		log.Debug().
			Str("camera_id", evidence.CameraID).
			Msg("Vision judge rate limit exceeded, delegating to local judge")
		return j.fallback.Judge(ctx, evidence)
	}

	result, err := j.call(ctx, evidence)
	if err != nil {
		log.Warn().
			Err(err).
			Str("camera_id", evidence.CameraID).
			Int64("track_id", evidence.TrackID).
			Msg("Vision judge call failed, delegating to local judge")
		return j.fallback.Judge(ctx, evidence)
	}
	return result
}

func (j *VisionJudge) call(ctx context.Context, evidence models.JudgeEvidence) (models.JudgeResult, error) {
	payload, err := json.Marshal(visionRequest{
		CameraID:       evidence.CameraID,
		TrackID:        evidence.TrackID,
		SuspicionScore: evidence.SuspicionScore,
		Reasons:        evidence.Reasons,
		KeyframeBase64: evidence.KeyframeBase64,
	})
	if err != nil {
		return models.JudgeResult{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.url, bytes.NewReader(payload))
	if err != nil {
		return models.JudgeResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+j.apiKey)

	resp, err := j.client.Do(req)
	if err != nil {
		return models.JudgeResult{}, fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.JudgeResult{}, fmt.Errorf("status %d body=%q", resp.StatusCode, body)
	}

	var vr visionResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return models.JudgeResult{}, fmt.Errorf("decode response: %w", err)
	}

	action := vr.RecommendedAction
	if action != models.ActionAlert {
		action = models.ActionLogOnly
	}
	return models.JudgeResult{
		ConcealmentLikely: vr.ConcealmentLikely,
		Confidence:        helpers.Clamp(vr.Confidence, 0, 1),
		Evidence:          vr.Evidence,
		RecommendedAction: action,
		Backend:           BackendVision,
	}, nil
}

// slidingWindow enforces a per-key call budget over a trailing window
type slidingWindow struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	calls  map[string][]time.Time
}

func newSlidingWindow(limit int, window time.Duration) *slidingWindow {
	return &slidingWindow{
		limit:  limit,
		window: window,
		calls:  make(map[string][]time.Time),
	}
}

func (w *slidingWindow) allow(key string, now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-w.window)
	recent := w.calls[key][:0]
	for _, t := range w.calls[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= w.limit {
		w.calls[key] = recent
		return false
	}
	w.calls[key] = append(recent, now)
	return true
}
