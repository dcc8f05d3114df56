package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"vigil-worker-go/internal/config"
	"vigil-worker-go/internal/models"
)

// ExternalSynthesizer calls an external TTS endpoint. Retryable failures
// (timeout, 429, 5xx) get up to maxRetries attempts with exponential
// backoff; everything else, and exhausted retries, falls back to the local
// strategy. Callers never observe the external path failing outright.
type ExternalSynthesizer struct {
	url         string
	apiKey      string
	voice       string
	template    string
	outputDir   string
	maxRetries  int
	backoffBase time.Duration
	backoffCap  time.Duration
	client      *http.Client
	fallback    Synthesizer
}

func NewExternalSynthesizer(cfg *config.Config, fallback Synthesizer) *ExternalSynthesizer {
	maxRetries := cfg.TTSMaxRetries
	if maxRetries < 0 {
		// A negative count would wrap in the uint64 conversion below and
		// turn the bounded retry budget into an effectively infinite one.
		maxRetries = 0
	}
	return &ExternalSynthesizer{
		url:         cfg.TTSURL,
		apiKey:      cfg.TTSAPIKey,
		voice:       cfg.TTSVoice,
		template:    cfg.AlertTemplate,
		outputDir:   cfg.AudioOutputDir,
		maxRetries:  maxRetries,
		backoffBase: cfg.TTSBackoffBase,
		backoffCap:  cfg.TTSBackoffCap,
		client:      &http.Client{Timeout: cfg.TTSTimeout},
		fallback:    fallback,
	}
}

func (e *ExternalSynthesizer) Backend() string { return BackendExternal }

type ttsRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

func (e *ExternalSynthesizer) Speak(ctx context.Context, req Request) models.VoiceResult {
	path, err := e.synthesize(ctx, req)
	if err != nil {
		log.Warn().
			Err(err).
			Str("camera_id", req.CameraID).
			Msg("External TTS failed, falling back to local synthesis")
		return e.fallback.Speak(ctx, req)
	}
	return models.VoiceResult{Success: true, AudioRef: path, BackendUsed: BackendExternal}
}

func (e *ExternalSynthesizer) synthesize(ctx context.Context, req Request) (string, error) {
	payload, err := json.Marshal(ttsRequest{
		Text:  RenderTemplate(e.template, req.Location),
		Voice: e.voice,
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.backoffBase
	policy.MaxInterval = e.backoffCap
	policy.RandomizationFactor = 0

	var audioData []byte
	operation := func() error {
		data, err := e.post(ctx, payload)
		if err != nil {
			return err
		}
		audioData = data
		return nil
	}

	err = backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(e.maxRetries)), ctx))
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(e.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create audio dir: %w", err)
	}
	path := filepath.Join(e.outputDir, artifactName(req.CameraID, req.TrackID, ".mp3"))
	if err := os.WriteFile(path, audioData, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return path, nil
}

// post performs one TTS call. Non-retryable failures are wrapped in
// backoff.Permanent so the retry loop returns immediately.
func (e *ExternalSynthesizer) post(ctx context.Context, payload []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("tts timeout: %w", err)
		}
		return nil, fmt.Errorf("tts post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("retryable status %d body=%q", resp.StatusCode, body)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, backoff.Permanent(fmt.Errorf("status %d body=%q", resp.StatusCode, body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(data) == 0 {
		return nil, backoff.Permanent(errors.New("empty audio response"))
	}
	return data, nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
