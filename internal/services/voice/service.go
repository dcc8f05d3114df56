package voice

import (
	"context"

	"github.com/rs/zerolog/log"

	"vigil-worker-go/internal/config"
	"vigil-worker-go/internal/models"
)

// Backend names recorded in incident records
const (
	BackendLocal    = "local_audio"
	BackendExternal = "external_tts"
)

// Request describes one voice alert
type Request struct {
	Location string
	CameraID string
	TrackID  *int64
}

// Synthesizer produces an audio artifact for an alert. The external
// strategy resolves its own failures by falling back to the local one;
// only a local directory/IO fault surfaces as Success=false.
type Synthesizer interface {
	Speak(ctx context.Context, req Request) models.VoiceResult
	Backend() string
}

// Service wraps the selected synthesis strategy and the playback queue.
// Strategy selection happens once at construction and never changes.
type Service struct {
	synth Synthesizer
	queue *PlaybackQueue
}

func NewService(cfg *config.Config) *Service {
	local := NewLocalSynthesizer(cfg.AlertTemplate, cfg.AudioOutputDir)

	var synth Synthesizer = local
	if cfg.TTSEnabled && cfg.TTSURL != "" && cfg.TTSAPIKey != "" {
		synth = NewExternalSynthesizer(cfg, local)
	} else if cfg.TTSEnabled {
		log.Warn().Msg("External TTS enabled but credentials missing, using local synthesis")
	}
	log.Info().Str("backend", synth.Backend()).Msg("Voice alert strategy selected")

	var queue *PlaybackQueue
	if cfg.PlaybackEnabled {
		queue = NewPlaybackQueue(cfg.PlaybackQueueLen)
	}

	return &Service{synth: synth, queue: queue}
}

// Play produces the audio artifact synchronously and enqueues playback
// fire-and-forget. A slow or missing audio player never delays the caller.
func (s *Service) Play(ctx context.Context, req Request) models.VoiceResult {
	result := s.synth.Speak(ctx, req)

	if result.Success && s.queue != nil {
		s.queue.Enqueue(result.AudioRef)
	}
	return result
}

// Shutdown drains the playback queue
func (s *Service) Shutdown(ctx context.Context) error {
	if s.queue != nil {
		return s.queue.Close(ctx)
	}
	return nil
}
