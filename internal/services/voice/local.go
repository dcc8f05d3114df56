package voice

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/rs/zerolog/log"

	"vigil-worker-go/internal/models"
)

// Tone parameters for the fallback beep
const (
	toneFreqHz     = 880
	toneSampleRate = 22050
	toneSeconds    = 1.5
)

// LocalSynthesizer is the default strategy: a platform speech command when
// one is available, otherwise a synthesized tone in a WAV container. The
// only failure it can report is a directory/IO fault.
type LocalSynthesizer struct {
	template  string
	outputDir string
}

func NewLocalSynthesizer(template, outputDir string) *LocalSynthesizer {
	return &LocalSynthesizer{template: template, outputDir: outputDir}
}

func (l *LocalSynthesizer) Backend() string { return BackendLocal }

func (l *LocalSynthesizer) Speak(ctx context.Context, req Request) models.VoiceResult {
	if err := os.MkdirAll(l.outputDir, 0o755); err != nil {
		return models.VoiceResult{
			Success:     false,
			BackendUsed: BackendLocal,
			Error:       fmt.Sprintf("create audio dir: %v", err),
		}
	}

	text := RenderTemplate(l.template, req.Location)

	if path, err := l.speechCommand(ctx, text, req); err == nil {
		return models.VoiceResult{Success: true, AudioRef: path, BackendUsed: BackendLocal}
	} else if err != errNoSpeechCommand {
		log.Debug().Err(err).Msg("Speech synthesis failed, degrading to tone")
	}

	path := filepath.Join(l.outputDir, artifactName(req.CameraID, req.TrackID, ".wav"))
	if err := writeToneWAV(path); err != nil {
		return models.VoiceResult{
			Success:     false,
			BackendUsed: BackendLocal,
			Error:       fmt.Sprintf("write tone artifact: %v", err),
		}
	}
	return models.VoiceResult{Success: true, AudioRef: path, BackendUsed: BackendLocal}
}

var errNoSpeechCommand = fmt.Errorf("no speech command available")

// speechCommand runs the platform speech synthesizer into an artifact file
func (l *LocalSynthesizer) speechCommand(ctx context.Context, text string, req Request) (string, error) {
	switch runtime.GOOS {
	case "darwin":
		if _, err := exec.LookPath("say"); err != nil {
			return "", errNoSpeechCommand
		}
		path := filepath.Join(l.outputDir, artifactName(req.CameraID, req.TrackID, ".aiff"))
		if err := exec.CommandContext(ctx, "say", "-o", path, text).Run(); err != nil {
			return "", fmt.Errorf("say: %w", err)
		}
		return path, nil
	case "linux":
		bin := ""
		for _, candidate := range []string{"espeak-ng", "espeak"} {
			if _, err := exec.LookPath(candidate); err == nil {
				bin = candidate
				break
			}
		}
		if bin == "" {
			return "", errNoSpeechCommand
		}
		path := filepath.Join(l.outputDir, artifactName(req.CameraID, req.TrackID, ".wav"))
		if err := exec.CommandContext(ctx, bin, "-w", path, text).Run(); err != nil {
			return "", fmt.Errorf("%s: %w", bin, err)
		}
		return path, nil
	case "windows":
		if _, err := exec.LookPath("powershell"); err != nil {
			return "", errNoSpeechCommand
		}
		path := filepath.Join(l.outputDir, artifactName(req.CameraID, req.TrackID, ".wav"))
		script := fmt.Sprintf(
			"Add-Type -AssemblyName System.Speech; $s = New-Object System.Speech.Synthesis.SpeechSynthesizer; $s.SetOutputToWaveFile(%q); $s.Speak(%q); $s.Dispose()",
			path, text)
		if err := exec.CommandContext(ctx, "powershell", "-NoProfile", "-Command", script).Run(); err != nil {
			return "", fmt.Errorf("powershell speech: %w", err)
		}
		return path, nil
	default:
		return "", errNoSpeechCommand
	}
}

// RenderTemplate substitutes {location} in the alert text template
func RenderTemplate(template, location string) string {
	return strings.ReplaceAll(template, "{location}", location)
}

// writeToneWAV writes a fixed sine tone into a minimal PCM WAV container
func writeToneWAV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, toneSampleRate, 16, 1, 1)

	n := int(toneSeconds * toneSampleRate)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: toneSampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, n),
	}
	for i := 0; i < n; i++ {
		// Short attack/release ramp avoids clicks at the edges
		amp := 0.6
		ramp := toneSampleRate / 100
		if i < ramp {
			amp *= float64(i) / float64(ramp)
		} else if n-i < ramp {
			amp *= float64(n-i) / float64(ramp)
		}
		sample := amp * math.Sin(2*math.Pi*toneFreqHz*float64(i)/toneSampleRate)
		buf.Data[i] = int(sample * 32767)
	}

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode tone: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}
