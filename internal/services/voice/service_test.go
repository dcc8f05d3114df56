package voice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil-worker-go/internal/config"
)

const testTemplate = "Security alert. Possible shoplifting detected at {location}."

func baseConfig(dir string) *config.Config {
	return &config.Config{
		AlertTemplate:    testTemplate,
		AudioOutputDir:   dir,
		PlaybackEnabled:  false,
		TTSTimeout:       time.Second,
		TTSMaxRetries:    2,
		TTSBackoffBase:   time.Millisecond,
		TTSBackoffCap:    5 * time.Millisecond,
		PlaybackQueueLen: 4,
	}
}

func TestLocalAlwaysSucceedsWithoutCredentials(t *testing.T) {
	cfg := baseConfig(t.TempDir())
	svc := NewService(cfg)

	res := svc.Play(context.Background(), Request{Location: "Aisle 3", CameraID: "cam-1"})

	assert.True(t, res.Success)
	assert.Equal(t, BackendLocal, res.BackendUsed)
	assert.NotEmpty(t, res.AudioRef)
	assert.Empty(t, res.Error)

	info, err := os.Stat(res.AudioRef)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(44), "artifact should hold more than a bare header")
}

func TestLocalDirectoryFaultReported(t *testing.T) {
	dir := t.TempDir()
	blocked := filepath.Join(dir, "blocked")
	require.NoError(t, os.WriteFile(blocked, []byte("not a dir"), 0o644))

	synth := NewLocalSynthesizer(testTemplate, filepath.Join(blocked, "audio"))
	res := synth.Speak(context.Background(), Request{Location: "Aisle 3", CameraID: "cam-1"})

	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestArtifactNamesAreSafeAndUnique(t *testing.T) {
	track := int64(12)
	a := artifactName("cam/1:front door", &track, ".wav")
	b := artifactName("cam/1:front door", &track, ".wav")

	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasSuffix(a, ".wav"))
	assert.NotContains(t, a, "/")
	assert.NotContains(t, a, ":")
	assert.NotContains(t, a, " ")
	assert.Contains(t, a, "t12")
}

func TestExternalTTSSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		w.Write([]byte("fake-audio-bytes"))
	}))
	defer srv.Close()

	cfg := baseConfig(t.TempDir())
	cfg.TTSEnabled = true
	cfg.TTSURL = srv.URL
	cfg.TTSAPIKey = "key"
	svc := NewService(cfg)

	res := svc.Play(context.Background(), Request{Location: "Aisle 3", CameraID: "cam-1"})

	assert.True(t, res.Success)
	assert.Equal(t, BackendExternal, res.BackendUsed)

	data, err := os.ReadFile(res.AudioRef)
	require.NoError(t, err)
	assert.Equal(t, "fake-audio-bytes", string(data))
}

func TestExternalTTSRetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "try later", http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("audio"))
	}))
	defer srv.Close()

	cfg := baseConfig(t.TempDir())
	cfg.TTSEnabled = true
	cfg.TTSURL = srv.URL
	cfg.TTSAPIKey = "key"

	synth := NewExternalSynthesizer(cfg, NewLocalSynthesizer(testTemplate, cfg.AudioOutputDir))
	res := synth.Speak(context.Background(), Request{Location: "Aisle 3", CameraID: "cam-1"})

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.True(t, res.Success)
	assert.Equal(t, BackendExternal, res.BackendUsed)
}

func TestExternalTTSNonRetryableFallsBackImmediately(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	cfg := baseConfig(t.TempDir())
	cfg.TTSEnabled = true
	cfg.TTSURL = srv.URL
	cfg.TTSAPIKey = "key"

	synth := NewExternalSynthesizer(cfg, NewLocalSynthesizer(testTemplate, cfg.AudioOutputDir))
	res := synth.Speak(context.Background(), Request{Location: "Aisle 3", CameraID: "cam-1"})

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "non-retryable status must not be retried")
	assert.True(t, res.Success)
	assert.Equal(t, BackendLocal, res.BackendUsed)
}

func TestExternalTTSExhaustedRetriesFallsBack(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := baseConfig(t.TempDir())
	cfg.TTSEnabled = true
	cfg.TTSURL = srv.URL
	cfg.TTSAPIKey = "key"

	synth := NewExternalSynthesizer(cfg, NewLocalSynthesizer(testTemplate, cfg.AudioOutputDir))
	res := synth.Speak(context.Background(), Request{Location: "Aisle 3", CameraID: "cam-1"})

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "initial call plus two retries")
	assert.True(t, res.Success)
	assert.Equal(t, BackendLocal, res.BackendUsed)
}

func TestExternalTTSNegativeRetriesStayBounded(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := baseConfig(t.TempDir())
	cfg.TTSEnabled = true
	cfg.TTSURL = srv.URL
	cfg.TTSAPIKey = "key"
	cfg.TTSMaxRetries = -1

	synth := NewExternalSynthesizer(cfg, NewLocalSynthesizer(testTemplate, cfg.AudioOutputDir))
	res := synth.Speak(context.Background(), Request{Location: "Aisle 3", CameraID: "cam-1"})

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "negative retry budget means one attempt")
	assert.True(t, res.Success)
	assert.Equal(t, BackendLocal, res.BackendUsed)
}

func TestRenderTemplate(t *testing.T) {
	assert.Equal(t,
		"Security alert. Possible shoplifting detected at Aisle 3.",
		RenderTemplate(testTemplate, "Aisle 3"))
	assert.Equal(t, "no placeholder", RenderTemplate("no placeholder", "x"))
}

type recordingPlayer struct {
	mu     sync.Mutex
	played []string
	block  chan struct{}
}

func (p *recordingPlayer) Play(path string) error {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	p.played = append(p.played, path)
	p.mu.Unlock()
	return nil
}

func TestPlaybackQueueSerializesFIFO(t *testing.T) {
	player := &recordingPlayer{}
	q := NewPlaybackQueueWithPlayer(4, player)

	q.Enqueue("a.wav")
	q.Enqueue("b.wav")
	q.Enqueue("c.wav")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, q.Close(ctx))

	assert.Equal(t, []string{"a.wav", "b.wav", "c.wav"}, player.played)
}

func TestPlaybackQueueDropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	player := &recordingPlayer{block: block}
	q := NewPlaybackQueueWithPlayer(1, player)

	for i := 0; i < 5; i++ {
		q.Enqueue("x.wav")
	}
	assert.Greater(t, q.Dropped(), int64(0))

	close(block)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, q.Close(ctx))
}
