package voice

import (
	"context"
	"os/exec"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// Player plays one audio artifact to completion
type Player interface {
	Play(path string) error
}

// execPlayer shells out to the platform audio player. A missing player is
// not an error worth surfacing; playback is best-effort.
type execPlayer struct{}

func (execPlayer) Play(path string) error {
	var candidates []string
	switch runtime.GOOS {
	case "darwin":
		candidates = []string{"afplay"}
	case "linux":
		candidates = []string{"aplay", "paplay", "mpg123", "ffplay"}
	}
	for _, bin := range candidates {
		if _, err := exec.LookPath(bin); err == nil {
			return exec.Command(bin, path).Run()
		}
	}
	log.Debug().Str("path", path).Msg("No audio player available, skipping playback")
	return nil
}

// PlaybackQueue serializes playback through a single consumer so
// overlapping alerts play sequentially. Enqueue never blocks: when the
// bounded channel is full the newest entry is dropped and counted.
type PlaybackQueue struct {
	ch      chan string
	player  Player
	dropped atomic.Int64
	once    sync.Once
	done    chan struct{}
}

func NewPlaybackQueue(size int) *PlaybackQueue {
	return NewPlaybackQueueWithPlayer(size, execPlayer{})
}

func NewPlaybackQueueWithPlayer(size int, player Player) *PlaybackQueue {
	if size <= 0 {
		size = 16
	}
	q := &PlaybackQueue{
		ch:     make(chan string, size),
		player: player,
		done:   make(chan struct{}),
	}
	go q.consume()
	return q
}

func (q *PlaybackQueue) consume() {
	defer close(q.done)
	for path := range q.ch {
		if err := q.player.Play(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Audio playback failed")
		}
	}
}

// Enqueue adds an artifact for playback, dropping it when the queue is full
func (q *PlaybackQueue) Enqueue(path string) {
	select {
	case q.ch <- path:
	default:
		n := q.dropped.Add(1)
		log.Warn().Str("path", path).Int64("dropped_total", n).Msg("Playback queue full, dropping alert audio")
	}
}

// Dropped returns how many artifacts were discarded due to back-pressure
func (q *PlaybackQueue) Dropped() int64 {
	return q.dropped.Load()
}

// Close stops accepting work and waits for in-flight playback, bounded by
// the context deadline.
func (q *PlaybackQueue) Close(ctx context.Context) error {
	q.once.Do(func() { close(q.ch) })
	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
