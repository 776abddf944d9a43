package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/chadiek/sd-mate/internal/tts"
)

// ErrPlaybackFailed wraps every synthesis or playback failure.
var ErrPlaybackFailed = errors.New("playback failed")

// Synthesizer turns assistant text into audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (tts.Audio, error)
}

// Speaker owns the single playback slot: at most one utterance plays at a time.
type Speaker struct {
	synth  Synthesizer
	player Player
	log    *slog.Logger

	mu  sync.Mutex
	cur Handle
	// seq orders requests; only the latest one may take the slot
	seq uint64
}

func NewSpeaker(synth Synthesizer, player Player, log *slog.Logger) *Speaker {
	if log == nil {
		log = slog.Default()
	}
	return &Speaker{synth: synth, player: player, log: log}
}

// SynthesizeAndPlay stops whatever is playing, synthesizes text and starts
// playing it. Empty text only stops the current utterance. A request
// overtaken by a newer request or by Stop is discarded without playing.
func (s *Speaker) SynthesizeAndPlay(ctx context.Context, text string) error {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	prev := s.cur
	s.cur = nil
	s.mu.Unlock()
	if prev != nil {
		prev.Stop()
	}

	if strings.TrimSpace(text) == "" {
		return nil
	}

	a, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		s.log.Warn("speech synthesis failed", "err", err)
		return fmt.Errorf("%w: %v", ErrPlaybackFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq {
		s.log.Debug("synthesized reply superseded", "seq", seq)
		return nil
	}
	if s.cur != nil {
		s.cur.Stop()
		s.cur = nil
	}
	h, err := s.player.Play(a.Data, a.ContentType)
	if err != nil {
		s.log.Warn("playback start failed", "err", err)
		return fmt.Errorf("%w: %v", ErrPlaybackFailed, err)
	}
	s.cur = h
	go s.release(h)
	return nil
}

// release clears the slot when h finishes on its own.
func (s *Speaker) release(h Handle) {
	<-h.Done()
	s.mu.Lock()
	if s.cur == h {
		s.cur = nil
	}
	s.mu.Unlock()
}

// Playing reports whether an utterance holds the slot.
func (s *Speaker) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur != nil
}

// Stop interrupts the current utterance and cancels pending requests.
func (s *Speaker) Stop() {
	s.mu.Lock()
	s.seq++
	h := s.cur
	s.cur = nil
	s.mu.Unlock()
	if h != nil {
		h.Stop()
	}
}

// Close releases the output unconditionally.
func (s *Speaker) Close() { s.Stop() }
