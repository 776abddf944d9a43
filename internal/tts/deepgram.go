package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/pkg/api/speak/v1/websocket/interfaces"
	clientinterfaces "github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces/v1"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/speak"

	"github.com/chadiek/sd-mate/internal/audio"
)

// DeepgramClient synthesizes speech directly with Deepgram Aura over its
// websocket API and wraps the linear16 result in WAV.
type DeepgramClient struct {
	apiKey     string
	model      string
	sampleRate int
	// Timeout caps one synthesis from connect to flush.
	Timeout time.Duration
}

func NewDeepgramClient(apiKey, model string) *DeepgramClient {
	if model == "" {
		model = "aura-2-thalia-en"
	}
	return &DeepgramClient{apiKey: apiKey, model: model, sampleRate: 24000, Timeout: 20 * time.Second}
}

// Synthesize speaks text and returns a WAV blob once Deepgram confirms the flush.
func (d *DeepgramClient) Synthesize(ctx context.Context, text string) (Audio, error) {
	if d.apiKey == "" {
		return Audio{}, errors.New("deepgram: API key missing")
	}
	if strings.TrimSpace(text) == "" {
		return Audio{}, errors.New("deepgram: empty text")
	}
	ctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	cb := newSpeakCollector()
	options := &clientinterfaces.WSSpeakOptions{
		Model:      d.model,
		Encoding:   "linear16",
		SampleRate: d.sampleRate,
	}
	dg, err := speak.NewWSUsingCallback(ctx, d.apiKey, &clientinterfaces.ClientOptions{}, options, cb)
	if err != nil {
		return Audio{}, fmt.Errorf("deepgram: create ws client: %w", err)
	}
	defer dg.Stop()

	if ok := dg.Connect(); !ok {
		return Audio{}, errors.New("deepgram: connect failed")
	}
	if err := dg.SpeakWithText(text); err != nil {
		return Audio{}, fmt.Errorf("deepgram: speak text: %w", err)
	}
	if err := dg.Flush(); err != nil {
		return Audio{}, fmt.Errorf("deepgram: flush: %w", err)
	}

	select {
	case <-cb.flushed:
	case err := <-cb.failed:
		return Audio{}, err
	case <-ctx.Done():
		return Audio{}, fmt.Errorf("deepgram: %w", ctx.Err())
	}
	pcm := cb.pcm()
	if len(pcm) == 0 {
		return Audio{}, errors.New("deepgram: no audio received")
	}
	return Audio{Data: audio.WAV(pcm, d.sampleRate, 1), ContentType: "audio/wav"}, nil
}

// speakCollector accumulates binary audio frames until the server confirms the flush.
type speakCollector struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	flushed chan struct{}
	failed  chan error
	once    sync.Once
}

func newSpeakCollector() *speakCollector {
	return &speakCollector{flushed: make(chan struct{}), failed: make(chan error, 1)}
}

func (s *speakCollector) pcm() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Clone(s.buf.Bytes())
}

func (s *speakCollector) Open(*msginterfaces.OpenResponse) error         { return nil }
func (s *speakCollector) Metadata(*msginterfaces.MetadataResponse) error { return nil }
func (s *speakCollector) Clear(*msginterfaces.ClearedResponse) error     { return nil }
func (s *speakCollector) Close(*msginterfaces.CloseResponse) error       { return nil }
func (s *speakCollector) Warning(*msginterfaces.WarningResponse) error   { return nil }
func (s *speakCollector) UnhandledEvent([]byte) error                    { return nil }

func (s *speakCollector) Flush(*msginterfaces.FlushedResponse) error {
	s.once.Do(func() { close(s.flushed) })
	return nil
}

func (s *speakCollector) Error(er *msginterfaces.ErrorResponse) error {
	msg := "deepgram: synthesis error"
	if er != nil {
		msg = fmt.Sprintf("%s: %+v", msg, *er)
	}
	select {
	case s.failed <- errors.New(msg):
	default:
	}
	return nil
}

func (s *speakCollector) Binary(data []byte) error {
	s.mu.Lock()
	s.buf.Write(data)
	s.mu.Unlock()
	return nil
}
