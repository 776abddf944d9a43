package capture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chadiek/sd-mate/internal/audio"
	"github.com/chadiek/sd-mate/internal/clock"
)

// Recording is the finished result of one capture.
type Recording struct {
	Data     []byte
	MIMEType string
	// Chunks is the number of periodic flushes that carried data.
	Chunks  int
	Elapsed int // seconds counted by the duration counter
}

// Events lets the host observe a capture in progress.
type Events struct {
	// OnElapsed fires once per second while recording and with 0 after stop.
	OnElapsed func(seconds int)
}

// Config tunes a Recorder. Zero values select the defaults.
type Config struct {
	Clock         clock.Clock
	FlushInterval time.Duration // default 1s
	NewEncoder    EncoderFactory
	Logger        *slog.Logger
	Events        Events
}

// Recorder owns the microphone for push-to-talk capture. At most one capture
// is live at a time.
type Recorder struct {
	dev        Device
	clk        clock.Clock
	flushEvery time.Duration
	newEncoder EncoderFactory
	log        *slog.Logger
	ev         Events

	mu     sync.Mutex
	active *capture

	level atomic.Uint64
}

type capture struct {
	stream   Stream
	stop     chan struct{}
	stopOnce sync.Once
	finished chan struct{}
	done     chan Recording
	counter  *clock.Task
	elapsed  int
}

// NewRecorder creates a Recorder reading from dev.
func NewRecorder(dev Device, cfg Config) *Recorder {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NewEncoder == nil {
		cfg.NewEncoder = PreferredEncoder(cfg.Logger)
	}
	return &Recorder{
		dev:        dev,
		clk:        cfg.Clock,
		flushEvery: cfg.FlushInterval,
		newEncoder: cfg.NewEncoder,
		log:        cfg.Logger,
		ev:         cfg.Events,
	}
}

// Start acquires the device and begins encoding. The returned channel
// receives exactly one Recording when the capture stops, then closes.
// Calling Start while a capture is live is a no-op returning the live
// capture's channel.
func (r *Recorder) Start(ctx context.Context) (<-chan Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil {
		return r.active.done, nil
	}

	stream, err := r.dev.Open(ctx)
	if err != nil {
		return nil, err
	}
	pending := &bytes.Buffer{}
	enc, err := r.newEncoder(pending, r.dev.SampleRate())
	if err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("capture encoder: %w", err)
	}

	c := &capture{
		stream:   stream,
		stop:     make(chan struct{}),
		finished: make(chan struct{}),
		done:     make(chan Recording, 1),
	}
	c.counter = clock.Every(r.clk, time.Second, func(t *clock.Task) bool {
		r.mu.Lock()
		if r.active != c || c.counter != t {
			r.mu.Unlock()
			return false
		}
		c.elapsed++
		n := c.elapsed
		r.mu.Unlock()
		r.emitElapsed(n)
		return true
	})
	r.active = c
	r.level.Store(0)
	go r.run(c, enc, pending, r.clk.NewTicker(r.flushEvery))

	r.log.Debug("capture started", "sample_rate", r.dev.SampleRate(), "mime", enc.MIMEType())
	return c.done, nil
}

// Stop finalizes the live capture, releases the device and delivers the
// Recording. It returns after the device has been released. Stop without a
// live capture is a no-op.
func (r *Recorder) Stop() {
	r.mu.Lock()
	c := r.active
	if c == nil {
		r.mu.Unlock()
		return
	}
	r.active = nil
	c.counter.Stop()
	r.mu.Unlock()

	c.stopOnce.Do(func() { close(c.stop) })
	<-c.finished
	r.emitElapsed(0)
}

// Close releases the device unconditionally.
func (r *Recorder) Close() { r.Stop() }

// Recording reports whether a capture is live.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

// Elapsed returns the recording-duration counter, 0 when idle.
func (r *Recorder) Elapsed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return 0
	}
	return r.active.elapsed
}

// Level returns the most recent input level in 0..1.
func (r *Recorder) Level() float64 { return math.Float64frombits(r.level.Load()) }

func (r *Recorder) emitElapsed(n int) {
	if r.ev.OnElapsed != nil {
		r.ev.OnElapsed(n)
	}
}

func (r *Recorder) run(c *capture, enc Encoder, pending *bytes.Buffer, flush clock.Ticker) {
	defer close(c.finished)

	frameBytes := r.dev.SampleRate() / 50 * 2
	if frameBytes <= 0 {
		frameBytes = 1920
	}
	frames := make(chan []int16, 64)
	go func() {
		defer close(frames)
		buf := make([]byte, frameBytes)
		for {
			n, err := io.ReadFull(c.stream, buf)
			if n > 0 {
				frames <- audio.Samples(buf[:n])
			}
			if err != nil {
				return
			}
		}
	}()

	var chunks [][]byte
	takeChunk := func() {
		if pending.Len() == 0 {
			return
		}
		chunks = append(chunks, bytes.Clone(pending.Bytes()))
		pending.Reset()
	}
	write := func(samples []int16) {
		r.level.Store(math.Float64bits(audio.Level(samples)))
		if err := enc.Write(samples); err != nil {
			r.log.Warn("capture encode failed", "err", err)
		}
	}

	in := frames
loop:
	for {
		select {
		case f, ok := <-in:
			if !ok {
				// device ended on its own; keep the capture open until stopped
				in = nil
				continue
			}
			write(f)
		case <-flush.C():
			takeChunk()
		case <-c.stop:
			break loop
		}
	}
	flush.Stop()

	// release the device first, then drain what it already produced
	if err := c.stream.Close(); err != nil {
		r.log.Warn("capture release failed", "err", err)
	}
	for f := range frames {
		write(f)
	}
	if err := enc.Close(); err != nil {
		r.log.Warn("capture encoder close failed", "err", err)
	}
	takeChunk()

	blob := bytes.Join(chunks, nil)
	if f, ok := enc.(finalizer); ok {
		if err := f.Finalize(blob); err != nil {
			r.log.Warn("capture finalize failed", "err", err)
		}
	}
	r.level.Store(0)

	r.mu.Lock()
	elapsed := c.elapsed
	r.mu.Unlock()

	c.done <- Recording{Data: blob, MIMEType: enc.MIMEType(), Chunks: len(chunks), Elapsed: elapsed}
	close(c.done)
	r.log.Debug("capture finished", "bytes", len(blob), "chunks", len(chunks), "elapsed_s", elapsed)
}
