package capture

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand"

	"github.com/chadiek/sd-mate/internal/audio"
	"github.com/hraban/opus"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3/pkg/media/oggwriter"
)

const (
	MIMEOpus = "audio/ogg;codecs=opus"
	MIMEWAV  = "audio/wav"

	opusClockRate   = 48000
	opusPayloadType = 111
)

// Encoder turns PCM samples into container bytes written to the writer it was
// created with. Nothing is written until the first sample arrives, so a
// capture with no audio yields an empty blob.
type Encoder interface {
	Write(samples []int16) error
	Close() error
	MIMEType() string
}

// finalizer is implemented by encoders whose container needs fixing up once
// all chunks have been concatenated.
type finalizer interface {
	Finalize(blob []byte) error
}

// EncoderFactory builds an Encoder for one capture.
type EncoderFactory func(w io.Writer, sampleRate int) (Encoder, error)

// PreferredEncoder tries Opus in Ogg and falls back to WAV when the Opus
// encoder cannot be created for this host or sample rate.
func PreferredEncoder(log *slog.Logger) EncoderFactory {
	if log == nil {
		log = slog.Default()
	}
	return func(w io.Writer, sampleRate int) (Encoder, error) {
		enc, err := NewOpusEncoder(w, sampleRate)
		if err == nil {
			return enc, nil
		}
		log.Warn("opus encoder unavailable, falling back to wav", "sample_rate", sampleRate, "err", err)
		return NewWAVEncoder(w, sampleRate), nil
	}
}

// OpusEncoder encodes 20ms mono frames to Opus and muxes them into Ogg pages.
type OpusEncoder struct {
	out          io.Writer
	enc          *opus.Encoder
	ogg          *oggwriter.OggWriter
	sampleRate   int
	frameSamples int
	pcm          []int16
	buf          []byte
	seq          uint16
	ts           uint32
	ssrc         uint32
}

// NewOpusEncoder creates an encoder for mono PCM at sampleRate
// (8000, 12000, 16000, 24000 or 48000).
func NewOpusEncoder(w io.Writer, sampleRate int) (*OpusEncoder, error) {
	enc, err := opus.NewEncoder(sampleRate, 1, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("opus encoder: %w", err)
	}
	return &OpusEncoder{
		out:          w,
		enc:          enc,
		sampleRate:   sampleRate,
		frameSamples: sampleRate / 50, // 20ms
		buf:          make([]byte, 4000),
		ssrc:         rand.Uint32(),
	}, nil
}

func (e *OpusEncoder) MIMEType() string { return MIMEOpus }

// Write buffers samples and emits one Ogg page per complete 20ms frame.
func (e *OpusEncoder) Write(samples []int16) error {
	e.pcm = append(e.pcm, samples...)
	for len(e.pcm) >= e.frameSamples {
		if err := e.encodeFrame(e.pcm[:e.frameSamples]); err != nil {
			return err
		}
		n := copy(e.pcm, e.pcm[e.frameSamples:])
		e.pcm = e.pcm[:n]
	}
	return nil
}

// Close zero-pads the trailing partial frame and ends the Ogg stream.
func (e *OpusEncoder) Close() error {
	if len(e.pcm) > 0 {
		pad := make([]int16, e.frameSamples)
		copy(pad, e.pcm)
		e.pcm = e.pcm[:0]
		if err := e.encodeFrame(pad); err != nil {
			return err
		}
	}
	if e.ogg == nil {
		return nil
	}
	return e.ogg.Close()
}

func (e *OpusEncoder) encodeFrame(frame []int16) error {
	n, err := e.enc.Encode(frame, e.buf)
	if err != nil {
		return fmt.Errorf("opus encode: %w", err)
	}
	if n == 0 {
		return nil
	}
	if e.ogg == nil {
		ogg, err := oggwriter.NewWith(e.out, uint32(e.sampleRate), 1)
		if err != nil {
			return fmt.Errorf("ogg writer: %w", err)
		}
		e.ogg = ogg
	}
	payload := make([]byte, n)
	copy(payload, e.buf[:n])
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    opusPayloadType,
			SequenceNumber: e.seq,
			Timestamp:      e.ts,
			SSRC:           e.ssrc,
		},
		Payload: payload,
	}
	e.seq++
	// Ogg Opus granule positions always count 48kHz samples.
	e.ts += uint32(opusClockRate / 50)
	return e.ogg.WriteRTP(pkt)
}

// WAVEncoder writes 16-bit PCM in a WAV container with streaming sizes that
// are patched by Finalize.
type WAVEncoder struct {
	out        io.Writer
	sampleRate int
	started    bool
}

func NewWAVEncoder(w io.Writer, sampleRate int) *WAVEncoder {
	return &WAVEncoder{out: w, sampleRate: sampleRate}
}

func (e *WAVEncoder) MIMEType() string { return MIMEWAV }

func (e *WAVEncoder) Write(samples []int16) error {
	if len(samples) == 0 {
		return nil
	}
	if !e.started {
		if _, err := e.out.Write(audio.WAVHeader(e.sampleRate, 1, -1)); err != nil {
			return err
		}
		e.started = true
	}
	_, err := e.out.Write(audio.Bytes(samples))
	return err
}

func (e *WAVEncoder) Close() error { return nil }

func (e *WAVEncoder) Finalize(blob []byte) error {
	if len(blob) == 0 {
		return nil
	}
	return audio.PatchWAVSizes(blob)
}
