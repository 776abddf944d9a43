package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// ErrDeviceUnavailable is returned when the microphone cannot be acquired,
// either because no device exists or permission was denied.
var ErrDeviceUnavailable = errors.New("audio input device unavailable")

// Stream is an exclusive PCM16LE mono input stream. Close releases the device
// and unblocks any pending Read.
type Stream interface {
	io.ReadCloser
}

// Device acquires input streams from the host.
type Device interface {
	Open(ctx context.Context) (Stream, error)
	SampleRate() int
}

// CommandDevice captures audio by running a host command (arecord, ffmpeg, sox)
// that writes raw PCM16LE mono to stdout.
type CommandDevice struct {
	Command []string
	Rate    int
	// Probe is how long the command must stay alive before the device counts as acquired.
	Probe time.Duration
}

// NewCommandDevice parses a whitespace separated command line.
func NewCommandDevice(cmdline string, rate int) *CommandDevice {
	return &CommandDevice{Command: strings.Fields(cmdline), Rate: rate, Probe: 200 * time.Millisecond}
}

func (d *CommandDevice) SampleRate() int { return d.Rate }

// Open starts the capture command. Failure to start, or an early exit within
// the probe window, is reported as ErrDeviceUnavailable.
func (d *CommandDevice) Open(ctx context.Context) (Stream, error) {
	if len(d.Command) == 0 {
		return nil, fmt.Errorf("%w: no capture command configured", ErrDeviceUnavailable)
	}
	cmd := exec.Command(d.Command[0], d.Command[1:]...)
	stderr := &limitedBuffer{max: 4096}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	s := &commandStream{cmd: cmd, stdout: stdout, exited: make(chan struct{})}
	go func() {
		s.waitErr = cmd.Wait()
		close(s.exited)
	}()

	probe := time.NewTimer(d.Probe)
	defer probe.Stop()
	select {
	case <-s.exited:
		msg := strings.TrimSpace(stderr.String())
		if msg == "" && s.waitErr != nil {
			msg = s.waitErr.Error()
		}
		return nil, fmt.Errorf("%w: %s exited: %s", ErrDeviceUnavailable, d.Command[0], msg)
	case <-ctx.Done():
		_ = s.Close()
		return nil, ctx.Err()
	case <-probe.C:
	}
	return s, nil
}

type commandStream struct {
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	exited  chan struct{}
	waitErr error
	once    sync.Once
}

func (s *commandStream) Read(p []byte) (int, error) { return s.stdout.Read(p) }

// Close kills the capture process and waits for it to exit.
func (s *commandStream) Close() error {
	s.once.Do(func() {
		select {
		case <-s.exited:
		default:
			_ = s.cmd.Process.Kill()
			<-s.exited
		}
	})
	return nil
}

// limitedBuffer keeps the first max bytes written to it.
type limitedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.max - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
