package playback

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// Handle is one live audio output. Stop releases it; Done closes once the
// utterance has ended, naturally or by Stop.
type Handle interface {
	Stop()
	Done() <-chan struct{}
}

// Player starts playback of an encoded utterance.
type Player interface {
	Play(data []byte, contentType string) (Handle, error)
}

// CommandPlayer plays audio with a host command (ffplay, mpv, afplay). The
// audio is written to a temporary file whose path is appended to Command;
// the file is the handle's decode buffer and is removed when the handle ends.
type CommandPlayer struct {
	Command []string
	TempDir string
}

func NewCommandPlayer(cmdline string) *CommandPlayer {
	return &CommandPlayer{Command: strings.Fields(cmdline)}
}

func (p *CommandPlayer) Play(data []byte, contentType string) (Handle, error) {
	if len(p.Command) == 0 {
		return nil, errors.New("playback: no player command configured")
	}
	if len(data) == 0 {
		return nil, errors.New("playback: empty audio")
	}
	f, err := os.CreateTemp(p.TempDir, "sdmate-*"+extension(contentType))
	if err != nil {
		return nil, fmt.Errorf("playback: buffer: %w", err)
	}
	path := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("playback: buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("playback: buffer: %w", err)
	}

	args := append(append([]string{}, p.Command[1:]...), path)
	cmd := exec.Command(p.Command[0], args...)
	if err := cmd.Start(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("playback: start %s: %w", p.Command[0], err)
	}
	h := &commandHandle{cmd: cmd, done: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		os.Remove(path)
		close(h.done)
	}()
	return h, nil
}

type commandHandle struct {
	cmd  *exec.Cmd
	done chan struct{}
	once sync.Once
}

func (h *commandHandle) Done() <-chan struct{} { return h.done }

func (h *commandHandle) Stop() {
	h.once.Do(func() {
		select {
		case <-h.done:
		default:
			_ = h.cmd.Process.Kill()
		}
	})
	<-h.done
}

func extension(contentType string) string {
	base, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		base = contentType
	}
	switch base {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/ogg", "audio/opus":
		return ".ogg"
	case "audio/webm":
		return ".webm"
	case "audio/aac":
		return ".aac"
	default:
		return ".audio"
	}
}
