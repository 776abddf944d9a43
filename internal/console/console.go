// Package console is the interactive terminal front-end for a practice session.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/term"

	"github.com/chadiek/sd-mate/internal/agent"
	"github.com/chadiek/sd-mate/internal/catalog"
)

const (
	keyCtrlC     = 0x03
	keyCtrlD     = 0x04
	keyBackspace = 0x08
	keyCtrlN     = 0x0e
	keyCtrlV     = 0x16
	keyDelete    = 0x7f
)

// Controller is the part of the session controller the console drives.
type Controller interface {
	LoadSession(ctx context.Context, title, articleURL string, durationSeconds int) error
	SubmitUserTurn(ctx context.Context, text string, isTranscription bool) error
	StartRecording(ctx context.Context) error
	StopRecording()
	SetVoiceMode(on bool)
	Status() agent.Status
	Subscribe(buffer int) (<-chan agent.Event, func())
}

// Console reads keys from in and renders controller events to out.
type Console struct {
	ctl             Controller
	in              *bufio.Reader
	fd              int
	isTerm          bool
	scr             *screen
	log             *slog.Logger
	defaultDuration int

	wg sync.WaitGroup
}

// New creates a console on stdin/stdout.
func New(ctl Controller, defaultDuration int, log *slog.Logger) *Console {
	c := NewWithIO(ctl, os.Stdin, os.Stdout, defaultDuration, log)
	c.fd = int(os.Stdin.Fd())
	c.isTerm = term.IsTerminal(c.fd)
	return c
}

// NewWithIO creates a console with custom IO. Raw mode is never used.
func NewWithIO(ctl Controller, in io.Reader, out io.Writer, defaultDuration int, log *slog.Logger) *Console {
	if log == nil {
		log = slog.Default()
	}
	if !catalog.ValidDuration(defaultDuration) {
		defaultDuration = catalog.DefaultDuration
	}
	return &Console{
		ctl:             ctl,
		in:              bufio.NewReader(in),
		fd:              -1,
		scr:             &screen{w: out},
		log:             log,
		defaultDuration: defaultDuration,
	}
}

// Choice is a session picked by the user.
type Choice struct {
	Title    string
	URL      string
	Duration int
}

// Choose lists the curated articles and asks for an article and a duration.
func (c *Console) Choose(ctx context.Context) (Choice, error) {
	c.scr.println(catalog.Welcome)
	for _, a := range catalog.Articles() {
		c.scr.printf("  %s. %s\n", a.ID, a.Title)
	}
	var ch Choice
	for ch.URL == "" {
		answer, err := c.prompt(ctx, "Article number or blog URL")
		if err != nil {
			return Choice{}, err
		}
		if a, ok := catalog.Lookup(answer); ok {
			ch.Title, ch.URL = a.Title, a.URL
		} else if strings.HasPrefix(answer, "http://") || strings.HasPrefix(answer, "https://") {
			ch.Title, ch.URL = agent.CustomTitle, answer
		} else {
			c.scr.println("Pick a number from the list or paste a URL.")
		}
	}
	def := strconv.Itoa(c.defaultDuration/60) + "m"
	for ch.Duration == 0 {
		answer, err := c.prompt(ctx, "Duration (5m, 10m, 15m) ["+def+"]")
		if err != nil {
			return Choice{}, err
		}
		if answer == "" {
			answer = def
		}
		d, err := catalog.ParseDuration(answer)
		if err != nil {
			c.scr.println(err.Error())
			continue
		}
		ch.Duration = d
	}
	return ch, nil
}

func (c *Console) prompt(ctx context.Context, message string) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("prompt canceled: %w", ctx.Err())
	default:
	}
	c.scr.printf("%s: ", message)
	input, err := c.in.ReadString('\n')
	if err != nil && (input == "" || !errors.Is(err, io.EOF)) {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(input), nil
}

// Start loads the chosen session in the background.
func (c *Console) Start(ctx context.Context, ch Choice) {
	c.scr.printf("Loading %q (%s)...\n", ch.Title, agent.FormatClock(ch.Duration))
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.ctl.LoadSession(ctx, ch.Title, ch.URL, ch.Duration); err != nil {
			c.scr.printf("! %v\n", err)
		}
	}()
}

// Run renders events and handles keys until Ctrl-C, Ctrl-D on an empty line
// or end of input.
func (c *Console) Run(ctx context.Context) error {
	events, unsubscribe := c.ctl.Subscribe(256)
	rendered := make(chan struct{})
	go func() {
		defer close(rendered)
		for ev := range events {
			if s := render(ev); s != "" {
				c.scr.line(s)
			}
		}
	}()
	defer func() {
		unsubscribe()
		<-rendered
	}()

	if err := c.raw(); err != nil {
		c.log.Warn("raw terminal mode unavailable", "err", err)
	}
	defer c.restore()
	c.scr.println("Type and press Enter to send. Space on an empty line records, Ctrl-V voice mode, Ctrl-N new session, Ctrl-C quit.")

	for {
		if ctx.Err() != nil {
			return nil
		}
		r, _, err := c.in.ReadRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.flushLine(ctx)
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}
		switch r {
		case keyCtrlC:
			return nil
		case keyCtrlD:
			if c.scr.pending() == "" {
				return nil
			}
		case '\r', '\n':
			c.flushLine(ctx)
		case keyBackspace, keyDelete:
			c.scr.backspace()
		case keyCtrlV:
			on := !c.ctl.Status().VoiceMode
			c.ctl.SetVoiceMode(on)
		case keyCtrlN:
			if err := c.newSession(ctx); err != nil {
				return err
			}
		case ' ':
			if c.scr.pending() == "" {
				c.toggleRecording(ctx)
				continue
			}
			c.scr.typed(r)
		default:
			if r >= 0x20 && r != utf8.RuneError {
				c.scr.typed(r)
			}
		}
	}
}

func (c *Console) flushLine(ctx context.Context) {
	text := strings.TrimSpace(c.scr.take())
	if text == "" {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.ctl.SubmitUserTurn(ctx, text, false); err != nil {
			c.scr.line("! " + err.Error())
		}
	}()
}

func (c *Console) toggleRecording(ctx context.Context) {
	if c.ctl.Status().Recording {
		c.ctl.StopRecording()
		return
	}
	if err := c.ctl.StartRecording(ctx); err != nil {
		c.scr.line("! " + err.Error())
	}
}

func (c *Console) newSession(ctx context.Context) error {
	c.restore()
	c.scr.take()
	ch, err := c.Choose(ctx)
	if err != nil {
		return err
	}
	c.Start(ctx, ch)
	return c.raw()
}

func (c *Console) raw() error {
	if !c.isTerm {
		return nil
	}
	st, err := term.MakeRaw(c.fd)
	if err != nil {
		return err
	}
	c.scr.setRaw(st)
	return nil
}

func (c *Console) restore() {
	if st := c.scr.setRaw(nil); st != nil {
		_ = term.Restore(c.fd, st)
	}
}

// Wait blocks until background session loads and submissions have returned.
func (c *Console) Wait() { c.wg.Wait() }

// render turns an event into a transcript line, or "" for events that
// only change the status.
func render(ev agent.Event) string {
	st := ev.Status
	switch ev.Kind {
	case agent.EventMessage:
		if ev.Message == nil {
			return ""
		}
		who := "SD Mate"
		if ev.Message.Sender == agent.User {
			who = "You"
			if ev.Message.IsTranscription {
				who = "You (voice)"
			}
		}
		return who + ": " + ev.Message.Text
	case agent.EventNotice:
		if ev.Notice == nil {
			return ""
		}
		return "! " + ev.Notice.Text
	case agent.EventTick:
		r := st.RemainingSeconds
		if r%60 == 0 || r == 180 || r == 60 || (r <= 10 && r > 0) {
			return fmt.Sprintf("[%s %s]", st.Clock, st.Urgency)
		}
	case agent.EventTranscript:
		if st.Transcript == agent.TranscribingText {
			return "[" + st.Transcript + "]"
		}
	case agent.EventRecording:
		if st.Recording && st.RecordingSeconds == 0 {
			return "[recording... press space to stop]"
		}
	case agent.EventVoice:
		if st.VoiceMode {
			return "[voice mode on]"
		}
		return "[voice mode off]"
	case agent.EventSession:
		if st.Starting {
			return fmt.Sprintf("[%s | %s]", st.Title, st.Clock)
		}
	}
	return ""
}

// screen serializes output and keeps the line being typed intact when
// event lines are printed.
type screen struct {
	mu  sync.Mutex
	w   io.Writer
	raw *term.State
	buf []rune
}

func (s *screen) setRaw(st *term.State) *term.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.raw
	s.raw = st
	return prev
}

func (s *screen) write(str string) {
	if s.raw != nil {
		str = strings.ReplaceAll(str, "\n", "\r\n")
	}
	_, _ = io.WriteString(s.w, str)
}

func (s *screen) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.write(fmt.Sprintf(format, args...))
}

func (s *screen) println(str string) { s.printf("%s\n", str) }

// line prints str above the line being typed.
func (s *screen) line(str string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	echo := s.raw != nil && len(s.buf) > 0
	if echo {
		s.write("\r\x1b[K")
	}
	s.write(str + "\n")
	if echo {
		s.write("> " + string(s.buf))
	}
}

func (s *screen) typed(r rune) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.raw != nil {
		if len(s.buf) == 0 {
			s.write("> ")
		}
		s.write(string(r))
	}
	s.buf = append(s.buf, r)
}

func (s *screen) backspace() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) == 0 {
		return
	}
	s.buf = s.buf[:len(s.buf)-1]
	if s.raw != nil {
		s.write("\b \b")
	}
}

func (s *screen) pending() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.buf)
}

func (s *screen) take() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	str := string(s.buf)
	if s.raw != nil && len(s.buf) > 0 {
		s.write("\n")
	}
	s.buf = nil
	return str
}
