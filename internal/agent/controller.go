package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chadiek/sd-mate/internal/capture"
	"github.com/chadiek/sd-mate/internal/clock"
)

var (
	ErrNotActive       = errors.New("no active session")
	ErrSessionStarting = errors.New("session is still starting")
	ErrTurnPending     = errors.New("waiting for the previous reply")
	ErrRecordingActive = errors.New("recording in progress")
	ErrEmptyMessage    = errors.New("message is empty")
	ErrInvalidDuration = errors.New("duration must be positive")
	ErrNoArticle       = errors.New("article url is required")
	ErrUnknownMessage  = errors.New("unknown message")
	ErrNoAudio         = errors.New("message has no audio")
	ErrClosed          = errors.New("controller closed")
)

const (
	UntitledSession   = "New conversation"
	CustomTitle       = "Custom Blog"
	TranscribingText  = "Transcribing..."
	NoSpeechText      = "Could not detect any speech. Please try again."
	StartFailedText   = "Failed to load the blog. Please try again later."
	TurnFailedText    = "Failed to get a response from the server. Please try again later."
	PlaybackAlertText = "Failed to play audio."
	DeviceAlertText   = "Could not start recording. Please ensure microphone permissions are granted."
	SessionEndedText  = "Time is up. Start a new session to keep practicing."
)

// Deps wires a Controller to its collaborators.
type Deps struct {
	Conversation Conversation
	Transcriber  Transcriber
	Speaker      Speaker
	Recorder     Recorder
	Clock        clock.Clock
	Logger       *slog.Logger
	// VoiceMode is the initial voice-mode toggle.
	VoiceMode bool
}

// Controller runs one practice session at a time: the countdown, push-to-talk
// capture, the turn exchange with the backend and spoken replies.
//
// life serializes the operations that acquire or release the microphone.
// mu guards the session state; network and device calls happen outside it.
type Controller struct {
	conv    Conversation
	stt     Transcriber
	speaker Speaker
	rec     Recorder
	clk     clock.Clock
	log     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	life sync.Mutex

	mu           sync.Mutex
	gen          uint64
	session      Session
	messages     []Message
	starting     bool
	turnPending  bool
	recording    bool
	recSeconds   int
	recSeq       uint64
	recDone      <-chan capture.Recording
	transcribing bool
	transcript   string
	voice        bool
	countdown    *clock.Task
	closed       bool
	subs         map[int]chan Event
	nextSub      int

	speech      []utterance
	speechReady chan struct{}
}

// utterance is a reply queued for the speech loop.
type utterance struct {
	gen  uint64
	text string
}

func New(d Deps) *Controller {
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		conv:    d.Conversation,
		stt:     d.Transcriber,
		speaker: d.Speaker,
		rec:     d.Recorder,
		clk:     d.Clock,
		log:     d.Logger,
		ctx:     ctx,
		cancel:  cancel,
		session: Session{Title: UntitledSession, State: Idle},
		voice:   d.VoiceMode,
		subs:    make(map[int]chan Event),

		speechReady: make(chan struct{}, 1),
	}
	go c.speechLoop()
	return c
}

// LoadSession replaces any current session with a new one and blocks until
// the backend has answered the start request. The countdown runs from the
// moment of the call. A failed start still leaves the session Active with a
// failure message in the log; only invalid input is returned as an error.
func (c *Controller) LoadSession(ctx context.Context, title, articleURL string, durationSeconds int) error {
	articleURL = strings.TrimSpace(articleURL)
	if durationSeconds <= 0 {
		return ErrInvalidDuration
	}
	if articleURL == "" {
		return ErrNoArticle
	}
	if strings.TrimSpace(title) == "" {
		title = CustomTitle
	}

	c.life.Lock()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.life.Unlock()
		return ErrClosed
	}
	c.stopCountdownLocked()
	c.gen++
	gen := c.gen
	c.session = Session{
		Title:            title,
		URL:              articleURL,
		TotalSeconds:     durationSeconds,
		RemainingSeconds: durationSeconds,
		State:            Active,
	}
	c.messages = nil
	c.starting = true
	c.turnPending = false
	c.recording = false
	c.recSeconds = 0
	c.transcribing = false
	c.transcript = ""
	c.countdown = clock.Every(c.clk, time.Second, c.tick)
	c.publishLocked(Event{Kind: EventSession})
	c.mu.Unlock()

	// the previous session's capture and reply audio go with it
	c.rec.Stop()
	c.speaker.Stop()
	c.life.Unlock()

	c.log.Info("session loading", "title", title, "url", articleURL, "duration_s", durationSeconds)
	res, err := c.conv.StartSession(ctx, articleURL, durationSeconds)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.log.Debug("start result dropped for superseded session")
		return nil
	}
	c.starting = false
	if err != nil {
		c.log.Warn("session start failed", "err", err)
		c.appendLocked(Assistant, StartFailedText, false, false)
		c.publishLocked(Event{Kind: EventNotice, Notice: &Notice{Kind: NoticeSessionStartFailed, Text: err.Error()}})
	} else {
		c.session.ID = res.SessionID
		c.appendLocked(Assistant, res.Greeting, false, true)
		if c.voice {
			c.enqueueSpeechLocked(gen, res.Greeting)
		}
		c.log.Info("session started", "session_id", res.SessionID)
	}
	c.publishLocked(Event{Kind: EventSession})
	c.mu.Unlock()
	return nil
}

// tick is the countdown step. It stops itself once time runs out.
func (c *Controller) tick(t *clock.Task) bool {
	c.mu.Lock()
	if c.countdown != t || c.session.State != Active {
		c.mu.Unlock()
		return false
	}
	if c.session.RemainingSeconds > 0 {
		c.session.RemainingSeconds--
	}
	if c.session.RemainingSeconds > 0 {
		c.publishLocked(Event{Kind: EventTick})
		c.mu.Unlock()
		return true
	}

	c.session.State = Ended
	c.countdown = nil
	c.recording = false
	gen := c.gen
	c.publishLocked(Event{Kind: EventSession})
	c.publishLocked(Event{Kind: EventNotice, Notice: &Notice{Kind: NoticeSessionEnded, Text: SessionEndedText}})
	c.mu.Unlock()
	c.log.Info("session ended", "session_id", c.sessionID())

	c.life.Lock()
	c.mu.Lock()
	current := gen == c.gen
	c.mu.Unlock()
	if current {
		c.rec.Stop()
	}
	c.life.Unlock()
	return false
}

func (c *Controller) stopCountdownLocked() {
	if c.countdown != nil {
		c.countdown.Stop()
		c.countdown = nil
	}
}

// SubmitUserTurn appends the user's message, asks the backend for a reply and
// appends it, or a failure message. Rejections leave the log untouched.
func (c *Controller) SubmitUserTurn(ctx context.Context, text string, isTranscription bool) error {
	text = strings.TrimSpace(text)

	c.mu.Lock()
	var reject error
	switch {
	case c.closed:
		reject = ErrClosed
	case c.session.State != Active:
		reject = ErrNotActive
	case c.starting:
		reject = ErrSessionStarting
	case text == "":
		reject = ErrEmptyMessage
	case c.turnPending:
		reject = ErrTurnPending
	case c.recording && !isTranscription:
		reject = ErrRecordingActive
	}
	if reject != nil {
		c.mu.Unlock()
		return reject
	}
	gen, sessionID := c.gen, c.session.ID
	c.appendLocked(User, text, isTranscription, isTranscription)
	c.turnPending = true
	c.publishLocked(Event{Kind: EventSession})
	c.mu.Unlock()

	reply, err := c.conv.SendTurn(ctx, sessionID, text)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.log.Debug("reply dropped for superseded session")
		return nil
	}
	c.turnPending = false
	if err != nil {
		c.log.Warn("turn failed", "session_id", sessionID, "err", err)
		c.appendLocked(Assistant, TurnFailedText, false, false)
		c.publishLocked(Event{Kind: EventNotice, Notice: &Notice{Kind: NoticeTurnFailed, Text: err.Error()}})
	} else {
		c.appendLocked(Assistant, reply, false, true)
		if c.voice {
			c.enqueueSpeechLocked(gen, reply)
		}
	}
	c.publishLocked(Event{Kind: EventSession})
	c.mu.Unlock()
	return nil
}

// StartRecording acquires the microphone for push-to-talk. The recording is
// transcribed and submitted once StopRecording is called. Starting while a
// capture is live is a no-op.
func (c *Controller) StartRecording(ctx context.Context) error {
	c.life.Lock()
	defer c.life.Unlock()

	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.session.State != Active:
		c.mu.Unlock()
		return ErrNotActive
	case c.recording:
		c.mu.Unlock()
		return nil
	}
	gen := c.gen
	c.mu.Unlock()

	done, err := c.rec.Start(ctx)
	if err != nil {
		c.log.Warn("recording start failed", "err", err)
		if errors.Is(err, capture.ErrDeviceUnavailable) {
			c.notify(Notice{Kind: NoticeDeviceUnavailable, Text: DeviceAlertText})
		}
		return err
	}

	c.mu.Lock()
	if gen != c.gen {
		// Close ran meanwhile and releases the device once we let go of life
		c.mu.Unlock()
		return ErrClosed
	}
	watched := done == c.recDone
	if !watched {
		c.recSeq++
		c.recDone = done
	}
	seq := c.recSeq
	c.recording = true
	c.recSeconds = 0
	c.transcript = ""
	c.publishLocked(Event{Kind: EventRecording})
	c.mu.Unlock()

	if !watched {
		go c.awaitRecording(gen, seq, done)
	}
	return nil
}

// StopRecording ends the live capture, if any.
func (c *Controller) StopRecording() {
	c.life.Lock()
	c.rec.Stop()
	c.life.Unlock()

	c.mu.Lock()
	if c.recording {
		c.recording = false
		c.recSeconds = 0
		c.publishLocked(Event{Kind: EventRecording})
	}
	c.mu.Unlock()
}

// RecordingElapsed receives the recording-duration counter.
func (c *Controller) RecordingElapsed(seconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.recording && seconds != 0 {
		return
	}
	c.recSeconds = seconds
	c.publishLocked(Event{Kind: EventRecording})
}

// awaitRecording transcribes one finished capture. Only the capture that is
// still current may clear the recording flags; an earlier capture finishing
// late leaves a newer live one untouched.
func (c *Controller) awaitRecording(gen, seq uint64, done <-chan capture.Recording) {
	rec, ok := <-done

	c.mu.Lock()
	if seq == c.recSeq {
		c.recDone = nil
		if gen == c.gen {
			c.recording = false
			c.recSeconds = 0
		}
	}
	if gen != c.gen || !ok {
		c.mu.Unlock()
		return
	}
	if len(rec.Data) == 0 {
		c.transcript = NoSpeechText
		c.publishLocked(Event{Kind: EventTranscript})
		c.publishLocked(Event{Kind: EventNotice, Notice: &Notice{Kind: NoticeNoSpeech, Text: NoSpeechText}})
		c.mu.Unlock()
		return
	}
	c.transcribing = true
	c.transcript = TranscribingText
	c.publishLocked(Event{Kind: EventTranscript})
	c.mu.Unlock()

	c.log.Debug("transcribing recording", "bytes", len(rec.Data), "mime", rec.MIMEType, "elapsed_s", rec.Elapsed)
	text, err := c.stt.Transcribe(c.ctx, rec.Data, rec.MIMEType)
	text = strings.TrimSpace(text)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.transcribing = false
	switch {
	case err != nil:
		c.log.Warn("transcription failed", "err", err)
		c.transcript = "Error: " + err.Error()
		c.publishLocked(Event{Kind: EventTranscript})
		c.publishLocked(Event{Kind: EventNotice, Notice: &Notice{Kind: NoticeTranscriptionFailed, Text: err.Error()}})
	case text == "":
		c.transcript = NoSpeechText
		c.publishLocked(Event{Kind: EventTranscript})
		c.publishLocked(Event{Kind: EventNotice, Notice: &Notice{Kind: NoticeNoSpeech, Text: NoSpeechText}})
	default:
		c.transcript = text
		c.publishLocked(Event{Kind: EventTranscript})
	}
	c.mu.Unlock()

	if err != nil || text == "" {
		return
	}
	if err := c.SubmitUserTurn(c.ctx, text, true); err != nil {
		c.log.Info("transcribed turn not submitted", "err", err)
	}
}

// SetVoiceMode toggles spoken replies. Turning it off silences the current reply.
func (c *Controller) SetVoiceMode(on bool) {
	c.mu.Lock()
	changed := c.voice != on
	c.voice = on
	if changed {
		c.publishLocked(Event{Kind: EventVoice})
	}
	c.mu.Unlock()
	if changed && !on {
		c.speaker.Stop()
	}
}

// PlayMessage speaks an assistant message from the log on request.
func (c *Controller) PlayMessage(ctx context.Context, id string) error {
	c.mu.Lock()
	var msg *Message
	for i := range c.messages {
		if c.messages[i].ID == id {
			msg = &c.messages[i]
			break
		}
	}
	if msg == nil {
		c.mu.Unlock()
		return ErrUnknownMessage
	}
	text, ok := msg.Text, msg.Sender == Assistant && msg.AudioAvailable
	c.mu.Unlock()
	if !ok {
		return ErrNoAudio
	}

	if err := c.speaker.SynthesizeAndPlay(ctx, text); err != nil {
		c.notify(Notice{Kind: NoticePlaybackFailed, Text: PlaybackAlertText})
		return err
	}
	return nil
}

// StopPlayback silences the current reply.
func (c *Controller) StopPlayback() { c.speaker.Stop() }

func (c *Controller) enqueueSpeechLocked(gen uint64, text string) {
	c.speech = append(c.speech, utterance{gen: gen, text: text})
	select {
	case c.speechReady <- struct{}{}:
	default:
	}
}

// speechLoop speaks queued replies one at a time in the order they were
// appended, so the newest reply is the one left in the playback slot.
func (c *Controller) speechLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.speechReady:
		}
		for {
			c.mu.Lock()
			if len(c.speech) == 0 {
				c.mu.Unlock()
				break
			}
			u := c.speech[0]
			c.speech = c.speech[1:]
			current := u.gen == c.gen && !c.closed
			c.mu.Unlock()
			if !current {
				continue
			}
			if err := c.speaker.SynthesizeAndPlay(c.ctx, u.text); err != nil {
				c.notify(Notice{Kind: NoticePlaybackFailed, Text: PlaybackAlertText})
			}
		}
	}
}

// Snapshot returns the current status and a copy of the message log.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{Status: c.statusLocked(), Messages: append([]Message(nil), c.messages...)}
}

// Status returns the current status without the message log.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// Subscribe registers a listener for events. Events are dropped for a
// listener whose buffer is full. The returned function unsubscribes.
func (c *Controller) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

// Close ends the current session and releases the microphone and the
// playback slot. In-flight completions are discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.gen++
	c.stopCountdownLocked()
	c.recording = false
	c.mu.Unlock()

	c.life.Lock()
	c.rec.Stop()
	c.life.Unlock()
	c.speaker.Stop()
	c.cancel()

	c.mu.Lock()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.mu.Unlock()
	c.log.Debug("controller closed")
}

func (c *Controller) notify(n Notice) {
	c.mu.Lock()
	c.publishLocked(Event{Kind: EventNotice, Notice: &n})
	c.mu.Unlock()
}

func (c *Controller) appendLocked(from Sender, text string, isTranscription, audio bool) {
	m := Message{
		ID:              uuid.NewString(),
		Sender:          from,
		Text:            text,
		IsTranscription: isTranscription,
		AudioAvailable:  audio,
		CreatedAt:       time.Now(),
	}
	c.messages = append(c.messages, m)
	c.publishLocked(Event{Kind: EventMessage, Message: &m})
}

func (c *Controller) statusLocked() Status {
	s := Status{
		Session:          c.session,
		Urgency:          UrgencyNormal,
		Clock:            FormatClock(c.session.RemainingSeconds),
		Starting:         c.starting,
		TurnPending:      c.turnPending,
		Recording:        c.recording,
		RecordingSeconds: c.recSeconds,
		Transcribing:     c.transcribing,
		Transcript:       c.transcript,
		VoiceMode:        c.voice,
	}
	if c.session.State != Idle {
		s.Urgency = UrgencyFor(c.session.RemainingSeconds)
	}
	if c.recording {
		s.InputLevel = c.rec.Level()
	}
	if c.speaker != nil {
		s.Speaking = c.speaker.Playing()
	}
	return s
}

func (c *Controller) publishLocked(ev Event) {
	if c.closed || len(c.subs) == 0 {
		return
	}
	ev.Status = c.statusLocked()
	for id, ch := range c.subs {
		select {
		case ch <- ev:
		default:
			c.log.Debug("event dropped for slow subscriber", "subscriber", id, "kind", ev.Kind)
		}
	}
}

func (c *Controller) sessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.ID
}
