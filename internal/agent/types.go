package agent

import (
	"context"
	"time"

	"github.com/chadiek/sd-mate/internal/capture"
	"github.com/chadiek/sd-mate/internal/llm"
)

// Conversation is the remote backend that runs the practice dialogue.
type Conversation interface {
	StartSession(ctx context.Context, articleURL string, durationSeconds int) (llm.StartResult, error)
	SendTurn(ctx context.Context, sessionID, userText string) (string, error)
}

// Transcriber turns a finished recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, blob []byte, mimeType string) (string, error)
}

// Speaker plays assistant text through the single playback slot.
type Speaker interface {
	SynthesizeAndPlay(ctx context.Context, text string) error
	Playing() bool
	Stop()
}

// Recorder is the push-to-talk capture owner.
type Recorder interface {
	Start(ctx context.Context) (<-chan capture.Recording, error)
	Stop()
	Level() float64
}

// State is the session lifecycle.
type State string

const (
	Idle   State = "idle"
	Active State = "active"
	Ended  State = "ended"
)

type Sender string

const (
	User      Sender = "user"
	Assistant Sender = "assistant"
)

// Message is one entry of the session transcript. Messages are never
// modified once appended.
type Message struct {
	ID              string    `json:"id"`
	Sender          Sender    `json:"sender"`
	Text            string    `json:"text"`
	IsTranscription bool      `json:"isTranscription"`
	AudioAvailable  bool      `json:"audioAvailable"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Session is the current practice session.
type Session struct {
	ID               string `json:"sessionId"`
	Title            string `json:"title"`
	URL              string `json:"url"`
	TotalSeconds     int    `json:"totalSeconds"`
	RemainingSeconds int    `json:"remainingSeconds"`
	State            State  `json:"state"`
}

type NoticeKind string

const (
	NoticeDeviceUnavailable   NoticeKind = "device_unavailable"
	NoticeTranscriptionFailed NoticeKind = "transcription_failed"
	NoticeNoSpeech            NoticeKind = "no_speech"
	NoticePlaybackFailed      NoticeKind = "playback_failed"
	NoticeSessionStartFailed  NoticeKind = "session_start_failed"
	NoticeTurnFailed          NoticeKind = "turn_failed"
	NoticeSessionEnded        NoticeKind = "session_ended"
)

// Notice is a user-facing alert that does not enter the message log.
type Notice struct {
	Kind NoticeKind `json:"kind"`
	Text string     `json:"text"`
}

// Status is everything a front-end needs to render the controls.
type Status struct {
	Session
	Urgency          Urgency `json:"urgency"`
	Clock            string  `json:"clock"`
	Starting         bool    `json:"starting"`
	TurnPending      bool    `json:"turnPending"`
	Recording        bool    `json:"recording"`
	RecordingSeconds int     `json:"recordingSeconds"`
	InputLevel       float64 `json:"inputLevel"`
	Transcribing     bool    `json:"transcribing"`
	Transcript       string  `json:"transcript"`
	VoiceMode        bool    `json:"voiceMode"`
	Speaking         bool    `json:"speaking"`
}

// CanSend reports whether typed input is accepted right now.
func (s Status) CanSend() bool {
	return s.State == Active && !s.Starting && !s.TurnPending && !s.Recording
}

// Snapshot is a Status plus a copy of the message log.
type Snapshot struct {
	Status
	Messages []Message `json:"messages"`
}

type EventKind string

const (
	EventSession    EventKind = "session"
	EventTick       EventKind = "tick"
	EventMessage    EventKind = "message"
	EventNotice     EventKind = "notice"
	EventRecording  EventKind = "recording"
	EventTranscript EventKind = "transcript"
	EventVoice      EventKind = "voice"
)

// Event is published to subscribers on every observable change.
type Event struct {
	Kind    EventKind `json:"kind"`
	Status  Status    `json:"status"`
	Message *Message  `json:"message,omitempty"`
	Notice  *Notice   `json:"notice,omitempty"`
}
