package main

import (
	"log/slog"
	"os"

	"github.com/chadiek/sd-mate/internal/agent"
	"github.com/chadiek/sd-mate/internal/backend"
	"github.com/chadiek/sd-mate/internal/capture"
	"github.com/chadiek/sd-mate/internal/config"
	"github.com/chadiek/sd-mate/internal/llm"
	"github.com/chadiek/sd-mate/internal/observability"
	"github.com/chadiek/sd-mate/internal/playback"
	"github.com/chadiek/sd-mate/internal/transcript"
	"github.com/chadiek/sd-mate/internal/tts"
)

func newLogger(cfg config.Config) *slog.Logger {
	log := observability.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	slog.SetDefault(log)
	return log
}

// buildController wires the remote clients, the microphone and the player
// into a session controller.
func buildController(cfg config.Config, log *slog.Logger) *agent.Controller {
	api := backend.New(cfg.BackendURL, cfg.BackendTimeout)

	var synth playback.Synthesizer = tts.NewBackendClient(api)
	if cfg.TTSProvider == "deepgram" {
		synth = tts.NewDeepgramClient(cfg.DeepgramKey, cfg.DeepgramModel)
	}
	speaker := playback.NewSpeaker(synth, playback.NewCommandPlayer(cfg.PlaybackCommand),
		observability.WithFields(log, "component", "playback"))

	var ctl *agent.Controller
	rec := capture.NewRecorder(capture.NewCommandDevice(cfg.CaptureCommand, cfg.CaptureSampleRate), capture.Config{
		FlushInterval: cfg.CaptureFlushInterval,
		Logger:        observability.WithFields(log, "component", "capture"),
		Events: capture.Events{
			// ticks only arrive after a recording starts, by then ctl is set
			OnElapsed: func(seconds int) { ctl.RecordingElapsed(seconds) },
		},
	})

	ctl = agent.New(agent.Deps{
		Conversation: llm.NewClient(api),
		Transcriber:  transcript.NewClient(api),
		Speaker:      speaker,
		Recorder:     rec,
		Logger:       observability.WithFields(log, "component", "session"),
		VoiceMode:    cfg.VoiceMode,
	})
	log.Info("controller ready", "backend", cfg.BackendURL, "tts", cfg.TTSProvider, "voice_mode", cfg.VoiceMode)
	return ctl
}
