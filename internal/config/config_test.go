package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDRESS", "BACKEND_URL", "BACKEND_TIMEOUT", "TTS_PROVIDER", "DEFAULT_DURATION", "VOICE_MODE", "CAPTURE_SAMPLE_RATE"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	assert.Equal(t, ":8080", cfg.HTTPAddress)
	assert.Equal(t, "http://localhost:8000", cfg.BackendURL)
	assert.Equal(t, 30*time.Second, cfg.BackendTimeout)
	assert.Equal(t, "backend", cfg.TTSProvider)
	assert.Equal(t, 600, cfg.DefaultDuration)
	assert.Equal(t, 48000, cfg.CaptureSampleRate)
	assert.False(t, cfg.VoiceMode)
	assert.NotEmpty(t, cfg.CaptureCommand)
	assert.NotEmpty(t, cfg.PlaybackCommand)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("BACKEND_URL", "https://sd.example.com/")
	t.Setenv("BACKEND_TIMEOUT", "5s")
	t.Setenv("TTS_PROVIDER", "Deepgram")
	t.Setenv("DEEPGRAM_API_KEY", "k")
	t.Setenv("VOICE_MODE", "true")
	t.Setenv("DEFAULT_DURATION", "900")
	t.Setenv("CAPTURE_FLUSH_INTERVAL", "250ms")
	cfg := Load()
	assert.Equal(t, "https://sd.example.com", cfg.BackendURL)
	assert.Equal(t, 5*time.Second, cfg.BackendTimeout)
	assert.Equal(t, "deepgram", cfg.TTSProvider)
	assert.True(t, cfg.VoiceMode)
	assert.Equal(t, 900, cfg.DefaultDuration)
	assert.Equal(t, 250*time.Millisecond, cfg.CaptureFlushInterval)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("TTS_PROVIDER", "elevenlabs")
	t.Setenv("DEFAULT_DURATION", "120")
	t.Setenv("BACKEND_TIMEOUT", "soon")
	cfg := Load()
	assert.Equal(t, "backend", cfg.TTSProvider)
	assert.Equal(t, 600, cfg.DefaultDuration)
	assert.Equal(t, 30*time.Second, cfg.BackendTimeout)
}
