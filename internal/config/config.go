package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress    string
	BackendURL     string
	BackendTimeout time.Duration

	CaptureCommand       string
	CaptureSampleRate    int
	CaptureFlushInterval time.Duration
	PlaybackCommand      string

	TTSProvider   string
	DeepgramKey   string
	DeepgramModel string

	VoiceMode       bool
	DefaultDuration int

	LogLevel  string
	LogFormat string
}

const (
	defaultBackendURL      = "http://localhost:8000"
	defaultCaptureCommand  = "arecord -q -t raw -f S16_LE -r 48000 -c 1"
	defaultPlaybackCommand = "ffplay -nodisp -autoexit -loglevel quiet"
)

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file loaded")
	}

	backendURL := strings.TrimRight(os.Getenv("BACKEND_URL"), "/")
	if backendURL == "" {
		log.Printf("Warning: BACKEND_URL not set - using %s", defaultBackendURL)
		backendURL = defaultBackendURL
	}

	provider := strings.ToLower(getEnv("TTS_PROVIDER", "backend"))
	switch provider {
	case "backend", "deepgram":
	default:
		log.Printf("Warning: unknown TTS_PROVIDER %q - using backend", provider)
		provider = "backend"
	}
	deepgramKey := os.Getenv("DEEPGRAM_API_KEY")
	if provider == "deepgram" && deepgramKey == "" {
		log.Println("Warning: DEEPGRAM_API_KEY not set - spoken replies will not work")
	}

	cfg := Config{
		HTTPAddress:    getEnv("HTTP_ADDRESS", ":8080"),
		BackendURL:     backendURL,
		BackendTimeout: getDuration("BACKEND_TIMEOUT", 30*time.Second),

		CaptureCommand:       getEnv("CAPTURE_COMMAND", defaultCaptureCommand),
		CaptureSampleRate:    getInt("CAPTURE_SAMPLE_RATE", 48000),
		CaptureFlushInterval: getDuration("CAPTURE_FLUSH_INTERVAL", time.Second),
		PlaybackCommand:      getEnv("PLAYBACK_COMMAND", defaultPlaybackCommand),

		TTSProvider:   provider,
		DeepgramKey:   deepgramKey,
		DeepgramModel: getEnv("DEEPGRAM_MODEL", "aura-2-thalia-en"),

		VoiceMode:       getBool("VOICE_MODE", false),
		DefaultDuration: getInt("DEFAULT_DURATION", 600),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
	switch cfg.DefaultDuration {
	case 300, 600, 900:
	default:
		log.Printf("Warning: DEFAULT_DURATION=%d is not 300, 600 or 900 - using 600", cfg.DefaultDuration)
		cfg.DefaultDuration = 600
	}
	if cfg.CaptureSampleRate <= 0 {
		cfg.CaptureSampleRate = 48000
	}
	return cfg
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		log.Printf("Warning: %s=%q is not a number - using %d", key, v, def)
		return def
	}
	return n
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil || d <= 0 {
		log.Printf("Warning: %s=%q is not a duration - using %s", key, v, def)
		return def
	}
	return d
}
