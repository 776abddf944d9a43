package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/chadiek/sd-mate/internal/agent"
	"github.com/chadiek/sd-mate/internal/capture"
	"github.com/chadiek/sd-mate/internal/playback"
)

// Controller is the session controller driven by the API.
type Controller interface {
	LoadSession(ctx context.Context, title, articleURL string, durationSeconds int) error
	SubmitUserTurn(ctx context.Context, text string, isTranscription bool) error
	StartRecording(ctx context.Context) error
	StopRecording()
	SetVoiceMode(on bool)
	PlayMessage(ctx context.Context, id string) error
	Snapshot() agent.Snapshot
	Status() agent.Status
	Subscribe(buffer int) (<-chan agent.Event, func())
}

// Server bundles the echo router and its dependencies.
type Server struct {
	Echo *echo.Echo

	ctl             Controller
	log             *slog.Logger
	defaultDuration int
}

// New creates a configured Echo server instance with all routes registered.
func New(ctl Controller, defaultDuration int, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{Echo: e, ctl: ctl, log: log, defaultDuration: defaultDuration}
	s.register(e)
	return s
}

func (s *Server) register(e *echo.Echo) {
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/articles", s.articles)
	e.GET("/state", s.state)
	e.POST("/session", s.loadSession)
	e.POST("/turn", s.turn)
	e.POST("/recording/start", s.startRecording)
	e.POST("/recording/stop", s.stopRecording)
	e.POST("/voice", s.voice)
	e.POST("/messages/:id/play", s.playMessage)
	e.GET("/events", s.events)
}

type errorBody struct {
	Error string `json:"error"`
}

// fail maps controller errors to HTTP statuses.
func fail(c echo.Context, err error) error {
	code := http.StatusConflict
	switch {
	case errors.Is(err, agent.ErrInvalidDuration), errors.Is(err, agent.ErrNoArticle), errors.Is(err, agent.ErrEmptyMessage):
		code = http.StatusBadRequest
	case errors.Is(err, agent.ErrUnknownMessage):
		code = http.StatusNotFound
	case errors.Is(err, capture.ErrDeviceUnavailable), errors.Is(err, agent.ErrClosed):
		code = http.StatusServiceUnavailable
	case errors.Is(err, playback.ErrPlaybackFailed):
		code = http.StatusBadGateway
	}
	return c.JSON(code, errorBody{Error: err.Error()})
}
