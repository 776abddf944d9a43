package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chadiek/sd-mate/internal/catalog"
)

type articlesResponse struct {
	Welcome         string             `json:"welcome"`
	Articles        []catalog.Article  `json:"articles"`
	Durations       []catalog.Duration `json:"durations"`
	DefaultDuration int                `json:"defaultDuration"`
}

func (s *Server) articles(c echo.Context) error {
	return c.JSON(http.StatusOK, articlesResponse{
		Welcome:         catalog.Welcome,
		Articles:        catalog.Articles(),
		Durations:       catalog.Durations(),
		DefaultDuration: s.defaultDuration,
	})
}

func (s *Server) state(c echo.Context) error {
	return c.JSON(http.StatusOK, s.ctl.Snapshot())
}

type sessionRequest struct {
	ArticleID string `json:"articleId"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Duration  int    `json:"duration"`
}

func (s *Server) loadSession(c echo.Context) error {
	var req sessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
	}
	if req.ArticleID != "" {
		a, ok := catalog.Lookup(req.ArticleID)
		if !ok {
			return c.JSON(http.StatusNotFound, errorBody{Error: "unknown article " + req.ArticleID})
		}
		req.Title, req.URL = a.Title, a.URL
	}
	if req.Duration == 0 {
		req.Duration = s.defaultDuration
	}
	if !catalog.ValidDuration(req.Duration) {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "duration must be 300, 600 or 900 seconds"})
	}
	if err := s.ctl.LoadSession(detach(c), req.Title, req.URL, req.Duration); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, s.ctl.Snapshot())
}

type turnRequest struct {
	Text string `json:"text"`
}

func (s *Server) turn(c echo.Context) error {
	var req turnRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
	}
	if err := s.ctl.SubmitUserTurn(detach(c), req.Text, false); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, s.ctl.Snapshot())
}

func (s *Server) startRecording(c echo.Context) error {
	if err := s.ctl.StartRecording(c.Request().Context()); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusAccepted, s.ctl.Status())
}

func (s *Server) stopRecording(c echo.Context) error {
	s.ctl.StopRecording()
	return c.JSON(http.StatusAccepted, s.ctl.Status())
}

type voiceRequest struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) voice(c echo.Context) error {
	var req voiceRequest
	if err := c.Bind(&req); err != nil || req.Enabled == nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "enabled is required"})
	}
	s.ctl.SetVoiceMode(*req.Enabled)
	return c.JSON(http.StatusOK, s.ctl.Status())
}

func (s *Server) playMessage(c echo.Context) error {
	if err := s.ctl.PlayMessage(detach(c), c.Param("id")); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

// detach keeps backend calls running when the API client goes away; the
// result still lands in the session log.
func detach(c echo.Context) context.Context {
	return context.WithoutCancel(c.Request().Context())
}
