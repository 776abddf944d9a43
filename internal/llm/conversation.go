package llm

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/chadiek/sd-mate/internal/backend"
)

// ErrNoSession is returned by SendTurn when no backend session id is known.
var ErrNoSession = errors.New("no active backend session")

// Client talks to the conversational backend: one call to open a practice
// session for an article, then one call per user turn.
type Client struct {
	api *backend.Client
}

type startRequest struct {
	ArticleLink string `json:"articleLink"`
	TimeLimit   int    `json:"timeLimit"`
}

type startResponse struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type chatRequest struct {
	UserMessage string `json:"userMessage"`
}

type chatResponse struct {
	Message string `json:"message"`
}

// StartResult is the backend's answer to a session start.
type StartResult struct {
	SessionID string
	Greeting  string
}

func NewClient(api *backend.Client) *Client {
	return &Client{api: api}
}

// StartSession asks the backend to open a session on articleURL with the
// client-declared time limit.
func (c *Client) StartSession(ctx context.Context, articleURL string, durationSeconds int) (StartResult, error) {
	var sr startResponse
	err := c.api.PostJSON(ctx, "/start", startRequest{ArticleLink: articleURL, TimeLimit: durationSeconds}, &sr)
	if err != nil {
		return StartResult{}, err
	}
	if sr.SessionID == "" {
		return StartResult{}, errors.New("start: backend returned no session id")
	}
	return StartResult{SessionID: sr.SessionID, Greeting: strings.TrimSpace(sr.Message)}, nil
}

// SendTurn posts one user message and returns the assistant reply.
func (c *Client) SendTurn(ctx context.Context, sessionID, userText string) (string, error) {
	if sessionID == "" {
		return "", ErrNoSession
	}
	var cr chatResponse
	if err := c.api.PostJSON(ctx, "/chat/"+url.PathEscape(sessionID), chatRequest{UserMessage: userText}, &cr); err != nil {
		return "", err
	}
	return strings.TrimSpace(cr.Message), nil
}
