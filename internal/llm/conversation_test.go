package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chadiek/sd-mate/internal/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(backend.New(srv.URL, time.Second))
}

func TestStartSession_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/start", r.URL.Path)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "https://example.com/a", body["articleLink"])
		assert.Equal(t, float64(600), body["timeLimit"])
		_, _ = w.Write([]byte(`{"sessionId":"s-1","message":" Welcome! "}`))
	})

	res, err := c.StartSession(context.Background(), "https://example.com/a", 600)
	require.NoError(t, err)
	assert.Equal(t, "s-1", res.SessionID)
	assert.Equal(t, "Welcome!", res.Greeting)
}

func TestStartSession_Failures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status_non_2xx", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(500); _, _ = w.Write([]byte(`{"error":"boom"}`)) }},
		{"bad_json", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("not-json")) }},
		{"missing_session", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"message":"hi"}`)) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, tc.handler)
			_, err := c.StartSession(context.Background(), "u", 300)
			assert.Error(t, err)
		})
	}
}

func TestSendTurn_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/s-1", r.URL.Path)
		var body chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello", body.UserMessage)
		_, _ = w.Write([]byte(`{"message":"hi"}`))
	})

	reply, err := c.SendTurn(context.Background(), "s-1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi", reply)
}

func TestSendTurn_ErrorDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"Session not found"}`))
	})

	_, err := c.SendTurn(context.Background(), "gone", "hello")
	var se *backend.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Equal(t, "Session not found", err.Error())
}

func TestSendTurn_NoSessionSkipsNetwork(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	_, err := c.SendTurn(context.Background(), "", "hello")
	assert.ErrorIs(t, err, ErrNoSession)
	assert.False(t, called)
}
