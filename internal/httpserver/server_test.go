package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chadiek/sd-mate/internal/agent"
	"github.com/chadiek/sd-mate/internal/backend"
	"github.com/chadiek/sd-mate/internal/capture"
	"github.com/chadiek/sd-mate/internal/clock"
	"github.com/chadiek/sd-mate/internal/llm"
	"github.com/chadiek/sd-mate/internal/transcript"
)

type stubRecorder struct{ err error }

func (r stubRecorder) Start(ctx context.Context) (<-chan capture.Recording, error) {
	if r.err != nil {
		return nil, r.err
	}
	return make(chan capture.Recording, 1), nil
}
func (stubRecorder) Stop()           {}
func (stubRecorder) Level() float64 { return 0 }

type stubSpeaker struct{}

func (stubSpeaker) SynthesizeAndPlay(ctx context.Context, text string) error { return nil }
func (stubSpeaker) Playing() bool                                            { return false }
func (stubSpeaker) Stop()                                                    {}

func fakeBackend(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sessionId":"abc","message":"Welcome"}`))
	})
	mux.HandleFunc("/chat/", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			UserMessage string `json:"userMessage"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "re: " + body.UserMessage})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T, rec agent.Recorder) *Server {
	t.Helper()
	api := backend.New(fakeBackend(t).URL, time.Second)
	ctl := agent.New(agent.Deps{
		Conversation: llm.NewClient(api),
		Transcriber:  transcript.NewClient(api),
		Speaker:      stubSpeaker{},
		Recorder:     rec,
		Clock:        clock.NewManual(time.Unix(0, 0)),
	})
	t.Cleanup(ctl.Close)
	return New(ctl, 600, nil)
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Echo.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestServer_Healthz(t *testing.T) {
	s := newTestServer(t, stubRecorder{})
	w := do(s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestServer_Articles(t *testing.T) {
	s := newTestServer(t, stubRecorder{})
	w := do(s, http.MethodGet, "/articles", "")
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[articlesResponse](t, w)
	assert.Len(t, res.Articles, 6)
	assert.Len(t, res.Durations, 3)
	assert.Equal(t, 600, res.DefaultDuration)
}

func TestServer_SessionAndTurn(t *testing.T) {
	s := newTestServer(t, stubRecorder{})

	w := do(s, http.MethodPost, "/turn", `{"text":"hello"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, agent.ErrNotActive.Error(), decode[errorBody](t, w).Error)

	w = do(s, http.MethodPost, "/session", `{"articleId":"3"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	snap := decode[agent.Snapshot](t, w)
	assert.Equal(t, agent.Active, snap.State)
	assert.Equal(t, "Design a URL Shortener", snap.Title)
	assert.Equal(t, 600, snap.RemainingSeconds)
	assert.Equal(t, "abc", snap.ID)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "Welcome", snap.Messages[0].Text)

	w = do(s, http.MethodPost, "/turn", `{"text":"hello"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	snap = decode[agent.Snapshot](t, w)
	require.Len(t, snap.Messages, 3)
	assert.Equal(t, "hello", snap.Messages[1].Text)
	assert.Equal(t, "re: hello", snap.Messages[2].Text)

	w = do(s, http.MethodPost, "/turn", `{"text":"  "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(s, http.MethodGet, "/state", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[agent.Snapshot](t, w).Messages, 3)
}

func TestServer_SessionValidation(t *testing.T) {
	s := newTestServer(t, stubRecorder{})
	cases := []struct {
		body string
		code int
	}{
		{`{"articleId":"99"}`, http.StatusNotFound},
		{`{"articleId":"1","duration":120}`, http.StatusBadRequest},
		{`{"title":"x","duration":300}`, http.StatusBadRequest},
		{`not json`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		w := do(s, http.MethodPost, "/session", tc.body)
		assert.Equal(t, tc.code, w.Code, tc.body)
	}

	w := do(s, http.MethodPost, "/session", `{"url":"https://example.com/post","duration":900}`)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decode[agent.Snapshot](t, w)
	assert.Equal(t, agent.CustomTitle, snap.Title)
	assert.Equal(t, 900, snap.TotalSeconds)
}

func TestServer_Recording(t *testing.T) {
	s := newTestServer(t, stubRecorder{err: fmt.Errorf("%w: no device", capture.ErrDeviceUnavailable)})
	require.Equal(t, http.StatusOK, do(s, http.MethodPost, "/session", `{"articleId":"1"}`).Code)

	w := do(s, http.MethodPost, "/recording/start", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	s = newTestServer(t, stubRecorder{})
	assert.Equal(t, http.StatusConflict, do(s, http.MethodPost, "/recording/start", "").Code)
	require.Equal(t, http.StatusOK, do(s, http.MethodPost, "/session", `{"articleId":"1"}`).Code)
	w = do(s, http.MethodPost, "/recording/start", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.True(t, decode[agent.Status](t, w).Recording)

	w = do(s, http.MethodPost, "/turn", `{"text":"typed"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(s, http.MethodPost, "/recording/stop", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.False(t, decode[agent.Status](t, w).Recording)
}

func TestServer_VoiceAndPlay(t *testing.T) {
	s := newTestServer(t, stubRecorder{})
	assert.Equal(t, http.StatusBadRequest, do(s, http.MethodPost, "/voice", `{}`).Code)

	w := do(s, http.MethodPost, "/voice", `{"enabled":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[agent.Status](t, w).VoiceMode)

	assert.Equal(t, http.StatusNotFound, do(s, http.MethodPost, "/messages/nope/play", "").Code)

	w = do(s, http.MethodPost, "/session", `{"articleId":"2"}`)
	require.Equal(t, http.StatusOK, w.Code)
	id := decode[agent.Snapshot](t, w).Messages[0].ID
	assert.Equal(t, http.StatusAccepted, do(s, http.MethodPost, "/messages/"+id+"/play", "").Code)
}

func TestServer_EventStream(t *testing.T) {
	s := newTestServer(t, stubRecorder{})
	ts := httptest.NewServer(s.Echo)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/events", nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var first snapshotFrame
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "snapshot", first.Kind)
	assert.Equal(t, agent.Idle, first.Snapshot.State)

	require.Equal(t, http.StatusOK, do(s, http.MethodPost, "/session", `{"articleId":"4"}`).Code)

	for {
		var ev agent.Event
		require.NoError(t, conn.ReadJSON(&ev))
		if ev.Kind == agent.EventMessage {
			require.NotNil(t, ev.Message)
			assert.Equal(t, "Welcome", ev.Message.Text)
			assert.Equal(t, "Design a Scalable Notification Service", ev.Status.Title)
			return
		}
	}
}
