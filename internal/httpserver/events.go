package httpserver

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/chadiek/sd-mate/internal/agent"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 16384,
	CheckOrigin: func(r *http.Request) bool {
		// the control API is meant for a local front-end
		return true
	},
}

// snapshotFrame is the first frame on every event stream.
type snapshotFrame struct {
	Kind     string         `json:"kind"`
	Snapshot agent.Snapshot `json:"snapshot"`
}

// events streams controller events as JSON text frames until the client
// disconnects.
func (s *Server) events(c echo.Context) error {
	conn, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", "err", err)
		return nil
	}
	defer func() { _ = conn.Close() }()

	events, unsubscribe := s.ctl.Subscribe(256)
	defer unsubscribe()

	// reads only detect the close; clients send nothing
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(snapshotFrame{Kind: "snapshot", Snapshot: s.ctl.Snapshot()}); err != nil {
		return nil
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "controller closed"), time.Now().Add(writeWait))
				return nil
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				s.log.Debug("ws write failed", "err", err)
				return nil
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return nil
			}
		case <-gone:
			return nil
		}
	}
}
