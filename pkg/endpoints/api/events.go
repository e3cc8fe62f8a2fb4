package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mpapenbr/lanerace-service-go/log"
	"github.com/mpapenbr/lanerace-service-go/pkg/events"
	"github.com/mpapenbr/lanerace-service-go/pkg/game"
	"github.com/mpapenbr/lanerace-service-go/pkg/permission"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// events streams every game event as a JSON text message until the client
// goes away. The first message is a snapshot of the current status.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	if _, err := s.caller(r, permission.PermissionRead); err != nil {
		s.writeError(w, r, err)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.l.Debug("websocket upgrade failed", log.ErrorField(err))
		return
	}
	defer conn.Close()

	sub := s.hub.Subscribe()
	defer s.hub.Unsubscribe(sub)

	st := s.svc.Status(r.Context())
	snapshot := events.NewEvent(events.KindSnapshot, game.NoAddress, st.Cycle)
	snapshot.Status = &st
	//nolint:errcheck // checked by WriteJSON
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(snapshot); err != nil {
		return
	}

	// reader: only needed to process control frames and detect close
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		//nolint:errcheck // connection is dropped on error anyway
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case e, ok := <-sub:
			if !ok {
				//nolint:errcheck // best effort
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"),
					time.Now().Add(writeWait))
				return
			}
			//nolint:errcheck // checked by WriteJSON
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(e); err != nil {
				s.l.Debug("websocket write failed", log.ErrorField(err))
				return
			}
		case <-ticker.C:
			//nolint:errcheck // checked by WriteMessage
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
