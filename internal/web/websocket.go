package web

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"tomahawk/internal/job"
	"tomahawk/internal/notify"
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is one frame pushed to websocket clients.
type Message struct {
	Type   string        `json:"type"`
	Change *notify.Event `json:"change,omitempty"`
	Job    *JobResponse  `json:"job,omitempty"`
}

const (
	MessageChange = "change"
	MessageJob    = "job"
)

// handleWebSocket streams change notifications, optionally limited to one
// collection, and job updates when jobs=true.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("collection")
	if filter != "" {
		if _, ok := s.collections.Get(filter); !ok {
			writeError(w, http.StatusNotFound, "Collection not found")
			return
		}
	}
	withJobs := boolParam(r, "jobs")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := s.bus.Subscribe()
	defer s.bus.Unsubscribe(sub.ID)

	var jobUpdates <-chan job.Job
	if withJobs {
		ch := s.jobs.Subscribe()
		defer s.jobs.Unsubscribe(ch)
		jobUpdates = ch
	}

	// Reading keeps control frames flowing and tells us when the peer goes away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.logger.Debug("websocket connected", "subscriber", sub.ID, "collection", filter)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-sub.Events:
			if !ok {
				return
			}
			if filter != "" && ev.Collection != filter {
				continue
			}
			if err := s.send(conn, Message{Type: MessageChange, Change: &ev}); err != nil {
				return
			}

		case j, ok := <-jobUpdates:
			if !ok {
				return
			}
			resp := jobToResponse(j)
			if err := s.send(conn, Message{Type: MessageJob, Job: &resp}); err != nil {
				return
			}

		case <-ticker.C:
			deadline := time.Now().Add(writeTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}

		case <-gone:
			return

		case <-s.ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeTimeout))
			return
		}
	}
}

func (s *Server) send(conn *websocket.Conn, msg Message) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Debug("websocket write failed", "error", err)
		return err
	}
	return nil
}
