package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/evogene-server/internal/domain"
	"github.com/evogene-server/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleTaskStatusStream pushes the task payload over a websocket once it is
// stored, then closes the connection.
func (s *Server) handleTaskStatusStream(c *gin.Context) {
	taskID := c.Param("task_id")
	entry := logging.FromContext(c.Request.Context(), s.log).WithField("task_id", taskID)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		entry.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), s.wsMaxWait)
	defer cancel()

	// The reader only notices the client going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	processing, _ := json.Marshal(gin.H{"task_id": taskID, "status": string(domain.TaskProcessing)})
	sent := false

	ticker := time.NewTicker(s.wsPollInterval)
	defer ticker.Stop()

	for {
		result, err := s.deps.Tasks.Result(ctx, taskID)
		switch {
		case err == nil:
			if writeErr := s.writeWS(conn, result.Payload); writeErr != nil {
				entry.WithError(writeErr).Debug("Websocket write failed")
				return
			}
			s.closeWS(conn, websocket.CloseNormalClosure, "done")
			return
		case !errors.Is(err, domain.ErrNotFound):
			if ctx.Err() == nil {
				entry.WithError(err).Error("Failed to read task result")
				s.closeWS(conn, websocket.CloseInternalServerErr, "result lookup failed")
			}
			return
		case !sent:
			if writeErr := s.writeWS(conn, processing); writeErr != nil {
				return
			}
			sent = true
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				s.closeWS(conn, websocket.CloseTryAgainLater, "task still processing")
			}
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) writeWS(conn *websocket.Conn, payload []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *Server) closeWS(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteTimeout))
}
