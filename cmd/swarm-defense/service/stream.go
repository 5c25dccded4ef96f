package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/picogrid/swarm-defense/pkg/logger"
	"github.com/picogrid/swarm-defense/pkg/models"
)

const writeWait = 10 * time.Second

// Stream calls send for every recorded frame of a scenario, in order, as
// they become available, then once with the terminal status. It returns
// when the scenario finishes, ctx is done, stop is closed or send fails.
func (m *Manager) Stream(ctx context.Context, id uuid.UUID, stop <-chan struct{}, send func(models.StreamMessage) error) error {
	j, err := m.job(id)
	if err != nil {
		return err
	}

	next := 0
	for {
		changed := j.watch()
		terminal := models.IsTerminal(j.Status())

		if engine := j.Engine(); engine != nil {
			frames := engine.FrameHistory()
			for ; next < len(frames); next++ {
				data, err := json.Marshal(frames[next])
				if err != nil {
					return fmt.Errorf("failed to encode frame %d: %w", next, err)
				}
				if err := send(models.StreamMessage{Type: "frame", Index: next, Frame: data}); err != nil {
					return err
				}
			}
		}

		if terminal {
			status := j.snapshot()
			return send(models.StreamMessage{Type: "status", Index: next, Status: &status})
		}

		select {
		case <-changed:
		case <-stop:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id, err := scenarioID(r)
	if err == nil {
		_, err = s.manager.Status(id)
	}
	if err != nil {
		writeManagerError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debugf("Stream upgrade failed for %s: %v", id, err)
		return
	}
	defer conn.Close()

	// reader: only needed to notice the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	err = s.manager.Stream(r.Context(), id, closed, func(msg models.StreamMessage) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(msg)
	})
	if err != nil {
		logger.Debugf("Stream for %s ended: %v", id, err)
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "scenario finished"),
		time.Now().Add(writeWait))
}
