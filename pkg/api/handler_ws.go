package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"

	"github.com/novelforge/novelforge/pkg/events"
)

// catchupLimit is the maximum number of journal events replayed in one
// catchup response. If more were missed, a catchup.overflow message tells
// the client to reload project state over REST instead.
const catchupLimit = 200

// wsWriteTimeout bounds each write so one stalled client cannot pin the
// forwarding goroutine.
const wsWriteTimeout = 5 * time.Second

// eventsHandler upgrades the connection to WebSocket and streams the
// project's lifecycle events. The client is auto-subscribed to the project
// channel; it can additionally send ClientMessage frames:
//
//	{"action": "catchup", "after_seq": N}  replay journal events with seq > N
//	{"action": "ping"}                     liveness probe, answered with pong
func (s *Server) eventsHandler(c *gin.Context) {
	projectID := c.Param("id")
	if _, err := s.store.Load(projectID); err != nil {
		s.respondError(c, err)
		return
	}

	opts := &websocket.AcceptOptions{}
	if len(s.cfg.AllowedWSOrigins) > 0 {
		opts.OriginPatterns = s.cfg.AllowedWSOrigins
	} else {
		// No allowlist configured: local single-user deployment.
		opts.InsecureSkipVerify = true
	}

	conn, err := websocket.Accept(c.Writer, c.Request, opts)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "project_id", projectID, "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "server closing")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	channel := events.ProjectChannel(projectID)
	live, unsubscribe := s.broker.Subscribe(channel)
	defer unsubscribe()

	ws := &wsClient{conn: conn, logger: s.logger, projectID: projectID}
	ws.sendJSON(ctx, map[string]string{
		"type":    "subscription.confirmed",
		"channel": channel,
	})

	// Forward live broker events until the subscription or connection dies.
	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-live:
				if !ok {
					return
				}
				if !ws.sendEvent(ctx, ev) {
					return
				}
			}
		}
	}()

	// Read loop. Exits when the client disconnects or the server shuts down.
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var msg events.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			ws.sendJSON(ctx, map[string]string{"type": "error", "message": "invalid message"})
			continue
		}
		s.handleClientMessage(ctx, ws, &msg)
	}
}

func (s *Server) handleClientMessage(ctx context.Context, ws *wsClient, msg *events.ClientMessage) {
	switch msg.Action {
	case "subscribe":
		// Already subscribed at connect time. Confirm and replay from the
		// start so late subscribers see the full history.
		ws.sendJSON(ctx, map[string]string{
			"type":    "subscription.confirmed",
			"channel": events.ProjectChannel(ws.projectID),
		})
		s.replayJournal(ctx, ws, 0)

	case "catchup":
		var after int64
		if msg.AfterSeq != nil {
			after = *msg.AfterSeq
		}
		s.replayJournal(ctx, ws, after)

	case "ping":
		ws.sendJSON(ctx, map[string]string{"type": "pong"})

	default:
		ws.sendJSON(ctx, map[string]string{"type": "error", "message": "unknown action"})
	}
}

// replayJournal streams journal events with seq > after to the client,
// bracketed by catchup.start / catchup.complete markers.
func (s *Server) replayJournal(ctx context.Context, ws *wsClient, after int64) {
	lines, more, err := s.store.ReadEventLines(ws.projectID, after, catchupLimit)
	if err != nil {
		s.logger.Error("Journal replay failed", "project_id", ws.projectID, "error", err)
		ws.sendJSON(ctx, map[string]string{"type": "error", "message": "catchup failed"})
		return
	}

	ws.sendJSON(ctx, map[string]any{"type": "catchup.start", "count": len(lines)})
	for _, line := range lines {
		if !ws.sendRaw(ctx, line) {
			return
		}
	}
	if more {
		ws.sendJSON(ctx, map[string]string{"type": "catchup.overflow", "message": "too many missed events, reload project state"})
		return
	}
	ws.sendJSON(ctx, map[string]string{"type": "catchup.complete"})
}

// wsClient wraps one accepted connection with bounded, logged writes.
type wsClient struct {
	conn      *websocket.Conn
	logger    *slog.Logger
	projectID string
}

func (w *wsClient) sendRaw(ctx context.Context, data []byte) bool {
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	if err := w.conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		w.logger.Debug("WebSocket write failed", "project_id", w.projectID, "error", err)
		return false
	}
	return true
}

func (w *wsClient) sendJSON(ctx context.Context, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return w.sendRaw(ctx, data)
}

func (w *wsClient) sendEvent(ctx context.Context, ev events.Event) bool {
	data, err := json.Marshal(ev)
	if err != nil {
		w.logger.Warn("Failed to encode event", "project_id", w.projectID, "error", err)
		return true
	}
	return w.sendRaw(ctx, data)
}
