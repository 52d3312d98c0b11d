package ws

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/candlewick/agentdesk/internal/service/agent"
)

// Ensurer makes a session usable before a turn runs against it.
type Ensurer interface {
	Ensure(ctx context.Context, sessionID string) error
}

// Handler runs chat turns over a WebSocket connection, pushing event
// deltas as they arrive instead of waiting for the final reply.
type Handler struct {
	engine   agent.Engine
	sessions Ensurer
	upgrader websocket.Upgrader
}

// New creates a WebSocket chat handler.
func New(engine agent.Engine, sessions Ensurer) *Handler {
	return &Handler{
		engine:   engine,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes attaches the WebSocket route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleConn)
}

type inboundMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type outboundMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Content   string `json:"content,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (h *Handler) handleConn(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		http.Error(w, "session id is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[ws] connection opened for session=%s", sessionID)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] read failed for session=%s: %v", sessionID, err)
			}
			return
		}

		switch inbound.Type {
		case "chat":
			h.runTurn(r.Context(), conn, sessionID, inbound.Message)
		default:
			h.writeError(conn, sessionID, "unsupported message type: "+inbound.Type)
		}
	}
}

// runTurn executes one turn and forwards its events to the client.
func (h *Handler) runTurn(ctx context.Context, conn *websocket.Conn, sessionID, message string) {
	if err := h.sessions.Ensure(ctx, sessionID); err != nil {
		h.writeError(conn, sessionID, "failed to ensure session: "+err.Error())
		return
	}

	events, errs, err := h.engine.Run(ctx, sessionID, message)
	if err != nil {
		h.writeError(conn, sessionID, "agent run failed: "+err.Error())
		return
	}

	for events != nil || errs != nil {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			text := ev.Content.FirstText()
			if ev.IsFinalResponse() {
				h.write(conn, outboundMessage{Type: "final", SessionID: sessionID, Content: text})
				return
			}
			if text != "" {
				h.write(conn, outboundMessage{Type: "delta", SessionID: sessionID, Content: text})
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				h.writeError(conn, sessionID, "agent run failed: "+err.Error())
				return
			}
		}
	}

	h.write(conn, outboundMessage{Type: "final", SessionID: sessionID})
}

func (h *Handler) write(conn *websocket.Conn, msg outboundMessage) {
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("[ws] write failed for session=%s: %v", msg.SessionID, err)
	}
}

func (h *Handler) writeError(conn *websocket.Conn, sessionID, errorMsg string) {
	h.write(conn, outboundMessage{Type: "error", SessionID: sessionID, Error: errorMsg})
}
