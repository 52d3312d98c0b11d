package stream

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/candlewick/agentdesk/internal/service/agent"
	"github.com/candlewick/agentdesk/pkg/utils"
)

// Ensurer makes a session usable before a turn runs against it.
type Ensurer interface {
	Ensure(ctx context.Context, sessionID string) error
}

// Handler streams a turn's events over Server-Sent Events instead of
// collapsing them into a single reply.
type Handler struct {
	engine   agent.Engine
	sessions Ensurer
}

// New creates a stream handler.
func New(engine agent.Engine, sessions Ensurer) *Handler {
	return &Handler{engine: engine, sessions: sessions}
}

// StreamResponse is one streamed chunk.
type StreamResponse struct {
	Event     string `json:"event"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
}

// HandleStreamRequest runs one turn and forwards its events as SSE chunks.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, sessionID, message string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}

	utils.SetupSSEHeaders(w)

	if err := h.sessions.Ensure(ctx, sessionID); err != nil {
		h.sendError(w, flusher, fmt.Sprintf("failed to ensure session: %v", err))
		return err
	}

	h.send(w, flusher, StreamResponse{Event: "start", SessionID: sessionID})

	events, errs, err := h.engine.Run(ctx, sessionID, message)
	if err != nil {
		h.sendError(w, flusher, fmt.Sprintf("agent run failed: %v", err))
		return err
	}

	for events != nil || errs != nil {
		select {
		case <-ctx.Done():
			log.Printf("[stream] client gone for session=%s", sessionID)
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			text := ev.Content.FirstText()
			if ev.IsFinalResponse() {
				h.send(w, flusher, StreamResponse{Event: "message", SessionID: sessionID, Content: text})
				h.send(w, flusher, StreamResponse{Event: "end", SessionID: sessionID, Finished: true})
				log.Printf("[stream] completed turn for session=%s", sessionID)
				return nil
			}
			if text != "" {
				h.send(w, flusher, StreamResponse{Event: "delta", SessionID: sessionID, Content: text})
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				h.sendError(w, flusher, fmt.Sprintf("agent run failed: %v", err))
				return err
			}
		}
	}

	// Stream exhausted without a final event; close out the client anyway.
	h.send(w, flusher, StreamResponse{Event: "end", SessionID: sessionID, Finished: true})
	return nil
}

func (h *Handler) send(w http.ResponseWriter, flusher http.Flusher, response StreamResponse) {
	utils.SendSSEChunk(w, flusher, response)
}

func (h *Handler) sendError(w http.ResponseWriter, flusher http.Flusher, errorMsg string) {
	h.send(w, flusher, StreamResponse{Event: "error", Error: errorMsg})
}
