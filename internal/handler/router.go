package handler

import (
	"html/template"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	chatHandler "github.com/candlewick/agentdesk/internal/handler/chat"
	"github.com/candlewick/agentdesk/internal/handler/stream"
	"github.com/candlewick/agentdesk/internal/handler/ws"
	middlewarePkg "github.com/candlewick/agentdesk/internal/middleware"
	"github.com/candlewick/agentdesk/internal/service/agent"
	"github.com/candlewick/agentdesk/internal/service/session"
	"github.com/candlewick/agentdesk/internal/service/turn"
	"github.com/candlewick/agentdesk/pkg/utils"
)

// NewRouter wires HTTP routes to core services. A nil engine degrades
// the chat endpoints instead of failing startup.
func NewRouter(registry *session.Registry, store *session.Store, engine agent.Engine, page *template.Template) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	var runner chatHandler.TurnRunner
	var streamHandler *stream.Handler
	var wsHandler *ws.Handler
	if engine != nil {
		runner = turn.NewService(registry, engine)
		streamHandler = stream.New(engine, registry)
		wsHandler = ws.New(engine, registry)
	}

	chatH := chatHandler.New(registry, store, runner, page)
	chatH.RegisterRoutes(r)

	// Streaming variant of the chat turn: same reduction inputs, but
	// intermediate events reach the client as they are produced.
	r.Get("/chat/stream", func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.URL.Query().Get("session_id")
		message := r.URL.Query().Get("message")

		if streamHandler == nil {
			utils.RespondError(w, http.StatusServiceUnavailable, "agent streaming unavailable")
			return
		}
		if sessionID == "" {
			utils.RespondError(w, http.StatusBadRequest, "session_id query parameter is required")
			return
		}
		if message == "" {
			utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
			return
		}

		if err := streamHandler.HandleStreamRequest(r.Context(), w, sessionID, message); err != nil {
			log.Printf("[stream] error handling request: %v", err)
		}
	})

	if wsHandler != nil {
		wsHandler.RegisterRoutes(r)
	}

	return r
}
