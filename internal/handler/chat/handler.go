package chat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"html/template"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	chatModel "github.com/candlewick/agentdesk/internal/model/chat"
	"github.com/candlewick/agentdesk/internal/service/turn"
	"github.com/candlewick/agentdesk/pkg/utils"
)

// SessionDirectory tracks which sessions exist.
type SessionDirectory interface {
	Ensure(ctx context.Context, sessionID string) error
	Known() []string
}

// HistoryLoader reads stored conversation history.
type HistoryLoader interface {
	History(ctx context.Context, sessionID string) ([]chatModel.Turn, error)
}

// TurnRunner executes one conversational turn to completion.
type TurnRunner interface {
	Run(ctx context.Context, sessionID, message string) (string, error)
}

// Handler serves the chat page plus the /chat and /history endpoints.
// A nil runner means the agent engine failed to initialize; the page
// and degraded endpoints keep working.
type Handler struct {
	sessions SessionDirectory
	history  HistoryLoader
	runner   TurnRunner
	page     *template.Template
}

// New creates the chat handler.
func New(sessions SessionDirectory, history HistoryLoader, runner TurnRunner, page *template.Template) *Handler {
	return &Handler{
		sessions: sessions,
		history:  history,
		runner:   runner,
		page:     page,
	}
}

// RegisterRoutes attaches the chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleIndex)
	r.Get("/history", h.handleHistory)
	r.Post("/chat", h.handleChat)
}

// handleIndex serves the chat page, minting a session id when absent.
func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Redirect(w, r, "/?session_id="+NewSessionID(), http.StatusFound)
		return
	}

	data := struct {
		CurrentSessionID string
	}{CurrentSessionID: sessionID}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.page.Execute(w, data); err != nil {
		log.Printf("[chat] failed to render page: %v", err)
	}
}

// handleHistory returns the session transcript plus all known sessions.
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" || h.runner == nil {
		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"history":  []chatModel.Turn{},
			"sessions": []string{},
		})
		return
	}

	history, err := h.history.History(r.Context(), sessionID)
	if err != nil {
		log.Printf("[chat] history load failed for session=%s: %v", sessionID, err)
		utils.RespondJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":    "Failed to load history from memory.",
			"history":  []chatModel.Turn{},
			"sessions": []string{},
		})
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"history":            history,
		"current_session_id": sessionID,
		"sessions":           h.sessions.Known(),
	})
}

// handleChat runs one turn and answers with the final reply.
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		utils.RespondJSON(w, http.StatusBadRequest, map[string]string{
			"response": "Error: Session ID is missing.",
		})
		return
	}

	if h.runner == nil {
		utils.RespondJSON(w, http.StatusInternalServerError, map[string]string{
			"response": "Error: agent engine is not initialized. Check server logs.",
		})
		return
	}

	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondJSON(w, http.StatusBadRequest, map[string]string{
			"response": "Error: invalid request body.",
		})
		return
	}

	reply, err := h.runner.Run(r.Context(), sessionID, payload.Message)
	if err != nil {
		if errors.Is(err, turn.ErrEmptyMessage) {
			utils.RespondJSON(w, http.StatusBadRequest, map[string]string{
				"response": "Please provide a message.",
			})
			return
		}
		log.Printf("[chat] turn failed for session=%s: %v", sessionID, err)
		utils.RespondJSON(w, http.StatusInternalServerError, map[string]string{
			"response": err.Error(),
		})
		return
	}

	status := http.StatusOK
	if strings.HasPrefix(reply, turn.AgentErrorPrefix) {
		status = http.StatusInternalServerError
	}
	utils.RespondJSON(w, status, map[string]string{"response": reply})
}

// NewSessionID mints a short URL-safe session identifier: 8 lowercase
// hex characters. Collisions are possible and accepted; the service
// assumes a single user per session.
func NewSessionID() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		log.Printf("[chat] session id generation degraded: %v", err)
	}
	return hex.EncodeToString(buf)
}
