package turn

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/candlewick/agentdesk/internal/model/chat"
	"github.com/candlewick/agentdesk/internal/service/agent"
	"github.com/candlewick/agentdesk/internal/service/session"
)

// ErrEmptyMessage is returned when the inbound message is blank after
// trimming. It is a request-validation outcome, not an engine failure.
var ErrEmptyMessage = errors.New("please provide a message")

// AgentErrorPrefix marks replies produced from an engine failure. The
// HTTP layer keys the status code off this prefix.
const AgentErrorPrefix = "An agent error occurred"

// Service drives one conversational turn to completion: ensure the
// session, run the engine, and reduce its event stream to the single
// reply the synchronous chat endpoint promises.
type Service struct {
	registry *session.Registry
	engine   agent.Engine
}

// NewService wires the orchestrator to its collaborators.
func NewService(registry *session.Registry, engine agent.Engine) *Service {
	return &Service{registry: registry, engine: engine}
}

// Run executes a turn and returns the final reply text.
//
// Engine failures come back as a reply string carrying AgentErrorPrefix
// with a nil error; only validation and session failures surface as
// errors. A stream that ends without a final event yields the empty
// reply — questionable, but it is the documented behavior and callers
// depend on it being a success.
func (s *Service) Run(ctx context.Context, sessionID, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyMessage
	}

	if err := s.registry.Ensure(ctx, sessionID); err != nil {
		return "", fmt.Errorf("agent session error: %w", err)
	}

	events, errs, err := s.engine.Run(ctx, sessionID, message)
	if err != nil {
		return fmt.Sprintf("%s: %v", AgentErrorPrefix, err), nil
	}

	return s.reduce(ctx, events, errs)
}

// reduce consumes events in emission order and stops at the first final
// event that carries content. Remaining events are left unread.
func (s *Service) reduce(ctx context.Context, events <-chan chat.Event, errs <-chan error) (string, error) {
	for events != nil || errs != nil {
		select {
		case <-ctx.Done():
			return fmt.Sprintf("%s: %v", AgentErrorPrefix, ctx.Err()), nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.IsFinalResponse() && ev.Content != nil && len(ev.Content.Parts) > 0 {
				return ev.Content.Parts[0].Text, nil
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return fmt.Sprintf("%s: %v", AgentErrorPrefix, err), nil
			}
		}
	}

	// Stream exhausted without a final event: empty reply, reported as
	// success.
	return "", nil
}
