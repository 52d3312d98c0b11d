package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/candlewick/agentdesk/internal/config"
	"github.com/candlewick/agentdesk/internal/model/chat"
	"github.com/candlewick/agentdesk/internal/service/session"
)

const (
	eventBufferSize = 16
	historyLimit    = 10
)

// Service is the Ark-backed agent engine. It feeds session history plus
// the new user message through a prompt/model chain and converts the
// model's output stream into turn events.
type Service struct {
	chatModel model.ChatModel
	store     *session.Store
	cfg       config.AIConfig
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService compiles the chat chain and returns a ready engine.
func NewService(ctx context.Context, store *session.Store, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		store:     store,
		cfg:       cfg,
		chain:     runnable,
	}, nil
}

// StreamingEnabled reports whether the model output is streamed or
// produced in one shot.
func (s *Service) StreamingEnabled() bool {
	return s.cfg.StreamResponse
}

// Run executes one turn. The user turn is persisted up front; the agent
// turn is persisted only once a final reply exists, so a failed run
// leaves no half-written agent message behind.
func (s *Service) Run(ctx context.Context, sessionID, message string) (<-chan chat.Event, <-chan error, error) {
	history, err := s.store.History(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load history: %w", err)
	}

	if err := s.store.Append(ctx, sessionID, chat.Turn{Role: chat.RoleUser, Text: message}); err != nil {
		return nil, nil, fmt.Errorf("failed to record user turn: %w", err)
	}

	input := s.buildChainInput(history, message)

	events := make(chan chat.Event, eventBufferSize)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)

		if s.StreamingEnabled() {
			s.runStreaming(ctx, sessionID, input, events, errs)
			return
		}
		s.runBuffered(ctx, sessionID, input, events, errs)
	}()

	return events, errs, nil
}

func (s *Service) runBuffered(ctx context.Context, sessionID string, input map[string]any, events chan<- chat.Event, errs chan<- error) {
	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		errs <- fmt.Errorf("failed to run chat chain: %w", err)
		return
	}

	s.finish(ctx, sessionID, response.Content, events)
}

func (s *Service) runStreaming(ctx context.Context, sessionID string, input map[string]any, events chan<- chat.Event, errs chan<- error) {
	stream, err := s.chain.Stream(ctx, input)
	if err != nil {
		errs <- fmt.Errorf("failed to stream chat chain output: %w", err)
		return
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 8)
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			errs <- fmt.Errorf("chat chain stream failed: %w", recvErr)
			return
		}
		if chunk == nil {
			continue
		}

		chunks = append(chunks, chunk)
		if chunk.Content != "" {
			if !s.emit(ctx, events, chat.NewPartialEvent(sessionID, chunk.Content)) {
				return
			}
		}
	}

	response, err := schema.ConcatMessages(chunks)
	if err != nil {
		errs <- fmt.Errorf("failed to assemble streamed reply: %w", err)
		return
	}

	s.finish(ctx, sessionID, response.Content, events)
}

// finish records the agent turn and emits the final event.
func (s *Service) finish(ctx context.Context, sessionID, reply string, events chan<- chat.Event) {
	if err := s.store.Append(ctx, sessionID, chat.Turn{Role: chat.RoleAgent, Text: reply}); err != nil {
		log.Printf("[agent] failed to record agent turn for session=%s: %v", sessionID, err)
	}

	s.emit(ctx, events, chat.NewFinalEvent(sessionID, reply))
	log.Printf("[agent] completed turn for session=%s, length=%d", sessionID, len(reply))
}

func (s *Service) emit(ctx context.Context, events chan<- chat.Event, ev chat.Event) bool {
	select {
	case <-ctx.Done():
		return false
	case events <- ev:
		return true
	}
}

func (s *Service) buildChainInput(history []chat.Turn, message string) map[string]any {
	return map[string]any{
		"system":  s.cfg.SystemPrompt,
		"history": buildHistoryMessages(history),
		"query":   message,
	}
}

func buildHistoryMessages(turns []chat.Turn) []*schema.Message {
	if len(turns) == 0 {
		return nil
	}

	startIdx := 0
	if len(turns) > historyLimit {
		startIdx = len(turns) - historyLimit
	}

	history := make([]*schema.Message, 0, len(turns)-startIdx)
	for _, turn := range turns[startIdx:] {
		if turn.Text == chat.MissingContent {
			continue
		}
		switch turn.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(turn.Text))
		case chat.RoleAgent:
			history = append(history, schema.AssistantMessage(turn.Text, nil))
		}
	}

	return history
}
