package agent

import (
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/candlewick/agentdesk/internal/model/chat"
)

func TestBuildHistoryMessages(t *testing.T) {
	turns := []chat.Turn{
		{Role: chat.RoleUser, Text: "first"},
		{Role: chat.RoleAgent, Text: "second"},
		{Role: chat.RoleAgent, Text: chat.MissingContent},
		{Role: "system", Text: "ignored role"},
	}

	history := buildHistoryMessages(turns)
	if len(history) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(history))
	}
	if history[0].Role != schema.User || history[0].Content != "first" {
		t.Fatalf("unexpected first message: %+v", history[0])
	}
	if history[1].Role != schema.Assistant || history[1].Content != "second" {
		t.Fatalf("unexpected second message: %+v", history[1])
	}
}

func TestBuildHistoryMessagesLimit(t *testing.T) {
	turns := make([]chat.Turn, 0, historyLimit+4)
	for i := 0; i < historyLimit+4; i++ {
		turns = append(turns, chat.Turn{Role: chat.RoleUser, Text: "msg"})
	}

	history := buildHistoryMessages(turns)
	if len(history) != historyLimit {
		t.Fatalf("expected %d messages, got %d", historyLimit, len(history))
	}
}

func TestBuildHistoryMessagesEmpty(t *testing.T) {
	if got := buildHistoryMessages(nil); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}
