package turn_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/candlewick/agentdesk/internal/model/chat"
	"github.com/candlewick/agentdesk/internal/service/session"
	"github.com/candlewick/agentdesk/internal/service/turn"
)

// stubEngine replays canned events and records whether it ran.
type stubEngine struct {
	events      []chat.Event
	err         error
	runErr      error
	closeEvents bool
	called      bool

	// leftover exposes the events channel so tests can check what the
	// orchestrator never consumed.
	leftover chan chat.Event
}

func (e *stubEngine) Run(_ context.Context, sessionID, _ string) (<-chan chat.Event, <-chan error, error) {
	e.called = true
	if e.runErr != nil {
		return nil, nil, e.runErr
	}

	events := make(chan chat.Event, len(e.events))
	errs := make(chan error, 1)
	for _, ev := range e.events {
		events <- ev
	}
	if e.err != nil {
		errs <- e.err
	}
	close(errs)
	if e.closeEvents {
		close(events)
	}
	e.leftover = events
	return events, errs, nil
}

func newService(engine *stubEngine) *turn.Service {
	return turn.NewService(session.NewRegistry(session.NewStore()), engine)
}

func TestRunEmptyMessageSkipsEngine(t *testing.T) {
	engine := &stubEngine{}
	svc := newService(engine)

	_, err := svc.Run(context.Background(), "s1", "   ")
	if !errors.Is(err, turn.ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if engine.called {
		t.Fatal("engine must not run for a blank message")
	}
}

func TestRunStopsAtFinalEvent(t *testing.T) {
	engine := &stubEngine{
		events: []chat.Event{
			chat.NewPartialEvent("s1", "thinking"),
			chat.NewPartialEvent("s1", "still thinking"),
			chat.NewFinalEvent("s1", "OK"),
			chat.NewPartialEvent("s1", "never read"),
		},
	}
	svc := newService(engine)

	reply, err := svc.Run(context.Background(), "s1", "hello")
	if err != nil {
		t.Fatalf("Run err: %v", err)
	}
	if reply != "OK" {
		t.Fatalf("expected OK, got %q", reply)
	}
	if len(engine.leftover) != 1 {
		t.Fatalf("expected 1 unread event after the final one, found %d", len(engine.leftover))
	}
}

func TestRunStreamErrorBecomesReply(t *testing.T) {
	engine := &stubEngine{
		events: []chat.Event{chat.NewPartialEvent("s1", "partial")},
		err:    errors.New("model exploded"),
	}
	svc := newService(engine)

	reply, err := svc.Run(context.Background(), "s1", "hello")
	if err != nil {
		t.Fatalf("stream errors must not surface as errors, got %v", err)
	}
	if !strings.HasPrefix(reply, turn.AgentErrorPrefix) {
		t.Fatalf("expected agent-error reply, got %q", reply)
	}
	if !strings.Contains(reply, "model exploded") {
		t.Fatalf("reply must carry the underlying message, got %q", reply)
	}
}

func TestRunEngineStartFailureBecomesReply(t *testing.T) {
	engine := &stubEngine{runErr: errors.New("no credentials")}
	svc := newService(engine)

	reply, err := svc.Run(context.Background(), "s1", "hello")
	if err != nil {
		t.Fatalf("Run err: %v", err)
	}
	if !strings.HasPrefix(reply, turn.AgentErrorPrefix) {
		t.Fatalf("expected agent-error reply, got %q", reply)
	}
}

func TestRunExhaustedStreamYieldsEmptyReply(t *testing.T) {
	engine := &stubEngine{
		events:      []chat.Event{chat.NewPartialEvent("s1", "never finalized")},
		closeEvents: true,
	}
	svc := newService(engine)

	reply, err := svc.Run(context.Background(), "s1", "hello")
	if err != nil {
		t.Fatalf("Run err: %v", err)
	}
	if reply != "" {
		t.Fatalf("expected empty reply, got %q", reply)
	}
}

type failingBackend struct{ err error }

func (f failingBackend) Exists(context.Context, string) (bool, error) { return false, f.err }
func (f failingBackend) Create(context.Context, string) error         { return f.err }

func TestRunSessionBackendFailure(t *testing.T) {
	engine := &stubEngine{}
	svc := turn.NewService(session.NewRegistry(failingBackend{err: errors.New("store down")}), engine)

	_, err := svc.Run(context.Background(), "s1", "hello")
	if err == nil || !strings.Contains(err.Error(), "agent session error") {
		t.Fatalf("expected session error, got %v", err)
	}
	if engine.called {
		t.Fatal("engine must not run when the session cannot be ensured")
	}
}
