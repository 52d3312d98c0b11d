package agent

import (
	"context"

	"github.com/candlewick/agentdesk/internal/model/chat"
)

// Engine produces the event stream for one conversational turn. Events
// arrive in emission order; at most one carries the final reply. Errors
// raised while producing are delivered on the second channel, after
// which no further events follow.
//
// The engine is the writer of record for session history: it appends
// the user turn before producing and the agent turn once a final reply
// exists. Callers only ever read history.
type Engine interface {
	Run(ctx context.Context, sessionID, message string) (<-chan chat.Event, <-chan error, error)
}
