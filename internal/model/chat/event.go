package chat

import (
	"time"

	"github.com/google/uuid"
)

// Part is a single segment of event content. Engines only produce text
// parts today; the struct keeps room for richer payloads later.
type Part struct {
	Text string `json:"text"`
}

// Content holds a role plus ordered parts, mirroring what the underlying
// model APIs emit.
type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// FirstText extracts the text of the first part. The first part is the
// only text-recovery strategy for engine output; absent or empty parts
// yield the empty string.
func (c *Content) FirstText() string {
	if c == nil || len(c.Parts) == 0 {
		return ""
	}
	return c.Parts[0].Text
}

// Event is one unit of engine output for a turn. A run produces zero or
// more partial events followed by at most one final event carrying the
// authoritative reply.
type Event struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Author    string    `json:"author"`
	Content   *Content  `json:"content,omitempty"`
	Partial   bool      `json:"partial,omitempty"`
	Final     bool      `json:"final,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates a bare event authored by author for the given session.
func NewEvent(sessionID, author string) Event {
	return Event{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Author:    author,
		Timestamp: time.Now().UTC(),
	}
}

// NewPartialEvent wraps a streaming fragment of agent output.
func NewPartialEvent(sessionID, text string) Event {
	e := NewEvent(sessionID, RoleAgent)
	e.Content = &Content{Role: RoleAgent, Parts: []Part{{Text: text}}}
	e.Partial = true
	return e
}

// NewFinalEvent wraps the terminal reply for a turn.
func NewFinalEvent(sessionID, text string) Event {
	e := NewEvent(sessionID, RoleAgent)
	e.Content = &Content{Role: RoleAgent, Parts: []Part{{Text: text}}}
	e.Final = true
	return e
}

// IsFinalResponse reports whether this event ends consumption of a turn's
// stream. Partial fragments are never final even when flagged.
func (e Event) IsFinalResponse() bool {
	return e.Final && !e.Partial
}
