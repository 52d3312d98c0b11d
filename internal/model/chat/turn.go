package chat

// Conversation roles as they appear in history payloads.
const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

// MissingContent is substituted when a turn's content carries no usable text.
const MissingContent = "[Content Missing]"

// Turn is one role-tagged message in a session's history.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// DisplayText returns the turn text, falling back to the missing-content
// sentinel so fresh or malformed turns never render blank.
func (t Turn) DisplayText() string {
	if t.Text == "" {
		return MissingContent
	}
	return t.Text
}
