package ai

import "context"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged turn sent to a completion provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider is a remote text-completion service.
type Provider interface {
	// Chat returns the whole completion in one result.
	Chat(ctx context.Context, messages []Message) (string, error)
	// StreamChat starts a streaming completion. The caller must Close the stream.
	StreamChat(ctx context.Context, messages []Message) (Stream, error)
}

// Stream yields completion deltas in arrival order.
// Recv returns io.EOF once the provider signalled the end of the stream; any other
// error is a failure of the stream itself.
type Stream interface {
	Recv() (string, error)
	Close() error
}
