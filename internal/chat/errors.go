package chat

import "errors"

var (
	ErrChatNotFound    = errors.New("chat not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrJobNotFound     = errors.New("job not found")
)

// Store operations reported in StoreError.Op by chat turns.
const (
	OpReadHistory = "read history"
	OpAppendUser  = "append user message"
	OpAppendReply = "append assistant message"
)

// StoreError is a failed read or write against the message store.
// It unwraps to ErrChatNotFound when the chat could not be resolved.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return "store: " + e.Op + ": " + e.Err.Error() }

func (e *StoreError) Unwrap() error { return e.Err }

// ProviderError is a completion provider call that failed to start or failed mid-stream.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string { return "provider: " + e.Op + ": " + e.Err.Error() }

func (e *ProviderError) Unwrap() error { return e.Err }

// PromptStored reports whether a failed turn got past persisting the user message.
// Running such a turn again would store the prompt a second time.
func PromptStored(err error) bool {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return true
	}
	var serr *StoreError
	return errors.As(err, &serr) && serr.Op == OpAppendReply
}
