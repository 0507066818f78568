package chat

import "github.com/suPer8Hu/ai-chat-backend/internal/ai"

// Role is the origin of a turn: the user or the AI.
type Role int

const (
	RoleUser Role = iota
	RoleAssistant
)

// RoleFromAI converts the store representation (is_from_ai) to a Role.
func RoleFromAI(fromAI bool) Role {
	if fromAI {
		return RoleAssistant
	}
	return RoleUser
}

// FromAI converts a Role back to the store representation.
func (r Role) FromAI() bool { return r == RoleAssistant }

// String is the provider representation of the role.
func (r Role) String() string {
	if r == RoleAssistant {
		return ai.RoleAssistant
	}
	return ai.RoleUser
}

// HistoryTurn is one message of a conversation as seen by the completion provider.
type HistoryTurn struct {
	Role    Role
	Content string
}

func TurnsFromMessages(msgs []Message) []HistoryTurn {
	out := make([]HistoryTurn, 0, len(msgs)+1)
	for _, m := range msgs {
		out = append(out, HistoryTurn{Role: RoleFromAI(m.IsFromAI), Content: m.Content})
	}
	return out
}

func providerMessages(turns []HistoryTurn) []ai.Message {
	out := make([]ai.Message, 0, len(turns))
	for _, t := range turns {
		out = append(out, ai.Message{Role: t.Role.String(), Content: t.Content})
	}
	return out
}
