package conversation

import (
	"fmt"

	"github.com/goland-group/aguimock/internal/protocol"
)

// Fork builds the starting point of a new conversation from a prefix of
// an existing one. Editing a past question and regenerating an answer
// both reduce to this: keep messages up to and including the user turn
// at uptoIndex, optionally replace that turn's content, and prepare a
// run request carrying the trimmed history. The request deliberately has
// no session id so that the server mints a fresh conversation; the fork
// never mutates the source thread.
func Fork(messages []Message, uptoIndex int, newLastUserContent string) (*protocol.RunRequest, []Message, error) {
	if uptoIndex < 0 || uptoIndex >= len(messages) {
		return nil, nil, fmt.Errorf("fork index %d out of range (have %d messages)", uptoIndex, len(messages))
	}
	if messages[uptoIndex].Role != protocol.RoleUser {
		return nil, nil, fmt.Errorf("fork index %d is not a user message", uptoIndex)
	}

	trimmed := make([]Message, uptoIndex+1)
	copy(trimmed, messages[:uptoIndex+1])
	if newLastUserContent != "" {
		last := NewMessage(protocol.RoleUser, newLastUserContent)
		trimmed[uptoIndex] = last
	}

	turns := make([]protocol.Turn, len(trimmed))
	for i, m := range trimmed {
		turns[i] = protocol.Turn{Role: m.Role, Content: m.Content}
	}

	req := &protocol.RunRequest{Turns: turns}
	return req, trimmed, nil
}

// LastUserIndex returns the index of the most recent user message, or -1
// when the conversation has none. Regeneration forks at this index.
func LastUserIndex(messages []Message) int {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == protocol.RoleUser {
			return i
		}
	}
	return -1
}
