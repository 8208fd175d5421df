// Package session keeps the ordered message log of a single task.
package session

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/xkilldash9x/assistant-operate/api/schemas"
)

// ErrInvalidRole is returned when a message is appended with a role other than user or assistant.
var ErrInvalidRole = errors.New("session: invalid message role")

// uuidNewString is swappable so tests can pin session ids.
var uuidNewString = uuid.NewString

// History is an append-only log of turn messages. It is not safe for concurrent use: one
// task owns one History and drives it from a single goroutine.
type History struct {
	id       string
	messages []schemas.TurnMessage
}

// New returns an empty history with a fresh id. The caller is expected to append the
// opening user message (usually the objective) before the first turn runs.
func New() *History {
	return &History{id: uuidNewString()}
}

// ID identifies the history in logs.
func (h *History) ID() string { return h.id }

// Append adds a message to the end of the log.
func (h *History) Append(role schemas.Role, content string) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	h.messages = append(h.messages, schemas.TurnMessage{Role: role, Content: content})
	return nil
}

// TurnState reports FirstTurn when exactly one message has been recorded, and
// ContinuationTurn for any other count, including zero.
func (h *History) TurnState() schemas.TurnState {
	if len(h.messages) == 1 {
		return schemas.FirstTurn
	}
	return schemas.ContinuationTurn
}

// Len returns the number of recorded messages.
func (h *History) Len() int { return len(h.messages) }

// Messages returns a copy of the log in insertion order.
func (h *History) Messages() []schemas.TurnMessage {
	out := make([]schemas.TurnMessage, len(h.messages))
	copy(out, h.messages)
	return out
}
