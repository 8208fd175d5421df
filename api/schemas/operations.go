// api/schemas/operations.go
package schemas

import (
	"fmt"

	json "github.com/json-iterator/go"
)

// OperationKind names one of the executable UI operations the reasoning endpoint may request.
type OperationKind string

const (
	KindClick OperationKind = "click" // Click at absolute screen coordinates.
	KindWrite OperationKind = "write" // Type a block of text.
	KindPress OperationKind = "press" // Press a key or key chord.
	KindDone  OperationKind = "done"  // The objective has been reached.
)

// DefaultDoneSummary is used when a done operation arrives without a summary.
const DefaultDoneSummary = "Task completed"

// DefaultThought synthesizes the rationale attached to an operation that arrived without one.
func DefaultThought(kind OperationKind) string {
	return fmt.Sprintf("Performing %s operation", kind)
}

// Operation is a single validated, executable UI action. The set of implementations is
// closed: only Click, Write, Press and Done satisfy it, and each value is built only after
// its kind-specific required fields have been checked.
type Operation interface {
	// Kind reports which variant this is.
	Kind() OperationKind
	// Rationale returns the human-readable thought that accompanied the operation.
	Rationale() string

	isOperation()
}

// Click presses the primary mouse button at (X, Y).
type Click struct {
	X       float64 `json:"x" mapstructure:"x"`
	Y       float64 `json:"y" mapstructure:"y"`
	Thought string  `json:"thought" mapstructure:"thought"`
}

// Write types Content verbatim.
type Write struct {
	Content string `json:"content" mapstructure:"content"`
	Thought string `json:"thought" mapstructure:"thought"`
}

// Press presses Keys in order as a single chord (e.g. ["ctrl", "c"]).
type Press struct {
	Keys    []string `json:"keys" mapstructure:"keys"`
	Thought string   `json:"thought" mapstructure:"thought"`
}

// Done signals that the objective is complete.
type Done struct {
	Summary string `json:"summary" mapstructure:"summary"`
	Thought string `json:"thought" mapstructure:"thought"`
}

func (Click) Kind() OperationKind { return KindClick }
func (Write) Kind() OperationKind { return KindWrite }
func (Press) Kind() OperationKind { return KindPress }
func (Done) Kind() OperationKind  { return KindDone }

func (c Click) Rationale() string { return c.Thought }
func (w Write) Rationale() string { return w.Thought }
func (p Press) Rationale() string { return p.Thought }
func (d Done) Rationale() string  { return d.Thought }

func (Click) isOperation() {}
func (Write) isOperation() {}
func (Press) isOperation() {}
func (Done) isOperation()  {}

// Wire forms put the "operation" discriminator in front of each variant's fields.
type clickWire struct {
	Operation OperationKind `json:"operation"`
	X         float64       `json:"x"`
	Y         float64       `json:"y"`
	Thought   string        `json:"thought"`
}

type writeWire struct {
	Operation OperationKind `json:"operation"`
	Content   string        `json:"content"`
	Thought   string        `json:"thought"`
}

type pressWire struct {
	Operation OperationKind `json:"operation"`
	Keys      []string      `json:"keys"`
	Thought   string        `json:"thought"`
}

type doneWire struct {
	Operation OperationKind `json:"operation"`
	Summary   string        `json:"summary"`
	Thought   string        `json:"thought"`
}

func (c Click) MarshalJSON() ([]byte, error) {
	return json.Marshal(clickWire{Operation: KindClick, X: c.X, Y: c.Y, Thought: c.Thought})
}

func (w Write) MarshalJSON() ([]byte, error) {
	return json.Marshal(writeWire{Operation: KindWrite, Content: w.Content, Thought: w.Thought})
}

func (p Press) MarshalJSON() ([]byte, error) {
	keys := p.Keys
	if keys == nil {
		keys = []string{}
	}
	return json.Marshal(pressWire{Operation: KindPress, Keys: keys, Thought: p.Thought})
}

func (d Done) MarshalJSON() ([]byte, error) {
	return json.Marshal(doneWire{Operation: KindDone, Summary: d.Summary, Thought: d.Thought})
}

// MarshalOperations encodes a list of operations as a JSON array. A nil or empty list
// encodes as "[]".
func MarshalOperations(ops []Operation) (string, error) {
	if len(ops) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(ops)
	if err != nil {
		return "", fmt.Errorf("failed to marshal operations: %w", err)
	}
	return string(data), nil
}
