package schemas

// Role identifies the author of a TurnMessage.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the recognized roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// TurnMessage is a single entry in a session's history. For assistant turns Content holds the
// JSON-encoded operation list that was returned to the caller for that turn.
type TurnMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// TurnState distinguishes the opening turn of a session, which carries the full operation
// schema in its prompt, from every turn after it.
type TurnState int

const (
	ContinuationTurn TurnState = iota
	FirstTurn
)

func (s TurnState) String() string {
	if s == FirstTurn {
		return "first"
	}
	return "continuation"
}
