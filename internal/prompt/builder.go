// Package prompt builds the instruction text sent to the reasoning endpoint alongside each
// screenshot.
package prompt

import (
	"fmt"
	"strings"
)

// operationSpec is one entry in the schema enumeration of the opening prompt.
type operationSpec struct {
	title   string
	purpose string
	example string
}

// operationCatalog lists the operation kinds in the order they are presented to the model.
// Field names in the examples are the exact wire names the validator accepts.
var operationCatalog = []operationSpec{
	{"CLICK", "Click at a specific screen location",
		`{"operation": "click", "x": <x_coordinate>, "y": <y_coordinate>, "thought": "explanation"}`},
	{"WRITE", "Type text content",
		`{"operation": "write", "content": "text to type", "thought": "explanation"}`},
	{"PRESS", "Press keyboard key(s) or a shortcut",
		`{"operation": "press", "keys": ["key1", "key2"], "thought": "explanation"}`},
	{"DONE", "Mark the objective as complete",
		`{"operation": "done", "summary": "what was accomplished", "thought": "explanation"}`},
}

const continuationPrompt = "Based on the current screen state, what should I do next? Respond with a JSON array of operations."

// Build returns the prompt for a turn. The opening turn restates the objective, enumerates
// every operation kind with an example record and demands a bare JSON array; later turns
// only ask for the next action(s). The result depends on nothing but the arguments.
func Build(objective string, firstTurn bool) string {
	if !firstTurn {
		return continuationPrompt
	}

	var b strings.Builder
	fmt.Fprintf(&b, "I need you to help me control a computer to achieve this objective: %s\n\n", objective)
	b.WriteString("You can respond with JSON commands to control the computer. Available operations:\n")
	for i, op := range operationCatalog {
		fmt.Fprintf(&b, "\n%d. %s - %s\n   %s\n", i+1, op.title, op.purpose, op.example)
	}
	b.WriteString("\nPlease analyze the current screen state and tell me what action to take next. ")
	b.WriteString("Respond ONLY with a JSON array of operations.")
	return b.String()
}
