// internal/operations/validate.go
package operations

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/xkilldash9x/assistant-operate/api/schemas"
)

// DropReason classifies why a candidate did not become an Operation.
type DropReason string

const (
	DropNotRecord    DropReason = "not_record"    // The candidate is not a JSON object.
	DropUnknownKind  DropReason = "unknown_kind"  // "operation" is missing or names no known kind.
	DropMissingField DropReason = "missing_field" // A field required by the kind is absent or null.
	DropInvalidField DropReason = "invalid_field" // A field is present but cannot take the expected type.
)

// Drop describes one candidate discarded during validation.
type Drop struct {
	Index  int
	Reason DropReason
	Detail string
}

const (
	fieldOperation = "operation"
	fieldThought   = "thought"
	fieldSummary   = "summary"
)

// requiredFields lists, per kind, the fields that must be present and non-null.
var requiredFields = map[schemas.OperationKind][]string{
	schemas.KindClick: {"x", "y"},
	schemas.KindWrite: {"content"},
	schemas.KindPress: {"keys"},
	schemas.KindDone:  nil,
}

// Validate turns a candidate into an Operation. The second result is false when the candidate
// is dropped; in that case no Operation is returned at all.
func Validate(c Candidate) (schemas.Operation, bool) {
	op, drop := validate(c)
	return op, drop == nil
}

// ValidateAll validates candidates in order and returns the surviving Operations along with
// a record of each dropped candidate. A bad candidate never affects its neighbours.
func ValidateAll(candidates []Candidate) ([]schemas.Operation, []Drop) {
	ops := make([]schemas.Operation, 0, len(candidates))
	var drops []Drop
	for i, c := range candidates {
		op, drop := validate(c)
		if drop != nil {
			drop.Index = i
			drops = append(drops, *drop)
			continue
		}
		ops = append(ops, op)
	}
	return ops, drops
}

func validate(c Candidate) (schemas.Operation, *Drop) {
	fields, ok := c.Record()
	if !ok {
		return nil, &Drop{Reason: DropNotRecord, Detail: fmt.Sprintf("candidate is %T", c.Value)}
	}

	kindValue, _ := fields[fieldOperation].(string)
	kind := schemas.OperationKind(strings.ToLower(strings.TrimSpace(kindValue)))
	required, known := requiredFields[kind]
	if !known {
		return nil, &Drop{Reason: DropUnknownKind, Detail: fmt.Sprintf("operation %v", fields[fieldOperation])}
	}

	for _, name := range required {
		if !present(fields, name) {
			return nil, &Drop{Reason: DropMissingField, Detail: fmt.Sprintf("%s requires %q", kind, name)}
		}
	}

	// Only required fields go through the typed decode. Optional text is read on its own so a
	// malformed thought or summary never costs the operation.
	strict := make(map[string]any, len(required))
	for _, name := range required {
		strict[name] = fields[name]
	}

	var op schemas.Operation
	var err error
	switch kind {
	case schemas.KindClick:
		var v schemas.Click
		err = decodeFields(strict, &v)
		op = v
	case schemas.KindWrite:
		var v schemas.Write
		err = decodeFields(strict, &v)
		op = v
	case schemas.KindPress:
		var v schemas.Press
		err = decodeFields(strict, &v)
		if v.Keys == nil {
			v.Keys = []string{}
		}
		op = v
	case schemas.KindDone:
		summary, ok := optionalText(fields, fieldSummary)
		if !ok {
			summary = schemas.DefaultDoneSummary
		}
		op = schemas.Done{Summary: summary}
	}
	if err != nil {
		return nil, &Drop{Reason: DropInvalidField, Detail: err.Error()}
	}

	thought, ok := optionalText(fields, fieldThought)
	if !ok {
		thought = schemas.DefaultThought(kind)
	}
	return withThought(op, thought), nil
}

// present reports whether name is set to a non-null value.
func present(fields map[string]any, name string) bool {
	v, ok := fields[name]
	return ok && v != nil
}

// optionalText reads a free-text field. Strings pass through verbatim and scalars are
// formatted; null, objects and lists count as absent.
func optionalText(fields map[string]any, name string) (string, bool) {
	switch v := fields[name].(type) {
	case string:
		return v, true
	case float64, float32, int, int64, bool:
		return fmt.Sprint(v), true
	}
	return "", false
}

// decodeFields copies the required fields of a record into a variant. Weak typing lets a
// bare key string stand in for a one-element key list and numeric strings stand in for
// coordinates; rejectPlaceholders keeps it from inventing values out of junk.
func decodeFields(fields map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       rejectPlaceholders,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(fields)
}

// rejectPlaceholders runs on every value the decoder visits, list elements included.
// Booleans, empty strings and null list elements would otherwise decode to 1/0, 0 or "".
func rejectPlaceholders(from, to reflect.Type, data any) (any, error) {
	switch from.Kind() {
	case reflect.Bool:
		return nil, fmt.Errorf("boolean %v is not a valid %s", data, to)
	case reflect.String:
		if reflect.ValueOf(data).Len() == 0 {
			return nil, fmt.Errorf("empty string is not a valid %s", to)
		}
	case reflect.Slice, reflect.Array:
		v := reflect.ValueOf(data)
		for i := 0; i < v.Len(); i++ {
			elem := v.Index(i)
			if elem.Kind() == reflect.Interface && elem.IsNil() {
				return nil, fmt.Errorf("element %d is null", i)
			}
		}
	}
	return data, nil
}

func withThought(op schemas.Operation, thought string) schemas.Operation {
	switch v := op.(type) {
	case schemas.Click:
		v.Thought = thought
		return v
	case schemas.Write:
		v.Thought = thought
		return v
	case schemas.Press:
		v.Thought = thought
		return v
	case schemas.Done:
		v.Thought = thought
		return v
	}
	return op
}
