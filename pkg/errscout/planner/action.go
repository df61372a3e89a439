package planner

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Tool names one of the five session operations.
type Tool string

// The complete tool set exposed to planners.
const (
	ToolListServices      Tool = "list_services"
	ToolListOperations    Tool = "list_operations"
	ToolDescribeOperation Tool = "describe_operation"
	ToolCallOperation     Tool = "call_operation"
	ToolReportRename      Tool = "report_rename"
)

// Tools lists every tool in presentation order.
func Tools() []Tool {
	return []Tool{
		ToolListServices,
		ToolListOperations,
		ToolDescribeOperation,
		ToolCallOperation,
		ToolReportRename,
	}
}

// Valid reports whether t is one of the five tools.
func (t Tool) Valid() bool {
	switch t {
	case ToolListServices, ToolListOperations, ToolDescribeOperation, ToolCallOperation, ToolReportRename:
		return true
	default:
		return false
	}
}

// ErrInvalidAction is wrapped by ParseAction failures.
var ErrInvalidAction = errors.New("invalid action")

// Action is a planner decision: either a tool call or Done.
type Action struct {
	Tool   Tool            `json:"tool,omitempty"`
	Args   json.RawMessage `json:"args,omitempty"`
	Done   bool            `json:"done,omitempty"`
	Reason string          `json:"reason,omitempty"`
}

// String renders the action for transcripts.
func (a Action) String() string {
	if a.Done {
		if a.Reason != "" {
			return "done: " + a.Reason
		}
		return "done"
	}
	if len(a.Args) == 0 {
		return string(a.Tool)
	}
	return fmt.Sprintf("%s %s", a.Tool, a.Args)
}

// DecodeArgs unmarshals the action arguments into v. Missing arguments
// decode as an empty object.
func (a Action) DecodeArgs(v any) error {
	args := bytes.TrimSpace(a.Args)
	if len(args) == 0 || bytes.Equal(args, []byte("null")) {
		args = []byte("{}")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%s arguments: %w", a.Tool, err)
	}
	return nil
}

// ServiceArgs are the arguments of list_operations.
type ServiceArgs struct {
	Service string `json:"service"`
}

// OperationArgs are the arguments of describe_operation.
type OperationArgs struct {
	Service   string `json:"service"`
	Operation string `json:"operation"`
}

// CallArgs are the arguments of call_operation. Input is any JSON object,
// or a string holding one.
type CallArgs struct {
	Service   string          `json:"service"`
	Operation string          `json:"operation"`
	Input     json.RawMessage `json:"input,omitempty"`
}

// RenameArgs are the arguments of report_rename.
type RenameArgs struct {
	Service      string `json:"service"`
	Operation    string `json:"operation"`
	CurrentTag   string `json:"currentTag"`
	SuggestedTag string `json:"suggestedTag"`
	Reason       string `json:"reason"`
}

func newAction(tool Tool, args any) Action {
	data, err := json.Marshal(args)
	if err != nil {
		// every args type above marshals; a failure here is a programming error
		panic(fmt.Sprintf("planner: marshal %s args: %v", tool, err))
	}
	return Action{Tool: tool, Args: data}
}

// ListServices builds a list_services action.
func ListServices() Action {
	return Action{Tool: ToolListServices}
}

// ListOperations builds a list_operations action.
func ListOperations(service string) Action {
	return newAction(ToolListOperations, ServiceArgs{Service: service})
}

// Describe builds a describe_operation action.
func Describe(service, operation string) Action {
	return newAction(ToolDescribeOperation, OperationArgs{Service: service, Operation: operation})
}

// Call builds a call_operation action. input must marshal to JSON.
func Call(service, operation string, input any) Action {
	var raw json.RawMessage
	switch v := input.(type) {
	case nil:
	case json.RawMessage:
		raw = v
	case string:
		raw, _ = json.Marshal(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			panic(fmt.Sprintf("planner: marshal call input: %v", err))
		}
		raw = data
	}
	return newAction(ToolCallOperation, CallArgs{Service: service, Operation: operation, Input: raw})
}

// Rename builds a report_rename action.
func Rename(service, operation, currentTag, suggestedTag, reason string) Action {
	return newAction(ToolReportRename, RenameArgs{
		Service:      service,
		Operation:    operation,
		CurrentTag:   currentTag,
		SuggestedTag: suggestedTag,
		Reason:       reason,
	})
}

// Done builds a stop action.
func Done(reason string) Action {
	return Action{Done: true, Reason: reason}
}

// ParseAction extracts an action from free text. It takes the first
// balanced JSON object in text, which tolerates code fences and prose
// around the object.
func ParseAction(text string) (Action, error) {
	obj, ok := firstObject(text)
	if !ok {
		return Action{}, fmt.Errorf("%w: no JSON object found", ErrInvalidAction)
	}

	var a Action
	if err := json.Unmarshal([]byte(obj), &a); err != nil {
		return Action{}, fmt.Errorf("%w: %v", ErrInvalidAction, err)
	}
	if a.Done {
		return a, nil
	}
	if !a.Tool.Valid() {
		return Action{}, fmt.Errorf("%w: unknown tool %q", ErrInvalidAction, a.Tool)
	}
	return a, nil
}

// firstObject returns the first balanced {...} in s, skipping braces
// inside JSON strings.
func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
