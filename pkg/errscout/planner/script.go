package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Script replays a fixed list of actions, then reports Done.
type Script struct {
	actions []Action
	pos     int
}

// NewScript creates a script planner.
func NewScript(actions ...Action) *Script {
	return &Script{actions: actions}
}

// LoadScript reads a script file. YAML and JSON are both accepted.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	actions, err := ParseScript(data)
	if err != nil {
		return nil, fmt.Errorf("parse script %s: %w", path, err)
	}
	return NewScript(actions...), nil
}

// ParseScript decodes a list of actions:
//
//	- tool: call_operation
//	  args: {service: KV, operation: getValue, input: {namespace_id: nope}}
//	- done: true
//	  reason: finished
func ParseScript(data []byte) ([]Action, error) {
	var raw []map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	actions := make([]Action, 0, len(raw))
	for i, item := range raw {
		// round-trip through JSON so Args lands as json.RawMessage
		data, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		var a Action
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		if !a.Done && !a.Tool.Valid() {
			return nil, fmt.Errorf("step %d: %w: unknown tool %q", i+1, ErrInvalidAction, a.Tool)
		}
		actions = append(actions, a)
	}
	return actions, nil
}

// Name implements Planner.
func (s *Script) Name() string { return "script" }

// Len returns the number of scripted actions.
func (s *Script) Len() int { return len(s.actions) }

// Next implements Planner.
func (s *Script) Next(ctx context.Context, _ View) (Action, error) {
	if err := ctx.Err(); err != nil {
		return Action{}, err
	}
	if s.pos >= len(s.actions) {
		return Done("script exhausted"), nil
	}
	a := s.actions[s.pos]
	s.pos++
	return a, nil
}
