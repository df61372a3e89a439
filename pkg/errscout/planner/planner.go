// Package planner decides what a discovery session does next.
//
// A Planner sees a View of the session so far and returns the next Action:
// one of the five tool calls, or Done. The session loop owns execution and
// the iteration cap. Planners only choose.
//
// Three strategies ship with errscout:
//
//   - Script replays a fixed list of actions.
//   - Sweep probes every catalog operation with a fixed set of input
//     mutations.
//   - LLM asks a language model for each step.
package planner

import (
	"context"

	"github.com/randalmurphal/errscout/pkg/errscout/ledger"
)

// Planner chooses the next action.
type Planner interface {
	// Name identifies the strategy in logs and reports.
	Name() string

	// Next returns the next action. An error ends the session.
	Next(ctx context.Context, view View) (Action, error)
}

// Turn is one executed round.
type Turn struct {
	Round   int    `json:"round"`
	Action  Action `json:"action"`
	Outcome string `json:"outcome"`
}

// View is what a planner sees before choosing. History is ordered oldest
// first; Summaries holds the ledger roll-up of every service with entries.
type View struct {
	Round     int
	MaxRounds int
	History   []Turn
	Summaries map[string]ledger.Summary
	Entries   int
}

// Remaining returns the rounds left before the cap, including this one.
func (v View) Remaining() int {
	return v.MaxRounds - v.Round
}

// Last returns the most recent turn.
func (v View) Last() (Turn, bool) {
	if len(v.History) == 0 {
		return Turn{}, false
	}
	return v.History[len(v.History)-1], true
}
