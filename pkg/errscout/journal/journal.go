// Package journal records the turns of discovery sessions.
//
// A journal is a transcript, not state: a session never reads it back, and
// a failed write is logged by the caller and otherwise ignored.
package journal

import (
	"encoding/json"
	"errors"
	"time"
)

// Store persists session turns.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append stores a turn. A turn with the same (RunID, Seq) replaces the
	// earlier one.
	Append(turn Turn) error

	// Turns returns a run's turns ordered by Seq.
	// Returns an empty slice (not error) for an unknown run.
	Turns(runID string) ([]Turn, error)

	// Runs lists every run, oldest first.
	Runs() ([]RunInfo, error)

	// DeleteRun removes a run. Returns nil if the run does not exist.
	DeleteRun(runID string) error

	// Close releases any resources.
	Close() error
}

// Turn is one recorded round of a session.
type Turn struct {
	RunID     string          `json:"runId"`
	Seq       int             `json:"seq"`
	Tool      string          `json:"tool"`
	Args      json.RawMessage `json:"args,omitempty"`
	Outcome   string          `json:"outcome"`
	Timestamp time.Time       `json:"timestamp"`
}

// RunInfo summarises a run without loading its turns.
type RunInfo struct {
	RunID     string
	Turns     int
	FirstSeen time.Time
	LastSeen  time.Time
}

var (
	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("journal store closed")

	// ErrInvalidTurn indicates a turn without a run id.
	ErrInvalidTurn = errors.New("journal turn needs a run id")
)
