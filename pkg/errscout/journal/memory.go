package journal

import (
	"encoding/json"
	"slices"
	"sync"
)

// MemoryStore keeps turns in memory. Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	runs   map[string][]Turn
	order  []string
	closed bool
}

// NewMemoryStore creates an empty in-memory journal.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string][]Turn)}
}

// Append implements Store.
func (m *MemoryStore) Append(turn Turn) error {
	if turn.RunID == "" {
		return ErrInvalidTurn
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	// copy so the caller can reuse its buffer
	turn.Args = append(json.RawMessage(nil), turn.Args...)

	turns, ok := m.runs[turn.RunID]
	if !ok {
		m.order = append(m.order, turn.RunID)
	}
	idx := slices.IndexFunc(turns, func(t Turn) bool { return t.Seq == turn.Seq })
	if idx >= 0 {
		turns[idx] = turn
	} else {
		turns = append(turns, turn)
		slices.SortStableFunc(turns, func(a, b Turn) int { return a.Seq - b.Seq })
	}
	m.runs[turn.RunID] = turns
	return nil
}

// Turns implements Store.
func (m *MemoryStore) Turns(runID string) ([]Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	turns := m.runs[runID]
	out := make([]Turn, len(turns))
	for i, t := range turns {
		t.Args = append(json.RawMessage(nil), t.Args...)
		out[i] = t
	}
	return out, nil
}

// Runs implements Store.
func (m *MemoryStore) Runs() ([]RunInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	infos := make([]RunInfo, 0, len(m.order))
	for _, id := range m.order {
		turns := m.runs[id]
		info := RunInfo{RunID: id, Turns: len(turns)}
		for _, t := range turns {
			if info.FirstSeen.IsZero() || t.Timestamp.Before(info.FirstSeen) {
				info.FirstSeen = t.Timestamp
			}
			if t.Timestamp.After(info.LastSeen) {
				info.LastSeen = t.Timestamp
			}
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// DeleteRun implements Store.
func (m *MemoryStore) DeleteRun(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	delete(m.runs, runID)
	m.order = slices.DeleteFunc(m.order, func(id string) bool { return id == runID })
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.runs = nil
	m.order = nil
	return nil
}

// Len returns the number of turns across all runs.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, turns := range m.runs {
		count += len(turns)
	}
	return count
}
