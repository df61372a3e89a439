package journal

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore persists turns to SQLite.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens (or creates) a journal database.
// The path should be a file path or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS turns (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			tool TEXT NOT NULL,
			args BLOB,
			outcome TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			PRIMARY KEY (run_id, seq)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Append implements Store.
func (s *SQLiteStore) Append(turn Turn) error {
	if turn.RunID == "" {
		return ErrInvalidTurn
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`
		INSERT INTO turns (run_id, seq, tool, args, outcome, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO UPDATE SET
			tool = excluded.tool,
			args = excluded.args,
			outcome = excluded.outcome,
			timestamp = excluded.timestamp
	`, turn.RunID, turn.Seq, turn.Tool, []byte(turn.Args), turn.Outcome,
		turn.Timestamp.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

// Turns implements Store.
func (s *SQLiteStore) Turns(runID string) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT seq, tool, args, outcome, timestamp
		FROM turns
		WHERE run_id = ?
		ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	turns := []Turn{}
	for rows.Next() {
		t := Turn{RunID: runID}
		var args []byte
		var timestamp string
		if err := rows.Scan(&t.Seq, &t.Tool, &args, &t.Outcome, &timestamp); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if len(args) > 0 {
			t.Args = args
		}
		t.Timestamp, _ = time.Parse(timeLayout, timestamp)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return turns, nil
}

// Runs implements Store.
func (s *SQLiteStore) Runs() ([]RunInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT run_id, COUNT(*), MIN(timestamp), MAX(timestamp)
		FROM turns
		GROUP BY run_id
		ORDER BY MIN(timestamp), run_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var infos []RunInfo
	for rows.Next() {
		var info RunInfo
		var first, last string
		if err := rows.Scan(&info.RunID, &info.Turns, &first, &last); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		info.FirstSeen, _ = time.Parse(timeLayout, first)
		info.LastSeen, _ = time.Parse(timeLayout, last)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return infos, nil
}

// DeleteRun implements Store.
func (s *SQLiteStore) DeleteRun(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.Exec(`DELETE FROM turns WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}
