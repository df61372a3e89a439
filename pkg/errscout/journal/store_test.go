package journal_test

import (
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/errscout/pkg/errscout/journal"
)

var t0 = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func turn(runID string, seq int, tool string) journal.Turn {
	return journal.Turn{
		RunID:     runID,
		Seq:       seq,
		Tool:      tool,
		Args:      json.RawMessage(`{"service":"KV"}`),
		Outcome:   "outcome " + tool,
		Timestamp: t0.Add(time.Duration(seq) * time.Second),
	}
}

type storeFactory func(t *testing.T) journal.Store

func storeContractTest(t *testing.T, name string, factory storeFactory) {
	t.Run(name+"/Append_and_Turns", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Append(turn("run-1", 1, "list_operations")))
		require.NoError(t, store.Append(turn("run-1", 0, "list_services")))

		turns, err := store.Turns("run-1")
		require.NoError(t, err)
		require.Len(t, turns, 2)
		assert.Equal(t, 0, turns[0].Seq)
		assert.Equal(t, "list_services", turns[0].Tool)
		assert.Equal(t, "list_operations", turns[1].Tool)
		assert.JSONEq(t, `{"service":"KV"}`, string(turns[1].Args))
		assert.Equal(t, "outcome list_operations", turns[1].Outcome)
		assert.True(t, t0.Add(time.Second).Equal(turns[1].Timestamp))
		assert.Equal(t, "run-1", turns[1].RunID)
	})

	t.Run(name+"/Append_Replaces_Seq", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Append(turn("run-1", 3, "call_operation")))
		replacement := turn("run-1", 3, "report_rename")
		replacement.Args = nil
		require.NoError(t, store.Append(replacement))

		turns, err := store.Turns("run-1")
		require.NoError(t, err)
		require.Len(t, turns, 1)
		assert.Equal(t, "report_rename", turns[0].Tool)
		assert.Empty(t, turns[0].Args)
	})

	t.Run(name+"/Turns_UnknownRun", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		turns, err := store.Turns("nope")
		require.NoError(t, err)
		assert.NotNil(t, turns)
		assert.Empty(t, turns)
	})

	t.Run(name+"/Append_RequiresRunID", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		assert.ErrorIs(t, store.Append(turn("", 0, "list_services")), journal.ErrInvalidTurn)
	})

	t.Run(name+"/Runs", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Append(turn("run-a", 0, "list_services")))
		require.NoError(t, store.Append(turn("run-a", 2, "call_operation")))
		require.NoError(t, store.Append(turn("run-b", 5, "list_services")))

		runs, err := store.Runs()
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, "run-a", runs[0].RunID)
		assert.Equal(t, 2, runs[0].Turns)
		assert.True(t, t0.Equal(runs[0].FirstSeen))
		assert.True(t, t0.Add(2*time.Second).Equal(runs[0].LastSeen))
		assert.Equal(t, "run-b", runs[1].RunID)
		assert.Equal(t, 1, runs[1].Turns)
	})

	t.Run(name+"/DeleteRun", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Append(turn("run-a", 0, "list_services")))
		require.NoError(t, store.Append(turn("run-b", 0, "list_services")))
		require.NoError(t, store.DeleteRun("run-a"))
		require.NoError(t, store.DeleteRun("never-existed"))

		turns, err := store.Turns("run-a")
		require.NoError(t, err)
		assert.Empty(t, turns)

		runs, err := store.Runs()
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, "run-b", runs[0].RunID)
	})

	t.Run(name+"/Closed", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.Close())
		require.NoError(t, store.Close())

		assert.ErrorIs(t, store.Append(turn("run-1", 0, "list_services")), journal.ErrStoreClosed)
		_, err := store.Turns("run-1")
		assert.ErrorIs(t, err, journal.ErrStoreClosed)
		_, err = store.Runs()
		assert.ErrorIs(t, err, journal.ErrStoreClosed)
		assert.ErrorIs(t, store.DeleteRun("run-1"), journal.ErrStoreClosed)
	})

	t.Run(name+"/Concurrent", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		const workers = 8
		const perWorker = 10

		var wg sync.WaitGroup
		for w := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range perWorker {
					assert.NoError(t, store.Append(turn("run-c", w*perWorker+i, "call_operation")))
				}
			}()
		}
		wg.Wait()

		turns, err := store.Turns("run-c")
		require.NoError(t, err)
		require.Len(t, turns, workers*perWorker)
		for i, tr := range turns {
			assert.Equal(t, i, tr.Seq)
		}
	})
}

func TestMemoryStore_Contract(t *testing.T) {
	storeContractTest(t, "Memory", func(t *testing.T) journal.Store {
		return journal.NewMemoryStore()
	})
}

func TestSQLiteStore_Contract(t *testing.T) {
	storeContractTest(t, "SQLite", func(t *testing.T) journal.Store {
		store, err := journal.NewSQLiteStore(filepath.Join(t.TempDir(), "journal.db"))
		require.NoError(t, err)
		return store
	})
}

func TestSQLiteStore_MemoryPath(t *testing.T) {
	store, err := journal.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Append(turn("run-1", 0, "list_services")))
	turns, err := store.Turns("run-1")
	require.NoError(t, err)
	assert.Len(t, turns, 1)
}

func TestSQLiteStore_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	first, err := journal.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, first.Append(turn("run-1", 0, "list_services")))
	require.NoError(t, first.Close())

	second, err := journal.NewSQLiteStore(path)
	require.NoError(t, err)
	defer second.Close()

	turns, err := second.Turns("run-1")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "list_services", turns[0].Tool)
}

func TestSQLiteStore_InvalidPath(t *testing.T) {
	_, err := journal.NewSQLiteStore("/nonexistent/path/journal.db")
	assert.Error(t, err)
}

func TestMemoryStore_Len(t *testing.T) {
	store := journal.NewMemoryStore()
	require.NoError(t, store.Append(turn("run-1", 0, "list_services")))
	require.NoError(t, store.Append(turn("run-2", 0, "list_services")))
	require.NoError(t, store.Append(turn("run-2", 0, "list_operations")))
	assert.Equal(t, 2, store.Len())
}
