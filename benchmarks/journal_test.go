package benchmarks

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/randalmurphal/errscout/pkg/errscout/journal"
)

func sampleTurn(seq int) journal.Turn {
	return journal.Turn{
		RunID:     "run-1",
		Seq:       seq,
		Tool:      "call_operation",
		Args:      json.RawMessage(`{"service":"KV","operation":"getValue","input":{"namespace_id":"ns","key_name":"k"}}`),
		Outcome:   "Error on KV.getValue: NotFoundError (code 10013, HTTP 404): namespace not found\nStatus: documented",
		Timestamp: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC).Add(time.Duration(seq) * time.Second),
	}
}

// BenchmarkMemoryStore_Append measures in-memory journal appends.
func BenchmarkMemoryStore_Append(b *testing.B) {
	store := journal.NewMemoryStore()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = store.Append(sampleTurn(i % 1000))
	}
}

// BenchmarkSQLiteStore_Append measures SQLite journal appends.
func BenchmarkSQLiteStore_Append(b *testing.B) {
	store, err := journal.NewSQLiteStore(filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatal(err)
	}
	defer store.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = store.Append(sampleTurn(i % 1000))
	}
}

// BenchmarkSQLiteStore_Turns measures reading a 100-turn transcript.
func BenchmarkSQLiteStore_Turns(b *testing.B) {
	store, err := journal.NewSQLiteStore(filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatal(err)
	}
	defer store.Close()
	for i := 0; i < 100; i++ {
		if err := store.Append(sampleTurn(i)); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = store.Turns("run-1")
	}
}
