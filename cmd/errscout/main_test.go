package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/errscout/pkg/errscout/journal"
)

// isolateEnv clears every ERRSCOUT_* variable for the test.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		if name, _, _ := strings.Cut(kv, "="); strings.HasPrefix(name, "ERRSCOUT_") {
			t.Setenv(name, "")
			require.NoError(t, os.Unsetenv(name))
		}
	}
	t.Setenv("ERRSCOUT_LOG_LEVEL", "error")
}

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := new(bytes.Buffer)
	root := newRootCmd()
	root.SetOut(out)
	root.SetErr(new(bytes.Buffer))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// fakeAPI answers getValue with a documented 404 and every other request
// with an error code no documentation lists.
func fakeAPI(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.URL.Path, "/values/") {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"success":false,"errors":[{"code":10013,"message":"namespace not found"}],"result":null}`))
			return
		}
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"success":false,"errors":[{"code":99999,"message":"short and stout"}],"result":null}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const script = `
- tool: list_services
- tool: call_operation
  args:
    service: KV
    operation: getValue
    input: {namespace_id: ns1, key_name: missing}
- tool: call_operation
  args:
    service: KV
    operation: deleteNamespace
    input: {namespace_id: ns1}
- done: true
  reason: covered KV
`

func TestServicesCommand(t *testing.T) {
	isolateEnv(t)
	out, err := executeCommand(t, "services")
	require.NoError(t, err)
	assert.Contains(t, out, "Services (")
	assert.Contains(t, out, "KV")
	assert.Contains(t, out, "Workers KV namespaces and key-value pairs")
	assert.Contains(t, out, "R2")
}

func TestDescribeCommand(t *testing.T) {
	isolateEnv(t)

	out, err := executeCommand(t, "describe", "KV.getValue")
	require.NoError(t, err)
	assert.Contains(t, out, "Documented errors: AuthenticationError, NotFoundError")

	out, err = executeCommand(t, "describe", "KV")
	require.NoError(t, err)
	assert.Contains(t, out, "KV operations (")
	assert.Contains(t, out, "putValue")

	_, err = executeCommand(t, "describe", "KV.nope")
	assert.Error(t, err)

	_, err = executeCommand(t, "describe")
	assert.Error(t, err)
}

func TestDescribeCommand_CatalogFile(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	catalogPath := writeFile(t, dir, "catalog.yaml", `
services:
  - name: Widgets
    description: widget store
    operations:
      - name: getWidget
        method: GET
        path: /widgets/{widget_id}
        params:
          - {name: widget_id, in: path, type: string, required: true}
        expected_errors: [NotFoundError]
`)
	cfg := writeFile(t, dir, "errscout.yaml", "catalog: "+catalogPath+"\n")

	out, err := executeCommand(t, "--config", cfg, "services")
	require.NoError(t, err)
	assert.Contains(t, out, "Widgets")
	assert.NotContains(t, out, "Workers KV")
}

func TestRunCommand_RequiresToken(t *testing.T) {
	isolateEnv(t)
	_, err := executeCommand(t, "run", "--output", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERRSCOUT_API_TOKEN")
}

func TestRunCommand_Script(t *testing.T) {
	isolateEnv(t)
	srv, calls := fakeAPI(t)
	t.Setenv("ERRSCOUT_API_TOKEN", "test-token")
	t.Setenv("ERRSCOUT_BASE_URL", srv.URL)
	t.Setenv("ERRSCOUT_ACCOUNT_ID", "acct")

	dir := t.TempDir()
	scriptPath := writeFile(t, dir, "script.yaml", script)
	outDir := filepath.Join(dir, "out")
	journalPath := filepath.Join(dir, "journal.db")

	out, err := executeCommand(t, "run", "--script", scriptPath, "--output", outDir, "--journal", journalPath)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())

	assert.Contains(t, out, "Status: documented")
	assert.Contains(t, out, "Status: UNDOCUMENTED")
	assert.Contains(t, out, "Stopped: done after 3 rounds")
	assert.Contains(t, out, "Reason: covered KV")
	assert.Contains(t, out, "KV.deleteNamespace UnknownError code 99999")
	assert.NotContains(t, out, "KV.getValue NotFoundError")

	ts, err := os.ReadFile(filepath.Join(outDir, typesFile))
	require.NoError(t, err)
	assert.Contains(t, string(ts), "export type KVGetValueError =")
	assert.Contains(t, string(ts), "export type KVDeleteNamespaceError =")

	data, err := os.ReadFile(filepath.Join(outDir, "KV.json"))
	require.NoError(t, err)
	var doc struct {
		Summary struct {
			TotalUniqueErrors  int `json:"totalUniqueErrors"`
			UndocumentedErrors int `json:"undocumentedErrors"`
		} `json:"summary"`
		Operations map[string]struct {
			DocumentedErrors []string `json:"documentedErrors"`
		} `json:"operations"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, 2, doc.Summary.TotalUniqueErrors)
	assert.Equal(t, 1, doc.Summary.UndocumentedErrors)
	assert.Equal(t, []string{"AuthenticationError", "NotFoundError"}, doc.Operations["deleteNamespace"].DocumentedErrors)

	report, err := os.ReadFile(filepath.Join(outDir, reportFile))
	require.NoError(t, err)
	assert.Contains(t, string(report), "| KV | 2 | 1 | 1 | 50% |")

	runs, err := executeCommand(t, "journal", "--journal", journalPath)
	require.NoError(t, err)
	assert.Contains(t, runs, "TURNS")

	store, err := journal.NewSQLiteStore(journalPath)
	require.NoError(t, err)
	infos, err := store.Runs()
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.Len(t, infos, 1)
	runID := infos[0].RunID

	transcript, err := executeCommand(t, "journal", "--journal", journalPath, runID)
	require.NoError(t, err)
	assert.Contains(t, transcript, "call_operation")

	_, err = executeCommand(t, "journal", "--journal", journalPath, "--delete")
	assert.Error(t, err)

	deleted, err := executeCommand(t, "journal", "--journal", journalPath, "--delete", runID)
	require.NoError(t, err)
	assert.Contains(t, deleted, "Deleted run "+runID)

	after, err := executeCommand(t, "journal", "--journal", journalPath)
	require.NoError(t, err)
	assert.Contains(t, after, "No sessions recorded.")
}

func TestRunCommand_QuietSweepWithTelemetry(t *testing.T) {
	isolateEnv(t)
	srv, calls := fakeAPI(t)
	t.Setenv("ERRSCOUT_API_TOKEN", "test-token")
	t.Setenv("ERRSCOUT_BASE_URL", srv.URL)
	t.Setenv("ERRSCOUT_ACCOUNT_ID", "acct")

	outDir := t.TempDir()
	out, err := executeCommand(t, "run", "-q", "--services", "Queues", "--output", outDir, "--telemetry")
	require.NoError(t, err)

	assert.Positive(t, calls.Load())
	assert.NotContains(t, out, "[1]")
	assert.Contains(t, out, "Stopped: done")
	assert.Contains(t, out, "Metrics")
	assert.Contains(t, out, "errscout.probe.calls")
	assert.FileExists(t, filepath.Join(outDir, "Queues.json"))
}

func TestRunCommand_IterationCap(t *testing.T) {
	isolateEnv(t)
	srv, calls := fakeAPI(t)
	t.Setenv("ERRSCOUT_API_TOKEN", "test-token")
	t.Setenv("ERRSCOUT_BASE_URL", srv.URL)
	t.Setenv("ERRSCOUT_ACCOUNT_ID", "acct")

	out, err := executeCommand(t, "run", "-q", "-n", "1", "--services", "KV", "--output", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Contains(t, out, "Stopped: iteration_cap after 1 rounds")
}

func TestRunCommand_BadPlanner(t *testing.T) {
	isolateEnv(t)
	t.Setenv("ERRSCOUT_API_TOKEN", "test-token")
	_, err := executeCommand(t, "run", "--planner", "oracle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown planner "oracle"`)
}

func TestJournalCommand(t *testing.T) {
	isolateEnv(t)

	_, err := executeCommand(t, "journal")
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "journal.db")
	out, err := executeCommand(t, "journal", "--journal", path)
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions recorded.")

	_, err = executeCommand(t, "journal", "--journal", path, "missing-run")
	assert.Error(t, err)
}

func TestCatalogFile(t *testing.T) {
	assert.Equal(t, "KV.json", catalogFile("KV"))
	assert.Equal(t, "a_b.json", catalogFile("a/b"))
}

func TestClip(t *testing.T) {
	assert.Equal(t, "abc", clip("abc", 3))
	assert.Equal(t, "ab...", clip("abc", 2))
	assert.Equal(t, "a...", clip("aé", 2))
	assert.True(t, utf8.ValidString(clip("ééé", 3)))
}
