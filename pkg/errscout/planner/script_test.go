package planner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScript_ReplaysThenDone(t *testing.T) {
	ctx := context.Background()
	s := NewScript(ListServices(), Describe("KV", "getValue"))
	assert.Equal(t, "script", s.Name())
	assert.Equal(t, 2, s.Len())

	a, err := s.Next(ctx, View{})
	require.NoError(t, err)
	assert.Equal(t, ToolListServices, a.Tool)

	a, err = s.Next(ctx, View{})
	require.NoError(t, err)
	assert.Equal(t, ToolDescribeOperation, a.Tool)

	for range 2 {
		a, err = s.Next(ctx, View{})
		require.NoError(t, err)
		assert.True(t, a.Done)
		assert.Equal(t, "script exhausted", a.Reason)
	}
}

func TestScript_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewScript(ListServices()).Next(ctx, View{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseScript_YAML(t *testing.T) {
	data := []byte(`
- tool: list_services
- tool: call_operation
  args:
    service: KV
    operation: getValue
    input:
      namespace_id: nope
      key_name: k
- done: true
  reason: enough
`)
	actions, err := ParseScript(data)
	require.NoError(t, err)
	require.Len(t, actions, 3)

	assert.Equal(t, ToolListServices, actions[0].Tool)

	var args CallArgs
	require.NoError(t, actions[1].DecodeArgs(&args))
	assert.Equal(t, "getValue", args.Operation)
	assert.JSONEq(t, `{"namespace_id":"nope","key_name":"k"}`, string(args.Input))

	assert.True(t, actions[2].Done)
	assert.Equal(t, "enough", actions[2].Reason)
}

func TestParseScript_JSON(t *testing.T) {
	actions, err := ParseScript([]byte(`[{"tool":"list_operations","args":{"service":"R2"}}]`))
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, ToolListOperations, actions[0].Tool)
}

func TestParseScript_Errors(t *testing.T) {
	_, err := ParseScript([]byte(`- tool: rm_rf`))
	assert.ErrorIs(t, err, ErrInvalidAction)

	_, err = ParseScript([]byte(`tool: list_services`))
	assert.Error(t, err)
}

func TestLoadScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probe.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- tool: list_services\n"), 0o600))

	s, err := LoadScript(path)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())

	_, err = LoadScript(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
