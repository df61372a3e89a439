package pathtemplate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		vars     map[string]any
		expected string
	}{
		{
			name:     "single param",
			path:     "/accounts/{account_id}/workers/scripts",
			vars:     map[string]any{"account_id": "abc"},
			expected: "/accounts/abc/workers/scripts",
		},
		{
			name:     "multiple params",
			path:     "/accounts/{account_id}/storage/kv/namespaces/{namespace_id}/values/{key_name}",
			vars:     map[string]any{"account_id": "a", "namespace_id": "n", "key_name": "k"},
			expected: "/accounts/a/storage/kv/namespaces/n/values/k",
		},
		{
			name:     "escapes slashes",
			path:     "/values/{key_name}",
			vars:     map[string]any{"key_name": "a/b c"},
			expected: "/values/a%2Fb%20c",
		},
		{
			name:     "non-string value",
			path:     "/items/{id}",
			vars:     map[string]any{"id": 42},
			expected: "/items/42",
		},
		{
			name:     "no placeholders",
			path:     "/zones",
			vars:     nil,
			expected: "/zones",
		},
		{
			name:     "missing kept by default",
			path:     "/items/{id}",
			vars:     map[string]any{},
			expected: "/items/{id}",
		},
	}

	exp := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := exp.Expand(tt.path, tt.vars)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestExpand_MissingEmpty(t *testing.T) {
	exp := New(WithMissingAction(MissingEmpty))
	got, err := exp.Expand("/a/{x}/b", nil)
	require.NoError(t, err)
	assert.Equal(t, "/a//b", got)
}

func TestExpand_MissingError(t *testing.T) {
	exp := New(WithMissingAction(MissingError))

	_, err := exp.Expand("/a/{x}/b/{y}/c/{z}", map[string]any{"y": "1", "z": ""})
	require.Error(t, err)

	var missing *MissingParamsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"x", "z"}, missing.Names)
	assert.Equal(t, "missing path parameters: x, z", err.Error())
}

func TestParams(t *testing.T) {
	assert.Equal(t,
		[]string{"account_id", "namespace_id"},
		Params("/accounts/{account_id}/storage/kv/namespaces/{namespace_id}"),
	)
	assert.Empty(t, Params("/zones"))
}
