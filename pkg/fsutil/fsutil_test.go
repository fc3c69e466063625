package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOwner(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected *Owner
		wantErr  bool
	}{
		{name: "empty", input: "", expected: nil},
		{name: "valid", input: "1000:1000", expected: &Owner{UID: 1000, GID: 1000}},
		{name: "missing gid", input: "1000", wantErr: true},
		{name: "too many parts", input: "1:2:3", wantErr: true},
		{name: "non numeric uid", input: "root:0", wantErr: true},
		{name: "non numeric gid", input: "0:wheel", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, err := ParseOwner(tt.input)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, owner)
		})
	}
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "report.json")

	require.NoError(t, WriteJSON(path, map[string]int{"total_requests": 4}, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"total_requests\": 4\n}\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file should not remain")
}

func TestCreate_Truncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "unit.log")

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("previous run output"), 0o644))

	f, err := Create(path, nil)
	require.NoError(t, err)

	_, err = f.WriteString("new")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}
