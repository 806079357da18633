package migration

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMigration(t *testing.T) {
	t.Run("creates up and down files", func(t *testing.T) {
		dir := t.TempDir()
		mf, err := CreateMigration(dir, "Add Revision Index")
		require.NoError(t, err)

		assert.FileExists(t, mf.UpPath)
		assert.FileExists(t, mf.DownPath)
		assert.Contains(t, mf.UpPath, "add_revision_index.up.sql")
		assert.Contains(t, mf.DownPath, "add_revision_index.down.sql")

		content, err := os.ReadFile(mf.UpPath)
		require.NoError(t, err)
		assert.Contains(t, string(content), "Add Revision Index")
	})
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"Create Shards Table":   "create_shards_table",
		"add--revision__index":  "add_revision_index",
		"Trailing Space ":       "trailing_space",
		"MiXeD123":              "mixed123",
		"weird!@#chars$dropped": "weirdcharsdropped",
	}
	for input, want := range cases {
		assert.Equal(t, want, sanitizeName(input), "input %q", input)
	}
}
