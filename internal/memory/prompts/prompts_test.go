package prompts

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)

	fact, err := s.FactExtraction(time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Contains(t, fact, "2025-03-09")
	assert.Contains(t, fact, `{"facts"`)

	upd, err := s.UpdateMemory(`[{"id":"0","text":"Likes tea"}]`, `["Likes green tea"]`)
	require.NoError(t, err)
	assert.Contains(t, upd, `"text":"Likes tea"`)
	assert.Contains(t, upd, `["Likes green tea"]`)
	assert.Contains(t, upd, `{"memory"`)
}

func TestLoad_YAMLOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fact_extraction: |\n  Custom extraction for {{.Today}}.\n"), 0o600))

	s, err := Load(path)
	require.NoError(t, err)

	fact, err := s.FactExtraction(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "Custom extraction for 2024-01-02.\n", fact)

	upd, err := s.UpdateMemory("[]", "[]")
	require.NoError(t, err)
	assert.Contains(t, upd, "ADD", "update prompt keeps its default")
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("update_memory: \"{{.Broken\"\n"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)
}
