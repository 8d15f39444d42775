package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const personasYAML = `
personas:
  - name: Captain Reyes
    personality: Gruff starship captain
    age: 52
    gender: female
    fallback_provider: ollama
    fallback_model: llama3.1
  - name: Pip
    personality: Cheerful maintenance droid
    age: 3
    gender: none
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadPersonasFormats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    []string
	}{
		{name: "yaml mapping", file: "p.yaml", content: personasYAML, want: []string{"Captain Reyes", "Pip"}},
		{
			name: "yaml list",
			file: "p.yml",
			content: `- {name: Ada, personality: Precise, age: 36, gender: female}
- {name: Max, personality: Loud, age: 20, gender: male}`,
			want: []string{"Ada", "Max"},
		},
		{
			name:    "json list",
			file:    "p.json",
			content: `[{"name":"Ada","personality":"Precise","age":36,"gender":"female"}]`,
			want:    []string{"Ada"},
		},
		{
			name:    "json mapping",
			file:    "p.json",
			content: `{"personas":[{"name":"Max","personality":"Loud","age":20,"gender":"male"}]}`,
			want:    []string{"Max"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := LoadPersonas(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.want, store.Names())
		})
	}
}

func TestLoadPersonasFallbackFields(t *testing.T) {
	store, err := LoadPersonas(writeFile(t, "p.yaml", personasYAML))
	require.NoError(t, err)

	reyes, err := store.Get("captain reyes")
	require.NoError(t, err)
	assert.True(t, reyes.HasFallback())
	assert.Equal(t, "llama3.1", reyes.FallbackModel)

	pip, err := store.Get("Pip")
	require.NoError(t, err)
	assert.False(t, pip.HasFallback())
}

func TestLoadPersonasInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "not yaml", content: "personas: [unclosed"},
		{name: "missing key", content: "characters: []"},
		{name: "empty list", content: "personas: []"},
		{name: "missing personality", content: "- {name: Ada, age: 3, gender: f}"},
		{name: "bad age", content: "- {name: Ada, personality: x, age: 0, gender: f}"},
		{name: "half a fallback", content: "- {name: Ada, personality: x, age: 3, gender: f, fallback_model: m}"},
		{
			name: "duplicate names",
			content: `- {name: Ada, personality: x, age: 3, gender: f}
- {name: ada, personality: y, age: 4, gender: f}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadPersonas(writeFile(t, "p.yaml", tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadPersonasWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "personas.yaml")

	store, err := LoadPersonas(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bob"}, store.Names())
	assert.FileExists(t, path)

	reloaded, err := LoadPersonas(path)
	require.NoError(t, err)
	assert.Equal(t, store.All(), reloaded.All())
}

func TestPersonaGetSuggestions(t *testing.T) {
	store, err := LoadPersonas(writeFile(t, "p.yaml", personasYAML))
	require.NoError(t, err)

	_, err = store.Get("Reyes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did you mean Captain Reyes")

	_, err = store.Get("zzz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "available: Captain Reyes, Pip")
}
