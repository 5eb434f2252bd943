package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemplate(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestBuildPlainInput(t *testing.T) {
	built, err := Build(Request{Input: "hello"}, nil)
	require.NoError(t, err)
	assert.Equal(t, Built{User: "hello"}, built)
}

func TestBuildTemplate(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "translate.toml", `
system = "Translate into {{lang}}."
user = "Text: {{input}}"
model = "ollama:qwen2.5"
`)

	built, err := Build(Request{
		Input:    "good morning",
		TaskType: "translate",
		Options:  map[string]string{"lang": "French"},
	}, []string{dir})
	require.NoError(t, err)

	assert.Equal(t, "Translate into French.", built.System)
	assert.Equal(t, "Text: good morning", built.User)
	assert.Equal(t, "ollama:qwen2.5", built.Model)
}

func TestBuildLaterDirectoryWins(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	writeTemplate(t, first, "summary.toml", `user = "first {{input}}"`)
	writeTemplate(t, second, "summary.toml", `user = "second {{input}}"`)

	built, err := Build(Request{Input: "x", TaskType: "summary.toml"}, []string{first, second})
	require.NoError(t, err)
	assert.Equal(t, "second x", built.User)
}

func TestBuildErrors(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "badmodel.toml", `
user = "{{input}}"
model = "llama3.2"
`)
	writeTemplate(t, dir, "broken.toml", `user = `)

	_, err := Build(Request{Input: "x", TaskType: "missing"}, []string{dir})
	assert.Error(t, err)

	_, err = Build(Request{Input: "x", TaskType: "badmodel"}, []string{dir})
	assert.Error(t, err)

	_, err = Build(Request{Input: "x", TaskType: "broken"}, []string{dir})
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	writeTemplate(t, first, "a.toml", `user = "a"`)
	writeTemplate(t, first, "notes.txt", `ignored`)
	writeTemplate(t, second, "a.toml", `user = "a2"`)
	writeTemplate(t, second, "code/review.toml", `user = "r"`)

	names, err := List([]string{first, second, filepath.Join(first, "missing")})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "code/review"}, names)
}

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    map[string]string
		wantErr bool
	}{
		{
			name: "simple",
			args: []string{"lang:French", "tone: formal "},
			want: map[string]string{"lang": "French", "tone": "formal"},
		},
		{
			name: "quoted with escapes",
			args: []string{`"url:http\://example.com"`},
			want: map[string]string{"url": "http://example.com"},
		},
		{
			name: "value keeps later colons",
			args: []string{"time:10:30"},
			want: map[string]string{"time": "10:30"},
		},
		{name: "missing colon", args: []string{"lang"}, wantErr: true},
		{name: "empty key", args: []string{":value"}, wantErr: true},
		{name: "reserved input", args: []string{"input:x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOptions(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
