package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longkey1/llmnote/internal/llmnote/store"
)

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.toml")
	content := `
model = "ollama:qwen2.5"
ollama_base_url = "$LLMNOTE_TEST_OLLAMA"
prompt_dirs = ["prompts", "/abs/prompts"]
storage = "document"
data_dir = "state"
message_cap = 10
allowed_origins = ["http://localhost:3000/", "$LLMNOTE_TEST_ORIGIN"]
log_format = "json"
log_file = "logs/llmnote.log"
log_max_backups = 7
log_no_console = true
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0o644))
	t.Setenv("LLMNOTE_TEST_OLLAMA", "http://ollama.local:11434")
	t.Setenv("LLMNOTE_TEST_ORIGIN", "https://notes.example")

	v := viper.New()
	SetDefaults(v, NewDefaultConfig(dir))
	v.SetConfigFile(configFile)
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, "ollama:qwen2.5", cfg.Model)
	assert.Equal(t, "http://ollama.local:11434", cfg.OllamaBaseURL)
	assert.Equal(t, []string{filepath.Join(dir, "prompts"), "/abs/prompts"}, cfg.PromptDirs)
	assert.Equal(t, filepath.Join(dir, "state"), cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, "state", "documents"), cfg.DocumentDir())
	assert.Equal(t, filepath.Join(dir, "logs", "llmnote.log"), cfg.LogFile)
	assert.Equal(t, 10, cfg.MessageCap)
	assert.Equal(t, 20, cfg.HistoryLimit)
	assert.Equal(t, []string{"http://localhost:3000", "https://notes.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 20, cfg.LogMaxSizeMB)
	assert.Equal(t, 7, cfg.LogMaxBackups)
	assert.Equal(t, 28, cfg.LogMaxAgeDays)
	assert.True(t, cfg.LogNoConsole)

	kind, err := cfg.StorageKind()
	require.NoError(t, err)
	assert.Equal(t, store.KindDocument, kind)

	provider, err := cfg.GetProvider()
	require.NoError(t, err)
	assert.Equal(t, "ollama", provider)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "bad model", mutate: func(c *Config) { c.Model = "llama" }, wantErr: true},
		{name: "bad storage", mutate: func(c *Config) { c.Storage = "sqlite" }, wantErr: true},
		{name: "negative cap", mutate: func(c *Config) { c.MessageCap = -1 }, wantErr: true},
		{name: "negative history", mutate: func(c *Config) { c.HistoryLimit = -5 }, wantErr: true},
		{name: "zero cap allowed", mutate: func(c *Config) { c.MessageCap = 0 }},
		{name: "bad log format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: true},
		{name: "negative log backups", mutate: func(c *Config) { c.LogMaxBackups = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig(t.TempDir())
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDefaultsAllowNoOrigins(t *testing.T) {
	v := viper.New()
	SetDefaults(v, NewDefaultConfig(t.TempDir()))

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Empty(t, cfg.AllowedOrigins)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.False(t, cfg.LogNoConsole)
}

func TestGetBaseURL(t *testing.T) {
	cfg := NewDefaultConfig(t.TempDir())
	cfg.OllamaBaseURL = "http://localhost:11434/"

	url, err := cfg.GetBaseURL("ollama")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:11434", url)

	_, err = cfg.GetBaseURL("openai")
	assert.Error(t, err)

	cfg.OllamaBaseURL = ""
	_, err = cfg.GetBaseURL("ollama")
	assert.Error(t, err)
}

func TestExpandEnvVar(t *testing.T) {
	t.Setenv("LLMNOTE_TEST_VALUE", "expanded")

	assert.Equal(t, "plain", expandEnvVar("plain"))
	assert.Equal(t, "expanded", expandEnvVar("$LLMNOTE_TEST_VALUE"))
	assert.Equal(t, "expanded", expandEnvVar("${LLMNOTE_TEST_VALUE}"))
	assert.Equal(t, "", expandEnvVar("$LLMNOTE_TEST_UNSET_VALUE"))
}
