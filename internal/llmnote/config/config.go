package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/longkey1/llmnote/internal/llmnote"
	"github.com/longkey1/llmnote/internal/llmnote/store"
	"github.com/spf13/viper"
)

// Config holds the configuration for llmnote
type Config struct {
	Model          string   `toml:"model" mapstructure:"model"` // Format: "provider:model" (e.g., "ollama:llama3.2")
	OllamaBaseURL  string   `toml:"ollama_base_url" mapstructure:"ollama_base_url"`
	PromptDirs     []string `toml:"prompt_dirs" mapstructure:"prompt_dirs"`
	UserID         string   `toml:"user_id" mapstructure:"user_id"`               // Owner of conversations created from this machine
	Storage        string   `toml:"storage" mapstructure:"storage"`               // "kv", "document" or "memory"
	DataDir        string   `toml:"data_dir" mapstructure:"data_dir"`             // Where the kv file and documents live
	MessageCap     int      `toml:"message_cap" mapstructure:"message_cap"`       // Max messages kept per conversation
	HistoryLimit   int      `toml:"history_limit" mapstructure:"history_limit"`   // Messages sent to the model as context (0 = all)
	RetentionDays  int      `toml:"retention_days" mapstructure:"retention_days"` // Default age for 'conversations clear'
	ServeAddr      string   `toml:"serve_addr" mapstructure:"serve_addr"`
	AllowedOrigins []string `toml:"allowed_origins" mapstructure:"allowed_origins"` // Browser origins that may call 'serve' (empty = none)
	LogLevel       string   `toml:"log_level" mapstructure:"log_level"`
	LogFormat      string   `toml:"log_format" mapstructure:"log_format"` // "console" or "json"
	LogFile        string   `toml:"log_file" mapstructure:"log_file"`     // Empty = stderr only
	LogMaxSizeMB   int      `toml:"log_max_size_mb" mapstructure:"log_max_size_mb"`
	LogMaxBackups  int      `toml:"log_max_backups" mapstructure:"log_max_backups"`
	LogMaxAgeDays  int      `toml:"log_max_age_days" mapstructure:"log_max_age_days"`
	LogNoConsole   bool     `toml:"log_no_console" mapstructure:"log_no_console"` // Only write to log_file
}

// GetModel returns the model string
func (c *Config) GetModel() string {
	return c.Model
}

// GetProvider extracts provider name from the model string
func (c *Config) GetProvider() (string, error) {
	provider, _, err := llmnote.ParseModelString(c.Model)
	return provider, err
}

// GetModelName extracts model name from the model string
func (c *Config) GetModelName() (string, error) {
	_, model, err := llmnote.ParseModelString(c.Model)
	return model, err
}

// StorageKind returns the validated storage backend kind
func (c *Config) StorageKind() (store.Kind, error) {
	return store.ParseKind(c.Storage)
}

// KVPath returns the bbolt file used by the kv storage backend
func (c *Config) KVPath() string {
	return filepath.Join(c.DataDir, "llmnote.db")
}

// DocumentDir returns the directory used by the document storage backend
func (c *Config) DocumentDir() string {
	return filepath.Join(c.DataDir, "documents")
}

// Validate checks values that cannot be fixed up silently
func (c *Config) Validate() error {
	if _, _, err := llmnote.ParseModelString(c.Model); err != nil {
		return err
	}
	if _, err := c.StorageKind(); err != nil {
		return err
	}
	if c.MessageCap < 0 {
		return fmt.Errorf("message_cap must not be negative (got %d)", c.MessageCap)
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("history_limit must not be negative (got %d)", c.HistoryLimit)
	}
	switch c.LogFormat {
	case "", "console", "json":
	default:
		return fmt.Errorf("log_format must be console or json (got %q)", c.LogFormat)
	}
	if c.LogMaxSizeMB < 0 || c.LogMaxBackups < 0 || c.LogMaxAgeDays < 0 {
		return fmt.Errorf("log rotation settings must not be negative")
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("retention_days must not be negative (got %d)", c.RetentionDays)
	}
	return nil
}

// NewDefaultConfig returns a new Config with default values
func NewDefaultConfig(configDir string) *Config {
	return &Config{
		Model:         "ollama:llama3.2",
		OllamaBaseURL: "http://localhost:11434",
		PromptDirs:    []string{filepath.Join(configDir, "prompts")},
		UserID:        "",
		Storage:       string(store.KindKV),
		DataDir:       filepath.Join(configDir, "data"),
		MessageCap:    200,
		HistoryLimit:  20,
		RetentionDays: 30,
		ServeAddr:     "127.0.0.1:8765",
		LogLevel:      "warn",
		LogFormat:     "console",
		LogFile:       "",
		LogMaxSizeMB:  20,
		LogMaxBackups: 3,
		LogMaxAgeDays: 28,
	}
}

// SetDefaults registers the defaults with viper
func SetDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("model", cfg.Model)
	v.SetDefault("ollama_base_url", cfg.OllamaBaseURL)
	v.SetDefault("prompt_dirs", cfg.PromptDirs)
	v.SetDefault("user_id", cfg.UserID)
	v.SetDefault("storage", cfg.Storage)
	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("message_cap", cfg.MessageCap)
	v.SetDefault("history_limit", cfg.HistoryLimit)
	v.SetDefault("retention_days", cfg.RetentionDays)
	v.SetDefault("serve_addr", cfg.ServeAddr)
	v.SetDefault("allowed_origins", cfg.AllowedOrigins)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("log_file", cfg.LogFile)
	v.SetDefault("log_max_size_mb", cfg.LogMaxSizeMB)
	v.SetDefault("log_max_backups", cfg.LogMaxBackups)
	v.SetDefault("log_max_age_days", cfg.LogMaxAgeDays)
	v.SetDefault("log_no_console", cfg.LogNoConsole)
}

// LoadConfig loads configuration from viper
func LoadConfig() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom loads configuration from the given viper instance
func LoadFrom(v *viper.Viper) (*Config, error) {
	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %v", err)
	}

	config.OllamaBaseURL = expandEnvVar(config.OllamaBaseURL)
	config.UserID = expandEnvVar(config.UserID)
	for i, origin := range config.AllowedOrigins {
		config.AllowedOrigins[i] = strings.TrimRight(expandEnvVar(origin), "/")
	}

	// Convert paths to absolute paths relative to the config file
	base := v.ConfigFileUsed()
	for i, promptDir := range config.PromptDirs {
		absPath, err := ResolvePath(base, expandEnvVar(promptDir))
		if err != nil {
			return nil, fmt.Errorf("error resolving prompt directory path '%s': %v", promptDir, err)
		}
		config.PromptDirs[i] = absPath
	}

	dataDir, err := ResolvePath(base, expandEnvVar(config.DataDir))
	if err != nil {
		return nil, fmt.Errorf("error resolving data directory path '%s': %v", config.DataDir, err)
	}
	config.DataDir = dataDir

	if config.LogFile != "" {
		logFile, err := ResolvePath(base, expandEnvVar(config.LogFile))
		if err != nil {
			return nil, fmt.Errorf("error resolving log file path '%s': %v", config.LogFile, err)
		}
		config.LogFile = logFile
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
