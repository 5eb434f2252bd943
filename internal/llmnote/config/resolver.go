package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// expandEnvVar expands environment variable references in the given value
// Supports both $VAR and ${VAR} syntax for whole values
// If the environment variable is not set, returns empty string.
func expandEnvVar(value string) string {
	// Check if it's an environment variable reference
	if !strings.HasPrefix(value, "$") {
		return value
	}

	var envVarName string
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		envVarName = value[2 : len(value)-1]
	} else {
		envVarName = strings.TrimPrefix(value, "$")
	}

	return os.Getenv(envVarName)
}

// GetBaseURL returns the base URL for the specified provider
func (c *Config) GetBaseURL(provider string) (string, error) {
	var baseURLValue string
	switch provider {
	case "ollama":
		baseURLValue = c.OllamaBaseURL
	default:
		return "", fmt.Errorf("unsupported provider: %s", provider)
	}

	if baseURLValue == "" {
		return "", fmt.Errorf("%s base URL is not configured. Set it in config file (%s_base_url) or environment variable (LLMNOTE_%s_BASE_URL)", provider, provider, strings.ToUpper(provider))
	}

	return strings.TrimRight(baseURLValue, "/"), nil
}

// ResolvePath converts a relative path to absolute path if needed.
// Relative paths are resolved against the directory of configFile, or the
// current working directory when no config file is in use.
func ResolvePath(configFile, path string) (string, error) {
	if path == "" || filepath.IsAbs(path) {
		return path, nil
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("error getting user home directory: %v", err)
		}
		return filepath.Join(home, path[2:]), nil
	}

	if configFile == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("error getting current working directory: %v", err)
		}
		return filepath.Join(cwd, path), nil
	}

	configDir := filepath.Dir(configFile)
	if !filepath.IsAbs(configDir) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("error getting current working directory: %v", err)
		}
		configDir = filepath.Join(cwd, configDir)
	}

	return filepath.Join(configDir, path), nil
}
