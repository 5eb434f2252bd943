// Package llmnote provides the core abstractions shared by the model clients
// and the CLI. It defines the Provider interface that every text-generation
// backend (currently ollama) implements.
package llmnote

import (
	"context"
	"fmt"
	"strings"
)

// Message is one turn sent to a model as conversation history.
type Message struct {
	Role    string `json:"role"`    // "system", "user" or "assistant"
	Content string `json:"content"` // Message content
}

// ModelInfo represents information about an available model from a provider.
type ModelInfo struct {
	ID          string // Model identifier (e.g., "llama3.2", "mistral:7b")
	Description string // Human-readable description of the model
	IsDefault   bool   // Whether this is the configured default model
}

// Provider defines the interface for text-generation backends.
//
// Example usage:
//
//	provider := ollama.NewProvider(cfg)
//	response, err := provider.Chat(ctx, "Hello, world!")
type Provider interface {
	// Chat sends a single message and returns the response.
	Chat(ctx context.Context, message string) (string, error)

	// ChatWithHistory sends a message with conversation history.
	// The systemPrompt is prepended to the conversation when not empty.
	// messages contains the earlier turns, oldest first.
	ChatWithHistory(ctx context.Context, systemPrompt string, messages []Message, newMessage string) (string, error)

	// SetDebug enables or disables debug output.
	SetDebug(enabled bool)

	// ListModels returns the models available from the provider.
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

// ParseModelString parses a model string in "provider:model" format.
// Returns (provider, model, error).
//
// Example:
//
//	provider, model, err := ParseModelString("ollama:llama3.2")
//	// provider = "ollama", model = "llama3.2"
func ParseModelString(modelStr string) (string, string, error) {
	parts := strings.SplitN(modelStr, ":", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid model format: %s (expected format: provider:model, e.g., ollama:llama3.2)", modelStr)
	}

	provider := strings.TrimSpace(parts[0])
	model := strings.TrimSpace(parts[1])

	if provider == "" || model == "" {
		return "", "", fmt.Errorf("provider and model cannot be empty")
	}

	return provider, model, nil
}

// FormatModelString formats provider and model into "provider:model" format.
func FormatModelString(provider, model string) string {
	return fmt.Sprintf("%s:%s", provider, model)
}
