package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/longkey1/llmnote/internal/llmnote"
)

const (
	ProviderName   = "ollama"
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.2"
)

// ChatRequest represents the request body for Ollama's /api/chat endpoint
type ChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// ChatMessage represents one message in a chat request or response
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse represents the non-streaming response from /api/chat
type ChatResponse struct {
	Model   string      `json:"model"`
	Message ChatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error,omitempty"`
}

// TagsResponse represents the response from /api/tags
type TagsResponse struct {
	Models []TagModel `json:"models"`
}

// TagModel represents a locally available model
type TagModel struct {
	Name    string     `json:"name"`
	Size    int64      `json:"size"`
	Details TagDetails `json:"details"`
}

// TagDetails carries the model family information reported by Ollama
type TagDetails struct {
	Family            string `json:"family"`
	ParameterSize     string `json:"parameter_size"`
	QuantizationLevel string `json:"quantization_level"`
}

// Config defines the configuration interface for the Ollama provider
type Config interface {
	GetModelName() (string, error)
	GetBaseURL(provider string) (string, error)
}

// Provider implements the llmnote.Provider interface for Ollama
type Provider struct {
	config Config
	client *http.Client
	debug  bool
}

// NewProvider creates a new Ollama provider instance
func NewProvider(config Config) *Provider {
	return &Provider{
		config: config,
		client: &http.Client{Timeout: 5 * time.Minute},
		debug:  false,
	}
}

// SetDebug enables or disables debug mode
func (p *Provider) SetDebug(enabled bool) {
	p.debug = enabled
}

// Chat sends a single message and returns the response
func (p *Provider) Chat(ctx context.Context, message string) (string, error) {
	return p.ChatWithHistory(ctx, "", nil, message)
}

// ChatWithHistory sends a message along with earlier turns
func (p *Provider) ChatWithHistory(ctx context.Context, systemPrompt string, history []llmnote.Message, newMessage string) (string, error) {
	model, err := p.config.GetModelName()
	if err != nil {
		return "", err
	}

	messages := make([]ChatMessage, 0, len(history)+2)
	if systemPrompt != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: systemPrompt})
	}
	for _, msg := range history {
		messages = append(messages, ChatMessage{Role: msg.Role, Content: msg.Content})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: newMessage})

	jsonData, err := json.Marshal(ChatRequest{Model: model, Messages: messages, Stream: false})
	if err != nil {
		return "", fmt.Errorf("error marshaling request: %v", err)
	}

	body, err := p.do(ctx, http.MethodPost, "/api/chat", jsonData)
	if err != nil {
		return "", err
	}

	var result ChatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		if p.debug {
			return "", fmt.Errorf("failed to parse API response: %v\nRaw response: %s", err, string(body))
		}
		return "", fmt.Errorf("failed to parse API response. Use --verbose for details")
	}
	if result.Error != "" {
		return "", fmt.Errorf("API error: %s", result.Error)
	}
	if result.Message.Content == "" {
		return "", fmt.Errorf("no content in response")
	}

	return result.Message.Content, nil
}

// ListModels returns the models pulled into the local Ollama instance
func (p *Provider) ListModels(ctx context.Context) ([]llmnote.ModelInfo, error) {
	body, err := p.do(ctx, http.MethodGet, "/api/tags", nil)
	if err != nil {
		return nil, err
	}

	var result TagsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		if p.debug {
			return nil, fmt.Errorf("failed to parse API response: %v\nRaw response: %s", err, string(body))
		}
		return nil, fmt.Errorf("failed to parse API response. Use --verbose for details")
	}

	models := make([]llmnote.ModelInfo, 0, len(result.Models))
	for _, model := range result.Models {
		models = append(models, llmnote.ModelInfo{
			ID:          model.Name,
			Description: describe(model.Details),
			IsDefault:   false, // Set by caller
		})
	}

	sort.Slice(models, func(i, j int) bool {
		return models[i].ID < models[j].ID
	})

	return models, nil
}

// do sends a request to the Ollama API and returns the raw body of a 200 response
func (p *Provider) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	baseURL, err := p.config.GetBaseURL(ProviderName)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if p.debug {
			return nil, fmt.Errorf("failed to connect to API: %v", err)
		}
		return nil, fmt.Errorf("failed to connect to API at %s. Is ollama running? Use --verbose for details", baseURL)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		if p.debug {
			return nil, fmt.Errorf("API request failed (HTTP %d): %s", resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("API request failed (HTTP %d). Use --verbose for details", resp.StatusCode)
	}

	return body, nil
}

func describe(d TagDetails) string {
	parts := make([]string, 0, 3)
	for _, s := range []string{d.Family, d.ParameterSize, d.QuantizationLevel} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
