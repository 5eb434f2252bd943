package cmd

import (
	"fmt"

	"github.com/longkey1/llmnote/internal/llmnote"
	"github.com/longkey1/llmnote/internal/llmnote/config"
	"github.com/longkey1/llmnote/internal/ollama"
)

// newProvider creates a new provider instance based on the configuration
func newProvider(cfg *config.Config) (llmnote.Provider, error) {
	provider, err := cfg.GetProvider()
	if err != nil {
		return nil, err
	}

	switch provider {
	case ollama.ProviderName:
		p := ollama.NewProvider(cfg)
		p.SetDebug(verbose)
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}
