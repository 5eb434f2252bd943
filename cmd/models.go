/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"strings"

	"github.com/longkey1/llmnote/internal/llmnote"
	"github.com/longkey1/llmnote/internal/llmnote/config"
	"github.com/longkey1/llmnote/internal/ollama"
	"github.com/spf13/cobra"
)

// modelsCmd represents the models command
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models available from the local ollama instance",
	Long: `List all models pulled into the configured ollama instance.
Fetches the model list directly from ollama's /api/tags endpoint.

Example:
  llmnote models`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		provider := ollama.NewProvider(cfg)
		provider.SetDebug(verbose)

		models, err := provider.ListModels(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list models: %w", err)
		}
		if len(models) == 0 {
			fmt.Println("No models found. Pull one with: ollama pull llama3.2")
			return nil
		}

		// Mark the configured default
		defaultModel, _ := cfg.GetModelName()
		for i := range models {
			id := models[i].ID
			if id == defaultModel || strings.TrimSuffix(id, ":latest") == defaultModel {
				models[i].IsDefault = true
			}
		}

		fmt.Printf("Available models for %s:\n\n", ollama.ProviderName)

		// Calculate column widths
		maxModelWidth := 15
		for _, model := range models {
			if n := len(llmnote.FormatModelString(ollama.ProviderName, model.ID)); n > maxModelWidth {
				maxModelWidth = n
			}
		}

		fmt.Printf("%-*s  %-10s  %s\n", maxModelWidth, "MODEL", "DEFAULT", "DESCRIPTION")
		fmt.Printf("%s  %s  %s\n",
			strings.Repeat("-", maxModelWidth),
			strings.Repeat("-", 10),
			strings.Repeat("-", 30))

		for _, model := range models {
			defaultMark := ""
			if model.IsDefault {
				defaultMark = "Yes"
			}
			fmt.Printf("%-*s  %-10s  %s\n",
				maxModelWidth,
				llmnote.FormatModelString(ollama.ProviderName, model.ID),
				defaultMark,
				model.Description)
		}

		fmt.Printf("\nUse a model with: llmnote chat --model <model> [message]\n")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
