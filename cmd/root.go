/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/longkey1/llmnote/internal/llmnote/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "llmnote",
	Short: "A CLI notebook for conversations with local LLMs",
	Long: `llmnote is a command-line tool for chatting with models served by ollama.
Conversations are kept in a local store with a per-conversation message cap,
so the oldest turns slide out as new ones arrive.
You can configure the tool using a TOML configuration file.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/llmnote/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// userConfigDir returns $HOME/.config/llmnote
func userConfigDir() string {
	home, err := os.UserHomeDir()
	cobra.CheckErr(err)
	return filepath.Join(home, ".config", "llmnote")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// Set environment variable prefix and automatic env
	viper.SetEnvPrefix("LLMNOTE")
	viper.AutomaticEnv()

	configDir := userConfigDir()

	// Note: Later directories in the array take precedence over earlier ones
	defaultPromptDirs := []string{
		"/usr/share/llmnote/prompts",
		"/usr/local/share/llmnote/prompts",
		filepath.Join(configDir, "prompts"),
	}
	defaultConfig := config.NewDefaultConfig(configDir)
	defaultConfig.PromptDirs = defaultPromptDirs
	config.SetDefaults(viper.GetViper(), defaultConfig)

	// Bind environment variables
	viper.BindEnv("ollama_base_url", "LLMNOTE_OLLAMA_BASE_URL", "OLLAMA_HOST")
	viper.BindEnv("message_cap", "LLMNOTE_MESSAGE_CAP")
	viper.BindEnv("storage", "LLMNOTE_STORAGE")
	viper.BindEnv("data_dir", "LLMNOTE_DATA_DIR")

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
	} else {
		// Load system-wide config first (lower priority)
		systemConfigLoaded := false
		for _, path := range []string{"/etc/llmnote", "/usr/local/etc/llmnote"} {
			viper.AddConfigPath(path)
		}
		viper.SetConfigType("toml")
		viper.SetConfigName("config")

		if err := viper.ReadInConfig(); err == nil {
			systemConfigLoaded = true
			if verbose {
				fmt.Fprintln(os.Stderr, "Loaded system-wide config:", viper.ConfigFileUsed())
			}
		}

		// Load user config (higher priority) - merge with system config
		viper.AddConfigPath(configDir)
		if systemConfigLoaded {
			if err := viper.MergeInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
					fmt.Fprintf(os.Stderr, "Error merging user config file: %v\n", err)
				}
			} else if verbose {
				fmt.Fprintln(os.Stderr, "Merged user config:", viper.ConfigFileUsed())
			}
		} else {
			if err := viper.ReadInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
					fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
				}
			}
		}
	}

	if verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		fmt.Fprintln(os.Stderr, "Environment variables:")
		fmt.Fprintln(os.Stderr, "  LLMNOTE_MODEL:", viper.GetString("model"))
		fmt.Fprintln(os.Stderr, "  LLMNOTE_OLLAMA_BASE_URL:", viper.GetString("ollama_base_url"))
		fmt.Fprintln(os.Stderr, "  LLMNOTE_STORAGE:", viper.GetString("storage"))
		fmt.Fprintln(os.Stderr, "  LLMNOTE_DATA_DIR:", viper.GetString("data_dir"))
		fmt.Fprintln(os.Stderr, "  LLMNOTE_PROMPT_DIRS:", viper.GetStringSlice("prompt_dirs"))
	}
}
