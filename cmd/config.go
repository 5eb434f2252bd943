package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/longkey1/llmnote/internal/llmnote/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const configFields = "configfile, model, ollama_base_url, promptdirs, user_id, storage, data_dir, message_cap, history_limit, retention_days, serve_addr, allowed_origins, log_level, log_format, log_file, log_max_size_mb, log_max_backups, log_max_age_days, log_no_console"

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config [field]",
	Short: "Display current configuration",
	Long: `Display the current configuration values.
This command shows all configuration values loaded from the config file and environment variables.

If a field name is specified, only that field's value is displayed.
Available fields: ` + configFields + `

Examples:
  llmnote config                  # Show all configuration
  llmnote config model            # Show only model
  llmnote config storage          # Show only the storage backend
  llmnote config message_cap      # Show only the per-conversation message cap`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		// If a field is specified, show only that field
		if len(args) > 0 {
			field := strings.ToLower(args[0])
			switch field {
			case "configfile":
				fmt.Println(viper.ConfigFileUsed())
			case "model":
				fmt.Println(cfg.Model)
			case "ollama_base_url", "ollamabaseurl":
				fmt.Println(cfg.OllamaBaseURL)
			case "promptdirs", "prompt_dirs":
				fmt.Println(strings.Join(cfg.PromptDirs, ","))
			case "user_id", "userid":
				fmt.Println(cfg.UserID)
			case "storage":
				fmt.Println(cfg.Storage)
			case "data_dir", "datadir":
				fmt.Println(cfg.DataDir)
			case "message_cap", "messagecap":
				fmt.Println(cfg.MessageCap)
			case "history_limit", "historylimit":
				fmt.Println(cfg.HistoryLimit)
			case "retention_days", "retentiondays":
				fmt.Println(cfg.RetentionDays)
			case "serve_addr", "serveaddr":
				fmt.Println(cfg.ServeAddr)
			case "allowed_origins", "allowedorigins":
				fmt.Println(strings.Join(cfg.AllowedOrigins, ","))
			case "log_level", "loglevel":
				fmt.Println(cfg.LogLevel)
			case "log_format", "logformat":
				fmt.Println(cfg.LogFormat)
			case "log_file", "logfile":
				fmt.Println(cfg.LogFile)
			case "log_max_size_mb":
				fmt.Println(cfg.LogMaxSizeMB)
			case "log_max_backups":
				fmt.Println(cfg.LogMaxBackups)
			case "log_max_age_days":
				fmt.Println(cfg.LogMaxAgeDays)
			case "log_no_console":
				fmt.Println(cfg.LogNoConsole)
			default:
				fmt.Fprintf(os.Stderr, "Unknown field: %s\n", args[0])
				fmt.Fprintf(os.Stderr, "Available fields: %s\n", configFields)
				os.Exit(1)
			}
			return
		}

		// Display all configuration values
		fmt.Printf("ConfigFile: %s\n", viper.ConfigFileUsed())
		fmt.Printf("Model: %s\n", cfg.Model)
		fmt.Printf("OllamaBaseURL: %s\n", cfg.OllamaBaseURL)
		fmt.Printf("PromptDirectories: %s\n", strings.Join(cfg.PromptDirs, ","))
		fmt.Printf("UserID: %s\n", cfg.UserID)
		fmt.Printf("Storage: %s\n", cfg.Storage)
		fmt.Printf("DataDir: %s\n", cfg.DataDir)
		fmt.Printf("MessageCap: %d\n", cfg.MessageCap)
		fmt.Printf("HistoryLimit: %d\n", cfg.HistoryLimit)
		fmt.Printf("RetentionDays: %d\n", cfg.RetentionDays)
		fmt.Printf("ServeAddr: %s\n", cfg.ServeAddr)
		fmt.Printf("AllowedOrigins: %s\n", strings.Join(cfg.AllowedOrigins, ","))
		fmt.Printf("LogLevel: %s\n", cfg.LogLevel)
		fmt.Printf("LogFormat: %s\n", cfg.LogFormat)
		fmt.Printf("LogFile: %s\n", cfg.LogFile)
		fmt.Printf("LogRotation: %dMB x %d, %d days\n", cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays)
		fmt.Printf("LogNoConsole: %t\n", cfg.LogNoConsole)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
