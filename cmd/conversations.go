package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/longkey1/llmnote/internal/llmnote/config"
	"github.com/longkey1/llmnote/internal/llmnote/conversation"
	"github.com/longkey1/llmnote/internal/llmnote/prompt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// conversationsCmd represents the conversations command
var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"conv"},
	Short:   "Manage stored conversations",
	Long: `Manage stored conversations including listing, viewing, renaming and deleting them.

Each conversation keeps at most message_cap messages; older ones are dropped as new turns arrive.`,
}

// withStore loads the configuration and runs fn against an open store.
func withStore(ctx context.Context, fn func(cfg *config.Config, svc *conversation.Service, logger *zap.Logger) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	svc, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore(svc)

	return fn(cfg, svc, logger)
}

func findConversation(cfg *config.Config, svc *conversation.Service, ref string) (conversation.Summary, error) {
	found, err := conversation.FindByPrefix(svc.ListConversationsByUser(currentUser(cfg)), ref)
	if err != nil {
		return conversation.Summary{}, fmt.Errorf("finding conversation: %w", err)
	}
	return found, nil
}

// confirm asks a yes/no question on stdout and reads the answer from stdin
func confirm(question string) bool {
	fmt.Printf("%s [y/N]: ", question)
	var response string
	fmt.Scanln(&response)
	return response == "y" || response == "Y"
}

// conversationsListCmd represents the conversations list command
var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all conversations",
	Long:  `List all conversations sorted by most recently updated.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(cfg *config.Config, svc *conversation.Service, _ *zap.Logger) error {
			list := svc.ListConversationsByUser(currentUser(cfg))
			if len(list) == 0 {
				fmt.Println("No conversations found.")
				fmt.Println("\nCreate a new conversation with:")
				fmt.Println("  llmnote chat --new \"your message\"")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUPDATED\tMESSAGES\tTASK\tTITLE")
			fmt.Fprintln(w, "--\t-------\t--------\t----\t-----")
			for _, c := range list {
				task := c.PresetRef
				if task == "" {
					task = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
					conversation.ShortID(c.ID),
					c.UpdatedAt.Format("2006-01-02 15:04"),
					c.MessageCount,
					task,
					c.DisplayTitle(),
				)
			}
			w.Flush()

			fmt.Println("\nUse 'llmnote conversations show <id>' to view conversation details.")
			return nil
		})
	},
}

// conversationsShowCmd represents the conversations show command
var conversationsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show conversation details and history",
	Long: `Show detailed information about a conversation including its stored messages.

The ID can be a short ID (minimum 4 characters), full ID, or "latest" for the most recent conversation.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withStore(cmd.Context(), func(cfg *config.Config, svc *conversation.Service, _ *zap.Logger) error {
			found, err := findConversation(cfg, svc, args[0])
			if err != nil {
				return err
			}
			detail := svc.GetConversation(found.ID, limit)

			fmt.Printf("Conversation: %s\n", detail.ID)
			fmt.Printf("Title: %s\n", detail.DisplayTitle())
			if detail.PresetRef != "" {
				fmt.Printf("Task: %s\n", detail.PresetRef)
			}
			fmt.Printf("Created: %s\n", detail.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Printf("Updated: %s\n", detail.UpdatedAt.Format("2006-01-02 15:04:05"))
			fmt.Printf("Messages: %d\n", found.MessageCount)
			fmt.Println()

			if len(detail.Messages) == 0 {
				fmt.Println("No messages in this conversation.")
				return nil
			}

			fmt.Println("Message History:")
			fmt.Println("----------------")
			for i, msg := range detail.Messages {
				roleLabel := "You"
				switch msg.Role {
				case conversation.RoleAssistant:
					roleLabel = "Assistant"
				case conversation.RoleSystem:
					roleLabel = "System"
				}
				fmt.Printf("\n[%d] %s (%s):\n%s\n",
					i+1,
					roleLabel,
					msg.CreatedAt.Format("2006-01-02 15:04:05"),
					msg.Content,
				)
			}

			fmt.Printf("\nContinue this conversation with:\n  llmnote chat -c %s \"your message\"\n", conversation.ShortID(detail.ID))
			return nil
		})
	},
}

// conversationsRenameCmd represents the conversations rename command
var conversationsRenameCmd = &cobra.Command{
	Use:   "rename <id> <title>",
	Short: "Rename a conversation",
	Long: `Change the title of a conversation.

The ID can be a short ID (minimum 4 characters), full ID, or "latest" for the most recent conversation.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		newTitle := args[1]
		return withStore(cmd.Context(), func(cfg *config.Config, svc *conversation.Service, _ *zap.Logger) error {
			found, err := findConversation(cfg, svc, args[0])
			if err != nil {
				return err
			}

			_, ok, err := svc.UpdateConversationMetadata(cmd.Context(), found.ID, conversation.Patch{Title: &newTitle})
			if err != nil {
				return fmt.Errorf("renaming conversation: %w", err)
			}
			if !ok {
				return fmt.Errorf("conversation not found: %s", found.ID)
			}

			fmt.Printf("Conversation %s renamed to \"%s\".\n", conversation.ShortID(found.ID), newTitle)
			return nil
		})
	},
}

// conversationsDeleteCmd represents the conversations delete command
var conversationsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a conversation",
	Long: `Delete a conversation and all of its messages permanently.

The ID can be a short ID (minimum 4 characters), full ID, or "latest" for the most recent conversation.

Warning: This action cannot be undone.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("yes")
		return withStore(cmd.Context(), func(cfg *config.Config, svc *conversation.Service, _ *zap.Logger) error {
			found, err := findConversation(cfg, svc, args[0])
			if err != nil {
				return err
			}

			if !force && !confirm(fmt.Sprintf("Are you sure you want to delete conversation %s?", conversation.ShortID(found.ID))) {
				fmt.Println("Deletion cancelled.")
				return nil
			}

			deleted, err := svc.DeleteConversation(cmd.Context(), found.ID)
			if err != nil {
				return fmt.Errorf("deleting conversation: %w", err)
			}
			if !deleted {
				return fmt.Errorf("conversation not found: %s", found.ID)
			}

			fmt.Printf("Conversation %s deleted successfully.\n", conversation.ShortID(found.ID))
			return nil
		})
	},
}

// conversationsClearCmd represents the conversations clear command
var conversationsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete old conversations",
	Long: `Delete old conversations permanently.

By default, deletes conversations not updated for retention_days (30 by default).
Use --before to specify a date, or --all to delete all conversations.

Warning: This action cannot be undone.

Examples:
  llmnote conversations clear                      # Delete conversations idle for retention_days
  llmnote conversations clear --before 2024-01-01  # Delete conversations last updated before 2024-01-01
  llmnote conversations clear --before 2024-12     # Delete conversations last updated before 2024-12-01
  llmnote conversations clear --all                # Delete all conversations`,
	RunE: func(cmd *cobra.Command, args []string) error {
		beforeDateStr, _ := cmd.Flags().GetString("before")
		deleteAll, _ := cmd.Flags().GetBool("all")
		force, _ := cmd.Flags().GetBool("yes")

		return withStore(cmd.Context(), func(cfg *config.Config, svc *conversation.Service, _ *zap.Logger) error {
			list := svc.ListConversationsByUser(currentUser(cfg))
			if len(list) == 0 {
				fmt.Println("No conversations to delete.")
				return nil
			}

			var beforeDate time.Time
			if !deleteAll {
				if beforeDateStr != "" {
					var err error
					beforeDate, err = parseDate(beforeDateStr)
					if err != nil {
						return fmt.Errorf("parsing date: %w", err)
					}
				} else {
					beforeDate = time.Now().AddDate(0, 0, -cfg.RetentionDays)
				}
			}

			ids := selectForClear(list, deleteAll, beforeDate)
			if len(ids) == 0 {
				fmt.Printf("No conversations found updated before %s.\n", beforeDate.Format("2006-01-02"))
				return nil
			}

			var question string
			switch {
			case deleteAll:
				question = fmt.Sprintf("Are you sure you want to delete all %d conversations?", len(ids))
			case beforeDateStr != "":
				question = fmt.Sprintf("Are you sure you want to delete %d conversations last updated before %s?",
					len(ids), beforeDate.Format("2006-01-02"))
			default:
				question = fmt.Sprintf("Are you sure you want to delete %d conversations idle for more than %d days (last updated before %s)?",
					len(ids), cfg.RetentionDays, beforeDate.Format("2006-01-02"))
			}
			if !force && !confirm(question) {
				fmt.Println("Deletion cancelled.")
				return nil
			}

			report, err := svc.DeleteConversations(cmd.Context(), ids)
			for _, id := range report.Failed {
				fmt.Fprintf(os.Stderr, "Warning: failed to delete conversation %s\n", conversation.ShortID(id))
			}
			if err != nil && verbose {
				fmt.Fprintf(os.Stderr, "%v\n", err)
			}

			fmt.Printf("Successfully deleted %d conversations", len(report.Deleted))
			if len(report.Failed) > 0 {
				fmt.Printf(" (%d failed)", len(report.Failed))
			}
			fmt.Println(".")
			return nil
		})
	},
}

// selectForClear returns the ids to delete: all of them, or those last
// updated before the cutoff.
func selectForClear(list []conversation.Summary, all bool, before time.Time) []string {
	ids := make([]string, 0, len(list))
	for _, c := range list {
		if all || c.UpdatedAt.Before(before) {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// parseDate parses a date string in various formats and returns a time.Time
// Supported formats: YYYY-MM-DD, YYYY-MM, YYYY
func parseDate(dateStr string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.ParseInLocation(layout, dateStr, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date format: %s (use YYYY-MM-DD, YYYY-MM, or YYYY)", dateStr)
}

// conversationsStartCmd represents the conversations start command
var conversationsStartCmd = &cobra.Command{
	Use:   "start [conversation-id]",
	Short: "Start an interactive conversation",
	Long: `Start an interactive chat with continuous conversation.

You can either start a new conversation or continue an existing one by providing its ID.
The ID can be a short ID (minimum 4 characters), full ID, or "latest" for the most recent conversation.

Examples:
  llmnote conversations start             # Start a new interactive conversation
  llmnote conversations start k3j9x0p2    # Continue conversation k3j9x0p2 in interactive mode
  llmnote conversations start latest      # Continue the latest conversation in interactive mode`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		startTask, _ := cmd.Flags().GetString("task")
		startTitle, _ := cmd.Flags().GetString("title")

		return withStore(cmd.Context(), func(cfg *config.Config, svc *conversation.Service, logger *zap.Logger) error {
			var conv conversation.Conversation
			if len(args) > 0 {
				found, err := findConversation(cfg, svc, args[0])
				if err != nil {
					return err
				}
				conv = found.Conversation
			} else {
				created, err := svc.CreateConversation(cmd.Context(), conversation.CreateParams{
					Title:     startTitle,
					UserID:    currentUser(cfg),
					PresetRef: startTask,
				})
				if err != nil {
					return fmt.Errorf("creating conversation: %w", err)
				}
				conv = created
				fmt.Fprintf(os.Stderr, "Conversation created: %s\n", conversation.ShortID(conv.ID))
			}

			if err := applyTaskModel(cmd, cfg, conv.PresetRef); err != nil {
				return err
			}
			llmProvider, err := newProvider(cfg)
			if err != nil {
				return fmt.Errorf("creating provider: %w", err)
			}

			session := &interactiveSession{
				cfg:  cfg,
				conv: conv,
				svc:  svc,
				turn: &turnRunner{
					store:        svc,
					provider:     llmProvider,
					logger:       logger,
					historyLimit: cfg.HistoryLimit,
					messageCap:   cfg.MessageCap,
				},
			}
			if err := session.run(cmd.Context()); err != nil {
				return fmt.Errorf("interactive mode: %w", err)
			}
			return nil
		})
	},
}

// applyTaskModel resolves the model for a conversation whose task template may
// pin one, with the same priority as chat.
func applyTaskModel(cmd *cobra.Command, cfg *config.Config, task string) error {
	built, err := prompt.Build(prompt.Request{TaskType: task}, cfg.PromptDirs)
	if err != nil {
		return fmt.Errorf("loading task %q: %w", task, err)
	}
	return applyModel(cmd, cfg, built.Model)
}

type interactiveSession struct {
	cfg  *config.Config
	conv conversation.Conversation
	svc  *conversation.Service
	turn *turnRunner
}

// run starts the interactive read-eval loop
func (s *interactiveSession) run(ctx context.Context) error {
	fmt.Fprintf(os.Stderr, "\n=== Interactive Conversation [%s] ===\n", conversation.ShortID(s.conv.ID))
	fmt.Fprintf(os.Stderr, "Model: %s\n", s.cfg.Model)
	fmt.Fprintf(os.Stderr, "Title: %s\n", s.conv.DisplayTitle())
	if s.conv.PresetRef != "" {
		fmt.Fprintf(os.Stderr, "Task: %s\n", s.conv.PresetRef)
	}
	fmt.Fprintf(os.Stderr, "Type '/help' for commands, '/exit' or 'Ctrl+D' to quit\n")
	fmt.Fprintf(os.Stderr, "========================================\n\n")

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Fprint(os.Stderr, "You> ")

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("input error: %w", err)
			}
			fmt.Fprintln(os.Stderr, "\nGoodbye!")
			return nil
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if s.handleSpecialCommand(input) {
				continue
			}
			return nil
		}

		built, err := prompt.Build(prompt.Request{Input: input, TaskType: s.conv.PresetRef}, s.cfg.PromptDirs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}

		done := make(chan bool)
		go showSpinner(done)

		response, err := s.turn.run(ctx, s.conv.ID, built.System, built.User)

		done <- true
		close(done)

		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}

		fmt.Printf("\nAssistant> %s\n\n", response)
	}
}

// showSpinner displays a spinner animation while waiting for response
func showSpinner(done chan bool) {
	spinners := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	i := 0
	for {
		select {
		case <-done:
			// Clear the spinner line
			fmt.Fprint(os.Stderr, "\r\033[K")
			return
		default:
			fmt.Fprintf(os.Stderr, "\r%s Waiting for response...", spinners[i])
			i = (i + 1) % len(spinners)
			time.Sleep(80 * time.Millisecond)
		}
	}
}

// handleSpecialCommand processes special commands in interactive mode
// Returns true to continue the loop, false to exit
func (s *interactiveSession) handleSpecialCommand(command string) bool {
	command = strings.ToLower(strings.TrimSpace(command))

	switch command {
	case "/help", "/h":
		fmt.Fprintln(os.Stderr, "\nAvailable commands:")
		fmt.Fprintln(os.Stderr, "  /help, /h     - Show this help message")
		fmt.Fprintln(os.Stderr, "  /info, /i     - Show conversation information")
		fmt.Fprintln(os.Stderr, "  /clear, /c    - Clear screen (Unix/Linux only)")
		fmt.Fprintln(os.Stderr, "  /exit, /quit  - Exit interactive mode")
		fmt.Fprintln(os.Stderr, "  Ctrl+D        - Exit interactive mode")
		fmt.Fprintln(os.Stderr, "")
		return true

	case "/info", "/i":
		detail := s.svc.GetConversation(s.conv.ID, 0)
		fmt.Fprintln(os.Stderr, "\nConversation Information:")
		fmt.Fprintf(os.Stderr, "  ID: %s\n", conversation.ShortID(detail.ID))
		fmt.Fprintf(os.Stderr, "  Full ID: %s\n", detail.ID)
		fmt.Fprintf(os.Stderr, "  Title: %s\n", detail.DisplayTitle())
		fmt.Fprintf(os.Stderr, "  Model: %s\n", s.cfg.Model)
		fmt.Fprintf(os.Stderr, "  Messages: %d (cap %d)\n", len(detail.Messages), s.turn.messageCap)
		fmt.Fprintf(os.Stderr, "  Created: %s\n", detail.CreatedAt.Format("2006-01-02 15:04:05"))
		if detail.PresetRef != "" {
			fmt.Fprintf(os.Stderr, "  Task: %s\n", detail.PresetRef)
		}
		fmt.Fprintln(os.Stderr, "")
		return true

	case "/clear", "/c":
		fmt.Print("\033[H\033[2J")
		return true

	case "/exit", "/quit", "/q":
		fmt.Fprintln(os.Stderr, "Goodbye!")
		return false

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s (type '/help' for available commands)\n", command)
		return true
	}
}

func init() {
	rootCmd.AddCommand(conversationsCmd)
	conversationsCmd.AddCommand(conversationsListCmd)
	conversationsCmd.AddCommand(conversationsShowCmd)
	conversationsCmd.AddCommand(conversationsRenameCmd)
	conversationsCmd.AddCommand(conversationsDeleteCmd)
	conversationsCmd.AddCommand(conversationsClearCmd)
	conversationsCmd.AddCommand(conversationsStartCmd)

	conversationsShowCmd.Flags().Int("limit", 0, "Show only the newest N messages (0 = all stored)")
	conversationsDeleteCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")

	conversationsClearCmd.Flags().String("before", "", "Delete only conversations last updated before this date (format: YYYY-MM-DD, YYYY-MM, or YYYY)")
	conversationsClearCmd.Flags().Bool("all", false, "Delete all conversations (overrides retention days setting)")
	conversationsClearCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")

	conversationsStartCmd.Flags().StringP("task", "t", "", "Task template for a new conversation")
	conversationsStartCmd.Flags().String("title", "", "Title for a new conversation")
}
