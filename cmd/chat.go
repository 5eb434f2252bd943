/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/longkey1/llmnote/internal/llmnote"
	"github.com/longkey1/llmnote/internal/llmnote/config"
	"github.com/longkey1/llmnote/internal/llmnote/conversation"
	"github.com/longkey1/llmnote/internal/llmnote/prompt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	model           string
	taskType        string
	argFlags        []string
	useEditor       bool
	conversationRef string
	newConversation bool
	title           string
	messageCap      int
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Send a message to the LLM",
	Long: `Send a message to the LLM and print the response.

Without --conversation or --new the call is one-shot and nothing is stored.
With --new a conversation is created; with --conversation an existing one is
continued. Both turns are appended to the conversation and, once it holds more
than message_cap messages (or --cap), the oldest ones are dropped.

For interactive multi-turn conversations, use 'llmnote conversations start' instead.

If no message is provided as an argument, it reads from stdin.
If --editor flag is set, it opens the default editor (from EDITOR environment variable) to compose the message.

The task template should be in TOML format with the following structure:
system = "System prompt with optional {{input}} placeholder"
user = "User prompt with optional {{input}} placeholder"
model = "optional provider:model"  # Optional: overrides the default model for this task`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		if conversationRef != "" && newConversation {
			return fmt.Errorf("cannot specify both --conversation and --new")
		}

		message, err := readMessage(args)
		if err != nil {
			return err
		}
		if message == "" {
			return fmt.Errorf("message is empty")
		}

		options, err := prompt.ParseOptions(argFlags)
		if err != nil {
			return fmt.Errorf("error processing arguments: %w", err)
		}

		// One-shot mode (no conversation)
		if conversationRef == "" && !newConversation {
			built, err := prompt.Build(prompt.Request{Input: message, TaskType: taskType, Options: options}, cfg.PromptDirs)
			if err != nil {
				return fmt.Errorf("formatting message with task: %w", err)
			}
			if err := applyModel(cmd, cfg, built.Model); err != nil {
				return err
			}

			llmProvider, err := newProvider(cfg)
			if err != nil {
				return fmt.Errorf("creating provider: %w", err)
			}

			response, err := llmProvider.ChatWithHistory(cmd.Context(), built.System, nil, built.User)
			if err != nil {
				return fmt.Errorf("chat request failed: %w", err)
			}
			fmt.Println(response)
			return nil
		}

		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer logger.Sync()

		svc, err := openStore(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer closeStore(svc)

		var conv conversation.Conversation
		if newConversation {
			conv, err = svc.CreateConversation(cmd.Context(), conversation.CreateParams{
				Title:     title,
				UserID:    currentUser(cfg),
				PresetRef: taskType,
			})
			if err != nil {
				return fmt.Errorf("creating conversation: %w", err)
			}
		} else {
			found, err := conversation.FindByPrefix(svc.ListConversationsByUser(currentUser(cfg)), conversationRef)
			if err != nil {
				return fmt.Errorf("finding conversation: %w", err)
			}
			conv = found.Conversation
		}

		// A conversation keeps the task it was started with
		task := taskType
		if task == "" {
			task = conv.PresetRef
		}
		built, err := prompt.Build(prompt.Request{Input: message, TaskType: task, Options: options}, cfg.PromptDirs)
		if err != nil {
			return fmt.Errorf("formatting message with task: %w", err)
		}
		if err := applyModel(cmd, cfg, built.Model); err != nil {
			return err
		}

		llmProvider, err := newProvider(cfg)
		if err != nil {
			return fmt.Errorf("creating provider: %w", err)
		}

		limit := cfg.MessageCap
		if cmd.Flags().Changed("cap") {
			limit = messageCap
		}

		turn := &turnRunner{
			store:        svc,
			provider:     llmProvider,
			logger:       logger,
			historyLimit: cfg.HistoryLimit,
			messageCap:   limit,
		}
		response, err := turn.run(cmd.Context(), conv.ID, built.System, built.User)
		if err != nil {
			return err
		}

		fmt.Println(response)

		if newConversation {
			fmt.Fprintf(os.Stderr, "\nConversation created: %s\n", conversation.ShortID(conv.ID))
			fmt.Fprintf(os.Stderr, "\nNext time, use:\n  llmnote chat -c %s \"your message\"\n", conversation.ShortID(conv.ID))
			fmt.Fprintf(os.Stderr, "For interactive mode, use:\n  llmnote conversations start %s\n", conversation.ShortID(conv.ID))
		}
		return nil
	},
}

// turnStore is the part of conversation.Service a chat turn needs.
type turnStore interface {
	GetConversation(id string, messageLimit int) conversation.Detail
	AppendMessagesWithCap(ctx context.Context, conversationID string, messages []conversation.NewMessage, limit int) (conversation.AppendResult, error)
}

// turnRunner sends one user turn to the model and records both sides.
type turnRunner struct {
	store        turnStore
	provider     llmnote.Provider
	logger       *zap.Logger
	historyLimit int
	messageCap   int
}

// run loads the recent history, appends the user turn, asks the model and
// appends the reply. The user turn stays stored when the model call fails.
func (t *turnRunner) run(ctx context.Context, conversationID, systemPrompt, userText string) (string, error) {
	history := t.store.GetConversation(conversationID, t.historyLimit).Messages

	if _, err := t.append(ctx, conversationID, conversation.RoleUser, userText); err != nil {
		return "", fmt.Errorf("saving message: %w", err)
	}

	response, err := t.provider.ChatWithHistory(ctx, systemPrompt, toProviderMessages(history), userText)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}

	if _, err := t.append(ctx, conversationID, conversation.RoleAssistant, response); err != nil {
		return "", fmt.Errorf("saving response: %w", err)
	}
	return response, nil
}

func (t *turnRunner) append(ctx context.Context, conversationID string, role conversation.Role, content string) (conversation.AppendResult, error) {
	result, err := t.store.AppendMessagesWithCap(ctx, conversationID,
		[]conversation.NewMessage{{Role: role, Content: content}}, t.messageCap)
	if err != nil {
		return result, err
	}
	if len(result.DeletedIDs) > 0 {
		t.logger.Debug("conversation trimmed",
			zap.String("conversation_id", conversationID),
			zap.Int("evicted", len(result.DeletedIDs)),
			zap.Int("cap", t.messageCap))
	}
	return result, nil
}

func toProviderMessages(messages []conversation.Message) []llmnote.Message {
	out := make([]llmnote.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, llmnote.Message{Role: string(m.Role), Content: m.Content})
	}
	return out
}

// applyModel sets cfg.Model with priority: flag > env > task template > config file
func applyModel(cmd *cobra.Command, cfg *config.Config, templateModel string) error {
	envModel := os.Getenv("LLMNOTE_MODEL")
	switch {
	case cmd.Flags().Changed("model"):
		if _, _, err := llmnote.ParseModelString(model); err != nil {
			return fmt.Errorf("invalid model from flag: %w", err)
		}
		cfg.Model = model
	case envModel != "":
		if _, _, err := llmnote.ParseModelString(envModel); err != nil {
			return fmt.Errorf("invalid model from environment: %w", err)
		}
		cfg.Model = envModel
	case templateModel != "":
		cfg.Model = templateModel
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "Model: %s\n", cfg.Model)
	}
	return nil
}

// readMessage gets the message from the editor, the arguments or stdin
func readMessage(args []string) (string, error) {
	if useEditor {
		message, err := getMessageFromEditor()
		if err != nil {
			return "", fmt.Errorf("getting message from editor: %w", err)
		}
		return message, nil
	}
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	input, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading from stdin: %w", err)
	}
	return strings.TrimSpace(string(input)), nil
}

// getMessageFromEditor opens the default editor and returns the edited message
func getMessageFromEditor() (string, error) {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		return "", fmt.Errorf("EDITOR environment variable is not set")
	}

	tmpFile, err := os.CreateTemp("", "llmnote-*.txt")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %v", err)
	}
	tmpFile.Close()
	defer os.Remove(tmpFile.Name())

	cmd := exec.Command(editor, tmpFile.Name())
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to open editor: %v", err)
	}

	content, err := os.ReadFile(tmpFile.Name())
	if err != nil {
		return "", fmt.Errorf("failed to read edited content: %v", err)
	}

	return strings.TrimSpace(string(content)), nil
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringVarP(&model, "model", "m", "", "Model to use (format: provider:model, e.g., ollama:llama3.2)")
	chatCmd.Flags().StringVarP(&taskType, "task", "t", "", "Name of the task template (without .toml extension)")
	chatCmd.Flags().StringArrayVar(&argFlags, "arg", []string{}, "Key-value pairs for the task template (format: key:value)")
	chatCmd.Flags().BoolVarP(&useEditor, "editor", "e", false, "Use default editor (from EDITOR environment variable) to compose message")

	// Conversation flags
	chatCmd.Flags().StringVarP(&conversationRef, "conversation", "c", "", "Conversation ID (short ID, full ID, or 'latest' for the most recent conversation)")
	chatCmd.Flags().BoolVarP(&newConversation, "new", "n", false, "Create a new conversation")
	chatCmd.Flags().StringVar(&title, "title", "", "Title for the new conversation (optional)")
	chatCmd.Flags().IntVar(&messageCap, "cap", 0, "Maximum messages kept in the conversation (default from message_cap)")
}
