package cmd

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/longkey1/llmnote/internal/llmnote/config"
	"github.com/longkey1/llmnote/internal/llmnote/conversation"
	"github.com/longkey1/llmnote/internal/llmnote/store"
	"github.com/longkey1/llmnote/internal/logging"
)

// loggingOptions maps the log_* settings onto logging.Options.
// --verbose lowers the level to debug.
func loggingOptions(cfg *config.Config) logging.Options {
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	return logging.Options{
		Level:      level,
		Format:     cfg.LogFormat,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		NoConsole:  cfg.LogNoConsole,
	}
}

// newLogger builds the process logger from the configuration.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.New(loggingOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	return logger, nil
}

// openBackend opens the storage substrate selected by cfg.Storage.
func openBackend(cfg *config.Config) (store.Backend, error) {
	kind, err := cfg.StorageKind()
	if err != nil {
		return nil, err
	}

	switch kind {
	case store.KindMemory:
		return store.NewMemoryBackend(), nil
	case store.KindDocument:
		return store.NewDocumentBackend(cfg.DocumentDir())
	default:
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %v", err)
		}
		backend, err := store.NewKVBackend(cfg.KVPath())
		if err != nil {
			return nil, fmt.Errorf("opening %s (is another llmnote process running?): %w", cfg.KVPath(), err)
		}
		return backend, nil
	}
}

// openStore wires the conversation service over the configured backend.
// The caller must Close the returned service.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*conversation.Service, error) {
	backend, err := openBackend(cfg)
	if err != nil {
		return nil, err
	}
	logger.Debug("store opened", zap.String("storage", cfg.Storage), zap.String("data_dir", cfg.DataDir))
	return conversation.Open(ctx, backend, conversation.Options{Logger: logger}), nil
}

// closeStore flushes and closes svc, reporting failures on stderr.
func closeStore(svc *conversation.Service) {
	if err := svc.Close(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close store: %v\n", err)
	}
}

// currentUser returns the configured user id or the local default.
func currentUser(cfg *config.Config) string {
	if cfg.UserID != "" {
		return cfg.UserID
	}
	return conversation.DefaultUserID
}
