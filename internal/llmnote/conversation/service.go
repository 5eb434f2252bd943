// Package conversation implements the conversation store: capped,
// append-only message logs plus a directory of conversation metadata.
//
// A Service is built once by the composition root over a store.Backend and
// closed at shutdown. Every read returns plain values; nothing hands out
// references into the underlying collections.
package conversation

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/longkey1/llmnote/internal/llmnote/id"
	"github.com/longkey1/llmnote/internal/llmnote/store"
)

// Options configures a Service. Zero values select production defaults.
type Options struct {
	Logger *zap.Logger
	Now    func() time.Time
	IDs    IDGenerator
}

// Service is the conversation store exposed to the UI layer.
type Service struct {
	backend       store.Backend
	conversations *store.Collection[conversationRecord]
	messages      *store.Collection[messageRecord]
	directory     *Directory
	appender      *Appender
	logger        *zap.Logger
}

// Open hydrates both collections from backend. The Service takes ownership of
// backend and closes it in Close.
func Open(ctx context.Context, backend store.Backend, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.IDs == nil {
		opts.IDs = id.NewGenerator()
	}

	storeOpts := store.Options{Logger: opts.Logger, Now: opts.Now}
	conversations := store.Open(ctx, backend, conversationsCollection, validateConversationRecord, storeOpts)
	messages := store.Open(ctx, backend, messagesCollection, validateMessageRecord, storeOpts)

	directory := newDirectory(conversations, messages, opts.IDs, opts.Now, opts.Logger)
	return &Service{
		backend:       backend,
		conversations: conversations,
		messages:      messages,
		directory:     directory,
		appender:      newAppender(messages, directory, opts.IDs, opts.Now, opts.Logger),
		logger:        opts.Logger,
	}
}

// CreateConversation creates an empty conversation.
func (s *Service) CreateConversation(ctx context.Context, params CreateParams) (Conversation, error) {
	return s.directory.Create(ctx, params)
}

// ListConversationsByUser lists the user's conversations, newest update first.
func (s *Service) ListConversationsByUser(userID string) []Summary {
	return s.directory.ListByUser(userID)
}

// GetConversation returns metadata and the newest messageLimit messages.
func (s *Service) GetConversation(id string, messageLimit int) Detail {
	return s.directory.Get(id, messageLimit)
}

// UpdateConversationMetadata patches title or preset.
func (s *Service) UpdateConversationMetadata(ctx context.Context, id string, patch Patch) (Conversation, bool, error) {
	return s.directory.UpdateMetadata(ctx, id, patch)
}

// DeleteConversation removes a conversation and its messages.
func (s *Service) DeleteConversation(ctx context.Context, id string) (bool, error) {
	return s.directory.Delete(ctx, id)
}

// DeleteConversations removes several conversations, continuing past failures.
func (s *Service) DeleteConversations(ctx context.Context, ids []string) (DeleteReport, error) {
	return s.directory.DeleteMany(ctx, ids)
}

// AppendMessagesWithCap appends messages and trims the conversation to limit.
func (s *Service) AppendMessagesWithCap(ctx context.Context, conversationID string, messages []NewMessage, limit int) (AppendResult, error) {
	return s.appender.AppendCapped(ctx, conversationID, messages, limit)
}

// Close flushes both collections and closes the backend.
func (s *Service) Close(ctx context.Context) error {
	var errs []error
	if err := s.conversations.Flush(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.messages.Flush(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.backend.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
