package conversation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/longkey1/llmnote/internal/llmnote/store"
)

// IDGenerator mints identifiers with a type prefix.
type IDGenerator interface {
	New(prefix string) string
}

// Toucher bumps a conversation's UpdatedAt timestamp.
type Toucher interface {
	Touch(ctx context.Context, conversationID string) error
}

// Appender appends messages to a conversation and trims it to a cap.
type Appender struct {
	messages *store.Collection[messageRecord]
	toucher  Toucher
	ids      IDGenerator
	now      func() time.Time
	logger   *zap.Logger
}

func newAppender(messages *store.Collection[messageRecord], toucher Toucher, ids IDGenerator, now func() time.Time, logger *zap.Logger) *Appender {
	return &Appender{messages: messages, toucher: toucher, ids: ids, now: now, logger: logger}
}

// AppendCapped stores newMessages under conversationID and then evicts the
// oldest messages of that conversation until at most limit remain. Both steps
// run as one serialized mutation of the message collection.
//
// All messages of one call share a CreatedAt; among equal timestamps the order
// of insertion decides which message is older. With limit <= 0 every message
// is evicted, but Created still carries the full records.
//
// On success the owning conversation's UpdatedAt is bumped on a best-effort
// basis; a missing conversation or a failed bump does not fail the append.
func (a *Appender) AppendCapped(ctx context.Context, conversationID string, newMessages []NewMessage, limit int) (AppendResult, error) {
	result := AppendResult{Created: []Message{}, DeletedIDs: []string{}}

	if conversationID == "" {
		return result, ErrEmptyConversationID
	}
	for i, m := range newMessages {
		if !m.Role.Valid() {
			return result, fmt.Errorf("message %d: %w: %q", i, ErrInvalidRole, m.Role)
		}
	}

	err := a.messages.Mutate(ctx, func(tx *store.Tx[messageRecord]) error {
		createdAt := a.now().UnixMilli()
		for _, m := range newMessages {
			rec := messageRecord{
				ID:             a.ids.New("msg"),
				ConversationID: conversationID,
				Role:           m.Role,
				Content:        m.Content,
				CreatedAt:      createdAt,
			}
			if err := tx.Put(rec.ID, rec); err != nil {
				return err
			}
			result.Created = append(result.Created, rec.toMessage())
		}

		items := tx.Items(belongsTo(conversationID))
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Value.CreatedAt < items[j].Value.CreatedAt
		})

		overflow := len(items) - max(limit, 0)
		for i := 0; i < overflow; i++ {
			if tx.Delete(items[i].ID) {
				result.DeletedIDs = append(result.DeletedIDs, items[i].ID)
			}
		}
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("append to conversation %s: %w", conversationID, err)
	}

	if len(result.DeletedIDs) > 0 {
		a.logger.Debug("trimmed conversation",
			zap.String("conversation", conversationID),
			zap.Int("evicted", len(result.DeletedIDs)),
			zap.Int("cap", limit))
	}

	if a.toucher != nil {
		if err := a.toucher.Touch(ctx, conversationID); err != nil {
			a.logger.Warn("bumping conversation timestamp failed",
				zap.String("conversation", conversationID), zap.Error(err))
		}
	}

	return result, nil
}
