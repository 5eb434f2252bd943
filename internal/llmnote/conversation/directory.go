package conversation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/longkey1/llmnote/internal/llmnote/store"
)

// Directory manages conversation metadata and derives per-conversation data
// from the message collection.
type Directory struct {
	conversations *store.Collection[conversationRecord]
	messages      *store.Collection[messageRecord]
	ids           IDGenerator
	now           func() time.Time
	logger        *zap.Logger
}

func newDirectory(conversations *store.Collection[conversationRecord], messages *store.Collection[messageRecord], ids IDGenerator, now func() time.Time, logger *zap.Logger) *Directory {
	return &Directory{conversations: conversations, messages: messages, ids: ids, now: now, logger: logger}
}

// Create stores a new conversation with both timestamps set to now.
func (d *Directory) Create(ctx context.Context, params CreateParams) (Conversation, error) {
	userID := params.UserID
	if userID == "" {
		userID = DefaultUserID
	}

	now := d.now().UnixMilli()
	rec := conversationRecord{
		ID:        d.ids.New("conv"),
		UserID:    userID,
		Title:     params.Title,
		PresetRef: params.PresetRef,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := d.conversations.Upsert(ctx, rec.ID, rec); err != nil {
		return Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	return rec.toConversation(), nil
}

// ListByUser returns the user's conversations, most recently updated first,
// each with its current message count.
func (d *Directory) ListByUser(userID string) []Summary {
	recs := d.conversations.FindMany(func(r conversationRecord) bool { return r.UserID == userID })

	counts := make(map[string]int, len(recs))
	for _, m := range d.messages.FindMany(nil) {
		counts[m.ConversationID]++
	}

	out := make([]Summary, 0, len(recs))
	for _, r := range recs {
		out = append(out, Summary{Conversation: r.toConversation(), MessageCount: counts[r.ID]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// Get returns the conversation's metadata and its newest messageLimit messages,
// oldest first. A messageLimit <= 0 returns every message. Get never fails: an
// unknown id yields DefaultTitle and whatever messages reference the id.
func (d *Directory) Get(id string, messageLimit int) Detail {
	detail := Detail{Conversation: Conversation{ID: id}, Messages: []Message{}}
	if rec, ok := d.conversations.FindByID(id); ok {
		detail.Conversation = rec.toConversation()
		detail.Exists = true
	}
	detail.Title = detail.DisplayTitle()

	items := d.messages.Items(belongsTo(id))
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Value.CreatedAt < items[j].Value.CreatedAt
	})
	if messageLimit > 0 && len(items) > messageLimit {
		items = items[len(items)-messageLimit:]
	}
	for _, it := range items {
		detail.Messages = append(detail.Messages, it.Value.toMessage())
	}
	return detail
}

// UpdateMetadata applies patch and bumps UpdatedAt. It reports false when the
// conversation does not exist.
func (d *Directory) UpdateMetadata(ctx context.Context, id string, patch Patch) (Conversation, bool, error) {
	now := d.now().UnixMilli()
	rec, found, err := d.conversations.Update(ctx, id, func(r *conversationRecord) {
		if patch.Title != nil {
			r.Title = *patch.Title
		}
		if patch.PresetRef != nil {
			r.PresetRef = *patch.PresetRef
		}
		r.UpdatedAt = now
	})
	if err != nil {
		return Conversation{}, false, fmt.Errorf("update conversation %s: %w", id, err)
	}
	if !found {
		return Conversation{}, false, nil
	}
	return rec.toConversation(), true, nil
}

// Touch bumps UpdatedAt. Touching an unknown id is a no-op.
func (d *Directory) Touch(ctx context.Context, id string) error {
	now := d.now().UnixMilli()
	_, _, err := d.conversations.Update(ctx, id, func(r *conversationRecord) {
		if now > r.UpdatedAt {
			r.UpdatedAt = now
		}
	})
	return err
}

// Delete removes the conversation and every message referencing it. It
// reports whether the conversation metadata existed; deleting an unknown id
// still removes stray messages under that id and is not an error.
//
// Messages are purged before the metadata, as two separate serialized
// mutations. An append queued between them, or after Delete returns, leaves
// messages under an id with no metadata. Those read back with Exists false
// and are removed by the next Delete of the same id.
func (d *Directory) Delete(ctx context.Context, id string) (bool, error) {
	var evicted int
	err := d.messages.Mutate(ctx, func(tx *store.Tx[messageRecord]) error {
		for _, it := range tx.Items(belongsTo(id)) {
			if tx.Delete(it.ID) {
				evicted++
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete messages of conversation %s: %w", id, err)
	}

	existed, err := d.conversations.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete conversation %s: %w", id, err)
	}

	d.logger.Debug("deleted conversation",
		zap.String("conversation", id),
		zap.Bool("existed", existed),
		zap.Int("messages", evicted))
	return existed, nil
}

// DeleteMany deletes each id in turn. A failure on one id does not stop the
// others; all failures are joined into the returned error.
func (d *Directory) DeleteMany(ctx context.Context, ids []string) (DeleteReport, error) {
	report := DeleteReport{Deleted: []string{}, NotFound: []string{}, Failed: []string{}}
	var errs []error
	for _, id := range ids {
		existed, err := d.Delete(ctx, id)
		switch {
		case err != nil:
			report.Failed = append(report.Failed, id)
			errs = append(errs, err)
		case existed:
			report.Deleted = append(report.Deleted, id)
		default:
			report.NotFound = append(report.NotFound, id)
		}
	}
	return report, errors.Join(errs...)
}
