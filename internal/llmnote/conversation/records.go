package conversation

import (
	"errors"
	"fmt"
	"time"
)

// Collection names used as backend keys.
const (
	conversationsCollection = "conversations"
	messagesCollection      = "messages"
)

// messageRecord is the persisted form of a Message. Timestamps are stored as
// epoch milliseconds.
type messageRecord struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
	Role           Role   `json:"role"`
	Content        string `json:"content"`
	CreatedAt      int64  `json:"createdAt"`
}

type conversationRecord struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Title     string `json:"title,omitempty"`
	PresetRef string `json:"presetRef,omitempty"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

func validateMessageRecord(r messageRecord) error {
	if r.ID == "" {
		return errors.New("message id is empty")
	}
	if r.ConversationID == "" {
		return ErrEmptyConversationID
	}
	if !r.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, r.Role)
	}
	return nil
}

func validateConversationRecord(r conversationRecord) error {
	if r.ID == "" {
		return errors.New("conversation id is empty")
	}
	if r.UserID == "" {
		return errors.New("conversation user id is empty")
	}
	return nil
}

func (r messageRecord) toMessage() Message {
	return Message{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		Role:           r.Role,
		Content:        r.Content,
		CreatedAt:      time.UnixMilli(r.CreatedAt),
	}
}

func (r conversationRecord) toConversation() Conversation {
	return Conversation{
		ID:        r.ID,
		UserID:    r.UserID,
		Title:     r.Title,
		PresetRef: r.PresetRef,
		CreatedAt: time.UnixMilli(r.CreatedAt),
		UpdatedAt: time.UnixMilli(r.UpdatedAt),
	}
}

func belongsTo(conversationID string) func(messageRecord) bool {
	return func(r messageRecord) bool { return r.ConversationID == conversationID }
}
