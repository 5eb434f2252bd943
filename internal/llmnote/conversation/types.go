package conversation

import (
	"errors"
	"time"
)

// DefaultTitle is shown for conversations without a title, and for conversations
// that do not exist.
const DefaultTitle = "Untitled"

// DefaultUserID owns conversations created without an explicit user.
const DefaultUserID = "local"

var (
	// ErrInvalidRole is returned when a message role is not user, assistant or system.
	ErrInvalidRole = errors.New("invalid message role")
	// ErrEmptyConversationID is returned when a message is appended without a conversation id.
	ErrEmptyConversationID = errors.New("conversation id must not be empty")
)

// Role enumerates who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is a single stored turn of a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

// NewMessage is the caller-supplied part of a message to append.
type NewMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// AppendResult reports what a capped append changed.
type AppendResult struct {
	Created    []Message `json:"created"`
	DeletedIDs []string  `json:"deletedIds"`
}

// Conversation is the metadata of a conversation.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title,omitempty"`
	PresetRef string    `json:"presetRef,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DisplayTitle returns the title, or DefaultTitle when it is empty.
func (c Conversation) DisplayTitle() string {
	if c.Title == "" {
		return DefaultTitle
	}
	return c.Title
}

// Summary is a conversation annotated with its current message count.
type Summary struct {
	Conversation
	MessageCount int `json:"messageCount"`
}

// Detail joins a conversation's metadata with its most recent messages.
// Exists is false when no metadata is stored under the id; Title is then
// DefaultTitle and only the messages (if any) are populated.
type Detail struct {
	Conversation
	Exists   bool      `json:"exists"`
	Messages []Message `json:"messages"`
}

// CreateParams are the inputs to create a conversation.
type CreateParams struct {
	Title     string `json:"title,omitempty"`
	UserID    string `json:"userId,omitempty"`
	PresetRef string `json:"presetRef,omitempty"`
}

// Patch lists metadata fields to change; nil fields are left untouched.
type Patch struct {
	Title     *string `json:"title,omitempty"`
	PresetRef *string `json:"presetRef,omitempty"`
}

// DeleteReport is the outcome of deleting several conversations.
type DeleteReport struct {
	Deleted  []string `json:"deleted"`
	NotFound []string `json:"notFound"`
	Failed   []string `json:"failed"`
}
