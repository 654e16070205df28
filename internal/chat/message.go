package chat

import "github.com/google/uuid"

// Role of a message in the conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleLoading   Role = "loading" // placeholder shown while a response is pending
)

// Kind of content a message carries.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image" // Content holds an image URL or data URL
)

// MessageChunk is one entry of the conversation's message list.
type MessageChunk struct {
	ID      string
	Role    Role
	Content string
	Kind    Kind
}

// NewUserText creates a user text message with a fresh ID.
func NewUserText(content string) MessageChunk {
	return MessageChunk{ID: uuid.NewString(), Role: RoleUser, Content: content, Kind: KindText}
}

// NewUserImage creates a user image message; url may be a data: URL.
func NewUserImage(url string) MessageChunk {
	return MessageChunk{ID: uuid.NewString(), Role: RoleUser, Content: url, Kind: KindImage}
}
