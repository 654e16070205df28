package chat

import (
	"sync"

	"github.com/google/uuid"
)

// Observer is called after every mutation with a snapshot of the message list.
// Observers run with the conversation unlocked and must not block for long.
type Observer func(messages []MessageChunk)

// Conversation owns the ordered message list. Every mutation goes through its
// mutex, so deltas from a session goroutine and prompts from the caller never
// interleave.
type Conversation struct {
	mu        sync.Mutex
	messages  []MessageChunk
	observers []Observer
}

func NewConversation(messages ...MessageChunk) *Conversation {
	return &Conversation{messages: append([]MessageChunk(nil), messages...)}
}

// Observe registers fn to receive snapshots after each mutation.
func (c *Conversation) Observe(fn Observer) {
	c.mu.Lock()
	c.observers = append(c.observers, fn)
	c.mu.Unlock()
}

// Messages returns a copy of the current message list.
func (c *Conversation) Messages() []MessageChunk {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Append adds a message (typically a user prompt) to the end of the list.
func (c *Conversation) Append(m MessageChunk) {
	c.mutate(func() bool {
		c.messages = append(c.messages, m)
		return true
	})
}

// ShowLoading inserts the loading placeholder unless one is already present.
// It reports whether a placeholder was inserted.
func (c *Conversation) ShowLoading() bool {
	return c.mutate(func() bool {
		if c.loadingIndexLocked() >= 0 {
			return false
		}
		c.messages = append(c.messages, MessageChunk{
			ID:   uuid.NewString(),
			Role: RoleLoading,
			Kind: KindText,
		})
		return true
	})
}

// ClearLoading removes the loading placeholder, reporting whether one existed.
func (c *Conversation) ClearLoading() bool {
	return c.mutate(c.removeLoadingLocked)
}

// ApplyDelta appends delta to the message identified by streamID, creating an
// assistant message at the end of the list on the first delta. The loading
// placeholder is removed first. It returns the message's content after the
// append.
func (c *Conversation) ApplyDelta(streamID, delta string) string {
	var content string
	c.mutate(func() bool {
		c.removeLoadingLocked()
		for i := range c.messages {
			if c.messages[i].ID == streamID {
				c.messages[i].Content += delta
				content = c.messages[i].Content
				return true
			}
		}
		c.messages = append(c.messages, MessageChunk{
			ID:      streamID,
			Role:    RoleAssistant,
			Content: delta,
			Kind:    KindText,
		})
		content = delta
		return true
	})
	return content
}

// Message returns the message with the given ID.
func (c *Conversation) Message(id string) (MessageChunk, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.messages {
		if m.ID == id {
			return m, true
		}
	}
	return MessageChunk{}, false
}

// mutate runs fn under the lock and, if it changed anything, notifies
// observers with a snapshot taken before unlocking.
func (c *Conversation) mutate(fn func() bool) bool {
	c.mu.Lock()
	changed := fn()
	if !changed || len(c.observers) == 0 {
		c.mu.Unlock()
		return changed
	}
	snapshot := c.snapshotLocked()
	observers := append([]Observer(nil), c.observers...)
	c.mu.Unlock()

	for _, obs := range observers {
		obs(snapshot)
	}
	return changed
}

func (c *Conversation) snapshotLocked() []MessageChunk {
	return append([]MessageChunk(nil), c.messages...)
}

func (c *Conversation) loadingIndexLocked() int {
	for i, m := range c.messages {
		if m.Role == RoleLoading {
			return i
		}
	}
	return -1
}

func (c *Conversation) removeLoadingLocked() bool {
	i := c.loadingIndexLocked()
	if i < 0 {
		return false
	}
	c.messages = append(c.messages[:i], c.messages[i+1:]...)
	return true
}
