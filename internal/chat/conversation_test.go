package chat

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countRole(messages []MessageChunk, role Role) int {
	n := 0
	for _, m := range messages {
		if m.Role == role {
			n++
		}
	}
	return n
}

func TestApplyDeltaAccumulates(t *testing.T) {
	c := NewConversation(NewUserText("hi"))

	assert.Equal(t, "Hel", c.ApplyDelta("stream-1", "Hel"))
	assert.Equal(t, "Hello", c.ApplyDelta("stream-1", "lo"))

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, MessageChunk{ID: "stream-1", Role: RoleAssistant, Content: "Hello", Kind: KindText}, msgs[1])
}

func TestApplyDeltaSeparateStreams(t *testing.T) {
	c := NewConversation()
	c.ApplyDelta("a", "one")
	c.Append(NewUserText("next"))
	c.ApplyDelta("b", "two")
	c.ApplyDelta("a", "!")

	msgs := c.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "one!", msgs[0].Content)
	assert.Equal(t, "two", msgs[2].Content)
}

func TestLoadingPlaceholder(t *testing.T) {
	c := NewConversation(NewUserText("hi"))

	assert.True(t, c.ShowLoading())
	assert.False(t, c.ShowLoading())
	assert.Equal(t, 1, countRole(c.Messages(), RoleLoading))

	c.ApplyDelta("s", "x")
	msgs := c.Messages()
	assert.Equal(t, 0, countRole(msgs, RoleLoading))
	assert.Equal(t, RoleAssistant, msgs[len(msgs)-1].Role)

	assert.False(t, c.ClearLoading())
	c.ShowLoading()
	assert.True(t, c.ClearLoading())
	assert.Len(t, c.Messages(), 2)
}

func TestObserverSnapshots(t *testing.T) {
	c := NewConversation()
	var snapshots [][]MessageChunk
	c.Observe(func(m []MessageChunk) { snapshots = append(snapshots, m) })

	c.ShowLoading()
	c.ShowLoading() // no change, no notification
	c.ApplyDelta("s", "a")
	c.ApplyDelta("s", "b")

	require.Len(t, snapshots, 3)
	assert.Equal(t, RoleLoading, snapshots[0][0].Role)
	assert.Equal(t, "a", snapshots[1][0].Content)
	assert.Equal(t, "ab", snapshots[2][0].Content)

	// snapshots are copies
	snapshots[2][0].Content = "mutated"
	m, ok := c.Message("s")
	require.True(t, ok)
	assert.Equal(t, "ab", m.Content)
}

func TestConcurrentMutation(t *testing.T) {
	c := NewConversation()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.ApplyDelta("s", "x")
				c.ShowLoading()
			}
		}()
	}
	wg.Wait()

	m, ok := c.Message("s")
	require.True(t, ok)
	assert.Len(t, m.Content, 800)
	assert.LessOrEqual(t, countRole(c.Messages(), RoleLoading), 1)
}
