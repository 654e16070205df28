package session

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/namikmesic/canvas-stream/internal/chat"
	"github.com/namikmesic/canvas-stream/internal/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(event, data string) string {
	return "event: " + event + "\ndata: " + data + "\n\n"
}

func delta(text string) string {
	return frame(stream.EventOutputTextDelta, `{"type":"response.output_text.delta","delta":"`+text+`"}`)
}

type sentenceCollector struct {
	sentences []string
}

func (c *sentenceCollector) Sentence(_, sentence string) {
	c.sentences = append(c.sentences, sentence)
}

func newActiveSession(t *testing.T, conv *chat.Conversation, opts ...Option) *Session {
	t.Helper()
	s := NewSession("stream-1", conv, opts...)
	require.NoError(t, s.Begin())
	return s
}

func TestFeedAccumulatesDeltas(t *testing.T) {
	conv := chat.NewConversation(chat.NewUserText("say hello"))
	s := newActiveSession(t, conv)

	s.Feed([]byte("event: response.output_text.delta\ndata: {\"delta\":\"Hel\"}\n\n"))
	s.Feed([]byte("event: response.output_text.delta\ndata: {\"delta\":\"lo\"}\n\n"))

	msgs := conv.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, chat.MessageChunk{ID: "stream-1", Role: chat.RoleAssistant, Content: "Hello", Kind: chat.KindText}, msgs[1])
	assert.Equal(t, StateActive, s.State())
}

func TestInProgressShowsOneLoadingPlaceholder(t *testing.T) {
	conv := chat.NewConversation(chat.NewUserText("hi"))
	s := newActiveSession(t, conv)

	s.Feed([]byte(frame(stream.EventInProgress, `{}`) + frame(stream.EventInProgress, `{}`)))
	msgs := conv.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, chat.RoleLoading, msgs[1].Role)

	s.Feed([]byte(delta("Hi")))
	msgs = conv.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, chat.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Hi", msgs[1].Content)
}

func TestUnknownAndLifecycleEventsAreIgnored(t *testing.T) {
	conv := chat.NewConversation(chat.NewUserText("hi"))
	s := newActiveSession(t, conv)
	before := conv.Messages()

	s.Feed([]byte(
		frame(stream.EventCreated, `{}`) +
			frame("response.reasoning.delta", `not even json`) +
			frame(stream.EventOutputItemAdded, `{}`) +
			frame(stream.EventContentPartAdded, `{}`) +
			frame(stream.EventOutputTextDone, `{}`) +
			frame("", `{"orphan":true}`),
	))

	assert.Equal(t, StateActive, s.State())
	assert.NoError(t, s.Err())
	assert.Equal(t, before, conv.Messages())
}

func TestMalformedDeltaFailsAndKeepsContent(t *testing.T) {
	conv := chat.NewConversation()
	s := newActiveSession(t, conv)

	s.Feed([]byte(delta("Partial answer") + frame(stream.EventOutputTextDelta, `{"delta":`) + delta(" never")))

	assert.Equal(t, StateFailed, s.State())
	assert.Equal(t, stream.KindParsing, stream.KindOf(s.Err()))
	m, ok := conv.Message("stream-1")
	require.True(t, ok)
	assert.Equal(t, "Partial answer", m.Content)

	// terminal state is absorbing
	s.Feed([]byte(delta(" more")))
	s.Finish(nil)
	assert.Equal(t, StateFailed, s.State())
	m, _ = conv.Message("stream-1")
	assert.Equal(t, "Partial answer", m.Content)
}

func TestCompletedShortCircuitsChunk(t *testing.T) {
	conv := chat.NewConversation()
	s := newActiveSession(t, conv)

	s.Feed([]byte(delta("Done.") + frame(stream.EventCompleted, `{"type":"response.completed"}`) + delta(" ignored")))

	assert.Equal(t, StateCompleted, s.State())
	assert.NoError(t, s.Err())
	m, _ := conv.Message("stream-1")
	assert.Equal(t, "Done.", m.Content)
}

func TestDoneMarkerCompletes(t *testing.T) {
	conv := chat.NewConversation()
	s := newActiveSession(t, conv)

	s.Feed([]byte(delta("ok") + "data: [DONE]\n\n"))
	assert.Equal(t, StateCompleted, s.State())
}

func TestErrorEventFailsWithAPIError(t *testing.T) {
	conv := chat.NewConversation()
	s := newActiveSession(t, conv)

	s.Feed([]byte(frame(stream.EventInProgress, `{}`)))
	s.Feed([]byte(frame(stream.EventError, `{"type":"error","error":{"code":"context_length_exceeded","message":"too long"}}`)))

	assert.Equal(t, StateFailed, s.State())
	assert.Equal(t, stream.KindAPI, stream.KindOf(s.Err()))
	assert.Contains(t, s.Err().Error(), "context length exceeded")
	assert.Empty(t, conv.Messages(), "loading placeholder is removed on failure")
}

func TestInvalidEncodingFailsWithAPIError(t *testing.T) {
	conv := chat.NewConversation()
	s := newActiveSession(t, conv)

	s.Feed([]byte("event: response.output_text.delta\ndata: {\"delta\":\"\xff\xfe\"}\n\n"))
	assert.Equal(t, StateFailed, s.State())
	assert.Equal(t, stream.KindAPI, stream.KindOf(s.Err()))
}

func TestSentencesEmittedOnce(t *testing.T) {
	conv := chat.NewConversation()
	sink := &sentenceCollector{}
	s := newActiveSession(t, conv, WithSentenceSink(sink))

	s.Feed([]byte(delta("Hi. How are you? Fine")))
	assert.Equal(t, []string{"Hi.", "How are you?"}, sink.sentences)

	s.Feed([]byte(delta("!")))
	assert.Equal(t, []string{"Hi.", "How are you?", "Fine!"}, sink.sentences)
	assert.Equal(t, sink.sentences, s.Sentences())
}

func TestChunkBoundaryIndependence(t *testing.T) {
	raw := []byte(frame(stream.EventCreated, `{}`) +
		frame(stream.EventInProgress, `{}`) +
		delta("Grüße. Wie ") +
		delta("geht's? Gut") +
		delta("!") +
		frame(stream.EventOutputTextDone, `{}`))

	run := func(chunks [][]byte) (string, []string) {
		conv := chat.NewConversation()
		sink := &sentenceCollector{}
		s := newActiveSession(t, conv, WithSentenceSink(sink))
		for _, c := range chunks {
			s.Feed(c)
		}
		s.Finish(io.EOF)
		require.Equal(t, StateCompleted, s.State())
		require.Len(t, conv.Messages(), 1)
		return conv.Messages()[0].Content, sink.sentences
	}

	wantContent, wantSentences := run([][]byte{raw})
	assert.Equal(t, "Grüße. Wie geht's? Gut!", wantContent)
	assert.Equal(t, []string{"Grüße.", "Wie geht's?", "Gut!"}, wantSentences)

	for split := 1; split < len(raw); split++ {
		content, sentences := run([][]byte{raw[:split], raw[split:]})
		require.Equal(t, wantContent, content, "split at %d", split)
		require.Equal(t, wantSentences, sentences, "split at %d", split)
	}

	bytewise := make([][]byte, len(raw))
	for i := range raw {
		bytewise[i] = raw[i : i+1]
	}
	content, sentences := run(bytewise)
	assert.Equal(t, wantContent, content)
	assert.Equal(t, wantSentences, sentences)
}

func TestReplayWithoutNewBytesIsNoOp(t *testing.T) {
	conv := chat.NewConversation()
	s := newActiveSession(t, conv)
	s.Feed([]byte(delta("One.") + "event: response.output_text.delta\ndata: {\"del"))
	before := s.Summary()

	s.Feed(nil)
	s.Feed([]byte{})

	after := s.Summary()
	assert.Equal(t, before.Frames, after.Frames)
	assert.Equal(t, before.Deltas, after.Deltas)
	assert.Equal(t, "One.", conv.Messages()[0].Content)
}

func TestFinish(t *testing.T) {
	t.Run("eof completes", func(t *testing.T) {
		conv := chat.NewConversation()
		s := newActiveSession(t, conv)
		s.Feed([]byte(frame(stream.EventInProgress, `{}`)))
		s.Finish(io.EOF)

		assert.Equal(t, StateCompleted, s.State())
		assert.Empty(t, conv.Messages())
	})

	t.Run("transport error fails with network error", func(t *testing.T) {
		conv := chat.NewConversation()
		s := newActiveSession(t, conv)
		s.Feed([]byte(delta("partial")))
		cause := errors.New("connection reset by peer")
		s.Finish(cause)

		assert.Equal(t, StateFailed, s.State())
		assert.Equal(t, stream.KindNetwork, stream.KindOf(s.Err()))
		assert.ErrorIs(t, s.Err(), cause)
		assert.Equal(t, "partial", conv.Messages()[0].Content)
	})
}

func TestFeedIgnoredWhenIdle(t *testing.T) {
	conv := chat.NewConversation()
	s := NewSession("stream-1", conv)

	s.Feed([]byte(delta("x")))
	assert.Empty(t, conv.Messages())
	assert.Equal(t, StateIdle, s.State())

	require.NoError(t, s.Begin())
	assert.ErrorIs(t, s.Begin(), ErrNotIdle)
}

func TestSummary(t *testing.T) {
	conv := chat.NewConversation()
	s := newActiveSession(t, conv, WithModel("gpt-5-nano"))
	s.Feed([]byte(frame(stream.EventCreated, `{}`) + delta("Hé. Yo") + frame(stream.EventError, `{"message":"boom"}`)))

	sum := s.Summary()
	assert.Equal(t, "stream-1", sum.StreamID)
	assert.Equal(t, "gpt-5-nano", sum.Model)
	assert.Equal(t, "failed", sum.State)
	assert.Equal(t, "api_error", sum.ErrorKind)
	assert.True(t, strings.HasSuffix(sum.ErrorMessage, "boom"))
	assert.Equal(t, 3, sum.Frames)
	assert.Equal(t, 1, sum.Deltas)
	assert.Equal(t, 1, sum.Sentences)
	assert.Equal(t, 6, sum.ContentChars)
	assert.False(t, sum.EndedAt.Before(sum.StartedAt))
}
