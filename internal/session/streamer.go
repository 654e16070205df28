package session

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/namikmesic/canvas-stream/internal/chat"
	"github.com/namikmesic/canvas-stream/internal/stream"
	"github.com/namikmesic/canvas-stream/internal/transport"
)

// Opener opens the response stream for an encoded request body.
type Opener interface {
	Open(ctx context.Context, userToken string, body []byte) (io.ReadCloser, error)
}

// Recorder archives the raw bytes of each stream and its outcome.
type Recorder interface {
	// Archive drains r, which yields the raw response bytes until the
	// stream ends.
	Archive(streamID string, r io.Reader)
	RecordEnd(summary Summary)
}

type Options struct {
	Model        string
	SystemPrompt string
	ReadTimeout  time.Duration // zero disables the idle read timeout
	Sink         SentenceSink
	Recorder     Recorder
}

// Streamer starts sessions for one conversation. At most one session is
// active at a time: starting a new one cancels the previous session and waits
// for it to finish first.
type Streamer struct {
	opener Opener
	tokens transport.TokenProvider
	conv   *chat.Conversation
	opts   Options

	mu     sync.Mutex
	active *Session
}

func NewStreamer(opener Opener, tokens transport.TokenProvider, conv *chat.Conversation, opts Options) *Streamer {
	return &Streamer{
		opener: opener,
		tokens: tokens,
		conv:   conv,
		opts:   opts,
	}
}

func (st *Streamer) Conversation() *chat.Conversation {
	return st.conv
}

// Active returns the most recently started session, if any.
func (st *Streamer) Active() *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.active
}

// Send streams a reply to the conversation history followed by prompt. The
// prompt joins the conversation only once the stream is about to open, so a
// failed start leaves the history untouched.
func (st *Streamer) Send(ctx context.Context, prompt ...chat.MessageChunk) (*Session, error) {
	return st.start(ctx, nil, prompt, true)
}

// Start builds the outbound request for messages and begins streaming the
// reply into the conversation on a new goroutine. The returned session is
// already Active; transport failures surface through its State and Err.
func (st *Streamer) Start(ctx context.Context, messages []chat.MessageChunk) (*Session, error) {
	return st.start(ctx, messages, nil, false)
}

func (st *Streamer) start(ctx context.Context, messages, prompt []chat.MessageChunk, fromHistory bool) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if prev := st.active; prev != nil {
		prev.cancelWith(ErrSuperseded)
		<-prev.Done()
		st.active = nil
	}
	if fromHistory {
		messages = append(st.conv.Messages(), prompt...)
	}

	token, err := st.tokens.UserToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve user token: %w", err)
	}

	payload, err := BuildRequest(st.opts.Model, st.opts.SystemPrompt, token, messages).Encode()
	if err != nil {
		return nil, stream.NewAPIError("encode request", err)
	}

	sess := NewSession(uuid.NewString(), st.conv,
		WithModel(st.opts.Model),
		WithSentenceSink(st.opts.Sink),
	)
	runCtx, cancel := context.WithCancelCause(ctx)
	sess.mu.Lock()
	sess.cancel = cancel
	sess.mu.Unlock()
	if err := sess.Begin(); err != nil {
		cancel(err)
		return nil, err
	}
	for _, m := range prompt {
		st.conv.Append(m)
	}

	sess.logger.Debug().
		Int("messages", len(messages)).
		Int("body_bytes", len(payload)).
		Msg("stream started")

	st.active = sess
	go st.run(runCtx, cancel, sess, token, payload)
	return sess, nil
}

// Cancel aborts the active session, if any.
func (st *Streamer) Cancel() {
	if sess := st.Active(); sess != nil {
		sess.Cancel()
	}
}

func (st *Streamer) run(ctx context.Context, cancel context.CancelCauseFunc, sess *Session, token string, payload []byte) {
	defer close(sess.done)
	defer cancel(nil)

	body, err := st.opener.Open(ctx, token, payload)
	if err != nil {
		if ctx.Err() != nil {
			err = canceledError(context.Cause(ctx))
		}
		sess.Finish(err)
		st.record(sess)
		return
	}

	var archived chan struct{}
	if st.opts.Recorder != nil {
		tee, archive := stream.TeeBody(body)
		archived = make(chan struct{})
		go func() {
			defer close(archived)
			st.opts.Recorder.Archive(sess.ID(), archive)
		}()
		body = tee
	}

	sess.consume(ctx, body, st.opts.ReadTimeout)
	if archived != nil {
		<-archived
	}
	st.record(sess)
}

func (st *Streamer) record(sess *Session) {
	if st.opts.Recorder != nil {
		st.opts.Recorder.RecordEnd(sess.Summary())
	}
}
