package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/namikmesic/canvas-stream/internal/chat"
	"github.com/namikmesic/canvas-stream/internal/stream"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// State of a session. Completed and Failed are terminal.
type State int

const (
	StateIdle State = iota
	StateActive
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

var (
	ErrCanceled    = errors.New("stream canceled")
	ErrSuperseded  = errors.New("superseded by a newer stream")
	ErrNotIdle     = errors.New("session already started")
	errReadTimeout = errors.New("no data within read timeout")
	errStreamDone  = errors.New("stream done")
)

// SentenceSink receives each completed sentence once, e.g. for speech.
type SentenceSink interface {
	Sentence(streamID, sentence string)
}

// SentenceFunc adapts a function into a SentenceSink.
type SentenceFunc func(streamID, sentence string)

func (f SentenceFunc) Sentence(streamID, sentence string) {
	f(streamID, sentence)
}

// Summary describes a session for telemetry.
type Summary struct {
	StreamID     string    `json:"stream_id"`
	Model        string    `json:"model"`
	State        string    `json:"state"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at"`
	Frames       int       `json:"frames"`
	Deltas       int       `json:"deltas"`
	Sentences    int       `json:"sentences"`
	ContentChars int       `json:"content_chars"`
}

// Session is one request/response lifecycle. Its frame processing is
// serialized: Feed and Finish may be called from any goroutine, one at a time
// per session, and the pump goroutine started by a Streamer is the only
// caller in practice.
type Session struct {
	id        string
	model     string
	conv      *chat.Conversation
	parser    *stream.Parser
	segmenter *chat.Segmenter
	sink      SentenceSink
	logger    zerolog.Logger

	feedMu sync.Mutex

	mu        sync.Mutex
	state     State
	err       error
	startedAt time.Time
	endedAt   time.Time
	frames    int
	deltas    int
	cancel    context.CancelCauseFunc

	done chan struct{}
}

type Option func(*Session)

func WithSentenceSink(sink SentenceSink) Option {
	return func(s *Session) { s.sink = sink }
}

func WithModel(model string) Option {
	return func(s *Session) { s.model = model }
}

// NewSession creates an idle session that accumulates into conv under the
// message ID streamID.
func NewSession(streamID string, conv *chat.Conversation, opts ...Option) *Session {
	s := &Session{
		id:        streamID,
		conv:      conv,
		parser:    stream.NewParser(),
		segmenter: chat.NewSegmenter(),
		logger:    log.With().Str("stream_id", streamID).Logger(),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the failure reason once the session has failed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Sentences returns the sentences emitted so far, in order.
func (s *Session) Sentences() []string {
	s.feedMu.Lock()
	defer s.feedMu.Unlock()
	return s.segmenter.Seen()
}

// Done is closed once a Streamer's pump goroutine for this session has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the pump goroutine exits or ctx ends.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel aborts an in-flight stream. The session fails with a network error
// wrapping ErrCanceled unless it already reached a terminal state.
func (s *Session) Cancel() {
	s.cancelWith(ErrCanceled)
}

func (s *Session) cancelWith(cause error) {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel(cause)
	}
}

// Begin moves an idle session to Active.
func (s *Session) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return ErrNotIdle
	}
	s.state = StateActive
	s.startedAt = time.Now()
	return nil
}

// Feed processes one inbound chunk: every frame it completes is classified
// and deltas are accumulated into the conversation. Nothing happens unless
// the session is Active. A completion frame ends the session and the rest of
// the chunk is not processed.
func (s *Session) Feed(chunk []byte) {
	s.feedMu.Lock()
	defer s.feedMu.Unlock()

	if s.State() != StateActive {
		return
	}

	for _, f := range s.parser.Feed(chunk) {
		err := s.handleFrame(f)
		switch {
		case err == nil, errors.Is(err, stream.ErrIgnoredEvent):
			continue
		case errors.Is(err, errStreamDone):
			s.complete()
			return
		default:
			s.fail(err)
			return
		}
	}
}

// Finish reports the end of the transport. A nil error or io.EOF completes
// the session; anything else fails it with a network error.
func (s *Session) Finish(err error) {
	s.feedMu.Lock()
	defer s.feedMu.Unlock()

	switch s.State() {
	case StateCompleted, StateFailed:
		return
	}

	if err == nil || errors.Is(err, io.EOF) {
		if n := s.parser.Buffered(); n > 0 {
			s.logger.Debug().Int("bytes", n).Msg("discarding incomplete trailing frame")
		}
		s.complete()
		return
	}

	var se *stream.Error
	if !errors.As(err, &se) {
		err = stream.NewNetworkError("read stream", err)
	}
	s.fail(err)
}

func (s *Session) handleFrame(f stream.Frame) error {
	s.mu.Lock()
	s.frames++
	s.mu.Unlock()

	if !utf8.ValidString(f.Data) {
		return stream.NewAPIError("invalid encoding in "+f.Event+" frame", nil)
	}

	switch stream.Classify(f) {
	case stream.ActionDeliver:
		delta, err := stream.DecodeDelta(f.Data)
		if err != nil {
			return err
		}
		if delta == "" {
			return stream.ErrIgnoredEvent
		}
		content := s.conv.ApplyDelta(s.id, delta)
		s.mu.Lock()
		s.deltas++
		s.mu.Unlock()
		s.segment(content)
		return nil

	case stream.ActionLoading:
		s.mu.Lock()
		started := s.deltas > 0
		s.mu.Unlock()
		if !started {
			s.conv.ShowLoading()
		}
		return stream.ErrIgnoredEvent

	case stream.ActionComplete:
		return errStreamDone

	case stream.ActionFail:
		return stream.DecodeAPIError(f.Data)

	case stream.ActionUnrecognized:
		s.logger.Debug().Str("event", f.Event).Msg("unrecognized stream event")
		return stream.ErrIgnoredEvent
	}
	return stream.ErrIgnoredEvent
}

func (s *Session) segment(content string) {
	for _, sentence := range s.segmenter.Scan(content) {
		s.logger.Debug().Str("sentence", sentence).Msg("sentence ready")
		if s.sink != nil {
			s.sink.Sentence(s.id, sentence)
		}
	}
}

func (s *Session) complete() {
	if !s.terminate(StateCompleted, nil) {
		return
	}
	s.conv.ClearLoading()
	s.logger.Info().
		Int("messages", len(s.conv.Messages())).
		Int("sentences", len(s.segmenter.Seen())).
		Msg("stream completed")
}

func (s *Session) fail(err error) {
	if !s.terminate(StateFailed, err) {
		return
	}
	s.conv.ClearLoading()
	if errors.Is(err, ErrSuperseded) {
		s.logger.Info().Msg("stream superseded")
		return
	}
	s.logger.Error().Err(err).Str("kind", stream.KindOf(err).String()).Msg("stream failed")
}

// terminate records a terminal state; it reports false if one was already set.
func (s *Session) terminate(state State, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateCompleted || s.state == StateFailed {
		return false
	}
	s.state = state
	s.err = err
	s.endedAt = time.Now()
	return true
}

// Summary reports the session's counters and outcome.
func (s *Session) Summary() Summary {
	s.feedMu.Lock()
	sentences := len(s.segmenter.Seen())
	s.feedMu.Unlock()

	var chars int
	if m, ok := s.conv.Message(s.id); ok {
		chars = utf8.RuneCountInString(m.Content)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sum := Summary{
		StreamID:     s.id,
		Model:        s.model,
		State:        s.state.String(),
		StartedAt:    s.startedAt,
		EndedAt:      s.endedAt,
		Frames:       s.frames,
		Deltas:       s.deltas,
		Sentences:    sentences,
		ContentChars: chars,
	}
	if s.err != nil {
		sum.ErrorKind = stream.KindOf(s.err).String()
		sum.ErrorMessage = s.err.Error()
	}
	return sum
}

// consume reads body until the stream ends, feeding every chunk. A read
// that yields nothing for idle closes the stream with a network error.
func (s *Session) consume(ctx context.Context, body io.ReadCloser, idle time.Duration) {
	defer body.Close()

	// Unblock a pending Read once the context ends.
	stop := context.AfterFunc(ctx, func() { body.Close() })
	defer stop()

	var timer *time.Timer
	if idle > 0 {
		timer = time.AfterFunc(idle, func() { s.cancelWith(errReadTimeout) })
		defer timer.Stop()
	}

	buf := make([]byte, 32*1024)
	for {
		n, err := body.Read(buf)
		if timer != nil {
			timer.Reset(idle)
		}
		if n > 0 {
			s.Feed(buf[:n])
		}
		if st := s.State(); st != StateActive {
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				err = canceledError(context.Cause(ctx))
			}
			s.Finish(err)
			return
		}
	}
}

func canceledError(cause error) error {
	switch {
	case errors.Is(cause, errReadTimeout):
		return stream.NewNetworkError("read timeout", cause)
	case errors.Is(cause, ErrSuperseded):
		return stream.NewNetworkError("stream superseded", cause)
	case errors.Is(cause, ErrCanceled), errors.Is(cause, context.Canceled):
		return stream.NewNetworkError("stream canceled", cause)
	}
	return stream.NewNetworkError("stream aborted", cause)
}
