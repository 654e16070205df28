package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/namikmesic/canvas-stream/internal/jetstream"
	"github.com/namikmesic/canvas-stream/internal/session"
	"github.com/namikmesic/canvas-stream/internal/storage"
	"github.com/namikmesic/canvas-stream/internal/stream"
	nats "github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// streams whose done marker never arrives are dropped after this long
const staleAfter = 30 * time.Minute

// Enqueuer accepts write jobs; *storage.BatchWriter satisfies it.
type Enqueuer interface {
	Enqueue(job storage.WriteJob)
}

// Processor turns the archived chunk stream into session and frame telemetry.
type Processor struct {
	writer Enqueuer

	mu      sync.Mutex
	streams map[string]*streamState
}

type streamState struct {
	parser    *stream.Parser
	frames    []stream.Frame
	firstSeen time.Time
	lastSeen  time.Time
}

func New(writer Enqueuer) *Processor {
	return &Processor{
		writer:  writer,
		streams: make(map[string]*streamState),
	}
}

// StartConsumer consumes the chunk archive with a durable consumer until ctx
// ends.
func (p *Processor) StartConsumer(ctx context.Context, js nats.JetStreamContext) error {
	sub, err := js.Subscribe(jetstream.ChunkPrefix+">", func(msg *nats.Msg) {
		p.HandleMessage(msg.Subject, msg.Data)
		if err := msg.Ack(); err != nil {
			log.Warn().Err(err).Str("subject", msg.Subject).Msg("ack failed")
		}
	}, nats.Durable(jetstream.ConsumerName), nats.ManualAck(), nats.DeliverAll())
	if err != nil {
		return fmt.Errorf("subscribe chunk archive: %w", err)
	}

	<-ctx.Done()
	return sub.Drain()
}

// HandleMessage processes one archived message: a raw chunk is re-parsed into
// frames, a done marker flushes the stream's telemetry.
func (p *Processor) HandleMessage(subject string, data []byte) {
	streamID, done, ok := jetstream.ParseChunkSubject(subject)
	if !ok {
		log.Debug().Str("subject", subject).Msg("ignoring message on unknown subject")
		return
	}
	if done {
		p.finish(streamID, data)
		return
	}

	now := time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.streams[streamID]
	if st == nil {
		st = &streamState{parser: stream.NewParser(), firstSeen: now}
		p.streams[streamID] = st
	}
	st.frames = append(st.frames, st.parser.Feed(data)...)
	st.lastSeen = now
}

func (p *Processor) finish(streamID string, data []byte) {
	var sum session.Summary
	if err := json.Unmarshal(data, &sum); err != nil {
		log.Warn().Err(err).Str("stream_id", streamID).Msg("malformed done marker")
	}

	now := time.Now()
	p.mu.Lock()
	st := p.streams[streamID]
	delete(p.streams, streamID)
	p.sweepLocked(now)
	p.mu.Unlock()

	id, err := uuid.Parse(streamID)
	if err != nil {
		log.Warn().Err(err).Str("stream_id", streamID).Msg("stream id is not a uuid, skipping telemetry")
		return
	}

	startedAt := sum.StartedAt
	if startedAt.IsZero() && st != nil {
		startedAt = st.firstSeen
	}
	if startedAt.IsZero() {
		startedAt = now
	}
	state := sum.State
	if state == "" {
		state = "unknown"
	}

	p.writer.Enqueue(storage.InsertSessionJob(&storage.SessionRecord{
		ID:            id,
		StartedAt:     startedAt,
		EndedAt:       sum.EndedAt,
		Model:         sum.Model,
		State:         state,
		ErrorKind:     sum.ErrorKind,
		ErrorMessage:  sum.ErrorMessage,
		FrameCount:    sum.Frames,
		DeltaCount:    sum.Deltas,
		SentenceCount: sum.Sentences,
		ContentChars:  sum.ContentChars,
	}))

	var frames int
	if st != nil && len(st.frames) > 0 {
		frames = len(st.frames)
		p.writer.Enqueue(storage.InsertFramesJob(id, startedAt, st.frames))
	}

	log.Debug().
		Str("stream_id", streamID).
		Str("state", state).
		Int("archived_frames", frames).
		Int("deltas", sum.Deltas).
		Msg("stream telemetry recorded")
}

func (p *Processor) sweepLocked(now time.Time) {
	for id, st := range p.streams {
		if now.Sub(st.lastSeen) > staleAfter {
			log.Warn().Str("stream_id", id).Int("frames", len(st.frames)).Msg("dropping stream without done marker")
			delete(p.streams, id)
		}
	}
}

// Pending reports how many streams are waiting for their done marker.
func (p *Processor) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.streams)
}
