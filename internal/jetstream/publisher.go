package jetstream

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/namikmesic/canvas-stream/internal/session"
	nats "github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Publisher archives raw stream bytes and fans sentences out over JetStream.
// It satisfies session.Recorder and session.SentenceSink.
type Publisher struct {
	js nats.JetStreamContext
}

func NewPublisher(js nats.JetStreamContext) *Publisher {
	return &Publisher{js: js}
}

// Archive publishes every chunk read from r on the stream's chunk subject. It
// always drains r so the tee feeding it never stalls.
func (p *Publisher) Archive(streamID string, r io.Reader) {
	subject := ChunkSubject(streamID)
	buf := make([]byte, 32*1024)
	failed := false

	for {
		n, err := r.Read(buf)
		if n > 0 && !failed {
			if _, perr := p.js.Publish(subject, buf[:n]); perr != nil {
				log.Warn().Err(perr).Str("stream_id", streamID).Msg("archive publish failed, dropping remaining chunks")
				failed = true
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug().Err(err).Str("stream_id", streamID).Msg("archive reader closed")
			}
			return
		}
	}
}

// RecordEnd publishes the session summary as the stream's done marker.
func (p *Publisher) RecordEnd(summary session.Summary) {
	data, err := json.Marshal(summary)
	if err != nil {
		log.Error().Err(err).Str("stream_id", summary.StreamID).Msg("marshal session summary")
		return
	}
	if _, err := p.js.Publish(DoneSubject(summary.StreamID), data); err != nil {
		log.Warn().Err(err).Str("stream_id", summary.StreamID).Msg("publish done marker failed")
	}
}

// Sentence publishes a completed sentence for speech consumers.
func (p *Publisher) Sentence(streamID, sentence string) {
	if _, err := p.js.Publish(SpeechSubject(streamID), []byte(sentence)); err != nil {
		log.Warn().Err(err).Str("stream_id", streamID).Msg("publish sentence failed")
	}
}
