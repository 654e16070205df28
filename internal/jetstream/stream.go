package jetstream

import (
	"errors"
	"strings"
	"time"

	nats "github.com/nats-io/nats.go"
)

const (
	ChunkStream   = "CANVAS_CHUNKS"
	SpeechStream  = "CANVAS_SPEECH"
	ChunkPrefix   = "canvas.chunk."
	SpeechPrefix  = "canvas.speech."
	doneSuffix    = ".done"
	ConsumerName  = "canvas-telemetry"
	retentionTime = 24 * time.Hour
)

// EnsureStreams creates the chunk archive (work queue, consumed by the
// telemetry processor) and the speech stream (limits retention, any number of
// readers).
func EnsureStreams(js nats.JetStreamContext) error {
	configs := []*nats.StreamConfig{
		{
			Name:      ChunkStream,
			Subjects:  []string{ChunkPrefix + ">"},
			Storage:   nats.FileStorage,
			MaxAge:    retentionTime,
			Retention: nats.WorkQueuePolicy,
		},
		{
			Name:      SpeechStream,
			Subjects:  []string{SpeechPrefix + ">"},
			Storage:   nats.FileStorage,
			MaxAge:    time.Hour,
			Retention: nats.LimitsPolicy,
		},
	}
	for _, cfg := range configs {
		_, err := js.AddStream(cfg)
		if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) && !strings.Contains(err.Error(), "already exists") {
			return err
		}
	}
	return nil
}

func ChunkSubject(streamID string) string {
	return ChunkPrefix + streamID
}

func DoneSubject(streamID string) string {
	return ChunkPrefix + streamID + doneSuffix
}

func SpeechSubject(streamID string) string {
	return SpeechPrefix + streamID
}

// ParseChunkSubject returns the stream ID of a chunk or done subject and
// whether it is a done marker.
func ParseChunkSubject(subject string) (streamID string, done bool, ok bool) {
	rest, found := strings.CutPrefix(subject, ChunkPrefix)
	if !found || rest == "" {
		return "", false, false
	}
	if id, isDone := strings.CutSuffix(rest, doneSuffix); isDone {
		return id, true, id != ""
	}
	return rest, false, true
}
