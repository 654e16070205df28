package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/namikmesic/canvas-stream/internal/stream"
)

var frameColumns = []string{"ts", "stream_id", "frame_index", "event_name", "action", "data_bytes", "raw_bytes"}

// frameRows builds COPY rows for frames. Payloads are reduced to their size.
func frameRows(streamID uuid.UUID, ts time.Time, frames []stream.Frame) [][]any {
	rows := make([][]any, len(frames))
	for i, f := range frames {
		rows[i] = []any{
			ts,
			streamID,
			f.Index,
			f.Event,
			stream.Classify(f).String(),
			len(f.Data),
			f.RawBytes,
		}
	}
	return rows
}

// InsertFramesJob creates a batch insert job for stream frames using COPY protocol.
func InsertFramesJob(streamID uuid.UUID, ts time.Time, frames []stream.Frame) WriteJob {
	return WriteJobFunc(func(ctx context.Context, db DB) error {
		_, err := db.CopyFrom(ctx,
			pgx.Identifier{"stream_frames"},
			frameColumns,
			pgx.CopyFromRows(frameRows(streamID, ts, frames)),
		)
		return err
	})
}
