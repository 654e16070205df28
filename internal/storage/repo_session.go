package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SessionRecord is one finished stream session. Message text is never stored.
type SessionRecord struct {
	ID            uuid.UUID
	StartedAt     time.Time
	EndedAt       time.Time
	Model         string
	State         string
	ErrorKind     string
	ErrorMessage  string
	FrameCount    int
	DeltaCount    int
	SentenceCount int
	ContentChars  int
}

func (r *SessionRecord) DurationMs() int {
	if r.EndedAt.IsZero() || r.EndedAt.Before(r.StartedAt) {
		return 0
	}
	return int(r.EndedAt.Sub(r.StartedAt).Milliseconds())
}

func InsertSessionJob(r *SessionRecord) WriteJob {
	return WriteJobFunc(func(ctx context.Context, db DB) error {
		_, err := db.Exec(ctx, `
			INSERT INTO stream_sessions (
				id, started_at, ended_at, model, state, error_kind, error_message,
				duration_ms, frame_count, delta_count, sentence_count, content_chars
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
			ON CONFLICT (id, started_at) DO NOTHING`,
			r.ID, r.StartedAt, nilIfZeroTime(r.EndedAt), nilIfEmpty(r.Model), r.State,
			nilIfEmpty(r.ErrorKind), nilIfEmpty(r.ErrorMessage),
			r.DurationMs(), r.FrameCount, r.DeltaCount, r.SentenceCount, r.ContentChars,
		)
		return err
	})
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nilIfZeroTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
