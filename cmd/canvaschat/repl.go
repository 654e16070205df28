package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/namikmesic/canvas-stream/internal/chat"
	"github.com/namikmesic/canvas-stream/internal/session"
	"github.com/rs/zerolog/log"
)

const imageCommand = "/image "

// repl sends each input line as a prompt and waits for the streamed reply.
// A line starting with "/image " attaches an image URL to the next prompt.
func repl(ctx context.Context, streamer *session.Streamer, in io.Reader, out *printer) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	var pending []chat.MessageChunk
	for {
		out.Prompt()
		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			line = strings.TrimSpace(l)
		}

		if line == "" {
			continue
		}
		if url, ok := strings.CutPrefix(line, imageCommand); ok {
			pending = append(pending, chat.NewUserImage(strings.TrimSpace(url)))
			continue
		}

		prompt := append(pending, chat.NewUserText(line))
		pending = nil

		sess, err := streamer.Send(ctx, prompt...)
		if err != nil {
			log.Error().Err(err).Msg("failed to start stream")
			continue
		}
		if err := sess.Wait(ctx); err != nil {
			// interrupted; the deferred shutdown cancels the stream
			return nil
		}
		out.EndReply()
		if err := sess.Err(); err != nil {
			out.Failure(err)
		}
	}
}

// printer renders assistant text as it grows and completed sentences.
type printer struct {
	mu      sync.Mutex
	w       io.Writer
	printed map[string]int
	open    bool
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w, printed: make(map[string]int)}
}

// Observe prints the unseen suffix of every assistant message.
func (p *printer) Observe(messages []chat.MessageChunk) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range messages {
		if m.Role != chat.RoleAssistant {
			continue
		}
		n := p.printed[m.ID]
		if len(m.Content) <= n {
			continue
		}
		fmt.Fprint(p.w, m.Content[n:])
		p.printed[m.ID] = len(m.Content)
		p.open = true
	}
}

// Sentence is logged at debug level; speech consumers read them from NATS.
func (p *printer) Sentence(streamID, sentence string) {
	log.Debug().Str("stream_id", streamID).Str("sentence", sentence).Msg("speak")
}

func (p *printer) Prompt() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.w, "> ")
}

func (p *printer) EndReply() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.open {
		fmt.Fprintln(p.w)
		p.open = false
	}
}

func (p *printer) Failure(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "error: %v\n", err)
}
