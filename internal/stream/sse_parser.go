package stream

import (
	"bytes"
	"strings"
)

var (
	crlf       = []byte("\r\n")
	lf         = []byte("\n")
	frameDelim = []byte("\n\n")
)

const (
	eventField = "event:"
	dataField  = "data:"
	idField    = "id:"
)

// Parser carries not-yet-framed bytes across chunks and cuts complete SSE
// frames out of them. It is not safe for concurrent use; a session feeds it
// from a single goroutine.
type Parser struct {
	buf        []byte
	searchFrom int // offset in buf already searched for a frame terminator
	frameIndex int
}

func NewParser() *Parser {
	return &Parser{}
}

// Feed appends chunk to the buffered tail and returns every frame completed by
// it, in arrival order. Incomplete trailing data stays buffered untouched.
// Feeding nil re-examines nothing and returns no frames.
func (p *Parser) Feed(chunk []byte) []Frame {
	if len(chunk) > 0 {
		p.appendNormalized(chunk)
	}

	var frames []Frame
	for {
		idx := bytes.Index(p.buf[p.searchFrom:], frameDelim)
		if idx == -1 {
			// Keep the last two bytes in range: a trailing "\n\r" only becomes
			// "\n\n" once the next chunk supplies the "\n".
			p.searchFrom = max(len(p.buf)-2, 0)
			break
		}

		end := p.searchFrom + idx
		block := string(p.buf[:end])
		consumed := end + len(frameDelim)
		p.buf = p.buf[consumed:]
		p.searchFrom = 0

		frame, ok := parseBlock(block)
		if !ok {
			continue
		}
		p.frameIndex++
		frame.Index = p.frameIndex
		frame.RawBytes = consumed
		frames = append(frames, frame)
	}

	if len(p.buf) == 0 {
		p.buf = p.buf[:0:0]
	}
	return frames
}

// Buffered reports how many bytes are held waiting for a frame terminator.
func (p *Parser) Buffered() int {
	return len(p.buf)
}

// appendNormalized appends chunk and rewrites CRLF to LF in the new region,
// including a pair split between the previous chunk and this one.
func (p *Parser) appendNormalized(chunk []byte) {
	start := len(p.buf)
	if start > 0 && p.buf[start-1] == '\r' {
		start--
	}
	p.buf = append(p.buf, chunk...)
	if bytes.Contains(p.buf[start:], crlf) {
		tail := bytes.ReplaceAll(p.buf[start:], crlf, lf)
		p.buf = append(p.buf[:start], tail...)
	}
}

// parseBlock turns one blank-line-delimited block into a Frame. Blocks with
// neither an event name nor data (comments, stray blank lines) yield false.
func parseBlock(block string) (Frame, bool) {
	var (
		frame    Frame
		data     []string
		inData   bool
		hasEvent bool
	)

	for _, line := range strings.Split(block, "\n") {
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, ":"):
			continue
		case strings.HasPrefix(line, eventField):
			frame.Event = strings.TrimSpace(fieldValue(line, eventField))
			hasEvent = true
			inData = false
		case strings.HasPrefix(line, dataField):
			data = append(data, fieldValue(line, dataField))
			inData = true
		case strings.HasPrefix(line, idField):
			frame.ID = fieldValue(line, idField)
		case inData:
			// continuation of a payload that spans lines
			data = append(data, line)
		}
	}

	if !hasEvent && len(data) == 0 {
		return Frame{}, false
	}
	frame.Data = collapseDataPrefix(strings.Join(data, "\n"))
	return frame, true
}

// fieldValue strips the field name and the single optional space after it.
func fieldValue(line, field string) string {
	v := line[len(field):]
	return strings.TrimPrefix(v, " ")
}

// collapseDataPrefix removes repeated "data: " prefixes some backends emit.
func collapseDataPrefix(payload string) string {
	for strings.HasPrefix(payload, dataField) {
		payload = fieldValue(payload, dataField)
	}
	return payload
}
