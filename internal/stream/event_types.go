package stream

import (
	"encoding/json"
	"strings"
)

// Frame is one complete event:/data: unit cut from the stream.
type Frame struct {
	Index    int    // ordinal within this session's stream
	Event    string // response.output_text.delta, response.completed, etc.
	Data     string // payload, continuation lines joined with "\n"
	ID       string // id: field, if any
	RawBytes int    // bytes this frame occupied on the wire after CRLF normalization
}

// Event names emitted by the responses endpoint.
const (
	EventCreated          = "response.created"
	EventInProgress       = "response.in_progress"
	EventOutputItemAdded  = "response.output_item.added"
	EventOutputItemDone   = "response.output_item.done"
	EventContentPartAdded = "response.content_part.added"
	EventContentPartDone  = "response.content_part.done"
	EventOutputTextDelta  = "response.output_text.delta"
	EventOutputTextDone   = "response.output_text.done"
	EventCompleted        = "response.completed"
	EventFailed           = "response.failed"
	EventError            = "error"
)

// DoneMarker is the data payload some backends send instead of response.completed.
const DoneMarker = "[DONE]"

const contextLengthExceeded = "context_length_exceeded"

// Action is what a session should do with a frame.
type Action int

const (
	ActionIgnore Action = iota
	ActionUnrecognized
	ActionLoading
	ActionDeliver
	ActionComplete
	ActionFail
)

func (a Action) String() string {
	switch a {
	case ActionIgnore:
		return "ignore"
	case ActionUnrecognized:
		return "unrecognized"
	case ActionLoading:
		return "loading"
	case ActionDeliver:
		return "deliver"
	case ActionComplete:
		return "complete"
	case ActionFail:
		return "fail"
	}
	return "unknown"
}

// Classify maps a frame to an Action. Lifecycle events carry no user-visible
// content and are ignored; only text deltas are delivered.
func Classify(f Frame) Action {
	if strings.TrimSpace(f.Data) == DoneMarker {
		return ActionComplete
	}

	switch f.Event {
	case EventOutputTextDelta:
		return ActionDeliver
	case EventInProgress:
		return ActionLoading
	case EventCompleted:
		return ActionComplete
	case EventError, EventFailed:
		return ActionFail
	case EventCreated,
		EventOutputItemAdded, EventOutputItemDone,
		EventContentPartAdded, EventContentPartDone,
		EventOutputTextDone:
		return ActionIgnore
	}
	return ActionUnrecognized
}

// OutputTextDelta is the payload of a response.output_text.delta frame.
type OutputTextDelta struct {
	Type           string  `json:"type"`
	SequenceNumber int     `json:"sequence_number"`
	ItemID         string  `json:"item_id"`
	OutputIndex    int     `json:"output_index"`
	ContentIndex   int     `json:"content_index"`
	Delta          *string `json:"delta"`
}

// DecodeDelta extracts the text fragment of a delivered frame. An empty
// payload or a missing/empty delta field returns "" with no error; a payload
// that is not a JSON object returns a parsing error.
func DecodeDelta(data string) (string, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return "", nil
	}

	var ev OutputTextDelta
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return "", NewParsingError("decode output_text delta", err)
	}
	if ev.Delta == nil {
		return "", nil
	}
	return *ev.Delta, nil
}

// ErrorBody is the error object carried by error and response.failed frames
// and by non-2xx response bodies.
type ErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

type errorPayload struct {
	ErrorBody
	Error    *ErrorBody `json:"error"`
	Response *struct {
		Error *ErrorBody `json:"error"`
	} `json:"response"`
}

// DecodeAPIError builds an API error from an error payload. Payloads that do
// not decode still produce an error carrying the raw text.
func DecodeAPIError(data string) *Error {
	if strings.Contains(data, contextLengthExceeded) {
		return NewAPIError("context length exceeded", nil)
	}

	var p errorPayload
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return NewAPIError(strings.TrimSpace(data), nil)
	}

	body := &p.ErrorBody
	switch {
	case p.Error != nil:
		body = p.Error
	case p.Response != nil && p.Response.Error != nil:
		body = p.Response.Error
	}
	if body.Message == "" {
		return NewAPIError(strings.TrimSpace(data), nil)
	}
	return NewAPIError(body.Message, nil)
}
