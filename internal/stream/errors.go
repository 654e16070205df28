package stream

import (
	"errors"
	"fmt"
)

// Kind classifies a terminal stream failure.
type Kind int

const (
	KindNone Kind = iota
	KindNetwork
	KindParsing
	KindAPI
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network_error"
	case KindParsing:
		return "parsing_error"
	case KindAPI:
		return "api_error"
	}
	return "none"
}

// ErrIgnoredEvent means a frame needs no action. It is control flow only and
// is never surfaced to callers or logged as a failure.
var ErrIgnoredEvent = errors.New("ignored event")

// Error is a terminal failure of a stream.
type Error struct {
	Kind        Kind
	Description string
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Description, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Description)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewNetworkError(description string, err error) *Error {
	return &Error{Kind: KindNetwork, Description: description, Err: err}
}

func NewParsingError(description string, err error) *Error {
	return &Error{Kind: KindParsing, Description: description, Err: err}
}

func NewAPIError(description string, err error) *Error {
	return &Error{Kind: KindAPI, Description: description, Err: err}
}

// KindOf returns the Kind of err, or KindNone if err is not a stream Error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindNone
}
