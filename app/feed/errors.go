package feed

import (
	"fmt"
)

// ParseError indicates a payload that could not be interpreted as an
// RSS or Atom feed.
type ParseError struct {
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse feed: %v", e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// ExtractionError indicates a failed article fetch or a page with no
// readable main content.
type ExtractionError struct {
	Message string
	Cause   error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}
