package gemini

import "fmt"

// StreamError reports a response shape or API failure inside a stream.
type StreamError struct {
	Message string
	Cause   error
}

func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("gemini stream: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("gemini stream: %s", e.Message)
}

func (e *StreamError) Unwrap() error {
	return e.Cause
}

// mapGeminiError wraps SDK errors in a StreamError.
func mapGeminiError(err error) error {
	return &StreamError{Message: "generate content", Cause: err}
}
