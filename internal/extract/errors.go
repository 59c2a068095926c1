package extract

import "errors"

var (
	// ErrEmptyInput is returned when the transcript text is empty after
	// trimming.
	ErrEmptyInput = errors.New("transcript text is empty")

	// ErrExtractionTimeout is returned when the text-understanding call
	// exceeds its deadline. Timeout-class failures are retried with backoff.
	ErrExtractionTimeout = errors.New("extraction call timed out")

	// ErrMalformedResponse is returned when the response cannot be parsed
	// into any subset of the expected schema. Indicates a schema mismatch,
	// not a transient failure; never retried.
	ErrMalformedResponse = errors.New("extraction response contained no usable fields")
)
