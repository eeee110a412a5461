package gcode

import "fmt"

// MalformedParameterError reports a parameter token whose value portion is
// not numeric. Under the permissive decode mode the offending record is
// classified Unknown and the stream continues; under the strict mode the
// error fails the whole stream.
type MalformedParameterError struct {
	Line  int
	Token string
}

// Error implements the error interface.
func (e *MalformedParameterError) Error() string {
	return fmt.Sprintf("line %d: malformed parameter %q", e.Line, e.Token)
}

// NewMalformedParameter creates a malformed parameter error.
func NewMalformedParameter(line int, token string) *MalformedParameterError {
	return &MalformedParameterError{Line: line, Token: token}
}

// MissingRequiredFieldError reports a coordinate-tuple access against a
// record for which the named field was never set anywhere in the stream.
// Resolution itself never raises it; only the accessor does.
type MissingRequiredFieldError struct {
	Field string
	Seq   Label
}

// Error implements the error interface.
func (e *MissingRequiredFieldError) Error() string {
	return fmt.Sprintf("record %s: field %s was never set in the stream", e.Seq, e.Field)
}

// NewMissingRequiredField creates a missing field error.
func NewMissingRequiredField(field string, seq Label) *MissingRequiredFieldError {
	return &MissingRequiredFieldError{Field: field, Seq: seq}
}

// MergeCursorExhaustedError reports that one stream ran out of records while
// a height was still being matched during a merge. The condition is logged
// and merging continues with the other stream.
type MergeCursorExhaustedError struct {
	Stream string
	Height float64
}

// Error implements the error interface.
func (e *MergeCursorExhaustedError) Error() string {
	return fmt.Sprintf("stream %s exhausted while matching height %v", e.Stream, e.Height)
}

// NewMergeCursorExhausted creates a cursor exhaustion error.
func NewMergeCursorExhausted(stream string, height float64) *MergeCursorExhaustedError {
	return &MergeCursorExhaustedError{Stream: stream, Height: height}
}
