package dataset

import (
	"errors"
	"fmt"
)

var (
	ErrMissingFile     = errors.New("split file does not exist")
	ErrMalformedRecord = errors.New("malformed record")
	ErrUnknownSplit    = errors.New("unknown split")
)

// RecordError describes a record that could not be turned into an Example.
type RecordError struct {
	Split Split
	// Line is the 1-based line number in the split file.
	Line  int
	Field string
	Err   error
}

func (e *RecordError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s line %d: field %q: %v", e.Split, e.Line, e.Field, e.Err)
	}
	return fmt.Sprintf("%s line %d: %v", e.Split, e.Line, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

func missingField(split Split, line int, field string) error {
	return &RecordError{
		Split: split,
		Line:  line,
		Field: field,
		Err:   fmt.Errorf("%w: required field missing", ErrMalformedRecord),
	}
}
