package pipeline

import (
	"errors"
	"fmt"
)

// Kind names the step a job failed in.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindDownload      Kind = "download"
	KindTranscription Kind = "transcription"
	KindPersistence   Kind = "persistence"
)

// Failure tags an error with the step it came from.
type Failure struct {
	Kind Kind
	Err  error
}

func (f *Failure) Error() string {
	return f.Err.Error()
}

func (f *Failure) Unwrap() error { return f.Err }

// Fail wraps err as a Failure of kind. A nil err stays nil.
func Fail(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Failure{Kind: kind, Err: err}
}

// Failf is Fail with a formatted cause.
func Failf(kind Kind, format string, args ...any) error {
	return &Failure{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost Failure in err's chain, or "" if
// there is none.
func KindOf(err error) Kind {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure.Kind
	}
	return ""
}
