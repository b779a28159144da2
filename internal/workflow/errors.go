package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrNoFiles is returned when a depot path holds no files to sync.
	ErrNoFiles = errors.New("no files found in depot path")
	// ErrDeclined is returned when no submit reason was given.
	ErrDeclined = errors.New("no reason given, submission cancelled")
	// ErrNoUser is returned when the current p4 user cannot be determined.
	ErrNoUser = errors.New("could not determine the current p4 user")
	// ErrUnreachable is wrapped when the server does not answer the connection probe.
	ErrUnreachable = errors.New("unable to connect to P4 server")
	// ErrLoginRequired is returned when a login is needed but no password source exists.
	ErrLoginRequired = errors.New("p4 login required")
)

// StepError reports the workflow step that failed and the tool's stderr.
type StepError struct {
	Op     Op
	State  State
	Stderr string
	// Change is the changelist left open by the failure, if any.
	Change int
	Err    error
}

func (e *StepError) Error() string {
	msg := fmt.Sprintf("%s failed while %s", e.Op, e.State)
	switch {
	case e.Stderr != "":
		msg += ": " + e.Stderr
	case e.Err != nil:
		msg += ": " + e.Err.Error()
	}
	if e.Change > 0 {
		msg += fmt.Sprintf(" (changelist %d left open)", e.Change)
	}
	return msg
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// FilesystemError reports a local file operation that failed.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error {
	return e.Err
}
