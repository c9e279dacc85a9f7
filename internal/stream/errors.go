package stream

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidSource is returned when a request carries no usable source URI.
	ErrInvalidSource = errors.New("sourceUri is required")

	// ErrAlreadyRunning is returned by Start while a session is active.
	ErrAlreadyRunning = errors.New("stream is already running")

	// ErrNotRunning is returned by Stop when no session is active.
	ErrNotRunning = errors.New("no active stream to stop")

	// ErrStreamStartFailed wraps a supervisor failure during Start.
	ErrStreamStartFailed = errors.New("failed to start stream")

	// ErrStreamStopFailed wraps a supervisor failure during Stop. The session
	// is idle regardless; the transcoder may be orphaned.
	ErrStreamStopFailed = errors.New("failed to stop stream")

	// ErrSpawnFailed is returned when the transcoder cannot be launched or
	// exits before the warm-up delay elapses.
	ErrSpawnFailed = errors.New("transcoder failed to start")

	// ErrTerminateFailed is returned when the transcoder cannot be signalled
	// or does not exit within the stop timeout.
	ErrTerminateFailed = errors.New("transcoder failed to terminate")

	// ErrProbeFailed is returned when the probe tool exits non-zero.
	ErrProbeFailed = errors.New("source connection failed")

	// ErrProbeTimeout is returned when the probe exceeds its outer time bound.
	ErrProbeTimeout = errors.New("source connection timeout")

	// ErrMediaNotFound is returned for a missing or invalid media file name.
	ErrMediaNotFound = errors.New("media not found")
)

// Error carries one of the sentinel kinds above together with diagnostic text
// (typically captured stderr) and the underlying cause.
// errors.Is matches both the Kind and anything in the Err chain.
type Error struct {
	Kind   error
	Detail string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Detail returns the innermost diagnostic text attached to err, if any.
func Detail(err error) string {
	var detail string
	for err != nil {
		var se *Error
		if !errors.As(err, &se) {
			break
		}
		if se.Detail != "" {
			detail = se.Detail
		}
		err = se.Err
	}
	return detail
}
