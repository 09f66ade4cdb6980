package common

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Common error types used across rpmdb packages
var (
	ErrNotFound          = errors.New("not found")
	ErrCorrupt           = errors.New("database corrupt")
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrStaleFingerprint  = errors.New("fingerprint outlived its cache")
	ErrClosed            = errors.New("database closed")
)

// Status is the integer result code used at this layer's boundary:
// 0 found/success, 1 not found/empty, 2 hard error.
type Status int

const (
	StatusOK       Status = 0
	StatusNotFound Status = 1
	StatusFail     Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotFound:
		return "notfound"
	default:
		return "fail"
	}
}

// StatusOf folds an error into a Status. Caller errors count as not found.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidArgument):
		return StatusNotFound
	default:
		return StatusFail
	}
}

// IsNotFound reports whether err is an ordinary miss rather than a failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// WrapError wraps an error with additional context
func WrapError(err error, message string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	context := fmt.Sprintf(message, args...)
	return fmt.Errorf("%s: %w", context, err)
}

// LogAndWrapError logs an error at the given level and wraps it with context
func LogAndWrapError(log zerolog.Logger, err error, level zerolog.Level, message string, args ...interface{}) error {
	if err == nil {
		return nil
	}

	context := fmt.Sprintf(message, args...)
	log.WithLevel(level).Err(err).Msg(context)

	return fmt.Errorf("%s: %w", context, err)
}

// Corruptf reports a hard database error wrapping ErrCorrupt.
func Corruptf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrCorrupt)
}
