// Package forgeerr defines the error taxonomy shared across the engine.
//
// Every fallible engine operation returns either nil or an *Error whose Kind
// identifies which of the documented failure classes occurred. Callers that
// need to branch on failure class use errors.As / Is against the sentinel
// Kind values below rather than matching on message text.
package forgeerr

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error into one of the documented failure modes.
type Kind string

const (
	// Config indicates a malformed or invalid manifest. Fatal, no work started.
	Config Kind = "config"
	// CyclicModules indicates a cycle in the workspace module graph.
	CyclicModules Kind = "cyclic_modules"
	// CyclicTasks indicates a cycle in the task graph.
	CyclicTasks Kind = "cyclic_tasks"
	// BadInputs indicates an unreadable source file or a symlink loop.
	BadInputs Kind = "bad_inputs"
	// DriverFailure indicates a non-zero exit or timeout from a language driver.
	DriverFailure Kind = "driver_failure"
	// CacheCorrupt indicates an integrity mismatch on a cache entry.
	CacheCorrupt Kind = "cache_corrupt"
	// RemoteTransient indicates a network or remote-store error, non-fatal.
	RemoteTransient Kind = "remote_transient"
	// Interrupted indicates the build was cancelled by the user.
	Interrupted Kind = "interrupted"
)

// ExitCode returns the process exit code documented for this error kind.
func (k Kind) ExitCode() int {
	switch k {
	case Config, CyclicModules, CyclicTasks:
		return 2
	case CacheCorrupt:
		return 3
	case Interrupted:
		return 130
	case BadInputs, DriverFailure:
		return 1
	default:
		return 1
	}
}

// Error is the concrete error type returned by engine operations.
type Error struct {
	Kind Kind
	// Path qualifies where the error occurred (a manifest key, a task ID, a
	// fingerprint hex string) for user-facing reporting.
	Path string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %s: %v", e.Kind, e.Path, e.Msg, e.Err)
		}
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Path, e.Msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, forgeerr.Sentinel(forgeerr.Config)) (etc.) to
// match by Kind alone, without requiring callers to construct a matching
// *Error value.
func (e *Error) Is(target error) bool {
	var k kindSentinel
	if errors.As(target, &k) {
		return e.Kind == Kind(k)
	}
	return false
}

// kindSentinel lets a bare Kind value be used as an errors.Is target.
type kindSentinel Kind

func (k kindSentinel) Error() string { return string(k) }

// Sentinel returns an error value that errors.Is matches against any *Error
// of the given Kind, e.g. `errors.Is(err, forgeerr.Sentinel(forgeerr.Config))`.
func Sentinel(k Kind) error { return kindSentinel(k) }

// New constructs an *Error with the given kind and message.
func New(k Kind, msg string) *Error {
	return &Error{Kind: k, Msg: msg}
}

// Newf constructs an *Error with a formatted message.
func Newf(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error that wraps an underlying cause.
func Wrap(k Kind, path, msg string, cause error) *Error {
	return &Error{Kind: k, Path: path, Msg: msg, Err: cause}
}

// KindOf returns the Kind of err if it is (or wraps) a *Error, and ok=false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}
