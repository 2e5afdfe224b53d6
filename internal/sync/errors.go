package sync

import (
	"errors"
	"syscall"

	"github.com/studykit/colsync/internal/transport"
)

var (
	// ErrUserCancelled is returned by drivers that stopped at a cancellation checkpoint
	ErrUserCancelled = errors.New("sync cancelled by user")

	// ErrResourceExhausted means memory or storage ran out
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrCollectionUnavailable means the collection could not be opened for sync
	ErrCollectionUnavailable = errors.New("collection unavailable")
)

// Error is a failure that already knows its place in the outcome taxonomy
type Error struct {
	Err     error
	Message string
	Kind    OutcomeKind
	Reason  string
	Code    int
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Rejected returns an *Error classified as a server rejection
func Rejected(code int, reason, message string) *Error {
	return &Error{Message: message, Kind: OutcomeServerRejected, Reason: reason, Code: code}
}

// IsTransient reports whether err is ordinary network flakiness
func IsTransient(err error) bool {
	return transport.IsTransient(err)
}

// IsResourceExhausted reports whether err means memory or storage ran out
func IsResourceExhausted(err error) bool {
	return errors.Is(err, ErrResourceExhausted) ||
		errors.Is(err, transport.ErrResponseTooLarge) ||
		errors.Is(err, syscall.ENOMEM) ||
		errors.Is(err, syscall.ENOSPC)
}

// Classify maps an error onto the outcome taxonomy
func Classify(err error) Outcome {
	if err == nil {
		return Success(false)
	}

	if errors.Is(err, ErrUserCancelled) {
		return UserCancelled()
	}

	var syncErr *Error
	if errors.As(err, &syncErr) {
		return Outcome{
			Kind:   syncErr.Kind,
			Reason: syncErr.Reason,
			Code:   syncErr.Code,
			Detail: syncErr.Message,
			Err:    err,
		}
	}

	var urlErr *transport.URLError
	if errors.As(err, &urlErr) {
		return Outcome{Kind: OutcomeCustomServerURLRejected, Detail: urlErr.URL, Err: err}
	}

	if IsResourceExhausted(err) {
		return Outcome{Kind: OutcomeOutOfMemory, Detail: err.Error(), Err: err}
	}

	if IsTransient(err) {
		return Outcome{Kind: OutcomeNetworkError, Detail: transport.KindOf(err).String(), Err: err}
	}

	var httpErr *transport.HTTPError
	if errors.As(err, &httpErr) {
		return Outcome{
			Kind:   OutcomeServerRejected,
			Code:   httpErr.StatusCode,
			Reason: ReasonHTTPStatus,
			Detail: httpErr.Message,
			Err:    err,
		}
	}

	return UnknownFailure(err.Error(), err)
}
