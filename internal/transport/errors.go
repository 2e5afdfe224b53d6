// Package transport provides the request/response exchange used by every
// sync phase, together with a typed classification of transport failures.
package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
)

// ErrResponseTooLarge is returned when a response body exceeds the configured limit.
var ErrResponseTooLarge = errors.New("response exceeds maximum allowed size")

// ErrorKind identifies the class of a transport failure
type ErrorKind int

const (
	// KindUnknown is a failure that could not be attributed to a known network condition
	KindUnknown ErrorKind = iota
	// KindTimeout means an I/O operation timed out
	KindTimeout
	// KindConnectionReset means the peer reset or aborted the connection
	KindConnectionReset
	// KindConnectionRefused means no connection could be established with the host
	KindConnectionRefused
	// KindTLSFailure means the TLS handshake or certificate verification failed
	KindTLSFailure
	// KindDNSFailure means the host name could not be resolved
	KindDNSFailure
	// KindInterrupted means the exchange stopped before the response was complete
	KindInterrupted
	// KindDeadlineReached means the caller's deadline expired
	KindDeadlineReached
	// KindProtocol means the remote answered with something the client cannot interpret
	KindProtocol
)

// String returns a stable name for the kind
func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnectionReset:
		return "connection reset"
	case KindConnectionRefused:
		return "connection refused"
	case KindTLSFailure:
		return "tls failure"
	case KindDNSFailure:
		return "dns failure"
	case KindInterrupted:
		return "interrupted"
	case KindDeadlineReached:
		return "deadline reached"
	case KindProtocol:
		return "protocol error"
	default:
		return "unknown"
	}
}

// Transient reports whether failures of this kind are ordinary network flakiness
func (k ErrorKind) Transient() bool {
	return k != KindUnknown && k != KindProtocol
}

// Error is a classified transport failure
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is, or wraps, a transient transport failure
func IsTransient(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind.Transient()
}

// KindOf returns the kind of a classified transport error, or KindUnknown
func KindOf(err error) ErrorKind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindUnknown
}

// Classify wraps err in an *Error describing what kind of failure it is.
// Errors that are already classified are returned unchanged.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return err
	}
	return &Error{Kind: detectKind(err), Op: op, Err: err}
}

func detectKind(err error) ErrorKind {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return KindDeadlineReached
	case errors.Is(err, context.Canceled):
		return KindInterrupted
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindDNSFailure
	}

	if isTLSError(err) {
		return KindTLSFailure
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNRESET, syscall.ECONNABORTED, syscall.EPIPE:
			return KindConnectionReset
		case syscall.ECONNREFUSED, syscall.EHOSTUNREACH, syscall.ENETUNREACH:
			return KindConnectionRefused
		case syscall.ETIMEDOUT:
			return KindTimeout
		}
	}

	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return KindInterrupted
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	return KindUnknown
}

func isTLSError(err error) bool {
	var (
		verifyErr    *tls.CertificateVerificationError
		recordErr    tls.RecordHeaderError
		alertErr     tls.AlertError
		authorityErr x509.UnknownAuthorityError
		hostErr      x509.HostnameError
		invalidErr   x509.CertificateInvalidError
	)
	return errors.As(err, &verifyErr) ||
		errors.As(err, &recordErr) ||
		errors.As(err, &alertErr) ||
		errors.As(err, &authorityErr) ||
		errors.As(err, &hostErr) ||
		errors.As(err, &invalidErr)
}

// HTTPError represents an HTTP error with status code and message
type HTTPError struct {
	StatusCode int
	Message    string
	URL        string
}

// NewHTTPError creates a new HTTP error
func NewHTTPError(statusCode int, url, message string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		URL:        url,
	}
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s (URL: %s)", e.StatusCode, e.Message, e.URL)
}

// URLError reports a sync endpoint that cannot be used as configured
type URLError struct {
	URL string
	Err error
}

// Error implements the error interface
func (e *URLError) Error() string {
	return fmt.Sprintf("invalid sync endpoint %q: %v", e.URL, e.Err)
}

// Unwrap returns the underlying error
func (e *URLError) Unwrap() error {
	return e.Err
}
