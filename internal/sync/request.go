package sync

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRequest is returned for requests that violate their invariants
var ErrInvalidRequest = errors.New("invalid request")

// RequestKind selects the pipeline a request runs
type RequestKind int

const (
	// KindLogin authenticates and yields a session key
	KindLogin RequestKind = iota
	// KindSync runs the sync pipeline
	KindSync
)

// String returns the name of the kind
func (k RequestKind) String() string {
	if k == KindLogin {
		return "login"
	}
	return "sync"
}

// ConflictResolution names a full sync direction
type ConflictResolution int

const (
	// ResolutionNone means no full sync was chosen
	ResolutionNone ConflictResolution = iota
	// ResolutionFullUpload replaces the remote collection with the local one
	ResolutionFullUpload
	// ResolutionFullDownload replaces the local collection with the remote one
	ResolutionFullDownload
)

// String returns the configuration name of the resolution
func (r ConflictResolution) String() string {
	switch r {
	case ResolutionFullUpload:
		return "upload"
	case ResolutionFullDownload:
		return "download"
	default:
		return ""
	}
}

// ParseResolution parses "upload", "download" or an empty string
func ParseResolution(s string) (ConflictResolution, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return ResolutionNone, nil
	case "upload":
		return ResolutionFullUpload, nil
	case "download":
		return ResolutionFullDownload, nil
	default:
		return ResolutionNone, fmt.Errorf("unknown conflict resolution %q (expected upload or download)", s)
	}
}

// Credentials are the user's login secrets
type Credentials struct {
	Username string
	Password string
}

// HostRoute hints which server shard holds the user's data
type HostRoute struct {
	HostNum int
}

// Request is an immutable description of one job
type Request struct {
	Kind               RequestKind
	Credentials        Credentials
	SessionKey         string
	SyncMedia          bool
	ConflictResolution ConflictResolution
	FallbackResolution ConflictResolution
	HostRoute          HostRoute
	AllowOffline       bool
}

// Validate checks the request invariants
func (r Request) Validate() error {
	switch r.Kind {
	case KindLogin:
		if r.Credentials.Username == "" || r.Credentials.Password == "" {
			return fmt.Errorf("%w: login requires a username and password", ErrInvalidRequest)
		}
	case KindSync:
		if r.SessionKey == "" {
			return fmt.Errorf("%w: sync requires a session key", ErrInvalidRequest)
		}
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidRequest, r.Kind)
	}
	if r.ConflictResolution < ResolutionNone || r.ConflictResolution > ResolutionFullDownload {
		return fmt.Errorf("%w: unknown conflict resolution %d", ErrInvalidRequest, r.ConflictResolution)
	}
	if r.FallbackResolution < ResolutionNone || r.FallbackResolution > ResolutionFullDownload {
		return fmt.Errorf("%w: unknown fallback resolution %d", ErrInvalidRequest, r.FallbackResolution)
	}
	if r.HostRoute.HostNum < 0 {
		return fmt.Errorf("%w: host number must not be negative", ErrInvalidRequest)
	}
	return nil
}
