// Package auth is the reference Authenticator: it trades a username and
// password for the opaque host key used by every later exchange.
package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/studykit/colsync/internal/sync"
	"github.com/studykit/colsync/internal/sync/remote"
	"github.com/studykit/colsync/internal/transport"
)

// Authenticator implements sync.Authenticator over the transport capability
type Authenticator struct {
	exchanger transport.Exchanger
}

// New creates an Authenticator
func New(exchanger transport.Exchanger) *Authenticator {
	return &Authenticator{exchanger: exchanger}
}

// Login exchanges creds for a session key
func (a *Authenticator) Login(ctx context.Context, creds sync.Credentials, route sync.HostRoute) (sync.LoginResult, error) {
	resp, err := remote.NewAnonymous(a.exchanger, route).HostKey(ctx, creds.Username, creds.Password)
	if err != nil {
		return sync.LoginResult{}, err
	}
	if resp.Key == "" {
		slog.WarnContext(ctx, "Remote accepted login without returning a host key", "username", creds.Username)
		return sync.LoginResult{}, sync.Rejected(http.StatusOK, sync.ReasonInvalidHostKey, "remote returned an empty host key")
	}
	return sync.LoginResult{SessionKey: resp.Key, Username: creds.Username}, nil
}
