package transport

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// DefaultProbeTimeout bounds a single reachability probe
const DefaultProbeTimeout = 3 * time.Second

// DialMonitor decides connectivity by opening a TCP connection to the sync host
type DialMonitor struct {
	address string
	timeout time.Duration
	tries   uint
	dial    func(ctx context.Context, network, address string) (net.Conn, error)
}

// NewDialMonitor creates a monitor probing address (host:port)
func NewDialMonitor(address string, timeout time.Duration) *DialMonitor {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	d := &net.Dialer{}
	return &DialMonitor{
		address: address,
		timeout: timeout,
		tries:   2,
		dial:    d.DialContext,
	}
}

// Online reports whether the sync host accepted a connection
func (m *DialMonitor) Online(ctx context.Context) bool {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()
		conn, err := m.dial(probeCtx, "tcp", m.address)
		if err != nil {
			return struct{}{}, err
		}
		_ = conn.Close()
		return struct{}{}, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(200*time.Millisecond)),
		backoff.WithMaxTries(m.tries),
	)
	if err != nil {
		slog.Debug("Sync host unreachable", "address", m.address, "error", err)
		return false
	}
	return true
}

// AlwaysOnline is a monitor that never reports a missing network
type AlwaysOnline struct{}

// Online always returns true
func (AlwaysOnline) Online(context.Context) bool {
	return true
}
