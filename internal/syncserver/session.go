package syncserver

import (
	"context"
	"errors"
	"time"

	"github.com/studykit/colsync/internal/collection"
)

var (
	errNoSession      = errors.New("no sync in progress")
	errSessionExpired = errors.New("sync session expired")
)

type sessionEnd int

const (
	endNone sessionEnd = iota
	endCommit
	endRollback
)

type sessionOp struct {
	ctx   context.Context
	fn    func(ctx context.Context, tx collection.SyncTx) error
	end   sessionEnd
	reply chan error
}

// session is one incremental sync in progress. Its transaction stays open on
// the session goroutine between requests; handlers submit work through ops.
type session struct {
	clientUSN int
	serverUSN int

	// large objects not yet sent by chunk; only touched on the session goroutine
	pending []collection.Record
	chunked bool

	ops  chan sessionOp
	done chan struct{}
}

func startSession(ctx context.Context, store collection.SyncStore, clientUSN, serverUSN int, idle time.Duration) *session {
	s := &session{
		clientUSN: clientUSN,
		serverUSN: serverUSN,
		ops:       make(chan sessionOp),
		done:      make(chan struct{}),
	}
	go s.loop(ctx, store, idle)
	return s
}

func (s *session) loop(ctx context.Context, store collection.SyncStore, idle time.Duration) {
	var last *sessionOp
	err := store.SyncTx(ctx, func(tx collection.SyncTx) (bool, error) {
		timer := time.NewTimer(idle)
		defer timer.Stop()

		for {
			select {
			case op := <-s.ops:
				if op.end == endRollback {
					last = &op
					return false, nil
				}
				if err := op.fn(op.ctx, tx); err != nil {
					last = &op
					return false, err
				}
				if op.end == endCommit {
					last = &op
					return true, nil
				}
				op.reply <- nil
				timer.Reset(idle)
			case <-timer.C:
				return false, errSessionExpired
			case <-ctx.Done():
				return false, ctx.Err()
			}
		}
	})
	if last != nil {
		last.reply <- err
	}
	close(s.done)
}

// do runs fn inside the session transaction. A failing fn rolls the session back.
func (s *session) do(ctx context.Context, end sessionEnd, fn func(ctx context.Context, tx collection.SyncTx) error) error {
	op := sessionOp{ctx: ctx, fn: fn, end: end, reply: make(chan error, 1)}
	select {
	case s.ops <- op:
	case <-s.done:
		return errNoSession
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-op.reply
}

// rollback discards the session and waits for its transaction to end
func (s *session) rollback(ctx context.Context) {
	if err := s.do(ctx, endRollback, nil); err != nil && !errors.Is(err, errNoSession) {
		return
	}
	<-s.done
}

func (s *session) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
