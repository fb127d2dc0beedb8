// Package session connects a document to a collaborative session that
// linearizes operations from all participants.
//
// A session echoes every operation it accepts from a participant back to
// that participant's Handler before Send returns, and delivers it to every
// other participant through their Poster. Handlers therefore always run on
// the participant's own goroutine.
package session

import (
	"context"
	"errors"

	"github.com/dshills/collabedit/internal/collab/proto"
	"github.com/dshills/collabedit/internal/collab/user"
)

// Errors returned by sessions.
var (
	// ErrClosed is returned when using a closed session.
	ErrClosed = errors.New("session closed")

	// ErrNotRunning is returned when sending before the join completed.
	ErrNotRunning = errors.New("session not running")

	// ErrRejected is returned when the session refused a request.
	ErrRejected = errors.New("request rejected by session")

	// ErrHandshake is returned when the join handshake fails.
	ErrHandshake = errors.New("session handshake failed")
)

// State is the connection state of a session.
type State int

const (
	// StateDisconnected means no connection exists.
	StateDisconnected State = iota
	// StateSynchronizing means the connection is up and the document
	// content is being received.
	StateSynchronizing
	// StateJoining means the user join is pending.
	StateJoining
	// StateRunning means operations can be exchanged.
	StateRunning
	// StateClosed means the session was closed.
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateSynchronizing:
		return "synchronizing"
	case StateJoining:
		return "joining"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Handler receives an operation accepted by the session and its author.
type Handler func(op proto.Operation, author user.User)

// Poster schedules fn on the participant's owning goroutine.
// event.Loop.Post satisfies it.
type Poster func(fn func()) error

// Snapshot is the document content handed to a participant on join.
type Snapshot struct {
	Text     string
	Encoding string
	Revision uint64
	Users    []user.User
}

// Session is one participant's view of a collaborative session.
type Session interface {
	// Send submits a local operation. The author is always the joined user.
	Send(ctx context.Context, op proto.Operation) error
	// Undo asks the session to revert the user's last operation.
	Undo(ctx context.Context) error
	// Redo asks the session to reapply the user's last undone operation.
	Redo(ctx context.Context) error
	// Close leaves the session.
	Close() error
}

// deliver runs fn through post, or directly when post is nil.
func deliver(post Poster, fn func()) error {
	if post == nil {
		fn()
		return nil
	}
	return post(fn)
}

var (
	_ Session = (*Peer)(nil)
	_ Session = (*Client)(nil)
)
