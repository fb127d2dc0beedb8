package bridge

import (
	"errors"

	"github.com/dshills/collabedit/internal/collab/codec"
)

// Errors returned by the Adapter. All of them mean the edit was dropped on
// one side; none of them is retried.
var (
	// ErrNoActiveUser is returned for a local edit made before a user
	// was assigned.
	ErrNoActiveUser = errors.New("no active user")

	// ErrEncoderUnavailable is returned when inserted text cannot be
	// represented in the session encoding.
	ErrEncoderUnavailable = codec.ErrEncoderUnavailable

	// ErrNoSession is returned for a local edit made while no session is
	// attached.
	ErrNoSession = errors.New("no session attached")

	// ErrSendFailed wraps errors returned by the session when forwarding.
	ErrSendFailed = errors.New("forwarding to session failed")

	// ErrApplyFailed wraps errors from applying a remote operation to the
	// buffer.
	ErrApplyFailed = errors.New("applying remote operation failed")
)
