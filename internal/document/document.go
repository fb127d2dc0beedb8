// Package document pairs a local buffer with a collaborative session.
//
// A Document owns one buffer, the anchor arena observing it, an event bus,
// an echo-suppressing adapter, an attribution tracker and a loop. Every
// method that touches the content must run on the loop's goroutine, or
// before the loop starts; other goroutines use Post.
package document

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dshills/collabedit/internal/attribution"
	"github.com/dshills/collabedit/internal/bridge"
	"github.com/dshills/collabedit/internal/collab/codec"
	"github.com/dshills/collabedit/internal/collab/proto"
	"github.com/dshills/collabedit/internal/collab/session"
	"github.com/dshills/collabedit/internal/collab/user"
	"github.com/dshills/collabedit/internal/engine/anchor"
	"github.com/dshills/collabedit/internal/engine/buffer"
	"github.com/dshills/collabedit/internal/engine/position"
	"github.com/dshills/collabedit/internal/event"
	"github.com/dshills/collabedit/internal/event/events"
	"github.com/dshills/collabedit/internal/logging"
)

// Errors returned by Document.
var (
	// ErrFailed is returned for edits on a document that hit a fatal error.
	ErrFailed = errors.New("document failed")

	// ErrInvalidState is returned when a load step is attempted out of order.
	ErrInvalidState = errors.New("invalid document state")

	// ErrNoSession is returned by Undo and Redo before a session is joined.
	ErrNoSession = errors.New("document has no session")
)

// Document is a locally editable buffer kept in step with a session.
type Document struct {
	name   string
	logger *logging.Logger

	bus     *event.Bus
	loop    *event.Loop
	arena   *anchor.Arena
	buf     *buffer.Buffer
	adapter *bridge.Adapter
	tracker *attribution.Tracker
	filters []bridge.InsertFilter

	session session.Session

	mu    sync.Mutex
	state State
	err   error
}

// New creates an unloaded document.
func New(name string, opts ...Option) (*Document, error) {
	d := &Document{
		name:   name,
		logger: logging.Null(),
	}
	for _, opt := range opts {
		opt(d)
	}
	log := d.logger.WithField("doc", name)
	d.logger = log
	if d.loop == nil {
		d.loop = event.NewLoop(event.WithLoopLogger(log))
	}

	source := "document:" + name
	d.bus = event.NewBus(event.WithLogger(log), event.WithSource(source))
	d.arena = anchor.NewArena()
	d.buf = buffer.New(
		buffer.WithBus(d.bus),
		buffer.WithObserver(d.arena),
		buffer.WithSource(source),
	)

	adapterOpts := []bridge.Option{bridge.WithLogger(log)}
	for _, f := range d.filters {
		adapterOpts = append(adapterOpts, bridge.WithInsertFilter(f))
	}
	d.adapter = bridge.New(d.buf, adapterOpts...)
	if err := d.adapter.Attach(d.bus); err != nil {
		return nil, fmt.Errorf("attaching adapter: %w", err)
	}

	d.tracker = attribution.New(d.arena, d.buf, attribution.WithLogger(log))
	if err := d.tracker.Attach(d.bus); err != nil {
		return nil, fmt.Errorf("attaching tracker: %w", err)
	}
	return d, nil
}

// Name returns the document name.
func (d *Document) Name() string { return d.name }

// Bus returns the document's event bus.
func (d *Document) Bus() *event.Bus { return d.bus }

// Loop returns the loop the document runs on.
func (d *Document) Loop() *event.Loop { return d.loop }

// Buffer returns the local buffer.
func (d *Document) Buffer() *buffer.Buffer { return d.buf }

// Adapter returns the echo-suppressing adapter.
func (d *Document) Adapter() *bridge.Adapter { return d.adapter }

// Tracker returns the attribution tracker.
func (d *Document) Tracker() *attribution.Tracker { return d.tracker }

// Mark anchors a zero-width span at o. It moves with every edit, local or
// remote, until released with Unmark.
func (d *Document) Mark(o position.Offset) *anchor.Span {
	return d.arena.Add(position.Span{Start: o, End: o})
}

// Unmark releases a span returned by Mark.
func (d *Document) Unmark(sp *anchor.Span) {
	d.arena.Release(sp)
}

// Text returns the buffer content.
func (d *Document) Text() string { return d.buf.Text() }

// User returns the user local edits are attributed to.
func (d *Document) User() (user.User, bool) { return d.adapter.User() }

// State returns the load state. Safe to call from any goroutine.
func (d *Document) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Err returns the fatal error, if the document failed.
func (d *Document) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Post runs fn on the document's loop.
func (d *Document) Post(fn func()) error {
	return d.loop.Post(fn)
}

// Run processes posted work until ctx is done or the loop is stopped.
func (d *Document) Run(ctx context.Context) error {
	return d.loop.Run(ctx)
}

// Synchronize loads a session snapshot into the buffer.
func (d *Document) Synchronize(ctx context.Context, snap session.Snapshot) error {
	if err := d.transition(ctx, StateUnloaded, StateSynchronizing); err != nil {
		return err
	}

	cd, err := codec.Lookup(snap.Encoding)
	if err != nil {
		return d.fail(ctx, fmt.Errorf("synchronization failed: %w", err))
	}
	d.adapter.SetCodec(cd)

	if err := d.buf.SetText(ctx, snap.Text); err != nil {
		return d.fail(ctx, fmt.Errorf("synchronization failed: %w", err))
	}
	d.logger.Info("synchronized %d characters at revision %d", d.buf.Len(), snap.Revision)
	return d.transition(ctx, StateSynchronizing, StateJoining)
}

// Join makes the document live: local edits are attributed to u and
// forwarded to s.
func (d *Document) Join(ctx context.Context, u user.User, s session.Session) error {
	if u.IsZero() {
		return fmt.Errorf("%w: join without a user", ErrInvalidState)
	}
	if err := d.transition(ctx, StateJoining, StateComplete); err != nil {
		return err
	}
	d.session = s
	d.adapter.SetUser(u)
	d.adapter.SetSender(s)
	d.logger.Info("joined as %s", u)
	return nil
}

// JoinLoopback joins an in-process session under name, synchronizing from
// its snapshot. Remote operations are delivered through the document loop.
func (d *Document) JoinLoopback(ctx context.Context, lb *session.Loopback, name string) (*session.Peer, error) {
	peer, snap, err := lb.Join(name, d.HandleOperation, d.loop.Post)
	if err != nil {
		return nil, err
	}
	if err := d.Synchronize(ctx, snap); err != nil {
		_ = peer.Close()
		return nil, err
	}
	if err := d.Join(ctx, peer.User(), peer); err != nil {
		_ = peer.Close()
		return nil, err
	}
	return peer, nil
}

// Connect dials a hub, synchronizes from its snapshot and joins.
func (d *Document) Connect(ctx context.Context, cfg session.ClientConfig) (*session.Client, error) {
	client, snap, err := session.Dial(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := d.Synchronize(ctx, snap); err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := d.Join(ctx, client.Self(), client); err != nil {
		_ = client.Close()
		return nil, err
	}
	client.Start(d.HandleOperation, d.loop.Post)
	return client, nil
}

// HandleOperation applies an operation delivered by the session. It is a
// session.Handler and runs on the document loop.
func (d *Document) HandleOperation(op proto.Operation, author user.User) {
	if d.State() == StateFailed {
		return
	}
	ctx := context.Background()
	if err := d.check(ctx, d.adapter.HandleOperation(ctx, op, author)); err != nil {
		d.logger.Warn("remote %s not applied: %v", op, err)
	}
}

// Insert inserts text at p as the local user.
func (d *Document) Insert(ctx context.Context, p position.Point, text string) (position.Range, error) {
	if d.State() == StateFailed {
		return position.Range{}, ErrFailed
	}
	r, err := d.buf.Insert(ctx, p, text)
	return r, d.check(ctx, err)
}

// InsertAt inserts text at offset o as the local user.
func (d *Document) InsertAt(ctx context.Context, o position.Offset, text string) (position.Range, error) {
	if d.State() == StateFailed {
		return position.Range{}, ErrFailed
	}
	r, err := d.buf.InsertAt(ctx, o, text)
	return r, d.check(ctx, err)
}

// Remove deletes r as the local user and returns the removed text.
func (d *Document) Remove(ctx context.Context, r position.Range) (string, error) {
	if d.State() == StateFailed {
		return "", ErrFailed
	}
	removed, err := d.buf.Remove(ctx, r)
	return removed, d.check(ctx, err)
}

// RemoveAt deletes n characters at offset o as the local user.
func (d *Document) RemoveAt(ctx context.Context, o position.Offset, n int) (string, error) {
	if d.State() == StateFailed {
		return "", ErrFailed
	}
	removed, err := d.buf.RemoveAt(ctx, o, n)
	return removed, d.check(ctx, err)
}

// Undo asks the session to revert the local user's last edit.
func (d *Document) Undo(ctx context.Context) error {
	if err := d.live(); err != nil {
		return err
	}
	return d.check(ctx, d.session.Undo(ctx))
}

// Redo asks the session to reapply the local user's last undone edit.
func (d *Document) Redo(ctx context.Context) error {
	if err := d.live(); err != nil {
		return err
	}
	return d.check(ctx, d.session.Redo(ctx))
}

// Close leaves the session and detaches the document's components.
func (d *Document) Close() error {
	var err error
	if d.session != nil {
		err = d.session.Close()
		d.session = nil
	}
	d.adapter.SetSender(nil)
	d.adapter.ClearUser()
	d.adapter.Detach()
	d.tracker.Detach()
	return err
}

func (d *Document) live() error {
	switch {
	case d.State() == StateFailed:
		return ErrFailed
	case d.session == nil:
		return ErrNoSession
	}
	return nil
}

// check turns attribution invariant violations into a document failure.
func (d *Document) check(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, attribution.ErrInvariantViolation) {
		return d.fail(ctx, err)
	}
	return err
}

// fail stops the document. Further edits are refused.
func (d *Document) fail(ctx context.Context, cause error) error {
	d.mu.Lock()
	from := d.state
	d.state = StateFailed
	if d.err == nil {
		d.err = cause
	}
	d.mu.Unlock()

	d.logger.Error("fatal: %v", cause)
	d.adapter.SetSender(nil)
	d.adapter.Detach()
	d.tracker.Detach()

	d.publishState(ctx, from, StateFailed)
	_ = d.bus.Publish(ctx, event.NewEvent(events.TopicDocumentFatal, events.DocumentFatal{
		Name: d.name,
		Err:  cause,
	}, d.bus.Source()))
	return fmt.Errorf("%w: %w", ErrFailed, cause)
}

func (d *Document) transition(ctx context.Context, from, to State) error {
	d.mu.Lock()
	if d.state != from {
		cur := d.state
		d.mu.Unlock()
		return fmt.Errorf("%w: %s, expected %s", ErrInvalidState, cur, from)
	}
	d.state = to
	d.mu.Unlock()

	d.logger.Debug("state %s -> %s", from, to)
	d.publishState(ctx, from, to)
	return nil
}

func (d *Document) publishState(ctx context.Context, from, to State) {
	err := d.bus.Publish(ctx, event.NewEvent(events.TopicDocumentStateChanged, events.DocumentStateChanged{
		Name: d.name,
		From: from.String(),
		To:   to.String(),
	}, d.bus.Source()))
	if err != nil {
		d.logger.Warn("state listeners: %v", err)
	}
}
