package bridge

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/dshills/collabedit/internal/collab/codec"
	"github.com/dshills/collabedit/internal/collab/proto"
	"github.com/dshills/collabedit/internal/collab/user"
	"github.com/dshills/collabedit/internal/engine/position"
	"github.com/dshills/collabedit/internal/event"
	"github.com/dshills/collabedit/internal/event/events"
	"github.com/dshills/collabedit/internal/logging"
)

// Sender forwards operations to the collaborative session.
type Sender interface {
	Send(ctx context.Context, op proto.Operation) error
}

// Buffer is the local text the Adapter applies remote operations to.
type Buffer interface {
	Translator() position.Translator
	Insert(ctx context.Context, p position.Point, text string) (position.Range, error)
	Remove(ctx context.Context, r position.Range) (string, error)
}

// Stats counts what the Adapter did with the edits it saw.
type Stats struct {
	Forwarded  uint64 // local edits sent to the session
	Applied    uint64 // remote operations applied to the buffer
	Suppressed uint64 // notifications swallowed by a suppression flag
	Dropped    uint64 // edits dropped on error
}

// Adapter mediates between a Buffer and a session.
type Adapter struct {
	buf     Buffer
	sender  Sender
	codec   *codec.Codec
	bus     *event.Bus
	logger  *logging.Logger
	filters []InsertFilter

	flags   Suppression
	user    user.User
	hasUser bool

	subs  []*event.Subscription
	stats Stats
}

// New creates an Adapter for buf.
func New(buf Buffer, opts ...Option) *Adapter {
	a := &Adapter{
		buf:    buf,
		codec:  codec.UTF8(),
		logger: logging.Null(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetUser sets the user local edits are attributed to.
func (a *Adapter) SetUser(u user.User) {
	a.user = u
	a.hasUser = !u.IsZero()
}

// ClearUser forgets the active user; local edits are dropped until a new
// one is set.
func (a *Adapter) ClearUser() {
	a.user = user.User{}
	a.hasUser = false
}

// User returns the active user.
func (a *Adapter) User() (user.User, bool) {
	return a.user, a.hasUser
}

// SetSender replaces the session operations are forwarded to.
func (a *Adapter) SetSender(s Sender) {
	a.sender = s
}

// SetCodec replaces the session text codec.
func (a *Adapter) SetCodec(c *codec.Codec) {
	if c != nil {
		a.codec = c
	}
}

// Armed returns the currently armed suppression flag.
func (a *Adapter) Armed() Flag {
	return a.flags.Armed()
}

// Stats returns the edit counters.
func (a *Adapter) Stats() Stats {
	return a.stats
}

// Attach subscribes the Adapter to the buffer edit topics of bus and uses
// bus to announce applied edits.
func (a *Adapter) Attach(bus *event.Bus) error {
	a.bus = bus
	inserted, err := bus.Subscribe(events.TopicTextInserted, event.Typed(func(ctx context.Context, ev event.Event[events.TextInserted]) error {
		return a.dropRecoverable(a.OnLocalInsert(ctx, ev.Payload.Range, ev.Payload.Text))
	}))
	if err != nil {
		return err
	}
	removed, err := bus.Subscribe(events.TopicTextRemoved, event.Typed(func(ctx context.Context, ev event.Event[events.TextRemoved]) error {
		return a.dropRecoverable(a.OnLocalRemove(ctx, ev.Payload.Range, ev.Payload.Text))
	}))
	if err != nil {
		inserted.Cancel()
		return err
	}
	a.subs = append(a.subs, inserted, removed)
	return nil
}

// Detach cancels the subscriptions made by Attach.
func (a *Adapter) Detach() {
	for _, s := range a.subs {
		s.Cancel()
	}
	a.subs = nil
	a.flags.Reset()
}

// dropRecoverable logs edits dropped for recoverable reasons and hides them
// from the publisher; anything else is passed on.
func (a *Adapter) dropRecoverable(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNoActiveUser),
		errors.Is(err, ErrEncoderUnavailable),
		errors.Is(err, ErrNoSession),
		errors.Is(err, ErrSendFailed):
		a.logger.Warn("local edit not forwarded: %v", err)
		return nil
	default:
		return err
	}
}

// OnLocalInsert forwards text inserted into the buffer at r, unless the
// insertion was caused by a remote apply.
func (a *Adapter) OnLocalInsert(ctx context.Context, r position.Range, text string) error {
	if a.flags.Consume(FlagLocalInsert) {
		a.stats.Suppressed++
		return nil
	}
	if !a.hasUser {
		a.stats.Dropped++
		return ErrNoActiveUser
	}

	for _, f := range a.filters {
		text = f(text)
	}
	chunk, err := a.codec.Encode(text)
	if err != nil {
		a.stats.Dropped++
		return err
	}

	tr := a.buf.Translator()
	op := proto.NewInsert(tr.ToOffset(r.Start), chunk, utf8.RuneCountInString(text), a.user.ID)
	if err := a.forward(ctx, FlagRemoteInsert, op); err != nil {
		return err
	}

	return a.announce(ctx, events.TextChanged{
		Range: r,
		Span:  tr.ToSpan(r),
		User:  a.user,
	})
}

// OnLocalRemove forwards the removal of removed from r, unless the removal
// was caused by a remote apply. r locates the text as it was before the
// removal.
func (a *Adapter) OnLocalRemove(ctx context.Context, r position.Range, removed string) error {
	if a.flags.Consume(FlagLocalRemove) {
		a.stats.Suppressed++
		return nil
	}
	if !a.hasUser {
		a.stats.Dropped++
		return ErrNoActiveUser
	}

	// r.Start is unaffected by the removal, so it translates against the
	// current buffer.
	offset := a.buf.Translator().ToOffset(r.Start)
	length := utf8.RuneCountInString(removed)
	op := proto.NewErase(offset, length, a.user.ID)
	if err := a.forward(ctx, FlagRemoteRemove, op); err != nil {
		return err
	}

	return a.announce(ctx, events.TextChanged{
		Range:   r,
		Span:    position.NewSpan(offset, length),
		User:    a.user,
		Removal: true,
	})
}

// forward sends op with the echo flag armed. The session echoes
// synchronously, so the flag is disarmed by the time Send returns; it is
// cleared here in case the session never echoed.
func (a *Adapter) forward(ctx context.Context, echo Flag, op proto.Operation) error {
	if a.sender == nil {
		a.stats.Dropped++
		return ErrNoSession
	}

	a.flags.Arm(echo)
	err := a.sender.Send(ctx, op)
	if a.flags.Consume(echo) && err == nil {
		a.logger.Debug("session did not echo %s", op)
	}
	if err != nil {
		a.stats.Dropped++
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	a.stats.Forwarded++
	return nil
}

// settle clears the local flag armed for a remote apply once the buffer's
// edit event has been delivered. When the apply runs inside a bus handler
// the event is only queued, so the flag stays armed for the adapter's own
// handler to consume on delivery.
func (a *Adapter) settle(f Flag) {
	if len(a.subs) > 0 && a.bus != nil && a.bus.Dispatching() {
		return
	}
	a.flags.Consume(f)
}

// OnRemoteInsert applies an insertion delivered by the session, unless it
// is the echo of a forwarded local insertion. It may run from inside a
// handler on the adapter's bus.
func (a *Adapter) OnRemoteInsert(ctx context.Context, offset position.Offset, chunk []byte, author user.User) error {
	if a.flags.Consume(FlagRemoteInsert) {
		a.stats.Suppressed++
		return nil
	}

	text, err := a.codec.Decode(chunk)
	if err != nil {
		a.stats.Dropped++
		return fmt.Errorf("%w: %v", ErrApplyFailed, err)
	}

	tr := a.buf.Translator()
	p := tr.ToPoint(offset)

	a.flags.Arm(FlagLocalInsert)
	r, err := a.buf.Insert(ctx, p, text)
	if err != nil && r == (position.Range{}) {
		a.flags.Consume(FlagLocalInsert)
		a.stats.Dropped++
		return fmt.Errorf("%w: insert at %d: %v", ErrApplyFailed, offset, err)
	}
	a.settle(FlagLocalInsert)
	a.stats.Applied++
	if err != nil {
		return err
	}

	return a.announce(ctx, events.TextChanged{
		Range:  r,
		Span:   tr.ToSpan(r),
		User:   author,
		Remote: true,
	})
}

// OnRemoteErase applies an erasure delivered by the session, unless it is
// the echo of a forwarded local removal. It may run from inside a handler
// on the adapter's bus.
func (a *Adapter) OnRemoteErase(ctx context.Context, offset position.Offset, length int, author user.User) error {
	if a.flags.Consume(FlagRemoteRemove) {
		a.stats.Suppressed++
		return nil
	}

	tr := a.buf.Translator()
	r := position.Range{Start: tr.ToPoint(offset), End: tr.ToPoint(offset + length)}

	a.flags.Arm(FlagLocalRemove)
	removed, err := a.buf.Remove(ctx, r)
	if err != nil && removed == "" {
		a.flags.Consume(FlagLocalRemove)
		a.stats.Dropped++
		return fmt.Errorf("%w: erase %d+%d: %v", ErrApplyFailed, offset, length, err)
	}
	a.settle(FlagLocalRemove)
	a.stats.Applied++
	if err != nil {
		return err
	}

	return a.announce(ctx, events.TextChanged{
		Range:   r,
		Span:    position.NewSpan(offset, length),
		User:    author,
		Removal: true,
		Remote:  true,
	})
}

// HandleOperation applies an operation delivered by the session. It has
// the shape of a session handler.
func (a *Adapter) HandleOperation(ctx context.Context, op proto.Operation, author user.User) error {
	switch op.Kind {
	case proto.KindInsert:
		return a.OnRemoteInsert(ctx, op.Offset, op.Chunk, author)
	case proto.KindErase:
		return a.OnRemoteErase(ctx, op.Offset, op.Length, author)
	default:
		a.stats.Dropped++
		return fmt.Errorf("%w: %v", ErrApplyFailed, proto.ErrInvalidOperation)
	}
}

func (a *Adapter) announce(ctx context.Context, change events.TextChanged) error {
	if a.bus == nil {
		return nil
	}
	return a.bus.Publish(ctx, event.NewEvent(events.TopicTextChanged, change, a.bus.Source()))
}
