package bridge

import (
	"context"
	"errors"
	"testing"

	"github.com/dshills/collabedit/internal/collab/codec"
	"github.com/dshills/collabedit/internal/collab/proto"
	"github.com/dshills/collabedit/internal/collab/user"
	"github.com/dshills/collabedit/internal/engine/buffer"
	"github.com/dshills/collabedit/internal/engine/position"
	"github.com/dshills/collabedit/internal/event"
	"github.com/dshills/collabedit/internal/event/events"
)

// fakeSession records sent operations and, like a real session, echoes
// accepted ones straight back to the adapter.
type fakeSession struct {
	adapter *Adapter
	self    user.User
	sent    []proto.Operation
	err     error
	noEcho  bool
}

func (s *fakeSession) Send(ctx context.Context, op proto.Operation) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, op)
	if !s.noEcho {
		_ = s.adapter.HandleOperation(ctx, op, s.self)
	}
	return nil
}

type harness struct {
	t       *testing.T
	bus     *event.Bus
	buf     *buffer.Buffer
	adapter *Adapter
	session *fakeSession
	changes []events.TextChanged
}

func newHarness(t *testing.T, text string, opts ...Option) *harness {
	t.Helper()
	bus := event.NewBus(event.WithSource("test"))
	buf := buffer.NewFromString(text, buffer.WithBus(bus))
	a := New(buf, opts...)
	if err := a.Attach(bus); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	alice := user.New("alice", user.NewPalette().Next())
	a.SetUser(alice)
	sess := &fakeSession{adapter: a, self: alice}
	a.SetSender(sess)

	h := &harness{t: t, bus: bus, buf: buf, adapter: a, session: sess}
	if _, err := bus.Subscribe(events.TopicTextChanged, event.Typed(func(_ context.Context, ev event.Event[events.TextChanged]) error {
		h.changes = append(h.changes, ev.Payload)
		return nil
	})); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	return h
}

func (h *harness) assertIdle() {
	h.t.Helper()
	if f := h.adapter.Armed(); f != FlagNone {
		h.t.Errorf("flag %s left armed", f)
	}
}

var bob = user.New("bob", user.NewPalette().Next())

func TestAdapter_LocalInsertForwardedOnce(t *testing.T) {
	h := newHarness(t, "ab\ncd")
	ctx := context.Background()

	if _, err := h.buf.Insert(ctx, position.Point{Line: 1, Column: 1}, "XY"); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if len(h.session.sent) != 1 {
		t.Fatalf("sent %d operations, expected 1", len(h.session.sent))
	}
	op := h.session.sent[0]
	if !op.IsInsert() || op.Offset != 4 || op.Length != 2 || string(op.Chunk) != "XY" {
		t.Errorf("sent %v", op)
	}
	if op.UserID != h.session.self.ID {
		t.Errorf("UserID = %s, expected the active user", op.UserID)
	}
	if got := h.buf.Text(); got != "ab\ncXYd" {
		t.Errorf("echo was applied again: Text() = %q", got)
	}
	h.assertIdle()

	st := h.adapter.Stats()
	if st.Forwarded != 1 || st.Suppressed != 1 || st.Applied != 0 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestAdapter_LocalRemoveForwardedOnce(t *testing.T) {
	h := newHarness(t, "hello\nworld")
	ctx := context.Background()

	if _, err := h.buf.RemoveAt(ctx, 3, 5); err != nil {
		t.Fatalf("RemoveAt: %v", err)
	}

	if len(h.session.sent) != 1 {
		t.Fatalf("sent %d operations, expected 1", len(h.session.sent))
	}
	op := h.session.sent[0]
	if !op.IsErase() || op.Offset != 3 || op.Length != 5 {
		t.Errorf("sent %v", op)
	}
	if got := h.buf.Text(); got != "helrld" {
		t.Errorf("Text() = %q", got)
	}
	h.assertIdle()
}

func TestAdapter_RemoteOperationsNotEchoed(t *testing.T) {
	h := newHarness(t, "hello world")
	ctx := context.Background()

	if err := h.adapter.HandleOperation(ctx, proto.NewInsert(5, []byte(","), 1, bob.ID), bob); err != nil {
		t.Fatalf("remote insert: %v", err)
	}
	if err := h.adapter.HandleOperation(ctx, proto.NewErase(0, 1, bob.ID), bob); err != nil {
		t.Fatalf("remote erase: %v", err)
	}

	if got := h.buf.Text(); got != "ello, world" {
		t.Errorf("Text() = %q", got)
	}
	if len(h.session.sent) != 0 {
		t.Errorf("remote operations were echoed: %v", h.session.sent)
	}
	h.assertIdle()

	st := h.adapter.Stats()
	if st.Applied != 2 || st.Suppressed != 2 || st.Forwarded != 0 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestAdapter_RemoteMultilineInsert(t *testing.T) {
	h := newHarness(t, "one\ntwo")
	ctx := context.Background()

	if err := h.adapter.OnRemoteInsert(ctx, 5, []byte("A\nB"), bob); err != nil {
		t.Fatalf("OnRemoteInsert: %v", err)
	}
	if got := h.buf.Text(); got != "one\ntA\nBwo" {
		t.Errorf("Text() = %q", got)
	}
	if len(h.changes) != 1 {
		t.Fatalf("changes = %+v", h.changes)
	}
	c := h.changes[0]
	if !c.Remote || c.Removal || c.User.ID != bob.ID || c.Span != position.NewSpan(5, 3) {
		t.Errorf("change = %+v", c)
	}
	if c.Range.End != (position.Point{Line: 2, Column: 1}) {
		t.Errorf("Range.End = %s", c.Range.End)
	}
}

func TestAdapter_AnnouncesLocalChanges(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()

	_, _ = h.buf.Insert(ctx, position.Point{}, "hi")
	_, _ = h.buf.RemoveAt(ctx, 0, 1)

	if len(h.changes) != 2 {
		t.Fatalf("changes = %+v", h.changes)
	}
	ins, rem := h.changes[0], h.changes[1]
	if ins.Remote || ins.Removal || ins.Span != position.NewSpan(0, 2) || ins.User.ID != h.session.self.ID {
		t.Errorf("insert change = %+v", ins)
	}
	if rem.Remote || !rem.Removal || rem.Span != position.NewSpan(0, 1) {
		t.Errorf("remove change = %+v", rem)
	}
}

func TestAdapter_NoActiveUser(t *testing.T) {
	h := newHarness(t, "")
	h.adapter.ClearUser()
	ctx := context.Background()

	// The buffer keeps the text; the edit is only dropped on its way out.
	if _, err := h.buf.Insert(ctx, position.Point{}, "x"); err != nil {
		t.Fatalf("Insert returned %v, expected the drop to be logged only", err)
	}
	if h.buf.Text() != "x" {
		t.Errorf("Text() = %q", h.buf.Text())
	}
	if len(h.session.sent) != 0 || len(h.changes) != 0 {
		t.Errorf("dropped edit was forwarded or announced")
	}

	err := h.adapter.OnLocalInsert(ctx, position.Range{End: position.Point{Column: 1}}, "x")
	if !errors.Is(err, ErrNoActiveUser) {
		t.Errorf("OnLocalInsert() = %v, expected ErrNoActiveUser", err)
	}
	err = h.adapter.OnLocalRemove(ctx, position.Range{End: position.Point{Column: 1}}, "x")
	if !errors.Is(err, ErrNoActiveUser) {
		t.Errorf("OnLocalRemove() = %v, expected ErrNoActiveUser", err)
	}
	if h.adapter.Stats().Dropped != 3 {
		t.Errorf("Dropped = %d, expected 3", h.adapter.Stats().Dropped)
	}
}

func TestAdapter_EncoderUnavailable(t *testing.T) {
	latin1, err := codec.Lookup("latin1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	h := newHarness(t, "", WithCodec(latin1))
	ctx := context.Background()

	if _, err := h.buf.Insert(ctx, position.Point{}, "5€"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if len(h.session.sent) != 0 {
		t.Errorf("unencodable text was sent: %v", h.session.sent)
	}

	err = h.adapter.OnLocalInsert(ctx, position.Range{}, "€")
	if !errors.Is(err, ErrEncoderUnavailable) {
		t.Errorf("expected ErrEncoderUnavailable, got %v", err)
	}
	h.assertIdle()

	// Representable text still goes through.
	if _, err := h.buf.Insert(ctx, position.Point{}, "é"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if len(h.session.sent) != 1 || string(h.session.sent[0].Chunk) != "\xe9" {
		t.Errorf("sent = %v", h.session.sent)
	}
}

func TestAdapter_SendFailureDisarms(t *testing.T) {
	h := newHarness(t, "")
	h.session.err = errors.New("connection reset")
	ctx := context.Background()

	if _, err := h.buf.Insert(ctx, position.Point{}, "a"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	h.assertIdle()

	// A later remote insertion must not be mistaken for the echo.
	if err := h.adapter.OnRemoteInsert(ctx, 0, []byte("b"), bob); err != nil {
		t.Fatalf("OnRemoteInsert: %v", err)
	}
	if h.buf.Text() != "ba" {
		t.Errorf("Text() = %q, expected remote insert to be applied", h.buf.Text())
	}

	err := h.adapter.OnLocalInsert(ctx, position.Range{}, "c")
	if !errors.Is(err, ErrSendFailed) {
		t.Errorf("expected ErrSendFailed, got %v", err)
	}
}

func TestAdapter_SessionWithoutEcho(t *testing.T) {
	h := newHarness(t, "")
	h.session.noEcho = true
	ctx := context.Background()

	_, _ = h.buf.Insert(ctx, position.Point{}, "a")
	h.assertIdle()
}

func TestAdapter_NoSession(t *testing.T) {
	h := newHarness(t, "")
	h.adapter.SetSender(nil)

	err := h.adapter.OnLocalInsert(context.Background(), position.Range{}, "a")
	if !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
}

func TestAdapter_CollapseLeadingNewline(t *testing.T) {
	h := newHarness(t, "abc", WithInsertFilter(CollapseLeadingNewline))
	ctx := context.Background()

	if _, err := h.buf.Insert(ctx, position.Point{Column: 3}, "\n    "); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if len(h.session.sent) != 1 {
		t.Fatalf("sent = %v", h.session.sent)
	}
	if op := h.session.sent[0]; string(op.Chunk) != "\n" || op.Length != 1 || op.Offset != 3 {
		t.Errorf("sent %v, expected a lone newline", op)
	}
	// The buffer is not rewritten.
	if h.buf.Text() != "abc\n    " {
		t.Errorf("Text() = %q", h.buf.Text())
	}
}

func TestAdapter_RemoteOutOfRange(t *testing.T) {
	h := newHarness(t, "abc")
	ctx := context.Background()

	tests := []struct {
		name string
		op   proto.Operation
	}{
		{"insert", proto.NewInsert(10, []byte("x"), 1, bob.ID)},
		{"erase", proto.NewErase(2, 5, bob.ID)},
		{"undecodable", proto.NewInsert(0, []byte{0xff}, 1, bob.ID)},
		{"unknown kind", proto.Operation{Offset: 0, UserID: bob.ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.adapter.HandleOperation(ctx, tt.op, bob)
			if !errors.Is(err, ErrApplyFailed) {
				t.Errorf("expected ErrApplyFailed, got %v", err)
			}
			h.assertIdle()
			if h.buf.Text() != "abc" {
				t.Errorf("Text() = %q", h.buf.Text())
			}
		})
	}
}

func TestAdapter_Detach(t *testing.T) {
	h := newHarness(t, "")
	h.adapter.Detach()

	_, _ = h.buf.Insert(context.Background(), position.Point{}, "a")
	if len(h.session.sent) != 0 {
		t.Error("detached adapter forwarded an edit")
	}
}

func TestAdapter_RemoteApplyFromHandler(t *testing.T) {
	h := newHarness(t, "abc")
	ctx := context.Background()

	const deliver event.Topic = "test.deliver"
	if _, err := h.bus.Subscribe(deliver, event.Typed(func(ctx context.Context, ev event.Event[proto.Operation]) error {
		return h.adapter.HandleOperation(ctx, ev.Payload, bob)
	})); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	ops := []proto.Operation{
		proto.NewInsert(3, []byte("XY"), 2, bob.ID),
		proto.NewErase(0, 1, bob.ID),
	}
	for _, op := range ops {
		if err := h.bus.Publish(ctx, event.NewEvent(deliver, op, "test")); err != nil {
			t.Fatalf("Publish(%v): %v", op, err)
		}
		h.assertIdle()
	}

	if got := h.buf.Text(); got != "bcXY" {
		t.Errorf("Text() = %q", got)
	}
	if len(h.session.sent) != 0 {
		t.Errorf("remote edits were echoed back: %v", h.session.sent)
	}
	st := h.adapter.Stats()
	if st.Applied != 2 || st.Suppressed != 2 || st.Forwarded != 0 {
		t.Errorf("Stats() = %+v", st)
	}
	if len(h.changes) != 2 || !h.changes[0].Remote || !h.changes[1].Removal {
		t.Errorf("changes = %+v", h.changes)
	}
}

func TestAdapter_DetachClearsFlags(t *testing.T) {
	h := newHarness(t, "abc")
	h.adapter.flags.Arm(FlagLocalInsert)
	h.adapter.Detach()
	h.assertIdle()
}
