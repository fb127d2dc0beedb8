package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/collabedit/internal/collab/proto"
	"github.com/dshills/collabedit/internal/collab/session"
	"github.com/dshills/collabedit/internal/collab/user"
	"github.com/dshills/collabedit/internal/document"
)

type fixture struct {
	screen tcell.SimulationScreen
	lb     *session.Loopback
	doc    *document.Document
	app    *Application
}

func newFixture(t *testing.T, text string) *fixture {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	screen.SetSize(40, 6)
	t.Cleanup(screen.Fini)

	lb := session.NewLoopback("notes", text, nil, nil)
	doc, err := document.New("notes")
	if err != nil {
		t.Fatalf("document.New: %v", err)
	}
	t.Cleanup(func() { _ = doc.Close() })
	if _, err := doc.JoinLoopback(context.Background(), lb, "alice"); err != nil {
		t.Fatalf("JoinLoopback: %v", err)
	}
	return &fixture{
		screen: screen,
		lb:     lb,
		doc:    doc,
		app:    New(screen, doc, Options{ShowAttribution: true}),
	}
}

func (f *fixture) keys(t *testing.T, evs ...*tcell.EventKey) {
	t.Helper()
	for _, ev := range evs {
		if err := f.app.handleEvent(ev); err != nil {
			t.Fatalf("handleEvent(%v): %v", ev.Name(), err)
		}
	}
}

func key(k tcell.Key) *tcell.EventKey { return tcell.NewEventKey(k, 0, tcell.ModNone) }

func runes(s string) []*tcell.EventKey {
	var evs []*tcell.EventKey
	for _, r := range s {
		evs = append(evs, tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone))
	}
	return evs
}

func TestApplication_Typing(t *testing.T) {
	f := newFixture(t, "")
	f.keys(t, runes("hi")...)
	f.keys(t, key(tcell.KeyEnter))
	f.keys(t, runes("yo")...)

	if got := f.doc.Text(); got != "hi\nyo" {
		t.Errorf("Text() = %q", got)
	}
	if got := f.lb.Text(); got != "hi\nyo" {
		t.Errorf("session Text() = %q", got)
	}
	if f.app.Cursor() != 5 {
		t.Errorf("Cursor() = %d", f.app.Cursor())
	}

	x, y, _ := f.screen.GetCursor()
	if x != 2 || y != 1 {
		t.Errorf("screen cursor = (%d,%d)", x, y)
	}
}

func TestApplication_Deleting(t *testing.T) {
	f := newFixture(t, "abc")
	f.keys(t, key(tcell.KeyEnd), key(tcell.KeyBackspace2))
	if got := f.doc.Text(); got != "ab" {
		t.Fatalf("after backspace Text() = %q", got)
	}
	f.keys(t, key(tcell.KeyHome), key(tcell.KeyDelete))
	if got := f.doc.Text(); got != "b" {
		t.Fatalf("after delete Text() = %q", got)
	}
	// Nothing before the start of the document.
	f.keys(t, key(tcell.KeyBackspace2))
	if got := f.doc.Text(); got != "b" || f.app.Message() != "" {
		t.Errorf("Text() = %q, Message() = %q", got, f.app.Message())
	}
}

func TestApplication_Motion(t *testing.T) {
	f := newFixture(t, "long line\nab\nxyz")
	tests := []struct {
		key      tcell.Key
		expected int
	}{
		{tcell.KeyEnd, 9},
		{tcell.KeyDown, 12},  // clamped to the end of "ab"
		{tcell.KeyDown, 15},  // column 2 of "xyz"
		{tcell.KeyDown, 15},  // no line below
		{tcell.KeyRight, 16}, // end of document
		{tcell.KeyRight, 16},
		{tcell.KeyHome, 13},
		{tcell.KeyLeft, 12},
		{tcell.KeyUp, 2},
	}
	for i, tt := range tests {
		f.keys(t, key(tt.key))
		if got := f.app.Cursor(); got != tt.expected {
			t.Fatalf("step %d (%v): Cursor() = %d, expected %d", i, tt.key, got, tt.expected)
		}
	}
}

func TestApplication_UndoRedo(t *testing.T) {
	f := newFixture(t, "")
	f.keys(t, runes("ab")...)
	f.keys(t, key(tcell.KeyCtrlZ))
	if got := f.doc.Text(); got != "a" {
		t.Fatalf("after undo Text() = %q", got)
	}
	f.keys(t, key(tcell.KeyCtrlY))
	if got := f.doc.Text(); got != "ab" {
		t.Fatalf("after redo Text() = %q", got)
	}

	f.keys(t, key(tcell.KeyCtrlY))
	if f.app.Message() == "" {
		t.Error("expected a status message when there is nothing to redo")
	}
}

func TestApplication_RemoteEditMovesCursor(t *testing.T) {
	f := newFixture(t, "world")
	f.keys(t, key(tcell.KeyEnd))

	bob, _, err := f.lb.Join("bob", func(proto.Operation, user.User) {}, nil)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if err := bob.Send(context.Background(), proto.NewInsert(0, []byte("hello "), 6, bob.User().ID)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	f.lb.Flush()
	f.doc.Loop().Drain()

	if got := f.doc.Text(); got != "hello world" {
		t.Fatalf("Text() = %q", got)
	}
	if f.app.Cursor() != 11 {
		t.Errorf("Cursor() = %d, expected it to follow the remote insertion", f.app.Cursor())
	}
}

func TestApplication_Run(t *testing.T) {
	f := newFixture(t, "")

	done := make(chan error, 1)
	go func() { done <- f.app.Run(context.Background()) }()

	for _, r := range "ok" {
		f.screen.InjectKey(tcell.KeyRune, r, tcell.ModNone)
	}
	f.screen.InjectKey(tcell.KeyCtrlQ, 0, tcell.ModNone)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Ctrl-Q")
	}
	if got := f.doc.Text(); got != "ok" {
		t.Errorf("Text() = %q", got)
	}
}

func TestApplication_RunTwice(t *testing.T) {
	f := newFixture(t, "")
	f.app.running.Store(true)
	if err := f.app.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestOperationError(t *testing.T) {
	inner := errors.New("boom")
	err := &OperationError{Op: "undo", Target: "notes", Err: inner}
	if err.Error() != "undo notes: boom" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, inner) {
		t.Error("expected Unwrap to expose the cause")
	}
}
