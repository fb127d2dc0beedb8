// Package app runs the terminal client: it reads keys from a tcell screen,
// applies them to a collaborative document and repaints the screen.
//
// Everything except reading terminal events happens on the document's
// loop, so the buffer, adapter and tracker are only touched from there.
package app

import (
	"context"
	"sync/atomic"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/collabedit/internal/document"
	"github.com/dshills/collabedit/internal/engine/anchor"
	"github.com/dshills/collabedit/internal/engine/position"
	"github.com/dshills/collabedit/internal/event"
	"github.com/dshills/collabedit/internal/logging"
	"github.com/dshills/collabedit/internal/renderer"
)

// Options configures the application.
type Options struct {
	// TabWidth is the tab stop interval.
	TabWidth int

	// ShowAttribution paints author colors behind text.
	ShowAttribution bool

	// Peers reports the number of other users, for the status line.
	Peers func() int

	Logger *logging.Logger
}

// Application is a terminal editor for one document.
type Application struct {
	screen   tcell.Screen
	doc      *document.Document
	renderer *renderer.Renderer
	cursor   *anchor.Span
	subs     []*event.Subscription

	peers   func() int
	message string
	logger  *logging.Logger

	running atomic.Bool
}

// New creates an application drawing doc on screen. The screen must be
// initialized by the caller.
func New(screen tcell.Screen, doc *document.Document, opts Options) *Application {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Null()
	}
	return &Application{
		screen: screen,
		doc:    doc,
		renderer: renderer.New(screen,
			renderer.WithTabWidth(opts.TabWidth),
			renderer.WithAttribution(opts.ShowAttribution),
		),
		cursor: doc.Mark(0),
		peers:  opts.Peers,
		logger: logger.WithComponent("app"),
	}
}

// Cursor returns the cursor offset.
func (app *Application) Cursor() position.Offset {
	return app.cursor.Start()
}

// Message returns the status message.
func (app *Application) Message() string {
	return app.message
}

// Run processes terminal events until the user quits, ctx is done or the
// document loop stops. It blocks on the document loop.
func (app *Application) Run(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	if err := app.subscribe(); err != nil {
		return err
	}
	defer app.unsubscribe()

	_ = app.doc.Post(app.draw)
	go app.pollEvents()

	return app.doc.Run(ctx)
}

// pollEvents forwards terminal events to the document loop until the
// screen is finalized or the loop stops.
func (app *Application) pollEvents() {
	for {
		ev := app.screen.PollEvent()
		if ev == nil {
			return
		}
		err := app.doc.Post(func() {
			if err := app.handleEvent(ev); err == ErrQuit {
				app.doc.Loop().Stop()
			}
		})
		if err != nil {
			return
		}
	}
}

func (app *Application) draw() {
	tr := app.doc.Buffer().Translator()
	status := renderer.Status{
		Document: app.doc.Name(),
		State:    app.doc.State().String(),
		Message:  app.message,
	}
	if u, ok := app.doc.User(); ok {
		status.User = u.Name
		status.Color = u.Color
	}
	if app.peers != nil {
		status.Peers = app.peers()
	}
	app.renderer.Draw(app.doc.Buffer(), app.doc.Tracker(), tr.ToPoint(app.cursor.Start()), status)
}
