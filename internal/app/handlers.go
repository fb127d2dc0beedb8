package app

import (
	"context"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/collabedit/internal/engine/position"
)

// handleEvent applies one terminal event and repaints.
// Returns ErrQuit if the application should exit.
func (app *Application) handleEvent(ev tcell.Event) error {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		app.screen.Sync()
	case *tcell.EventKey:
		if err := app.handleKey(ev); err != nil {
			return err
		}
	default:
		return nil
	}
	app.draw()
	return nil
}

// handleKey maps a key to an edit or a cursor motion.
func (app *Application) handleKey(ev *tcell.EventKey) error {
	ctx := context.Background()
	o := app.cursor.Start()

	var err error
	var op string
	switch ev.Key() {
	case tcell.KeyCtrlQ:
		return ErrQuit
	case tcell.KeyRune:
		op = "insert"
		_, err = app.doc.InsertAt(ctx, o, string(ev.Rune()))
	case tcell.KeyEnter:
		op = "insert"
		_, err = app.doc.InsertAt(ctx, o, "\n")
	case tcell.KeyTab:
		op = "insert"
		_, err = app.doc.InsertAt(ctx, o, "\t")
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if o > 0 {
			op = "remove"
			_, err = app.doc.RemoveAt(ctx, o-1, 1)
		}
	case tcell.KeyDelete:
		if o < app.doc.Buffer().Len() {
			op = "remove"
			_, err = app.doc.RemoveAt(ctx, o, 1)
		}
	case tcell.KeyCtrlZ:
		op = "undo"
		err = app.doc.Undo(ctx)
	case tcell.KeyCtrlY:
		op = "redo"
		err = app.doc.Redo(ctx)
	case tcell.KeyLeft:
		app.moveTo(o - 1)
	case tcell.KeyRight:
		app.moveTo(o + 1)
	case tcell.KeyUp:
		app.moveLines(-1)
	case tcell.KeyDown:
		app.moveLines(1)
	case tcell.KeyHome:
		p := app.point()
		app.moveToPoint(position.Point{Line: p.Line})
	case tcell.KeyEnd:
		p := app.point()
		app.moveToPoint(position.Point{Line: p.Line, Column: app.doc.Buffer().LineLen(p.Line)})
	}

	if err != nil {
		err = &OperationError{Op: op, Target: app.doc.Name(), Err: err}
		app.logger.Warn("%v", err)
		app.message = err.Error()
		return nil
	}
	if op != "" {
		app.message = ""
	}
	return nil
}

func (app *Application) point() position.Point {
	return app.doc.Buffer().Translator().ToPoint(app.cursor.Start())
}

// moveTo puts the cursor at o, clamped to the document.
func (app *Application) moveTo(o position.Offset) {
	o = max(0, min(o, app.doc.Buffer().Len()))
	app.cursor.SetRange(position.Span{Start: o, End: o})
}

func (app *Application) moveToPoint(p position.Point) {
	app.moveTo(app.doc.Buffer().Translator().ToOffset(p))
}

// moveLines moves the cursor n lines, keeping the column where the target
// line is long enough.
func (app *Application) moveLines(n int) {
	buf := app.doc.Buffer()
	p := app.point()
	line := p.Line + n
	if line < 0 || line >= buf.LineCount() {
		return
	}
	app.moveToPoint(position.Point{Line: line, Column: min(p.Column, buf.LineLen(line))})
}
