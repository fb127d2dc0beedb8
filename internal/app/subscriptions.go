package app

import (
	"context"

	"github.com/dshills/collabedit/internal/event"
	"github.com/dshills/collabedit/internal/event/events"
)

// subscribe repaints on changes that do not come from a key press: remote
// edits and document state changes.
func (app *Application) subscribe() error {
	bus := app.doc.Bus()

	remote, err := bus.Subscribe(events.TopicTextChanged, event.Typed(func(_ context.Context, ev event.Event[events.TextChanged]) error {
		if ev.Payload.Remote {
			app.draw()
		}
		return nil
	}))
	if err != nil {
		return err
	}
	state, err := bus.Subscribe(events.TopicDocumentStateChanged, event.Typed(func(_ context.Context, ev event.Event[events.DocumentStateChanged]) error {
		app.draw()
		return nil
	}))
	if err != nil {
		_ = bus.Unsubscribe(remote)
		return err
	}
	fatal, err := bus.Subscribe(events.TopicDocumentFatal, event.Typed(func(_ context.Context, ev event.Event[events.DocumentFatal]) error {
		app.message = ev.Payload.Err.Error()
		app.draw()
		return nil
	}))
	if err != nil {
		_ = bus.Unsubscribe(remote)
		_ = bus.Unsubscribe(state)
		return err
	}

	app.subs = []*event.Subscription{remote, state, fatal}
	return nil
}

func (app *Application) unsubscribe() {
	for _, sub := range app.subs {
		_ = app.doc.Bus().Unsubscribe(sub)
	}
	app.subs = nil
}
