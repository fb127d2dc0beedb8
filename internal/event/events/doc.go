// Package events defines the typed payloads published on a document's event
// bus, with one topic constant per payload.
//
// Events are grouped by the component that publishes them:
//
//   - Buffer events: raw text insertions and removals, without origin
//   - Collab events: edits after the bridge applied or forwarded them,
//     tagged with the authoring user
//   - Attribution events: incremental changes to the attribution set
//   - Document events: load state transitions and fatal errors
//   - Config events: configuration reloads
//
// # Usage
//
//	evt := event.NewEvent(events.TopicTextInserted, events.TextInserted{
//	    Range: rng,
//	    Span:  span,
//	    Text:  "hi",
//	}, "buffer")
//	err := bus.Publish(ctx, evt)
package events
