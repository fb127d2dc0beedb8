// Package event provides the single-threaded event bus that connects a
// document's buffer, bridge adapter and attribution tracker.
//
// Publishers never call subscribers of other components directly: the buffer
// publishes edits, the adapter subscribes to them and publishes the applied
// change, and the tracker subscribes to that. Everything for one document runs
// on one goroutine.
//
// # Topics
//
// Events use hierarchical topics with dot notation:
//
//	buffer.text.inserted      - text entered the local buffer
//	buffer.text.removed       - text left the local buffer
//	collab.text.changed       - an edit was applied, with its author
//	attribution.range.added   - the tracker created a range
//
// Subscriptions may use wildcards: "*" matches one segment, "**" matches any
// number of segments ("buffer.**", "*.text.changed").
//
// # Ordering
//
// Publish delivers to matching subscriptions in subscription order. An event
// published from inside a handler is not delivered re-entrantly: it is queued
// and delivered after the current event has reached all of its subscribers,
// still within the outermost Publish call. Events are therefore processed
// strictly in arrival order.
//
// # Loop
//
// Work produced on other goroutines (network reads, terminal input) is posted
// to a Loop, which runs it on the goroutine that owns the document.
package event
