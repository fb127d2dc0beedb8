// Package buffer provides the locally editable text buffer of a document.
//
// Text is stored as a table of lines of runes, so line lengths (the only input
// of position translation) are read in O(1). Offsets and columns count runes.
//
// Every edit is announced twice, in this order:
//
//  1. synchronously to registered EditObservers (anchored spans), so that
//     span bounds already reflect the edit;
//  2. as an event on the buffer's bus (buffer.text.inserted,
//     buffer.text.removed). The event does not say who caused the edit.
//
// Basic usage:
//
//	buf := buffer.NewFromString("hello", buffer.WithBus(bus))
//	rng, err := buf.Insert(ctx, position.Point{Line: 0, Column: 5}, " world")
//	removed, err := buf.Remove(ctx, rng)
//
// A Buffer belongs to the goroutine running its document loop and is not
// safe for concurrent use.
package buffer
