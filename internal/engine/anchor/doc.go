// Package anchor provides spans that keep tracking the same text while the
// surrounding buffer is edited.
//
// Spans live in an Arena and are addressed by index. The buffer drives the
// arena through TextInserted/TextRemoved before it publishes the edit, so any
// listener of the edit already sees adjusted spans.
//
// Every span behaves like a non-expanding moving range that may be empty:
//
//   - text inserted at the start of a span pushes the start forward;
//   - text inserted at the end of a span is not absorbed;
//   - text inserted strictly inside a span grows it;
//   - deleting text moves bounds inside the deleted region to its start,
//     so a fully deleted span becomes empty but stays allocated.
package anchor
