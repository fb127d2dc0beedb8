package events

import (
	"github.com/dshills/collabedit/internal/engine/position"
	"github.com/dshills/collabedit/internal/event"
)

// Buffer event topics.
const (
	// TopicTextInserted is published after text entered the buffer.
	TopicTextInserted event.Topic = "buffer.text.inserted"

	// TopicTextRemoved is published after text left the buffer.
	TopicTextRemoved event.Topic = "buffer.text.removed"

	// TopicTextReset is published after the whole buffer was replaced.
	TopicTextReset event.Topic = "buffer.text.reset"
)

// TextInserted describes an insertion. Range and Span cover the new text in
// the buffer after the insertion.
type TextInserted struct {
	Range position.Range
	Span  position.Span
	Text  string
}

// TextRemoved describes a removal. Range and Span locate the removed text in
// the buffer as it was before the removal; Range.Start is still valid after.
type TextRemoved struct {
	Range position.Range
	Span  position.Span
	Text  string
}

// TextReset describes a wholesale replacement of the buffer content.
type TextReset struct {
	Length int
}
