package events

import (
	"github.com/dshills/collabedit/internal/collab/user"
	"github.com/dshills/collabedit/internal/engine/position"
	"github.com/dshills/collabedit/internal/event"
)

// TopicTextChanged is published once an edit has been realized on both
// sides: a local edit forwarded to the session, or a remote one applied to
// the buffer.
const TopicTextChanged event.Topic = "collab.text.changed"

// TextChanged is an applied edit with its author. For insertions Range and
// Span cover the new text; for removals they locate the removed text as it
// was before the removal.
type TextChanged struct {
	Range   position.Range
	Span    position.Span
	User    user.User
	Removal bool
	Remote  bool
}
