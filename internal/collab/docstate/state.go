// Package docstate holds the authoritative text of a shared document: it
// linearizes operations, validates them against the current content and
// keeps a per-user undo history of inverse operations.
//
// A State is not safe for concurrent use; owners serialize access.
package docstate

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/dshills/collabedit/internal/collab/codec"
	"github.com/dshills/collabedit/internal/collab/proto"
)

// Errors returned when applying operations.
var (
	// ErrOutOfRange is returned when an operation does not fit the document.
	ErrOutOfRange = errors.New("operation out of range")

	// ErrLengthMismatch is returned when an insertion's declared length does
	// not match its decoded chunk.
	ErrLengthMismatch = errors.New("insertion length does not match chunk")

	// ErrNothingToUndo is returned by Undo on an empty history.
	ErrNothingToUndo = errors.New("nothing to undo")

	// ErrNothingToRedo is returned by Redo on an empty history.
	ErrNothingToRedo = errors.New("nothing to redo")
)

// DefaultHistoryLimit bounds the undo history kept per user.
const DefaultHistoryLimit = 500

type history struct {
	undo []proto.Operation
	redo []proto.Operation
}

// State is the authoritative content of one document.
type State struct {
	name     string
	text     []rune
	revision uint64
	codec    *codec.Codec
	limit    int
	history  map[uuid.UUID]*history
}

// New creates a document state with initial text. A nil codec selects UTF-8.
func New(name, text string, c *codec.Codec) *State {
	if c == nil {
		c = codec.UTF8()
	}
	return &State{
		name:    name,
		text:    []rune(text),
		codec:   c,
		limit:   DefaultHistoryLimit,
		history: make(map[uuid.UUID]*history),
	}
}

// SetHistoryLimit changes how many undo steps are kept per user.
func (s *State) SetHistoryLimit(n int) {
	if n > 0 {
		s.limit = n
	}
}

// Name returns the document name.
func (s *State) Name() string { return s.name }

// Text returns the current content.
func (s *State) Text() string { return string(s.text) }

// Len returns the content length in characters.
func (s *State) Len() int { return len(s.text) }

// Revision returns the number of operations applied so far.
func (s *State) Revision() uint64 { return s.revision }

// Codec returns the text codec of the document.
func (s *State) Codec() *codec.Codec { return s.codec }

// Apply validates op against the current content, applies it and records
// its inverse in the author's undo history. The returned operation carries
// the assigned revision.
func (s *State) Apply(op proto.Operation) (proto.Operation, error) {
	inverse, applied, err := s.apply(op)
	if err != nil {
		return proto.Operation{}, err
	}
	h := s.historyOf(op.UserID)
	h.undo = s.push(h.undo, inverse)
	h.redo = h.redo[:0]
	return applied, nil
}

// Undo reverts the most recent operation of userID that has not been undone.
func (s *State) Undo(userID uuid.UUID) (proto.Operation, error) {
	h := s.historyOf(userID)
	for len(h.undo) > 0 {
		op := h.undo[len(h.undo)-1]
		h.undo = h.undo[:len(h.undo)-1]
		if isNoop(op) {
			continue
		}
		inverse, applied, err := s.apply(op)
		if err != nil {
			return proto.Operation{}, fmt.Errorf("undo: %w", err)
		}
		h.redo = s.push(h.redo, inverse)
		return applied, nil
	}
	return proto.Operation{}, ErrNothingToUndo
}

// Redo reapplies the most recently undone operation of userID.
func (s *State) Redo(userID uuid.UUID) (proto.Operation, error) {
	h := s.historyOf(userID)
	for len(h.redo) > 0 {
		op := h.redo[len(h.redo)-1]
		h.redo = h.redo[:len(h.redo)-1]
		if isNoop(op) {
			continue
		}
		inverse, applied, err := s.apply(op)
		if err != nil {
			return proto.Operation{}, fmt.Errorf("redo: %w", err)
		}
		h.undo = s.push(h.undo, inverse)
		return applied, nil
	}
	return proto.Operation{}, ErrNothingToRedo
}

// CanUndo reports whether userID has anything to undo.
func (s *State) CanUndo(userID uuid.UUID) bool {
	h, ok := s.history[userID]
	return ok && len(h.undo) > 0
}

// CanRedo reports whether userID has anything to redo.
func (s *State) CanRedo(userID uuid.UUID) bool {
	h, ok := s.history[userID]
	return ok && len(h.redo) > 0
}

// Forget drops the history of a user that left.
func (s *State) Forget(userID uuid.UUID) {
	delete(s.history, userID)
}

// apply changes the text and returns the inverse of op and op as applied.
// Histories of other users are shifted past the change.
func (s *State) apply(op proto.Operation) (inverse, applied proto.Operation, err error) {
	if err := op.Validate(); err != nil {
		return inverse, applied, err
	}
	if op.Offset > len(s.text) {
		return inverse, applied, fmt.Errorf("%w: offset %d beyond length %d", ErrOutOfRange, op.Offset, len(s.text))
	}

	switch op.Kind {
	case proto.KindInsert:
		text, err := s.codec.Decode(op.Chunk)
		if err != nil {
			return inverse, applied, err
		}
		if n := utf8.RuneCountInString(text); n != op.Length {
			return inverse, applied, fmt.Errorf("%w: declared %d, got %d", ErrLengthMismatch, op.Length, n)
		}
		runes := []rune(text)
		s.text = append(s.text[:op.Offset], append(runes, s.text[op.Offset:]...)...)
		inverse = proto.NewErase(op.Offset, op.Length, op.UserID)

	case proto.KindErase:
		end := op.Offset + op.Length
		if end > len(s.text) {
			return inverse, applied, fmt.Errorf("%w: erase %d..%d beyond length %d", ErrOutOfRange, op.Offset, end, len(s.text))
		}
		removed := string(s.text[op.Offset:end])
		chunk, err := s.codec.Encode(removed)
		if err != nil {
			return inverse, applied, err
		}
		s.text = append(s.text[:op.Offset], s.text[end:]...)
		if op.Length > 0 {
			inverse = proto.NewInsert(op.Offset, chunk, op.Length, op.UserID)
		} else {
			inverse = proto.NewErase(op.Offset, 0, op.UserID)
		}
	}

	s.revision++
	applied = op
	applied.Revision = s.revision
	s.shiftHistories(op)
	return inverse, applied, nil
}

func (s *State) historyOf(id uuid.UUID) *history {
	h, ok := s.history[id]
	if !ok {
		h = &history{}
		s.history[id] = h
	}
	return h
}

func (s *State) push(stack []proto.Operation, op proto.Operation) []proto.Operation {
	stack = append(stack, op)
	if len(stack) > s.limit {
		stack = append(stack[:0], stack[len(stack)-s.limit:]...)
	}
	return stack
}

// shiftHistories moves the stored operations of every user other than the
// author of op so they still address the same text.
func (s *State) shiftHistories(op proto.Operation) {
	for id, h := range s.history {
		if id == op.UserID {
			continue
		}
		for i := range h.undo {
			h.undo[i] = shift(h.undo[i], op)
		}
		for i := range h.redo {
			h.redo[i] = shift(h.redo[i], op)
		}
	}
}

// shift transforms stored against an operation applied after it was recorded.
func shift(stored, by proto.Operation) proto.Operation {
	switch by.Kind {
	case proto.KindInsert:
		switch {
		case by.Offset <= stored.Offset:
			stored.Offset += by.Length
		case stored.IsErase() && by.Offset < stored.Offset+stored.Length:
			stored.Length += by.Length
		}
	case proto.KindErase:
		start := shiftPoint(stored.Offset, by)
		if stored.IsErase() {
			end := shiftPoint(stored.Offset+stored.Length, by)
			stored.Length = end - start
		}
		stored.Offset = start
	}
	return stored
}

func shiftPoint(p int, erase proto.Operation) int {
	switch {
	case p >= erase.Offset+erase.Length:
		return p - erase.Length
	case p > erase.Offset:
		return erase.Offset
	default:
		return p
	}
}

func isNoop(op proto.Operation) bool {
	return op.IsErase() && op.Length == 0
}
