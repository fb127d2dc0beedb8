package buffer

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/dshills/collabedit/internal/engine/position"
	"github.com/dshills/collabedit/internal/event"
	"github.com/dshills/collabedit/internal/event/events"
)

// Errors returned by buffer operations.
var (
	ErrPointOutOfRange  = errors.New("point out of range")
	ErrOffsetOutOfRange = errors.New("offset out of range")
	ErrRangeInvalid     = errors.New("invalid range")
)

// EditObserver is notified of every edit before it is published.
type EditObserver interface {
	TextInserted(at position.Offset, n int)
	TextRemoved(at position.Offset, n int)
	TextReset()
}

// Buffer is a line table of runes.
type Buffer struct {
	lines     [][]rune
	bus       *event.Bus
	observers []EditObserver
	source    string
}

// New creates an empty buffer (one empty line).
func New(opts ...Option) *Buffer {
	b := &Buffer{
		lines:  [][]rune{{}},
		source: "buffer",
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewFromString creates a buffer with initial content. Line endings are
// normalized to "\n".
func NewFromString(s string, opts ...Option) *Buffer {
	b := New(opts...)
	b.lines = splitLines(normalizeLineEndings(s))
	return b
}

// normalizeLineEndings converts CRLF and CR line endings to LF.
func normalizeLineEndings(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func splitLines(s string) [][]rune {
	parts := strings.Split(s, "\n")
	lines := make([][]rune, len(parts))
	for i, p := range parts {
		lines[i] = []rune(p)
	}
	return lines
}

// Observe registers an edit observer.
func (b *Buffer) Observe(o EditObserver) {
	if o != nil {
		b.observers = append(b.observers, o)
	}
}

// Read Operations

// LineCount returns the number of lines. An empty buffer has one line.
func (b *Buffer) LineCount() int {
	return len(b.lines)
}

// LineLen returns the length of line i in runes, excluding the separator.
// Lines beyond the buffer have length 0.
func (b *Buffer) LineLen(i int) int {
	if i < 0 || i >= len(b.lines) {
		return 0
	}
	return len(b.lines[i])
}

// Line returns the text of line i without its separator.
func (b *Buffer) Line(i int) string {
	if i < 0 || i >= len(b.lines) {
		return ""
	}
	return string(b.lines[i])
}

// Text returns the full content.
func (b *Buffer) Text() string {
	parts := make([]string, len(b.lines))
	for i, l := range b.lines {
		parts[i] = string(l)
	}
	return strings.Join(parts, "\n")
}

// Len returns the content length in runes.
func (b *Buffer) Len() int {
	n := len(b.lines) - 1
	for _, l := range b.lines {
		n += len(l)
	}
	return n
}

// Translator returns a position translator over this buffer.
func (b *Buffer) Translator() position.Translator {
	return position.NewTranslator(b)
}

// ValidPoint reports whether p addresses an existing line and column.
func (b *Buffer) ValidPoint(p position.Point) bool {
	return p.Line >= 0 && p.Line < len(b.lines) && p.Column >= 0 && p.Column <= len(b.lines[p.Line])
}

// ValidRange reports whether r is ordered and both ends are valid.
func (b *Buffer) ValidRange(r position.Range) bool {
	return b.ValidPoint(r.Start) && b.ValidPoint(r.End) && !r.End.Before(r.Start)
}

// TextRange returns the text between two valid points.
func (b *Buffer) TextRange(r position.Range) string {
	if !b.ValidRange(r) {
		return ""
	}
	s, e := r.Start, r.End
	if s.Line == e.Line {
		return string(b.lines[s.Line][s.Column:e.Column])
	}

	var sb strings.Builder
	sb.WriteString(string(b.lines[s.Line][s.Column:]))
	for i := s.Line + 1; i < e.Line; i++ {
		sb.WriteByte('\n')
		sb.WriteString(string(b.lines[i]))
	}
	sb.WriteByte('\n')
	sb.WriteString(string(b.lines[e.Line][:e.Column]))
	return sb.String()
}

// Write Operations

// Insert inserts text at p and returns the range now covered by it.
// The returned error is either a validation error (nothing changed) or the
// joined errors of the subscribers that handled the published event (the
// text was inserted).
func (b *Buffer) Insert(ctx context.Context, p position.Point, text string) (position.Range, error) {
	if !b.ValidPoint(p) {
		return position.Range{}, ErrPointOutOfRange
	}
	if text == "" {
		return position.Range{Start: p, End: p}, nil
	}

	at := b.Translator().ToOffset(p)
	parts := splitLines(text)
	line := b.lines[p.Line]
	head := append([]rune(nil), line[:p.Column]...)
	tail := append([]rune(nil), line[p.Column:]...)

	var end position.Point
	if len(parts) == 1 {
		b.lines[p.Line] = append(append(head, parts[0]...), tail...)
		end = position.Point{Line: p.Line, Column: p.Column + len(parts[0])}
	} else {
		last := parts[len(parts)-1]
		replacement := make([][]rune, 0, len(parts))
		replacement = append(replacement, append(head, parts[0]...))
		replacement = append(replacement, parts[1:len(parts)-1]...)
		replacement = append(replacement, append(append([]rune(nil), last...), tail...))
		b.splice(p.Line, 1, replacement)
		end = position.Point{Line: p.Line + len(parts) - 1, Column: len(last)}
	}

	n := utf8.RuneCountInString(text)
	for _, o := range b.observers {
		o.TextInserted(at, n)
	}

	rng := position.Range{Start: p, End: end}
	return rng, b.publish(ctx, event.NewEvent(events.TopicTextInserted, events.TextInserted{
		Range: rng,
		Span:  position.NewSpan(at, n),
		Text:  text,
	}, b.source))
}

// InsertAt inserts text at offset o.
func (b *Buffer) InsertAt(ctx context.Context, o position.Offset, text string) (position.Range, error) {
	if o < 0 || o > b.Len() {
		return position.Range{}, ErrOffsetOutOfRange
	}
	return b.Insert(ctx, b.Translator().ToPoint(o), text)
}

// Remove deletes the text in r and returns it. Errors follow Insert.
func (b *Buffer) Remove(ctx context.Context, r position.Range) (string, error) {
	if !b.ValidRange(r) {
		return "", ErrRangeInvalid
	}
	if r.IsEmpty() {
		return "", nil
	}

	tr := b.Translator()
	span := tr.ToSpan(r)
	removed := b.TextRange(r)

	head := b.lines[r.Start.Line][:r.Start.Column]
	tail := b.lines[r.End.Line][r.End.Column:]
	joined := append(append([]rune(nil), head...), tail...)
	b.splice(r.Start.Line, r.End.Line-r.Start.Line+1, [][]rune{joined})

	for _, o := range b.observers {
		o.TextRemoved(span.Start, span.Len())
	}

	return removed, b.publish(ctx, event.NewEvent(events.TopicTextRemoved, events.TextRemoved{
		Range: r,
		Span:  span,
		Text:  removed,
	}, b.source))
}

// RemoveAt deletes n runes starting at offset o.
func (b *Buffer) RemoveAt(ctx context.Context, o position.Offset, n int) (string, error) {
	if o < 0 || n < 0 || o+n > b.Len() {
		return "", ErrOffsetOutOfRange
	}
	tr := b.Translator()
	return b.Remove(ctx, position.Range{Start: tr.ToPoint(o), End: tr.ToPoint(o + n)})
}

// SetText replaces the whole content, e.g. with a session snapshot.
// Observers see a reset rather than an edit and no insertion is published.
func (b *Buffer) SetText(ctx context.Context, s string) error {
	b.lines = splitLines(normalizeLineEndings(s))
	for _, o := range b.observers {
		o.TextReset()
	}
	return b.publish(ctx, event.NewEvent(events.TopicTextReset, events.TextReset{Length: b.Len()}, b.source))
}

// splice replaces count lines starting at index with repl.
func (b *Buffer) splice(index, count int, repl [][]rune) {
	rest := append([][]rune(nil), b.lines[index+count:]...)
	b.lines = append(append(b.lines[:index], repl...), rest...)
}

func (b *Buffer) publish(ctx context.Context, ev any) error {
	if b.bus == nil {
		return nil
	}
	return b.bus.Publish(ctx, ev)
}
