package position

// LineSource exposes the current line-length table of a document.
type LineSource interface {
	// LineCount returns the number of lines; an empty document has one.
	LineCount() int
	// LineLen returns the length of line i in characters, excluding the
	// line separator.
	LineLen(i int) int
}

// Translator converts between points and offsets of one document.
type Translator struct {
	src LineSource
}

// NewTranslator creates a translator reading line lengths from src.
func NewTranslator(src LineSource) Translator {
	return Translator{src: src}
}

// ToOffset converts p to an offset by summing the lengths (plus one
// separator) of every line before p.Line and adding p.Column.
// The result is unspecified for a line beyond the document.
func (t Translator) ToOffset(p Point) Offset {
	offset := 0
	for i := 0; i < p.Line; i++ {
		offset += t.src.LineLen(i) + 1
	}
	return offset + p.Column
}

// ToPoint converts o to a point by walking lines from the start of the
// document until the remainder fits within a line. Offsets past the end are
// reported on the last line.
func (t Translator) ToPoint(o Offset) Point {
	last := t.src.LineCount() - 1
	line := 0
	for line < last && o > t.src.LineLen(line) {
		o -= t.src.LineLen(line) + 1
		line++
	}
	return Point{Line: line, Column: o}
}

// ToSpan converts a range of points to offsets.
func (t Translator) ToSpan(r Range) Span {
	return Span{Start: t.ToOffset(r.Start), End: t.ToOffset(r.End)}
}

// ToRange converts a span of offsets to points.
func (t Translator) ToRange(s Span) Range {
	return Range{Start: t.ToPoint(s.Start), End: t.ToPoint(s.End)}
}
