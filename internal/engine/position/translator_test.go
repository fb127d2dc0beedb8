package position

import "testing"

// lines is a LineSource over a fixed line-length table.
type lines []int

func (l lines) LineCount() int    { return len(l) }
func (l lines) LineLen(i int) int { return l[i] }

func TestTranslator_ToOffset(t *testing.T) {
	tr := NewTranslator(lines{10, 7, 6})

	tests := []struct {
		p    Point
		want Offset
	}{
		{Point{0, 0}, 0},
		{Point{0, 10}, 10},
		{Point{1, 0}, 11},
		{Point{1, 7}, 18},
		{Point{2, 5}, 24},
	}
	for _, tt := range tests {
		if got := tr.ToOffset(tt.p); got != tt.want {
			t.Errorf("ToOffset(%v) = %d, want %d", tt.p, got, tt.want)
		}
	}
}

func TestTranslator_ToPoint(t *testing.T) {
	tr := NewTranslator(lines{10, 7, 6})

	tests := []struct {
		o    Offset
		want Point
	}{
		{0, Point{0, 0}},
		{10, Point{0, 10}}, // end of first line, before the newline
		{11, Point{1, 0}},
		{18, Point{1, 7}},
		{19, Point{2, 0}},
		{25, Point{2, 6}},
	}
	for _, tt := range tests {
		if got := tr.ToPoint(tt.o); got != tt.want {
			t.Errorf("ToPoint(%d) = %v, want %v", tt.o, got, tt.want)
		}
	}
}

func TestTranslator_ScenarioE(t *testing.T) {
	tr := NewTranslator(lines{10, 7, 12})
	p := Point{Line: 2, Column: 5}

	if got := tr.ToPoint(tr.ToOffset(p)); got != p {
		t.Errorf("round trip of %v gave %v", p, got)
	}
}

func TestTranslator_RoundTrip(t *testing.T) {
	docs := []lines{
		{0},
		{5},
		{0, 0, 0},
		{3, 0, 8, 1},
		{10, 7, 12},
	}

	for _, doc := range docs {
		tr := NewTranslator(doc)

		total := 0
		for line, n := range doc {
			for col := 0; col <= n; col++ {
				p := Point{Line: line, Column: col}
				if got := tr.ToPoint(tr.ToOffset(p)); got != p {
					t.Errorf("doc %v: point round trip %v -> %v", doc, p, got)
				}
			}
			total += n + 1
		}
		total-- // no separator after the last line

		for o := 0; o <= total; o++ {
			if got := tr.ToOffset(tr.ToPoint(o)); got != o {
				t.Errorf("doc %v: offset round trip %d -> %d", doc, o, got)
			}
		}
	}
}

func TestSpan(t *testing.T) {
	s := Span{Start: 2, End: 6}

	if !s.Contains(Span{3, 4}) || !s.Contains(Span{2, 6}) || s.Contains(Span{1, 3}) {
		t.Error("Contains mismatch")
	}
	if !s.Touches(Span{6, 8}) || !s.Touches(Span{0, 2}) || s.Touches(Span{7, 8}) {
		t.Error("Touches mismatch")
	}
	if NewSpan(4, 3) != (Span{4, 7}) {
		t.Error("NewSpan mismatch")
	}
	if !(Span{3, 3}).IsEmpty() || s.Len() != 4 {
		t.Error("IsEmpty/Len mismatch")
	}
}
