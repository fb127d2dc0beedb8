package anchor

import (
	"testing"

	"github.com/dshills/collabedit/internal/engine/position"
)

func span(start, end int) position.Span {
	return position.Span{Start: start, End: end}
}

func TestArena_InsertSemantics(t *testing.T) {
	tests := []struct {
		name   string
		at, n  int
		expect position.Span
	}{
		{"before span shifts it", 1, 2, span(6, 12)},
		{"at start pushes start", 4, 2, span(6, 12)},
		{"inside grows", 6, 3, span(4, 13)},
		{"at end does not expand", 10, 5, span(4, 10)},
		{"after span leaves it", 11, 5, span(4, 10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewArena()
			sp := a.Add(span(4, 10))
			a.TextInserted(tt.at, tt.n)
			if got := sp.Span(); got != tt.expect {
				t.Errorf("got %v, want %v", got, tt.expect)
			}
		})
	}
}

func TestArena_RemoveSemantics(t *testing.T) {
	tests := []struct {
		name   string
		at, n  int
		expect position.Span
	}{
		{"before span shifts it", 0, 2, span(2, 8)},
		{"overlapping start clamps", 2, 4, span(2, 6)},
		{"inside shrinks", 5, 3, span(4, 7)},
		{"overlapping end clamps", 8, 4, span(4, 8)},
		{"covering empties", 3, 10, span(3, 3)},
		{"after span leaves it", 10, 3, span(4, 10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewArena()
			sp := a.Add(span(4, 10))
			a.TextRemoved(tt.at, tt.n)
			if got := sp.Span(); got != tt.expect {
				t.Errorf("got %v, want %v", got, tt.expect)
			}
		})
	}
}

func TestArena_EmptySpanStaysAllocated(t *testing.T) {
	a := NewArena()
	sp := a.Add(span(0, 4))
	a.TextRemoved(0, 4)

	if !sp.IsEmpty() {
		t.Fatalf("expected empty span, got %v", sp.Span())
	}
	if a.Len() != 1 {
		t.Errorf("expected span to stay allocated, got %d live", a.Len())
	}

	a.TextInserted(0, 3)
	if !sp.IsEmpty() {
		t.Errorf("empty span should not absorb insertions, got %v", sp.Span())
	}
}

func TestArena_ReleaseReusesSlots(t *testing.T) {
	a := NewArena()
	first := a.Add(span(0, 1))
	second := a.Add(span(1, 2))
	idx := first.Index()

	a.Release(first)
	if first.Valid() {
		t.Error("released span should be invalid")
	}
	if a.Len() != 1 {
		t.Errorf("expected 1 live span, got %d", a.Len())
	}

	third := a.Add(span(5, 6))
	if third.Index() != idx {
		t.Errorf("expected slot %d to be reused, got %d", idx, third.Index())
	}
	if second.Span() != span(1, 2) || third.Span() != span(5, 6) {
		t.Error("reused slot disturbed other spans")
	}
}

func TestSpan_SetRangeAndContains(t *testing.T) {
	a := NewArena()
	sp := a.Add(span(5, 2))
	if !sp.IsEmpty() || sp.Start() != 5 {
		t.Errorf("reversed range should collapse at start, got %v", sp.Span())
	}

	sp.SetRange(span(2, 8))
	if !sp.Contains(span(2, 8)) || !sp.Contains(span(3, 4)) || sp.Contains(span(7, 9)) {
		t.Error("Contains mismatch")
	}

	sp.GrowOnInsert(2, 1)
	sp.ShrinkOnDelete(0, 1)
	if sp.Span() != span(2, 8) {
		t.Errorf("got %v after grow+shrink, want [2:8)", sp.Span())
	}
}

func TestArena_TextReset(t *testing.T) {
	a := NewArena()
	sp := a.Add(span(3, 9))
	a.TextReset()
	if !sp.IsEmpty() || sp.Start() != 0 {
		t.Errorf("expected collapsed span, got %v", sp.Span())
	}
}
