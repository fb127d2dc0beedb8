package anchor

import "github.com/dshills/collabedit/internal/engine/position"

// Arena owns a set of anchored spans and updates all of them in one pass
// per buffer edit. Released slots are reused.
type Arena struct {
	slots []bounds
	free  []int
	live  int
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// Add allocates a span covering s.
func (a *Arena) Add(s position.Span) *Span {
	var idx int
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		a.slots = append(a.slots, bounds{})
		idx = len(a.slots) - 1
	}
	a.slots[idx] = bounds{used: true}
	a.live++

	sp := &Span{arena: a, index: idx}
	sp.SetRange(s)
	return sp
}

// Release returns the span's slot to the arena. The handle must not be used
// afterwards.
func (a *Arena) Release(sp *Span) {
	if sp == nil || sp.arena != a || !sp.Valid() {
		return
	}
	a.slots[sp.index] = bounds{}
	a.free = append(a.free, sp.index)
	a.live--
	sp.arena = nil
}

// Len returns the number of live spans.
func (a *Arena) Len() int {
	return a.live
}

// TextInserted moves every live span for n characters inserted at at.
func (a *Arena) TextInserted(at position.Offset, n int) {
	for i := range a.slots {
		if a.slots[i].used {
			a.slots[i].growOnInsert(at, n)
		}
	}
}

// TextRemoved moves every live span for n characters removed at at.
func (a *Arena) TextRemoved(at position.Offset, n int) {
	for i := range a.slots {
		if a.slots[i].used {
			a.slots[i].shrinkOnDelete(at, n)
		}
	}
}

// TextReset collapses every live span to the start of the document; the
// old text no longer exists.
func (a *Arena) TextReset() {
	for i := range a.slots {
		if a.slots[i].used {
			a.slots[i].start, a.slots[i].end = 0, 0
		}
	}
}
