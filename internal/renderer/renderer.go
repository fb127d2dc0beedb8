package renderer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/rivo/uniseg"

	"github.com/dshills/collabedit/internal/engine/position"
)

// DefaultTabWidth is used when no tab width is configured.
const DefaultTabWidth = 4

// Source is the text being drawn.
type Source interface {
	position.LineSource
	Line(i int) string
}

// Attribution reports the author color of a character.
type Attribution interface {
	ColorAt(o position.Offset) (colorful.Color, bool)
}

// Status is shown on the bottom row.
type Status struct {
	User     string
	Color    colorful.Color
	Document string
	State    string
	Peers    int
	Message  string
}

// Renderer draws onto a tcell screen.
type Renderer struct {
	screen      tcell.Screen
	tabWidth    int
	attribution bool
	base        tcell.Style
	top         int
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithTabWidth sets the tab stop interval.
func WithTabWidth(n int) Option {
	return func(r *Renderer) {
		if n > 0 {
			r.tabWidth = n
		}
	}
}

// WithAttribution turns author backgrounds on or off.
func WithAttribution(enabled bool) Option {
	return func(r *Renderer) {
		r.attribution = enabled
	}
}

// New creates a renderer for screen.
func New(screen tcell.Screen, opts ...Option) *Renderer {
	r := &Renderer{
		screen:      screen,
		tabWidth:    DefaultTabWidth,
		attribution: true,
		base:        tcell.StyleDefault,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Top returns the first visible line.
func (r *Renderer) Top() int { return r.top }

// Draw paints src with the cursor at cursor and shows the result.
// attr may be nil.
func (r *Renderer) Draw(src Source, attr Attribution, cursor position.Point, status Status) {
	width, height := r.screen.Size()
	r.screen.Clear()
	if width <= 0 || height <= 0 {
		return
	}

	rows := height - 1
	r.scroll(cursor.Line, rows)

	tr := position.NewTranslator(src)
	for row := 0; row < rows; row++ {
		line := r.top + row
		if line >= src.LineCount() {
			break
		}
		start := tr.ToOffset(position.Point{Line: line})
		r.drawLine(row, width, src.Line(line), start, attr)
	}

	r.drawStatus(height-1, width, status)

	if rows > 0 {
		x := r.Column(src.Line(cursor.Line), cursor.Column)
		if x < width {
			r.screen.ShowCursor(x, cursor.Line-r.top)
		} else {
			r.screen.HideCursor()
		}
	}
	r.screen.Show()
}

// scroll keeps line inside the visible rows.
func (r *Renderer) scroll(line, rows int) {
	if rows <= 0 {
		return
	}
	if line < r.top {
		r.top = line
	}
	if line >= r.top+rows {
		r.top = line - rows + 1
	}
}

func (r *Renderer) drawLine(y, width int, text string, offset position.Offset, attr Attribution) {
	x := 0
	state := -1
	for text != "" && x < width {
		var cluster string
		var w int
		cluster, text, w, state = uniseg.FirstGraphemeClusterInString(text, state)

		style := r.styleAt(offset, attr)
		runes := []rune(cluster)
		if cluster == "\t" {
			w = r.tabWidth - x%r.tabWidth
			for i := 0; i < w && x+i < width; i++ {
				r.screen.SetContent(x+i, y, ' ', nil, style)
			}
		} else {
			r.screen.SetContent(x, y, runes[0], runes[1:], style)
		}
		x += w
		offset += utf8.RuneCountInString(cluster)
	}
}

func (r *Renderer) styleAt(o position.Offset, attr Attribution) tcell.Style {
	if !r.attribution || attr == nil {
		return r.base
	}
	c, ok := attr.ColorAt(o)
	if !ok {
		return r.base
	}
	return r.base.Background(toTcell(c)).Foreground(contrast(c))
}

func (r *Renderer) drawStatus(y, width int, s Status) {
	style := r.base.Reverse(true)
	var b strings.Builder
	fmt.Fprintf(&b, " %s", s.User)
	if s.Document != "" {
		fmt.Fprintf(&b, " | %s", s.Document)
	}
	if s.State != "" {
		fmt.Fprintf(&b, " | %s", s.State)
	}
	if s.Peers > 0 {
		fmt.Fprintf(&b, " | %d peers", s.Peers)
	}
	if s.Message != "" {
		fmt.Fprintf(&b, " | %s", s.Message)
	}

	x := 0
	for i := 0; i < width; i++ {
		r.screen.SetContent(i, y, ' ', nil, style)
	}
	// The user's name carries their color.
	nameEnd := 1 + uniseg.StringWidth(s.User)
	text := b.String()
	state := -1
	for text != "" && x < width {
		var cluster string
		var w int
		cluster, text, w, state = uniseg.FirstGraphemeClusterInString(text, state)
		cs := style
		if x >= 1 && x < nameEnd && s.Color != (colorful.Color{}) {
			cs = r.base.Background(toTcell(s.Color)).Foreground(contrast(s.Color))
		}
		runes := []rune(cluster)
		r.screen.SetContent(x, y, runes[0], runes[1:], cs)
		x += w
	}
}

// Column returns the screen column of character col of line.
func (r *Renderer) Column(line string, col int) int {
	x := 0
	state := -1
	for i := 0; i < col && line != ""; {
		var cluster string
		var w int
		cluster, line, w, state = uniseg.FirstGraphemeClusterInString(line, state)
		if cluster == "\t" {
			w = r.tabWidth - x%r.tabWidth
		}
		x += w
		i += utf8.RuneCountInString(cluster)
	}
	return x
}

func toTcell(c colorful.Color) tcell.Color {
	cr, cg, cb := c.Clamped().RGB255()
	return tcell.NewRGBColor(int32(cr), int32(cg), int32(cb))
}

// contrast picks black or white text for background c.
func contrast(c colorful.Color) tcell.Color {
	l, _, _ := c.Clamped().Lab()
	if l > 0.6 {
		return tcell.ColorBlack
	}
	return tcell.ColorWhite
}
