// Package user describes collaborating users: identity, display name and the
// color their edits are attributed with.
package user

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/lucasb-eyer/go-colorful"
)

// ErrInvalidColor is returned when a color string cannot be parsed.
var ErrInvalidColor = errors.New("invalid color")

// User is a participant of a collaborative session.
type User struct {
	ID    uuid.UUID
	Name  string
	Color colorful.Color
}

// New creates a user with a fresh random ID.
func New(name string, color colorful.Color) User {
	return User{ID: uuid.New(), Name: name, Color: color}
}

// String returns the user's name and ID.
func (u User) String() string {
	return fmt.Sprintf("%s <%s>", u.Name, u.ID)
}

// IsZero reports whether u is the zero User.
func (u User) IsZero() bool {
	return u.ID == uuid.Nil
}

// HexColor returns the user's color as #rrggbb.
func (u User) HexColor() string {
	return u.Color.Clamped().Hex()
}

// SameColor reports whether two colors are equal at 8 bits per channel.
// Attribution treats edits with equal colors as coming from one author.
func SameColor(a, b colorful.Color) bool {
	ar, ag, ab := a.Clamped().RGB255()
	br, bg, bb := b.Clamped().RGB255()
	return ar == br && ag == bg && ab == bb
}

// ParseColor parses a #rrggbb or #rgb color.
func ParseColor(s string) (colorful.Color, error) {
	if len(s) == 4 && s[0] == '#' {
		s = string([]byte{'#', s[1], s[1], s[2], s[2], s[3], s[3]})
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("%w %q: %v", ErrInvalidColor, s, err)
	}
	return c, nil
}

// goldenAngle spreads consecutive hues as far apart as possible.
const goldenAngle = 137.50776405003785

// Palette hands out well separated, light background colors in a fixed
// order, so the same join order always yields the same colors.
type Palette struct {
	next       int
	saturation float64
	value      float64
}

// NewPalette creates a palette of pastel colors suited to text backgrounds.
func NewPalette() *Palette {
	return &Palette{saturation: 0.35, value: 0.95}
}

// Next returns the next color of the palette.
func (p *Palette) Next() colorful.Color {
	hue := math.Mod(float64(p.next)*goldenAngle, 360)
	p.next++
	return colorful.Hsv(hue, p.saturation, p.value)
}

// Directory tracks the users known to a session, keyed by ID.
type Directory struct {
	users map[uuid.UUID]User
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{users: make(map[uuid.UUID]User)}
}

// Put adds or replaces a user.
func (d *Directory) Put(u User) {
	d.users[u.ID] = u
}

// Get looks up a user by ID.
func (d *Directory) Get(id uuid.UUID) (User, bool) {
	u, ok := d.users[id]
	return u, ok
}

// Remove forgets a user.
func (d *Directory) Remove(id uuid.UUID) {
	delete(d.users, id)
}

// Len returns the number of known users.
func (d *Directory) Len() int {
	return len(d.users)
}

// All returns the known users sorted by name, then ID.
func (d *Directory) All() []User {
	out := make([]User, 0, len(d.users))
	for _, u := range d.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}
