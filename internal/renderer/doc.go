// Package renderer paints a document on a terminal screen.
//
// Each character cell takes its background from the attribution range
// covering it, so text shows in the color of the user who typed it. The
// bottom row is a status line. Cell widths come from grapheme clusters,
// so wide and combining characters line up with the terminal.
package renderer
