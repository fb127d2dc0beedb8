// Package position converts between line/column points and flat character
// offsets.
//
// An Offset counts characters (runes) from the start of the document, with
// one character per line separator. A Point is meaningful only relative to a
// document's current line-length table, which a Translator reads through the
// LineSource interface; the translator keeps no other state.
package position
