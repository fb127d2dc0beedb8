// Package attribution tracks which user last authored each part of a
// document.
//
// The Tracker keeps an insertion-ordered set of colored ranges backed by
// anchored spans. The spans follow buffer edits on their own: text inserted
// at a span's start pushes the span forward, text inserted at its end stays
// outside, and removed text shrinks it, possibly to nothing. The Tracker
// only acts on insertions:
//
//  1. empty ranges are pruned;
//  2. the ranges are scanned in order for one of the inserting user's color
//     that contains, immediately precedes or immediately follows the new
//     text, which is then absorbed and the scan stops; a range of another
//     color that contains the new text is split around it;
//  3. if nothing absorbed the text, a new range covering it is appended.
//
// Removals are ignored until the next insertion prunes what they emptied.
package attribution
