// Package bridge keeps a local text buffer and a collaborative session in
// step.
//
// The Adapter translates local buffer edits into offset based operations for
// the session and applies operations delivered by the session to the
// buffer. Because the buffer reports every change the same way regardless
// of where it came from, and the session echoes accepted operations back to
// their origin, each direction arms a one-shot suppression flag right before
// it triggers the mirrored notification:
//
//	local edit   -> arm RemoteInsert/RemoteRemove -> session.Send -> echo swallowed
//	remote op    -> arm LocalInsert/LocalRemove   -> buffer edit  -> event swallowed
//
// Once an edit is realized on both sides the Adapter publishes
// events.TextChanged with the author, which drives attribution.
//
// All methods must be called from the goroutine that owns the document.
package bridge
