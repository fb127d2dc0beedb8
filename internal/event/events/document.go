package events

import "github.com/dshills/collabedit/internal/event"

// Document event topics.
const (
	// TopicDocumentStateChanged is published on every load state transition.
	TopicDocumentStateChanged event.Topic = "document.state.changed"

	// TopicDocumentFatal is published when the document can no longer be
	// kept consistent and stops editing.
	TopicDocumentFatal event.Topic = "document.fatal"
)

// DocumentStateChanged describes a load state transition.
type DocumentStateChanged struct {
	Name string
	From string
	To   string
}

// DocumentFatal carries the error that stopped a document.
type DocumentFatal struct {
	Name string
	Err  error
}
