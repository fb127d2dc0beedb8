package document

// State is the load state of a document.
type State int32

const (
	// StateUnloaded means no content has been received yet.
	StateUnloaded State = iota
	// StateSynchronizing means the session snapshot is being loaded.
	StateSynchronizing
	// StateJoining means the content is loaded and the user join is pending.
	StateJoining
	// StateComplete means the document is live and editable.
	StateComplete
	// StateFailed means the document stopped after a fatal error.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateSynchronizing:
		return "synchronizing"
	case StateJoining:
		return "joining"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
