// Package watcher keeps the index in step with the working tree while
// the server runs in watch mode. File events are debounced, filtered
// against the configured globs, and replayed through the index
// coordinator one file at a time.
package watcher

import (
	"time"
)

// Operation classifies a file system event.
type Operation int

const (
	OpCreate Operation = iota
	OpModify
	OpDelete
	OpRename
	// OpGitignoreChange fires when a .gitignore changes anywhere in the
	// tree. The runner answers with a full reconcile pass because a
	// pattern edit can add or remove arbitrarily many files at once.
	OpGitignoreChange
)

func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	case OpRename:
		return "rename"
	case OpGitignoreChange:
		return "gitignore_change"
	default:
		return "unknown"
	}
}

// FileEvent is one debounced change, with Path relative to the watch
// root in slash form.
type FileEvent struct {
	Path      string
	Operation Operation
	IsDir     bool
	Timestamp time.Time
}

// Options tunes the watcher.
type Options struct {
	// DebounceWindow is how long to coalesce events per path before
	// emitting a batch. Editors tend to write files several times in
	// quick succession.
	DebounceWindow time.Duration

	// EventBufferSize bounds the outgoing batch channel. Batches beyond
	// it are dropped with a warning rather than blocking the event loop.
	EventBufferSize int

	// IgnorePatterns are extra gitignore-syntax patterns on top of the
	// watched tree's own .gitignore files.
	IgnorePatterns []string
}

// WithDefaults fills zero values.
func (o Options) WithDefaults() Options {
	if o.DebounceWindow == 0 {
		o.DebounceWindow = 200 * time.Millisecond
	}
	if o.EventBufferSize == 0 {
		o.EventBufferSize = 1000
	}
	return o
}
