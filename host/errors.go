package host

import "errors"

// Host errors.
var (
	// ErrNoDocument is returned when a tree has no document root.
	ErrNoDocument = errors.New("node is not a document")

	// ErrFrameLimit is returned when RunUntilIdle does not settle within the
	// configured number of frames.
	ErrFrameLimit = errors.New("frame limit reached before loop became idle")

	// ErrHierarchy is returned for insertions that would create a cycle.
	ErrHierarchy = errors.New("invalid node hierarchy")
)
