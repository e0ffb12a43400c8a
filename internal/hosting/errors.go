package hosting

import "errors"

var (
	// ErrSourceNotFound is returned when a file to publish does not exist or cannot be read.
	ErrSourceNotFound = errors.New("source file not found")

	// ErrListenerBind is returned when the file host cannot bind its port.
	ErrListenerBind = errors.New("file host listener bind failed")

	// ErrWrite is returned when content could not be fully written into the store.
	ErrWrite = errors.New("write to ephemeral store failed")

	// ErrInvalidName is returned for file names that are not a single flat path segment.
	ErrInvalidName = errors.New("invalid file name")
)
