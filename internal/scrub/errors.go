package scrub

import "errors"

var (
	// ErrInvalidInputKind is returned when top-level params cannot be viewed
	// as a mapping.
	ErrInvalidInputKind = errors.New("params cannot be viewed as a mapping")

	// ErrAttachmentExtraction is raised while reading attachment metadata.
	// It never leaves the scrubber.
	ErrAttachmentExtraction = errors.New("attachment metadata extraction failed")
)
