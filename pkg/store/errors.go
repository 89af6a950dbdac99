package store

import "errors"

// Sentinel errors surfaced by store operations. Callers match with
// errors.Is; root causes stay wrapped for logging.
var (
	// ErrAlreadyExists is returned by Create when the project directory
	// is already present.
	ErrAlreadyExists = errors.New("project already exists")

	// ErrNotFound is returned when a project directory does not exist.
	ErrNotFound = errors.New("project not found")

	// ErrArtifactMissing is returned when a step has no current artifact.
	ErrArtifactMissing = errors.New("artifact missing")

	// ErrArtifactCorrupt is returned when an artifact file exists but fails
	// the envelope shape check. Corrupt artifacts are never auto-deleted;
	// the caller decides (typically by revising the step).
	ErrArtifactCorrupt = errors.New("artifact corrupt")
)
