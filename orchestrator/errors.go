package orchestrator

import "errors"

var (
	// ErrCollision aborts an import/restore running under the "fail"
	// collision policy on the first pre-existing key.
	ErrCollision = errors.New("target key already exists")

	// ErrArtifactNotFound is reported when an export artifact has already
	// been downloaded, expired, or was never produced.
	ErrArtifactNotFound = errors.New("export artifact not found")

	// ErrJobAlreadyActive guards against two coordinators owning the same
	// job id.
	ErrJobAlreadyActive = errors.New("job already has an active coordinator")

	// ErrCancelUnsupported answers cancel requests. Cancellation support
	// was removed; the persisted "cancelled" status is historical only.
	ErrCancelUnsupported = errors.New("job cancellation is not supported")
)
