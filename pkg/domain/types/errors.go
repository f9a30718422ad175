package types

import "errors"

// Error taxonomy of the capture and retrieval pipeline.
// These sentinels survive goerr wrapping, so callers classify failures
// with errors.Is regardless of how much context was attached on the way up.
var (
	// ErrUnknownSession is returned when an operation references a session
	// that does not exist or no longer accepts writes
	ErrUnknownSession = errors.New("unknown session")

	// ErrCompressionTimeout is returned when a compression job exceeded
	// its execution budget. The raw events are requeued, never discarded.
	ErrCompressionTimeout = errors.New("compression timed out")

	// ErrCompressionFailed is returned when the summarization backend
	// failed for a reason other than timeout
	ErrCompressionFailed = errors.New("compression failed")

	// ErrStorageUnavailable is returned on storage-layer I/O failure.
	// Fatal for the request, never for the process.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrSemanticUnavailable indicates the semantic index backend is
	// unreachable. Always absorbed by the search engine, never surfaced
	// to external callers.
	ErrSemanticUnavailable = errors.New("semantic index unavailable")

	// ErrInvalidQuery is returned when a required search parameter is missing
	ErrInvalidQuery = errors.New("invalid query")
)
