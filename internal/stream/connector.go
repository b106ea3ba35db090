package stream

import "context"

// Conn is an open acquisition session to one source. It is owned exclusively
// by the capture loop that created it and must be closed on failure,
// cancellation or replacement. It is never shared across retries.
type Conn interface {
	// ReadFrame blocks until the next frame arrives, the read timeout
	// expires, or ctx is cancelled. Errors are AttemptErrors.
	ReadFrame(ctx context.Context) (FramePayload, error)
	Close() error
}

// Connector establishes a bounded-duration connection for one acquisition
// variant of a source. Establishing must respect the connect timeout; reads
// on the returned Conn respect the read timeout.
type Connector interface {
	Connect(ctx context.Context, desc SourceDescriptor, variant VariantKind) (Conn, error)
}
