package stream

import (
	"context"
	"time"
)

// VariantKind identifies one acquisition method for a camera source.
type VariantKind string

const (
	// VariantMJPEG pulls a continuous multipart JPEG stream from /cgi-bin/mjpeg.
	VariantMJPEG VariantKind = "mjpeg"
	// VariantSnapshot polls single JPEG frames from /cgi-bin/camera.
	VariantSnapshot VariantKind = "snapshot"
)

func (v VariantKind) Valid() bool {
	return v == VariantMJPEG || v == VariantSnapshot
}

// SourceDescriptor identifies one camera endpoint and how to acquire it.
// Immutable once a session starts; changing a source means removing and
// re-adding it.
type SourceDescriptor struct {
	ID       string
	Name     string
	Host     string
	Port     int
	Username string
	Password string
	Width    int
	Height   int

	// Variants is the ordered list of acquisition methods to try.
	Variants []VariantKind

	// BackoffCap overrides the registry-wide backoff ceiling when > 0.
	BackoffCap time.Duration

	// FallbackAfter overrides how many consecutive failures on one variant
	// are tolerated before advancing to the next. Zero means registry default.
	FallbackAfter int

	// SnapshotInterval paces snapshot-variant reads. Zero means registry default.
	SnapshotInterval time.Duration
}

// FrameRecord is the newest successfully decoded frame of a source.
// Readers must treat a record as immutable once observed.
type FrameRecord struct {
	SourceID   string
	Seq        uint64
	Data       []byte
	Width      int
	Height     int
	Variant    VariantKind
	CapturedAt time.Time
}

// FramePayload is one decoded unit of data returned by a connection.
type FramePayload struct {
	Data   []byte
	Width  int
	Height int
}

// FrameSink receives a subsample of published frames for archival.
// Implementations must not assume they are called on every frame.
type FrameSink interface {
	StoreFrame(ctx context.Context, rec FrameRecord) error
}
