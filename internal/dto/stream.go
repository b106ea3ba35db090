package dto

type StreamResponse struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	State               string `json:"state"`
	Connected           bool   `json:"connected"`
	Variant             string `json:"variant"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	NextAttemptAt       string `json:"next_attempt_at,omitempty"`
	LastFailure         string `json:"last_failure,omitempty"`
	Seq                 uint64 `json:"seq"`
	LastFrameAt         string `json:"last_frame_at,omitempty"`
}

type StreamListResponse struct {
	Total   int              `json:"total"`
	Streams []StreamResponse `json:"streams"`
}

type ArchivedFrameResponse struct {
	CapturedAtMs int64  `json:"captured_at_ms"`
	SizeBytes    int    `json:"size_bytes"`
	Data         []byte `json:"data,omitempty"`
}

type FrameListResponse struct {
	SourceID string                  `json:"source_id"`
	Count    int                     `json:"count"`
	Frames   []ArchivedFrameResponse `json:"frames"`
}
