package gateway

// FrameType identifies the kind of frame sent over the WebSocket connection.
type FrameType string

const (
	FrameTypeQuery FrameType = "query"
	FrameTypeDelta FrameType = "delta"
	FrameTypeDone  FrameType = "done"
	FrameTypeError FrameType = "error"
)

// Frame is the envelope exchanged between client and server over WebSocket.
type Frame struct {
	Type      FrameType `json:"type"`
	Content   string    `json:"content,omitempty"`    // query text or answer chunk
	Error     string    `json:"error,omitempty"`      // error frames only
	RequestID string    `json:"request_id,omitempty"` // done and error frames
}
