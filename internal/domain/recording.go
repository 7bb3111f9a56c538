package domain

import "time"

// CaptureState enumerates the recording session's state machine.
type CaptureState string

const (
	CaptureIdle       CaptureState = "idle"
	CaptureRequesting CaptureState = "requesting"
	CaptureRecording  CaptureState = "recording"
	CaptureFinalizing CaptureState = "finalizing"
)

// AudioPayload is a finalized capture: all buffered chunks concatenated
// into one opaque body, ready for dispatch.
type AudioPayload struct {
	Data     []byte
	MIMEType string
	Duration time.Duration
}

// ImageUpload is a user-picked image pending dispatch.
type ImageUpload struct {
	Data     []byte
	Name     string
	MIMEType string
}
