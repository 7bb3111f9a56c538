// Package capture owns the audio-capture session lifecycle: acquire the
// device, buffer chunks, finalize into one payload, release the device.
// The device is the only exclusively-owned external resource in the app,
// and this controller is the only entity allowed to hold it.
package capture

import (
	"context"
	"sync"
	"time"

	"github.com/agrimitra/agrimitra/internal/domain"
	"github.com/agrimitra/agrimitra/internal/observability"
)

const defaultMIMEType = "audio/wav"

// Controller is the recording-session state machine:
//
//	idle -> requesting -> recording -> finalizing -> idle
//
// Every exit path (stop, device error, teardown) releases the device.
// Only one session exists at a time; StartCapture while not idle fails.
type Controller struct {
	device   domain.AudioDevice
	mimeType string
	now      func() time.Time

	mu        sync.Mutex
	state     domain.CaptureState
	buffer    [][]byte
	buffered  int
	startedAt time.Time
}

func NewController(device domain.AudioDevice, mimeType string) *Controller {
	if mimeType == "" {
		mimeType = defaultMIMEType
	}
	return &Controller{
		device:   device,
		mimeType: mimeType,
		now:      time.Now,
		state:    domain.CaptureIdle,
	}
}

func (c *Controller) State() domain.CaptureState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// StartCapture requests exclusive access to the audio device and begins
// buffering.
func (c *Controller) StartCapture(ctx context.Context) error {
	c.mu.Lock()
	if c.state != domain.CaptureIdle {
		c.mu.Unlock()
		return domain.NewError(domain.ErrorDeviceUnavailable, "capture_already_active", nil)
	}
	c.state = domain.CaptureRequesting
	c.mu.Unlock()

	log := observability.LoggerFromContext(ctx)
	log.Info("requesting audio device")

	// Enter recording before the device starts delivering: a fast
	// recorder may hand over its first chunk before Start returns, and
	// that chunk must not be dropped.
	c.mu.Lock()
	c.state = domain.CaptureRecording
	c.startedAt = c.now()
	c.mu.Unlock()

	if err := c.device.Start(ctx, c.AppendChunk, c.Fail); err != nil {
		c.mu.Lock()
		c.state = domain.CaptureIdle
		c.buffer = nil
		c.buffered = 0
		c.mu.Unlock()

		log.Error("audio device acquisition failed", "error", err)
		if _, ok := domain.CodeOf(err); ok {
			return err
		}
		return domain.NewError(domain.ErrorDeviceUnavailable, "device_start_failed", err)
	}

	log.Info("recording started")
	return nil
}

// AppendChunk buffers one raw chunk. Called by the device while recording;
// a chunk arriving in any other state is a logic error and is dropped.
func (c *Controller) AppendChunk(data []byte) {
	if len(data) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != domain.CaptureRecording {
		observability.Logger().Warn("audio chunk outside recording state dropped",
			"state", string(c.state), "bytes", len(data))
		return
	}

	chunk := make([]byte, len(data))
	copy(chunk, data)
	c.buffer = append(c.buffer, chunk)
	c.buffered += len(chunk)
}

// StopCapture finalizes the session: the device is released
// unconditionally and the buffered chunks are concatenated into one
// payload. Calling it while not recording is a no-op with no payload.
// An empty buffer also yields no payload; truncated audio is never
// forwarded silently.
func (c *Controller) StopCapture() (*domain.AudioPayload, error) {
	c.mu.Lock()
	if c.state != domain.CaptureRecording {
		c.mu.Unlock()
		return nil, nil
	}
	c.state = domain.CaptureFinalizing
	chunks := c.buffer
	total := c.buffered
	started := c.startedAt
	c.buffer = nil
	c.buffered = 0
	c.mu.Unlock()

	err := c.device.Stop()

	c.mu.Lock()
	c.state = domain.CaptureIdle
	c.mu.Unlock()

	if err != nil {
		// Device already released by Stop; surface the finalization error.
		observability.Logger().Error("audio device stop failed", "error", err)
		return nil, domain.NewError(domain.ErrorDeviceUnavailable, "device_stop_failed", err)
	}

	if total == 0 {
		observability.Logger().Warn("recording stopped with empty buffer")
		return nil, nil
	}

	data := make([]byte, 0, total)
	for _, chunk := range chunks {
		data = append(data, chunk...)
	}

	payload := &domain.AudioPayload{
		Data:     data,
		MIMEType: c.mimeType,
		Duration: c.now().Sub(started),
	}
	observability.Logger().Info("recording finalized",
		"bytes", total, "duration_ms", payload.Duration.Milliseconds())
	return payload, nil
}

// Fail aborts the session after a device I/O error. It is handed to the
// device as its failure callback, so a recorder dying mid-recording lands
// here: immediate transition to idle, device released, buffer discarded.
// No partial payload is forwarded downstream.
func (c *Controller) Fail(err error) {
	c.mu.Lock()
	if c.state != domain.CaptureRecording && c.state != domain.CaptureRequesting {
		c.mu.Unlock()
		return
	}
	c.state = domain.CaptureIdle
	c.buffer = nil
	c.buffered = 0
	c.mu.Unlock()

	if stopErr := c.device.Stop(); stopErr != nil {
		observability.Logger().Error("device release after failure", "error", stopErr)
	}
	observability.Logger().Error("recording aborted", "error", err)
}

// Elapsed reports how long the current recording has been running.
// Presentation-only; zero when not recording.
func (c *Controller) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != domain.CaptureRecording {
		return 0
	}
	return c.now().Sub(c.startedAt)
}
