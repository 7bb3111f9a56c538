// Package audio adapts external commands to the audio ports: a recorder
// command (ffmpeg, arecord) as the capture device and a text-to-speech
// command as the speaker.
package audio

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/agrimitra/agrimitra/internal/domain"
)

const chunkSize = 4096

// CommandDevice runs a recorder command and streams its stdout to the
// capture controller as raw chunks. Delivery may begin as soon as Start
// is called; a recorder that dies before Stop is reported through the
// fail callback.
type CommandDevice struct {
	command []string

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{}
}

// NewCommandDevice wraps a recorder command line, e.g.
// "ffmpeg -loglevel quiet -f alsa -i default -f wav -".
func NewCommandDevice(command string) *CommandDevice {
	return &CommandDevice{command: strings.Fields(command)}
}

func (d *CommandDevice) Start(ctx context.Context, sink func(chunk []byte), fail func(err error)) error {
	if len(d.command) == 0 {
		return domain.NewError(domain.ErrorDeviceUnavailable, "no_record_command", nil)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cmd != nil {
		return domain.NewError(domain.ErrorDeviceUnavailable, "device_already_held", nil)
	}

	cmd := exec.Command(d.command[0], d.command[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return domain.NewError(domain.ErrorDeviceUnavailable, "pipe_failed", err)
	}

	if err := cmd.Start(); err != nil {
		switch {
		case errors.Is(err, exec.ErrNotFound):
			return domain.NewError(domain.ErrorDeviceUnavailable, "recorder_not_installed", err)
		case errors.Is(err, os.ErrPermission):
			return domain.NewError(domain.ErrorPermissionDenied, "recorder_not_executable", err)
		default:
			return domain.NewError(domain.ErrorDeviceUnavailable, "recorder_start_failed", err)
		}
	}

	done := make(chan struct{})
	d.cmd = cmd
	d.done = done

	go func() {
		buf := make([]byte, chunkSize)
		var readErr error
		for {
			n, err := stdout.Read(buf)
			if n > 0 {
				sink(buf[:n])
			}
			if err != nil {
				readErr = err
				break
			}
		}
		close(done)

		// Distinguish Stop tearing the stream down from the recorder
		// dying on its own. Stop clears d.cmd before killing, so the
		// handle still matching means nobody asked for this exit.
		d.mu.Lock()
		died := d.cmd == cmd
		if died {
			d.cmd = nil
			d.done = nil
		}
		d.mu.Unlock()
		if !died {
			return
		}

		_ = cmd.Wait()
		if fail != nil {
			fail(domain.NewError(domain.ErrorDeviceUnavailable, "recorder_died", readErr))
		}
	}()

	return nil
}

// Stop kills the recorder and waits for the chunk stream to drain.
// Releasing an already-released device is a no-op.
func (d *CommandDevice) Stop() error {
	d.mu.Lock()
	cmd := d.cmd
	done := d.done
	d.cmd = nil
	d.done = nil
	d.mu.Unlock()

	if cmd == nil {
		return nil
	}

	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
	<-done
	// The recorder exits non-zero when killed; that is expected.
	_ = cmd.Wait()
	return nil
}
