package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"kidintake/internal/domain"
	"kidintake/internal/ports"
)

const (
	clipMIMEType = "audio/wav"
	clipFileName = "voice.wav"
)

// FFMPEGCapture records fixed-duration WAV clips from the microphone using ffmpeg.
type FFMPEGCapture struct {
	command string
	cfg     ports.AudioConfig

	open atomic.Int32
}

func NewFFMPEGCapture(command string, cfg ports.AudioConfig) *FFMPEGCapture {
	if command == "" {
		command = "ffmpeg"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	return &FFMPEGCapture{command: command, cfg: cfg}
}

// Record captures one clip. The ffmpeg process is reaped before Record
// returns on every path, including context cancellation.
func (c *FFMPEGCapture) Record(ctx context.Context, duration time.Duration) (domain.AudioBlob, error) {
	if duration <= 0 {
		return domain.AudioBlob{}, fmt.Errorf("capture duration must be positive, got %s", duration)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.command, c.args(duration)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 500 * time.Millisecond

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return domain.AudioBlob{}, fmt.Errorf("%w: recorder %q not found", domain.ErrDeviceUnavailable, c.command)
		}
		return domain.AudioBlob{}, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	c.open.Add(1)
	waitErr := cmd.Wait()
	c.open.Add(-1)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.AudioBlob{}, ctxErr
	}
	if waitErr != nil {
		return domain.AudioBlob{}, classifyFailure(waitErr, stderr.String())
	}
	if stdout.Len() == 0 {
		return domain.AudioBlob{}, fmt.Errorf("%w: recorder produced no audio", domain.ErrDeviceUnavailable)
	}

	return domain.AudioBlob{
		Data:     stdout.Bytes(),
		MIMEType: clipMIMEType,
		FileName: clipFileName,
	}, nil
}

// OpenSessions reports recorder processes that have not been reaped yet.
func (c *FFMPEGCapture) OpenSessions() int {
	return int(c.open.Load())
}

func (c *FFMPEGCapture) args(duration time.Duration) []string {
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "error",
		"-f", c.cfg.InputFormat,
		"-i", c.cfg.InputDevice,
		"-t", strconv.FormatFloat(duration.Seconds(), 'f', 3, 64),
		"-ac", strconv.Itoa(c.cfg.Channels),
		"-ar", strconv.Itoa(c.cfg.SampleRate),
		"-f", "wav",
		"-",
	}
}

var permissionMarkers = []string{
	"permission denied",
	"operation not permitted",
	"access denied",
	"not authorized",
}

func classifyFailure(err error, stderr string) error {
	detail := strings.TrimSpace(stderr)
	lower := strings.ToLower(detail)
	for _, marker := range permissionMarkers {
		if strings.Contains(lower, marker) {
			return fmt.Errorf("%w: %s", domain.ErrPermissionDenied, detail)
		}
	}
	if detail == "" {
		detail = err.Error()
	}
	return fmt.Errorf("%w: %s", domain.ErrDeviceUnavailable, detail)
}
