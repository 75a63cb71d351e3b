package audio

import (
	"context"
	"sync"
	"time"

	"kidintake/internal/domain"
	"kidintake/internal/ports"
)

// Exclusive allows one open capture at a time on the wrapped device.
type Exclusive struct {
	capture ports.AudioCapture
	mu      sync.Mutex
}

func NewExclusive(capture ports.AudioCapture) *Exclusive {
	return &Exclusive{capture: capture}
}

// Record fails fast with domain.ErrAlreadyRecording while another clip is open.
func (e *Exclusive) Record(ctx context.Context, duration time.Duration) (domain.AudioBlob, error) {
	if !e.mu.TryLock() {
		return domain.AudioBlob{}, domain.ErrAlreadyRecording
	}
	defer e.mu.Unlock()
	return e.capture.Record(ctx, duration)
}
