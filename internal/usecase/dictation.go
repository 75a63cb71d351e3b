package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"kidintake/internal/domain"
	"kidintake/internal/ports"
)

var ErrDictationRunning = errors.New("dictation is already running")

// DictationController chains fixed-duration capture cycles into a growing
// transcript. Capture of clip N+1 starts as soon as clip N is recorded, while
// clip N is still being transcribed; results land in cycle order.
type DictationController struct {
	audio       ports.AudioCapture
	transcriber ports.Transcriber
	events      ports.EventSink
	logger      *slog.Logger
	clip        time.Duration

	mu      sync.Mutex
	current *dictationRun
}

type dictationRun struct {
	cancel     context.CancelFunc
	transcript *Transcript
	done       chan struct{}
}

func (r *dictationRun) running() bool {
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

func NewDictationController(
	audio ports.AudioCapture,
	transcriber ports.Transcriber,
	events ports.EventSink,
	logger *slog.Logger,
	clip time.Duration,
) *DictationController {
	if clip <= 0 {
		clip = 3 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DictationController{
		audio:       audio,
		transcriber: transcriber,
		events:      events,
		logger:      logger,
		clip:        clip,
	}
}

// Start begins capture cycles appending to transcript. A run that ended on
// a capture error may be replaced by a new one on the same transcript.
func (c *DictationController) Start(ctx context.Context, transcript *Transcript) error {
	if transcript == nil {
		return errors.New("dictation needs a transcript")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil && c.current.running() {
		return ErrDictationRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	run := &dictationRun{
		cancel:     cancel,
		transcript: transcript,
		done:       make(chan struct{}),
	}
	c.current = run

	go c.loop(runCtx, run)
	return nil
}

// Stop ends the loop, drops the clip being recorded, waits for clips already
// captured to be transcribed and seals the transcript. Without a run it does
// nothing.
func (c *DictationController) Stop(ctx context.Context) (string, error) {
	c.mu.Lock()
	run := c.current
	c.current = nil
	c.mu.Unlock()

	if run == nil {
		return "", nil
	}

	run.cancel()
	select {
	case <-run.done:
	case <-ctx.Done():
		return run.transcript.Seal(), ctx.Err()
	}

	err := run.transcript.Wait(ctx)
	if err != nil {
		c.logger.Warn("dictation: stopped before all clips were transcribed",
			slog.Int("pending", run.transcript.Pending()),
		)
	}
	return run.transcript.Seal(), err
}

// Active reports whether capture cycles are running.
func (c *DictationController) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil && c.current.running()
}

func (c *DictationController) loop(ctx context.Context, run *dictationRun) {
	defer close(run.done)
	defer run.cancel()

	for cycle := 1; ; cycle++ {
		if ctx.Err() != nil {
			return
		}

		blob, err := c.audio.Record(ctx, c.clip)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("dictation: capture failed",
				slog.Int("cycle", cycle),
				slog.String("error", err.Error()),
			)
			c.events.SessionError(domain.ErrorCodeCapture, err.Error())
			c.events.IntakeStageChanged(domain.IntakeStageAwaitingSymptoms, domain.IntakeReasonDictationInterrupted)
			return
		}

		slot, ok := run.transcript.reserve()
		if !ok {
			return
		}
		go c.transcribe(ctx, run.transcript, slot, cycle, blob)
	}
}

func (c *DictationController) transcribe(ctx context.Context, transcript *Transcript, slot int, cycle int, blob domain.AudioBlob) {
	// Clips already captured are transcribed even when the loop stops.
	text, err := c.transcriber.Transcribe(context.WithoutCancel(ctx), blob)
	if err != nil {
		c.logger.Warn("dictation: transcription failed",
			slog.Int("cycle", cycle),
			slog.String("error", err.Error()),
		)
		c.events.SessionError(domain.ErrorCodeTranscription, fmt.Sprintf("clip %d was not transcribed: %v", cycle, err))
		text = ""
	}

	if transcript.resolve(slot, text) {
		c.events.PartialTranscript(transcript.Text())
	}
}
