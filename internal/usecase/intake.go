package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"kidintake/internal/domain"
	"kidintake/internal/ports"
)

var (
	ErrWrongStage          = errors.New("operation is not allowed in the current intake stage")
	ErrNoSpeech            = errors.New("no speech detected")
	ErrDictationNotStarted = errors.New("symptom dictation has not been started")
)

// IntakeConfig controls clip lengths of the intake flow.
type IntakeConfig struct {
	NameClip      time.Duration
	NameSettle    time.Duration
	DictationClip time.Duration
	Now           func() time.Time
}

type intakeState interface {
	stage() domain.IntakeStage
}

type awaitingName struct {
	capturing bool
}

type awaitingSymptoms struct {
	childName  string
	transcript *Transcript
	started    bool
	stopping   bool
}

type completed struct {
	record domain.SymptomRecord
}

func (*awaitingName) stage() domain.IntakeStage     { return domain.IntakeStageAwaitingName }
func (*awaitingSymptoms) stage() domain.IntakeStage { return domain.IntakeStageAwaitingSymptoms }
func (*completed) stage() domain.IntakeStage        { return domain.IntakeStageCompleted }

// IntakeController walks one child at a time through name capture, symptom
// dictation and completion.
type IntakeController struct {
	audio       ports.AudioCapture
	transcriber ports.Transcriber
	dictation   *DictationController
	records     ports.RecordStore
	events      ports.EventSink
	logger      *slog.Logger
	cfg         IntakeConfig
	newID       func() string

	mu    sync.Mutex
	state intakeState
}

func NewIntakeController(
	audio ports.AudioCapture,
	transcriber ports.Transcriber,
	records ports.RecordStore,
	events ports.EventSink,
	logger *slog.Logger,
	cfg IntakeConfig,
) *IntakeController {
	if cfg.NameClip <= 0 {
		cfg.NameClip = 3 * time.Second
	}
	if cfg.NameSettle < 0 {
		cfg.NameSettle = 0
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &IntakeController{
		audio:       audio,
		transcriber: transcriber,
		dictation:   NewDictationController(audio, transcriber, events, logger, cfg.DictationClip),
		records:     records,
		events:      events,
		logger:      logger,
		cfg:         cfg,
		newID:       uuid.NewString,
		state:       &awaitingName{},
	}
}

// CaptureName records one clip, transcribes it and moves to symptom capture.
// Any failure leaves the flow waiting for the name so the child can retry.
func (c *IntakeController) CaptureName(ctx context.Context) (string, error) {
	c.mu.Lock()
	st, ok := c.state.(*awaitingName)
	if !ok {
		c.mu.Unlock()
		return "", ErrWrongStage
	}
	if st.capturing {
		c.mu.Unlock()
		return "", domain.ErrAlreadyRecording
	}
	st.capturing = true
	c.mu.Unlock()

	c.events.IntakeStageChanged(domain.IntakeStageAwaitingName, domain.IntakeReasonNameCaptureStarted)

	blob, err := c.audio.Record(ctx, c.cfg.NameClip)
	if err != nil {
		c.logger.Error("intake: name capture failed", slog.String("error", err.Error()))
		c.events.SessionError(domain.ErrorCodeCapture, err.Error())
		c.retryName(domain.IntakeReasonCaptureFailed)
		return "", err
	}

	text, err := c.transcriber.Transcribe(ctx, blob)
	if err != nil {
		c.logger.Warn("intake: name transcription failed", slog.String("error", err.Error()))
		c.events.SessionError(domain.ErrorCodeTranscription, err.Error())
		c.retryName(domain.IntakeReasonTranscriptionFailed)
		return "", err
	}

	name := strings.TrimSpace(text)
	if name == "" {
		c.retryName(domain.IntakeReasonNoSpeech)
		return "", ErrNoSpeech
	}

	if c.cfg.NameSettle > 0 {
		timer := time.NewTimer(c.cfg.NameSettle)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			c.retryName(domain.IntakeReasonCaptureFailed)
			return "", ctx.Err()
		}
	}

	c.mu.Lock()
	c.state = &awaitingSymptoms{childName: name, transcript: NewTranscript()}
	c.mu.Unlock()

	c.logger.Info("intake: name captured", slog.String("child_name", name))
	c.events.IntakeStageChanged(domain.IntakeStageAwaitingSymptoms, domain.IntakeReasonNameCaptured)
	return name, nil
}

func (c *IntakeController) retryName(reason domain.IntakeReason) {
	c.mu.Lock()
	c.state = &awaitingName{}
	c.mu.Unlock()
	c.events.IntakeStageChanged(domain.IntakeStageAwaitingName, reason)
}

// StartSymptoms begins dictation. It may be called again after a capture
// error interrupted the previous run; the transcript keeps growing. Once a
// stop has sealed the transcript only StopSymptoms is accepted.
func (c *IntakeController) StartSymptoms(ctx context.Context) error {
	c.mu.Lock()
	st, ok := c.state.(*awaitingSymptoms)
	if !ok || st.stopping || st.transcript.Sealed() {
		c.mu.Unlock()
		return ErrWrongStage
	}
	if err := c.dictation.Start(ctx, st.transcript); err != nil {
		c.mu.Unlock()
		return err
	}
	st.started = true
	c.mu.Unlock()

	c.logger.Info("intake: dictation started", slog.String("child_name", st.childName))
	c.events.IntakeStageChanged(domain.IntakeStageAwaitingSymptoms, domain.IntakeReasonDictationStarted)
	return nil
}

// StopSymptoms finalizes the transcript, stores the SymptomRecord and
// completes the intake.
func (c *IntakeController) StopSymptoms(ctx context.Context) (domain.RecordView, error) {
	c.mu.Lock()
	st, ok := c.state.(*awaitingSymptoms)
	if !ok || st.stopping {
		c.mu.Unlock()
		return domain.RecordView{}, ErrWrongStage
	}
	if !st.started {
		c.mu.Unlock()
		return domain.RecordView{}, ErrDictationNotStarted
	}
	st.stopping = true
	c.mu.Unlock()

	if _, err := c.dictation.Stop(ctx); err != nil {
		c.events.SessionError(domain.ErrorCodeTranscription, "some clips were not transcribed before stop")
	}
	symptoms := st.transcript.Seal()

	record := domain.SymptomRecord{
		ID:        c.newID(),
		ChildName: st.childName,
		Symptoms:  symptoms,
		Timestamp: c.cfg.Now(),
	}
	if err := c.records.Append(ctx, record); err != nil {
		c.logger.Error("intake: record append failed", slog.String("error", err.Error()))
		c.events.SessionError(domain.ErrorCodeStore, err.Error())
		c.mu.Lock()
		st.stopping = false
		c.mu.Unlock()
		return domain.RecordView{}, err
	}

	c.mu.Lock()
	c.state = &completed{record: record}
	c.mu.Unlock()

	view := record.View()
	c.logger.Info("intake: record saved",
		slog.String("record_id", record.ID),
		slog.Int("symptom_chars", len([]rune(symptoms))),
	)
	c.events.RecordSaved(view)
	c.events.IntakeStageChanged(domain.IntakeStageCompleted, domain.IntakeReasonRecordSaved)
	return view, nil
}

// Reset starts over for the next child. Stored records are kept.
func (c *IntakeController) Reset() error {
	c.mu.Lock()
	if _, ok := c.state.(*completed); !ok {
		c.mu.Unlock()
		return ErrWrongStage
	}
	c.state = &awaitingName{}
	c.mu.Unlock()

	c.events.IntakeStageChanged(domain.IntakeStageAwaitingName, domain.IntakeReasonReset)
	return nil
}

// Status returns a snapshot for the UI.
func (c *IntakeController) Status() domain.IntakeStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := domain.IntakeStatus{Stage: c.state.stage()}
	switch st := c.state.(type) {
	case *awaitingName:
		status.Capturing = st.capturing
	case *awaitingSymptoms:
		status.ChildName = st.childName
		status.Symptoms = st.transcript.Text()
		status.Dictating = c.dictation.Active()
		status.Capturing = status.Dictating
	case *completed:
		view := st.record.View()
		status.ChildName = st.record.ChildName
		status.Symptoms = st.record.Symptoms
		status.LastRecord = &view
	}
	return status
}

// Records lists the symptom records produced so far.
func (c *IntakeController) Records(ctx context.Context) ([]domain.RecordView, error) {
	records, err := c.records.List(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]domain.RecordView, 0, len(records))
	for _, record := range records {
		views = append(views, record.View())
	}
	return views, nil
}

// Shutdown releases any running dictation.
func (c *IntakeController) Shutdown(ctx context.Context) {
	_, _ = c.dictation.Stop(ctx)
}
