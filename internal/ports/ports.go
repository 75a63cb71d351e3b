package ports

import (
	"context"
	"time"

	"kidintake/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioCapture records one fixed-duration clip per call. Implementations
// release the input device before returning, whatever the outcome.
type AudioCapture interface {
	Record(ctx context.Context, duration time.Duration) (domain.AudioBlob, error)
}

// Transcriber turns one clip into text.
type Transcriber interface {
	Transcribe(ctx context.Context, blob domain.AudioBlob) (string, error)
}

// Summarizer produces a free-text clinical summary from symptom text.
type Summarizer interface {
	Summarize(ctx context.Context, content string) (string, error)
}

// RecordSubmitter persists a reviewed record on the backend.
type RecordSubmitter interface {
	SubmitRecord(ctx context.Context, submission domain.RecordSubmission) (int64, error)
}

// PatientDirectory lists and registers patients on the backend.
type PatientDirectory interface {
	ListPatients(ctx context.Context) ([]domain.Patient, error)
	CreatePatient(ctx context.Context, patient domain.NewPatient) (domain.Patient, error)
}

// RecordStore holds the symptom records produced in this app.
type RecordStore interface {
	Append(ctx context.Context, record domain.SymptomRecord) error
	Get(ctx context.Context, id string) (domain.SymptomRecord, error)
	List(ctx context.Context) ([]domain.SymptomRecord, error)
	// MarkCompleted flips IsCompleted once; a second call fails with
	// domain.ErrAlreadySubmitted.
	MarkCompleted(ctx context.Context, id string) error
}

// TextCorrector rewrites symptom text before it is summarized.
type TextCorrector interface {
	Apply(text string) (string, error)
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	IntakeStageChanged(stage domain.IntakeStage, reason domain.IntakeReason)
	PartialTranscript(text string)
	RecordSaved(record domain.RecordView)
	SessionError(code domain.ErrorCode, detail string)
}
