package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"kidintake/internal/domain"
)

type fakeClip struct {
	data string
	err  error
}

// fakeCapture returns the scripted clips in order, then blocks like a live
// microphone until its context is cancelled.
type fakeCapture struct {
	mu        sync.Mutex
	clips     []fakeClip
	index     int
	open      int
	durations []time.Duration
}

func (f *fakeCapture) Record(ctx context.Context, duration time.Duration) (domain.AudioBlob, error) {
	f.mu.Lock()
	f.durations = append(f.durations, duration)
	if f.index < len(f.clips) {
		clip := f.clips[f.index]
		f.index++
		f.mu.Unlock()
		if clip.err != nil {
			return domain.AudioBlob{}, clip.err
		}
		return domain.AudioBlob{Data: []byte(clip.data), MIMEType: "audio/wav", FileName: "voice.wav"}, nil
	}
	f.open++
	f.mu.Unlock()

	<-ctx.Done()

	f.mu.Lock()
	f.open--
	f.mu.Unlock()
	return domain.AudioBlob{}, ctx.Err()
}

func (f *fakeCapture) openSessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeCapture) snapshotDurations() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.durations...)
}

type fakeTranscription struct {
	text string
	err  error
	gate chan struct{}
}

type fakeTranscriber struct {
	mu       sync.Mutex
	results  map[string]fakeTranscription
	calls    int
	finished []string
}

func newFakeTranscriber(results map[string]fakeTranscription) *fakeTranscriber {
	return &fakeTranscriber{results: results}
}

func (f *fakeTranscriber) Transcribe(_ context.Context, blob domain.AudioBlob) (string, error) {
	f.mu.Lock()
	f.calls++
	result, ok := f.results[string(blob.Data)]
	f.mu.Unlock()

	if !ok {
		return "", errors.New("unexpected clip " + string(blob.Data))
	}
	if result.gate != nil {
		<-result.gate
	}

	f.mu.Lock()
	f.finished = append(f.finished, string(blob.Data))
	f.mu.Unlock()
	return result.text, result.err
}

func (f *fakeTranscriber) snapshotFinished() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.finished...)
}

type stageEvent struct {
	stage  domain.IntakeStage
	reason domain.IntakeReason
}

type errorEvent struct {
	code   domain.ErrorCode
	detail string
}

type fakeEventSink struct {
	mu       sync.Mutex
	stages   []stageEvent
	partials []string
	records  []domain.RecordView
	errors   []errorEvent
}

func (f *fakeEventSink) IntakeStageChanged(stage domain.IntakeStage, reason domain.IntakeReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stages = append(f.stages, stageEvent{stage: stage, reason: reason})
}

func (f *fakeEventSink) PartialTranscript(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.partials = append(f.partials, text)
}

func (f *fakeEventSink) RecordSaved(record domain.RecordView) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record)
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errorEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotStages() []stageEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]stageEvent(nil), f.stages...)
}

func (f *fakeEventSink) snapshotPartials() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.partials...)
}

func (f *fakeEventSink) hasError(code domain.ErrorCode) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.errors {
		if e.code == code {
			return true
		}
	}
	return false
}

func (f *fakeEventSink) hasReason(reason domain.IntakeReason) bool {
	for _, s := range f.snapshotStages() {
		if s.reason == reason {
			return true
		}
	}
	return false
}

type fakeRecordStore struct {
	mu        sync.Mutex
	records   []domain.SymptomRecord
	appendErr error
	markCalls int
	markErr   error
}

func (f *fakeRecordStore) Append(_ context.Context, record domain.SymptomRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.records = append(f.records, record)
	return nil
}

func (f *fakeRecordStore) Get(_ context.Context, id string) (domain.SymptomRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.SymptomRecord{}, domain.ErrRecordNotFound
}

func (f *fakeRecordStore) List(_ context.Context) ([]domain.SymptomRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.SymptomRecord(nil), f.records...), nil
}

func (f *fakeRecordStore) MarkCompleted(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markCalls++
	if f.markErr != nil {
		return f.markErr
	}
	for i := range f.records {
		if f.records[i].ID != id {
			continue
		}
		if f.records[i].IsCompleted {
			return domain.ErrAlreadySubmitted
		}
		f.records[i].IsCompleted = true
		return nil
	}
	return domain.ErrRecordNotFound
}

type fakePatients struct {
	patients []domain.Patient
	listErr  error
	created  []domain.NewPatient
}

func (f *fakePatients) ListPatients(_ context.Context) ([]domain.Patient, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.patients, nil
}

func (f *fakePatients) CreatePatient(_ context.Context, patient domain.NewPatient) (domain.Patient, error) {
	f.created = append(f.created, patient)
	created := domain.Patient{ID: int64(len(f.patients) + 1), Name: patient.Name}
	f.patients = append(f.patients, created)
	return created, nil
}

type fakeSummarizer struct {
	summary string
	err     error
	content []string
}

func (f *fakeSummarizer) Summarize(_ context.Context, content string) (string, error) {
	f.content = append(f.content, content)
	if f.err != nil {
		return "", f.err
	}
	return f.summary, nil
}

type fakeSubmitter struct {
	id          int64
	err         error
	calls       int
	submissions []domain.RecordSubmission
}

func (f *fakeSubmitter) SubmitRecord(_ context.Context, submission domain.RecordSubmission) (int64, error) {
	f.calls++
	f.submissions = append(f.submissions, submission)
	if f.err != nil {
		return 0, f.err
	}
	return f.id, nil
}

type fakeCorrector struct {
	replace map[string]string
	err     error
}

func (f *fakeCorrector) Apply(text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if out, ok := f.replace[text]; ok {
		return out, nil
	}
	return text, nil
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
