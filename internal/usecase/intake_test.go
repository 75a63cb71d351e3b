package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"kidintake/internal/domain"
)

var fixedNow = time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

func newTestIntake(capture *fakeCapture, transcriber *fakeTranscriber, store *fakeRecordStore, events *fakeEventSink) *IntakeController {
	return NewIntakeController(capture, transcriber, store, events, nil, IntakeConfig{
		NameClip:      3 * time.Second,
		DictationClip: 3 * time.Second,
		Now:           func() time.Time { return fixedNow },
	})
}

func TestIntakeCaptureNameMovesToSymptoms(t *testing.T) {
	t.Parallel()

	capture := &fakeCapture{clips: []fakeClip{{data: "name"}}}
	transcriber := newFakeTranscriber(map[string]fakeTranscription{"name": {text: "민수"}})
	events := &fakeEventSink{}
	intake := newTestIntake(capture, transcriber, &fakeRecordStore{}, events)

	name, err := intake.CaptureName(context.Background())
	if err != nil {
		t.Fatalf("capture name failed: %v", err)
	}
	if name != "민수" {
		t.Fatalf("unexpected name: %q", name)
	}

	status := intake.Status()
	if status.Stage != domain.IntakeStageAwaitingSymptoms || status.ChildName != "민수" {
		t.Fatalf("unexpected status: %+v", status)
	}
	if d := capture.snapshotDurations(); len(d) != 1 || d[0] != 3*time.Second {
		t.Fatalf("unexpected name clip durations: %v", d)
	}

	stages := events.snapshotStages()
	if len(stages) != 2 {
		t.Fatalf("expected two stage events, got %d", len(stages))
	}
	if stages[0].reason != domain.IntakeReasonNameCaptureStarted || stages[1].reason != domain.IntakeReasonNameCaptured {
		t.Fatalf("unexpected reasons: %+v", stages)
	}
}

func TestIntakeCaptureNameFailuresStayAwaitingName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		clip       fakeClip
		result     fakeTranscription
		wantErr    error
		wantReason domain.IntakeReason
	}{
		{
			name:       "capture",
			clip:       fakeClip{err: domain.ErrPermissionDenied},
			wantErr:    domain.ErrPermissionDenied,
			wantReason: domain.IntakeReasonCaptureFailed,
		},
		{
			name:       "transcription",
			clip:       fakeClip{data: "name"},
			result:     fakeTranscription{err: domain.ErrTranscriptionUnavailable},
			wantErr:    domain.ErrTranscriptionUnavailable,
			wantReason: domain.IntakeReasonTranscriptionFailed,
		},
		{
			name:       "silence",
			clip:       fakeClip{data: "name"},
			result:     fakeTranscription{text: "   "},
			wantErr:    ErrNoSpeech,
			wantReason: domain.IntakeReasonNoSpeech,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			capture := &fakeCapture{clips: []fakeClip{tc.clip, {data: "retry"}}}
			transcriber := newFakeTranscriber(map[string]fakeTranscription{
				"name":  tc.result,
				"retry": {text: "서연"},
			})
			events := &fakeEventSink{}
			intake := newTestIntake(capture, transcriber, &fakeRecordStore{}, events)

			if _, err := intake.CaptureName(context.Background()); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			status := intake.Status()
			if status.Stage != domain.IntakeStageAwaitingName || status.Capturing {
				t.Fatalf("unexpected status after failure: %+v", status)
			}
			stages := events.snapshotStages()
			if last := stages[len(stages)-1]; last.reason != tc.wantReason {
				t.Fatalf("expected reason %s, got %s", tc.wantReason, last.reason)
			}

			name, err := intake.CaptureName(context.Background())
			if err != nil || name != "서연" {
				t.Fatalf("retry failed: %q %v", name, err)
			}
		})
	}
}

func TestIntakeFullFlow(t *testing.T) {
	t.Parallel()

	capture := &fakeCapture{clips: []fakeClip{{data: "name"}, {data: "c1"}, {data: "c2"}}}
	transcriber := newFakeTranscriber(map[string]fakeTranscription{
		"name": {text: "민수"},
		"c1":   {text: "기침이 나요"},
		"c2":   {text: "열도 나요"},
	})
	store := &fakeRecordStore{}
	events := &fakeEventSink{}
	intake := newTestIntake(capture, transcriber, store, events)

	if _, err := intake.CaptureName(context.Background()); err != nil {
		t.Fatalf("capture name failed: %v", err)
	}
	if err := intake.StartSymptoms(context.Background()); err != nil {
		t.Fatalf("start symptoms failed: %v", err)
	}
	waitFor(t, "symptoms", func() bool { return intake.Status().Symptoms == "기침이 나요 열도 나요" })
	if !intake.Status().Dictating {
		t.Fatalf("expected dictating status")
	}

	view, err := intake.StopSymptoms(context.Background())
	if err != nil {
		t.Fatalf("stop symptoms failed: %v", err)
	}
	if view.Symptoms != "기침이 나요 열도 나요" || view.ChildName != "민수" {
		t.Fatalf("unexpected record: %+v", view)
	}
	if view.ID == "" || view.IsCompleted {
		t.Fatalf("unexpected record identity: %+v", view)
	}
	if view.Timestamp != "2026-10-16T09:30:00Z" {
		t.Fatalf("unexpected timestamp: %s", view.Timestamp)
	}
	if capture.openSessions() != 0 {
		t.Fatalf("capture left open after stop")
	}

	status := intake.Status()
	if status.Stage != domain.IntakeStageCompleted || status.LastRecord == nil || status.LastRecord.ID != view.ID {
		t.Fatalf("unexpected completed status: %+v", status)
	}

	records, err := intake.Records(context.Background())
	if err != nil || len(records) != 1 {
		t.Fatalf("expected one stored record, got %d %v", len(records), err)
	}

	var seen []domain.IntakeStage
	for _, s := range events.snapshotStages() {
		if len(seen) == 0 || seen[len(seen)-1] != s.stage {
			seen = append(seen, s.stage)
		}
	}
	want := []domain.IntakeStage{
		domain.IntakeStageAwaitingName,
		domain.IntakeStageAwaitingSymptoms,
		domain.IntakeStageCompleted,
	}
	if len(seen) != len(want) {
		t.Fatalf("unexpected stage sequence: %v", seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("unexpected stage sequence: %v", seen)
		}
	}
}

func TestIntakeStopWithNoSpeechStoresEmptySymptoms(t *testing.T) {
	t.Parallel()

	capture := &fakeCapture{clips: []fakeClip{{data: "name"}}}
	transcriber := newFakeTranscriber(map[string]fakeTranscription{"name": {text: "민수"}})
	store := &fakeRecordStore{}
	intake := newTestIntake(capture, transcriber, store, &fakeEventSink{})

	if _, err := intake.CaptureName(context.Background()); err != nil {
		t.Fatalf("capture name failed: %v", err)
	}
	if err := intake.StartSymptoms(context.Background()); err != nil {
		t.Fatalf("start symptoms failed: %v", err)
	}
	waitFor(t, "dictation capture", func() bool { return capture.openSessions() == 1 })

	view, err := intake.StopSymptoms(context.Background())
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if view.Symptoms != "" {
		t.Fatalf("expected empty symptoms, got %q", view.Symptoms)
	}
	if capture.openSessions() != 0 {
		t.Fatalf("capture left open after stop")
	}
}

func TestIntakeRejectsOutOfOrderOperations(t *testing.T) {
	t.Parallel()

	capture := &fakeCapture{clips: []fakeClip{{data: "name"}}}
	transcriber := newFakeTranscriber(map[string]fakeTranscription{"name": {text: "민수"}})
	intake := newTestIntake(capture, transcriber, &fakeRecordStore{}, &fakeEventSink{})

	if err := intake.StartSymptoms(context.Background()); !errors.Is(err, ErrWrongStage) {
		t.Fatalf("expected wrong stage before name, got %v", err)
	}
	if _, err := intake.StopSymptoms(context.Background()); !errors.Is(err, ErrWrongStage) {
		t.Fatalf("expected wrong stage before name, got %v", err)
	}
	if err := intake.Reset(); !errors.Is(err, ErrWrongStage) {
		t.Fatalf("expected wrong stage reset, got %v", err)
	}

	if _, err := intake.CaptureName(context.Background()); err != nil {
		t.Fatalf("capture name failed: %v", err)
	}
	if _, err := intake.CaptureName(context.Background()); !errors.Is(err, ErrWrongStage) {
		t.Fatalf("expected wrong stage for second name, got %v", err)
	}
	if _, err := intake.StopSymptoms(context.Background()); !errors.Is(err, ErrDictationNotStarted) {
		t.Fatalf("expected dictation not started, got %v", err)
	}
}

func TestIntakeCaptureNameWhileCapturing(t *testing.T) {
	t.Parallel()

	capture := &fakeCapture{}
	intake := newTestIntake(capture, newFakeTranscriber(nil), &fakeRecordStore{}, &fakeEventSink{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := intake.CaptureName(ctx)
		done <- err
	}()
	waitFor(t, "name capture", func() bool { return capture.openSessions() == 1 })

	if !intake.Status().Capturing {
		t.Fatalf("expected capturing status")
	}
	if _, err := intake.CaptureName(context.Background()); !errors.Is(err, domain.ErrAlreadyRecording) {
		t.Fatalf("expected already recording, got %v", err)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if intake.Status().Stage != domain.IntakeStageAwaitingName {
		t.Fatalf("expected awaiting name after cancel")
	}
}

func TestIntakeResetKeepsRecords(t *testing.T) {
	t.Parallel()

	capture := &fakeCapture{clips: []fakeClip{{data: "name"}, {data: "c1"}}}
	transcriber := newFakeTranscriber(map[string]fakeTranscription{
		"name": {text: "민수"},
		"c1":   {text: "콧물이 나요"},
	})
	store := &fakeRecordStore{}
	events := &fakeEventSink{}
	intake := newTestIntake(capture, transcriber, store, events)

	if _, err := intake.CaptureName(context.Background()); err != nil {
		t.Fatalf("capture name failed: %v", err)
	}
	if err := intake.StartSymptoms(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	waitFor(t, "symptoms", func() bool { return intake.Status().Symptoms != "" })
	if _, err := intake.StopSymptoms(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	if err := intake.Reset(); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	status := intake.Status()
	if status.Stage != domain.IntakeStageAwaitingName || status.ChildName != "" || status.Symptoms != "" {
		t.Fatalf("unexpected status after reset: %+v", status)
	}
	if !events.hasReason(domain.IntakeReasonReset) {
		t.Fatalf("expected reset reason")
	}

	records, _ := intake.Records(context.Background())
	if len(records) != 1 || records[0].Symptoms != "콧물이 나요" {
		t.Fatalf("records lost on reset: %+v", records)
	}
}

func TestIntakeStopRetriesAfterStoreFailure(t *testing.T) {
	t.Parallel()

	capture := &fakeCapture{clips: []fakeClip{{data: "name"}, {data: "c1"}}}
	transcriber := newFakeTranscriber(map[string]fakeTranscription{
		"name": {text: "민수"},
		"c1":   {text: "귀가 아파요"},
	})
	store := &fakeRecordStore{appendErr: errors.New("disk full")}
	events := &fakeEventSink{}
	intake := newTestIntake(capture, transcriber, store, events)

	if _, err := intake.CaptureName(context.Background()); err != nil {
		t.Fatalf("capture name failed: %v", err)
	}
	if err := intake.StartSymptoms(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	waitFor(t, "symptoms", func() bool { return intake.Status().Symptoms != "" })

	if _, err := intake.StopSymptoms(context.Background()); err == nil {
		t.Fatalf("expected store failure")
	}
	if intake.Status().Stage != domain.IntakeStageAwaitingSymptoms {
		t.Fatalf("expected to stay awaiting symptoms")
	}
	if !events.hasError(domain.ErrorCodeStore) {
		t.Fatalf("expected store error event")
	}

	store.mu.Lock()
	store.appendErr = nil
	store.mu.Unlock()

	view, err := intake.StopSymptoms(context.Background())
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if view.Symptoms != "귀가 아파요" {
		t.Fatalf("symptoms lost across retry: %q", view.Symptoms)
	}
}

func TestIntakeSealedTranscriptRefusesNewDictation(t *testing.T) {
	t.Parallel()

	capture := &fakeCapture{clips: []fakeClip{{data: "name"}, {data: "c1"}}}
	transcriber := newFakeTranscriber(map[string]fakeTranscription{
		"name": {text: "민수"},
		"c1":   {text: "기침이 나요"},
	})
	store := &fakeRecordStore{appendErr: errors.New("disk full")}
	events := &fakeEventSink{}
	intake := newTestIntake(capture, transcriber, store, events)

	if _, err := intake.CaptureName(context.Background()); err != nil {
		t.Fatalf("capture name failed: %v", err)
	}
	if err := intake.StartSymptoms(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	waitFor(t, "symptoms", func() bool { return intake.Status().Symptoms != "" })

	if _, err := intake.StopSymptoms(context.Background()); err == nil {
		t.Fatalf("expected store failure")
	}
	recordCalls := len(capture.snapshotDurations())

	if err := intake.StartSymptoms(context.Background()); !errors.Is(err, ErrWrongStage) {
		t.Fatalf("expected wrong stage after sealing, got %v", err)
	}
	if intake.Status().Dictating {
		t.Fatalf("dictation must not run on a sealed transcript")
	}
	if len(capture.snapshotDurations()) != recordCalls {
		t.Fatalf("microphone must stay closed after sealing")
	}

	store.mu.Lock()
	store.appendErr = nil
	store.mu.Unlock()

	view, err := intake.StopSymptoms(context.Background())
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if view.Symptoms != "기침이 나요" {
		t.Fatalf("unexpected symptoms: %q", view.Symptoms)
	}
}
