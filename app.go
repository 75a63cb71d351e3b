package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"kidintake/internal/bootstrap"
	"kidintake/internal/config"
	"kidintake/internal/domain"
	"kidintake/internal/usecase"
)

const (
	eventStage   = "kidintake:stage"
	eventPartial = "kidintake:partial"
	eventRecord  = "kidintake:record"
	eventError   = "kidintake:error"

	shutdownGrace = 5 * time.Second
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	intake   *usecase.IntakeController
	review   *usecase.ReviewDesk
	patients *usecase.PatientRegistry
	cfg      config.Config
	closer   func() error
	bootErr  error
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.cfg = services.Config
	a.intake = services.Intake
	a.review = services.Review
	a.patients = services.Patients
	a.closer = services.Close
	a.IntakeStageChanged(domain.IntakeStageAwaitingName, domain.IntakeReasonReady)
}

func (a *App) shutdown(_ context.Context) {
	if a.intake != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		a.intake.Shutdown(ctx)
		cancel()
	}
	if a.closer != nil {
		_ = a.closer()
	}
}

// CaptureName records the child's name.
func (a *App) CaptureName() (domain.IntakeStatus, error) {
	if err := a.requireReady(); err != nil {
		return domain.IntakeStatus{}, err
	}
	if _, err := a.intake.CaptureName(a.ctx); err != nil {
		return a.intake.Status(), err
	}
	return a.intake.Status(), nil
}

// StartSymptoms starts symptom dictation.
func (a *App) StartSymptoms() (domain.IntakeStatus, error) {
	if err := a.requireReady(); err != nil {
		return domain.IntakeStatus{}, err
	}
	if err := a.intake.StartSymptoms(a.ctx); err != nil {
		return a.intake.Status(), err
	}
	return a.intake.Status(), nil
}

// StopSymptoms ends dictation and stores the record.
func (a *App) StopSymptoms() (domain.RecordView, error) {
	if err := a.requireReady(); err != nil {
		return domain.RecordView{}, err
	}
	return a.intake.StopSymptoms(a.ctx)
}

// ResetIntake starts over for the next child.
func (a *App) ResetIntake() (domain.IntakeStatus, error) {
	if err := a.requireReady(); err != nil {
		return domain.IntakeStatus{}, err
	}
	if err := a.intake.Reset(); err != nil {
		return a.intake.Status(), err
	}
	return a.intake.Status(), nil
}

// GetIntakeStatus returns the current intake status.
func (a *App) GetIntakeStatus() domain.IntakeStatus {
	if a.intake == nil {
		status := domain.IntakeStatus{Stage: domain.IntakeStageAwaitingName}
		if a.bootErr != nil {
			status.Message = a.bootErr.Error()
		}
		return status
	}
	return a.intake.Status()
}

// ListRecords returns the records produced in this app.
func (a *App) ListRecords() ([]domain.RecordView, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	records, err := a.intake.Records(a.ctx)
	if err != nil {
		a.SessionError(domain.ErrorCodeStore, err.Error())
		return nil, err
	}
	return records, nil
}

// OpenReview opens a record for guardian review.
func (a *App) OpenReview(recordID string) (domain.Draft, error) {
	if err := a.requireReady(); err != nil {
		return domain.Draft{}, err
	}
	return a.review.Open(a.ctx, recordID)
}

// UpdateReview stores guardian edits.
func (a *App) UpdateReview(draft domain.Draft) (domain.Draft, error) {
	if err := a.requireReady(); err != nil {
		return domain.Draft{}, err
	}
	return a.review.Update(draft)
}

// GenerateSummary asks the backend for an AI summary of the open draft.
func (a *App) GenerateSummary() (domain.Draft, error) {
	if err := a.requireReady(); err != nil {
		return domain.Draft{}, err
	}
	return a.review.GenerateSummary(a.ctx)
}

// SubmitReview submits the open draft.
func (a *App) SubmitReview() (domain.SubmittedRecord, error) {
	if err := a.requireReady(); err != nil {
		return domain.SubmittedRecord{}, err
	}
	return a.review.Submit(a.ctx)
}

// CloseReview discards the open draft.
func (a *App) CloseReview() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.review.Close()
	return nil
}

// ListPatients returns the patient picker entries.
func (a *App) ListPatients() ([]domain.Patient, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.patients.List(a.ctx)
}

// RegisterPatient registers a new patient.
func (a *App) RegisterPatient(patient domain.NewPatient) (domain.Patient, error) {
	if err := a.requireReady(); err != nil {
		return domain.Patient{}, err
	}
	created, err := a.patients.Register(a.ctx, patient)
	if err != nil && domain.IsValidation(err) {
		a.SessionError(domain.ErrorCodeValidation, err.Error())
	}
	return created, err
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"api":           a.cfg.API.BaseURL,
		"transcription": a.cfg.Transcription.Provider,
		"store":         a.cfg.Store.Driver,
		"nameClip":      a.cfg.Intake.NameClip.String(),
		"dictationClip": a.cfg.Intake.DictationClip.String(),
		"guardianSet":   fmt.Sprintf("%t", a.cfg.Review.GuardianID != ""),
		"configFile":    a.cfg.File,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.intake == nil || a.review == nil || a.patients == nil {
		return errors.New("application is not initialized")
	}
	return nil
}

// IntakeStageChanged emits intake lifecycle updates to the frontend.
func (a *App) IntakeStageChanged(stage domain.IntakeStage, reason domain.IntakeReason) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventStage, map[string]string{
		"stage":   string(stage),
		"reason":  string(reason),
		"message": intakeReasonMessage(reason),
	})
}

// PartialTranscript emits the symptom transcript as it grows.
func (a *App) PartialTranscript(text string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventPartial, map[string]string{"text": text})
}

// RecordSaved emits a stored or updated record.
func (a *App) RecordSaved(record domain.RecordView) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventRecord, record)
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func intakeReasonMessage(reason domain.IntakeReason) string {
	switch reason {
	case domain.IntakeReasonReady:
		return "이름을 말해 주세요"
	case domain.IntakeReasonNameCaptureStarted:
		return "듣고 있어요..."
	case domain.IntakeReasonNameCaptured:
		return "어디가 아픈지 말해 주세요"
	case domain.IntakeReasonNoSpeech:
		return "잘 들리지 않았어요. 다시 말해 주세요"
	case domain.IntakeReasonCaptureFailed:
		return "마이크를 사용할 수 없어요"
	case domain.IntakeReasonTranscriptionFailed:
		return "말을 알아듣지 못했어요. 다시 해 볼까요?"
	case domain.IntakeReasonDictationStarted:
		return "듣고 있어요. 다 말하면 멈춤을 눌러 주세요"
	case domain.IntakeReasonDictationInterrupted:
		return "녹음이 멈췄어요. 다시 시작해 주세요"
	case domain.IntakeReasonRecordSaved:
		return "잘 말해 주었어요!"
	case domain.IntakeReasonReset:
		return "다음 친구 차례예요"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeCapture:
		return "Microphone issue"
	case domain.ErrorCodeTranscription:
		return "Transcription error"
	case domain.ErrorCodeSummary:
		return "Summary unavailable; enter it manually"
	case domain.ErrorCodeValidation:
		return "Please complete the form"
	case domain.ErrorCodeSubmission:
		return "Submission failed; try again"
	case domain.ErrorCodeStore:
		return "Record storage issue"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
