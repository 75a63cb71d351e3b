package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"kidintake/internal/domain"
	"kidintake/internal/ports"
)

var (
	ErrNoOpenDraft      = errors.New("no record is open for review")
	ErrDraftMismatch    = errors.New("draft does not belong to the open record")
	ErrSubmitInProgress = errors.New("a submission is already in progress")
)

const (
	minTemperature = 30.0
	maxTemperature = 45.0
)

// ReviewConfig carries the guardian identity used for submissions.
type ReviewConfig struct {
	GuardianID string
}

// ReviewDesk is the guardian side of the flow: it edits one record at a time,
// asks for an AI summary and submits the result to the backend.
type ReviewDesk struct {
	records    ports.RecordStore
	patients   ports.PatientDirectory
	summarizer ports.Summarizer
	submitter  ports.RecordSubmitter
	corrector  ports.TextCorrector
	events     ports.EventSink
	logger     *slog.Logger
	cfg        ReviewConfig

	mu         sync.Mutex
	draft      *domain.Draft
	submitting bool
	// accepted holds backend ids of records the backend took but the store
	// has not marked completed yet.
	accepted map[string]int64
}

func NewReviewDesk(
	records ports.RecordStore,
	patients ports.PatientDirectory,
	summarizer ports.Summarizer,
	submitter ports.RecordSubmitter,
	corrector ports.TextCorrector,
	events ports.EventSink,
	logger *slog.Logger,
	cfg ReviewConfig,
) *ReviewDesk {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.GuardianID = strings.TrimSpace(cfg.GuardianID)
	return &ReviewDesk{
		records:    records,
		patients:   patients,
		summarizer: summarizer,
		submitter:  submitter,
		corrector:  corrector,
		events:     events,
		logger:     logger,
		cfg:        cfg,
		accepted:   make(map[string]int64),
	}
}

// Open copies a stored record into an editable draft. A patient whose name
// equals the child's name is preselected.
func (d *ReviewDesk) Open(ctx context.Context, recordID string) (domain.Draft, error) {
	record, err := d.records.Get(ctx, recordID)
	if err != nil {
		return domain.Draft{}, err
	}
	if record.IsCompleted {
		return domain.Draft{}, domain.ErrAlreadySubmitted
	}

	draft := domain.Draft{
		RecordID:  record.ID,
		ChildName: record.ChildName,
		Symptoms:  record.Symptoms,
		Date:      record.Date(),
		Time:      record.Time(),
		Severity:  domain.SeverityLow,
	}

	patients, err := d.patients.ListPatients(ctx)
	if err != nil {
		d.logger.Warn("review: patient lookup failed", slog.String("error", err.Error()))
	} else {
		draft.PatientID = matchPatient(patients, record.ChildName)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.submitting {
		return domain.Draft{}, ErrSubmitInProgress
	}
	d.draft = &draft
	return draft, nil
}

func matchPatient(patients []domain.Patient, name string) int64 {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0
	}
	for _, p := range patients {
		if strings.TrimSpace(p.Name) == name {
			return p.ID
		}
	}
	return 0
}

// Update replaces the editable fields of the open draft.
func (d *ReviewDesk) Update(draft domain.Draft) (domain.Draft, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.draft == nil {
		return domain.Draft{}, ErrNoOpenDraft
	}
	if draft.RecordID != d.draft.RecordID {
		return domain.Draft{}, ErrDraftMismatch
	}

	draft.Date = d.draft.Date
	draft.Time = d.draft.Time
	d.draft = &draft
	return draft, nil
}

// GenerateSummary asks the backend to summarize the draft's symptoms. A
// failure leaves the summary as it was so the guardian can type one.
func (d *ReviewDesk) GenerateSummary(ctx context.Context) (domain.Draft, error) {
	d.mu.Lock()
	if d.draft == nil {
		d.mu.Unlock()
		return domain.Draft{}, ErrNoOpenDraft
	}
	current := *d.draft
	d.mu.Unlock()

	symptoms := strings.TrimSpace(current.Symptoms)
	if symptoms == "" {
		return current, fmt.Errorf("%w: no symptoms to summarize", domain.ErrSummaryUnavailable)
	}

	content := symptoms
	if d.corrector != nil {
		corrected, err := d.corrector.Apply(symptoms)
		if err != nil {
			d.logger.Warn("review: corrections failed", slog.String("error", err.Error()))
		} else {
			content = corrected
		}
	}

	summary, err := d.summarizer.Summarize(ctx, content)
	if err != nil {
		d.logger.Warn("review: summary failed", slog.String("error", err.Error()))
		d.events.SessionError(domain.ErrorCodeSummary, err.Error())
		return current, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.draft == nil || d.draft.RecordID != current.RecordID {
		return current, ErrNoOpenDraft
	}
	d.draft.Summary = strings.TrimSpace(summary)
	return *d.draft, nil
}

// Submit validates the draft and sends it to the backend. On success the
// source record is marked completed and the draft closes; on failure the
// draft stays open for another attempt. A record the backend already
// accepted is not sent again; a retry only marks it completed.
func (d *ReviewDesk) Submit(ctx context.Context) (domain.SubmittedRecord, error) {
	d.mu.Lock()
	if d.draft == nil {
		d.mu.Unlock()
		return domain.SubmittedRecord{}, ErrNoOpenDraft
	}
	if d.submitting {
		d.mu.Unlock()
		return domain.SubmittedRecord{}, ErrSubmitInProgress
	}
	draft := *d.draft
	d.submitting = true
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.submitting = false
		d.mu.Unlock()
	}()

	submission, err := d.validate(draft)
	if err != nil {
		d.events.SessionError(domain.ErrorCodeValidation, err.Error())
		return domain.SubmittedRecord{}, err
	}

	d.mu.Lock()
	backendID, sent := d.accepted[draft.RecordID]
	d.mu.Unlock()

	if !sent {
		backendID, err = d.submit(ctx, draft.RecordID, submission)
		if err != nil {
			return domain.SubmittedRecord{}, err
		}
	}

	if err := d.records.MarkCompleted(ctx, draft.RecordID); err != nil {
		d.logger.Error("review: mark completed failed",
			slog.String("record_id", draft.RecordID),
			slog.Int64("backend_id", backendID),
			slog.String("error", err.Error()),
		)
		d.events.SessionError(domain.ErrorCodeStore, err.Error())
		return domain.SubmittedRecord{}, err
	}

	d.mu.Lock()
	delete(d.accepted, draft.RecordID)
	if d.draft != nil && d.draft.RecordID == draft.RecordID {
		d.draft = nil
	}
	d.mu.Unlock()

	if record, err := d.records.Get(ctx, draft.RecordID); err == nil {
		d.events.RecordSaved(record.View())
	}
	d.logger.Info("review: record submitted",
		slog.String("record_id", draft.RecordID),
		slog.Int64("backend_id", backendID),
		slog.String("severity", submission.Severity.String()),
	)
	return domain.SubmittedRecord{RecordID: draft.RecordID, BackendID: backendID}, nil
}

// submit posts the record and remembers the backend id so a later retry does
// not post it twice.
func (d *ReviewDesk) submit(ctx context.Context, recordID string, submission domain.RecordSubmission) (int64, error) {
	backendID, err := d.submitter.SubmitRecord(ctx, submission)
	if err != nil {
		if !errors.Is(err, domain.ErrSubmissionFailed) {
			err = fmt.Errorf("%w: %w", domain.ErrSubmissionFailed, err)
		}
		d.logger.Error("review: submission failed",
			slog.String("record_id", recordID),
			slog.String("error", err.Error()),
		)
		d.events.SessionError(domain.ErrorCodeSubmission, err.Error())
		return 0, err
	}

	d.mu.Lock()
	d.accepted[recordID] = backendID
	d.mu.Unlock()
	return backendID, nil
}

func (d *ReviewDesk) validate(draft domain.Draft) (domain.RecordSubmission, error) {
	if draft.PatientID <= 0 {
		return domain.RecordSubmission{}, domain.ErrNoPatientSelected
	}
	if d.cfg.GuardianID == "" {
		return domain.RecordSubmission{}, domain.ErrNoGuardian
	}
	if !draft.Severity.Valid() {
		return domain.RecordSubmission{}, domain.ErrInvalidSeverity
	}
	summary := strings.TrimSpace(draft.Summary)
	if summary == "" {
		return domain.RecordSubmission{}, domain.ErrMissingSummary
	}
	if t := draft.Temperature; t != nil && (*t < minTemperature || *t > maxTemperature) {
		return domain.RecordSubmission{}, fmt.Errorf("%w: %.1f", domain.ErrInvalidTemperature, *t)
	}

	return domain.RecordSubmission{
		PatientID:   draft.PatientID,
		GuardianID:  d.cfg.GuardianID,
		Summary:     summary,
		Severity:    draft.Severity,
		Temperature: draft.Temperature,
		Image:       draft.Image,
	}, nil
}

// Current returns the open draft, if any.
func (d *ReviewDesk) Current() (domain.Draft, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.draft == nil {
		return domain.Draft{}, false
	}
	return *d.draft, true
}

// Close discards the open draft without submitting it.
func (d *ReviewDesk) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.draft = nil
}
