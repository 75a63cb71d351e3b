package domain

import (
	"fmt"
	"strings"
	"time"
)

// SymptomRecord is what a child said during one intake session.
type SymptomRecord struct {
	ID          string
	ChildName   string
	Symptoms    string
	Timestamp   time.Time
	IsCompleted bool
}

// Date is the calendar day of the record in local time.
func (r SymptomRecord) Date() string {
	return r.Timestamp.Local().Format("2006-01-02")
}

// Time is the wall-clock minute of the record in local time.
func (r SymptomRecord) Time() string {
	return r.Timestamp.Local().Format("15:04")
}

// View flattens the record for the UI.
func (r SymptomRecord) View() RecordView {
	return RecordView{
		ID:          r.ID,
		ChildName:   r.ChildName,
		Symptoms:    r.Symptoms,
		Timestamp:   r.Timestamp.UTC().Format(time.RFC3339),
		Date:        r.Date(),
		Time:        r.Time(),
		IsCompleted: r.IsCompleted,
	}
}

// RecordView is the JSON shape of a SymptomRecord.
type RecordView struct {
	ID          string `json:"id"`
	ChildName   string `json:"childName"`
	Symptoms    string `json:"symptoms"`
	Timestamp   string `json:"timestamp"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	IsCompleted bool   `json:"isCompleted"`
}

// Severity is the guardian's urgency rating. The numeric values are the
// backend's wire values.
type Severity int

const (
	SeverityLow    Severity = 0
	SeverityMedium Severity = 1
	SeverityHigh   Severity = 2
)

func (s Severity) Valid() bool {
	return s >= SeverityLow && s <= SeverityHigh
}

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// ParseSeverity accepts either the name or the wire value.
func ParseSeverity(value string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "low", "0":
		return SeverityLow, nil
	case "medium", "1":
		return SeverityMedium, nil
	case "high", "2":
		return SeverityHigh, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidSeverity, value)
	}
}

// Attachment is an optional photo sent with a record.
type Attachment struct {
	FileName string `json:"fileName"`
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// Draft is the guardian's editable copy of a SymptomRecord.
type Draft struct {
	RecordID    string      `json:"recordId"`
	ChildName   string      `json:"childName"`
	Symptoms    string      `json:"symptoms"`
	Date        string      `json:"date"`
	Time        string      `json:"time"`
	PatientID   int64       `json:"patientId"`
	Summary     string      `json:"summary"`
	Severity    Severity    `json:"severity"`
	Temperature *float64    `json:"temperature,omitempty"`
	Image       *Attachment `json:"image,omitempty"`
}

// RecordSubmission is the payload persisted by the backend.
type RecordSubmission struct {
	PatientID   int64
	GuardianID  string
	Summary     string
	Severity    Severity
	Temperature *float64
	Image       *Attachment
}

// SubmittedRecord is the backend's answer to a submission.
type SubmittedRecord struct {
	RecordID  string `json:"recordId"`
	BackendID int64  `json:"backendId"`
}
