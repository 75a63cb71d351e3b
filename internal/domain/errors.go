package domain

import "errors"

// Capture errors.
var (
	ErrPermissionDenied  = errors.New("microphone permission denied")
	ErrDeviceUnavailable = errors.New("audio input device unavailable")
	ErrAlreadyRecording  = errors.New("a capture is already in progress")
)

// ErrTranscriptionUnavailable is returned when the speech-to-text service
// could not produce a result for a clip.
var ErrTranscriptionUnavailable = errors.New("transcription service unavailable")

// ErrSummaryUnavailable is returned when the summarization service failed.
var ErrSummaryUnavailable = errors.New("summary service unavailable")

// Validation errors block a submission before any network call.
var (
	ErrNoPatientSelected   = errors.New("no patient selected")
	ErrNoGuardian          = errors.New("guardian identity is not configured")
	ErrMissingSummary      = errors.New("summary is required")
	ErrInvalidSeverity     = errors.New("severity must be low, medium or high")
	ErrInvalidTemperature  = errors.New("temperature is out of range")
	ErrMissingPatientName  = errors.New("patient name is required")
	ErrInvalidBirthdate    = errors.New("patient birthdate is missing or invalid")
	ErrPatientAgeOutOfSpan = errors.New("patient age must be between 0 and 18")
)

// ErrSubmissionFailed wraps backend failures while persisting a record.
var ErrSubmissionFailed = errors.New("record submission failed")

// Record store errors.
var (
	ErrRecordNotFound   = errors.New("symptom record not found")
	ErrAlreadySubmitted = errors.New("symptom record was already submitted")
)

// IsValidation reports whether err is one of the blocking validation errors.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrNoPatientSelected,
		ErrNoGuardian,
		ErrMissingSummary,
		ErrInvalidSeverity,
		ErrInvalidTemperature,
		ErrMissingPatientName,
		ErrInvalidBirthdate,
		ErrPatientAgeOutOfSpan,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
