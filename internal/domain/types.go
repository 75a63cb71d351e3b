package domain

// IntakeStage models the child-facing voice intake lifecycle.
type IntakeStage string

const (
	IntakeStageAwaitingName     IntakeStage = "awaiting_name"
	IntakeStageAwaitingSymptoms IntakeStage = "awaiting_symptoms"
	IntakeStageCompleted        IntakeStage = "completed"
)

// IntakeReason provides a structured reason for stage and activity changes.
type IntakeReason string

const (
	IntakeReasonReady                IntakeReason = "ready"
	IntakeReasonNameCaptureStarted   IntakeReason = "name_capture_started"
	IntakeReasonNameCaptured         IntakeReason = "name_captured"
	IntakeReasonNoSpeech             IntakeReason = "no_speech"
	IntakeReasonCaptureFailed        IntakeReason = "capture_failed"
	IntakeReasonTranscriptionFailed  IntakeReason = "transcription_failed"
	IntakeReasonDictationStarted     IntakeReason = "dictation_started"
	IntakeReasonDictationInterrupted IntakeReason = "dictation_interrupted"
	IntakeReasonRecordSaved          IntakeReason = "record_saved"
	IntakeReasonReset                IntakeReason = "reset"
)

// ErrorCode identifies the area a surfaced error belongs to.
type ErrorCode string

const (
	ErrorCodeStartup       ErrorCode = "startup"
	ErrorCodeCapture       ErrorCode = "capture"
	ErrorCodeTranscription ErrorCode = "transcription"
	ErrorCodeSummary       ErrorCode = "summary"
	ErrorCodeValidation    ErrorCode = "validation"
	ErrorCodeSubmission    ErrorCode = "submission"
	ErrorCodeStore         ErrorCode = "store"
)

// AudioBlob is one finalized capture clip.
type AudioBlob struct {
	Data     []byte
	MIMEType string
	FileName string
}

// IntakeStatus summarizes the intake flow for the UI.
type IntakeStatus struct {
	Stage      IntakeStage `json:"stage"`
	ChildName  string      `json:"childName"`
	Symptoms   string      `json:"symptoms"`
	Capturing  bool        `json:"capturing"`
	Dictating  bool        `json:"dictating"`
	LastRecord *RecordView `json:"lastRecord,omitempty"`
	Message    string      `json:"message,omitempty"`
}

// Patient is an entry of the guardian's patient picker.
type Patient struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Age  int    `json:"age"`
}

// NewPatient is the registration form for a patient.
type NewPatient struct {
	Name       string `json:"name"`
	Birthdate  string `json:"birthdate"`
	Gender     string `json:"gender"`
	BloodType  string `json:"blood_type"`
	Memo       string `json:"memo"`
	GuardianID string `json:"guardian_id"`
}
