package clinic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"kidintake/internal/domain"
)

// Config controls the clinic backend client.
type Config struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration
}

// Client talks to the clinic backend: transcription, summaries, records and patients.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8000"
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type transcribeResponse struct {
	Text string `json:"text"`
}

// Transcribe uploads one clip and returns the recognized text verbatim.
func (c *Client) Transcribe(ctx context.Context, blob domain.AudioBlob) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := createFilePart(writer, "audio", blob.FileName, blob.MIMEType)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(blob.Data); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	var result transcribeResponse
	if err := c.do(ctx, http.MethodPost, "/transcribe", writer.FormDataContentType(), body, &result); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrTranscriptionUnavailable, err)
	}
	return result.Text, nil
}

type summaryRequest struct {
	Content string `json:"content"`
}

// Summarize requests an AI summary for symptom text.
func (c *Client) Summarize(ctx context.Context, content string) (string, error) {
	payload, err := json.Marshal(summaryRequest{Content: content})
	if err != nil {
		return "", err
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/summary", "application/json", bytes.NewReader(payload), &raw); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrSummaryUnavailable, err)
	}
	return decodeSummary(raw), nil
}

type createdRecord struct {
	ID int64 `json:"id"`
}

// SubmitRecord sends a reviewed record as a multipart form and returns the backend id.
func (c *Client) SubmitRecord(ctx context.Context, submission domain.RecordSubmission) (int64, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	fields := [][2]string{
		{"summary", submission.Summary},
		{"severity", strconv.Itoa(int(submission.Severity))},
		{"guardian_id", submission.GuardianID},
		{"patient_id", strconv.FormatInt(submission.PatientID, 10)},
	}
	if submission.Temperature != nil {
		fields = append(fields, [2]string{"temperature", strconv.FormatFloat(*submission.Temperature, 'f', -1, 64)})
	}
	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return 0, err
		}
	}

	if image := submission.Image; image != nil && len(image.Data) > 0 {
		part, err := createFilePart(writer, "image", image.FileName, image.MIMEType)
		if err != nil {
			return 0, err
		}
		if _, err := part.Write(image.Data); err != nil {
			return 0, err
		}
	}
	if err := writer.Close(); err != nil {
		return 0, err
	}

	var created createdRecord
	if err := c.do(ctx, http.MethodPost, "/records", writer.FormDataContentType(), body, &created); err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrSubmissionFailed, err)
	}
	return created.ID, nil
}

// ListPatients returns the patient picker entries.
func (c *Client) ListPatients(ctx context.Context) ([]domain.Patient, error) {
	var patients []domain.Patient
	if err := c.do(ctx, http.MethodGet, "/patients/select", "", nil, &patients); err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}

// CreatePatient registers a patient.
func (c *Client) CreatePatient(ctx context.Context, patient domain.NewPatient) (domain.Patient, error) {
	payload, err := json.Marshal(patient)
	if err != nil {
		return domain.Patient{}, err
	}

	var created domain.Patient
	if err := c.do(ctx, http.MethodPost, "/patients", "application/json", bytes.NewReader(payload), &created); err != nil {
		return domain.Patient{}, fmt.Errorf("failed to create patient: %w", err)
	}
	if created.Name == "" {
		created.Name = patient.Name
	}
	return created, nil
}

func (c *Client) do(ctx context.Context, method string, path string, contentType string, body io.Reader, dest any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if dest == nil {
		return nil
	}
	if raw, ok := dest.(*json.RawMessage); ok {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		*raw = data
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// StatusError is a non-2xx backend answer.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

func createFilePart(writer *multipart.Writer, field string, fileName string, mimeType string) (io.Writer, error) {
	if fileName == "" {
		fileName = field
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, fileName))
	header.Set("Content-Type", mimeType)
	return writer.CreatePart(header)
}

// decodeSummary accepts a JSON string, an object with a summary field, or plain text.
func decodeSummary(raw []byte) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(trimmed, &text); err == nil {
		return strings.TrimSpace(text)
	}

	var object struct {
		Summary string `json:"summary"`
		Text    string `json:"text"`
	}
	if err := json.Unmarshal(trimmed, &object); err == nil {
		if object.Summary != "" {
			return strings.TrimSpace(object.Summary)
		}
		return strings.TrimSpace(object.Text)
	}

	return string(trimmed)
}
