// Package devapi is an in-memory stand-in for the clinic backend, used for
// local runs of the desktop app and for client tests.
package devapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"kidintake/internal/domain"
)

const maxUploadBytes = 10 << 20

// Record is a stored submission.
type Record struct {
	ID          int64    `json:"id"`
	PatientID   int64    `json:"patient_id"`
	GuardianID  string   `json:"guardian_id"`
	Summary     string   `json:"summary"`
	Severity    int      `json:"severity"`
	Temperature *float64 `json:"temperature,omitempty"`
	ImageName   string   `json:"image_name,omitempty"`
	ImageBytes  int      `json:"image_bytes,omitempty"`
}

// Options seeds the server.
type Options struct {
	// Transcripts are returned by /transcribe in order, cycling.
	Transcripts []string
	Patients    []domain.Patient
	Now         func() time.Time
	Logger      *slog.Logger
}

// Server keeps patients and records in memory.
type Server struct {
	now    func() time.Time
	logger *slog.Logger

	mu            sync.Mutex
	transcripts   []string
	nextClip      int
	patients      []domain.Patient
	records       []Record
	nextPatientID int64
	nextRecordID  int64
}

func New(opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{
		now:           opts.Now,
		logger:        opts.Logger,
		transcripts:   append([]string(nil), opts.Transcripts...),
		patients:      append([]domain.Patient(nil), opts.Patients...),
		nextPatientID: 1,
		nextRecordID:  1,
	}
	for _, p := range s.patients {
		if p.ID >= s.nextPatientID {
			s.nextPatientID = p.ID + 1
		}
	}
	return s
}

// Routes builds the chi router for the backend endpoints.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/transcribe", s.handleTranscribe)
	r.Post("/summary", s.handleSummary)
	r.Post("/records", s.handleCreateRecord)
	r.Get("/records", s.handleListRecords)
	r.Get("/patients/select", s.handleListPatients)
	r.Post("/patients", s.handleCreatePatient)
	return r
}

// Records returns a copy of the stored submissions.
func (s *Server) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		http.Error(w, "Error retrieving audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()
	size, _ := io.Copy(io.Discard, file)

	s.mu.Lock()
	text := ""
	if len(s.transcripts) > 0 {
		text = s.transcripts[s.nextClip%len(s.transcripts)]
		s.nextClip++
	}
	s.mu.Unlock()

	s.logger.Debug("devapi: transcribe",
		slog.String("file", header.Filename),
		slog.Int64("bytes", size),
		slog.String("text", text),
	)
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		http.Error(w, "Missing content", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, "보호자 확인 필요. 아이가 말한 증상: "+content)
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	patientID, err := strconv.ParseInt(r.FormValue("patient_id"), 10, 64)
	if err != nil || !s.hasPatient(patientID) {
		http.Error(w, "Unknown patient_id", http.StatusBadRequest)
		return
	}
	severity, err := strconv.Atoi(r.FormValue("severity"))
	if err != nil || !domain.Severity(severity).Valid() {
		http.Error(w, "Invalid severity", http.StatusBadRequest)
		return
	}
	guardianID := strings.TrimSpace(r.FormValue("guardian_id"))
	if guardianID == "" {
		http.Error(w, "Missing guardian_id", http.StatusBadRequest)
		return
	}

	record := Record{
		PatientID:  patientID,
		GuardianID: guardianID,
		Summary:    r.FormValue("summary"),
		Severity:   severity,
	}
	if raw := r.FormValue("temperature"); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			http.Error(w, "Invalid temperature", http.StatusBadRequest)
			return
		}
		record.Temperature = &value
	}
	if file, header, err := r.FormFile("image"); err == nil {
		size, _ := io.Copy(io.Discard, file)
		file.Close()
		record.ImageName = header.Filename
		record.ImageBytes = int(size)
	}

	s.mu.Lock()
	record.ID = s.nextRecordID
	s.nextRecordID++
	s.records = append(s.records, record)
	s.mu.Unlock()

	s.logger.Info("devapi: record created",
		slog.Int64("id", record.ID),
		slog.Int64("patient_id", patientID),
		slog.Int("severity", severity),
	)
	writeJSON(w, http.StatusOK, map[string]int64{"id": record.ID})
}

func (s *Server) handleListRecords(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Records())
}

func (s *Server) handleListPatients(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := make([]domain.Patient, len(s.patients))
	copy(out, s.patients)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreatePatient(w http.ResponseWriter, r *http.Request) {
	var req domain.NewPatient
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		http.Error(w, "Missing name", http.StatusBadRequest)
		return
	}
	birth, err := time.Parse("2006-01-02", strings.TrimSpace(req.Birthdate))
	if err != nil {
		http.Error(w, "Invalid birthdate", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	patient := domain.Patient{ID: s.nextPatientID, Name: name, Age: domain.AgeOn(birth, s.now())}
	s.nextPatientID++
	s.patients = append(s.patients, patient)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, patient)
}

func (s *Server) hasPatient(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.patients {
		if p.ID == id {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
