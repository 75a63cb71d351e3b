package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kidintake/internal/domain"
	"kidintake/internal/ports"
)

const maxPatientAge = 18

// PatientRegistry lists and registers the children a guardian can submit
// records for.
type PatientRegistry struct {
	directory  ports.PatientDirectory
	guardianID string
	now        func() time.Time
}

func NewPatientRegistry(directory ports.PatientDirectory, guardianID string, now func() time.Time) *PatientRegistry {
	if now == nil {
		now = time.Now
	}
	return &PatientRegistry{
		directory:  directory,
		guardianID: strings.TrimSpace(guardianID),
		now:        now,
	}
}

func (r *PatientRegistry) List(ctx context.Context) ([]domain.Patient, error) {
	return r.directory.ListPatients(ctx)
}

// Register validates the form before any backend call. A blank guardian id
// falls back to the configured guardian.
func (r *PatientRegistry) Register(ctx context.Context, patient domain.NewPatient) (domain.Patient, error) {
	patient.Name = strings.TrimSpace(patient.Name)
	if patient.Name == "" {
		return domain.Patient{}, domain.ErrMissingPatientName
	}

	patient.Birthdate = strings.TrimSpace(patient.Birthdate)
	birth, err := time.Parse("2006-01-02", patient.Birthdate)
	if err != nil {
		return domain.Patient{}, fmt.Errorf("%w: %q", domain.ErrInvalidBirthdate, patient.Birthdate)
	}
	if age := domain.AgeOn(birth, r.now()); age < 0 || age > maxPatientAge {
		return domain.Patient{}, fmt.Errorf("%w: %d", domain.ErrPatientAgeOutOfSpan, age)
	}

	patient.GuardianID = strings.TrimSpace(patient.GuardianID)
	if patient.GuardianID == "" {
		patient.GuardianID = r.guardianID
	}
	if patient.GuardianID == "" {
		return domain.Patient{}, domain.ErrNoGuardian
	}

	return r.directory.CreatePatient(ctx, patient)
}
