package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"
)

// Service validates and records ledger writes, and serves reads. Timestamps
// are assigned here: any caller-supplied RecordedAt or AccessedAt is
// overwritten so the ledger's clock is the server's clock.
type Service struct {
	entries    EntryRepository
	access     PatientAccessRepository
	medActions MedicationActionRepository
	now        func() time.Time
}

func NewService(entries EntryRepository, access PatientAccessRepository, medActions MedicationActionRepository) *Service {
	return &Service{
		entries:    entries,
		access:     access,
		medActions: medActions,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Record appends one entry to the ledger.
func (s *Service) Record(ctx context.Context, e *Entry) error {
	if e.Action == "" {
		return fmt.Errorf("action is required")
	}
	if !ValidActions[e.Action] {
		return fmt.Errorf("invalid action: %s", e.Action)
	}
	if e.Severity == "" {
		e.Severity = SeverityLow
	}
	if !ValidSeverities[e.Severity] {
		return fmt.Errorf("invalid severity: %s", e.Severity)
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.RecordedAt = s.now()
	return s.entries.Insert(ctx, e)
}

// Find lists ledger entries, newest first.
func (s *Service) Find(ctx context.Context, filter EntryFilter, limit, offset int) ([]*Entry, int, error) {
	return s.entries.Find(ctx, filter, limit, offset)
}

// Summarize aggregates the ledger without mutating it.
func (s *Service) Summarize(ctx context.Context, filter EntryFilter) (*Summary, error) {
	return s.entries.Summarize(ctx, filter)
}

// RecordPatientAccess appends one patient data access record. The device
// summary is derived from the raw user agent so reviewers do not have to
// parse browser strings by hand.
func (s *Service) RecordPatientAccess(ctx context.Context, a *PatientAccess) error {
	if a.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if a.AccessedByID == uuid.Nil {
		return fmt.Errorf("accessed_by_id is required")
	}
	if !ValidAccessTypes[a.AccessType] {
		return fmt.Errorf("invalid access_type: %s", a.AccessType)
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.DeviceSummary = summarizeDevice(a.UserAgent)
	a.AccessedAt = s.now()
	return s.access.Insert(ctx, a)
}

func summarizeDevice(rawUA string) string {
	if rawUA == "" {
		return "unknown"
	}
	ua := useragent.New(rawUA)
	name, version := ua.Browser()
	if name == "" {
		return "unknown"
	}
	parts := []string{name}
	if version != "" {
		parts = append(parts, version)
	}
	if os := ua.OS(); os != "" {
		parts = append(parts, "on", os)
	}
	if ua.Bot() {
		parts = append(parts, "(bot)")
	} else if ua.Mobile() {
		parts = append(parts, "(mobile)")
	}
	return strings.Join(parts, " ")
}

// FindPatientAccess lists patient access records, newest first.
func (s *Service) FindPatientAccess(ctx context.Context, filter PatientAccessFilter, limit, offset int) ([]*PatientAccess, int, error) {
	return s.access.Find(ctx, filter, limit, offset)
}

// RecordMedicationAction appends one medication audit record.
func (s *Service) RecordMedicationAction(ctx context.Context, m *MedicationAction) error {
	if m.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if m.MedicationID == uuid.Nil {
		return fmt.Errorf("medication_id is required")
	}
	if m.PerformedByID == uuid.Nil {
		return fmt.Errorf("performed_by_id is required")
	}
	if !ValidMedicationActions[m.Action] {
		return fmt.Errorf("invalid action: %s", m.Action)
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.RecordedAt = s.now()
	return s.medActions.Insert(ctx, m)
}

// FindMedicationActions lists medication audit records, newest first.
func (s *Service) FindMedicationActions(ctx context.Context, filter MedicationActionFilter, limit, offset int) ([]*MedicationAction, int, error) {
	return s.medActions.Find(ctx, filter, limit, offset)
}

// UnverifiedPrescribed lists prescribed entries still awaiting verification.
func (s *Service) UnverifiedPrescribed(ctx context.Context, limit, offset int) ([]*MedicationAction, int, error) {
	return s.medActions.FindUnverifiedPrescribed(ctx, limit, offset)
}
