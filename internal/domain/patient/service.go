package patient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/preciseoptics/eyecare/internal/domain/audit"
)

// Ledger is the slice of the audit service the patient domain writes through.
type Ledger interface {
	Record(ctx context.Context, e *audit.Entry) error
	RecordPatientAccess(ctx context.Context, a *audit.PatientAccess) error
}

// AccessMeta carries request-level context into service operations so the
// resulting ledger entries can attribute the access.
type AccessMeta struct {
	ActorID   uuid.UUID
	ActorName string
	SessionID string
	IPAddress string
	UserAgent string
	Reason    string
}

type Service struct {
	repo   Repository
	ledger Ledger
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, ledger Ledger, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		ledger: ledger,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Create(ctx context.Context, p *Patient, meta AccessMeta) (*Patient, error) {
	if p.FirstName == "" || p.LastName == "" {
		return nil, fmt.Errorf("first and last name are required")
	}
	if p.DateOfBirth.IsZero() || p.DateOfBirth.After(s.now()) {
		return nil, fmt.Errorf("date of birth must be in the past")
	}
	if p.Gender != "" && !ValidGenders[p.Gender] {
		return nil, fmt.Errorf("invalid gender: %s", p.Gender)
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.PatientNumber == "" {
		p.PatientNumber = newPatientNumber(s.now())
	}
	p.Active = true
	p.RegisteredAt = s.now()
	p.UpdatedAt = p.RegisteredAt

	if err := s.repo.Insert(ctx, p); err != nil {
		return nil, err
	}
	s.recordChange(ctx, meta, audit.ActionCreate, p.ID, nil, patientValues(p))
	return p, nil
}

// Get fetches one patient and records the profile view. The view record is
// best effort: a ledger failure is logged but does not block the read.
func (s *Service) Get(ctx context.Context, id uuid.UUID, meta AccessMeta) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	access := &audit.PatientAccess{
		PatientID:          id,
		AccessedByID:       meta.ActorID,
		AccessType:         audit.AccessViewProfile,
		DataAccessed:       "demographics",
		Reason:             meta.Reason,
		IPAddress:          meta.IPAddress,
		SessionID:          meta.SessionID,
		UserAgent:          meta.UserAgent,
		LegitimateInterest: true,
	}
	if err := s.ledger.RecordPatientAccess(ctx, access); err != nil {
		s.logger.Error().Err(err).Str("patient_id", id.String()).
			Msg("failed to record patient access")
	}
	return p, nil
}

// Export fetches the full record for export. Unlike Get, a ledger failure
// blocks the export: data may not leave the system without a trail.
func (s *Service) Export(ctx context.Context, id uuid.UUID, meta AccessMeta) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	access := &audit.PatientAccess{
		PatientID:          id,
		AccessedByID:       meta.ActorID,
		AccessType:         audit.AccessExportData,
		DataAccessed:       "full_record",
		Reason:             meta.Reason,
		IPAddress:          meta.IPAddress,
		SessionID:          meta.SessionID,
		UserAgent:          meta.UserAgent,
		LegitimateInterest: true,
	}
	if err := s.ledger.RecordPatientAccess(ctx, access); err != nil {
		return nil, fmt.Errorf("export blocked, audit trail unavailable: %w", err)
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, updated *Patient, meta AccessMeta) (*Patient, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if updated.Gender != "" && !ValidGenders[updated.Gender] {
		return nil, fmt.Errorf("invalid gender: %s", updated.Gender)
	}
	old := patientValues(existing)

	existing.FirstName = updated.FirstName
	existing.LastName = updated.LastName
	existing.DateOfBirth = updated.DateOfBirth
	existing.Gender = updated.Gender
	existing.Phone = updated.Phone
	existing.Email = updated.Email
	existing.Address = updated.Address
	existing.Active = updated.Active
	existing.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, err
	}
	s.recordChange(ctx, meta, audit.ActionUpdate, id, old, patientValues(existing))
	return existing, nil
}

func (s *Service) List(ctx context.Context, filter Filter, limit, offset int) ([]*Patient, int, error) {
	return s.repo.Find(ctx, filter, limit, offset)
}

func (s *Service) recordChange(ctx context.Context, meta AccessMeta, action string, id uuid.UUID, oldVals, newVals map[string]any) {
	actorID := meta.ActorID
	entry := &audit.Entry{
		ActorID:       &actorID,
		ActorName:     meta.ActorName,
		SessionID:     meta.SessionID,
		Action:        action,
		ResourceType:  "patient",
		ResourceID:    id.String(),
		OldValues:     oldVals,
		NewValues:     newVals,
		IPAddress:     meta.IPAddress,
		UserAgent:     meta.UserAgent,
		GDPRRelevant:  true,
		HIPAARelevant: true,
		Success:       true,
	}
	if err := s.ledger.Record(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("patient_id", id.String()).Str("action", action).
			Msg("failed to record patient change")
	}
}

func patientValues(p *Patient) map[string]any {
	return map[string]any{
		"first_name":    p.FirstName,
		"last_name":     p.LastName,
		"date_of_birth": p.DateOfBirth.Format("2006-01-02"),
		"gender":        p.Gender,
		"phone":         p.Phone,
		"email":         p.Email,
		"active":        p.Active,
	}
}

func newPatientNumber(now time.Time) string {
	suffix := strings.ToUpper(uuid.New().String()[:8])
	return fmt.Sprintf("EH-%d-%s", now.Year(), suffix)
}
