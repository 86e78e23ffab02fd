package medication

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/preciseoptics/eyecare/internal/domain/audit"
)

// Ledger is the slice of the audit service the medication domain writes
// through.
type Ledger interface {
	Record(ctx context.Context, e *audit.Entry) error
	RecordMedicationAction(ctx context.Context, m *audit.MedicationAction) error
}

type Actor struct {
	ID        uuid.UUID
	Name      string
	SessionID string
	IPAddress string
	UserAgent string
}

// TxRunner executes fn atomically against the backing store. db.InTx applied
// to a pool satisfies this; a nil runner executes fn directly.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	meds          MedicationRepository
	prescriptions PrescriptionRepository
	ledger        Ledger
	inTx          TxRunner
	logger        zerolog.Logger
	now           func() time.Time
}

func NewService(meds MedicationRepository, prescriptions PrescriptionRepository, ledger Ledger, tx TxRunner, logger zerolog.Logger) *Service {
	if tx == nil {
		tx = func(ctx context.Context, fn func(ctx context.Context) error) error {
			return fn(ctx)
		}
	}
	return &Service{
		meds:          meds,
		prescriptions: prescriptions,
		ledger:        ledger,
		inTx:          tx,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) CreateMedication(ctx context.Context, m *Medication) (*Medication, error) {
	if m.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if !ValidTypes[m.MedType] {
		return nil, fmt.Errorf("invalid med_type: %s", m.MedType)
	}
	if !ValidClasses[m.TherapeuticClass] {
		return nil, fmt.Errorf("invalid therapeutic_class: %s", m.TherapeuticClass)
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.Active = true
	m.CreatedAt = s.now()
	m.UpdatedAt = m.CreatedAt
	if err := s.meds.Insert(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) GetMedication(ctx context.Context, id uuid.UUID) (*Medication, error) {
	return s.meds.GetByID(ctx, id)
}

func (s *Service) ListMedications(ctx context.Context, filter MedicationFilter, limit, offset int) ([]*Medication, int, error) {
	return s.meds.Find(ctx, filter, limit, offset)
}

// UpdateStock adjusts on-hand quantity and records the change in the ledger.
func (s *Service) UpdateStock(ctx context.Context, id uuid.UUID, quantity int, actor Actor) (*Medication, error) {
	if quantity < 0 {
		return nil, fmt.Errorf("stock quantity cannot be negative")
	}
	m, err := s.meds.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := m.StockQuantity
	m.StockQuantity = quantity
	m.UpdatedAt = s.now()
	if err := s.meds.Update(ctx, m); err != nil {
		return nil, err
	}

	actorID := actor.ID
	entry := &audit.Entry{
		ActorID:      &actorID,
		ActorName:    actor.Name,
		SessionID:    actor.SessionID,
		Action:       audit.ActionUpdate,
		ResourceType: "medication",
		ResourceID:   id.String(),
		OldValues:    map[string]any{"stock_quantity": previous},
		NewValues:    map[string]any{"stock_quantity": quantity},
		IPAddress:    actor.IPAddress,
		UserAgent:    actor.UserAgent,
		Success:      true,
	}
	if err := s.ledger.Record(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("medication_id", id.String()).
			Msg("failed to record stock update")
	}
	return m, nil
}

// Prescribe stores the prescription and its safety ledger record. The ledger
// write is not optional: an unrecorded prescription is treated as a failed
// prescription.
func (s *Service) Prescribe(ctx context.Context, p *Prescription, checks SafetyChecks, indication string, actor Actor) (*Prescription, error) {
	if p.PatientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if p.MedicationID == uuid.Nil {
		return nil, fmt.Errorf("medication_id is required")
	}
	if p.Dosage == "" || p.Frequency == "" {
		return nil, fmt.Errorf("dosage and frequency are required")
	}
	if p.DurationDays <= 0 {
		return nil, fmt.Errorf("duration_days must be positive")
	}
	if _, err := s.meds.GetByID(ctx, p.MedicationID); err != nil {
		return nil, err
	}

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.PrescribedByID = actor.ID
	p.Status = StatusActive
	if p.PrescribedAt.IsZero() {
		p.PrescribedAt = s.now()
	}
	p.EndDate = p.PrescribedAt.AddDate(0, 0, p.DurationDays)

	prescriptionID := p.ID
	action := &audit.MedicationAction{
		PatientID:                 p.PatientID,
		MedicationID:              p.MedicationID,
		PrescriptionID:            &prescriptionID,
		Action:                    audit.MedActionPrescribed,
		PerformedByID:             actor.ID,
		Dosage:                    p.Dosage,
		Frequency:                 p.Frequency,
		Duration:                  fmt.Sprintf("%d days", p.DurationDays),
		InteractionsChecked:       checks.InteractionsChecked,
		AllergiesChecked:          checks.AllergiesChecked,
		ContraindicationsReviewed: checks.ContraindicationsReviewed,
		Indication:                indication,
		ClinicalNotes:             p.Notes,
	}

	// Both rows commit or neither does: a prescription without its safety
	// record must not survive.
	err := s.inTx(ctx, func(ctx context.Context) error {
		if err := s.prescriptions.Insert(ctx, p); err != nil {
			return err
		}
		if err := s.ledger.RecordMedicationAction(ctx, action); err != nil {
			return fmt.Errorf("prescription not recorded in audit trail: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Discontinue cancels an active prescription and records why.
func (s *Service) Discontinue(ctx context.Context, id uuid.UUID, reason string, actor Actor) error {
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if p.Status != StatusActive {
		return fmt.Errorf("prescription is %s, only active prescriptions can be discontinued", p.Status)
	}
	if err := s.prescriptions.UpdateStatus(ctx, id, StatusCancelled); err != nil {
		return err
	}

	prescriptionID := p.ID
	action := &audit.MedicationAction{
		PatientID:      p.PatientID,
		MedicationID:   p.MedicationID,
		PrescriptionID: &prescriptionID,
		Action:         audit.MedActionDiscontinued,
		PerformedByID:  actor.ID,
		Dosage:         p.Dosage,
		Frequency:      p.Frequency,
		ClinicalNotes:  reason,
	}
	if err := s.ledger.RecordMedicationAction(ctx, action); err != nil {
		s.logger.Error().Err(err).Str("prescription_id", id.String()).
			Msg("failed to record discontinuation")
	}
	return nil
}

func (s *Service) ListPrescriptions(ctx context.Context, filter PrescriptionFilter, limit, offset int) ([]*Prescription, int, error) {
	if filter.Status != "" && !ValidStatuses[filter.Status] {
		return nil, 0, fmt.Errorf("invalid status: %s", filter.Status)
	}
	return s.prescriptions.Find(ctx, filter, limit, offset)
}
