package medication

import (
	"context"

	"github.com/google/uuid"
)

type MedicationRepository interface {
	Insert(ctx context.Context, m *Medication) error
	GetByID(ctx context.Context, id uuid.UUID) (*Medication, error)
	Update(ctx context.Context, m *Medication) error
	Find(ctx context.Context, filter MedicationFilter, limit, offset int) ([]*Medication, int, error)
}

type PrescriptionRepository interface {
	Insert(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Find(ctx context.Context, filter PrescriptionFilter, limit, offset int) ([]*Prescription, int, error)
}
