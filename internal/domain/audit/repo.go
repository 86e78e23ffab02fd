package audit

import "context"

// EntryRepository stores ledger entries. Append-only: there is deliberately
// no update or delete operation.
type EntryRepository interface {
	Insert(ctx context.Context, e *Entry) error
	Find(ctx context.Context, filter EntryFilter, limit, offset int) ([]*Entry, int, error)
	Summarize(ctx context.Context, filter EntryFilter) (*Summary, error)
}

// PatientAccessRepository stores patient data access records. Append-only.
type PatientAccessRepository interface {
	Insert(ctx context.Context, a *PatientAccess) error
	Find(ctx context.Context, filter PatientAccessFilter, limit, offset int) ([]*PatientAccess, int, error)
}

// MedicationActionRepository stores medication audit records. Append-only.
type MedicationActionRepository interface {
	Insert(ctx context.Context, m *MedicationAction) error
	Find(ctx context.Context, filter MedicationActionFilter, limit, offset int) ([]*MedicationAction, int, error)
	FindUnverifiedPrescribed(ctx context.Context, limit, offset int) ([]*MedicationAction, int, error)
}
