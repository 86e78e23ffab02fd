package medication

import (
	"time"

	"github.com/google/uuid"
)

const (
	TypeEyeDrops  = "eye_drops"
	TypeTablets   = "tablets"
	TypeCapsules  = "capsules"
	TypeOintment  = "ointment"
	TypeGel       = "gel"
	TypeInjection = "injection"
)

var ValidTypes = map[string]bool{
	TypeEyeDrops: true, TypeTablets: true, TypeCapsules: true,
	TypeOintment: true, TypeGel: true, TypeInjection: true,
}

const (
	ClassAntiGlaucoma     = "anti_glaucoma"
	ClassAntibiotic       = "antibiotic"
	ClassAntiInflammatory = "anti_inflammatory"
	ClassLubricant        = "lubricant"
	ClassMydriatic        = "mydriatic"
	ClassAnesthetic       = "anesthetic"
)

var ValidClasses = map[string]bool{
	ClassAntiGlaucoma: true, ClassAntibiotic: true, ClassAntiInflammatory: true,
	ClassLubricant: true, ClassMydriatic: true, ClassAnesthetic: true,
}

type Medication struct {
	ID               uuid.UUID `db:"id" json:"id"`
	Name             string    `db:"name" json:"name"`
	GenericName      string    `db:"generic_name" json:"generic_name"`
	MedType          string    `db:"med_type" json:"med_type"`
	TherapeuticClass string    `db:"therapeutic_class" json:"therapeutic_class"`
	Strength         string    `db:"strength" json:"strength"`
	Manufacturer     string    `db:"manufacturer" json:"manufacturer"`
	StockQuantity    int       `db:"stock_quantity" json:"stock_quantity"`
	ReorderLevel     int       `db:"reorder_level" json:"reorder_level"`
	Active           bool      `db:"active" json:"active"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
)

var ValidStatuses = map[string]bool{
	StatusActive: true, StatusCompleted: true, StatusCancelled: true, StatusExpired: true,
}

type Prescription struct {
	ID             uuid.UUID `db:"id" json:"id"`
	PatientID      uuid.UUID `db:"patient_id" json:"patient_id"`
	MedicationID   uuid.UUID `db:"medication_id" json:"medication_id"`
	PrescribedByID uuid.UUID `db:"prescribed_by_id" json:"prescribed_by_id"`
	Dosage         string    `db:"dosage" json:"dosage"`
	Frequency      string    `db:"frequency" json:"frequency"`
	DurationDays   int       `db:"duration_days" json:"duration_days"`
	Status         string    `db:"status" json:"status"`
	Notes          string    `db:"notes" json:"notes"`
	PrescribedAt   time.Time `db:"prescribed_at" json:"prescribed_at"`
	EndDate        time.Time `db:"end_date" json:"end_date"`
}

// SafetyChecks are the clinician's attestation captured at prescribing time
// and copied onto the ledger record.
type SafetyChecks struct {
	InteractionsChecked       bool `json:"interactions_checked"`
	AllergiesChecked          bool `json:"allergies_checked"`
	ContraindicationsReviewed bool `json:"contraindications_reviewed"`
}

type MedicationFilter struct {
	Search           string
	MedType          string
	TherapeuticClass string
	ActiveOnly       bool
}

type PrescriptionFilter struct {
	PatientID    *uuid.UUID
	MedicationID *uuid.UUID
	Status       string
}
