package reports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/preciseoptics/eyecare/internal/domain/eyetest"
	"github.com/preciseoptics/eyecare/internal/domain/medication"
)

// Repository is the read-only store surface of the aggregator. Store errors
// propagate to callers unchanged; the aggregator never degrades to partial
// results.
type Repository interface {
	// PrescriptionsInWindow returns prescriptions whose prescribed date falls
	// inside [start, end], joined with the medication name, honoring the
	// cohort filters.
	PrescriptionsInWindow(ctx context.Context, q *EffectivenessQuery) ([]PrescriptionRecord, error)

	// AssessmentsBetween returns glaucoma sessions for the given patients in
	// [from, to], any measurement state, ordered by test date.
	AssessmentsBetween(ctx context.Context, patientIDs []uuid.UUID, from, to time.Time) ([]*eyetest.GlaucomaAssessment, error)

	// Per-patient progress reads.
	PatientAssessments(ctx context.Context, patientID uuid.UUID, from time.Time) ([]*eyetest.GlaucomaAssessment, error)
	PatientAcuityTests(ctx context.Context, patientID uuid.UUID, from time.Time) ([]*eyetest.VisualAcuityTest, error)
	PatientPrescriptions(ctx context.Context, patientID uuid.UUID) ([]*medication.Prescription, map[uuid.UUID]string, error)
}
