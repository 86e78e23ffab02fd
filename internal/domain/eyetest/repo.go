package eyetest

import (
	"context"

	"github.com/google/uuid"
)

type AssessmentRepository interface {
	Insert(ctx context.Context, g *GlaucomaAssessment) error
	FindByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*GlaucomaAssessment, int, error)
}

type AcuityRepository interface {
	Insert(ctx context.Context, v *VisualAcuityTest) error
	FindByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*VisualAcuityTest, int, error)
}
