package eyetest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/preciseoptics/eyecare/internal/domain/audit"
)

type Ledger interface {
	RecordPatientAccess(ctx context.Context, a *audit.PatientAccess) error
}

type Actor struct {
	ID        uuid.UUID
	SessionID string
	IPAddress string
	UserAgent string
}

type Service struct {
	assessments AssessmentRepository
	acuity      AcuityRepository
	ledger      Ledger
	logger      zerolog.Logger
	now         func() time.Time
}

func NewService(assessments AssessmentRepository, acuity AcuityRepository, ledger Ledger, logger zerolog.Logger) *Service {
	return &Service{
		assessments: assessments,
		acuity:      acuity,
		ledger:      ledger,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) CreateAssessment(ctx context.Context, g *GlaucomaAssessment, actor Actor) (*GlaucomaAssessment, error) {
	if g.PatientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if g.RightEyeIOP == nil && g.LeftEyeIOP == nil {
		return nil, fmt.Errorf("at least one eye measurement is required")
	}
	for _, v := range []*float64{g.RightEyeIOP, g.LeftEyeIOP} {
		if v != nil && (*v <= 0 || *v > 80) {
			return nil, fmt.Errorf("IOP out of plausible range: %.1f mmHg", *v)
		}
	}
	if g.Method != "" && !ValidMethods[g.Method] {
		return nil, fmt.Errorf("invalid method: %s", g.Method)
	}
	if g.RiskLevel != "" && !ValidRiskLevels[g.RiskLevel] {
		return nil, fmt.Errorf("invalid risk_level: %s", g.RiskLevel)
	}
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	g.PerformedByID = actor.ID
	if g.TestDate.IsZero() {
		g.TestDate = s.now()
	}
	g.CreatedAt = s.now()

	if err := s.assessments.Insert(ctx, g); err != nil {
		return nil, err
	}
	s.recordAccess(ctx, g.PatientID, actor, "glaucoma_assessment")
	return g, nil
}

func (s *Service) ListAssessments(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*GlaucomaAssessment, int, error) {
	return s.assessments.FindByPatient(ctx, patientID, limit, offset)
}

func (s *Service) CreateAcuityTest(ctx context.Context, v *VisualAcuityTest, actor Actor) (*VisualAcuityTest, error) {
	if v.PatientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if v.RightEyeDistance == nil && v.LeftEyeDistance == nil {
		return nil, fmt.Errorf("at least one eye measurement is required")
	}
	if v.CorrectionType != "" && !ValidCorrections[v.CorrectionType] {
		return nil, fmt.Errorf("invalid correction_type: %s", v.CorrectionType)
	}
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	v.PerformedByID = actor.ID
	if v.TestDate.IsZero() {
		v.TestDate = s.now()
	}
	v.CreatedAt = s.now()

	if err := s.acuity.Insert(ctx, v); err != nil {
		return nil, err
	}
	s.recordAccess(ctx, v.PatientID, actor, "visual_acuity_test")
	return v, nil
}

func (s *Service) ListAcuityTests(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*VisualAcuityTest, int, error) {
	return s.acuity.FindByPatient(ctx, patientID, limit, offset)
}

func (s *Service) recordAccess(ctx context.Context, patientID uuid.UUID, actor Actor, kind string) {
	access := &audit.PatientAccess{
		PatientID:          patientID,
		AccessedByID:       actor.ID,
		AccessType:         audit.AccessAddTestResult,
		DataAccessed:       kind,
		IPAddress:          actor.IPAddress,
		SessionID:          actor.SessionID,
		UserAgent:          actor.UserAgent,
		LegitimateInterest: true,
	}
	if err := s.ledger.RecordPatientAccess(ctx, access); err != nil {
		s.logger.Error().Err(err).Str("patient_id", patientID.String()).
			Msg("failed to record test result access")
	}
}
