package eyetest

import (
	"time"

	"github.com/google/uuid"
)

const (
	MethodGoldmann     = "goldmann_applanation"
	MethodNonContact   = "non_contact"
	MethodICareRebound = "icare_rebound"
	MethodTonopen      = "tonopen"
)

var ValidMethods = map[string]bool{
	MethodGoldmann: true, MethodNonContact: true, MethodICareRebound: true, MethodTonopen: true,
}

const (
	RiskLow      = "low"
	RiskModerate = "moderate"
	RiskHigh     = "high"
)

var ValidRiskLevels = map[string]bool{
	RiskLow: true, RiskModerate: true, RiskHigh: true,
}

// GlaucomaAssessment is one IOP measurement session. Per-eye pressures are
// nullable: a prosthetic or unmeasurable eye is recorded as absent, never as
// zero.
type GlaucomaAssessment struct {
	ID                uuid.UUID `db:"id" json:"id"`
	PatientID         uuid.UUID `db:"patient_id" json:"patient_id"`
	PerformedByID     uuid.UUID `db:"performed_by_id" json:"performed_by_id"`
	TestDate          time.Time `db:"test_date" json:"test_date"`
	RightEyeIOP       *float64  `db:"right_eye_iop" json:"right_eye_iop,omitempty"`
	LeftEyeIOP        *float64  `db:"left_eye_iop" json:"left_eye_iop,omitempty"`
	CupDiscRatioRight *float64  `db:"cup_disc_ratio_right" json:"cup_disc_ratio_right,omitempty"`
	CupDiscRatioLeft  *float64  `db:"cup_disc_ratio_left" json:"cup_disc_ratio_left,omitempty"`
	Method            string    `db:"method" json:"method"`
	TargetIOP         *float64  `db:"target_iop" json:"target_iop,omitempty"`
	RiskLevel         string    `db:"risk_level" json:"risk_level"`
	Notes             string    `db:"notes" json:"notes"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// MeanIOP returns the two-eye mean in mmHg, or false when either side is
// missing. Callers that aggregate must exclude such sessions rather than
// substitute zero.
func (g *GlaucomaAssessment) MeanIOP() (float64, bool) {
	if g.RightEyeIOP == nil || g.LeftEyeIOP == nil {
		return 0, false
	}
	return (*g.RightEyeIOP + *g.LeftEyeIOP) / 2, true
}

const (
	CorrectionNone     = "none"
	CorrectionGlasses  = "glasses"
	CorrectionContacts = "contact_lenses"
)

var ValidCorrections = map[string]bool{
	CorrectionNone: true, CorrectionGlasses: true, CorrectionContacts: true,
}

// VisualAcuityTest stores decimal acuity per eye (1.0 = 6/6).
type VisualAcuityTest struct {
	ID               uuid.UUID `db:"id" json:"id"`
	PatientID        uuid.UUID `db:"patient_id" json:"patient_id"`
	PerformedByID    uuid.UUID `db:"performed_by_id" json:"performed_by_id"`
	TestDate         time.Time `db:"test_date" json:"test_date"`
	RightEyeDistance *float64  `db:"right_eye_distance" json:"right_eye_distance,omitempty"`
	LeftEyeDistance  *float64  `db:"left_eye_distance" json:"left_eye_distance,omitempty"`
	CorrectionType   string    `db:"correction_type" json:"correction_type"`
	Notes            string    `db:"notes" json:"notes"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}
