package reports

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/preciseoptics/eyecare/internal/domain/eyetest"
	"github.com/preciseoptics/eyecare/internal/domain/medication"
)

type RepoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) *RepoPG {
	return &RepoPG{pool: pool}
}

func (r *RepoPG) PrescriptionsInWindow(ctx context.Context, q *EffectivenessQuery) ([]PrescriptionRecord, error) {
	where := []string{"p.prescribed_at >= $1", "p.prescribed_at <= $2"}
	args := []interface{}{q.StartDate, q.EndDate}
	idx := 3

	if len(q.Medications) > 0 {
		where = append(where, fmt.Sprintf("m.name = ANY($%d)", idx))
		args = append(args, q.Medications)
		idx++
	}
	if q.ActiveOnly {
		where = append(where, "p.status = 'active'")
	}
	if q.AgeMin != nil {
		where = append(where, fmt.Sprintf("pt.date_of_birth <= $%d", idx))
		args = append(args, q.EndDate.AddDate(-*q.AgeMin, 0, 0))
		idx++
	}
	if q.AgeMax != nil {
		where = append(where, fmt.Sprintf("pt.date_of_birth > $%d", idx))
		args = append(args, q.EndDate.AddDate(-*q.AgeMax-1, 0, 0))
		idx++
	}

	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.patient_id, p.medication_id, m.name, p.prescribed_at
		FROM prescriptions p
		JOIN medications m ON m.id = p.medication_id
		JOIN patients pt ON pt.id = p.patient_id
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY p.prescribed_at`, args...)
	if err != nil {
		return nil, fmt.Errorf("query prescriptions in window: %w", err)
	}
	defer rows.Close()

	records := []PrescriptionRecord{}
	for rows.Next() {
		var rec PrescriptionRecord
		if err := rows.Scan(&rec.ID, &rec.PatientID, &rec.MedicationID, &rec.MedicationName, &rec.PrescribedAt); err != nil {
			return nil, fmt.Errorf("scan prescription record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *RepoPG) AssessmentsBetween(ctx context.Context, patientIDs []uuid.UUID, from, to time.Time) ([]*eyetest.GlaucomaAssessment, error) {
	if len(patientIDs) == 0 {
		return []*eyetest.GlaucomaAssessment{}, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, performed_by_id, test_date, right_eye_iop, left_eye_iop,
			cup_disc_ratio_right, cup_disc_ratio_left, method, target_iop, risk_level, notes, created_at
		FROM glaucoma_assessments
		WHERE patient_id = ANY($1) AND test_date >= $2 AND test_date <= $3
		ORDER BY test_date`, patientIDs, from, to)
	if err != nil {
		return nil, fmt.Errorf("query assessments: %w", err)
	}
	defer rows.Close()

	assessments := []*eyetest.GlaucomaAssessment{}
	for rows.Next() {
		g := &eyetest.GlaucomaAssessment{}
		err := rows.Scan(&g.ID, &g.PatientID, &g.PerformedByID, &g.TestDate,
			&g.RightEyeIOP, &g.LeftEyeIOP, &g.CupDiscRatioRight, &g.CupDiscRatioLeft,
			&g.Method, &g.TargetIOP, &g.RiskLevel, &g.Notes, &g.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		assessments = append(assessments, g)
	}
	return assessments, rows.Err()
}

func (r *RepoPG) PatientAssessments(ctx context.Context, patientID uuid.UUID, from time.Time) ([]*eyetest.GlaucomaAssessment, error) {
	return r.AssessmentsBetween(ctx, []uuid.UUID{patientID}, from, time.Now().UTC())
}

func (r *RepoPG) PatientAcuityTests(ctx context.Context, patientID uuid.UUID, from time.Time) ([]*eyetest.VisualAcuityTest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, performed_by_id, test_date, right_eye_distance,
			left_eye_distance, correction_type, notes, created_at
		FROM visual_acuity_tests
		WHERE patient_id = $1 AND test_date >= $2
		ORDER BY test_date`, patientID, from)
	if err != nil {
		return nil, fmt.Errorf("query acuity tests: %w", err)
	}
	defer rows.Close()

	tests := []*eyetest.VisualAcuityTest{}
	for rows.Next() {
		v := &eyetest.VisualAcuityTest{}
		err := rows.Scan(&v.ID, &v.PatientID, &v.PerformedByID, &v.TestDate,
			&v.RightEyeDistance, &v.LeftEyeDistance, &v.CorrectionType, &v.Notes, &v.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan acuity test: %w", err)
		}
		tests = append(tests, v)
	}
	return tests, rows.Err()
}

func (r *RepoPG) PatientPrescriptions(ctx context.Context, patientID uuid.UUID) ([]*medication.Prescription, map[uuid.UUID]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.patient_id, p.medication_id, p.prescribed_by_id, p.dosage, p.frequency,
			p.duration_days, p.status, p.notes, p.prescribed_at, p.end_date, m.name
		FROM prescriptions p
		JOIN medications m ON m.id = p.medication_id
		WHERE p.patient_id = $1
		ORDER BY p.prescribed_at DESC`, patientID)
	if err != nil {
		return nil, nil, fmt.Errorf("query patient prescriptions: %w", err)
	}
	defer rows.Close()

	prescriptions := []*medication.Prescription{}
	names := map[uuid.UUID]string{}
	for rows.Next() {
		p := &medication.Prescription{}
		var name string
		err := rows.Scan(&p.ID, &p.PatientID, &p.MedicationID, &p.PrescribedByID,
			&p.Dosage, &p.Frequency, &p.DurationDays, &p.Status, &p.Notes,
			&p.PrescribedAt, &p.EndDate, &name)
		if err != nil {
			return nil, nil, fmt.Errorf("scan patient prescription: %w", err)
		}
		prescriptions = append(prescriptions, p)
		names[p.MedicationID] = name
	}
	return prescriptions, names, rows.Err()
}
