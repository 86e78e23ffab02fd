package eyetest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/preciseoptics/eyecare/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

type AssessmentRepoPG struct {
	pool *pgxpool.Pool
}

func NewAssessmentRepoPG(pool *pgxpool.Pool) *AssessmentRepoPG {
	return &AssessmentRepoPG{pool: pool}
}

const assessmentCols = `id, patient_id, performed_by_id, test_date, right_eye_iop, left_eye_iop,
	cup_disc_ratio_right, cup_disc_ratio_left, method, target_iop, risk_level, notes, created_at`

func (r *AssessmentRepoPG) Insert(ctx context.Context, g *GlaucomaAssessment) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO glaucoma_assessments (`+assessmentCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		g.ID, g.PatientID, g.PerformedByID, g.TestDate, g.RightEyeIOP, g.LeftEyeIOP,
		g.CupDiscRatioRight, g.CupDiscRatioLeft, g.Method, g.TargetIOP,
		g.RiskLevel, g.Notes, g.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert glaucoma assessment: %w", err)
	}
	return nil
}

func (r *AssessmentRepoPG) FindByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*GlaucomaAssessment, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		"SELECT COUNT(*) FROM glaucoma_assessments WHERE patient_id = $1", patientID).
		Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count glaucoma assessments: %w", err)
	}

	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+assessmentCols+`
		FROM glaucoma_assessments
		WHERE patient_id = $1
		ORDER BY test_date DESC
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query glaucoma assessments: %w", err)
	}
	defer rows.Close()

	assessments := []*GlaucomaAssessment{}
	for rows.Next() {
		g := &GlaucomaAssessment{}
		err := rows.Scan(&g.ID, &g.PatientID, &g.PerformedByID, &g.TestDate,
			&g.RightEyeIOP, &g.LeftEyeIOP, &g.CupDiscRatioRight, &g.CupDiscRatioLeft,
			&g.Method, &g.TargetIOP, &g.RiskLevel, &g.Notes, &g.CreatedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("scan glaucoma assessment: %w", err)
		}
		assessments = append(assessments, g)
	}
	return assessments, total, rows.Err()
}

type AcuityRepoPG struct {
	pool *pgxpool.Pool
}

func NewAcuityRepoPG(pool *pgxpool.Pool) *AcuityRepoPG {
	return &AcuityRepoPG{pool: pool}
}

const acuityCols = `id, patient_id, performed_by_id, test_date, right_eye_distance,
	left_eye_distance, correction_type, notes, created_at`

func (r *AcuityRepoPG) Insert(ctx context.Context, v *VisualAcuityTest) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO visual_acuity_tests (`+acuityCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		v.ID, v.PatientID, v.PerformedByID, v.TestDate, v.RightEyeDistance,
		v.LeftEyeDistance, v.CorrectionType, v.Notes, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert visual acuity test: %w", err)
	}
	return nil
}

func (r *AcuityRepoPG) FindByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*VisualAcuityTest, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		"SELECT COUNT(*) FROM visual_acuity_tests WHERE patient_id = $1", patientID).
		Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count visual acuity tests: %w", err)
	}

	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+acuityCols+`
		FROM visual_acuity_tests
		WHERE patient_id = $1
		ORDER BY test_date DESC
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query visual acuity tests: %w", err)
	}
	defer rows.Close()

	tests := []*VisualAcuityTest{}
	for rows.Next() {
		v := &VisualAcuityTest{}
		err := rows.Scan(&v.ID, &v.PatientID, &v.PerformedByID, &v.TestDate,
			&v.RightEyeDistance, &v.LeftEyeDistance, &v.CorrectionType,
			&v.Notes, &v.CreatedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("scan visual acuity test: %w", err)
		}
		tests = append(tests, v)
	}
	return tests, total, rows.Err()
}
