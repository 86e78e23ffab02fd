package medication

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/preciseoptics/eyecare/internal/platform/db"
)

var (
	ErrMedicationNotFound   = errors.New("medication not found")
	ErrPrescriptionNotFound = errors.New("prescription not found")
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

type MedicationRepoPG struct {
	pool *pgxpool.Pool
}

func NewMedicationRepoPG(pool *pgxpool.Pool) *MedicationRepoPG {
	return &MedicationRepoPG{pool: pool}
}

const medicationCols = `id, name, generic_name, med_type, therapeutic_class, strength,
	manufacturer, stock_quantity, reorder_level, active, created_at, updated_at`

func (r *MedicationRepoPG) Insert(ctx context.Context, m *Medication) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO medications (`+medicationCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		m.ID, m.Name, m.GenericName, m.MedType, m.TherapeuticClass, m.Strength,
		m.Manufacturer, m.StockQuantity, m.ReorderLevel, m.Active, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert medication: %w", err)
	}
	return nil
}

func (r *MedicationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Medication, error) {
	m := &Medication{}
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+medicationCols+` FROM medications WHERE id = $1`, id).
		Scan(&m.ID, &m.Name, &m.GenericName, &m.MedType, &m.TherapeuticClass,
			&m.Strength, &m.Manufacturer, &m.StockQuantity, &m.ReorderLevel,
			&m.Active, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMedicationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get medication: %w", err)
	}
	return m, nil
}

func (r *MedicationRepoPG) Update(ctx context.Context, m *Medication) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE medications
		SET name = $2, generic_name = $3, med_type = $4, therapeutic_class = $5,
			strength = $6, manufacturer = $7, stock_quantity = $8,
			reorder_level = $9, active = $10, updated_at = $11
		WHERE id = $1`,
		m.ID, m.Name, m.GenericName, m.MedType, m.TherapeuticClass, m.Strength,
		m.Manufacturer, m.StockQuantity, m.ReorderLevel, m.Active, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update medication: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMedicationNotFound
	}
	return nil
}

func (r *MedicationRepoPG) Find(ctx context.Context, filter MedicationFilter, limit, offset int) ([]*Medication, int, error) {
	where := []string{}
	args := []interface{}{}
	idx := 1

	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR generic_name ILIKE $%d)", idx, idx))
		args = append(args, "%"+filter.Search+"%")
		idx++
	}
	if filter.MedType != "" {
		where = append(where, fmt.Sprintf("med_type = $%d", idx))
		args = append(args, filter.MedType)
		idx++
	}
	if filter.TherapeuticClass != "" {
		where = append(where, fmt.Sprintf("therapeutic_class = $%d", idx))
		args = append(args, filter.TherapeuticClass)
		idx++
	}
	if filter.ActiveOnly {
		where = append(where, "active")
	}

	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		"SELECT COUNT(*) FROM medications "+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count medications: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT `+medicationCols+`
		FROM medications %s
		ORDER BY name
		LIMIT $%d OFFSET $%d`, clause, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query medications: %w", err)
	}
	defer rows.Close()

	meds := []*Medication{}
	for rows.Next() {
		m := &Medication{}
		err := rows.Scan(&m.ID, &m.Name, &m.GenericName, &m.MedType,
			&m.TherapeuticClass, &m.Strength, &m.Manufacturer, &m.StockQuantity,
			&m.ReorderLevel, &m.Active, &m.CreatedAt, &m.UpdatedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("scan medication: %w", err)
		}
		meds = append(meds, m)
	}
	return meds, total, rows.Err()
}

type PrescriptionRepoPG struct {
	pool *pgxpool.Pool
}

func NewPrescriptionRepoPG(pool *pgxpool.Pool) *PrescriptionRepoPG {
	return &PrescriptionRepoPG{pool: pool}
}

const prescriptionCols = `id, patient_id, medication_id, prescribed_by_id, dosage, frequency,
	duration_days, status, notes, prescribed_at, end_date`

func (r *PrescriptionRepoPG) Insert(ctx context.Context, p *Prescription) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO prescriptions (`+prescriptionCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.PatientID, p.MedicationID, p.PrescribedByID, p.Dosage, p.Frequency,
		p.DurationDays, p.Status, p.Notes, p.PrescribedAt, p.EndDate)
	if err != nil {
		return fmt.Errorf("insert prescription: %w", err)
	}
	return nil
}

func (r *PrescriptionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p := &Prescription{}
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+prescriptionCols+` FROM prescriptions WHERE id = $1`, id).
		Scan(&p.ID, &p.PatientID, &p.MedicationID, &p.PrescribedByID, &p.Dosage,
			&p.Frequency, &p.DurationDays, &p.Status, &p.Notes, &p.PrescribedAt, &p.EndDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPrescriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get prescription: %w", err)
	}
	return p, nil
}

func (r *PrescriptionRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE prescriptions SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update prescription status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPrescriptionNotFound
	}
	return nil
}

func (r *PrescriptionRepoPG) Find(ctx context.Context, filter PrescriptionFilter, limit, offset int) ([]*Prescription, int, error) {
	where := []string{}
	args := []interface{}{}
	idx := 1

	if filter.PatientID != nil {
		where = append(where, fmt.Sprintf("patient_id = $%d", idx))
		args = append(args, *filter.PatientID)
		idx++
	}
	if filter.MedicationID != nil {
		where = append(where, fmt.Sprintf("medication_id = $%d", idx))
		args = append(args, *filter.MedicationID)
		idx++
	}
	if filter.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", idx))
		args = append(args, filter.Status)
		idx++
	}

	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		"SELECT COUNT(*) FROM prescriptions "+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count prescriptions: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT `+prescriptionCols+`
		FROM prescriptions %s
		ORDER BY prescribed_at DESC
		LIMIT $%d OFFSET $%d`, clause, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query prescriptions: %w", err)
	}
	defer rows.Close()

	prescriptions := []*Prescription{}
	for rows.Next() {
		p := &Prescription{}
		err := rows.Scan(&p.ID, &p.PatientID, &p.MedicationID, &p.PrescribedByID,
			&p.Dosage, &p.Frequency, &p.DurationDays, &p.Status, &p.Notes,
			&p.PrescribedAt, &p.EndDate)
		if err != nil {
			return nil, 0, fmt.Errorf("scan prescription: %w", err)
		}
		prescriptions = append(prescriptions, p)
	}
	return prescriptions, total, rows.Err()
}
