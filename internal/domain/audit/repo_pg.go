package audit

import (
	"context"
	"fmt"
	"strings"

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

// EntryRepoPG is the Postgres implementation of EntryRepository.
type EntryRepoPG struct {
	pool *pgxpool.Pool
}

func NewEntryRepoPG(pool *pgxpool.Pool) *EntryRepoPG {
	return &EntryRepoPG{pool: pool}
}

func (r *EntryRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const entryCols = `id, actor_id, actor_name, session_id, action, resource_type, resource_id,
	old_values, new_values, ip_address, user_agent, request_method, request_path,
	description, severity, gdpr_relevant, hipaa_relevant, success, recorded_at`

func (r *EntryRepoPG) Insert(ctx context.Context, e *Entry) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO audit_log (`+entryCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		e.ID, e.ActorID, e.ActorName, e.SessionID, e.Action, e.ResourceType, e.ResourceID,
		e.OldValues, e.NewValues, e.IPAddress, e.UserAgent, e.RequestMethod, e.RequestPath,
		e.Description, e.Severity, e.GDPRRelevant, e.HIPAARelevant, e.Success, e.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func entryWhere(filter EntryFilter) (string, []interface{}) {
	where := []string{}
	args := []interface{}{}
	idx := 1

	if filter.ActorID != nil {
		where = append(where, fmt.Sprintf("actor_id = $%d", idx))
		args = append(args, *filter.ActorID)
		idx++
	}
	if filter.Action != "" {
		where = append(where, fmt.Sprintf("action = $%d", idx))
		args = append(args, filter.Action)
		idx++
	}
	if filter.Severity != "" {
		where = append(where, fmt.Sprintf("severity = $%d", idx))
		args = append(args, filter.Severity)
		idx++
	}
	if filter.ResourceType != "" {
		where = append(where, fmt.Sprintf("resource_type = $%d", idx))
		args = append(args, filter.ResourceType)
		idx++
	}
	if filter.From != nil {
		where = append(where, fmt.Sprintf("recorded_at >= $%d", idx))
		args = append(args, *filter.From)
		idx++
	}
	if filter.To != nil {
		where = append(where, fmt.Sprintf("recorded_at <= $%d", idx))
		args = append(args, *filter.To)
		idx++
	}

	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}
	return clause, args
}

func (r *EntryRepoPG) Find(ctx context.Context, filter EntryFilter, limit, offset int) ([]*Entry, int, error) {
	clause, args := entryWhere(filter)

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		"SELECT COUNT(*) FROM audit_log "+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT `+entryCols+`
		FROM audit_log %s
		ORDER BY recorded_at DESC
		LIMIT $%d OFFSET $%d`, clause, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	entries := []*Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

func scanEntry(rows pgx.Rows) (*Entry, error) {
	e := &Entry{}
	err := rows.Scan(&e.ID, &e.ActorID, &e.ActorName, &e.SessionID, &e.Action,
		&e.ResourceType, &e.ResourceID, &e.OldValues, &e.NewValues, &e.IPAddress,
		&e.UserAgent, &e.RequestMethod, &e.RequestPath, &e.Description, &e.Severity,
		&e.GDPRRelevant, &e.HIPAARelevant, &e.Success, &e.RecordedAt)
	if err != nil {
		return nil, fmt.Errorf("scan audit entry: %w", err)
	}
	return e, nil
}

// Summarize computes the ledger summary in a single pass. The 24h window,
// failed-login and export counters are relative to the full matching set,
// not the current page.
func (r *EntryRepoPG) Summarize(ctx context.Context, filter EntryFilter) (*Summary, error) {
	clause, args := entryWhere(filter)

	s := &Summary{}
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE recorded_at >= NOW() - INTERVAL '24 hours'),
			COUNT(*) FILTER (WHERE action = 'login' AND NOT success),
			COUNT(*) FILTER (WHERE action = 'export'),
			COUNT(*) FILTER (WHERE severity = 'high'),
			COUNT(*) FILTER (WHERE severity = 'critical')
		FROM audit_log `+clause, args...).
		Scan(&s.TotalEvents, &s.EventsLast24h, &s.FailedLogins, &s.DataExports,
			&s.HighSeverityEvents, &s.CriticalEvents)
	if err != nil {
		return nil, fmt.Errorf("summarize audit entries: %w", err)
	}
	return s, nil
}

// PatientAccessRepoPG is the Postgres implementation of PatientAccessRepository.
type PatientAccessRepoPG struct {
	pool *pgxpool.Pool
}

func NewPatientAccessRepoPG(pool *pgxpool.Pool) *PatientAccessRepoPG {
	return &PatientAccessRepoPG{pool: pool}
}

func (r *PatientAccessRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const patientAccessCols = `id, patient_id, accessed_by_id, access_type, data_accessed, reason,
	ip_address, session_id, user_agent, device_summary, legitimate_interest,
	patient_consent, accessed_at, session_duration_seconds`

func (r *PatientAccessRepoPG) Insert(ctx context.Context, a *PatientAccess) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient_access_log (`+patientAccessCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		a.ID, a.PatientID, a.AccessedByID, a.AccessType, a.DataAccessed, a.Reason,
		a.IPAddress, a.SessionID, a.UserAgent, a.DeviceSummary, a.LegitimateInterest,
		a.PatientConsent, a.AccessedAt, a.SessionDurationSec)
	if err != nil {
		return fmt.Errorf("insert patient access: %w", err)
	}
	return nil
}

func (r *PatientAccessRepoPG) Find(ctx context.Context, filter PatientAccessFilter, limit, offset int) ([]*PatientAccess, int, error) {
	where := []string{}
	args := []interface{}{}
	idx := 1

	if filter.PatientID != nil {
		where = append(where, fmt.Sprintf("patient_id = $%d", idx))
		args = append(args, *filter.PatientID)
		idx++
	}
	if filter.AccessedByID != nil {
		where = append(where, fmt.Sprintf("accessed_by_id = $%d", idx))
		args = append(args, *filter.AccessedByID)
		idx++
	}
	if filter.AccessType != "" {
		where = append(where, fmt.Sprintf("access_type = $%d", idx))
		args = append(args, filter.AccessType)
		idx++
	}
	if filter.From != nil {
		where = append(where, fmt.Sprintf("accessed_at >= $%d", idx))
		args = append(args, *filter.From)
		idx++
	}
	if filter.To != nil {
		where = append(where, fmt.Sprintf("accessed_at <= $%d", idx))
		args = append(args, *filter.To)
		idx++
	}

	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		"SELECT COUNT(*) FROM patient_access_log "+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patient access: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT `+patientAccessCols+`
		FROM patient_access_log %s
		ORDER BY accessed_at DESC
		LIMIT $%d OFFSET $%d`, clause, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query patient access: %w", err)
	}
	defer rows.Close()

	records := []*PatientAccess{}
	for rows.Next() {
		a := &PatientAccess{}
		err := rows.Scan(&a.ID, &a.PatientID, &a.AccessedByID, &a.AccessType,
			&a.DataAccessed, &a.Reason, &a.IPAddress, &a.SessionID, &a.UserAgent,
			&a.DeviceSummary, &a.LegitimateInterest, &a.PatientConsent,
			&a.AccessedAt, &a.SessionDurationSec)
		if err != nil {
			return nil, 0, fmt.Errorf("scan patient access: %w", err)
		}
		records = append(records, a)
	}
	return records, total, rows.Err()
}

// MedicationActionRepoPG is the Postgres implementation of MedicationActionRepository.
type MedicationActionRepoPG struct {
	pool *pgxpool.Pool
}

func NewMedicationActionRepoPG(pool *pgxpool.Pool) *MedicationActionRepoPG {
	return &MedicationActionRepoPG{pool: pool}
}

func (r *MedicationActionRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const medActionCols = `id, patient_id, medication_id, prescription_id, action, performed_by_id,
	dosage, frequency, duration, interactions_checked, allergies_checked,
	contraindications_reviewed, indication, clinical_notes, verified_by_id,
	verified_at, recorded_at`

func (r *MedicationActionRepoPG) Insert(ctx context.Context, m *MedicationAction) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO medication_audit (`+medActionCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		m.ID, m.PatientID, m.MedicationID, m.PrescriptionID, m.Action, m.PerformedByID,
		m.Dosage, m.Frequency, m.Duration, m.InteractionsChecked, m.AllergiesChecked,
		m.ContraindicationsReviewed, m.Indication, m.ClinicalNotes, m.VerifiedByID,
		m.VerifiedAt, m.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert medication audit: %w", err)
	}
	return nil
}

func (r *MedicationActionRepoPG) Find(ctx context.Context, filter MedicationActionFilter, limit, offset int) ([]*MedicationAction, int, error) {
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
	if filter.Action != "" {
		where = append(where, fmt.Sprintf("action = $%d", idx))
		args = append(args, filter.Action)
		idx++
	}
	if filter.From != nil {
		where = append(where, fmt.Sprintf("recorded_at >= $%d", idx))
		args = append(args, *filter.From)
		idx++
	}
	if filter.To != nil {
		where = append(where, fmt.Sprintf("recorded_at <= $%d", idx))
		args = append(args, *filter.To)
		idx++
	}

	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}
	return r.page(ctx, clause, args, limit, offset)
}

// FindUnverifiedPrescribed lists prescriptions recorded with drug interaction
// or allergy checks skipped.
func (r *MedicationActionRepoPG) FindUnverifiedPrescribed(ctx context.Context, limit, offset int) ([]*MedicationAction, int, error) {
	clause := "WHERE action = $1 AND (NOT interactions_checked OR NOT allergies_checked)"
	args := []interface{}{MedActionPrescribed}
	return r.page(ctx, clause, args, limit, offset)
}

func (r *MedicationActionRepoPG) page(ctx context.Context, clause string, args []interface{}, limit, offset int) ([]*MedicationAction, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		"SELECT COUNT(*) FROM medication_audit "+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count medication audit: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT `+medActionCols+`
		FROM medication_audit %s
		ORDER BY recorded_at DESC
		LIMIT $%d OFFSET $%d`, clause, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query medication audit: %w", err)
	}
	defer rows.Close()

	records := []*MedicationAction{}
	for rows.Next() {
		m := &MedicationAction{}
		err := rows.Scan(&m.ID, &m.PatientID, &m.MedicationID, &m.PrescriptionID,
			&m.Action, &m.PerformedByID, &m.Dosage, &m.Frequency, &m.Duration,
			&m.InteractionsChecked, &m.AllergiesChecked, &m.ContraindicationsReviewed,
			&m.Indication, &m.ClinicalNotes, &m.VerifiedByID, &m.VerifiedAt, &m.RecordedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("scan medication audit: %w", err)
		}
		records = append(records, m)
	}
	return records, total, rows.Err()
}
