package medication

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/preciseoptics/eyecare/internal/domain/audit"
)

type mockMedRepo struct {
	meds map[uuid.UUID]*Medication
}

func (m *mockMedRepo) Insert(_ context.Context, med *Medication) error {
	cp := *med
	m.meds[med.ID] = &cp
	return nil
}

func (m *mockMedRepo) GetByID(_ context.Context, id uuid.UUID) (*Medication, error) {
	med, ok := m.meds[id]
	if !ok {
		return nil, ErrMedicationNotFound
	}
	cp := *med
	return &cp, nil
}

func (m *mockMedRepo) Update(_ context.Context, med *Medication) error {
	if _, ok := m.meds[med.ID]; !ok {
		return ErrMedicationNotFound
	}
	cp := *med
	m.meds[med.ID] = &cp
	return nil
}

func (m *mockMedRepo) Find(_ context.Context, filter MedicationFilter, limit, offset int) ([]*Medication, int, error) {
	out := []*Medication{}
	for _, med := range m.meds {
		out = append(out, med)
	}
	return out, len(out), nil
}

type mockRxRepo struct {
	prescriptions map[uuid.UUID]*Prescription
}

func (m *mockRxRepo) Insert(_ context.Context, p *Prescription) error {
	cp := *p
	m.prescriptions[p.ID] = &cp
	return nil
}

func (m *mockRxRepo) GetByID(_ context.Context, id uuid.UUID) (*Prescription, error) {
	p, ok := m.prescriptions[id]
	if !ok {
		return nil, ErrPrescriptionNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockRxRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	p, ok := m.prescriptions[id]
	if !ok {
		return ErrPrescriptionNotFound
	}
	p.Status = status
	return nil
}

func (m *mockRxRepo) Find(_ context.Context, filter PrescriptionFilter, limit, offset int) ([]*Prescription, int, error) {
	out := []*Prescription{}
	for _, p := range m.prescriptions {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

type mockLedger struct {
	entries []*audit.Entry
	actions []*audit.MedicationAction
	fail    error
}

func (m *mockLedger) Record(_ context.Context, e *audit.Entry) error {
	if m.fail != nil {
		return m.fail
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockLedger) RecordMedicationAction(_ context.Context, a *audit.MedicationAction) error {
	if m.fail != nil {
		return m.fail
	}
	m.actions = append(m.actions, a)
	return nil
}

func newMedService() (*Service, *mockMedRepo, *mockRxRepo, *mockLedger) {
	meds := &mockMedRepo{meds: map[uuid.UUID]*Medication{}}
	rx := &mockRxRepo{prescriptions: map[uuid.UUID]*Prescription{}}
	ledger := &mockLedger{}
	return NewService(meds, rx, ledger, nil, zerolog.Nop()), meds, rx, ledger
}

func seedMedication(t *testing.T, svc *Service) *Medication {
	t.Helper()
	m, err := svc.CreateMedication(context.Background(), &Medication{
		Name:             "Latanoprost",
		GenericName:      "latanoprost",
		MedType:          TypeEyeDrops,
		TherapeuticClass: ClassAntiGlaucoma,
		Strength:         "0.005%",
	})
	if err != nil {
		t.Fatalf("CreateMedication: %v", err)
	}
	return m
}

func TestCreateMedication_Validation(t *testing.T) {
	svc, _, _, _ := newMedService()
	ctx := context.Background()

	if _, err := svc.CreateMedication(ctx, &Medication{MedType: TypeEyeDrops, TherapeuticClass: ClassAntiGlaucoma}); err == nil {
		t.Error("expected error for missing name")
	}
	if _, err := svc.CreateMedication(ctx, &Medication{Name: "X", MedType: "spray", TherapeuticClass: ClassAntiGlaucoma}); err == nil {
		t.Error("expected error for invalid type")
	}
}

func TestPrescribe_RecordsSafetyChecks(t *testing.T) {
	svc, _, rx, ledger := newMedService()
	ctx := context.Background()
	med := seedMedication(t, svc)

	actor := Actor{ID: uuid.New(), Name: "dr.okafor"}
	checks := SafetyChecks{InteractionsChecked: true, AllergiesChecked: true, ContraindicationsReviewed: false}
	p, err := svc.Prescribe(ctx, &Prescription{
		PatientID:    uuid.New(),
		MedicationID: med.ID,
		Dosage:       "1 drop",
		Frequency:    "once daily at bedtime",
		DurationDays: 90,
	}, checks, "primary open-angle glaucoma", actor)
	if err != nil {
		t.Fatalf("Prescribe: %v", err)
	}

	if p.Status != StatusActive {
		t.Errorf("status = %q, want active", p.Status)
	}
	if !p.EndDate.Equal(p.PrescribedAt.AddDate(0, 0, 90)) {
		t.Error("end date not derived from duration")
	}
	if _, ok := rx.prescriptions[p.ID]; !ok {
		t.Fatal("prescription not stored")
	}

	if len(ledger.actions) != 1 {
		t.Fatalf("expected 1 ledger action, got %d", len(ledger.actions))
	}
	a := ledger.actions[0]
	if a.Action != audit.MedActionPrescribed || a.PrescriptionID == nil || *a.PrescriptionID != p.ID {
		t.Errorf("unexpected ledger action: %+v", a)
	}
	if !a.InteractionsChecked || !a.AllergiesChecked || a.ContraindicationsReviewed {
		t.Error("safety checks not copied onto the ledger record")
	}
	if a.Indication != "primary open-angle glaucoma" {
		t.Errorf("indication = %q", a.Indication)
	}
}

func TestPrescribe_FailsWithoutLedger(t *testing.T) {
	svc, _, _, ledger := newMedService()
	ctx := context.Background()
	med := seedMedication(t, svc)
	ledger.fail = errors.New("ledger down")

	_, err := svc.Prescribe(ctx, &Prescription{
		PatientID:    uuid.New(),
		MedicationID: med.ID,
		Dosage:       "1 drop",
		Frequency:    "twice daily",
		DurationDays: 30,
	}, SafetyChecks{}, "", Actor{ID: uuid.New()})
	if err == nil {
		t.Fatal("prescribing must fail when the ledger write fails")
	}
}

func TestPrescribe_RolledBackOnLedgerFailure(t *testing.T) {
	meds := &mockMedRepo{meds: map[uuid.UUID]*Medication{}}
	rx := &mockRxRepo{prescriptions: map[uuid.UUID]*Prescription{}}
	ledger := &mockLedger{}

	// Transaction runner that restores the prescription store when the
	// wrapped work fails, the way a real database rollback would.
	tx := func(ctx context.Context, fn func(ctx context.Context) error) error {
		snapshot := map[uuid.UUID]*Prescription{}
		for id, p := range rx.prescriptions {
			cp := *p
			snapshot[id] = &cp
		}
		if err := fn(ctx); err != nil {
			rx.prescriptions = snapshot
			return err
		}
		return nil
	}
	svc := NewService(meds, rx, ledger, tx, zerolog.Nop())

	ctx := context.Background()
	med := seedMedication(t, svc)
	ledger.fail = errors.New("ledger down")

	_, err := svc.Prescribe(ctx, &Prescription{
		PatientID:    uuid.New(),
		MedicationID: med.ID,
		Dosage:       "1 drop",
		Frequency:    "twice daily",
		DurationDays: 30,
	}, SafetyChecks{}, "", Actor{ID: uuid.New()})
	if err == nil {
		t.Fatal("prescribing must fail when the ledger write fails")
	}
	if len(rx.prescriptions) != 0 {
		t.Errorf("expected no prescription to survive a failed ledger write, found %d", len(rx.prescriptions))
	}
	if len(ledger.actions) != 0 {
		t.Errorf("expected no ledger action, found %d", len(ledger.actions))
	}
}

func TestPrescribe_UnknownMedication(t *testing.T) {
	svc, _, _, _ := newMedService()

	_, err := svc.Prescribe(context.Background(), &Prescription{
		PatientID:    uuid.New(),
		MedicationID: uuid.New(),
		Dosage:       "1 drop",
		Frequency:    "daily",
		DurationDays: 30,
	}, SafetyChecks{}, "", Actor{ID: uuid.New()})
	if !errors.Is(err, ErrMedicationNotFound) {
		t.Errorf("err = %v, want ErrMedicationNotFound", err)
	}
}

func TestDiscontinue(t *testing.T) {
	svc, _, rx, ledger := newMedService()
	ctx := context.Background()
	med := seedMedication(t, svc)

	p, err := svc.Prescribe(ctx, &Prescription{
		PatientID:    uuid.New(),
		MedicationID: med.ID,
		Dosage:       "1 drop",
		Frequency:    "daily",
		DurationDays: 30,
		PrescribedAt: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
	}, SafetyChecks{InteractionsChecked: true, AllergiesChecked: true}, "", Actor{ID: uuid.New()})
	if err != nil {
		t.Fatalf("Prescribe: %v", err)
	}

	if err := svc.Discontinue(ctx, p.ID, "intraocular pressure normalized", Actor{ID: uuid.New()}); err != nil {
		t.Fatalf("Discontinue: %v", err)
	}
	if rx.prescriptions[p.ID].Status != StatusCancelled {
		t.Error("prescription not cancelled")
	}
	last := ledger.actions[len(ledger.actions)-1]
	if last.Action != audit.MedActionDiscontinued {
		t.Errorf("last ledger action = %q", last.Action)
	}

	// only active prescriptions can be discontinued again
	if err := svc.Discontinue(ctx, p.ID, "", Actor{ID: uuid.New()}); err == nil {
		t.Error("expected error discontinuing a cancelled prescription")
	}
}

func TestUpdateStock_RecordsChange(t *testing.T) {
	svc, _, _, ledger := newMedService()
	ctx := context.Background()
	med := seedMedication(t, svc)

	updated, err := svc.UpdateStock(ctx, med.ID, 250, Actor{ID: uuid.New()})
	if err != nil {
		t.Fatalf("UpdateStock: %v", err)
	}
	if updated.StockQuantity != 250 {
		t.Errorf("stock = %d, want 250", updated.StockQuantity)
	}
	if len(ledger.entries) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(ledger.entries))
	}
	if ledger.entries[0].NewValues["stock_quantity"] != 250 {
		t.Error("new stock value not captured")
	}

	if _, err := svc.UpdateStock(ctx, med.ID, -5, Actor{ID: uuid.New()}); err == nil {
		t.Error("expected error for negative stock")
	}
}
