package patient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/preciseoptics/eyecare/internal/domain/audit"
)

type mockRepo struct {
	patients map[uuid.UUID]*Patient
}

func newMockRepo() *mockRepo {
	return &mockRepo{patients: map[uuid.UUID]*Patient{}}
}

func (m *mockRepo) Insert(_ context.Context, p *Patient) error {
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, p *Patient) error {
	if _, ok := m.patients[p.ID]; !ok {
		return ErrNotFound
	}
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockRepo) Find(_ context.Context, filter Filter, limit, offset int) ([]*Patient, int, error) {
	out := []*Patient{}
	for _, p := range m.patients {
		if filter.ActiveOnly && !p.Active {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

type mockLedger struct {
	entries  []*audit.Entry
	accesses []*audit.PatientAccess
	fail     error
}

func (m *mockLedger) Record(_ context.Context, e *audit.Entry) error {
	if m.fail != nil {
		return m.fail
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockLedger) RecordPatientAccess(_ context.Context, a *audit.PatientAccess) error {
	if m.fail != nil {
		return m.fail
	}
	m.accesses = append(m.accesses, a)
	return nil
}

func newPatientService() (*Service, *mockRepo, *mockLedger) {
	repo := newMockRepo()
	ledger := &mockLedger{}
	return NewService(repo, ledger, zerolog.Nop()), repo, ledger
}

func validPatient() *Patient {
	return &Patient{
		FirstName:   "Amira",
		LastName:    "Hassan",
		DateOfBirth: time.Date(1960, 5, 12, 0, 0, 0, 0, time.UTC),
		Gender:      GenderFemale,
	}
}

func meta() AccessMeta {
	return AccessMeta{ActorID: uuid.New(), ActorName: "dr.smith", SessionID: "s1", IPAddress: "10.0.0.1"}
}

func TestCreate_RecordsAuditEntry(t *testing.T) {
	svc, repo, ledger := newPatientService()

	created, err := svc.Create(context.Background(), validPatient(), meta())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.PatientNumber == "" {
		t.Error("expected a generated patient number")
	}
	if !created.Active {
		t.Error("new patients should be active")
	}
	if _, ok := repo.patients[created.ID]; !ok {
		t.Fatal("patient not stored")
	}
	if len(ledger.entries) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(ledger.entries))
	}
	e := ledger.entries[0]
	if e.Action != audit.ActionCreate || e.ResourceType != "patient" || e.ResourceID != created.ID.String() {
		t.Errorf("unexpected ledger entry: %+v", e)
	}
	if !e.HIPAARelevant || !e.GDPRRelevant {
		t.Error("patient changes must be flagged compliance relevant")
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, _, _ := newPatientService()
	ctx := context.Background()

	p := validPatient()
	p.FirstName = ""
	if _, err := svc.Create(ctx, p, meta()); err == nil {
		t.Error("expected error for missing name")
	}

	p = validPatient()
	p.DateOfBirth = time.Now().UTC().AddDate(1, 0, 0)
	if _, err := svc.Create(ctx, p, meta()); err == nil {
		t.Error("expected error for future date of birth")
	}

	p = validPatient()
	p.Gender = "unknown"
	if _, err := svc.Create(ctx, p, meta()); err == nil {
		t.Error("expected error for invalid gender")
	}
}

func TestGet_RecordsAccessBestEffort(t *testing.T) {
	svc, _, ledger := newPatientService()
	ctx := context.Background()

	created, err := svc.Create(ctx, validPatient(), meta())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := svc.Get(ctx, created.ID, meta())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != created.ID {
		t.Error("wrong patient returned")
	}
	if len(ledger.accesses) != 1 {
		t.Fatalf("expected 1 access record, got %d", len(ledger.accesses))
	}
	if ledger.accesses[0].AccessType != audit.AccessViewProfile {
		t.Errorf("access type = %q", ledger.accesses[0].AccessType)
	}

	// reads survive a ledger outage
	ledger.fail = errors.New("ledger down")
	if _, err := svc.Get(ctx, created.ID, meta()); err != nil {
		t.Errorf("Get should not fail on ledger error: %v", err)
	}
}

func TestExport_BlockedWithoutAuditTrail(t *testing.T) {
	svc, _, ledger := newPatientService()
	ctx := context.Background()

	created, err := svc.Create(ctx, validPatient(), meta())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Export(ctx, created.ID, meta()); err != nil {
		t.Fatalf("Export with working ledger: %v", err)
	}
	if ledger.accesses[len(ledger.accesses)-1].AccessType != audit.AccessExportData {
		t.Error("export must record an export_data access")
	}

	ledger.fail = errors.New("ledger down")
	if _, err := svc.Export(ctx, created.ID, meta()); err == nil {
		t.Fatal("export must fail when the access cannot be recorded")
	}
}

func TestUpdate_CapturesOldAndNewValues(t *testing.T) {
	svc, _, ledger := newPatientService()
	ctx := context.Background()

	created, err := svc.Create(ctx, validPatient(), meta())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated := validPatient()
	updated.Phone = "+20-100-555-0134"
	if _, err := svc.Update(ctx, created.ID, updated, meta()); err != nil {
		t.Fatalf("Update: %v", err)
	}

	e := ledger.entries[len(ledger.entries)-1]
	if e.Action != audit.ActionUpdate {
		t.Fatalf("action = %q", e.Action)
	}
	if e.OldValues["phone"] != "" || e.NewValues["phone"] != "+20-100-555-0134" {
		t.Errorf("old/new values not captured: old=%v new=%v", e.OldValues["phone"], e.NewValues["phone"])
	}
}

func TestAge(t *testing.T) {
	p := &Patient{DateOfBirth: time.Date(1960, 6, 15, 0, 0, 0, 0, time.UTC)}
	if got := p.Age(time.Date(2026, 6, 14, 0, 0, 0, 0, time.UTC)); got != 65 {
		t.Errorf("age before birthday = %d, want 65", got)
	}
	if got := p.Age(time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)); got != 66 {
		t.Errorf("age on birthday = %d, want 66", got)
	}
}
