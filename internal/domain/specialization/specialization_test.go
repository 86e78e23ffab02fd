package specialization

import (
	"context"
	"sort"
	"testing"

	"github.com/google/uuid"
)

type mockRepo struct {
	byName map[string]*Specialization
}

func newMockRepo() *mockRepo {
	return &mockRepo{byName: map[string]*Specialization{}}
}

func (m *mockRepo) Insert(_ context.Context, s *Specialization) error {
	if _, ok := m.byName[s.Name]; ok {
		return ErrDuplicate
	}
	cp := *s
	m.byName[s.Name] = &cp
	return nil
}

func (m *mockRepo) List(_ context.Context) ([]*Specialization, error) {
	out := []*Specialization{}
	for _, s := range m.byName {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	for name, s := range m.byName {
		if s.ID == id {
			delete(m.byName, name)
			return nil
		}
	}
	return ErrNotFound
}

func TestRegistry(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	if _, err := svc.Create(ctx, "", ""); err == nil {
		t.Error("expected error for empty name")
	}

	glaucoma, err := svc.Create(ctx, "Glaucoma", "IOP management and surgery")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create(ctx, "Retina", ""); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Create(ctx, "Glaucoma", ""); err != ErrDuplicate {
		t.Errorf("duplicate create: err = %v, want ErrDuplicate", err)
	}

	specs, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("expected 2 specializations, got %d", len(specs))
	}

	if err := svc.Delete(ctx, glaucoma.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(ctx, uuid.New()); err != ErrNotFound {
		t.Errorf("delete missing: err = %v, want ErrNotFound", err)
	}

	specs, _ = svc.List(ctx)
	if len(specs) != 1 || specs[0].Name != "Retina" {
		t.Errorf("unexpected registry state after delete: %+v", specs)
	}
}
