// Package specialization is the persisted registry of clinical
// specializations. It is table backed so the list survives restarts and is
// shared across instances.
package specialization

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("specialization not found")
	ErrDuplicate = errors.New("specialization already exists")
)

type Specialization struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type Repository interface {
	Insert(ctx context.Context, s *Specialization) error
	List(ctx context.Context) ([]*Specialization, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) Create(ctx context.Context, name, description string) (*Specialization, error) {
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	sp := &Specialization{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		CreatedAt:   s.now(),
	}
	if err := s.repo.Insert(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

func (s *Service) List(ctx context.Context) ([]*Specialization, error) {
	return s.repo.List(ctx)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}
