package specialization

import (
	"context"
	"errors"
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

type RepoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) *RepoPG {
	return &RepoPG{pool: pool}
}

func (r *RepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *RepoPG) Insert(ctx context.Context, s *Specialization) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO specializations (id, name, description, created_at)
		VALUES ($1, $2, $3, $4)`,
		s.ID, s.Name, s.Description, s.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert specialization: %w", err)
	}
	return nil
}

func (r *RepoPG) List(ctx context.Context) ([]*Specialization, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, name, description, created_at FROM specializations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query specializations: %w", err)
	}
	defer rows.Close()

	out := []*Specialization{}
	for rows.Next() {
		s := &Specialization{}
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan specialization: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *RepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM specializations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete specialization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
