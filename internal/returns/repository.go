package returns

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type Repository interface {
	Create(ctx context.Context, req *domain.ReturnRequest) error
	// List returns every request, newest first.
	List(ctx context.Context) ([]domain.ReturnRequest, error)
	UpdateStatus(ctx context.Context, id string, status domain.ReturnStatus, now time.Time) (*domain.ReturnRequest, error)
}

type ReturnRepository struct {
	db *sql.DB
}

func NewReturnRepository(db *sql.DB) *ReturnRepository {
	return &ReturnRepository{db: db}
}

const returnColumns = `id, order_id, email, reasons, custom_reason, images, status, created_at, updated_at`

func scanReturn(row interface{ Scan(...any) error }) (*domain.ReturnRequest, error) {
	var rr domain.ReturnRequest
	err := row.Scan(&rr.ID, &rr.OrderID, &rr.Email, pq.Array(&rr.Reasons), &rr.CustomReason,
		pq.Array(&rr.Images), &rr.Status, &rr.CreatedAt, &rr.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if rr.Reasons == nil {
		rr.Reasons = []string{}
	}
	if rr.Images == nil {
		rr.Images = []string{}
	}
	return &rr, nil
}

func (r *ReturnRepository) Create(ctx context.Context, rr *domain.ReturnRequest) error {
	rr.ID = uuid.New().String()
	if rr.Reasons == nil {
		rr.Reasons = []string{}
	}
	if rr.Images == nil {
		rr.Images = []string{}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO returns (`+returnColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rr.ID, rr.OrderID, rr.Email, pq.Array(rr.Reasons), rr.CustomReason, pq.Array(rr.Images),
		rr.Status, rr.CreatedAt, rr.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create return: %w", err)
	}
	return nil
}

func (r *ReturnRepository) List(ctx context.Context) ([]domain.ReturnRequest, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+returnColumns+` FROM returns ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list returns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []domain.ReturnRequest{}
	for rows.Next() {
		rr, err := scanReturn(rows)
		if err != nil {
			return nil, fmt.Errorf("scan return: %w", err)
		}
		out = append(out, *rr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list returns: %w", err)
	}
	return out, nil
}

func (r *ReturnRepository) UpdateStatus(ctx context.Context, id string, status domain.ReturnStatus, now time.Time) (*domain.ReturnRequest, error) {
	rr, err := scanReturn(r.db.QueryRowContext(ctx, `
		UPDATE returns SET status = $1, updated_at = $2
		WHERE id = $3
		RETURNING `+returnColumns, status, now, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("update return %s: %w", id, err)
	}
	return rr, nil
}
