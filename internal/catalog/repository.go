package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type Repository interface {
	List(ctx context.Context) ([]domain.Product, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
	Create(ctx context.Context, p *domain.Product) error
	Update(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, id string) error
}

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

const productColumns = `id, title, brand, price, compare_at_price, images, bullets, description,
	description_heading, description_points, youtube_url, video, sku, inventory_status,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	var compareAt decimal.NullDecimal
	err := row.Scan(&p.ID, &p.Title, &p.Brand, &p.Price, &compareAt,
		pq.Array(&p.Images), pq.Array(&p.Bullets), &p.Description,
		&p.DescriptionHeading, pq.Array(&p.DescriptionPoints), &p.YoutubeURL, &p.Video,
		&p.SKU, &p.InventoryStatus, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if compareAt.Valid {
		p.CompareAtPrice = &compareAt.Decimal
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	if p.Bullets == nil {
		p.Bullets = []string{}
	}
	if p.DescriptionPoints == nil {
		p.DescriptionPoints = []string{}
	}
	return &p, nil
}

func (r *ProductRepository) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY title, id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	return products, nil
}

func (r *ProductRepository) Get(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	return p, nil
}

func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, p.ID, p.Title, p.Brand, p.Price, compareAtArg(p), pq.Array(p.Images), pq.Array(p.Bullets),
		p.Description, p.DescriptionHeading, pq.Array(p.DescriptionPoints), p.YoutubeURL, p.Video,
		p.SKU, p.InventoryStatus, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return mapWriteError("create product", err)
	}
	return nil
}

func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE products SET
			title = $2, brand = $3, price = $4, compare_at_price = $5, images = $6, bullets = $7,
			description = $8, description_heading = $9, description_points = $10,
			youtube_url = $11, video = $12, sku = $13, inventory_status = $14, updated_at = $15
		WHERE id = $1
	`, p.ID, p.Title, p.Brand, p.Price, compareAtArg(p), pq.Array(p.Images), pq.Array(p.Bullets),
		p.Description, p.DescriptionHeading, pq.Array(p.DescriptionPoints), p.YoutubeURL, p.Video,
		p.SKU, p.InventoryStatus, p.UpdatedAt)
	if err != nil {
		return mapWriteError("update product", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func compareAtArg(p *domain.Product) decimal.NullDecimal {
	if p.CompareAtPrice == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*p.CompareAtPrice)
}

func mapWriteError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		if pqErr.Constraint == "products_pkey" {
			return domain.ErrDuplicateID
		}
		return domain.ErrDuplicateSKU
	}
	return fmt.Errorf("%s: %w", op, err)
}
