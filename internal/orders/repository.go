package orders

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
	// Create stores a new order and sets its ID. When the order carries a
	// requestId that is already stored, nothing is written, the existing
	// order's ID is set instead and created is false.
	Create(ctx context.Context, order *domain.Order) (created bool, err error)
	Get(ctx context.Context, id string) (*domain.Order, error)
	// List returns every order, newest first.
	List(ctx context.Context) ([]domain.Order, error)
	// ListByEmail matches the customer email case-insensitively, newest first.
	ListByEmail(ctx context.Context, email string) ([]domain.Order, error)
	// UpdateStatus returns the updated order and the status it replaced.
	UpdateStatus(ctx context.Context, id string, status domain.FulfillmentStatus, now time.Time) (*domain.Order, domain.FulfillmentStatus, error)
	MarkPaid(ctx context.Context, id string, ref domain.PaymentRef, now time.Time) (*domain.Order, error)
}

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, request_id, customer_name, customer_email, customer_phone,
	address_country, address_line1, address_line2, address_city, address_state, address_zip,
	subtotal, shipping, tax, total, payment_method, payment_provider, payment_order_id,
	payment_payment_id, status, payment_status, created_at, updated_at`

func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin create order: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var ref domain.PaymentRef
	if order.Payment != nil {
		ref = *order.Payment
	}
	requestID := sql.NullString{String: order.RequestID, Valid: order.RequestID != ""}

	var id string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $22)
		ON CONFLICT (request_id) DO NOTHING
		RETURNING id
	`, uuid.New().String(), requestID, order.Customer.Name, order.Customer.Email, order.Customer.Phone,
		order.Address.Country, order.Address.Line1, order.Address.Line2, order.Address.City,
		order.Address.State, order.Address.Zip, order.Totals.Subtotal, order.Totals.Shipping,
		order.Totals.Tax, order.Totals.Total, order.PaymentMethod, ref.Provider, ref.OrderID,
		ref.PaymentID, order.Status, order.PaymentStatus, order.CreatedAt).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		// Another submission with this requestId won; hand back its id.
		if err := tx.QueryRowContext(ctx, `SELECT id FROM orders WHERE request_id = $1`, order.RequestID).Scan(&id); err != nil {
			return false, fmt.Errorf("read replayed order: %w", err)
		}
		order.ID = id
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert order: %w", err)
	}

	for i, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, position, product_id, title, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, uuid.New().String(), id, i, item.ProductID, item.Title, item.Quantity, item.UnitPrice)
		if err != nil {
			return false, fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit order: %w", err)
	}
	order.ID = id
	return true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	var requestID sql.NullString
	var ref domain.PaymentRef
	err := row.Scan(&o.ID, &requestID, &o.Customer.Name, &o.Customer.Email, &o.Customer.Phone,
		&o.Address.Country, &o.Address.Line1, &o.Address.Line2, &o.Address.City, &o.Address.State,
		&o.Address.Zip, &o.Totals.Subtotal, &o.Totals.Shipping, &o.Totals.Tax, &o.Totals.Total,
		&o.PaymentMethod, &ref.Provider, &ref.OrderID, &ref.PaymentID, &o.Status, &o.PaymentStatus,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.RequestID = requestID.String
	if ref.Provider != "" {
		o.Payment = &ref
	}
	o.Items = []domain.OrderItem{}
	return &o, nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, title, quantity, unit_price
		FROM order_items
		WHERE order_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get order items %s: %w", id, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Title, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get order items %s: %w", id, err)
	}

	return order, nil
}

func (r *OrderRepository) List(ctx context.Context) ([]domain.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, id`)
}

func (r *OrderRepository) ListByEmail(ctx context.Context, email string) ([]domain.Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE lower(customer_email) = lower($1)
		ORDER BY created_at DESC, id
	`, email)
}

// list loads the orders and then all of their items with one extra query.
func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orderMap[order.ID] = order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT order_id, product_id, title, quantity, unit_price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var orderID string
		var item domain.OrderItem
		if err := itemRows.Scan(&orderID, &item.ProductID, &item.Title, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		order := orderMap[orderID]
		order.Items = append(order.Items, item)
	}

	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status domain.FulfillmentStatus, now time.Time) (*domain.Order, domain.FulfillmentStatus, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, "", fmt.Errorf("begin update status: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var from domain.FulfillmentStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&from)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", domain.ErrNotFound
		}
		return nil, "", fmt.Errorf("lock order %s: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = $2
		WHERE id = $3
	`, status, now, id); err != nil {
		return nil, "", fmt.Errorf("update order status %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, "", fmt.Errorf("commit order status %s: %w", id, err)
	}

	order, err := r.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return order, from, nil
}

func (r *OrderRepository) MarkPaid(ctx context.Context, id string, ref domain.PaymentRef, now time.Time) (*domain.Order, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET payment_status = $1, payment_provider = $2, payment_order_id = $3,
			payment_payment_id = $4, updated_at = $5
		WHERE id = $6
	`, domain.PaymentPaid, ref.Provider, ref.OrderID, ref.PaymentID, now, id)
	if err != nil {
		return nil, fmt.Errorf("mark order %s paid: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("mark order %s paid: %w", id, err)
	}
	if rowsAffected == 0 {
		return nil, domain.ErrNotFound
	}

	return r.Get(ctx, id)
}
