package orders

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// MemoryRepository keeps orders in process. The requestId index is checked
// and written under the same lock, so concurrent replays resolve to one order.
type MemoryRepository struct {
	mu        sync.RWMutex
	orders    map[string]*domain.Order
	byRequest map[string]string
	sequence  []string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		orders:    make(map[string]*domain.Order),
		byRequest: make(map[string]string),
	}
}

func (r *MemoryRepository) Create(_ context.Context, order *domain.Order) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if order.RequestID != "" {
		if id, ok := r.byRequest[order.RequestID]; ok {
			order.ID = id
			return false, nil
		}
	}

	order.ID = uuid.New().String()
	stored := cloneOrder(order)
	r.orders[order.ID] = stored
	r.sequence = append(r.sequence, order.ID)
	if order.RequestID != "" {
		r.byRequest[order.RequestID] = order.ID
	}
	return true, nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (r *MemoryRepository) List(_ context.Context) ([]domain.Order, error) {
	return r.collect(func(*domain.Order) bool { return true }), nil
}

func (r *MemoryRepository) ListByEmail(_ context.Context, email string) ([]domain.Order, error) {
	return r.collect(func(o *domain.Order) bool { return strings.EqualFold(o.Customer.Email, email) }), nil
}

// collect walks insertion order backwards, which is newest first.
func (r *MemoryRepository) collect(keep func(*domain.Order) bool) []domain.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []domain.Order{}
	for i := len(r.sequence) - 1; i >= 0; i-- {
		o := r.orders[r.sequence[i]]
		if keep(o) {
			out = append(out, *cloneOrder(o))
		}
	}
	return out
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, id string, status domain.FulfillmentStatus, now time.Time) (*domain.Order, domain.FulfillmentStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, "", domain.ErrNotFound
	}
	from := o.Status
	o.Status = status
	o.UpdatedAt = now
	return cloneOrder(o), from, nil
}

func (r *MemoryRepository) MarkPaid(_ context.Context, id string, ref domain.PaymentRef, now time.Time) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	o.PaymentStatus = domain.PaymentPaid
	o.Payment = &ref
	o.UpdatedAt = now
	return cloneOrder(o), nil
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = append([]domain.OrderItem{}, o.Items...)
	if o.Payment != nil {
		p := *o.Payment
		c.Payment = &p
	}
	return &c
}
