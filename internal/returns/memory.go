package returns

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type MemoryRepository struct {
	mu      sync.RWMutex
	returns []*domain.ReturnRequest
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Create(_ context.Context, rr *domain.ReturnRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rr.ID = uuid.New().String()
	stored := *rr
	r.returns = append(r.returns, &stored)
	return nil
}

func (r *MemoryRepository) List(_ context.Context) ([]domain.ReturnRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.ReturnRequest, 0, len(r.returns))
	for i := len(r.returns) - 1; i >= 0; i-- {
		out = append(out, *r.returns[i])
	}
	return out, nil
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, id string, status domain.ReturnStatus, now time.Time) (*domain.ReturnRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rr := range r.returns {
		if rr.ID == id {
			rr.Status = status
			rr.UpdatedAt = now
			out := *rr
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}
