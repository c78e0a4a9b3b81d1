package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/mleite/autofund-backend/internal/domain"
)

// ExecutionLogRepository is a thread-safe in-memory execution log with an
// optional size cap. When the cap is exceeded the oldest records are
// dropped first.
type ExecutionLogRepository struct {
	mu      sync.RWMutex
	records []domain.ExecutionRecord
	maxSize int
}

// NewExecutionLogRepository creates a log keeping at most maxSize records.
// maxSize <= 0 means unbounded.
func NewExecutionLogRepository(maxSize int) *ExecutionLogRepository {
	return &ExecutionLogRepository{maxSize: maxSize}
}

func (r *ExecutionLogRepository) Append(_ context.Context, record *domain.ExecutionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, *record)
	if r.maxSize > 0 && len(r.records) > r.maxSize {
		r.records = r.records[len(r.records)-r.maxSize:]
	}
	return nil
}

func (r *ExecutionLogRepository) List(_ context.Context, limit int) ([]*domain.ExecutionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.ExecutionRecord, 0, len(r.records))
	for i := range r.records {
		record := r.records[i]
		out = append(out, &record)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ExecutedAt.After(out[j].ExecutedAt)
	})

	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *ExecutionLogRepository) Get(_ context.Context, id uuid.UUID) (*domain.ExecutionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.records {
		if r.records[i].ID == id {
			record := r.records[i]
			return &record, nil
		}
	}
	return nil, domain.ErrExecutionNotFound
}

func (r *ExecutionLogRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.records {
		if r.records[i].ID == id {
			r.records = append(r.records[:i], r.records[i+1:]...)
			return nil
		}
	}
	return domain.ErrExecutionNotFound
}

func (r *ExecutionLogRepository) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = nil
	return nil
}
