package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"bankcore/internal/models"
	"bankcore/internal/repositories"

	"github.com/google/uuid"
)

// RecurringStore implements repositories.RecurringRepository.
type RecurringStore struct {
	mu    sync.Mutex
	items map[string]models.RecurringTransfer
}

var _ repositories.RecurringRepository = (*RecurringStore)(nil)

func NewRecurringStore() *RecurringStore {
	return &RecurringStore{items: make(map[string]models.RecurringTransfer)}
}

func (s *RecurringStore) Create(ctx context.Context, rt *models.RecurringTransfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rt.ID == "" {
		rt.ID = uuid.NewString()
	}
	now := time.Now()
	rt.CreatedAt, rt.UpdatedAt = now, now
	s.items[rt.ID] = *rt
	return nil
}

func (s *RecurringStore) GetByID(ctx context.Context, id string) (*models.RecurringTransfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt, ok := s.items[id]
	if !ok {
		return nil, repositories.ErrRecurringNotFound
	}
	return &rt, nil
}

func (s *RecurringStore) ListDue(ctx context.Context, now time.Time, limit int) ([]models.RecurringTransfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []models.RecurringTransfer
	for _, rt := range s.items {
		if rt.Active && !rt.NextRunAt.After(now) {
			due = append(due, rt)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextRunAt.Before(due[j].NextRunAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *RecurringStore) ListByOwner(ctx context.Context, ownerID string) ([]models.RecurringTransfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.RecurringTransfer
	for _, rt := range s.items {
		if rt.OwnerID == ownerID {
			out = append(out, rt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *RecurringStore) Update(ctx context.Context, rt *models.RecurringTransfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[rt.ID]; !ok {
		return repositories.ErrRecurringNotFound
	}
	rt.UpdatedAt = time.Now()
	s.items[rt.ID] = *rt
	return nil
}
