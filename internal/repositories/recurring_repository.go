package repositories

import (
	"context"
	"errors"
	"time"

	"bankcore/internal/models"
)

var ErrRecurringNotFound = errors.New("recurring transfer not found")

// RecurringRepository stores standing orders.
type RecurringRepository interface {
	Create(ctx context.Context, rt *models.RecurringTransfer) error
	GetByID(ctx context.Context, id string) (*models.RecurringTransfer, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.RecurringTransfer, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.RecurringTransfer, error)
	Update(ctx context.Context, rt *models.RecurringTransfer) error
}
