package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bankcore/internal/models"

	"gorm.io/gorm"
)

type recurringRepository struct {
	db *gorm.DB
}

func NewRecurringRepository(db *gorm.DB) RecurringRepository {
	return &recurringRepository{db: db}
}

func (r *recurringRepository) Create(ctx context.Context, rt *models.RecurringTransfer) error {
	if err := r.db.WithContext(ctx).Create(rt).Error; err != nil {
		return fmt.Errorf("failed to create recurring transfer: %w", err)
	}
	return nil
}

func (r *recurringRepository) GetByID(ctx context.Context, id string) (*models.RecurringTransfer, error) {
	var rt models.RecurringTransfer
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecurringNotFound
		}
		return nil, fmt.Errorf("failed to get recurring transfer: %w", err)
	}
	return &rt, nil
}

func (r *recurringRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]models.RecurringTransfer, error) {
	var due []models.RecurringTransfer
	q := r.db.WithContext(ctx).
		Where("active = ? AND next_run_at <= ?", true, now).
		Order("next_run_at")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&due).Error; err != nil {
		return nil, fmt.Errorf("failed to list due recurring transfers: %w", err)
	}
	return due, nil
}

func (r *recurringRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.RecurringTransfer, error) {
	var list []models.RecurringTransfer
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to list recurring transfers: %w", err)
	}
	return list, nil
}

func (r *recurringRepository) Update(ctx context.Context, rt *models.RecurringTransfer) error {
	if err := r.db.WithContext(ctx).Save(rt).Error; err != nil {
		return fmt.Errorf("failed to update recurring transfer: %w", err)
	}
	return nil
}
