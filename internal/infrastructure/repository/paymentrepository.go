package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"volt/internal/domain/payment"
	"volt/internal/infrastructure/persistence/mappers"
	"volt/internal/infrastructure/persistence/models"
	"volt/internal/shared/errors"
)

type PaymentRepository struct {
	db     *gorm.DB
	mapper mappers.PaymentMapper
}

func NewPaymentRepository(db *gorm.DB) payment.Repository {
	return &PaymentRepository{
		db:     db,
		mapper: mappers.NewPaymentMapper(),
	}
}

func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	model, err := r.mapper.ToModel(p)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.IsDuplicateError(err) {
			return errors.NewConflictError("payment already recorded for this transaction").WithCause(err)
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *PaymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	model, err := r.mapper.ToModel(p)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Where("id = ?", p.ID).
		Updates(map[string]any{
			"status":     model.Status,
			"email":      model.Email,
			"name":       model.Name,
			"items":      model.Items,
			"updated_at": model.UpdatedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	return nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, paymentID string) (*payment.Payment, error) {
	return r.getBy(ctx, "id = ?", paymentID)
}

func (r *PaymentRepository) GetByTransactionID(ctx context.Context, transactionID string) (*payment.Payment, error) {
	return r.getBy(ctx, "transaction_id = ?", transactionID)
}

func (r *PaymentRepository) getBy(ctx context.Context, query string, arg any) (*payment.Payment, error) {
	var model models.PaymentModel
	err := r.db.WithContext(ctx).Where(query, arg).First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("payment not found")
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

func (r *PaymentRepository) ListByUID(ctx context.Context, uid string, filter payment.ListFilter) ([]*payment.Payment, error) {
	q := r.db.WithContext(ctx).Where("uid = ?", uid).Order("created_at DESC")
	if !filter.Since.IsZero() {
		q = q.Where("created_at >= ?", filter.Since)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []models.PaymentModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}

	payments := make([]*payment.Payment, 0, len(rows))
	for i := range rows {
		p, err := r.mapper.ToEntity(&rows[i])
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, nil
}

func (r *PaymentRepository) DeleteByUID(ctx context.Context, uid string) error {
	if err := r.db.WithContext(ctx).Where("uid = ?", uid).Delete(&models.PaymentModel{}).Error; err != nil {
		return fmt.Errorf("failed to delete payments: %w", err)
	}
	return nil
}
