package mappers

import (
	"encoding/json"
	"fmt"

	"volt/internal/domain/payment"
	"volt/internal/infrastructure/persistence/models"
)

// itemRecord is the JSON shape of one line item inside the payments
// items column.
type itemRecord struct {
	ProductID      string `json:"product_id"`
	ExternalItemID string `json:"external_item_id"`
	Quantity       int    `json:"quantity"`
	Tax            int64  `json:"tax"`
	Discount       int64  `json:"discount"`
	Subtotal       int64  `json:"subtotal"`
	Total          int64  `json:"total"`
	Currency       string `json:"currency"`
	Status         string `json:"status"`
}

type PaymentMapper interface {
	ToEntity(model *models.PaymentModel) (*payment.Payment, error)
	ToModel(entity *payment.Payment) (*models.PaymentModel, error)
}

type paymentMapper struct{}

func NewPaymentMapper() PaymentMapper {
	return &paymentMapper{}
}

func (m *paymentMapper) ToEntity(model *models.PaymentModel) (*payment.Payment, error) {
	if model == nil {
		return nil, nil
	}

	var records []itemRecord
	if err := json.Unmarshal(model.Items, &records); err != nil {
		return nil, fmt.Errorf("failed to decode payment items: %w", err)
	}

	items := make([]payment.Item, len(records))
	for i, r := range records {
		items[i] = payment.Item{
			ProductID:      r.ProductID,
			ExternalItemID: r.ExternalItemID,
			Quantity:       r.Quantity,
			Tax:            r.Tax,
			Discount:       r.Discount,
			Subtotal:       r.Subtotal,
			Total:          r.Total,
			Currency:       r.Currency,
			Status:         payment.ItemStatus(r.Status),
		}
	}

	return &payment.Payment{
		ID:            model.ID,
		UID:           model.UID,
		TransactionID: model.TransactionID,
		Status:        payment.Status(model.Status),
		Email:         model.Email,
		Name:          model.Name,
		Items:         items,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}, nil
}

func (m *paymentMapper) ToModel(entity *payment.Payment) (*models.PaymentModel, error) {
	if entity == nil {
		return nil, nil
	}

	records := make([]itemRecord, len(entity.Items))
	for i, it := range entity.Items {
		records[i] = itemRecord{
			ProductID:      it.ProductID,
			ExternalItemID: it.ExternalItemID,
			Quantity:       it.Quantity,
			Tax:            it.Tax,
			Discount:       it.Discount,
			Subtotal:       it.Subtotal,
			Total:          it.Total,
			Currency:       it.Currency,
			Status:         string(it.Status),
		}
	}

	raw, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payment items: %w", err)
	}

	return &models.PaymentModel{
		ID:            entity.ID,
		UID:           entity.UID,
		TransactionID: entity.TransactionID,
		Status:        string(entity.Status),
		Email:         entity.Email,
		Name:          entity.Name,
		Items:         raw,
		CreatedAt:     entity.CreatedAt,
		UpdatedAt:     entity.UpdatedAt,
	}, nil
}
