package services

import (
	"context"

	"github.com/Xtsservices/BasavatarakamCanteen2/models"
)

// OrderBackend records a walk-in order. The response body is not used.
type OrderBackend interface {
	CreateOrder(ctx context.Context, requestID string, order models.Order) error
}

// BuildOrder turns a checkout into the order payload. Payment is always
// recorded as successful because the bill has been printed by then.
func BuildOrder(c Checkout, outletID int64, mobile string) models.Order {
	items := make([]models.OrderItem, 0, len(c.Lines))
	for _, it := range c.Lines {
		if it.IsPlaceholder() || it.Quantity <= 0 {
			continue
		}
		items = append(items, models.OrderItem{ItemID: it.ID, Quantity: it.Quantity})
	}
	total := models.Amount(c.Total)
	return models.Order{
		MobileNumber: mobile,
		CanteenID:    outletID,
		Items:        items,
		TotalAmount:  total,
		Payment: models.Payment{
			Status: models.PaymentStatusSuccess,
			Amount: total,
			Method: c.Mode.Method(),
		},
	}
}
