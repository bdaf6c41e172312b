package services

import (
	"github.com/shopspring/decimal"

	"github.com/Xtsservices/BasavatarakamCanteen2/models"
)

// The cart has no storage of its own: it is the Quantity field of the
// catalog items. Every change returns a new slice so a published snapshot is
// never modified afterwards.

// IncreaseQuantity adds one of the item. Unknown ids change nothing.
func IncreaseQuantity(items []models.MenuItem, id int64) ([]models.MenuItem, bool) {
	i := indexOf(items, id)
	if i < 0 {
		return items, false
	}
	out := clone(items)
	out[i].Quantity++
	return out, true
}

// DecreaseQuantity removes one of the item if there is one to remove.
func DecreaseQuantity(items []models.MenuItem, id int64) ([]models.MenuItem, bool) {
	i := indexOf(items, id)
	if i < 0 || items[i].Quantity <= 0 {
		return items, false
	}
	out := clone(items)
	out[i].Quantity--
	return out, true
}

// ResetCart zeroes every quantity.
func ResetCart(items []models.MenuItem) []models.MenuItem {
	out := clone(items)
	for i := range out {
		out[i].Quantity = 0
	}
	return out
}

// TotalItemCount is the number of units in the cart.
func TotalItemCount(items []models.MenuItem) int {
	n := 0
	for _, it := range items {
		if it.IsPlaceholder() {
			continue
		}
		n += it.Quantity
	}
	return n
}

// TotalAmount is the sum of price × quantity.
func TotalAmount(items []models.MenuItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		if it.IsPlaceholder() || it.Quantity <= 0 {
			continue
		}
		total = total.Add(it.LineTotal())
	}
	return total
}

// CartLines returns the items with a positive quantity in catalog order.
func CartLines(items []models.MenuItem) []models.MenuItem {
	var lines []models.MenuItem
	for _, it := range items {
		if !it.IsPlaceholder() && it.Quantity > 0 {
			lines = append(lines, it)
		}
	}
	return lines
}

func indexOf(items []models.MenuItem, id int64) int {
	if id <= 0 {
		return -1
	}
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

func clone(items []models.MenuItem) []models.MenuItem {
	out := make([]models.MenuItem, len(items))
	copy(out, items)
	return out
}
