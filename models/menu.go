package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FoodType is the vegetarian classification shown as a badge on each card.
type FoodType string

const (
	FoodVeg    FoodType = "veg"
	FoodNonVeg FoodType = "non-veg"
)

const (
	// AllItems is the category selector meaning "no category filter".
	AllItems = ""
	// AllItemsLabel is how the AllItems selector is shown to people.
	AllItemsLabel = "All Items"
	// CategoryOthers groups items the backend returned without a category.
	CategoryOthers = "Others"

	NoDescription = "No description available"
)

// MenuItem is one catalog entry. Quantity is the item's count in the current
// cart and is the only field the cart ever changes.
type MenuItem struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	FoodType    FoodType        `json:"foodType"`
	Image       string          `json:"image"`
	Category    string          `json:"categoryName"`
	Quantity    int             `json:"quantity"`
}

// IsPlaceholder reports whether the entry is synthetic grid padding.
func (m MenuItem) IsPlaceholder() bool {
	return m.ID < 0
}

// LineTotal is price × quantity.
func (m MenuItem) LineTotal() decimal.Decimal {
	return m.Price.Mul(decimal.NewFromInt(int64(m.Quantity)))
}

// Placeholder returns a grid padding entry with the given negative id.
func Placeholder(id int64) MenuItem {
	return MenuItem{ID: id, Price: decimal.Zero, FoodType: FoodVeg}
}

// ParseFoodType normalizes a backend food classification. Anything that is
// not "non-veg" (case-insensitive) is vegetarian.
func ParseFoodType(raw string) FoodType {
	if strings.EqualFold(strings.TrimSpace(raw), string(FoodNonVeg)) {
		return FoodNonVeg
	}
	return FoodVeg
}

// IsAllItems reports whether a category selector means "no filter".
func IsAllItems(category string) bool {
	return category == AllItems
}

// Truncate shortens text to maxLen runes, appending "..." when cut.
func Truncate(text string, maxLen int) string {
	r := []rune(text)
	if maxLen <= 0 || len(r) <= maxLen {
		return text
	}
	return string(r[:maxLen]) + "..."
}
