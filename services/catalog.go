package services

import (
	"bytes"
	"context"
	"encoding/json"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Xtsservices/BasavatarakamCanteen2/backend"
	"github.com/Xtsservices/BasavatarakamCanteen2/models"
)

// CatalogSource is the remote menu service.
type CatalogSource interface {
	Categories(ctx context.Context) ([]backend.CategoryRecord, error)
	Items(ctx context.Context) ([]backend.ItemRecord, error)
}

// Catalog fetches and normalizes the menu. Concurrent fetches of the same
// listing share one request.
type Catalog struct {
	source CatalogSource
	logger *zap.SugaredLogger
	group  singleflight.Group
}

func NewCatalog(source CatalogSource, logger *zap.SugaredLogger) *Catalog {
	return &Catalog{source: source, logger: logger}
}

func (c *Catalog) Categories(ctx context.Context) ([]string, error) {
	v, err, shared := c.group.Do("categories", func() (interface{}, error) {
		records, err := c.source.Categories(ctx)
		if err != nil {
			return nil, err
		}
		return NormalizeCategories(records), nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debugw("shared in-flight categories fetch")
	}
	return slices.Clone(v.([]string)), nil
}

func (c *Catalog) Items(ctx context.Context) ([]models.MenuItem, error) {
	v, err, shared := c.group.Do("items", func() (interface{}, error) {
		records, err := c.source.Items(ctx)
		if err != nil {
			return nil, err
		}
		return NormalizeItems(records, c.logger), nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debugw("shared in-flight items fetch")
	}
	return slices.Clone(v.([]models.MenuItem)), nil
}

// NormalizeCategories keeps non-blank names in backend order, once each.
func NormalizeCategories(records []backend.CategoryRecord) []string {
	seen := make(map[string]bool, len(records))
	names := make([]string, 0, len(records))
	for _, r := range records {
		name := strings.TrimSpace(r.Name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// NormalizeItems turns backend records into menu items with a zero cart
// quantity. Records that failed to decode, lack a positive id or a name,
// repeat an id, or carry a price that is not a non-negative decimal are
// dropped.
func NormalizeItems(records []backend.ItemRecord, logger *zap.SugaredLogger) []models.MenuItem {
	seen := make(map[int64]bool, len(records))
	items := make([]models.MenuItem, 0, len(records))
	for _, r := range records {
		if r.Invalid != nil {
			logger.Warnw("dropping malformed menu item", "record", string(r.Raw), "error", r.Invalid)
			continue
		}
		if r.ID <= 0 {
			logger.Warnw("dropping menu item without a valid id", "id", r.ID, "name", r.Name)
			continue
		}
		if seen[r.ID] {
			logger.Warnw("dropping menu item with duplicate id", "id", r.ID, "name", r.Name)
			continue
		}
		name := strings.TrimSpace(r.Name)
		if name == "" {
			logger.Warnw("dropping menu item without a name", "id", r.ID)
			continue
		}
		price, err := parsePrice(r.Price)
		if err != nil {
			logger.Warnw("dropping menu item with bad price", "id", r.ID, "price", string(r.Price), "error", err)
			continue
		}
		seen[r.ID] = true

		description := r.Description
		if description == "" {
			description = models.NoDescription
		}
		category := strings.TrimSpace(r.CategoryName)
		if category == "" {
			category = models.CategoryOthers
		}
		items = append(items, models.MenuItem{
			ID:          r.ID,
			Name:        name,
			Description: description,
			Price:       price,
			FoodType:    models.ParseFoodType(r.FoodType),
			Image:       r.Image,
			Category:    category,
			Quantity:    0,
		})
	}
	return items
}

// parsePrice accepts a JSON string or number. Absent, null and "" mean zero.
func parsePrice(raw json.RawMessage) (decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, nil
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return decimal.Zero, errors.Wrap(err, "price string")
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return decimal.Zero, nil
		}
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "price")
	}
	if d.IsNegative() {
		return decimal.Zero, errors.Errorf("negative price %s", d)
	}
	return d, nil
}
