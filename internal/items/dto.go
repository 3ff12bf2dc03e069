package items

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cafequeue-backend/pkg/db/models"
	"github.com/angelmondragon/cafequeue-backend/pkg/enums"
)

// CreateItemInput holds the validated payload to add a menu item. Price is a
// decimal amount in major units, e.g. "4.50".
type CreateItemInput struct {
	Name        string
	Description string
	Price       string
	StockPolicy enums.StockPolicy
}

// UpdateItemInput holds optional mutations; nil leaves a field unchanged.
type UpdateItemInput struct {
	Name        *string
	Description *string
	Price       *string
	StockPolicy *enums.StockPolicy
}

// ItemDTO is the API shape of an item.
type ItemDTO struct {
	ID          uuid.UUID `json:"id"`
	ShopID      uuid.UUID `json:"shop_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	PriceCents  int64     `json:"price_cents"`
	Price       string    `json:"price"`
	StockPolicy string    `json:"stock_policy"`
	StockCount  *int      `json:"stock_count,omitempty"`
	Available   *int      `json:"available,omitempty"`
}

func toDTO(item models.Item) ItemDTO {
	dto := ItemDTO{
		ID:          item.ID,
		ShopID:      item.ShopID,
		Name:        item.Name,
		Description: item.Description,
		PriceCents:  item.PriceCents,
		Price:       FormatPrice(item.PriceCents),
		StockPolicy: string(item.StockPolicy),
	}
	if item.StockPolicy == enums.StockPolicyTracked {
		count := item.StockCount
		available := item.Available()
		dto.StockCount = &count
		dto.Available = &available
	}
	return dto
}

// ParsePriceCents converts a decimal price string into minor units. Prices
// must be non-negative with at most two fractional digits.
func ParsePriceCents(value string) (int64, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return 0, fmt.Errorf("price is required")
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("price %q is not a decimal", raw)
	}
	if price.IsNegative() {
		return 0, fmt.Errorf("price %q must not be negative", raw)
	}
	cents := price.Shift(2)
	if !cents.Equal(cents.Truncate(0)) {
		return 0, fmt.Errorf("price %q has more than two decimal places", raw)
	}
	return cents.IntPart(), nil
}

// FormatPrice renders minor units as a two-decimal string.
func FormatPrice(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
