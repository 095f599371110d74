package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Package is a priced membership plan.
type Package struct {
	ID          int64           `json:"package_id"`
	Title       string          `json:"title"`
	Description *string         `json:"description"`
	Picture     *string         `json:"picture"`
	Price       decimal.Decimal `json:"price"`
	CreatedAt   time.Time       `json:"created_at"`
}

// PriceMinorUnits converts the price into centavos, rounding half away from zero.
func (p Package) PriceMinorUnits() int64 {
	return p.Price.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
