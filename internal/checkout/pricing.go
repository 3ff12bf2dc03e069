package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cafequeue-backend/pkg/enums"
)

const bpsDenominator = 10000

// Totals is the priced checkout, all amounts in minor units.
type Totals struct {
	SubtotalCents       int64          `json:"subtotal_cents"`
	TaxRateBps          int            `json:"tax_rate_bps"`
	TaxCents            int64          `json:"tax_cents"`
	TotalCents          int64          `json:"total_cents"`
	ApplicationFeeCents int64          `json:"application_fee_cents"`
	Currency            enums.Currency `json:"currency"`
}

// PricedLine is a reserved quantity at its snapshot unit price.
type PricedLine struct {
	UnitPriceCents int64
	Quantity       int
}

// LineTotal is unit price times quantity.
func (l PricedLine) LineTotal() int64 {
	return l.UnitPriceCents * int64(l.Quantity)
}

// Price sums the lines, adds tax at taxBps and computes the platform fee
// at feeBps of the total. Fractional cents round half away from zero.
func Price(lines []PricedLine, taxBps, feeBps int, currency enums.Currency) Totals {
	var subtotal int64
	for _, line := range lines {
		subtotal += line.LineTotal()
	}
	tax := applyBps(subtotal, taxBps)
	total := subtotal + tax
	return Totals{
		SubtotalCents:       subtotal,
		TaxRateBps:          taxBps,
		TaxCents:            tax,
		TotalCents:          total,
		ApplicationFeeCents: applyBps(total, feeBps),
		Currency:            currency,
	}
}

func applyBps(amount int64, bps int) int64 {
	if amount == 0 || bps == 0 {
		return 0
	}
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(int64(bps))).
		Div(decimal.NewFromInt(bpsDenominator)).
		Round(0).
		IntPart()
}
