package convert

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Armin-kho/satoshi-converter/internal/items"
)

// CurrencyRate is the derived per-currency record. Zero in UnitPrice or
// SmallestUnits means the value is not available yet.
type CurrencyRate struct {
	Code          string  `json:"code"`
	Name          string  `json:"name"`
	Glyph         string  `json:"glyph"`
	UnitPrice     float64 `json:"unitPrice"`
	SmallestUnits int64   `json:"smallestUnitsPerCurrencyUnit"`
}

var subdivisions = decimal.NewFromInt(items.SubdivisionsPerUnit)

// SmallestUnits returns round(SubdivisionsPerUnit / unitPrice), or 0 when
// unitPrice is not a positive finite number. Halves round away from zero.
func SmallestUnits(unitPrice float64) int64 {
	if !(unitPrice > 0) || math.IsInf(unitPrice, 0) {
		return 0
	}
	q := subdivisions.Div(decimal.NewFromFloat(unitPrice)).Round(0)
	bi := q.BigInt()
	if !bi.IsInt64() {
		return math.MaxInt64
	}
	return bi.Int64()
}

// BuildRates derives one CurrencyRate per descriptor, in descriptor order.
// Prices are looked up by lowercase code; a missing or non-positive price
// yields zeros for that currency.
func BuildRates(descs []items.Descriptor, prices map[string]float64) []CurrencyRate {
	out := make([]CurrencyRate, 0, len(descs))
	for _, d := range descs {
		price := prices[strings.ToLower(d.Code)]
		if !(price > 0) {
			price = 0
		}
		out = append(out, CurrencyRate{
			Code:          d.Code,
			Name:          d.Name,
			Glyph:         d.Glyph,
			UnitPrice:     price,
			SmallestUnits: SmallestUnits(price),
		})
	}
	return out
}
