// Package refprice resolves global reference prices per commodity group and
// derives estimated local prices from them. All price math runs on
// shopspring/decimal; results stay NullDecimal so a missing input is carried
// through as null instead of a substituted number.
package refprice

import (
	"github.com/shopspring/decimal"

	"github.com/bourskala/market-board/internal/model"
)

// baseLabel is the commodity whose global price anchors derived markups.
const baseLabel = "شمش" // billet

// markup is one dependent commodity priced as a fixed factor over billet.
type markup struct {
	Label  string
	Factor decimal.Decimal
}

// markups lists the labels whose missing global price is derived from the
// billet price. Policy data, not logic: add a row to cover a new commodity.
var markups = []markup{
	{Label: "تیرآهن", Factor: decimal.NewFromFloat(1.07)}, // beam
	{Label: "میلگرد", Factor: decimal.NewFromFloat(1.16)}, // rebar
}

func truthy(d decimal.NullDecimal) bool {
	return d.Valid && d.Decimal.IsPositive()
}

// Resolve builds the per-group global price lookup (USD per tonne, keyed by
// local label) from the stored price rows, then fills gaps for the dependent
// labels using the billet markups. A truthy direct price is never
// overwritten; without a billet price the dependents keep whatever the
// direct map had.
func Resolve(prices []model.GlobalPrice) map[string]decimal.NullDecimal {
	resolved := make(map[string]decimal.NullDecimal, len(prices))
	for _, p := range prices {
		resolved[p.LocalLabel] = p.Price
	}

	base, ok := resolved[baseLabel]
	if !ok || !truthy(base) {
		return resolved
	}
	for _, m := range markups {
		if truthy(resolved[m.Label]) {
			continue
		}
		resolved[m.Label] = decimal.NullDecimal{
			Decimal: base.Decimal.Mul(m.Factor),
			Valid:   true,
		}
	}
	return resolved
}
