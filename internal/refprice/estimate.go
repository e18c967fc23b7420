package refprice

import (
	"github.com/shopspring/decimal"

	"github.com/bourskala/market-board/internal/model"
)

// FormulaKind selects how a group's estimated price is derived from the
// currency rates.
type FormulaKind int

const (
	// FormulaNone produces no estimate for the group.
	FormulaNone FormulaKind = iota
	// FormulaFreeMarket prices against the open-market dollar rate.
	FormulaFreeMarket
	// FormulaHallBlend prices against a weighted blend of the two hall rates.
	FormulaHallBlend
)

// Formula is the per-group pricing rule. For FormulaHallBlend the weights
// apply to the cash and transfer hall rates and must sum to one.
type Formula struct {
	Kind           FormulaKind
	CashWeight     decimal.Decimal
	TransferWeight decimal.Decimal
}

// perTonne converts between USD-per-tonne world prices and the rial-per-kg
// figures the exchange trades in.
var perTonne = decimal.NewFromInt(1000)

// defaultPolicy maps commodity groups to their pricing rule. Sheet products
// settle at the free-market rate; long products blend the halls 40/60;
// upstream products (billet, slab) blend 20/80. Groups outside the table get
// no estimate.
func defaultPolicy() map[string]Formula {
	blend := func(cash, transfer float64) Formula {
		return Formula{
			Kind:           FormulaHallBlend,
			CashWeight:     decimal.NewFromFloat(cash),
			TransferWeight: decimal.NewFromFloat(transfer),
		}
	}
	free := Formula{Kind: FormulaFreeMarket}
	return map[string]Formula{
		"ورق گرم":       free,
		"ورق سرد":       free,
		"ورق گالوانیزه": free,
		"میلگرد":        blend(0.4, 0.6),
		"تیرآهن":        blend(0.4, 0.6),
		"کلاف":          blend(0.4, 0.6),
		"شمش":           blend(0.2, 0.8),
		"تختال":         blend(0.2, 0.8),
	}
}

// Engine computes estimated local prices from resolved global prices and
// currency rates according to a per-group policy table.
type Engine struct {
	policy map[string]Formula
}

// NewEngine returns an engine with the default group policy.
func NewEngine() *Engine {
	return &Engine{policy: defaultPolicy()}
}

// NewEngineWithPolicy returns an engine with a caller-supplied policy table.
func NewEngineWithPolicy(policy map[string]Formula) *Engine {
	return &Engine{policy: policy}
}

// Estimate computes the implied local price of a group in rial per kg from
// its global USD-per-tonne price and the current rates. Null when the group
// has no formula, the global price is missing or non-positive, or any rate
// the formula needs is missing — a missing rate is contagious, never
// defaulted.
func (e *Engine) Estimate(group string, globalPrice decimal.NullDecimal, rates model.CurrencyRates) decimal.NullDecimal {
	formula, ok := e.policy[group]
	if !ok || formula.Kind == FormulaNone {
		return decimal.NullDecimal{}
	}
	if !truthy(globalPrice) {
		return decimal.NullDecimal{}
	}

	var rate decimal.Decimal
	switch formula.Kind {
	case FormulaFreeMarket:
		if !rates.FreeMarket.Valid {
			return decimal.NullDecimal{}
		}
		rate = rates.FreeMarket.Decimal
	case FormulaHallBlend:
		if !rates.HallCash.Valid || !rates.HallTransfer.Valid {
			return decimal.NullDecimal{}
		}
		rate = rates.HallCash.Decimal.Mul(formula.CashWeight).
			Add(rates.HallTransfer.Decimal.Mul(formula.TransferWeight))
	default:
		return decimal.NullDecimal{}
	}

	return decimal.NullDecimal{
		Decimal: globalPrice.Decimal.Mul(rate).Div(perTonne),
		Valid:   true,
	}
}

// DollarEquivalent computes the dollar rate implied by the observed local
// average price (rial/kg) against the global price (USD/tonne). Null when
// the global price is missing or zero; a zero average price is valid input
// and yields zero.
func DollarEquivalent(averagePrice float64, globalPrice decimal.NullDecimal) decimal.NullDecimal {
	if !globalPrice.Valid || globalPrice.Decimal.IsZero() {
		return decimal.NullDecimal{}
	}
	avg := decimal.NewFromFloat(averagePrice)
	return decimal.NullDecimal{
		Decimal: avg.Div(globalPrice.Decimal).Mul(perTonne),
		Valid:   true,
	}
}
