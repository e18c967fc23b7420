package refprice

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/bourskala/market-board/internal/model"
)

func allRates() model.CurrencyRates {
	return model.CurrencyRates{
		HallCash:     price(900000),
		HallTransfer: price(1000000),
		FreeMarket:   price(1100000),
	}
}

func TestEstimate_FreeMarketBucket(t *testing.T) {
	e := NewEngine()
	got := e.Estimate("ورق گرم", price(550), allRates())
	// 550 USD/t * 1,100,000 rial/USD / 1000 = 605,000 rial/kg.
	want := decimal.NewFromInt(605000)
	if !got.Valid || !got.Decimal.Equal(want) {
		t.Errorf("estimate = %+v, want %s", got, want)
	}
}

func TestEstimate_HallBlend4060(t *testing.T) {
	e := NewEngine()
	got := e.Estimate("میلگرد", price(600), allRates())
	// Blended rate: 0.4*900,000 + 0.6*1,000,000 = 960,000.
	// 600 * 960,000 / 1000 = 576,000 rial/kg.
	want := decimal.NewFromInt(576000)
	if !got.Valid || !got.Decimal.Equal(want) {
		t.Errorf("estimate = %+v, want %s", got, want)
	}
}

func TestEstimate_HallBlend2080(t *testing.T) {
	e := NewEngine()
	got := e.Estimate("شمش", price(500), allRates())
	// Blended rate: 0.2*900,000 + 0.8*1,000,000 = 980,000.
	// 500 * 980,000 / 1000 = 490,000 rial/kg.
	want := decimal.NewFromInt(490000)
	if !got.Valid || !got.Decimal.Equal(want) {
		t.Errorf("estimate = %+v, want %s", got, want)
	}
}

func TestEstimate_MissingRateIsContagious(t *testing.T) {
	e := NewEngine()

	rates := allRates()
	rates.HallTransfer = decimal.NullDecimal{}
	if got := e.Estimate("میلگرد", price(600), rates); got.Valid {
		t.Errorf("blend with one missing hall rate = %+v, want null", got)
	}
	// The free-market bucket is unaffected by the missing hall rate.
	if got := e.Estimate("ورق گرم", price(550), rates); !got.Valid {
		t.Error("free-market estimate should survive a missing hall rate")
	}

	rates = allRates()
	rates.FreeMarket = decimal.NullDecimal{}
	if got := e.Estimate("ورق سرد", price(550), rates); got.Valid {
		t.Errorf("free-market estimate without azad rate = %+v, want null", got)
	}
}

func TestEstimate_UnknownGroupAndMissingGlobal(t *testing.T) {
	e := NewEngine()
	if got := e.Estimate("کاتد", price(9000), allRates()); got.Valid {
		t.Errorf("group outside the policy table = %+v, want null", got)
	}
	if got := e.Estimate("میلگرد", decimal.NullDecimal{}, allRates()); got.Valid {
		t.Errorf("estimate without a global price = %+v, want null", got)
	}
	if got := e.Estimate("میلگرد", price(0), allRates()); got.Valid {
		t.Errorf("estimate with zero global price = %+v, want null", got)
	}
}

func TestEstimate_CustomPolicy(t *testing.T) {
	e := NewEngineWithPolicy(map[string]Formula{
		"کاتد": {Kind: FormulaFreeMarket},
	})
	if got := e.Estimate("کاتد", price(9000), allRates()); !got.Valid {
		t.Error("custom policy entry should produce an estimate")
	}
	if got := e.Estimate("میلگرد", price(600), allRates()); got.Valid {
		t.Error("groups outside the custom table must not estimate")
	}
}

func TestDollarEquivalent(t *testing.T) {
	// 605,000 rial/kg vs 550 USD/t implies 1,100,000 rial per dollar.
	got := DollarEquivalent(605000, price(550))
	if !got.Valid || !got.Decimal.Equal(decimal.NewFromInt(1100000)) {
		t.Errorf("dollar equivalent = %+v, want 1100000", got)
	}
}

func TestDollarEquivalent_Guards(t *testing.T) {
	// Zero average price is valid input: the implied rate is zero, not null.
	got := DollarEquivalent(0, price(500))
	if !got.Valid || !got.Decimal.IsZero() {
		t.Errorf("zero average = %+v, want valid 0", got)
	}
	if got := DollarEquivalent(500, decimal.NullDecimal{}); got.Valid {
		t.Errorf("null global = %+v, want null", got)
	}
	if got := DollarEquivalent(500, price(0)); got.Valid {
		t.Errorf("zero global = %+v, want null", got)
	}
}
