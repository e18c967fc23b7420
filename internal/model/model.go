// Package model defines the core domain types shared across the dashboard.
// Reference prices and currency rates use shopspring/decimal — never float64
// for money. Traded tonnage and the ratios derived from it stay float64
// because they mirror the floating-point figures the exchange reports.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawTransaction is one trade record as returned by the exchange's public
// statistics endpoint. JSON tags follow the upstream field names, Persian
// transliterations included.
type RawTransaction struct {
	GoodsName      string  `json:"GoodsName"`
	Symbol         string  `json:"Symbol"`
	ProducerName   string  `json:"ProducerName"`
	ContractType   string  `json:"ContractType"`
	PacketName     string  `json:"PacketName"`
	SettlementType string  `json:"Tasvieh"`
	Warehouse      string  `json:"Warehouse"`
	Date           string  `json:"date"`
	Quantity       float64 `json:"Quantity"`      // tonnes traded
	SupplyVolume   float64 `json:"arze"`          // tonnes offered
	TotalValue     float64 `json:"TotalPrice"`    // thousand rial
	BasePrice      float64 `json:"ArzeBasePrice"` // reference unit price before trading
}

// GroupSummary is the per-commodity-group aggregation of a filtered row set.
// Recomputed in full on every request; never mutated in place.
type GroupSummary struct {
	GroupName           string  `json:"group_name"`
	TotalQuantity       float64 `json:"total_quantity"`
	TotalSupply         float64 `json:"total_supply"`
	TotalValue          float64 `json:"total_value"`
	TotalBasePriceValue float64 `json:"total_base_price_value"`
	AveragePrice        float64 `json:"average_price"`
	VolumeToSupplyRatio float64 `json:"volume_to_supply_ratio"` // percent
	PriceToBaseRatio    float64 `json:"price_to_base_ratio"`    // percent
}

// CurrencyRates carries the dollar rates of the three settlement channels.
// Each field is independently nullable: a failed upstream leaves its own
// field invalid and never touches the others.
type CurrencyRates struct {
	HallCash     decimal.NullDecimal `json:"hall_cash"`     // rial, ICE market 1
	HallTransfer decimal.NullDecimal `json:"hall_transfer"` // rial, ICE market 2
	FreeMarket   decimal.NullDecimal `json:"free_market"`   // rial, open market
}

// GlobalPrice is a row of the global_prices table: the tracked world price
// of one commodity in USD per tonne. Price stays null until first scraped
// or manually set.
type GlobalPrice struct {
	ID              int64               `json:"id" db:"id"`
	Slug            string              `json:"slug" db:"slug"`
	GlobalName      string              `json:"global_name" db:"global_name"`
	LocalLabel      string              `json:"local_label" db:"local_label"`
	Price           decimal.NullDecimal `json:"price" db:"price"`
	SourceURL       string              `json:"source_url" db:"source_url"`
	LastFetchedAt   *time.Time          `json:"last_fetched_at" db:"last_fetched_at"`
	ManuallyUpdated bool                `json:"manually_updated" db:"manually_updated"`
	CreatedAt       time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at" db:"updated_at"`
}

// PriceMapping is one entry of the static seed table: which world price is
// tracked, under which slug, and which local commodity group it belongs to.
type PriceMapping struct {
	Slug       string
	GlobalName string
	LocalLabel string
	SourceURL  string
}

// SeedMappings is the fixed set of tracked commodities. Seeding inserts
// these with null prices; it is a no-op once any row exists.
var SeedMappings = []PriceMapping{
	{Slug: "rebar", GlobalName: "Rebar", LocalLabel: "میلگرد", SourceURL: "https://www.metal.com/Finished-Steel/201703140002"},
	{Slug: "hot-rolled-coils", GlobalName: "Hot Rolled Coils", LocalLabel: "ورق گرم", SourceURL: "https://www.metal.com/Finished-Steel/201703140001"},
	{Slug: "cold-rolled-coils", GlobalName: "Cold-Rolled Coils", LocalLabel: "ورق سرد", SourceURL: "https://www.metal.com/Finished-Steel/201703140003"},
	{Slug: "galvanized", GlobalName: "Galvanized", LocalLabel: "ورق گالوانیزه", SourceURL: "https://www.metal.com/Finished-Steel/201703140006"},
	{Slug: "slab", GlobalName: "Slab", LocalLabel: "تختال", SourceURL: "https://www.metal.com/Finished-Steel/202511040003"},
	{Slug: "billet", GlobalName: "Billet", LocalLabel: "شمش", SourceURL: "https://www.metal.com/Finished-Steel/202504270001"},
}
