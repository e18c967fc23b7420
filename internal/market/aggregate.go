package market

import (
	"sort"

	"github.com/bourskala/market-board/internal/classify"
	"github.com/bourskala/market-board/internal/model"
)

// Aggregate reduces rows into one summary per commodity group. Rows are
// classified, accumulated under their group key, and the derived fields are
// computed with division guards so the result is total for any input. The
// output is sorted by total value descending; ties keep the groups'
// first-encounter order, so the result is reproducible for a given row
// order.
func Aggregate(rows []model.RawTransaction) []model.GroupSummary {
	type accumulator struct {
		order   int
		summary model.GroupSummary
	}
	groups := make(map[string]*accumulator)
	next := 0

	for _, row := range rows {
		name := classify.Group(row.GoodsName)
		acc, ok := groups[name]
		if !ok {
			acc = &accumulator{order: next, summary: model.GroupSummary{GroupName: name}}
			groups[name] = acc
			next++
		}
		acc.summary.TotalQuantity += row.Quantity
		acc.summary.TotalSupply += row.SupplyVolume
		acc.summary.TotalValue += row.TotalValue
		acc.summary.TotalBasePriceValue += row.BasePrice * row.Quantity
	}

	ordered := make([]*accumulator, 0, len(groups))
	for _, acc := range groups {
		s := &acc.summary
		if s.TotalQuantity > 0 {
			s.AveragePrice = s.TotalValue / s.TotalQuantity
		}
		if s.TotalSupply > 0 {
			s.VolumeToSupplyRatio = s.TotalQuantity / s.TotalSupply * 100
		}
		if s.TotalBasePriceValue > 0 {
			s.PriceToBaseRatio = s.TotalValue / s.TotalBasePriceValue * 100
		}
		ordered = append(ordered, acc)
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].summary.TotalValue != ordered[j].summary.TotalValue {
			return ordered[i].summary.TotalValue > ordered[j].summary.TotalValue
		}
		return ordered[i].order < ordered[j].order
	})

	out := make([]model.GroupSummary, len(ordered))
	for i, acc := range ordered {
		out[i] = acc.summary
	}
	return out
}
