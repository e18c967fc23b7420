// Package market implements the aggregation pipeline: facet filtering,
// per-group summarisation, and pair ratio comparison. Every function here is
// a pure transform over in-memory rows — no I/O, no shared state, recomputed
// in full on each request.
package market

import (
	"github.com/bourskala/market-board/internal/classify"
	"github.com/bourskala/market-board/internal/model"
)

// FacetSelection holds the user-selected filter values. An empty slice means
// "no restriction on this facet". Group selections are matched against the
// classifier output for each row, not against any raw field.
type FacetSelection struct {
	SettlementTypes []string `json:"settlement_types"`
	Producers       []string `json:"producers"`
	Groups          []string `json:"groups"`
}

// Empty reports whether no facet restricts anything.
func (s FacetSelection) Empty() bool {
	return len(s.SettlementTypes) == 0 && len(s.Producers) == 0 && len(s.Groups) == 0
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func allows(set map[string]struct{}, value string) bool {
	if set == nil {
		return true
	}
	_, ok := set[value]
	return ok
}

// Filter returns the rows passing every non-empty facet. Filters are
// conjunctive; row order is preserved.
func Filter(rows []model.RawTransaction, sel FacetSelection) []model.RawTransaction {
	if sel.Empty() {
		return rows
	}

	settlements := toSet(sel.SettlementTypes)
	producers := toSet(sel.Producers)
	groups := toSet(sel.Groups)

	out := make([]model.RawTransaction, 0, len(rows))
	for _, row := range rows {
		if !allows(settlements, row.SettlementType) {
			continue
		}
		if !allows(producers, row.ProducerName) {
			continue
		}
		if !allows(groups, classify.Group(row.GoodsName)) {
			continue
		}
		out = append(out, row)
	}
	return out
}

// FacetValues are the distinct filterable values present in a row set, in
// first-encounter order, for populating the dashboard's multi-selects.
// Empty strings are skipped: an absent facet value is not selectable.
type FacetValues struct {
	SettlementTypes []string `json:"settlement_types"`
	Producers       []string `json:"producers"`
	Groups          []string `json:"groups"`
}

// CollectFacets extracts the distinct facet values of a raw row set.
func CollectFacets(rows []model.RawTransaction) FacetValues {
	var fv FacetValues
	seenSettlement := make(map[string]struct{})
	seenProducer := make(map[string]struct{})
	seenGroup := make(map[string]struct{})

	for _, row := range rows {
		if row.SettlementType != "" {
			if _, ok := seenSettlement[row.SettlementType]; !ok {
				seenSettlement[row.SettlementType] = struct{}{}
				fv.SettlementTypes = append(fv.SettlementTypes, row.SettlementType)
			}
		}
		if row.ProducerName != "" {
			if _, ok := seenProducer[row.ProducerName]; !ok {
				seenProducer[row.ProducerName] = struct{}{}
				fv.Producers = append(fv.Producers, row.ProducerName)
			}
		}
		group := classify.Group(row.GoodsName)
		if _, ok := seenGroup[group]; !ok {
			seenGroup[group] = struct{}{}
			fv.Groups = append(fv.Groups, group)
		}
	}
	return fv
}
