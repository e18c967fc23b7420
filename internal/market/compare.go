package market

import "github.com/bourskala/market-board/internal/model"

// PairRatio is the relative value of one aggregated group against another:
// how many units of the source buy one unit of the target, by average price.
type PairRatio struct {
	Source       string  `json:"source"`
	Target       string  `json:"target"`
	SourcePrice  float64 `json:"source_price"`
	TargetPrice  float64 `json:"target_price"`
	Ratio        float64 `json:"ratio"`         // target / source
	InverseRatio float64 `json:"inverse_ratio"` // source / target
}

func averagePriceOf(summaries []model.GroupSummary, group string) (float64, bool) {
	for _, s := range summaries {
		if s.GroupName == group {
			return s.AveragePrice, true
		}
	}
	return 0, false
}

// ComparePair computes the price ratio between two aggregated groups.
// A zero or missing source price yields a zero ratio, never a division;
// the inverse carries the equivalent guard on the target side.
func ComparePair(summaries []model.GroupSummary, source, target string) PairRatio {
	sourcePrice, _ := averagePriceOf(summaries, source)
	targetPrice, _ := averagePriceOf(summaries, target)

	pr := PairRatio{
		Source:      source,
		Target:      target,
		SourcePrice: sourcePrice,
		TargetPrice: targetPrice,
	}
	if sourcePrice > 0 {
		pr.Ratio = targetPrice / sourcePrice
	}
	if targetPrice > 0 {
		pr.InverseRatio = sourcePrice / targetPrice
	}
	return pr
}

// CompareMany computes ratios from one source group against each target.
func CompareMany(summaries []model.GroupSummary, source string, targets []string) []PairRatio {
	out := make([]PairRatio, 0, len(targets))
	for _, target := range targets {
		out = append(out, ComparePair(summaries, source, target))
	}
	return out
}
