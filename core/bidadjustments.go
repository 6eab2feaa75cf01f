package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ApplyBidAdjustmentFactors scales each bid by its bidder's adjustment factor.
// Bidder names are matched case-insensitively; missing or non-positive factors leave the bid
// unchanged. The input slice is not modified.
func ApplyBidAdjustmentFactors(bids []CoreBid, adjustmentFactors map[string]float64) []CoreBid {
	result := make([]CoreBid, len(bids))
	copy(result, bids)
	if len(adjustmentFactors) == 0 {
		return result
	}

	for i := range result {
		factor, exists := adjustmentFactors[strings.ToLower(result[i].Bidder)]
		if !exists || factor <= 0 {
			continue
		}

		// Use decimal arithmetic so 2.1 * 1.1 is 2.31, not 2.3100000000000005
		adjusted := decimal.NewFromFloat(result[i].Price).Mul(decimal.NewFromFloat(factor))
		result[i].Price = adjusted.InexactFloat64()
	}

	return result
}
