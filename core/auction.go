package core

// RunSecondPriceAuction runs one auction round: adjustment → reserve enforcement → ranking →
// second-price clearing.
//
// Parameters:
//   - bids: One bid per participant; a zero price means the participant abstains
//   - adjustmentFactors: Per-bidder multipliers (may be nil)
//   - reservePrice: Minimum clearing price
//   - randSource: Tie-breaking source; nil uses crypto/rand
//
// Returns:
//   - AuctionResult with winner, runner-up and clearing price
//
// Processing flow:
//  1. Apply bid adjustment factors
//  2. Reject bids that are non-positive or below the reserve
//  3. Rank eligible bids by price, breaking ties randomly
//  4. Charge the winner max(runner-up price, reserve), never more than the winning bid
func RunSecondPriceAuction(
	bids []CoreBid,
	adjustmentFactors map[string]float64,
	reservePrice float64,
	randSource RandSource,
) *AuctionResult {
	adjustedBids := ApplyBidAdjustmentFactors(bids, adjustmentFactors)

	eligibleBids, rejectedIDs := EnforceReserve(adjustedBids, reservePrice)

	ranked := RankBids(eligibleBids, randSource)

	result := &AuctionResult{
		RankedBids:     ranked,
		RejectedBidIDs: rejectedIDs,
	}
	if len(ranked) > 0 {
		result.Winner = &ranked[0]
		result.ClearingPrice = max(reservePrice, 0)
	}
	if len(ranked) > 1 {
		result.RunnerUp = &ranked[1]
		result.ClearingPrice = max(ranked[1].Price, reservePrice)
	}
	if result.Winner != nil {
		// reserve enforcement tolerates bids a rounding step under the reserve
		result.ClearingPrice = min(result.ClearingPrice, result.Winner.Price)
	}

	return result
}
