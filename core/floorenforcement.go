package core

import (
	"github.com/shopspring/decimal"
)

const monetaryPrecision int32 = 6 // bid prices are compared at 1e-6 precision

// BidMeetsReserve returns true if the bid is positive and meets or exceeds the reserve price.
// Uses decimal arithmetic with monetaryPrecision to avoid floating-point errors.
func BidMeetsReserve(bidPrice, reservePrice float64) bool {
	bidDecimal := decimal.NewFromFloat(bidPrice).Round(monetaryPrecision)
	if !bidDecimal.IsPositive() {
		return false
	}
	reserveDecimal := decimal.NewFromFloat(reservePrice).Round(monetaryPrecision)

	return bidDecimal.GreaterThanOrEqual(reserveDecimal)
}

// EnforceReserve splits bids into those that clear the reserve price and the IDs of those
// that do not. A zero bid is how a paced-out bidder abstains, so it never clears.
func EnforceReserve(bids []CoreBid, reservePrice float64) (eligible []CoreBid, rejectedBidIDs []string) {
	eligible = make([]CoreBid, 0, len(bids))
	rejectedBidIDs = make([]string, 0)

	for _, bid := range bids {
		if BidMeetsReserve(bid.Price, reservePrice) {
			eligible = append(eligible, bid)
		} else {
			rejectedBidIDs = append(rejectedBidIDs, bid.ID)
		}
	}

	return eligible, rejectedBidIDs
}
