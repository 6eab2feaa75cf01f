package core

// CoreBid is one bidder's bid in a single auction round.
type CoreBid struct {
	ID     string  `json:"id"`
	Bidder string  `json:"bidder"`
	Price  float64 `json:"price"`
}

// AuctionResult contains the outcome of one second-price auction round.
type AuctionResult struct {
	// Winner is the highest-ranked bid (nil if no bid cleared the reserve)
	Winner *CoreBid

	// RunnerUp is the second-highest-ranked bid (nil if fewer than two bids cleared the reserve)
	RunnerUp *CoreBid

	// ClearingPrice is what the winner pays: the runner-up's price, never below the reserve.
	// Zero when there is no winner.
	ClearingPrice float64

	// RankedBids contains every eligible bid, highest first
	RankedBids []CoreBid

	// RejectedBidIDs contains IDs of bids that did not clear the reserve
	RejectedBidIDs []string
}
