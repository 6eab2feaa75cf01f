package core

import (
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestApplyBidAdjustmentFactors(t *testing.T) {
	tests := []struct {
		name              string
		bids              []CoreBid
		adjustmentFactors map[string]float64
		expectedPrices    map[string]float64
	}{
		{
			name: "Basic adjustment factors",
			bids: []CoreBid{
				{ID: "bid1", Bidder: "impc", Price: 2.00},
				{ID: "bid2", Bidder: "spb", Price: 1.50},
				{ID: "bid3", Bidder: "pid", Price: 3.00},
			},
			adjustmentFactors: map[string]float64{
				"impc": 1.0,
				"spb":  0.9,
				"pid":  1.1,
			},
			expectedPrices: map[string]float64{
				"impc": 2.00, // 2.00 (no adjustment)
				"spb":  1.35, // 1.50 * 0.9
				"pid":  3.30, // 3.00 * 1.1
			},
		},
		{
			name: "Case-insensitive bidder matching",
			bids: []CoreBid{
				{ID: "bid1", Bidder: "IMPC", Price: 2.00},
				{ID: "bid2", Bidder: "Spb", Price: 1.50},
			},
			adjustmentFactors: map[string]float64{
				"impc": 1.2,
				"spb":  0.8,
			},
			expectedPrices: map[string]float64{
				"IMPC": 2.40, // 2.00 * 1.2
				"Spb":  1.20, // 1.50 * 0.8
			},
		},
		{
			name: "Non-positive factor is ignored",
			bids: []CoreBid{
				{ID: "bid1", Bidder: "impc", Price: 2.00},
			},
			adjustmentFactors: map[string]float64{
				"impc": 0,
			},
			expectedPrices: map[string]float64{
				"impc": 2.00,
			},
		},
		{
			name: "Decimal precision",
			bids: []CoreBid{
				{ID: "bid1", Bidder: "impc", Price: 2.1},
				{ID: "bid2", Bidder: "spb", Price: 3.3},
				{ID: "bid3", Bidder: "pid", Price: 12.34},
			},
			adjustmentFactors: map[string]float64{
				"impc": 1.1,   // 2.1 * 1.1 = 2.31
				"spb":  0.33,  // 3.3 * 0.33 = 1.089
				"pid":  0.789, // 12.34 * 0.789 = 9.73626
			},
			expectedPrices: map[string]float64{
				"impc": 2.31,
				"spb":  1.089,
				"pid":  9.73626,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adjustedBids := ApplyBidAdjustmentFactors(tt.bids, tt.adjustmentFactors)

			assert.Equal(t, len(tt.bids), len(adjustedBids))

			for i, adjustedBid := range adjustedBids {
				check.Equal(t, tt.expectedPrices[adjustedBid.Bidder], adjustedBid.Price)
				check.Equal(t, tt.bids[i].ID, adjustedBid.ID)
				check.Equal(t, tt.bids[i].Bidder, adjustedBid.Bidder)
			}
		})
	}
}

func TestApplyBidAdjustmentFactors_NoFactorsCopies(t *testing.T) {
	bids := []CoreBid{{ID: "bid1", Bidder: "impc", Price: 2.00}}

	adjusted := ApplyBidAdjustmentFactors(bids, nil)
	adjusted[0].Price = 7

	check.Equal(t, 2.00, bids[0].Price)
}
