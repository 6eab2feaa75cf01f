package pacing

import (
	"cmp"
	"math"
	"slices"
)

const (
	// nearBidDistance is the relative distance under which two bids are treated as the same bid.
	nearBidDistance = 1e-6
	// flatSlopeEpsilon guards linear interpolation between two points with the same spend.
	flatSlopeEpsilon = 1e-6
	// defaultROIBid is returned when nothing is known about the bid/spend relationship.
	defaultROIBid = 1.0
)

// BidSpendSample is one pacing-step observation: the ROI bid that was in force and what it spent.
type BidSpendSample struct {
	Bid   float64 `json:"bid" yaml:"bid"`
	Spend float64 `json:"spend" yaml:"spend"`
}

// SolveBid estimates the ROI bid that would produce targetSpend per step.
// This is the IMPC curve inversion shared by the IMPC, bid-cap and SPB controllers.
//
// Parameters:
//   - history: Unordered bid/spend observations (not modified)
//   - targetSpend: Desired spend per step
//
// Returns:
//   - The interpolated bid, or 1.0 when history is empty
//
// Processing flow:
//  1. Sort samples by bid
//  2. Merge samples whose bids are within a relative 1e-6 of each other
//  3. Keep the non-decreasing spend envelope
//  4. Find the two envelope points whose spends bracket targetSpend
//  5. Interpolate bid linearly in spend (extrapolating through the origin past the last point)
func SolveBid(history []BidSpendSample, targetSpend float64) float64 {
	samples := slices.Clone(history)
	slices.SortFunc(samples, func(a, b BidSpendSample) int {
		if c := cmp.Compare(a.Bid, b.Bid); c != 0 {
			return c
		}
		return cmp.Compare(a.Spend, b.Spend)
	})
	samples = MonotonicEnvelope(MergeNearBids(samples))
	if len(samples) == 0 {
		return defaultROIBid
	}

	var bid, spend float64
	i := 0
	for i < len(samples) && samples[i].Spend < targetSpend {
		bid = samples[i].Bid
		spend = samples[i].Spend
		i++
	}
	if i < len(samples) {
		return interpolate(spend, bid, samples[i].Spend, samples[i].Bid, targetSpend)
	}
	last := samples[len(samples)-1]
	return interpolate(0, 0, last.Spend, last.Bid, targetSpend)
}

// MergeNearBids collapses runs of bid-sorted samples whose bids lie within a relative 1e-6 of
// the first bid of the run into their coordinate-wise mean.
func MergeNearBids(sorted []BidSpendSample) []BidSpendSample {
	merged := make([]BidSpendSample, 0, len(sorted))
	start := 0
	for i := 1; i <= len(sorted); i++ {
		if i < len(sorted) && sorted[i].Bid < sorted[start].Bid*(1.0+nearBidDistance) {
			continue
		}
		merged = append(merged, mean(sorted[start:i]))
		start = i
	}
	return merged
}

func mean(run []BidSpendSample) BidSpendSample {
	var m BidSpendSample
	for _, s := range run {
		m.Bid += s.Bid
		m.Spend += s.Spend
	}
	n := float64(len(run))
	m.Bid /= n
	m.Spend /= n
	return m
}

// MonotonicEnvelope scans bid-sorted samples and keeps a sequence whose spend never decreases.
// Each sample either extends the sequence or replaces the first entry with a larger spend,
// which drops observations that contradict a monotone bid/spend curve.
func MonotonicEnvelope(sorted []BidSpendSample) []BidSpendSample {
	result := make([]BidSpendSample, 0, len(sorted))
	for _, s := range sorted {
		l, r := 0, len(result)
		for l < r {
			mid := (l + r) / 2
			if s.Spend >= result[mid].Spend {
				l = mid + 1
			} else {
				r = mid
			}
		}
		if l == len(result) {
			result = append(result, s)
		} else {
			result[l] = s
		}
	}
	return result
}

// interpolate evaluates the line through (x1, y1) and (x2, y2) at x.
func interpolate(x1, y1, x2, y2, x float64) float64 {
	if math.Abs(x1-x2) < flatSlopeEpsilon {
		return (y1 + y2) / 2
	}
	return y1 + (y2-y1)*(x-x1)/(x2-x1)
}
