package core

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"slices"
)

// RandSource provides random number generation for tie-breaking.
// *math/rand/v2.Rand satisfies it, which keeps seeded simulations reproducible.
type RandSource interface {
	// IntN returns a random integer in [0, n). Panics if n <= 0.
	IntN(n int) int
}

// cryptoRandSource wraps crypto/rand when no seeded source is supplied
type cryptoRandSource struct{}

// IntN returns a cryptographically secure random integer in [0, n).
// Panics if n <= 0 (programmer error).
func (cryptoRandSource) IntN(n int) int {
	if n <= 0 {
		panic(fmt.Sprintf("cryptoRandSource.IntN: n must be positive, got %d", n))
	}
	// rand.Int does not error when using rand.Reader
	nBig, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(nBig.Int64())
}

var defaultRandSource RandSource = cryptoRandSource{}

// RankBids returns a copy of bids sorted by price descending. Bids with equal prices are
// shuffled with randSource (Fisher-Yates), so no bidder wins ties by position.
func RankBids(bids []CoreBid, randSource RandSource) []CoreBid {
	ranked := slices.Clone(bids)
	slices.SortStableFunc(ranked, func(a, b CoreBid) int {
		switch {
		case a.Price > b.Price:
			return -1
		case a.Price < b.Price:
			return 1
		default:
			return 0
		}
	})

	if randSource == nil {
		randSource = defaultRandSource
	}

	i := 0
	for i < len(ranked) {
		j := i + 1
		for j < len(ranked) && ranked[j].Price == ranked[i].Price {
			j++
		}
		for k := j - 1; k > i; k-- {
			randIdx := i + randSource.IntN(k-i+1)
			ranked[k], ranked[randIdx] = ranked[randIdx], ranked[k]
		}
		i = j
	}

	return ranked
}
