package service

import (
	"sort"

	"holdem/internal/model"
)

// SidePot is one pot layer built from a contribution level. Eligible lists
// the showdown-eligible seats that funded this layer.
type SidePot struct {
	Amount   int64
	Eligible []int
}

// PotAward is the amount one seat takes from one pot.
type PotAward struct {
	SeatIndex int
	Amount    int64
}

// BuildPots layers the per-seat total contributions for the hand into a main
// pot plus side pots. Folded seats fund pots but are never eligible.
//
// Levels are the distinct positive contribution amounts ascending; layer i
// collects (L_i - L_{i-1}) from every seat that contributed at least L_i.
func BuildPots(contributions map[int]int64, eligible map[int]bool) []SidePot {
	levels := make([]int64, 0, len(contributions))
	seen := map[int64]bool{}
	for _, amt := range contributions {
		if amt > 0 && !seen[amt] {
			seen[amt] = true
			levels = append(levels, amt)
		}
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })

	pots := make([]SidePot, 0, len(levels))
	prev := int64(0)
	for _, level := range levels {
		pot := SidePot{}
		for seat, amt := range contributions {
			if amt >= level {
				pot.Amount += level - prev
				if eligible[seat] {
					pot.Eligible = append(pot.Eligible, seat)
				}
			}
		}
		sort.Ints(pot.Eligible)
		prev = level
		if pot.Amount > 0 {
			pots = append(pots, pot)
		}
	}
	return pots
}

// AwardPot splits one pot among the winning seats as evenly as possible.
// Indivisible remainder chips go one at a time to the winners earliest
// clockwise from the dealer.
func AwardPot(pot SidePot, winners []int, dealerSeat, maxSeats int) []PotAward {
	if len(winners) == 0 {
		return nil
	}
	ordered := make([]int, len(winners))
	copy(ordered, winners)
	sort.Slice(ordered, func(i, j int) bool {
		return clockwiseDistance(dealerSeat, ordered[i], maxSeats) < clockwiseDistance(dealerSeat, ordered[j], maxSeats)
	})

	share := pot.Amount / int64(len(ordered))
	remainder := pot.Amount % int64(len(ordered))

	awards := make([]PotAward, len(ordered))
	for i, seat := range ordered {
		amt := share
		if int64(i) < remainder {
			amt++
		}
		awards[i] = PotAward{SeatIndex: seat, Amount: amt}
	}
	return awards
}

// clockwiseDistance counts seats from the dealer going clockwise, so the
// seat immediately left of the dealer is distance 1.
func clockwiseDistance(dealerSeat, seat, maxSeats int) int {
	d := (seat - dealerSeat + maxSeats) % maxSeats
	if d == 0 {
		d = maxSeats
	}
	return d
}

// potTotal sums every seat's contribution; the pot invariant checks against
// this value.
func potTotal(seats []*model.PlayerGame) int64 {
	var total int64
	for _, s := range seats {
		total += s.TotalBetThisHand
	}
	return total
}
