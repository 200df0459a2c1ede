package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPotsSingleLevel(t *testing.T) {
	pots := BuildPots(
		map[int]int64{0: 10, 1: 10, 2: 10},
		map[int]bool{0: true, 1: true, 2: true},
	)
	require.Len(t, pots, 1)
	assert.Equal(t, int64(30), pots[0].Amount)
	assert.Equal(t, []int{0, 1, 2}, pots[0].Eligible)
}

func TestBuildPotsAllInSidePot(t *testing.T) {
	// spec scenario: 50 all-in against two 150 stacks
	pots := BuildPots(
		map[int]int64{0: 50, 1: 150, 2: 150},
		map[int]bool{0: true, 1: true, 2: true},
	)
	require.Len(t, pots, 2)
	assert.Equal(t, int64(150), pots[0].Amount)
	assert.Equal(t, []int{0, 1, 2}, pots[0].Eligible)
	assert.Equal(t, int64(200), pots[1].Amount)
	assert.Equal(t, []int{1, 2}, pots[1].Eligible)
}

func TestBuildPotsFoldedSeatFundsButNeverCollects(t *testing.T) {
	pots := BuildPots(
		map[int]int64{0: 20, 1: 100, 2: 100},
		map[int]bool{1: true, 2: true},
	)
	require.Len(t, pots, 2)
	assert.Equal(t, int64(60), pots[0].Amount)
	assert.Equal(t, []int{1, 2}, pots[0].Eligible)
	assert.Equal(t, int64(160), pots[1].Amount)
	assert.Equal(t, []int{1, 2}, pots[1].Eligible)

	var total int64
	for _, p := range pots {
		total += p.Amount
	}
	assert.Equal(t, int64(220), total)
}

func TestBuildPotsThreeLevels(t *testing.T) {
	pots := BuildPots(
		map[int]int64{0: 25, 1: 75, 2: 200, 3: 200},
		map[int]bool{0: true, 1: true, 2: true, 3: true},
	)
	require.Len(t, pots, 3)
	assert.Equal(t, int64(100), pots[0].Amount)
	assert.Equal(t, int64(150), pots[1].Amount)
	assert.Equal(t, int64(250), pots[2].Amount)
}

func TestAwardPotEvenSplit(t *testing.T) {
	awards := AwardPot(SidePot{Amount: 6}, []int{1, 2}, 0, 9)
	require.Len(t, awards, 2)
	assert.Equal(t, int64(3), awards[0].Amount)
	assert.Equal(t, int64(3), awards[1].Amount)
}

func TestAwardPotRemainderGoesClockwiseFromDealer(t *testing.T) {
	// pot of 7 split two ways: seat 2 sits closer clockwise from dealer 0
	awards := AwardPot(SidePot{Amount: 7}, []int{5, 2}, 0, 9)
	require.Len(t, awards, 2)
	assert.Equal(t, 2, awards[0].SeatIndex)
	assert.Equal(t, int64(4), awards[0].Amount)
	assert.Equal(t, 5, awards[1].SeatIndex)
	assert.Equal(t, int64(3), awards[1].Amount)
}

func TestAwardPotRemainderWrapsPastDealer(t *testing.T) {
	// dealer seat 5: seat 7 is two steps clockwise, seat 3 is seven
	awards := AwardPot(SidePot{Amount: 9}, []int{3, 7}, 5, 9)
	require.Len(t, awards, 2)
	assert.Equal(t, 7, awards[0].SeatIndex)
	assert.Equal(t, int64(5), awards[0].Amount)
	assert.Equal(t, 3, awards[1].SeatIndex)
	assert.Equal(t, int64(4), awards[1].Amount)
}

func TestAwardPotThreeWayWithRemainder(t *testing.T) {
	awards := AwardPot(SidePot{Amount: 8}, []int{1, 2, 3}, 0, 9)
	require.Len(t, awards, 3)
	var total int64
	for _, a := range awards {
		total += a.Amount
		assert.GreaterOrEqual(t, a.Amount, int64(2))
	}
	assert.Equal(t, int64(8), total)
	assert.Equal(t, int64(3), awards[0].Amount)
}

func TestAwardPotConservesMoney(t *testing.T) {
	for amount := int64(1); amount <= 20; amount++ {
		for _, winners := range [][]int{{0}, {1, 4}, {2, 5, 8}} {
			awards := AwardPot(SidePot{Amount: amount}, winners, 3, 9)
			var total int64
			for _, a := range awards {
				total += a.Amount
			}
			assert.Equal(t, amount, total)
		}
	}
}
