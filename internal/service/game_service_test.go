package service

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"holdem/internal/model"
)

func newTestState(t *testing.T, stacks []int64, sb, bb int64) *GameState {
	t.Helper()
	table := model.Table{
		ID:         uuid.New(),
		Name:       "test",
		MaxSeats:   9,
		SmallBlind: sb,
		BigBlind:   bb,
		MinBuyIn:   10 * bb,
		MaxBuyIn:   100 * bb,
	}
	game := &model.Game{
		ID:              uuid.New(),
		TableID:         table.ID,
		Table:           table,
		Status:          model.StatusWaiting,
		Phase:           model.PhaseWaitingForPlayers,
		DealerSeat:      model.NoSeat,
		CurrentTurnSeat: model.NoSeat,
	}
	seats := make([]*model.PlayerGame, len(stacks))
	for i, stack := range stacks {
		pid := uuid.New()
		seats[i] = &model.PlayerGame{
			ID:            uuid.New(),
			GameID:        game.ID,
			PlayerID:      pid,
			Player:        model.Player{ID: pid, Username: string(rune('a' + i))},
			SeatIndex:     i,
			Stack:         stack,
			StartingStack: stack,
		}
	}
	return NewGameState(game, seats)
}

func testService() *GameService {
	return NewGameService(zap.NewNop())
}

// act applies one action for a seat and advances the machine.
func act(t *testing.T, svc *GameService, gs *GameState, seat int, action string, amount int64) *AdvanceResult {
	t.Helper()
	_, err := svc.ProcessAction(gs, gs.SeatAt(seat).PlayerID, action, amount)
	require.NoError(t, err)
	res, err := svc.Advance(gs)
	require.NoError(t, err)
	return res
}

func winnerInfo(t *testing.T, gs *GameState) model.WinnerInfo {
	t.Helper()
	var info model.WinnerInfo
	require.NoError(t, json.Unmarshal(gs.Game.WinnerInfo, &info))
	return info
}

func TestHeadsUpFoldThrough(t *testing.T) {
	svc := testService()
	gs := newTestState(t, []int64{100, 100}, 1, 2)
	require.NoError(t, svc.StartGame(gs))

	// heads-up: the dealer posts the small blind and acts first preflop
	assert.Equal(t, model.PhasePreflop, gs.Game.Phase)
	assert.Equal(t, 0, gs.Game.DealerSeat)
	assert.Equal(t, 0, gs.Game.CurrentTurnSeat)
	assert.Equal(t, int64(99), gs.SeatAt(0).Stack)
	assert.Equal(t, int64(98), gs.SeatAt(1).Stack)

	res := act(t, svc, gs, 0, model.ActionFold, 0)
	require.True(t, res.HandEnded)
	require.NotNil(t, res.History)

	assert.Equal(t, model.PhaseWaitingForPlayers, gs.Game.Phase)
	assert.Equal(t, int64(99), gs.SeatAt(0).Stack)
	assert.Equal(t, int64(101), gs.SeatAt(1).Stack)
	assert.Empty(t, gs.Game.Community())

	info := winnerInfo(t, gs)
	assert.Equal(t, model.ReasonAllFolded, info.Reason)
	assert.Equal(t, int64(3), info.PotTotal)
	require.Len(t, info.Pots, 1)
	assert.Equal(t, 1, info.Pots[0].Winners[0].SeatIndex)
}

func TestHeadsUpBigBlindActsFirstPostFlop(t *testing.T) {
	svc := testService()
	gs := newTestState(t, []int64{100, 100}, 1, 2)
	require.NoError(t, svc.StartGame(gs))

	act(t, svc, gs, 0, model.ActionCall, 0)
	assert.Equal(t, 1, gs.Game.CurrentTurnSeat, "big blind has the option")
	act(t, svc, gs, 1, model.ActionCheck, 0)

	assert.Equal(t, model.PhaseFlop, gs.Game.Phase)
	assert.Len(t, gs.Game.Community(), 3)
	assert.Equal(t, 1, gs.Game.CurrentTurnSeat, "big blind acts first post-flop")
}

func TestBigBlindOptionFiresOncePerPreflop(t *testing.T) {
	svc := testService()
	gs := newTestState(t, []int64{100, 100, 100}, 1, 2)
	require.NoError(t, svc.StartGame(gs))

	// dealer 0, SB 1, BB 2, UTG is the dealer's left of BB
	assert.Equal(t, 0, gs.Game.DealerSeat)
	assert.Equal(t, 0, gs.Game.CurrentTurnSeat)

	act(t, svc, gs, 0, model.ActionCall, 0)
	act(t, svc, gs, 1, model.ActionCall, 0)
	// everyone matched; the big blind still gets its option
	assert.Equal(t, model.PhasePreflop, gs.Game.Phase)
	assert.Equal(t, 2, gs.Game.CurrentTurnSeat)

	act(t, svc, gs, 2, model.ActionCheck, 0)
	assert.Equal(t, model.PhaseFlop, gs.Game.Phase)
	assert.Equal(t, int64(6), gs.Game.Pot)
	assert.Equal(t, 1, gs.Game.CurrentTurnSeat, "first active seat left of dealer")
}

func TestBigBlindOptionRaiseKeepsRoundOpen(t *testing.T) {
	svc := testService()
	gs := newTestState(t, []int64{100, 100, 100}, 1, 2)
	require.NoError(t, svc.StartGame(gs))

	act(t, svc, gs, 0, model.ActionCall, 0)
	act(t, svc, gs, 1, model.ActionCall, 0)
	act(t, svc, gs, 2, model.ActionRaise, 6)

	assert.Equal(t, model.PhasePreflop, gs.Game.Phase)
	assert.Equal(t, 2, gs.Game.LastAggressorSeat)
	assert.Equal(t, 0, gs.Game.CurrentTurnSeat)

	act(t, svc, gs, 0, model.ActionCall, 0)
	act(t, svc, gs, 1, model.ActionCall, 0)
	assert.Equal(t, model.PhaseFlop, gs.Game.Phase)
	assert.Equal(t, int64(18), gs.Game.Pot)
}

func TestCheckToShowdown(t *testing.T) {
	svc := testService()
	gs := newTestState(t, []int64{100, 100, 100}, 1, 2)
	require.NoError(t, svc.StartGame(gs))

	act(t, svc, gs, 0, model.ActionCall, 0)
	act(t, svc, gs, 1, model.ActionCall, 0)
	act(t, svc, gs, 2, model.ActionCheck, 0)

	for _, phase := range []string{model.PhaseFlop, model.PhaseTurn, model.PhaseRiver} {
		require.Equal(t, phase, gs.Game.Phase)
		act(t, svc, gs, 1, model.ActionCheck, 0)
		act(t, svc, gs, 2, model.ActionCheck, 0)
		if phase == model.PhaseRiver {
			// fix the cards before the closing check so the showdown is
			// deterministic: aces beat kings beat queen-high
			gs.SeatAt(0).SetHole(cards(t, "AS", "AH"))
			gs.SeatAt(1).SetHole(cards(t, "KS", "KH"))
			gs.SeatAt(2).SetHole(cards(t, "4C", "5C"))
			gs.Game.SetCommunity(cards(t, "2S", "7H", "9D", "JD", "QH"))
		}
		res := act(t, svc, gs, 0, model.ActionCheck, 0)
		if phase == model.PhaseRiver {
			require.True(t, res.HandEnded)
		}
	}

	assert.Equal(t, int64(104), gs.SeatAt(0).Stack)
	assert.Equal(t, int64(98), gs.SeatAt(1).Stack)
	assert.Equal(t, int64(98), gs.SeatAt(2).Stack)

	info := winnerInfo(t, gs)
	assert.Equal(t, model.ReasonShowdown, info.Reason)
	require.Len(t, info.Pots, 1)
	require.Len(t, info.Pots[0].Winners, 1)
	assert.Equal(t, 0, info.Pots[0].Winners[0].SeatIndex)
	assert.Equal(t, "One Pair", info.Pots[0].Winners[0].HandName)
	assert.Equal(t, int64(6), info.PotTotal)
	assert.Len(t, info.ShownDown, 3, "all three seats reached showdown")
}

func TestSidePotAllIn(t *testing.T) {
	svc := testService()
	gs := newTestState(t, []int64{50, 200, 200}, 1, 2)
	require.NoError(t, svc.StartGame(gs))

	// UTG shoves 50, small blind calls, big blind raises to 150, call
	act(t, svc, gs, 0, model.ActionAllIn, 0)
	act(t, svc, gs, 1, model.ActionCall, 0)
	act(t, svc, gs, 2, model.ActionRaise, 150)
	act(t, svc, gs, 1, model.ActionCall, 0)

	require.Equal(t, model.PhaseFlop, gs.Game.Phase)
	assert.Equal(t, int64(350), gs.Game.Pot)

	act(t, svc, gs, 1, model.ActionCheck, 0)
	act(t, svc, gs, 2, model.ActionCheck, 0)
	act(t, svc, gs, 1, model.ActionCheck, 0)
	act(t, svc, gs, 2, model.ActionCheck, 0)
	act(t, svc, gs, 1, model.ActionCheck, 0)

	// river: all-in seat best overall, middle hand second
	gs.SeatAt(0).SetHole(cards(t, "AS", "AH"))
	gs.SeatAt(1).SetHole(cards(t, "KS", "KH"))
	gs.SeatAt(2).SetHole(cards(t, "QS", "QH"))
	gs.Game.SetCommunity(cards(t, "2S", "3H", "7D", "8C", "JD"))

	res := act(t, svc, gs, 2, model.ActionCheck, 0)
	require.True(t, res.HandEnded)

	// main pot 150 to the short stack, side pot 200 to the kings
	assert.Equal(t, int64(150), gs.SeatAt(0).Stack)
	assert.Equal(t, int64(250), gs.SeatAt(1).Stack)
	assert.Equal(t, int64(50), gs.SeatAt(2).Stack)

	info := winnerInfo(t, gs)
	require.Len(t, info.Pots, 2)
	assert.Equal(t, int64(150), info.Pots[0].Amount)
	assert.Equal(t, 0, info.Pots[0].Winners[0].SeatIndex)
	assert.Equal(t, int64(200), info.Pots[1].Amount)
	assert.Equal(t, 1, info.Pots[1].Winners[0].SeatIndex)
	assert.Equal(t, []int{1, 2}, info.Pots[1].Eligible)

	// seat 2 won nothing but showed down, so its cards are on record
	require.Len(t, info.ShownDown, 3)
	shown := map[int][]string{}
	for _, reveal := range info.ShownDown {
		shown[reveal.SeatIndex] = reveal.HoleCards
	}
	assert.Equal(t, []string{"QS", "QH"}, shown[2])
}

func TestSplitPotRemainderGoesClockwiseFromDealer(t *testing.T) {
	svc := testService()
	gs := newTestState(t, []int64{10, 10, 10}, 1, 2)
	game := gs.Game
	game.Status = model.StatusPlaying
	game.Phase = model.PhaseRiver
	game.DealerSeat = 1
	game.HandCount = 1

	// seats 0 and 1 split a 7-chip pot playing the board; seat 2 folded
	// after one chip
	gs.SeatAt(0).IsActive = true
	gs.SeatAt(0).TotalBetThisHand = 3
	gs.SeatAt(0).SetHole(cards(t, "2H", "3D"))
	gs.SeatAt(1).IsActive = true
	gs.SeatAt(1).TotalBetThisHand = 3
	gs.SeatAt(1).SetHole(cards(t, "2D", "3H"))
	gs.SeatAt(2).IsActive = false
	gs.SeatAt(2).TotalBetThisHand = 1
	game.SetCommunity(cards(t, "AS", "KS", "QS", "JS", "TS"))

	history, err := svc.finishHand(gs, model.ReasonShowdown)
	require.NoError(t, err)
	require.NotNil(t, history)

	// clockwise from dealer 1: seat 2 (folded), then seat 0; the odd chips
	// land on seat 0
	assert.Equal(t, int64(14), gs.SeatAt(0).Stack)
	assert.Equal(t, int64(13), gs.SeatAt(1).Stack)
	assert.Equal(t, int64(10), gs.SeatAt(2).Stack)

	info := winnerInfo(t, gs)
	for _, p := range info.Pots {
		assert.Equal(t, "split", p.Type)
	}
}

func TestShortAllInCallDoesNotReopen(t *testing.T) {
	svc := testService()
	gs := newTestState(t, []int64{100, 6, 100}, 1, 2)
	require.NoError(t, svc.StartGame(gs))

	// UTG raises, the short small blind can only call all-in
	act(t, svc, gs, 0, model.ActionRaise, 10)
	act(t, svc, gs, 1, model.ActionAllIn, 0)
	assert.Equal(t, int64(0), gs.SeatAt(1).Stack)
	assert.Equal(t, int64(10), gs.Game.CurrentBet, "short call leaves the bet unchanged")

	res := act(t, svc, gs, 2, model.ActionFold, 0)
	require.False(t, res.HandEnded)
	// the raiser is not asked to act again
	assert.Equal(t, model.PhaseFlop, gs.Game.Phase)
}

func TestShortAllInRaiseDoesNotReopenMatchedSeats(t *testing.T) {
	svc := testService()
	gs := newTestState(t, []int64{100, 15, 100}, 1, 2)
	require.NoError(t, svc.StartGame(gs))

	act(t, svc, gs, 0, model.ActionRaise, 10)
	// small blind shoves to 15 total: above the bet but under a min-raise
	act(t, svc, gs, 1, model.ActionAllIn, 0)
	assert.Equal(t, int64(15), gs.Game.CurrentBet)
	act(t, svc, gs, 2, model.ActionFold, 0)

	// the original raiser may call the extra chips but not re-raise
	assert.Equal(t, 0, gs.Game.CurrentTurnSeat)
	_, err := svc.ProcessAction(gs, gs.SeatAt(0).PlayerID, model.ActionRaise, 40)
	require.Error(t, err)
	assert.Equal(t, model.KindInvalidAction, model.KindOf(err))

	res := act(t, svc, gs, 0, model.ActionCall, 0)
	require.False(t, res.HandEnded)
	assert.Equal(t, model.PhaseFlop, gs.Game.Phase)
}

func TestAllInBlindIsCapped(t *testing.T) {
	svc := testService()
	gs := newTestState(t, []int64{100, 100, 1}, 1, 2)
	require.NoError(t, svc.StartGame(gs))

	// big blind could only post one chip but the bet to match stays 2
	assert.Equal(t, int64(0), gs.SeatAt(2).Stack)
	assert.Equal(t, int64(2), gs.Game.CurrentBet)

	act(t, svc, gs, 0, model.ActionCall, 0)
	act(t, svc, gs, 1, model.ActionCall, 0)
	assert.Equal(t, model.PhaseFlop, gs.Game.Phase)
	assert.Equal(t, int64(5), gs.Game.Pot)
}

func TestAllInBoardRunsOut(t *testing.T) {
	svc := testService()
	gs := newTestState(t, []int64{30, 30}, 1, 2)
	require.NoError(t, svc.StartGame(gs))

	act(t, svc, gs, 0, model.ActionAllIn, 0)
	res := act(t, svc, gs, 1, model.ActionCall, 0)

	// nobody can act: the board runs out and the hand resolves
	require.True(t, res.HandEnded)
	assert.Equal(t, model.PhaseWaitingForPlayers, gs.Game.Phase)
	assert.Equal(t, int64(60), gs.SeatAt(0).Stack+gs.SeatAt(1).Stack)
	info := winnerInfo(t, gs)
	assert.Equal(t, int64(60), info.PotTotal)
}

func TestActionValidation(t *testing.T) {
	svc := testService()
	gs := newTestState(t, []int64{100, 100, 100}, 1, 2)
	require.NoError(t, svc.StartGame(gs))

	// not seat 1's turn
	_, err := svc.ProcessAction(gs, gs.SeatAt(1).PlayerID, model.ActionFold, 0)
	assert.Equal(t, model.KindNotYourTurn, model.KindOf(err))

	// check facing the big blind
	_, err = svc.ProcessAction(gs, gs.SeatAt(0).PlayerID, model.ActionCheck, 0)
	assert.Equal(t, model.KindCheckFacingBet, model.KindOf(err))

	// bet while a bet is outstanding
	_, err = svc.ProcessAction(gs, gs.SeatAt(0).PlayerID, model.ActionBet, 10)
	assert.Equal(t, model.KindInvalidAction, model.KindOf(err))

	// raise below the minimum
	_, err = svc.ProcessAction(gs, gs.SeatAt(0).PlayerID, model.ActionRaise, 3)
	assert.Equal(t, model.KindRaiseBelowMin, model.KindOf(err))

	// raise beyond the stack
	_, err = svc.ProcessAction(gs, gs.SeatAt(0).PlayerID, model.ActionRaise, 500)
	assert.Equal(t, model.KindInsufficientStack, model.KindOf(err))

	// unknown action
	_, err = svc.ProcessAction(gs, gs.SeatAt(0).PlayerID, "SPLASH", 0)
	assert.Equal(t, model.KindInvalidAction, model.KindOf(err))

	// nothing mutated by the rejections
	assert.Equal(t, int64(100), gs.SeatAt(0).Stack)
	assert.Equal(t, int64(3), gs.Game.Pot)
}

func TestBetBelowBigBlindRejectedPostFlop(t *testing.T) {
	svc := testService()
	gs := newTestState(t, []int64{100, 100}, 1, 2)
	require.NoError(t, svc.StartGame(gs))
	act(t, svc, gs, 0, model.ActionCall, 0)
	act(t, svc, gs, 1, model.ActionCheck, 0)
	require.Equal(t, model.PhaseFlop, gs.Game.Phase)

	_, err := svc.ProcessAction(gs, gs.SeatAt(1).PlayerID, model.ActionBet, 1)
	assert.Equal(t, model.KindBetBelowMin, model.KindOf(err))

	act(t, svc, gs, 1, model.ActionBet, 2)
	assert.Equal(t, int64(2), gs.Game.CurrentBet)
}

func TestDealerRotatesBetweenHands(t *testing.T) {
	svc := testService()
	gs := newTestState(t, []int64{100, 100, 100}, 1, 2)
	require.NoError(t, svc.StartGame(gs))
	require.Equal(t, 0, gs.Game.DealerSeat)

	act(t, svc, gs, 0, model.ActionFold, 0)
	res := act(t, svc, gs, 1, model.ActionFold, 0)
	require.True(t, res.HandEnded)

	for _, seat := range gs.Seats {
		seat.ReadyForNextHand = true
	}
	started, err := svc.TryStartNextHand(gs)
	require.NoError(t, err)
	require.True(t, started)

	assert.Equal(t, 1, gs.Game.DealerSeat)
	assert.Equal(t, 2, gs.Game.HandCount)
	assert.Equal(t, model.PhasePreflop, gs.Game.Phase)
	for _, seat := range gs.Seats {
		assert.False(t, seat.ReadyForNextHand)
		assert.Len(t, seat.Hole(), 2)
	}
}

func TestNextHandWaitsForEverySeat(t *testing.T) {
	svc := testService()
	gs := newTestState(t, []int64{100, 100}, 1, 2)
	require.NoError(t, svc.StartGame(gs))
	act(t, svc, gs, 0, model.ActionFold, 0)

	gs.SeatAt(0).ReadyForNextHand = true
	started, err := svc.TryStartNextHand(gs)
	require.NoError(t, err)
	assert.False(t, started)

	gs.SeatAt(1).ReadyForNextHand = true
	started, err = svc.TryStartNextHand(gs)
	require.NoError(t, err)
	assert.True(t, started)
}

func TestForceStartSitsOutUnreadySeats(t *testing.T) {
	svc := testService()
	gs := newTestState(t, []int64{100, 100, 100}, 1, 2)
	require.NoError(t, svc.StartGame(gs))
	act(t, svc, gs, 0, model.ActionFold, 0)
	act(t, svc, gs, 1, model.ActionFold, 0)
	require.Equal(t, model.PhaseWaitingForPlayers, gs.Game.Phase)

	gs.SeatAt(0).ReadyForNextHand = true
	gs.SeatAt(1).ReadyForNextHand = true

	started, err := svc.ForceStartNextHand(gs)
	require.NoError(t, err)
	require.True(t, started)
	assert.True(t, gs.SeatAt(0).IsActive)
	assert.True(t, gs.SeatAt(1).IsActive)
	assert.False(t, gs.SeatAt(2).IsActive, "unready seat sits the hand out")
}

func TestMoneyConservedAcrossHand(t *testing.T) {
	svc := testService()
	gs := newTestState(t, []int64{100, 100, 100}, 1, 2)
	require.NoError(t, svc.StartGame(gs))

	act(t, svc, gs, 0, model.ActionRaise, 8)
	act(t, svc, gs, 1, model.ActionCall, 0)
	act(t, svc, gs, 2, model.ActionFold, 0)
	act(t, svc, gs, 1, model.ActionCheck, 0)
	act(t, svc, gs, 0, model.ActionBet, 10)
	res := act(t, svc, gs, 1, model.ActionFold, 0)
	require.True(t, res.HandEnded)

	var total int64
	for _, seat := range gs.Seats {
		require.GreaterOrEqual(t, seat.Stack, int64(0))
		total += seat.Stack
	}
	assert.Equal(t, int64(300), total)

	info := winnerInfo(t, gs)
	var change int64
	for _, d := range info.MoneyChange {
		change += d
	}
	assert.Zero(t, change, "per-seat changes sum to zero")
}
