package service

import (
	"encoding/json"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"holdem/internal/model"
)

// LifecycleService owns the seat lifecycle around the hands: joining,
// readiness, cash-out, buy-back and the final game summary.
type LifecycleService struct {
	log *zap.Logger
}

func NewLifecycleService(log *zap.Logger) *LifecycleService {
	return &LifecycleService{log: log}
}

// Join seats a player with the given buy-in. Joining while a hand is running
// parks the seat in sit-out until the next hand. The buy-in is debited from
// the player's bankroll here; the caller persists the player row in the same
// transaction as the seat.
func (s *LifecycleService) Join(gs *GameState, player *model.Player, buyIn int64) (*model.PlayerGame, error) {
	if gs.Game.Status == model.StatusFinished || gs.Game.Status == model.StatusFaulted {
		return nil, model.Errorf(model.KindGameNotFound, "game is %s", gs.Game.Status)
	}
	if gs.SeatOf(player.ID) != nil {
		return nil, model.Errorf(model.KindInvalidAction, "player already seated")
	}
	table := gs.Game.Table
	if buyIn < table.MinBuyIn || buyIn > table.MaxBuyIn {
		return nil, model.Errorf(model.KindBuyInOutOfRange, "buy-in %d outside [%d, %d]", buyIn, table.MinBuyIn, table.MaxBuyIn)
	}
	if player.Bankroll < buyIn {
		return nil, model.Errorf(model.KindBuyInOutOfRange, "bankroll %d below buy-in %d", player.Bankroll, buyIn)
	}
	if len(gs.Seats) >= table.MaxSeats {
		return nil, model.Errorf(model.KindTableFull, "all %d seats taken", table.MaxSeats)
	}

	taken := map[int]bool{}
	for _, seat := range gs.Seats {
		taken[seat.SeatIndex] = true
	}
	idx := 0
	for taken[idx] {
		idx++
	}

	seat := &model.PlayerGame{
		ID:            uuid.New(),
		GameID:        gs.Game.ID,
		PlayerID:      player.ID,
		Player:        *player,
		SeatIndex:     idx,
		Stack:         buyIn,
		StartingStack: buyIn,
		SittingOut:    gs.Game.Status == model.StatusPlaying && gs.isBettingPhase(),
	}
	gs.Seats = append(gs.Seats, seat)
	sort.Slice(gs.Seats, func(i, j int) bool { return gs.Seats[i].SeatIndex < gs.Seats[j].SeatIndex })

	player.Bankroll -= buyIn

	s.log.Info("player joined",
		zap.String("game_id", gs.Game.ID.String()),
		zap.String("player_id", player.ID.String()),
		zap.Int("seat", idx),
		zap.Int64("buy_in", buyIn))
	return seat, nil
}

// Ready records a seat's between-hands ready signal. Idempotent per hand:
// repeating it is a no-op.
func (s *LifecycleService) Ready(gs *GameState, playerID uuid.UUID) error {
	seat := gs.SeatOf(playerID)
	if seat == nil {
		return model.Errorf(model.KindGameNotFound, "player has no seat in this game")
	}
	if seat.CashedOut {
		return model.Errorf(model.KindAlreadyCashedOut, "seat %d has cashed out", seat.SeatIndex)
	}
	if gs.Game.Status == model.StatusPlaying && gs.isBettingPhase() {
		return model.Errorf(model.KindInvalidAction, "hand in progress")
	}
	seat.ReadyForNextHand = true
	return nil
}

// CashOut freezes a seat's result: the stack becomes final, the seat turns
// spectator but keeps receiving broadcasts. Idempotent.
func (s *LifecycleService) CashOut(gs *GameState, playerID uuid.UUID) error {
	seat := gs.SeatOf(playerID)
	if seat == nil {
		return model.Errorf(model.KindGameNotFound, "player has no seat in this game")
	}
	if seat.CashedOut {
		return nil
	}
	if seat.IsActive && gs.isBettingPhase() {
		return model.Errorf(model.KindCashOutDuringHand, "finish the hand first")
	}
	final := seat.Stack
	seat.FinalStack = &final
	seat.CashedOut = true
	seat.IsActive = false
	seat.ReadyForNextHand = false

	s.log.Info("seat cashed out",
		zap.String("game_id", gs.Game.ID.String()),
		zap.Int("seat", seat.SeatIndex),
		zap.Int64("final_stack", final))
	return nil
}

// BuyBackIn returns a cashed-out seat to play from the next hand. The frozen
// stack is credited to the player's bankroll and the new buy-in debited here;
// the caller persists the player row. Idempotent in effect: a second call
// while already bought back fails NOT_CASHED_OUT without changing anything.
func (s *LifecycleService) BuyBackIn(gs *GameState, player *model.Player, amount int64) error {
	seat := gs.SeatOf(player.ID)
	if seat == nil {
		return model.Errorf(model.KindGameNotFound, "player has no seat in this game")
	}
	if !seat.CashedOut {
		return model.Errorf(model.KindNotCashedOut, "seat %d is not cashed out", seat.SeatIndex)
	}
	table := gs.Game.Table
	if amount < table.MinBuyIn || amount > table.MaxBuyIn {
		return model.Errorf(model.KindBuyInOutOfRange, "buy-in %d outside [%d, %d]", amount, table.MinBuyIn, table.MaxBuyIn)
	}
	if player.Bankroll < amount {
		return model.Errorf(model.KindBuyInOutOfRange, "bankroll %d below buy-in %d", player.Bankroll, amount)
	}
	// the frozen result goes back to the bankroll before the new buy-in
	if seat.FinalStack != nil {
		player.Bankroll += *seat.FinalStack
	}
	player.Bankroll -= amount

	seat.CashedOut = false
	seat.FinalStack = nil
	seat.Stack = amount
	seat.StartingStack += amount
	seat.SittingOut = gs.Game.Status == model.StatusPlaying && gs.isBettingPhase()
	return nil
}

// Leave releases a cashed-out seat and credits the frozen stack to the
// bankroll.
func (s *LifecycleService) Leave(gs *GameState, player *model.Player) error {
	seat := gs.SeatOf(player.ID)
	if seat == nil {
		return model.Errorf(model.KindGameNotFound, "player has no seat in this game")
	}
	if !seat.CashedOut {
		return model.Errorf(model.KindNotCashedOut, "cash out before leaving")
	}
	if seat.FinalStack != nil {
		player.Bankroll += *seat.FinalStack
		seat.FinalStack = nil
	}
	seat.Stack = 0
	for i, other := range gs.Seats {
		if other == seat {
			gs.Seats = append(gs.Seats[:i], gs.Seats[i+1:]...)
			break
		}
	}
	s.log.Info("seat released",
		zap.String("game_id", gs.Game.ID.String()),
		zap.Int("seat", seat.SeatIndex))
	return nil
}

// MaybeFinishGame transitions to FINISHED once every seat has cashed out and
// computes the summary. Returns true exactly once, on the transition that
// should broadcast the summary notification.
func (s *LifecycleService) MaybeFinishGame(gs *GameState) (bool, error) {
	game := gs.Game
	if game.Status != model.StatusPlaying || game.SummarySent {
		return false, nil
	}
	if len(gs.Seats) == 0 {
		return false, nil
	}
	for _, seat := range gs.Seats {
		if !seat.CashedOut {
			return false, nil
		}
	}

	summary := model.GameSummary{
		GameID:    game.ID.String(),
		HandCount: game.HandCount,
	}
	for _, seat := range gs.Seats {
		final := seat.Stack
		if seat.FinalStack != nil {
			final = *seat.FinalStack
		}
		summary.Rows = append(summary.Rows, model.SummaryRow{
			SeatIndex:     seat.SeatIndex,
			PlayerID:      seat.PlayerID.String(),
			Username:      seat.Player.Username,
			StartingStack: seat.StartingStack,
			FinalStack:    final,
			WinLoss:       final - seat.StartingStack,
		})
	}
	sort.Slice(summary.Rows, func(i, j int) bool {
		return summary.Rows[i].WinLoss > summary.Rows[j].WinLoss
	})

	raw, _ := json.Marshal(summary)
	game.GameSummary = raw
	game.Status = model.StatusFinished
	game.Phase = model.PhaseWaitingForPlayers
	game.SummarySent = true

	s.log.Info("game finished",
		zap.String("game_id", game.ID.String()),
		zap.Int("hands", game.HandCount))
	return true, nil
}
