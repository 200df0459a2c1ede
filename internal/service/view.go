package service

import (
	"encoding/json"

	"github.com/google/uuid"

	"holdem/internal/model"
)

// SeatView is one seat as a given viewer may see it.
type SeatView struct {
	SeatIndex        int      `json:"seat_index"`
	PlayerID         string   `json:"player_id"`
	Username         string   `json:"username"`
	Stack            int64    `json:"stack"`
	CurrentBet       int64    `json:"current_bet"`
	TotalBetThisHand int64    `json:"total_bet_this_hand"`
	HoleCards        []string `json:"hole_cards"`
	IsActive         bool     `json:"is_active"`
	CashedOut        bool     `json:"cashed_out"`
	SittingOut       bool     `json:"sitting_out"`
	ReadyForNextHand bool     `json:"ready_for_next_hand"`
	FinalStack       *int64   `json:"final_stack,omitempty"`
}

// GameView is the snapshot a client receives: the authoritative state with
// the card-privacy filter applied for one viewer.
type GameView struct {
	ID              string          `json:"id"`
	TableID         string          `json:"table_id"`
	TableName       string          `json:"table_name"`
	MaxSeats        int             `json:"max_seats"`
	SmallBlind      int64           `json:"small_blind"`
	BigBlind        int64           `json:"big_blind"`
	MinBuyIn        int64           `json:"min_buy_in"`
	MaxBuyIn        int64           `json:"max_buy_in"`
	Status          string          `json:"status"`
	Phase           string          `json:"phase"`
	Pot             int64           `json:"pot"`
	CurrentBet      int64           `json:"current_bet"`
	DealerSeat      int             `json:"dealer_seat"`
	CurrentTurnSeat int             `json:"current_turn_seat"`
	HandCount       int             `json:"hand_count"`
	CommunityCards  []string        `json:"community_cards"`
	Seats           []SeatView      `json:"seats"`
	YourSeat        int             `json:"your_seat"`
	WinnerInfo      json.RawMessage `json:"winner_info,omitempty"`
	GameSummary     json.RawMessage `json:"game_summary,omitempty"`
}

// BuildView projects the state for one viewer. Hole cards of other seats
// are emptied unless that seat showed down in the last completed hand: the
// winner info records every showdown-eligible seat, and those cards stay
// public until the next hand clears it.
func BuildView(gs *GameState, viewerID uuid.UUID) *GameView {
	game := gs.Game
	view := &GameView{
		ID:              game.ID.String(),
		TableID:         game.TableID.String(),
		TableName:       game.Table.Name,
		MaxSeats:        game.Table.MaxSeats,
		SmallBlind:      game.Table.SmallBlind,
		BigBlind:        game.Table.BigBlind,
		MinBuyIn:        game.Table.MinBuyIn,
		MaxBuyIn:        game.Table.MaxBuyIn,
		Status:          game.Status,
		Phase:           game.Phase,
		Pot:             game.Pot,
		CurrentBet:      game.CurrentBet,
		DealerSeat:      game.DealerSeat,
		CurrentTurnSeat: game.CurrentTurnSeat,
		HandCount:       game.HandCount,
		CommunityCards:  model.CardStrings(game.Community()),
		YourSeat:        model.NoSeat,
		WinnerInfo:      json.RawMessage(game.WinnerInfo),
		GameSummary:     json.RawMessage(game.GameSummary),
	}
	shown := shownDownSeats(game.WinnerInfo)
	for _, seat := range gs.Seats {
		sv := SeatView{
			SeatIndex:        seat.SeatIndex,
			PlayerID:         seat.PlayerID.String(),
			Username:         seat.Player.Username,
			Stack:            seat.Stack,
			CurrentBet:       seat.CurrentBet,
			TotalBetThisHand: seat.TotalBetThisHand,
			HoleCards:        []string{},
			IsActive:         seat.IsActive,
			CashedOut:        seat.CashedOut,
			SittingOut:       seat.SittingOut,
			ReadyForNextHand: seat.ReadyForNextHand,
			FinalStack:       seat.FinalStack,
		}
		if seat.PlayerID == viewerID || shown[seat.SeatIndex] {
			sv.HoleCards = model.CardStrings(seat.Hole())
		}
		if seat.PlayerID == viewerID {
			view.YourSeat = seat.SeatIndex
		}
		view.Seats = append(view.Seats, sv)
	}
	return view
}

// shownDownSeats decodes which seats revealed at the last showdown from the
// stored winner info; empty between showdowns and after a fold-through.
func shownDownSeats(raw []byte) map[int]bool {
	if len(raw) == 0 {
		return nil
	}
	var info model.WinnerInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil
	}
	shown := make(map[int]bool, len(info.ShownDown))
	for _, reveal := range info.ShownDown {
		shown[reveal.SeatIndex] = true
	}
	return shown
}
