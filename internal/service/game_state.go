package service

import (
	"sort"

	"github.com/google/uuid"

	"holdem/internal/model"
)

// GameState is the live, actor-owned state of one game: the persisted rows
// plus the in-memory deck. All mutation happens on the owning coordinator
// goroutine; everything else sees projected snapshots.
type GameState struct {
	Game  *model.Game
	Seats []*model.PlayerGame
	Deck  *model.Deck
}

// NewGameState wraps loaded rows, ordering seats by index.
func NewGameState(game *model.Game, seats []*model.PlayerGame) *GameState {
	sort.Slice(seats, func(i, j int) bool { return seats[i].SeatIndex < seats[j].SeatIndex })
	return &GameState{Game: game, Seats: seats}
}

// RebuildDeck reconstructs the hand's deck from the persisted seed and
// cursor, used when an actor restarts mid-hand.
func (gs *GameState) RebuildDeck() error {
	if gs.Game.HandSeed == 0 {
		return nil
	}
	deck := model.NewDeck(gs.Game.HandSeed)
	if err := deck.Advance(gs.Game.DeckCursor); err != nil {
		return err
	}
	gs.Deck = deck
	return nil
}

// SeatAt returns the seat at the given index, or nil.
func (gs *GameState) SeatAt(idx int) *model.PlayerGame {
	for _, s := range gs.Seats {
		if s.SeatIndex == idx {
			return s
		}
	}
	return nil
}

// SeatOf returns the seat held by the given player, or nil.
func (gs *GameState) SeatOf(playerID uuid.UUID) *model.PlayerGame {
	for _, s := range gs.Seats {
		if s.PlayerID == playerID {
			return s
		}
	}
	return nil
}

// activeSeats are seats still in the current hand (not folded, not out).
func (gs *GameState) activeSeats() []*model.PlayerGame {
	out := make([]*model.PlayerGame, 0, len(gs.Seats))
	for _, s := range gs.Seats {
		if s.IsActive {
			out = append(out, s)
		}
	}
	return out
}

// actionableSeats are active seats that still have chips behind, i.e. the
// seats that can be asked to act. All-in seats are skipped.
func (gs *GameState) actionableSeats() []*model.PlayerGame {
	out := make([]*model.PlayerGame, 0, len(gs.Seats))
	for _, s := range gs.Seats {
		if s.IsActive && s.Stack > 0 {
			out = append(out, s)
		}
	}
	return out
}

// dealtInSeats are the seats a new hand deals to.
func (gs *GameState) dealtInSeats() []*model.PlayerGame {
	out := make([]*model.PlayerGame, 0, len(gs.Seats))
	for _, s := range gs.Seats {
		if !s.CashedOut && !s.SittingOut && s.Stack > 0 {
			out = append(out, s)
		}
	}
	return out
}

// seatedSeats are all seats that have not cashed out.
func (gs *GameState) seatedSeats() []*model.PlayerGame {
	out := make([]*model.PlayerGame, 0, len(gs.Seats))
	for _, s := range gs.Seats {
		if !s.CashedOut {
			out = append(out, s)
		}
	}
	return out
}

// nextSeat scans clockwise from (but excluding) fromSeat and returns the
// first seat accepted by keep, or nil after a full lap.
func (gs *GameState) nextSeat(fromSeat int, keep func(*model.PlayerGame) bool) *model.PlayerGame {
	max := gs.Game.Table.MaxSeats
	if max == 0 {
		max = model.MaxSeatsDefault
	}
	for step := 1; step <= max; step++ {
		idx := (fromSeat + step + max) % max
		if s := gs.SeatAt(idx); s != nil && keep(s) {
			return s
		}
	}
	return nil
}

// isBettingPhase reports whether seats act in the current phase.
func (gs *GameState) isBettingPhase() bool {
	switch gs.Game.Phase {
	case model.PhasePreflop, model.PhaseFlop, model.PhaseTurn, model.PhaseRiver:
		return true
	}
	return false
}
