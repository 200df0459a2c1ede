package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Game status values.
const (
	StatusWaiting  = "WAITING"
	StatusPlaying  = "PLAYING"
	StatusFinished = "FINISHED"
	// StatusFaulted marks a game whose hand was aborted on an invariant
	// violation and needs operator attention. The last committed snapshot
	// stays authoritative.
	StatusFaulted = "FAULTED"
)

// Hand phase values.
const (
	PhaseWaitingForPlayers = "WAITING_FOR_PLAYERS"
	PhasePreflop           = "PREFLOP"
	PhaseFlop              = "FLOP"
	PhaseTurn              = "TURN"
	PhaseRiver             = "RIVER"
	PhaseShowdown          = "SHOWDOWN"
)

// Action types.
const (
	ActionFold  = "FOLD"
	ActionCheck = "CHECK"
	ActionCall  = "CALL"
	ActionBet   = "BET"
	ActionRaise = "RAISE"
	ActionAllIn = "ALL_IN"
)

// NoSeat marks an unset seat reference (dealer, turn, aggressor).
const NoSeat = -1

// MaxSeatsDefault is used when a table row carries no seat count.
const MaxSeatsDefault = 9

// Player is the identity stub: a registered user with a bankroll and the
// opaque bearer token the API and event stream authenticate with.
type Player struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Username  string    `json:"username" gorm:"uniqueIndex;not null;size:50"`
	Token     string    `json:"-" gorm:"uniqueIndex;not null;size:64"`
	Bankroll  int64     `json:"bankroll" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Table is the cash-game configuration. Money is int64 minor units
// throughout; there are no floats anywhere in the engine.
type Table struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Name       string    `json:"name" gorm:"not null;size:100"`
	MaxSeats   int       `json:"max_seats" gorm:"not null;default:9"`
	SmallBlind int64     `json:"small_blind" gorm:"not null"`
	BigBlind   int64     `json:"big_blind" gorm:"not null"`
	MinBuyIn   int64     `json:"min_buy_in" gorm:"not null"`
	MaxBuyIn   int64     `json:"max_buy_in" gorm:"not null"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// Game is one table session: a sequence of hands played until everyone has
// cashed out. It exclusively owns its seats, deck, community cards and
// action log.
type Game struct {
	ID      uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	TableID uuid.UUID `json:"table_id" gorm:"type:uuid;not null;index"`
	Table   Table     `json:"table" gorm:"foreignKey:TableID"`

	Status string `json:"status" gorm:"not null;size:20;index"`
	Phase  string `json:"phase" gorm:"not null;size:20"`

	Pot                int64 `json:"pot" gorm:"not null;default:0"`
	CurrentBet         int64 `json:"current_bet" gorm:"not null;default:0"`
	LastRaiseIncrement int64 `json:"-" gorm:"not null;default:0"`

	DealerSeat        int `json:"dealer_seat" gorm:"not null;default:-1"`
	CurrentTurnSeat   int `json:"current_turn_seat" gorm:"not null;default:-1"`
	LastAggressorSeat int `json:"-" gorm:"not null;default:-1"`

	HandCount int   `json:"hand_count" gorm:"not null;default:0"`
	HandSeed  int64 `json:"-" gorm:"not null;default:0"`
	// DeckCursor mirrors the in-memory deck position so the deck can be
	// rebuilt from HandSeed after a restart.
	DeckCursor int   `json:"-" gorm:"not null;default:0"`
	ActionSeq  int64 `json:"-" gorm:"not null;default:0"`

	CommunityCards datatypes.JSON `json:"community_cards" gorm:"type:json"`
	WinnerInfo     datatypes.JSON `json:"winner_info,omitempty" gorm:"type:json"`
	GameSummary    datatypes.JSON `json:"game_summary,omitempty" gorm:"type:json"`
	SummarySent    bool           `json:"-" gorm:"not null;default:false"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	community []Card `gorm:"-"`
}

// PlayerGame is one seat at a game for its whole lifetime, spectator phase
// included.
type PlayerGame struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	GameID   uuid.UUID `json:"game_id" gorm:"type:uuid;not null;uniqueIndex:idx_game_seat,priority:1;index:idx_game_player,priority:1"`
	PlayerID uuid.UUID `json:"player_id" gorm:"type:uuid;not null;index:idx_game_player,priority:2"`
	Player   Player    `json:"player" gorm:"foreignKey:PlayerID"`

	SeatIndex int `json:"seat_index" gorm:"not null;uniqueIndex:idx_game_seat,priority:2"`

	Stack            int64 `json:"stack" gorm:"not null"`
	StartingStack    int64 `json:"starting_stack" gorm:"not null"`
	CurrentBet       int64 `json:"current_bet" gorm:"not null;default:0"`
	TotalBetThisHand int64 `json:"total_bet_this_hand" gorm:"not null;default:0"`

	HoleCards datatypes.JSON `json:"hole_cards" gorm:"type:json"`

	IsActive         bool `json:"is_active" gorm:"not null;default:false"`
	CashedOut        bool `json:"cashed_out" gorm:"not null;default:false"`
	ReadyForNextHand bool `json:"ready_for_next_hand" gorm:"not null;default:false"`
	// SittingOut seats joined mid-hand (or missed a ready deadline) and are
	// skipped until the next hand they are dealt into.
	SittingOut bool `json:"sitting_out" gorm:"not null;default:false"`
	HasActed   bool `json:"-" gorm:"not null;default:false"`
	// RaiseCapped is set on seats that had already matched the bet when a
	// short all-in raise came in: they may call or fold but not re-raise.
	RaiseCapped bool `json:"-" gorm:"not null;default:false"`

	FinalStack *int64 `json:"final_stack,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	hole []Card `gorm:"-"`
}

// GameAction is one append-only log row per accepted action.
type GameAction struct {
	ID         uint      `json:"-" gorm:"primaryKey;autoIncrement"`
	GameID     uuid.UUID `json:"game_id" gorm:"type:uuid;not null;uniqueIndex:idx_game_seq,priority:1"`
	Sequence   int64     `json:"sequence" gorm:"not null;uniqueIndex:idx_game_seq,priority:2"`
	SeatIndex  int       `json:"seat_index" gorm:"not null"`
	ActionType string    `json:"action_type" gorm:"not null;size:10"`
	Amount     int64     `json:"amount" gorm:"not null;default:0"`
	Phase      string    `json:"phase" gorm:"not null;size:20"`
	HandNumber int       `json:"hand_number" gorm:"not null"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// HandHistory is the immutable record of one completed hand.
type HandHistory struct {
	ID             uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	GameID         uuid.UUID      `json:"game_id" gorm:"type:uuid;not null;uniqueIndex:idx_game_hand,priority:1"`
	HandNumber     int            `json:"hand_number" gorm:"not null;uniqueIndex:idx_game_hand,priority:2"`
	DealerSeat     int            `json:"dealer_seat" gorm:"not null"`
	CommunityCards datatypes.JSON `json:"community_cards" gorm:"type:json"`
	PotTotal       int64          `json:"pot_total" gorm:"not null"`
	WinnerInfo     datatypes.JSON `json:"winner_info" gorm:"type:json"`
	Contributions  datatypes.JSON `json:"contributions" gorm:"type:json"`
	CreatedAt      time.Time      `json:"created_at" gorm:"autoCreateTime"`
}

// SetCommunity replaces the community cards, keeping the stored JSON column
// in sync with the decoded slice the engine works on.
func (g *Game) SetCommunity(cards []Card) {
	g.community = cards
	raw, _ := json.Marshal(CardStrings(cards))
	g.CommunityCards = raw
}

// Community returns the decoded community cards.
func (g *Game) Community() []Card {
	if g.community == nil && len(g.CommunityCards) > 0 {
		var ss []string
		if err := json.Unmarshal(g.CommunityCards, &ss); err == nil {
			g.community, _ = ParseCards(ss)
		}
	}
	return g.community
}

// SetHole replaces a seat's hole cards, keeping the stored column in sync.
func (pg *PlayerGame) SetHole(cards []Card) {
	pg.hole = cards
	raw, _ := json.Marshal(CardStrings(cards))
	pg.HoleCards = raw
}

// Hole returns the decoded hole cards; empty between hands.
func (pg *PlayerGame) Hole() []Card {
	if pg.hole == nil && len(pg.HoleCards) > 0 {
		var ss []string
		if err := json.Unmarshal(pg.HoleCards, &ss); err == nil {
			pg.hole, _ = ParseCards(ss)
		}
	}
	return pg.hole
}
