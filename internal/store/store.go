package store

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"holdem/internal/model"
)

// Store wraps the database. Any transactional backend works; sqlite keeps
// development and tests hermetic.
type Store struct {
	db *gorm.DB
}

// Open connects and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&model.Player{},
		&model.Table{},
		&model.Game{},
		&model.PlayerGame{},
		&model.GameAction{},
		&model.HandHistory{},
	); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// DB exposes the handle for read-side queries.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// CreatePlayer registers a player with a fresh bearer token.
func (s *Store) CreatePlayer(username string, bankroll int64) (*model.Player, error) {
	p := &model.Player{
		ID:       uuid.New(),
		Username: username,
		Token:    uuid.NewString(),
		Bankroll: bankroll,
	}
	if err := s.db.Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// PlayerByToken resolves a bearer token; nil when unknown.
func (s *Store) PlayerByToken(token string) (*model.Player, error) {
	var p model.Player
	err := s.db.Where("token = ?", token).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateTable stores a new table configuration.
func (s *Store) CreateTable(t *model.Table) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return s.db.Create(t).Error
}

// Tables lists every table for the lobby.
func (s *Store) Tables() ([]model.Table, error) {
	var out []model.Table
	err := s.db.Order("created_at").Find(&out).Error
	return out, err
}

// TableByID returns a table, or nil.
func (s *Store) TableByID(id uuid.UUID) (*model.Table, error) {
	var t model.Table
	err := s.db.First(&t, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// OpenGameForTable returns the table's current joinable game, creating one
// when none exists.
func (s *Store) OpenGameForTable(tableID uuid.UUID) (*model.Game, error) {
	table, err := s.TableByID(tableID)
	if err != nil {
		return nil, err
	}
	if table == nil {
		return nil, model.Errorf(model.KindGameNotFound, "table %s not found", tableID)
	}
	var game model.Game
	err = s.db.Preload("Table").
		Where("table_id = ? AND status IN ?", tableID, []string{model.StatusWaiting, model.StatusPlaying}).
		Order("created_at").
		First(&game).Error
	if err == nil {
		return &game, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	game = model.Game{
		ID:              uuid.New(),
		TableID:         tableID,
		Table:           *table,
		Status:          model.StatusWaiting,
		Phase:           model.PhaseWaitingForPlayers,
		DealerSeat:      model.NoSeat,
		CurrentTurnSeat: model.NoSeat,
	}
	if err := s.db.Omit(clause.Associations).Create(&game).Error; err != nil {
		return nil, err
	}
	return &game, nil
}

// LoadState reads a game and its seats; the coordinator's authoritative
// in-memory state starts from here.
func (s *Store) LoadState(gameID uuid.UUID) (*model.Game, []*model.PlayerGame, error) {
	var game model.Game
	err := s.db.Preload("Table").First(&game, "id = ?", gameID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, model.Errorf(model.KindGameNotFound, "game %s not found", gameID)
	}
	if err != nil {
		return nil, nil, err
	}
	var seats []*model.PlayerGame
	if err := s.db.Preload("Player").Where("game_id = ?", gameID).Order("seat_index").Find(&seats).Error; err != nil {
		return nil, nil, err
	}
	return &game, seats, nil
}

// SaveSet is everything one accepted command may need to persist atomically.
type SaveSet struct {
	Game        *model.Game
	Seats       []*model.PlayerGame
	Players     []*model.Player
	Action      *model.GameAction
	History     *model.HandHistory
	DeleteSeats []uuid.UUID
}

// Commit writes a SaveSet in one transaction. Either every row lands or none
// does; no partial state is ever observable.
func (s *Store) Commit(set SaveSet) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if set.Game != nil {
			if err := tx.Omit(clause.Associations).Save(set.Game).Error; err != nil {
				return err
			}
		}
		for _, seat := range set.Seats {
			if err := tx.Omit(clause.Associations).Save(seat).Error; err != nil {
				return err
			}
		}
		for _, p := range set.Players {
			if err := tx.Omit(clause.Associations).Save(p).Error; err != nil {
				return err
			}
		}
		if set.Action != nil {
			if err := tx.Create(set.Action).Error; err != nil {
				return err
			}
		}
		if set.History != nil {
			if err := tx.Create(set.History).Error; err != nil {
				return err
			}
		}
		for _, id := range set.DeleteSeats {
			if err := tx.Delete(&model.PlayerGame{}, "id = ?", id).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// HandHistories returns a game's completed hands, newest first.
func (s *Store) HandHistories(gameID uuid.UUID) ([]model.HandHistory, error) {
	var out []model.HandHistory
	err := s.db.Where("game_id = ?", gameID).Order("hand_number DESC").Find(&out).Error
	return out, err
}

// Actions returns the append-only action log in order.
func (s *Store) Actions(gameID uuid.UUID) ([]model.GameAction, error) {
	var out []model.GameAction
	err := s.db.Where("game_id = ?", gameID).Order("sequence").Find(&out).Error
	return out, err
}

// SeatExists reports whether a player holds a seat in a game; subscriptions
// authorize against this.
func (s *Store) SeatExists(gameID, playerID uuid.UUID) (bool, error) {
	var n int64
	err := s.db.Model(&model.PlayerGame{}).
		Where("game_id = ? AND player_id = ?", gameID, playerID).
		Count(&n).Error
	return n > 0, err
}

// GameExists reports whether a game row exists at all.
func (s *Store) GameExists(gameID uuid.UUID) (bool, error) {
	var n int64
	err := s.db.Model(&model.Game{}).Where("id = ?", gameID).Count(&n).Error
	return n > 0, err
}
