package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"holdem/internal/model"
	"holdem/internal/service"
	"holdem/internal/store"
)

// TableController is the thin lobby surface: create, list, join.
type TableController struct {
	coord *service.Coordinator
	store *store.Store
}

func NewTableController(coord *service.Coordinator, st *store.Store) *TableController {
	return &TableController{coord: coord, store: st}
}

func (tc *TableController) Register(r gin.IRoutes) {
	r.POST("/tables", tc.Create)
	r.GET("/tables", tc.List)
	r.POST("/tables/:id/join_table", tc.Join)
}

type createTableRequest struct {
	Name       string `json:"name" binding:"required"`
	MaxSeats   int    `json:"max_seats"`
	SmallBlind int64  `json:"small_blind" binding:"required"`
	BigBlind   int64  `json:"big_blind" binding:"required"`
	MinBuyIn   int64  `json:"min_buy_in"`
	MaxBuyIn   int64  `json:"max_buy_in"`
}

func (tc *TableController) Create(c *gin.Context) {
	var req createTableRequest
	if err := c.BindJSON(&req); err != nil {
		respondErr(c, model.Errorf(model.KindInvalidAction, "malformed table body"))
		return
	}
	if req.MaxSeats == 0 {
		req.MaxSeats = model.MaxSeatsDefault
	}
	if req.MinBuyIn == 0 {
		req.MinBuyIn = 10 * req.BigBlind
	}
	if req.MaxBuyIn == 0 {
		req.MaxBuyIn = 100 * req.BigBlind
	}
	if req.MaxSeats < 2 || req.MaxSeats > 10 ||
		req.SmallBlind <= 0 || req.BigBlind < req.SmallBlind ||
		req.MinBuyIn < 10*req.BigBlind || req.MaxBuyIn < req.MinBuyIn {
		respondErr(c, model.Errorf(model.KindInvalidAction, "table configuration out of range"))
		return
	}
	table := &model.Table{
		Name:       req.Name,
		MaxSeats:   req.MaxSeats,
		SmallBlind: req.SmallBlind,
		BigBlind:   req.BigBlind,
		MinBuyIn:   req.MinBuyIn,
		MaxBuyIn:   req.MaxBuyIn,
	}
	if err := tc.store.CreateTable(table); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, table)
}

func (tc *TableController) List(c *gin.Context) {
	tables, err := tc.store.Tables()
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, tables)
}

type joinRequest struct {
	BuyIn int64 `json:"buy_in" binding:"required"`
}

// Join seats the caller at the table's open game, creating the game when
// the table has none, and returns the game id with the caller's view.
func (tc *TableController) Join(c *gin.Context) {
	tableID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondErr(c, model.Errorf(model.KindGameNotFound, "malformed table id"))
		return
	}
	var req joinRequest
	if err := c.BindJSON(&req); err != nil {
		respondErr(c, model.Errorf(model.KindBuyInOutOfRange, "malformed join body"))
		return
	}
	game, err := tc.store.OpenGameForTable(tableID)
	if err != nil {
		respondErr(c, err)
		return
	}
	view, err := tc.coord.Join(game.ID, currentPlayer(c), req.BuyIn)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"game_id": game.ID, "game": view})
}
