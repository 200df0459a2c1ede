package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"holdem/internal/model"
	"holdem/internal/service"
	"holdem/internal/store"
)

// GameController exposes the game command and query surface. Every command
// is dispatched through the coordinator so the single-writer and atomicity
// guarantees hold no matter how many clients hit the API.
type GameController struct {
	coord *service.Coordinator
	store *store.Store
}

func NewGameController(coord *service.Coordinator, st *store.Store) *GameController {
	return &GameController{coord: coord, store: st}
}

func (gc *GameController) Register(r gin.IRoutes) {
	r.GET("/games/:id", gc.Snapshot)
	r.POST("/games/:id/start", gc.Start)
	r.POST("/games/:id/action", gc.Action)
	r.POST("/games/:id/ready", gc.Ready)
	r.POST("/games/:id/cash_out", gc.CashOut)
	r.POST("/games/:id/buy_back_in", gc.BuyBackIn)
	r.POST("/games/:id/leave", gc.Leave)
	r.GET("/games/:id/hand-history", gc.HandHistory)
}

func gameID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondErr(c, model.Errorf(model.KindGameNotFound, "malformed game id"))
		return uuid.Nil, false
	}
	return id, true
}

// Snapshot returns the authoritative state filtered for the caller.
func (gc *GameController) Snapshot(c *gin.Context) {
	id, ok := gameID(c)
	if !ok {
		return
	}
	view, err := gc.coord.Snapshot(id, currentPlayer(c).ID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (gc *GameController) Start(c *gin.Context) {
	id, ok := gameID(c)
	if !ok {
		return
	}
	view, err := gc.coord.StartGame(id, currentPlayer(c).ID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type actionRequest struct {
	ActionType string `json:"action_type" binding:"required"`
	Amount     int64  `json:"amount"`
}

func (gc *GameController) Action(c *gin.Context) {
	id, ok := gameID(c)
	if !ok {
		return
	}
	var req actionRequest
	if err := c.BindJSON(&req); err != nil {
		respondErr(c, model.Errorf(model.KindInvalidAction, "malformed action body"))
		return
	}
	view, err := gc.coord.Action(id, currentPlayer(c).ID, req.ActionType, req.Amount)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (gc *GameController) Ready(c *gin.Context) {
	id, ok := gameID(c)
	if !ok {
		return
	}
	view, err := gc.coord.Ready(id, currentPlayer(c).ID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (gc *GameController) CashOut(c *gin.Context) {
	id, ok := gameID(c)
	if !ok {
		return
	}
	view, err := gc.coord.CashOut(id, currentPlayer(c).ID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type buyBackRequest struct {
	Amount int64 `json:"amount" binding:"required"`
}

func (gc *GameController) BuyBackIn(c *gin.Context) {
	id, ok := gameID(c)
	if !ok {
		return
	}
	var req buyBackRequest
	if err := c.BindJSON(&req); err != nil {
		respondErr(c, model.Errorf(model.KindBuyInOutOfRange, "malformed buy-back body"))
		return
	}
	view, err := gc.coord.BuyBackIn(id, currentPlayer(c), req.Amount)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (gc *GameController) Leave(c *gin.Context) {
	id, ok := gameID(c)
	if !ok {
		return
	}
	view, err := gc.coord.Leave(id, currentPlayer(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (gc *GameController) HandHistory(c *gin.Context) {
	id, ok := gameID(c)
	if !ok {
		return
	}
	histories, err := gc.store.HandHistories(id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, histories)
}
