package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"holdem/internal/model"
	"holdem/internal/store"
)

// PlayerController is the identity stub: it mints the bearer tokens the API
// and event stream authenticate with. Real deployments put an identity
// provider in front and keep only the bankroll ledger here.
type PlayerController struct {
	store *store.Store
}

func NewPlayerController(st *store.Store) *PlayerController {
	return &PlayerController{store: st}
}

// Register mounts the unauthenticated registration route.
func (pc *PlayerController) Register(r gin.IRoutes) {
	r.POST("/players", pc.Create)
}

// RegisterAuthed mounts the routes that need a token.
func (pc *PlayerController) RegisterAuthed(r gin.IRoutes) {
	r.GET("/players/me", pc.Me)
}

type createPlayerRequest struct {
	Username string `json:"username" binding:"required"`
	Bankroll int64  `json:"bankroll"`
}

func (pc *PlayerController) Create(c *gin.Context) {
	var req createPlayerRequest
	if err := c.BindJSON(&req); err != nil {
		respondErr(c, model.Errorf(model.KindInvalidAction, "malformed player body"))
		return
	}
	player, err := pc.store.CreatePlayer(req.Username, req.Bankroll)
	if err != nil {
		respondErr(c, model.Errorf(model.KindInvalidAction, "username taken"))
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":       player.ID,
		"username": player.Username,
		"token":    player.Token,
		"bankroll": player.Bankroll,
	})
}

func (pc *PlayerController) Me(c *gin.Context) {
	c.JSON(http.StatusOK, currentPlayer(c))
}
