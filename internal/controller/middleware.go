package controller

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"holdem/internal/model"
	"holdem/internal/store"
)

const playerKey = "player"

// Auth resolves the bearer token to a player and aborts with 401 otherwise.
func Auth(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"kind": "UNAUTHENTICATED", "message": "missing bearer token"},
			})
			return
		}
		player, err := st.PlayerByToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": gin.H{"kind": string(model.KindEngineFault), "message": "auth lookup failed"},
			})
			return
		}
		if player == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"kind": "UNAUTHENTICATED", "message": "unknown token"},
			})
			return
		}
		c.Set(playerKey, player)
		c.Next()
	}
}

func currentPlayer(c *gin.Context) *model.Player {
	v, _ := c.Get(playerKey)
	p, _ := v.(*model.Player)
	return p
}

// respondErr maps an engine error kind to its HTTP status. State-machine
// rejections are 409 so clients know to wait for the next broadcast and
// retry; TABLE_BUSY is 503 because the queue itself was full.
func respondErr(c *gin.Context, err error) {
	kind := model.KindOf(err)
	status := http.StatusBadRequest
	switch kind {
	case model.KindGameNotFound:
		status = http.StatusNotFound
	case model.KindNotYourTurn, model.KindCashOutDuringHand, model.KindGameNotWaiting, model.KindTableFull:
		status = http.StatusConflict
	case model.KindTableBusy:
		status = http.StatusServiceUnavailable
	case model.KindEngineFault, model.KindDeckExhausted:
		status = http.StatusInternalServerError
	}
	msg := err.Error()
	if e, ok := err.(*model.Error); ok {
		msg = e.Message
	}
	c.JSON(status, gin.H{"error": gin.H{"kind": string(kind), "message": msg}})
}
