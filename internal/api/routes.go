package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/zulandar/boardcore/internal/board"
	"github.com/zulandar/boardcore/internal/card"
	"gorm.io/gorm"
)

type handlers struct {
	cards  *card.Service
	boards *board.Service
	db     *gorm.DB
	logger *log.Logger
}

// registerRoutes sets up every route on the gin router.
func registerRoutes(router *gin.Engine, h *handlers) {
	router.GET("/healthz", h.health)

	api := router.Group("/api", h.requireActor)

	api.POST("/boards", h.createBoard)
	api.GET("/boards/:id", h.getBoard)
	api.GET("/boards/:id/cards", h.listBoardCards)
	api.POST("/boards/:id/lists", h.createList)

	api.PUT("/lists/:id/position", h.moveList)
	api.DELETE("/lists/:id", h.deleteList)
	api.POST("/lists/:id/cards", h.createCard)

	api.GET("/cards/:id", h.getCard)
	api.PATCH("/cards/:id", h.updateCard)
	api.PUT("/cards/:id/progress", h.updateProgress)
	api.DELETE("/cards/:id", h.deleteCard)
	api.GET("/cards/:id/activity", h.cardActivity)
}

func (h *handlers) requireActor(c *gin.Context) {
	if c.GetHeader(ActorHeader) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errorBody{
			Code:    "unauthenticated",
			Message: ActorHeader + " header is required",
		}})
		return
	}
	c.Next()
}

func actor(c *gin.Context) string {
	return c.GetHeader(ActorHeader)
}

func (h *handlers) health(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
