package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/boardcore/internal/apperr"
	"github.com/zulandar/boardcore/internal/board"
)

type createBoardRequest struct {
	TeamID  string   `json:"team_id"`
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

type createListRequest struct {
	Name string `json:"name"`
}

type moveListRequest struct {
	Position *int `json:"position"`
}

func (h *handlers) createBoard(c *gin.Context) {
	var req createBoardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "decode body: %v", err)
		return
	}
	b, err := h.boards.CreateBoard(c.Request.Context(), board.CreateBoardOpts{
		TeamID:  req.TeamID,
		Name:    req.Name,
		Members: req.Members,
	}, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (h *handlers) getBoard(c *gin.Context) {
	b, err := h.boards.GetBoard(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *handlers) createList(c *gin.Context) {
	var req createListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "decode body: %v", err)
		return
	}
	l, err := h.boards.CreateList(c.Request.Context(), c.Param("id"), req.Name, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, l)
}

func (h *handlers) moveList(c *gin.Context) {
	var req moveListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "decode body: %v", err)
		return
	}
	if req.Position == nil {
		h.badRequest(c, "position is required")
		return
	}
	l, err := h.boards.MoveList(c.Request.Context(), c.Param("id"), *req.Position, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func (h *handlers) deleteList(c *gin.Context) {
	boardID, err := h.boards.DeleteList(c.Request.Context(), c.Param("id"), actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"board_id": boardID})
}

func invalidQuery(key, raw string) error {
	return apperr.Validationf("invalid %s %q", key, raw)
}
