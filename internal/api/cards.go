package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/boardcore/internal/activity"
	"github.com/zulandar/boardcore/internal/apperr"
	"github.com/zulandar/boardcore/internal/card"
)

type createCardRequest struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Status       string     `json:"status"`
	Priority     string     `json:"priority"`
	StartDate    *time.Time `json:"start_date"`
	DueDate      *time.Time `json:"due_date"`
	Assignees    []string   `json:"assignees"`
	LabelIDs     []string   `json:"label_ids"`
	Dependencies []string   `json:"dependencies"`
}

// updateCardRequest mirrors card.UpdateFields; absent keys are unchanged.
type updateCardRequest struct {
	Title        *string    `json:"title"`
	Description  *string    `json:"description"`
	Status       *string    `json:"status"`
	Priority     *string    `json:"priority"`
	Progress     *int       `json:"progress"`
	StartDate    *time.Time `json:"start_date"`
	DueDate      *time.Time `json:"due_date"`
	ClearStart   bool       `json:"clear_start_date"`
	ClearDue     bool       `json:"clear_due_date"`
	Assignees    *[]string  `json:"assignees"`
	LabelIDs     *[]string  `json:"label_ids"`
	ListID       *string    `json:"list_id"`
	Position     *int       `json:"position"`
	Dependencies *[]string  `json:"dependencies"`
}

func (r updateCardRequest) fields() card.UpdateFields {
	return card.UpdateFields{
		Title:          r.Title,
		Description:    r.Description,
		Status:         r.Status,
		Priority:       r.Priority,
		Progress:       r.Progress,
		StartDate:      r.StartDate,
		DueDate:        r.DueDate,
		ClearStartDate: r.ClearStart,
		ClearDueDate:   r.ClearDue,
		Assignees:      r.Assignees,
		LabelIDs:       r.LabelIDs,
		ListID:         r.ListID,
		Position:       r.Position,
		Dependencies:   r.Dependencies,
	}
}

type progressRequest struct {
	Progress *int `json:"progress"`
}

func (h *handlers) createCard(c *gin.Context) {
	var req createCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "decode body: %v", err)
		return
	}
	created, err := h.cards.CreateCard(c.Request.Context(), c.Param("id"), card.CreateFields{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		StartDate:   req.StartDate,
		DueDate:     req.DueDate,
		Assignees:   req.Assignees,
		LabelIDs:    req.LabelIDs,
	}, req.Dependencies, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *handlers) getCard(c *gin.Context) {
	got, err := h.cards.GetCard(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, got)
}

func (h *handlers) updateCard(c *gin.Context) {
	var req updateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "decode body: %v", err)
		return
	}
	updated, boardID, err := h.cards.UpdateCard(c.Request.Context(), c.Param("id"), req.fields(), actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"card": updated, "board_id": boardID})
}

func (h *handlers) updateProgress(c *gin.Context) {
	var req progressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "decode body: %v", err)
		return
	}
	if req.Progress == nil {
		h.badRequest(c, "progress is required")
		return
	}
	updated, err := h.cards.UpdateProgress(c.Request.Context(), c.Param("id"), *req.Progress, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *handlers) deleteCard(c *gin.Context) {
	boardID, err := h.cards.DeleteCard(c.Request.Context(), c.Param("id"), actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"board_id": boardID})
}

func (h *handlers) listBoardCards(c *gin.Context) {
	f := card.CardFilter{
		Search: c.Query("q"),
		Status: c.Query("status"),
	}
	var err error
	if f.Progress, err = queryInt(c, "progress"); err != nil {
		h.fail(c, err)
		return
	}
	for key, dst := range map[string]**time.Time{
		"due_from":   &f.DueFrom,
		"due_to":     &f.DueTo,
		"start_from": &f.StartFrom,
		"start_to":   &f.StartTo,
	} {
		if *dst, err = queryTime(c, key); err != nil {
			h.fail(c, err)
			return
		}
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		h.fail(c, err)
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		h.fail(c, err)
		return
	}
	if limit != nil {
		f.Limit = *limit
	}
	if offset != nil {
		f.Offset = *offset
	}

	cards, total, err := h.cards.ListBoardCards(c.Request.Context(), c.Param("id"), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cards": cards, "total": total})
}

func (h *handlers) cardActivity(c *gin.Context) {
	f := activity.Filter{CardID: c.Param("id"), Type: c.Query("type")}
	limit, err := queryInt(c, "limit")
	if err != nil {
		h.fail(c, err)
		return
	}
	if limit != nil {
		f.Limit = *limit
	}
	entries, err := activity.List(c.Request.Context(), h.db, f)
	if err != nil {
		h.fail(c, apperr.Unavailable("list activity", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"activity": entries})
}

func queryInt(c *gin.Context, key string) (*int, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, invalidQuery(key, raw)
	}
	return &n, nil
}

// queryTime accepts RFC 3339 timestamps or plain dates.
func queryTime(c *gin.Context, key string) (*time.Time, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, invalidQuery(key, raw)
}
