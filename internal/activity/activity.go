// Package activity is the append-only audit trail of board mutations.
//
// Entries can only be written through a store.Tx, so every entry belongs to
// a mutation that committed with it. Nothing here updates or deletes.
package activity

import (
	"context"
	"fmt"

	"github.com/zulandar/boardcore/internal/apperr"
	"github.com/zulandar/boardcore/internal/models"
	"github.com/zulandar/boardcore/internal/store"
	"gorm.io/gorm"
)

// Activity types.
const (
	TypeCreated         = "created"
	TypeUpdated         = "updated"
	TypeMoved           = "moved"
	TypeProgressUpdated = "progress_updated"
	TypeDeleted         = "deleted"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// Entry is an activity to append.
type Entry struct {
	BoardID string
	ListID  string
	CardID  string
	Actor   string
	Type    string
	Details string
}

// Append writes e inside tx.
func Append(tx store.Tx, e Entry) error {
	if e.Actor == "" {
		return apperr.Validationf("activity: actor is required")
	}
	if e.Type == "" {
		return apperr.Validationf("activity: type is required")
	}
	row := models.Activity{
		BoardID: e.BoardID,
		ListID:  e.ListID,
		CardID:  e.CardID,
		ActorID: e.Actor,
		Type:    e.Type,
		Details: e.Details,
	}
	if err := tx.DB().Create(&row).Error; err != nil {
		return fmt.Errorf("activity: append %s: %w", e.Type, err)
	}
	return nil
}

// Filter selects activities. Empty fields match everything.
type Filter struct {
	BoardID string
	ListID  string
	CardID  string
	Actor   string
	Type    string
	Limit   int
}

// List returns matching activities, newest first.
func List(ctx context.Context, db *gorm.DB, f Filter) ([]models.Activity, error) {
	q := db.WithContext(ctx).Model(&models.Activity{})
	if f.BoardID != "" {
		q = q.Where("board_id = ?", f.BoardID)
	}
	if f.ListID != "" {
		q = q.Where("list_id = ?", f.ListID)
	}
	if f.CardID != "" {
		q = q.Where("card_id = ?", f.CardID)
	}
	if f.Actor != "" {
		q = q.Where("actor_id = ?", f.Actor)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	var out []models.Activity
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("activity: list: %w", err)
	}
	return out, nil
}
