package card

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/boardcore/internal/apperr"
	"github.com/zulandar/boardcore/internal/models"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// CardFilter selects cards of a board. Zero fields match everything.
type CardFilter struct {
	// Search is a substring match on title or description.
	Search    string
	Progress  *int
	Status    string
	DueFrom   *time.Time
	DueTo     *time.Time
	StartFrom *time.Time
	StartTo   *time.Time
	Limit     int
	Offset    int
}

// GetCard returns a card joined with its list, board and owned rows.
func (s *Service) GetCard(ctx context.Context, id string) (*models.Card, error) {
	if c, ok := s.cache.Get(ctx, id); ok {
		return c, nil
	}
	gen := s.cache.Generation(ctx, id)
	c, err := loadCard(s.store.DB(ctx), id)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Unavailable("get card", err)
		}
		return nil, err
	}
	s.cache.Set(ctx, c, gen)
	return c, nil
}

// ListBoardCards returns one page of a board's cards ordered by list
// position then card position, and the total number of matches.
func (s *Service) ListBoardCards(ctx context.Context, boardID string, f CardFilter) ([]models.Card, int64, error) {
	db := s.store.DB(ctx)

	var n int64
	if err := db.Model(&models.Board{}).Where("id = ?", boardID).Count(&n).Error; err != nil {
		return nil, 0, apperr.Unavailable("list board cards", err)
	}
	if n == 0 {
		return nil, 0, apperr.NotFound("board", boardID)
	}
	if f.Offset < 0 {
		return nil, 0, apperr.Validationf("offset must not be negative")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	q := applyFilter(
		db.Model(&models.Card{}).
			Joins("JOIN lists ON lists.id = cards.list_id").
			Where("lists.board_id = ?", boardID),
		f,
	).Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, apperr.Unavailable("count board cards", err)
	}

	var cards []models.Card
	err := q.Select("cards.*").
		Preload("Dependencies").
		Preload("Assignees").
		Preload("Labels").
		Order("lists.position, cards.position").
		Limit(limit).
		Offset(f.Offset).
		Find(&cards).Error
	if err != nil {
		return nil, 0, apperr.Unavailable("list board cards", fmt.Errorf("card: list board %s: %w", boardID, err))
	}
	return cards, total, nil
}

func applyFilter(q *gorm.DB, f CardFilter) *gorm.DB {
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + s + "%"
		q = q.Where("(cards.title LIKE ? OR cards.description LIKE ?)", like, like)
	}
	if f.Progress != nil {
		q = q.Where("cards.progress = ?", *f.Progress)
	}
	if f.Status != "" {
		q = q.Where("cards.status = ?", f.Status)
	}
	if f.DueFrom != nil {
		q = q.Where("cards.due_date >= ?", *f.DueFrom)
	}
	if f.DueTo != nil {
		q = q.Where("cards.due_date <= ?", *f.DueTo)
	}
	if f.StartFrom != nil {
		q = q.Where("cards.start_date >= ?", *f.StartFrom)
	}
	if f.StartTo != nil {
		q = q.Where("cards.start_date <= ?", *f.StartTo)
	}
	return q
}
