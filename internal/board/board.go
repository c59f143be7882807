// Package board manages boards, their members and the ordered lists on
// them. List positions within a board follow the same contiguity rule as
// card positions within a list.
package board

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/zulandar/boardcore/internal/activity"
	"github.com/zulandar/boardcore/internal/apperr"
	"github.com/zulandar/boardcore/internal/cache"
	"github.com/zulandar/boardcore/internal/card"
	"github.com/zulandar/boardcore/internal/models"
	"github.com/zulandar/boardcore/internal/position"
	"github.com/zulandar/boardcore/internal/store"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Member roles.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

var validRoles = map[string]bool{RoleOwner: true, RoleAdmin: true, RoleMember: true}

// Service creates boards and lists.
type Service struct {
	store  *store.Store
	lists  *position.Reindexer
	cache  *cache.Cards
	logger *log.Logger
	newID  func() string
}

// Option configures a Service.
type Option func(*Service)

// WithCache evicts cards from c when list changes make them stale.
func WithCache(c *cache.Cards) Option {
	return func(s *Service) { s.cache = c }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService returns a Service over st.
func NewService(st *store.Store, opts ...Option) *Service {
	s := &Service{
		store:  st,
		lists:  position.ForLists(),
		logger: log.StandardLogger(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateBoardOpts holds the fields of a new board.
type CreateBoardOpts struct {
	TeamID  string
	Name    string
	Members []string
}

// CreateBoard creates a board owned by actor.
func (s *Service) CreateBoard(ctx context.Context, opts CreateBoardOpts, actor string) (*models.Board, error) {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return nil, apperr.Validationf("board name is required")
	}
	if actor == "" {
		return nil, apperr.Validationf("actor is required")
	}

	b := models.Board{ID: s.newID(), TeamID: opts.TeamID, Name: name, CreatedBy: actor}
	err := s.store.InTx(ctx, "create board", func(tx store.Tx) error {
		if err := tx.DB().Omit(clause.Associations).Create(&b).Error; err != nil {
			return fmt.Errorf("board: insert: %w", err)
		}
		members := []models.BoardMember{{BoardID: b.ID, UserID: actor, Role: RoleOwner}}
		for _, u := range opts.Members {
			if u = strings.TrimSpace(u); u != "" && u != actor {
				members = append(members, models.BoardMember{BoardID: b.ID, UserID: u, Role: RoleMember})
			}
		}
		if err := tx.DB().Clauses(clause.OnConflict{DoNothing: true}).Create(&members).Error; err != nil {
			return fmt.Errorf("board: add members: %w", err)
		}
		return activity.Append(tx, activity.Entry{
			BoardID: b.ID,
			Actor:   actor,
			Type:    activity.TypeCreated,
			Details: "board " + name,
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(log.Fields{"board_id": b.ID, "actor": actor}).Info("board: created")
	return s.GetBoard(ctx, b.ID)
}

// AddMember grants userID a role on the board, replacing any existing role.
func (s *Service) AddMember(ctx context.Context, boardID, userID, role string) error {
	if role == "" {
		role = RoleMember
	}
	if !validRoles[role] {
		return apperr.Validationf("unknown role %q", role)
	}
	if strings.TrimSpace(userID) == "" {
		return apperr.Validationf("user id is required")
	}
	return s.store.InTx(ctx, "add member", func(tx store.Tx) error {
		if _, err := lockBoard(tx, boardID); err != nil {
			return err
		}
		m := models.BoardMember{BoardID: boardID, UserID: userID, Role: role}
		return tx.DB().Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "board_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"role"}),
		}).Create(&m).Error
	})
}

// GetBoard returns a board with its members and its lists in order.
func (s *Service) GetBoard(ctx context.Context, id string) (*models.Board, error) {
	var b models.Board
	err := s.store.DB(ctx).
		Preload("Lists", func(q *gorm.DB) *gorm.DB { return q.Order("position") }).
		Preload("Members").
		Where("id = ?", id).
		Take(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("board", id)
	}
	if err != nil {
		return nil, apperr.Unavailable("get board", err)
	}
	return &b, nil
}

// CreateList appends a list to the board.
func (s *Service) CreateList(ctx context.Context, boardID, name, actor string) (*models.List, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validationf("list name is required")
	}
	if actor == "" {
		return nil, apperr.Validationf("actor is required")
	}

	var l models.List
	err := s.store.InTx(ctx, "create list", func(tx store.Tx) error {
		if _, err := lockBoard(tx, boardID); err != nil {
			return err
		}
		id := s.newID()
		changes, err := s.lists.Reindex(ctx, tx, boardID, position.Placement{Insert: id})
		if err != nil {
			return err
		}
		var pos int
		for _, c := range changes {
			if c.ID == id {
				pos = c.To
			}
		}
		l = models.List{ID: id, BoardID: boardID, Name: name, Position: pos}
		if err := tx.DB().Omit(clause.Associations).Create(&l).Error; err != nil {
			return fmt.Errorf("board: insert list: %w", err)
		}
		if err := s.applyListChanges(tx, changes, id); err != nil {
			return err
		}
		if err := s.verifyLists(tx, boardID); err != nil {
			return err
		}
		return activity.Append(tx, activity.Entry{
			BoardID: boardID,
			ListID:  id,
			Actor:   actor,
			Type:    activity.TypeCreated,
			Details: "list " + name,
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(log.Fields{"board_id": boardID, "list_id": l.ID, "actor": actor}).Info("board: list created")
	return &l, nil
}

// MoveList moves a list to target within its board. Targets past the end
// are clamped.
func (s *Service) MoveList(ctx context.Context, listID string, target int, actor string) (*models.List, error) {
	if target < 0 {
		return nil, apperr.Validationf("position must not be negative")
	}
	if actor == "" {
		return nil, apperr.Validationf("actor is required")
	}

	var l models.List
	var evict []string
	err := s.store.InTx(ctx, "move list", func(tx store.Tx) error {
		cur, err := findList(tx, listID)
		if err != nil {
			return err
		}
		if _, err := lockBoard(tx, cur.BoardID); err != nil {
			return err
		}
		changes, err := s.lists.Reindex(ctx, tx, cur.BoardID, position.Placement{Insert: listID, Target: &target})
		if err != nil {
			return err
		}
		if err := s.applyListChanges(tx, changes, ""); err != nil {
			return err
		}
		if err := s.verifyLists(tx, cur.BoardID); err != nil {
			return err
		}
		evict, err = cardsOfLists(tx, changedLists(changes))
		if err != nil {
			return err
		}
		if err := tx.DB().Where("id = ?", listID).Take(&l).Error; err != nil {
			return fmt.Errorf("board: reload list %s: %w", listID, err)
		}
		details := fmt.Sprintf("position %d", l.Position)
		for _, c := range changes {
			if c.ID == listID {
				details = fmt.Sprintf("position %d -> %d", c.From, c.To)
			}
		}
		return activity.Append(tx, activity.Entry{
			BoardID: cur.BoardID,
			ListID:  listID,
			Actor:   actor,
			Type:    activity.TypeMoved,
			Details: details,
		})
	})
	if err != nil {
		return nil, err
	}
	s.cache.Evict(ctx, evict...)
	return &l, nil
}

// DeleteList removes a list with all of its cards and closes the gap in
// the board's list order. It returns the board id.
func (s *Service) DeleteList(ctx context.Context, listID, actor string) (string, error) {
	if actor == "" {
		return "", apperr.Validationf("actor is required")
	}

	var boardID string
	var cardIDs, evict []string
	err := s.store.InTx(ctx, "delete list", func(tx store.Tx) error {
		cur, err := findList(tx, listID)
		if err != nil {
			return err
		}
		boardID = cur.BoardID
		if _, err := lockBoard(tx, boardID); err != nil {
			return err
		}
		if _, err := store.LockLists(tx, listID); err != nil {
			return err
		}
		changes, err := s.lists.Reindex(ctx, tx, boardID, position.Placement{Remove: listID})
		if err != nil {
			return err
		}

		cardIDs = nil
		err = store.LockForUpdate(tx.DB()).Model(&models.Card{}).
			Where("list_id = ?", listID).Order("id").Pluck("id", &cardIDs).Error
		if err != nil {
			return fmt.Errorf("board: read cards of %s: %w", listID, err)
		}
		// Cards elsewhere that depend on the deleted ones lose those edges.
		evict = append([]string(nil), cardIDs...)
		if len(cardIDs) > 0 {
			var dependents []string
			err = tx.DB().Model(&models.CardDep{}).Where("depends_on_id IN ?", cardIDs).
				Distinct().Pluck("card_id", &dependents).Error
			if err != nil {
				return fmt.Errorf("board: read dependents of list %s: %w", listID, err)
			}
			evict = append(evict, dependents...)
		}
		shifted, err := cardsOfLists(tx, changedLists(changes))
		if err != nil {
			return err
		}
		evict = append(evict, shifted...)
		if err := card.DeleteRows(tx, cardIDs...); err != nil {
			return err
		}
		if err := tx.DB().Where("id = ?", listID).Delete(&models.List{}).Error; err != nil {
			return fmt.Errorf("board: delete list %s: %w", listID, err)
		}
		if err := s.applyListChanges(tx, changes, ""); err != nil {
			return err
		}
		if err := s.verifyLists(tx, boardID); err != nil {
			return err
		}
		return activity.Append(tx, activity.Entry{
			BoardID: boardID,
			ListID:  listID,
			Actor:   actor,
			Type:    activity.TypeDeleted,
			Details: fmt.Sprintf("list %s with %d cards", cur.Name, len(cardIDs)),
		})
	})
	if err != nil {
		return "", err
	}
	s.cache.Evict(ctx, evict...)
	s.logger.WithFields(log.Fields{
		"board_id": boardID,
		"list_id":  listID,
		"cards":    len(cardIDs),
		"actor":    actor,
	}).Info("board: list deleted")
	return boardID, nil
}

func lockBoard(tx store.Tx, id string) (models.Board, error) {
	var b models.Board
	err := store.LockForUpdate(tx.DB()).Where("id = ?", id).Take(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return b, apperr.NotFound("board", id)
	}
	if err != nil {
		return b, fmt.Errorf("board: lock %s: %w", id, err)
	}
	return b, nil
}

func findList(tx store.Tx, id string) (models.List, error) {
	var l models.List
	err := tx.DB().Where("id = ?", id).Take(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return l, apperr.NotFound("list", id)
	}
	if err != nil {
		return l, fmt.Errorf("board: read list %s: %w", id, err)
	}
	return l, nil
}

// changedLists returns the ids of lists whose position changed.
func changedLists(changes []position.Change) []string {
	ids := make([]string, 0, len(changes))
	for _, c := range changes {
		if c.From != c.To {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// cardsOfLists returns the ids of the cards in listIDs. Cached cards embed
// their list, so a list move must evict them.
func cardsOfLists(tx store.Tx, listIDs []string) ([]string, error) {
	if len(listIDs) == 0 {
		return nil, nil
	}
	var ids []string
	err := tx.DB().Model(&models.Card{}).Where("list_id IN ?", listIDs).Order("id").Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("board: read cards of moved lists: %w", err)
	}
	return ids, nil
}

func (s *Service) applyListChanges(tx store.Tx, changes []position.Change, skip string) error {
	for _, c := range changes {
		if c.ID == skip {
			continue
		}
		if err := tx.DB().Model(&models.List{}).Where("id = ?", c.ID).Update("position", c.To).Error; err != nil {
			return fmt.Errorf("board: reposition list %s: %w", c.ID, err)
		}
	}
	return nil
}

func (s *Service) verifyLists(tx store.Tx, boardID string) error {
	var positions []int
	if err := tx.DB().Model(&models.List{}).Where("board_id = ?", boardID).Pluck("position", &positions).Error; err != nil {
		return fmt.Errorf("board: read list positions of %s: %w", boardID, err)
	}
	if err := position.Verify(positions); err != nil {
		s.logger.WithFields(log.Fields{"board_id": boardID, "alert": true}).
			WithError(err).Error("board: list positions not contiguous")
		return err
	}
	return nil
}
