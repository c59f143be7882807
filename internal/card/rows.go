package card

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/zulandar/boardcore/internal/apperr"
	"github.com/zulandar/boardcore/internal/models"
	"github.com/zulandar/boardcore/internal/position"
	"github.com/zulandar/boardcore/internal/store"
	"gorm.io/gorm"
)

func lockCard(tx store.Tx, id string) (models.Card, error) {
	var c models.Card
	err := store.LockForUpdate(tx.DB()).Where("id = ?", id).Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c, apperr.NotFound("card", id)
	}
	if err != nil {
		return c, fmt.Errorf("card: lock %s: %w", id, err)
	}
	return c, nil
}

// applyChanges writes planned positions, skipping the row the caller writes
// itself.
func applyChanges(tx store.Tx, changes []position.Change, skip string) error {
	for _, c := range changes {
		if c.ID == skip {
			continue
		}
		err := tx.DB().Model(&models.Card{}).Where("id = ?", c.ID).Update("position", c.To).Error
		if err != nil {
			return fmt.Errorf("card: reposition %s: %w", c.ID, err)
		}
	}
	return nil
}

func plannedPosition(changes []position.Change, id string) (int, bool) {
	for _, c := range changes {
		if c.ID == id {
			return c.To, true
		}
	}
	return 0, false
}

func changedIDs(changes ...[]position.Change) []string {
	var ids []string
	for _, cs := range changes {
		for _, c := range cs {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// verifyList re-reads a list's positions after a mutation. A gap or
// duplicate is a bug in the planner; it is logged for alerting and aborts
// the transaction instead of being repaired.
func (s *Service) verifyList(tx store.Tx, listID string) error {
	var positions []int
	err := tx.DB().Model(&models.Card{}).Where("list_id = ?", listID).Pluck("position", &positions).Error
	if err != nil {
		return fmt.Errorf("card: read positions of %s: %w", listID, err)
	}
	if err := position.Verify(positions); err != nil {
		s.alert(listID, err)
		return err
	}
	return nil
}

// reindex plans p against listID, raising an alert if the stored positions
// were already broken.
func (s *Service) reindex(ctx context.Context, tx store.Tx, listID string, p position.Placement) ([]position.Change, error) {
	changes, err := s.cards.Reindex(ctx, tx, listID, p)
	if errors.Is(err, apperr.ErrInvariantViolation) {
		s.alert(listID, err)
	}
	return changes, err
}

func (s *Service) alert(listID string, err error) {
	s.logger.WithFields(log.Fields{
		"list_id": listID,
		"alert":   true,
	}).WithError(err).Error("card: list positions not contiguous")
}

func replaceDependencies(tx store.Tx, cardID string, deps []string) error {
	if err := tx.DB().Where("card_id = ?", cardID).Delete(&models.CardDep{}).Error; err != nil {
		return fmt.Errorf("card: clear dependencies of %s: %w", cardID, err)
	}
	if len(deps) == 0 {
		return nil
	}
	rows := make([]models.CardDep, len(deps))
	for i, d := range deps {
		rows[i] = models.CardDep{CardID: cardID, DependsOnID: d}
	}
	if err := tx.DB().Create(&rows).Error; err != nil {
		return fmt.Errorf("card: add dependencies of %s: %w", cardID, err)
	}
	return nil
}

func replaceAssignees(tx store.Tx, cardID string, users []string) error {
	if err := tx.DB().Where("card_id = ?", cardID).Delete(&models.CardAssignee{}).Error; err != nil {
		return fmt.Errorf("card: clear assignees of %s: %w", cardID, err)
	}
	if len(users) == 0 {
		return nil
	}
	rows := make([]models.CardAssignee, len(users))
	for i, u := range users {
		rows[i] = models.CardAssignee{CardID: cardID, UserID: u}
	}
	if err := tx.DB().Create(&rows).Error; err != nil {
		return fmt.Errorf("card: add assignees of %s: %w", cardID, err)
	}
	return nil
}

// replaceLabels attaches labels, which must belong to the card's board.
func replaceLabels(tx store.Tx, cardID, boardID string, labelIDs []string) error {
	if len(labelIDs) > 0 {
		var n int64
		err := tx.DB().Model(&models.Label{}).
			Where("id IN ? AND board_id = ?", labelIDs, boardID).
			Count(&n).Error
		if err != nil {
			return fmt.Errorf("card: check labels: %w", err)
		}
		if int(n) != len(labelIDs) {
			return apperr.Validationf("labels %v are not all on board %s", labelIDs, boardID)
		}
	}
	if err := tx.DB().Exec("DELETE FROM card_labels WHERE card_id = ?", cardID).Error; err != nil {
		return fmt.Errorf("card: clear labels of %s: %w", cardID, err)
	}
	for _, l := range labelIDs {
		err := tx.DB().Exec("INSERT INTO card_labels (card_id, label_id) VALUES (?, ?)", cardID, l).Error
		if err != nil {
			return fmt.Errorf("card: attach label %s to %s: %w", l, cardID, err)
		}
	}
	return nil
}

// DeleteRows removes cards together with everything they own and every
// dependency edge touching them. It does not touch positions; the caller
// reindexes the affected lists.
func DeleteRows(tx store.Tx, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	owned := []interface{}{
		&models.Comment{},
		&models.SubTask{},
		&models.TimeLog{},
		&models.CustomField{},
		&models.Attachment{},
		&models.CardAssignee{},
	}
	for _, m := range owned {
		if err := tx.DB().Where("card_id IN ?", ids).Delete(m).Error; err != nil {
			return fmt.Errorf("card: delete %T: %w", m, err)
		}
	}
	if err := tx.DB().Exec("DELETE FROM card_labels WHERE card_id IN ?", ids).Error; err != nil {
		return fmt.Errorf("card: delete label links: %w", err)
	}
	err := tx.DB().Where("card_id IN ? OR depends_on_id IN ?", ids, ids).Delete(&models.CardDep{}).Error
	if err != nil {
		return fmt.Errorf("card: delete dependency edges: %w", err)
	}
	if err := tx.DB().Where("id IN ?", ids).Delete(&models.Card{}).Error; err != nil {
		return fmt.Errorf("card: delete cards: %w", err)
	}
	return nil
}

// loadCard reads a card joined with its list, board and owned rows.
func loadCard(db *gorm.DB, id string) (*models.Card, error) {
	var c models.Card
	err := db.
		Preload("List.Board").
		Preload("Dependencies", func(q *gorm.DB) *gorm.DB { return q.Order("depends_on_id") }).
		Preload("Assignees").
		Preload("Labels").
		Preload("Attachments").
		Preload("Comments", func(q *gorm.DB) *gorm.DB { return q.Order("created_at, id") }).
		Preload("SubTasks").
		Preload("TimeLogs").
		Preload("CustomFields").
		Where("id = ?", id).
		Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("card", id)
	}
	if err != nil {
		return nil, fmt.Errorf("card: load %s: %w", id, err)
	}
	return &c, nil
}
