package card

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/zulandar/boardcore/internal/activity"
	"github.com/zulandar/boardcore/internal/apperr"
	"github.com/zulandar/boardcore/internal/depgraph"
	"github.com/zulandar/boardcore/internal/models"
	"github.com/zulandar/boardcore/internal/position"
	"github.com/zulandar/boardcore/internal/store"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm/clause"
)

// CreateCard appends a new card to listID. When dependencies are given the
// new card must not close a cycle and every dependency must exist;
// otherwise nothing is written.
func (s *Service) CreateCard(ctx context.Context, listID string, f CreateFields, dependencies []string, actor string) (created *models.Card, err error) {
	ctx, span := s.startSpan(ctx, "CreateCard", attribute.String("list.id", listID))
	defer func() { endSpan(span, err) }()

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	deps := normalizeIDs(dependencies)
	assignees := normalizeIDs(f.Assignees)
	labels := normalizeIDs(f.LabelIDs)

	var moved []string
	err = s.store.InTx(ctx, "create card", func(tx store.Tx) error {
		lists, err := store.LockLists(tx, listID)
		if err != nil {
			return err
		}
		list, ok := lists[listID]
		if !ok {
			return apperr.NotFound("list", listID)
		}

		id := s.newID()
		if len(deps) > 0 {
			if err := store.BumpGraphRevision(tx); err != nil {
				return err
			}
			if err := s.validator.Check(ctx, depgraph.TxEdges{Tx: tx}, id, deps); err != nil {
				return err
			}
		}

		changes, err := s.reindex(ctx, tx, listID, position.Placement{Insert: id})
		if err != nil {
			return err
		}
		pos, _ := plannedPosition(changes, id)

		row := models.Card{
			ID:          id,
			ListID:      listID,
			Position:    pos,
			Title:       f.Title,
			Description: f.Description,
			Status:      f.Status,
			Priority:    f.Priority,
			StartDate:   f.StartDate,
			DueDate:     f.DueDate,
			CreatedBy:   actor,
		}
		if err := tx.DB().Omit(clause.Associations).Create(&row).Error; err != nil {
			return fmt.Errorf("card: insert: %w", err)
		}
		if err := applyChanges(tx, changes, id); err != nil {
			return err
		}
		if err := replaceDependencies(tx, id, deps); err != nil {
			return err
		}
		if err := replaceAssignees(tx, id, assignees); err != nil {
			return err
		}
		if err := replaceLabels(tx, id, list.BoardID, labels); err != nil {
			return err
		}
		if err := s.verifyList(tx, listID); err != nil {
			return err
		}
		if err := activity.Append(tx, activity.Entry{
			BoardID: list.BoardID,
			ListID:  listID,
			CardID:  id,
			Actor:   actor,
			Type:    activity.TypeCreated,
			Details: f.Title,
		}); err != nil {
			return err
		}

		created, err = loadCard(tx.DB(), id)
		moved = changedIDs(changes)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.cache.Evict(ctx, moved...)
	span.SetAttributes(attribute.String("card.id", created.ID))
	s.logger.WithFields(log.Fields{
		"card_id": created.ID,
		"list_id": listID,
		"actor":   actor,
		"deps":    len(deps),
	}).Info("card: created")
	return created, nil
}

// UpdateCard applies a partial update and returns the joined card with the
// id of the board that owns it. Moves and explicit positions reindex both
// the origin and destination lists. A dependency set that would close a
// cycle aborts the whole update.
func (s *Service) UpdateCard(ctx context.Context, cardID string, f UpdateFields, actor string) (updated *models.Card, boardID string, err error) {
	ctx, span := s.startSpan(ctx, "UpdateCard", attribute.String("card.id", cardID))
	defer func() { endSpan(span, err) }()

	if err := requireActor(actor); err != nil {
		return nil, "", err
	}
	if err := f.validate(); err != nil {
		return nil, "", err
	}

	var evict []string
	err = s.store.InTx(ctx, "update card", func(tx store.Tx) error {
		cur, err := lockCard(tx, cardID)
		if err != nil {
			return err
		}
		src := cur.ListID
		dst := src
		if f.ListID != nil {
			dst = *f.ListID
		}
		moving := dst != src

		lists, err := store.LockLists(tx, src, dst)
		if err != nil {
			return err
		}
		if _, ok := lists[dst]; !ok {
			return apperr.NotFound("list", dst)
		}
		if lists[src].BoardID != lists[dst].BoardID {
			return apperr.Validationf("list %s is on another board", dst)
		}
		boardID = lists[dst].BoardID

		if f.Dependencies != nil {
			if err := store.BumpGraphRevision(tx); err != nil {
				return err
			}
			if err := s.validator.Check(ctx, depgraph.TxEdges{Tx: tx}, cardID, normalizeIDs(*f.Dependencies)); err != nil {
				return err
			}
		}
		if f.Progress != nil {
			if err := validateProgress(cardID, cur.Progress, *f.Progress); err != nil {
				return err
			}
		}
		start, due := cur.StartDate, cur.DueDate
		if f.StartDate != nil || f.ClearStartDate {
			start = f.StartDate
		}
		if f.DueDate != nil || f.ClearDueDate {
			due = f.DueDate
		}
		if err := validateDates(start, due); err != nil {
			return err
		}

		updates, changed := fieldUpdates(f)

		var srcChanges, dstChanges []position.Change
		if moving || f.Position != nil {
			if moving {
				srcChanges, err = s.reindex(ctx, tx, src, position.Placement{Remove: cardID})
				if err != nil {
					return err
				}
			}
			dstChanges, err = s.reindex(ctx, tx, dst, position.Placement{Insert: cardID, Target: f.Position})
			if err != nil {
				return err
			}
			if pos, ok := plannedPosition(dstChanges, cardID); ok {
				updates["position"] = pos
				changed = append(changed, "position")
			}
			if moving {
				updates["list_id"] = dst
				changed = append(changed, "list")
			}
		}

		if len(updates) > 0 {
			if err := tx.DB().Model(&models.Card{}).Where("id = ?", cardID).Updates(updates).Error; err != nil {
				return fmt.Errorf("card: update %s: %w", cardID, err)
			}
		}
		if err := applyChanges(tx, srcChanges, cardID); err != nil {
			return err
		}
		if err := applyChanges(tx, dstChanges, cardID); err != nil {
			return err
		}
		if f.Dependencies != nil {
			if err := replaceDependencies(tx, cardID, normalizeIDs(*f.Dependencies)); err != nil {
				return err
			}
			changed = append(changed, "dependencies")
		}
		if f.Assignees != nil {
			if err := replaceAssignees(tx, cardID, normalizeIDs(*f.Assignees)); err != nil {
				return err
			}
			changed = append(changed, "assignees")
		}
		if f.LabelIDs != nil {
			if err := replaceLabels(tx, cardID, boardID, normalizeIDs(*f.LabelIDs)); err != nil {
				return err
			}
			changed = append(changed, "labels")
		}

		if moving {
			if err := s.verifyList(tx, src); err != nil {
				return err
			}
		}
		if err := s.verifyList(tx, dst); err != nil {
			return err
		}

		entry := activity.Entry{
			BoardID: boardID,
			ListID:  dst,
			CardID:  cardID,
			Actor:   actor,
			Type:    activity.TypeUpdated,
			Details: strings.Join(changed, ", "),
		}
		if moving {
			entry.Type = activity.TypeMoved
			entry.Details = fmt.Sprintf("%s -> %s", src, dst)
		}
		if err := activity.Append(tx, entry); err != nil {
			return err
		}

		updated, err = loadCard(tx.DB(), cardID)
		evict = append([]string{cardID}, changedIDs(srcChanges, dstChanges)...)
		return err
	})
	if err != nil {
		return nil, "", err
	}

	s.cache.Evict(ctx, evict...)
	s.logger.WithFields(log.Fields{
		"card_id":  cardID,
		"board_id": boardID,
		"list_id":  updated.ListID,
		"actor":    actor,
	}).Info("card: updated")
	return updated, boardID, nil
}

// DeleteCard removes a card with everything it owns and every dependency
// edge touching it, then closes the gap in its list. It returns the id of
// the board the card belonged to. Activity entries for the card are kept.
func (s *Service) DeleteCard(ctx context.Context, cardID, actor string) (boardID string, err error) {
	ctx, span := s.startSpan(ctx, "DeleteCard", attribute.String("card.id", cardID))
	defer func() { endSpan(span, err) }()

	if err := requireActor(actor); err != nil {
		return "", err
	}

	var evict []string
	err = s.store.InTx(ctx, "delete card", func(tx store.Tx) error {
		cur, err := lockCard(tx, cardID)
		if err != nil {
			return err
		}
		lists, err := store.LockLists(tx, cur.ListID)
		if err != nil {
			return err
		}
		boardID = lists[cur.ListID].BoardID

		// Cards depending on this one lose the edge; their cached copies
		// are stale after commit.
		var dependents []string
		err = tx.DB().Model(&models.CardDep{}).Where("depends_on_id = ?", cardID).Pluck("card_id", &dependents).Error
		if err != nil {
			return fmt.Errorf("card: read dependents of %s: %w", cardID, err)
		}

		changes, err := s.reindex(ctx, tx, cur.ListID, position.Placement{Remove: cardID})
		if err != nil {
			return err
		}
		if err := DeleteRows(tx, cardID); err != nil {
			return err
		}
		if err := applyChanges(tx, changes, ""); err != nil {
			return err
		}
		if err := s.verifyList(tx, cur.ListID); err != nil {
			return err
		}
		if err := activity.Append(tx, activity.Entry{
			BoardID: boardID,
			ListID:  cur.ListID,
			CardID:  cardID,
			Actor:   actor,
			Type:    activity.TypeDeleted,
			Details: cur.Title,
		}); err != nil {
			return err
		}

		evict = append(append([]string{cardID}, dependents...), changedIDs(changes)...)
		return nil
	})
	if err != nil {
		return "", err
	}

	s.cache.Evict(ctx, evict...)
	s.logger.WithFields(log.Fields{
		"card_id":  cardID,
		"board_id": boardID,
		"actor":    actor,
	}).Info("card: deleted")
	return boardID, nil
}

// UpdateProgress sets a card's progress. Progress lies in 0..100 and never
// decreases; a lower value fails with apperr.ErrInvalidProgress and leaves
// the card unchanged.
func (s *Service) UpdateProgress(ctx context.Context, cardID string, progress int, actor string) (updated *models.Card, err error) {
	ctx, span := s.startSpan(ctx, "UpdateProgress",
		attribute.String("card.id", cardID),
		attribute.Int("card.progress", progress),
	)
	defer func() { endSpan(span, err) }()

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := validateProgress(cardID, 0, progress); err != nil {
		return nil, err
	}

	err = s.store.InTx(ctx, "update progress", func(tx store.Tx) error {
		cur, err := lockCard(tx, cardID)
		if err != nil {
			return err
		}
		if err := validateProgress(cardID, cur.Progress, progress); err != nil {
			return err
		}
		if err := tx.DB().Model(&models.Card{}).Where("id = ?", cardID).Update("progress", progress).Error; err != nil {
			return fmt.Errorf("card: update progress of %s: %w", cardID, err)
		}

		var list models.List
		if err := tx.DB().Select("id, board_id").Where("id = ?", cur.ListID).Take(&list).Error; err != nil {
			return fmt.Errorf("card: read list %s: %w", cur.ListID, err)
		}
		if err := activity.Append(tx, activity.Entry{
			BoardID: list.BoardID,
			ListID:  cur.ListID,
			CardID:  cardID,
			Actor:   actor,
			Type:    activity.TypeProgressUpdated,
			Details: fmt.Sprintf("%d -> %d", cur.Progress, progress),
		}); err != nil {
			return err
		}

		updated, err = loadCard(tx.DB(), cardID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.cache.Evict(ctx, cardID)
	s.logger.WithFields(log.Fields{
		"card_id":  cardID,
		"progress": progress,
		"actor":    actor,
	}).Info("card: progress updated")
	return updated, nil
}

func requireActor(actor string) error {
	if strings.TrimSpace(actor) == "" {
		return apperr.Validationf("actor is required")
	}
	return nil
}

// fieldUpdates maps the plain column changes in f.
func fieldUpdates(f UpdateFields) (map[string]interface{}, []string) {
	updates := make(map[string]interface{})
	var changed []string
	set := func(col, name string, v interface{}) {
		updates[col] = v
		changed = append(changed, name)
	}
	if f.Title != nil {
		set("title", "title", *f.Title)
	}
	if f.Description != nil {
		set("description", "description", *f.Description)
	}
	if f.Status != nil {
		set("status", "status", *f.Status)
	}
	if f.Priority != nil {
		set("priority", "priority", *f.Priority)
	}
	if f.Progress != nil {
		set("progress", "progress", *f.Progress)
	}
	if f.StartDate != nil {
		set("start_date", "start date", *f.StartDate)
	}
	if f.ClearStartDate {
		set("start_date", "start date", nil)
	}
	if f.DueDate != nil {
		set("due_date", "due date", *f.DueDate)
	}
	if f.ClearDueDate {
		set("due_date", "due date", nil)
	}
	return updates, changed
}
