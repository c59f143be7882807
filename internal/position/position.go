// Package position keeps integer ordering keys contiguous and zero-based.
//
// The same planner orders cards within a list and lists within a board.
// Planning is pure; loading locks the scope's rows. Neither writes: the
// caller applies the returned changes inside its own transaction.
package position

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/zulandar/boardcore/internal/apperr"
	"github.com/zulandar/boardcore/internal/store"
)

// Slot is one ordered row as currently stored.
type Slot struct {
	ID        string
	Position  int
	CreatedAt time.Time
}

// Placement describes a membership change to plan for. The zero value
// plans a plain reindex.
type Placement struct {
	// Remove drops a row from the scope (delete, or move out).
	Remove string
	// Insert places a row in the scope. If it is already a member it is
	// repositioned instead.
	Insert string
	// Target is the zero-based position for Insert, clamped to the valid
	// range. Nil appends.
	Target *int
}

// At is a convenience for building a Placement target.
func At(i int) *int { return &i }

// Change is a row whose position must be rewritten. From is -1 for a row
// that is not yet a member of the scope.
type Change struct {
	ID   string
	From int
	To   int
}

// Plan orders slots by current position, breaking ties by creation time
// and then id, applies p and returns the rows whose position differs from
// their index in the result. A contiguous scope with a zero Placement
// yields no changes.
func Plan(slots []Slot, p Placement) []Change {
	ordered := make([]Slot, 0, len(slots)+1)
	from := -1
	for _, s := range slots {
		if s.ID == p.Remove && p.Remove != "" {
			continue
		}
		if s.ID == p.Insert && p.Insert != "" {
			from = s.Position
			continue
		}
		ordered = append(ordered, s)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	if p.Insert != "" {
		at := len(ordered)
		if p.Target != nil && *p.Target < at {
			at = *p.Target
			if at < 0 {
				at = 0
			}
		}
		ordered = append(ordered, Slot{})
		copy(ordered[at+1:], ordered[at:])
		ordered[at] = Slot{ID: p.Insert, Position: from}
	}

	var changes []Change
	for i, s := range ordered {
		if s.Position != i {
			changes = append(changes, Change{ID: s.ID, From: s.Position, To: i})
		}
	}
	return changes
}

// Verify reports an invariant violation unless positions is exactly
// {0..n-1}.
func Verify(positions []int) error {
	seen := make([]bool, len(positions))
	for _, p := range positions {
		if p < 0 || p >= len(positions) {
			return apperr.Invariantf("position %d outside 0..%d", p, len(positions)-1)
		}
		if seen[p] {
			return apperr.Invariantf("duplicate position %d", p)
		}
		seen[p] = true
	}
	return nil
}

// Reindexer loads the ordered rows of one scope: cards of a list, or lists
// of a board.
type Reindexer struct {
	table string
	scope string
}

// ForCards returns a Reindexer over the cards of a list.
func ForCards() *Reindexer { return &Reindexer{table: "cards", scope: "list_id"} }

// ForLists returns a Reindexer over the lists of a board.
func ForLists() *Reindexer { return &Reindexer{table: "lists", scope: "board_id"} }

// Load returns the rows of scopeID, locked for update for the rest of the
// transaction.
func (r *Reindexer) Load(tx store.Tx, scopeID string) ([]Slot, error) {
	var slots []Slot
	err := store.LockForUpdate(tx.DB()).
		Table(r.table).
		Select("id, position, created_at").
		Where(r.scope+" = ?", scopeID).
		Order("position, created_at, id").
		Find(&slots).Error
	if err != nil {
		return nil, fmt.Errorf("position: load %s of %s: %w", r.table, scopeID, err)
	}
	return slots, nil
}

// Reindex loads scopeID's rows and plans p against them. Stored positions
// that are already broken are reported as apperr.ErrInvariantViolation and
// left alone.
func (r *Reindexer) Reindex(ctx context.Context, tx store.Tx, scopeID string, p Placement) ([]Change, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	slots, err := r.Load(tx, scopeID)
	if err != nil {
		return nil, err
	}
	if err := Verify(Positions(slots)); err != nil {
		return nil, fmt.Errorf("position: %s of %s: %w", r.table, scopeID, err)
	}
	return Plan(slots, p), nil
}

// Positions extracts the positions of slots.
func Positions(slots []Slot) []int {
	out := make([]int, len(slots))
	for i, s := range slots {
		out[i] = s.Position
	}
	return out
}
