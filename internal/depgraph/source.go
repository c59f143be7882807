package depgraph

import (
	"context"
	"sort"

	"github.com/zulandar/boardcore/internal/models"
	"github.com/zulandar/boardcore/internal/store"
)

// TxEdges reads the graph inside a transaction. Reads take shared locks so
// the traversal sees the latest committed edges rather than a stale
// snapshot. Queries run under the transaction's own context and deadline.
type TxEdges struct {
	Tx store.Tx
}

// Existing implements EdgeSource.
func (e TxEdges) Existing(_ context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []string
	err := store.LockForShare(e.Tx.DB()).
		Model(&models.Card{}).
		Where("id IN ?", ids).
		Pluck("id", &found).Error
	return found, err
}

// DependenciesOf implements EdgeSource.
func (e TxEdges) DependenciesOf(_ context.Context, id string) ([]string, error) {
	var deps []string
	err := store.LockForShare(e.Tx.DB()).
		Model(&models.CardDep{}).
		Where("card_id = ?", id).
		Order("depends_on_id").
		Pluck("depends_on_id", &deps).Error
	return deps, err
}

// Graph is an in-memory adjacency map: card id → dependency ids. Every key
// is an existing card.
type Graph map[string][]string

// Existing implements EdgeSource.
func (g Graph) Existing(_ context.Context, ids []string) ([]string, error) {
	var found []string
	for _, id := range ids {
		if _, ok := g[id]; ok {
			found = append(found, id)
		}
	}
	return found, nil
}

// DependenciesOf implements EdgeSource.
func (g Graph) DependenciesOf(_ context.Context, id string) ([]string, error) {
	return g[id], nil
}

// Nodes returns the card ids in g, sorted.
func (g Graph) Nodes() []string {
	ids := make([]string, 0, len(g))
	for id := range g {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
