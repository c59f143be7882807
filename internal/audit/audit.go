// Package audit checks stored boards against the ordering and dependency
// invariants. It only reports: every violation is logged for alerting and
// nothing is repaired.
package audit

import (
	"context"
	"fmt"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/zulandar/boardcore/internal/models"
	"github.com/zulandar/boardcore/internal/position"
	"gorm.io/gorm"
)

// Violation kinds.
const (
	KindCardPositions = "card_positions"
	KindListPositions = "list_positions"
	KindCycle         = "cycle"
	KindDanglingEdge  = "dangling_edge"
)

// Violation is one broken invariant.
type Violation struct {
	Kind   string   `json:"kind"`
	Scope  string   `json:"scope"`
	Detail string   `json:"detail"`
	IDs    []string `json:"ids,omitempty"`
}

// Report summarises one audit pass.
type Report struct {
	Boards     int         `json:"boards"`
	Lists      int         `json:"lists"`
	Cards      int         `json:"cards"`
	Edges      int         `json:"edges"`
	Violations []Violation `json:"violations"`
}

// OK reports whether no invariant is broken.
func (r Report) OK() bool { return len(r.Violations) == 0 }

type scoped struct {
	Scope    string
	Position int
}

// Run audits every board, list and card visible through db.
func Run(ctx context.Context, db *gorm.DB, logger *log.Logger) (Report, error) {
	db = db.WithContext(ctx)
	var r Report

	var boards int64
	if err := db.Model(&models.Board{}).Count(&boards).Error; err != nil {
		return r, fmt.Errorf("audit: count boards: %w", err)
	}
	r.Boards = int(boards)

	var lists []scoped
	if err := db.Model(&models.List{}).Select("board_id AS scope, position").Find(&lists).Error; err != nil {
		return r, fmt.Errorf("audit: read lists: %w", err)
	}
	r.Lists = len(lists)
	r.Violations = append(r.Violations, checkPositions(KindListPositions, "board", lists)...)

	var cards []scoped
	if err := db.Model(&models.Card{}).Select("list_id AS scope, position").Find(&cards).Error; err != nil {
		return r, fmt.Errorf("audit: read cards: %w", err)
	}
	r.Cards = len(cards)
	r.Violations = append(r.Violations, checkPositions(KindCardPositions, "list", cards)...)

	var ids []string
	if err := db.Model(&models.Card{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return r, fmt.Errorf("audit: read card ids: %w", err)
	}
	var edges []models.CardDep
	if err := db.Order("card_id, depends_on_id").Find(&edges).Error; err != nil {
		return r, fmt.Errorf("audit: read edges: %w", err)
	}
	r.Edges = len(edges)
	r.Violations = append(r.Violations, checkGraph(ids, edges)...)

	for _, v := range r.Violations {
		logger.WithFields(log.Fields{
			"kind":  v.Kind,
			"scope": v.Scope,
			"ids":   v.IDs,
			"alert": true,
		}).Error("audit: " + v.Detail)
	}
	logger.WithFields(log.Fields{
		"boards":     r.Boards,
		"lists":      r.Lists,
		"cards":      r.Cards,
		"edges":      r.Edges,
		"violations": len(r.Violations),
	}).Info("audit: completed")
	return r, nil
}

func checkPositions(kind, scopeName string, rows []scoped) []Violation {
	groups := make(map[string][]int)
	for _, row := range rows {
		groups[row.Scope] = append(groups[row.Scope], row.Position)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []Violation
	for _, k := range keys {
		if err := position.Verify(groups[k]); err != nil {
			ps := append([]int(nil), groups[k]...)
			sort.Ints(ps)
			out = append(out, Violation{
				Kind:   kind,
				Scope:  k,
				Detail: fmt.Sprintf("%s %s positions %v: %v", scopeName, k, ps, err),
			})
		}
	}
	return out
}

// checkGraph reports edges to or from missing cards and, using Kahn's
// algorithm, whether the remaining graph is acyclic. For a cyclic graph one
// cycle is extracted as a witness.
func checkGraph(ids []string, edges []models.CardDep) []Violation {
	exists := make(map[string]bool, len(ids))
	for _, id := range ids {
		exists[id] = true
	}

	var out []Violation
	adj := make(map[string][]string)
	indeg := make(map[string]int, len(ids))
	for _, id := range ids {
		indeg[id] = 0
	}
	for _, e := range edges {
		if !exists[e.CardID] || !exists[e.DependsOnID] {
			out = append(out, Violation{
				Kind:   KindDanglingEdge,
				Scope:  e.CardID,
				Detail: fmt.Sprintf("edge %s -> %s references a missing card", e.CardID, e.DependsOnID),
				IDs:    []string{e.CardID, e.DependsOnID},
			})
			continue
		}
		adj[e.CardID] = append(adj[e.CardID], e.DependsOnID)
		indeg[e.DependsOnID]++
	}

	queue := make([]string, 0, len(ids))
	for _, id := range ids {
		if indeg[id] == 0 {
			queue = append(queue, id)
		}
	}
	removed := 0
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		removed++
		for _, m := range adj[n] {
			indeg[m]--
			if indeg[m] == 0 {
				queue = append(queue, m)
			}
		}
	}
	if removed == len(ids) {
		return out
	}

	cycle := witness(ids, adj, indeg)
	return append(out, Violation{
		Kind:   KindCycle,
		Scope:  cycle[0],
		Detail: fmt.Sprintf("dependency cycle %s (%d cards not orderable)", strings.Join(cycle, " -> "), len(ids)-removed),
		IDs:    cycle,
	})
}

// witness returns one cycle among the cards Kahn could not remove. Each of
// them still has a predecessor that was not removed, so walking
// predecessors must revisit a card; the loop found, reversed, follows
// dependency edges.
func witness(ids []string, adj map[string][]string, indeg map[string]int) []string {
	preds := make(map[string][]string)
	for _, from := range ids {
		for _, to := range adj[from] {
			preds[to] = append(preds[to], from)
		}
	}
	var start string
	for _, id := range ids {
		if indeg[id] > 0 {
			start = id
			break
		}
	}

	seenAt := make(map[string]int)
	var walk []string
	n := start
	for {
		if i, ok := seenAt[n]; ok {
			loop := append(walk[i:], n)
			for l, r := 0, len(loop)-1; l < r; l, r = l+1, r-1 {
				loop[l], loop[r] = loop[r], loop[l]
			}
			return loop
		}
		seenAt[n] = len(walk)
		walk = append(walk, n)
		for _, p := range preds[n] {
			if indeg[p] > 0 {
				n = p
				break
			}
		}
	}
}
