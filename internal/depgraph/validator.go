// Package depgraph validates changes to the card dependency graph.
//
// The graph has an edge card → dep for every CardDep row. A change is valid
// when every proposed dependency exists and none of them can reach the
// candidate card through stored edges.
package depgraph

import (
	"context"
	"fmt"

	"github.com/zulandar/boardcore/internal/apperr"
)

// DefaultMaxNodes bounds a single traversal.
const DefaultMaxNodes = 10000

// EdgeSource reads the stored dependency graph.
type EdgeSource interface {
	// Existing returns the subset of ids that name stored cards.
	Existing(ctx context.Context, ids []string) ([]string, error)
	// DependenciesOf returns the stored dependency ids of a card.
	DependenciesOf(ctx context.Context, id string) ([]string, error)
}

// Validator checks proposed dependency sets for cycles.
type Validator struct {
	// MaxNodes is the number of cards one traversal may expand before it
	// gives up. Zero means DefaultMaxNodes.
	MaxNodes int
}

// New returns a Validator with the given node budget.
func New(maxNodes int) *Validator {
	return &Validator{MaxNodes: maxNodes}
}

// WouldCreateCycle reports whether giving candidate the dependency set
// proposed would let candidate reach itself. Proposed ids that do not exist
// are reported as apperr.ErrMissingDependency.
func (v *Validator) WouldCreateCycle(ctx context.Context, src EdgeSource, candidate string, proposed []string) (bool, error) {
	path, err := v.findCycle(ctx, src, candidate, proposed)
	return path != nil, err
}

// Check is WouldCreateCycle returning the cycle as
// apperr.ErrCircularDependency with the offending path.
func (v *Validator) Check(ctx context.Context, src EdgeSource, candidate string, proposed []string) error {
	path, err := v.findCycle(ctx, src, candidate, proposed)
	if err != nil {
		return err
	}
	if path != nil {
		return apperr.CircularDependency(path)
	}
	return nil
}

func (v *Validator) findCycle(ctx context.Context, src EdgeSource, candidate string, proposed []string) ([]string, error) {
	roots := dedupe(proposed)
	if len(roots) == 0 {
		return nil, nil
	}
	for _, id := range roots {
		if id == candidate {
			return []string{candidate, candidate}, nil
		}
	}

	found, err := src.Existing(ctx, roots)
	if err != nil {
		return nil, fmt.Errorf("depgraph: resolve dependencies: %w", err)
	}
	if missing := subtract(roots, found); len(missing) > 0 {
		return nil, apperr.MissingDependency(missing)
	}

	limit := v.MaxNodes
	if limit <= 0 {
		limit = DefaultMaxNodes
	}

	// parent records how each node was first reached; roots map to "".
	parent := make(map[string]string, len(roots))
	stack := make([]string, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		parent[roots[i]] = ""
		stack = append(stack, roots[i])
	}

	expanded := 0
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		expanded++
		if expanded > limit {
			return nil, apperr.Validationf("dependency graph of card %s exceeds %d nodes", candidate, limit)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		deps, err := src.DependenciesOf(ctx, node)
		if err != nil {
			return nil, fmt.Errorf("depgraph: read dependencies of %s: %w", node, err)
		}
		for _, next := range deps {
			if next == candidate {
				return cyclePath(parent, candidate, node), nil
			}
			if _, seen := parent[next]; seen {
				continue
			}
			parent[next] = node
			stack = append(stack, next)
		}
	}
	return nil, nil
}

// cyclePath rebuilds candidate → root → … → last → candidate.
func cyclePath(parent map[string]string, candidate, last string) []string {
	var rev []string
	for n := last; n != ""; n = parent[n] {
		rev = append(rev, n)
	}
	path := make([]string, 0, len(rev)+2)
	path = append(path, candidate)
	for i := len(rev) - 1; i >= 0; i-- {
		path = append(path, rev[i])
	}
	return append(path, candidate)
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func subtract(all, have []string) []string {
	ok := make(map[string]bool, len(have))
	for _, id := range have {
		ok[id] = true
	}
	var out []string
	for _, id := range all {
		if !ok[id] {
			out = append(out, id)
		}
	}
	return out
}
