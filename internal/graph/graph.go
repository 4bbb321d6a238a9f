package graph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/ucsindex/ucs/internal/domain"
	"github.com/ucsindex/ucs/internal/formula"
)

var (
	// ErrUnknownAsset indicates an asset ID with no node in the graph.
	ErrUnknownAsset = errors.New("unknown asset")
	// ErrCycle indicates the dependency relation is not acyclic.
	ErrCycle = errors.New("dependency cycle")
)

// Node is one asset of the dependency graph.
type Node struct {
	ID        domain.AssetID                     `json:"id"`
	Name      string                             `json:"name"`
	Category  domain.Category                    `json:"category"`
	Currency  domain.Currency                    `json:"currency"`
	Unit      string                             `json:"unit,omitempty"`
	Formula   formula.ID                         `json:"formula"`
	Inputs    map[formula.Role]domain.AssetID    `json:"inputs,omitempty"`
	DependsOn []domain.AssetID                   `json:"dependsOn"`
	Weights   map[domain.AssetID]decimal.Decimal `json:"weights,omitempty"`
}

// Derived reports whether the node is computed from other assets.
func (n Node) Derived() bool {
	return n.Formula.Derived()
}

// RoleWeights maps the node's asset weights onto its formula roles.
func (n Node) RoleWeights() map[formula.Role]decimal.Decimal {
	out := make(map[formula.Role]decimal.Decimal, len(n.Weights))
	for role, asset := range n.Inputs {
		if w, ok := n.Weights[asset]; ok {
			out[role] = w
		}
	}
	return out
}

// Graph is the immutable dependency table. Topological order and reverse
// edges are computed once at construction.
type Graph struct {
	nodes      map[domain.AssetID]*Node
	declared   []domain.AssetID
	topo       []domain.AssetID
	topoIndex  map[domain.AssetID]int
	dependents map[domain.AssetID][]domain.AssetID
}

// New validates the nodes and builds a graph. Nodes keep their declaration order.
func New(nodes []Node) (*Graph, error) {
	g := &Graph{
		nodes:      make(map[domain.AssetID]*Node, len(nodes)),
		topoIndex:  make(map[domain.AssetID]int, len(nodes)),
		dependents: make(map[domain.AssetID][]domain.AssetID),
	}

	for i := range nodes {
		n := nodes[i]
		if n.ID == "" {
			return nil, fmt.Errorf("node %d has no id", i)
		}
		if _, dup := g.nodes[n.ID]; dup {
			return nil, fmt.Errorf("duplicate asset %q", n.ID)
		}
		n.DependsOn = dependsOn(n)
		g.nodes[n.ID] = &n
		g.declared = append(g.declared, n.ID)
	}

	for _, id := range g.declared {
		if err := g.validateNode(g.nodes[id]); err != nil {
			return nil, err
		}
	}

	if err := g.sort(); err != nil {
		return nil, err
	}

	for _, id := range g.declared {
		for _, dep := range g.nodes[id].DependsOn {
			g.dependents[dep] = append(g.dependents[dep], id)
		}
	}

	return g, nil
}

// dependsOn lists a node's dependencies in formula role order.
func dependsOn(n Node) []domain.AssetID {
	deps := make([]domain.AssetID, 0, len(n.Inputs))
	for _, role := range n.Formula.Roles() {
		if asset, ok := n.Inputs[role]; ok {
			deps = append(deps, asset)
		}
	}
	return lo.Uniq(deps)
}

func (g *Graph) validateNode(n *Node) error {
	if !n.Category.Valid() {
		return fmt.Errorf("asset %q: invalid category %q", n.ID, n.Category)
	}

	if !n.Derived() {
		if n.Category != domain.CategoryBase && n.Category != domain.CategoryCurrency {
			return fmt.Errorf("asset %q: category %q requires a formula", n.ID, n.Category)
		}
		if len(n.Inputs) > 0 {
			return fmt.Errorf("asset %q: externally quoted assets cannot have dependencies", n.ID)
		}
		return nil
	}

	for _, role := range n.Formula.Roles() {
		if _, ok := n.Inputs[role]; !ok {
			return fmt.Errorf("asset %q: formula %s needs input %q", n.ID, n.Formula, role)
		}
	}
	for role, asset := range n.Inputs {
		if !lo.Contains(n.Formula.Roles(), role) {
			return fmt.Errorf("asset %q: formula %s takes no input %q", n.ID, n.Formula, role)
		}
		if _, ok := g.nodes[asset]; !ok {
			return fmt.Errorf("asset %q depends on %q: %w", n.ID, asset, ErrUnknownAsset)
		}
	}
	for _, role := range n.Formula.WeightedRoles() {
		if _, ok := n.Weights[n.Inputs[role]]; !ok {
			return fmt.Errorf("asset %q: missing weight for %q", n.ID, n.Inputs[role])
		}
	}
	return nil
}

// sort orders nodes so dependencies come first, visiting in declaration order.
// Returns ErrCycle if a node reaches itself.
func (g *Graph) sort() error {
	visited := make(map[domain.AssetID]bool)
	inProgress := make(map[domain.AssetID]bool)

	var visit func(id domain.AssetID) error
	visit = func(id domain.AssetID) error {
		if visited[id] {
			return nil
		}
		if inProgress[id] {
			return fmt.Errorf("asset %q: %w", id, ErrCycle)
		}
		inProgress[id] = true

		for _, dep := range g.nodes[id].DependsOn {
			if err := visit(dep); err != nil {
				return err
			}
		}

		delete(inProgress, id)
		visited[id] = true
		g.topoIndex[id] = len(g.topo)
		g.topo = append(g.topo, id)
		return nil
	}

	for _, id := range g.declared {
		if err := visit(id); err != nil {
			return err
		}
	}
	return nil
}

// Node returns the node for id; ok is false for unknown assets.
func (g *Graph) Node(id domain.AssetID) (Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Nodes returns every node in declaration order.
func (g *Graph) Nodes() []Node {
	return lo.Map(g.declared, func(id domain.AssetID, _ int) Node { return *g.nodes[id] })
}

// TopologicalOrder returns every asset ID with dependencies first.
func (g *Graph) TopologicalOrder() []domain.AssetID {
	return append([]domain.AssetID(nil), g.topo...)
}

// DirectDependents returns the assets whose dependencies contain id.
func (g *Graph) DirectDependents(id domain.AssetID) []domain.AssetID {
	return append([]domain.AssetID(nil), g.dependents[id]...)
}

// AffectedAssets returns the transitive dependents of ids, deduplicated and
// ordered so that every asset follows all of its dependencies. The seeds
// themselves are not included; unknown seeds are ignored.
func (g *Graph) AffectedAssets(ids ...domain.AssetID) []domain.AssetID {
	seen := make(map[domain.AssetID]bool)
	for _, id := range ids {
		seen[id] = true
	}

	var affected []domain.AssetID
	queue := lo.Filter(ids, func(id domain.AssetID, _ int) bool { _, ok := g.nodes[id]; return ok })
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, dep := range g.dependents[id] {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			affected = append(affected, dep)
			queue = append(queue, dep)
		}
	}

	sort.SliceStable(affected, func(i, j int) bool {
		return g.topoIndex[affected[i]] < g.topoIndex[affected[j]]
	})
	return affected
}

// Depths assigns each affected asset its distance from the seeds along the
// longest dependency path. Seeds have depth 0.
func (g *Graph) Depths(seeds []domain.AssetID, affected []domain.AssetID) map[domain.AssetID]int {
	depth := make(map[domain.AssetID]int, len(seeds)+len(affected))
	for _, s := range seeds {
		depth[s] = 0
	}
	for _, id := range affected {
		best := 0
		for _, dep := range g.nodes[id].DependsOn {
			if d, ok := depth[dep]; ok && d+1 > best {
				best = d + 1
			}
		}
		depth[id] = best
	}
	return depth
}

// Closure returns every asset id transitively depends on.
func (g *Graph) Closure(id domain.AssetID) []domain.AssetID {
	seen := make(map[domain.AssetID]bool)
	var out []domain.AssetID
	var walk func(domain.AssetID)
	walk = func(cur domain.AssetID) {
		n, ok := g.nodes[cur]
		if !ok {
			return
		}
		for _, dep := range n.DependsOn {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			out = append(out, dep)
			walk(dep)
		}
	}
	walk(id)
	return out
}
