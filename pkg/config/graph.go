package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/fieldstack/orchestrator/pkg/model"
)

// GraphRegistry stores dependency graphs in memory with thread-safe,
// tenant-scoped access.
type GraphRegistry struct {
	graphs map[string]*model.DependencyGraph // key: tenant_id + "/" + graph_id
	mu     sync.RWMutex
}

// NewGraphRegistry creates a new graph registry from an initial snapshot.
func NewGraphRegistry(graphs map[string]*model.DependencyGraph) *GraphRegistry {
	copied := make(map[string]*model.DependencyGraph, len(graphs))
	for k, v := range graphs {
		copied[k] = v
	}
	return &GraphRegistry{graphs: copied}
}

func graphKey(tenantID, graphID string) string {
	return tenantID + "/" + graphID
}

// Get retrieves a dependency graph by tenant and id (thread-safe)
func (r *GraphRegistry) Get(tenantID, graphID string) (*model.DependencyGraph, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, exists := r.graphs[graphKey(tenantID, graphID)]
	if !exists {
		return nil, model.Wrap(model.CodeBadReference, fmt.Sprintf("dependency graph not found: %s", graphID), ErrGraphNotFound)
	}
	return g, nil
}

// GetByPlaybook finds the graph attached to a playbook (thread-safe).
// A playbook has at most one dependency graph.
func (r *GraphRegistry) GetByPlaybook(tenantID, playbookID string) (*model.DependencyGraph, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, g := range r.graphs {
		if g.TenantID == tenantID && g.PlaybookID == playbookID {
			return g, true
		}
	}
	return nil, false
}

// Put inserts or replaces a dependency graph (thread-safe).
func (r *GraphRegistry) Put(g *model.DependencyGraph) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.graphs[graphKey(g.TenantID, g.GraphID)] = g
}

// Has checks if a graph exists in the registry (thread-safe)
func (r *GraphRegistry) Has(tenantID, graphID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.graphs[graphKey(tenantID, graphID)]
	return exists
}

// Len returns the number of graphs in the registry, across all tenants (thread-safe)
func (r *GraphRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.graphs)
}

// ValidateGraph runs the Config Store's graph validation algorithm
// (spec §4.1 "Key algorithm — graph validation") and, on success, returns
// the level assignment as ordered slices of agent ids.
//
//  1. Build adjacency from edges; reject if any endpoint is not in agentIDs.
//  2. Count in-degree per node; reject if any node has more than one parent.
//  3. For every edge (p->c), reject if p itself has an incoming edge
//     (no multi-level chains).
//  4. Depth-first search with a recursion stack to detect cycles.
//  5. Assign levels via Kahn's algorithm: level 0 is the nodes with
//     in-degree 0; each subsequent level is the nodes whose sole parent
//     (if any) sits in a prior level. Ties within a level are broken by
//     lexicographic agent id for reproducibility.
func ValidateGraph(edges []model.Edge, agentIDs []string) ([][]string, error) {
	known := make(map[string]bool, len(agentIDs))
	for _, id := range agentIDs {
		known[id] = true
	}

	children := make(map[string][]string)
	inDegree := make(map[string]int, len(agentIDs))
	parent := make(map[string]string)
	for _, id := range agentIDs {
		inDegree[id] = 0
	}

	for _, e := range edges {
		if !known[e.From] || !known[e.To] {
			return nil, model.NewError(model.CodeDanglingEdge,
				fmt.Sprintf("edge %s->%s references an agent not in the playbook", e.From, e.To))
		}
		children[e.From] = append(children[e.From], e.To)
		inDegree[e.To]++
		parent[e.To] = e.From
	}

	for _, id := range agentIDs {
		if inDegree[id] > 1 {
			return nil, model.NewError(model.CodeMultiParent,
				fmt.Sprintf("agent %s has more than one dependency parent", id))
		}
	}

	for _, e := range edges {
		if _, parentHasParent := parent[e.From]; parentHasParent {
			return nil, model.NewError(model.CodeMultiLevel,
				fmt.Sprintf("agent %s cannot both depend on a parent and be a parent itself (multi-level chains are rejected)", e.From))
		}
	}

	if cyclicNode, ok := findCycle(agentIDs, children); ok {
		return nil, model.NewError(model.CodeCycle,
			fmt.Sprintf("dependency graph contains a cycle reachable from %s", cyclicNode))
	}

	return assignLevels(agentIDs, children, parent), nil
}

// findCycle runs a DFS with a recursion stack over every node, reporting
// the first node found to participate in a cycle.
func findCycle(agentIDs []string, children map[string][]string) (string, bool) {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(agentIDs))

	var visit func(node string) bool
	visit = func(node string) bool {
		state[node] = visiting
		for _, next := range children[node] {
			switch state[next] {
			case visiting:
				return true
			case unvisited:
				if visit(next) {
					return true
				}
			}
		}
		state[node] = done
		return false
	}

	sorted := append([]string(nil), agentIDs...)
	sort.Strings(sorted)
	for _, id := range sorted {
		if state[id] == unvisited {
			if visit(id) {
				return id, true
			}
		}
	}
	return "", false
}

// assignLevels implements Kahn's algorithm: level 0 holds every node
// with no parent; each subsequent level holds nodes whose sole parent is
// in the immediately preceding level. Because ValidateGraph already
// rejected multi-level chains, a dependency graph here has exactly two
// levels at most, but the algorithm is written generally.
func assignLevels(agentIDs []string, children map[string][]string, parent map[string]string) [][]string {
	levelOf := make(map[string]int, len(agentIDs))
	var roots []string
	for _, id := range agentIDs {
		if _, hasParent := parent[id]; !hasParent {
			levelOf[id] = 0
			roots = append(roots, id)
		}
	}

	sort.Strings(roots)
	queue := append([]string(nil), roots...)
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		next := append([]string(nil), children[node]...)
		sort.Strings(next)
		for _, child := range next {
			levelOf[child] = levelOf[node] + 1
			queue = append(queue, child)
		}
	}

	maxLevel := 0
	for _, l := range levelOf {
		if l > maxLevel {
			maxLevel = l
		}
	}

	levels := make([][]string, maxLevel+1)
	for _, id := range agentIDs {
		l := levelOf[id]
		levels[l] = append(levels[l], id)
	}
	for _, l := range levels {
		sort.Strings(l)
	}
	return levels
}
