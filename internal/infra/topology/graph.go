// Package topology provides the undirected graph of configured peer relations.
//
// The graph is built once from the node and peer lists and is immutable
// afterwards, which makes it safe for concurrent reads. Neighbor order follows
// declaration order so shortest paths are reproducible.
package topology

import (
	"fmt"

	"github.com/tutu-network/wgsim/internal/domain"
)

// Edge is one undirected link, recorded in the direction it was first declared.
type Edge struct {
	From string
	To   string
}

// Graph is an undirected graph over node names.
//
// Construct using [New].
type Graph struct {
	// nodes lists node names in declaration order.
	nodes []string

	// adj maps a node to its neighbors in declaration order.
	adj map[string][]string

	// edges lists each undirected edge once.
	edges []Edge

	// seen indexes edges by their normalized endpoint pair.
	seen map[[2]string]struct{}
}

// New builds a graph from node names and peer entries. Duplicate and reverse
// entries collapse onto one edge. It fails when a peer entry references a
// node that is not in the node list.
func New(nodes []string, peers []domain.PeerSpec) (*Graph, error) {
	g := &Graph{
		adj:  make(map[string][]string, len(nodes)),
		seen: make(map[[2]string]struct{}),
	}
	for _, name := range nodes {
		if name == "" {
			return nil, domain.ErrEmptyName
		}
		if _, ok := g.adj[name]; ok {
			return nil, fmt.Errorf("%w: %q", domain.ErrDuplicateNode, name)
		}
		g.nodes = append(g.nodes, name)
		g.adj[name] = nil
	}
	for _, p := range peers {
		if _, ok := g.adj[p.From]; !ok {
			return nil, fmt.Errorf("peer %s -> %s: %w %q", p.From, p.To, domain.ErrUnknownNode, p.From)
		}
		if _, ok := g.adj[p.To]; !ok {
			return nil, fmt.Errorf("peer %s -> %s: %w %q", p.From, p.To, domain.ErrUnknownNode, p.To)
		}
		if p.From == p.To {
			return nil, fmt.Errorf("peer %s -> %s: %w", p.From, p.To, domain.ErrSelfPeer)
		}
		g.addEdge(p.From, p.To)
	}
	return g, nil
}

func (g *Graph) addEdge(a, b string) {
	key := pairKey(a, b)
	if _, ok := g.seen[key]; ok {
		return
	}
	g.seen[key] = struct{}{}
	g.edges = append(g.edges, Edge{From: a, To: b})
	g.adj[a] = append(g.adj[a], b)
	g.adj[b] = append(g.adj[b], a)
}

func pairKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

// Nodes returns the node names in declaration order.
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.nodes...)
}

// Edges returns each undirected edge once, in declaration order.
func (g *Graph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of undirected edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// HasNode reports whether name is part of the graph.
func (g *Graph) HasNode(name string) bool {
	_, ok := g.adj[name]
	return ok
}

// HasEdge reports whether a and b are directly linked.
func (g *Graph) HasEdge(a, b string) bool {
	_, ok := g.seen[pairKey(a, b)]
	return ok
}

// Neighbors returns the nodes directly linked to name.
func (g *Graph) Neighbors(name string) []string {
	return append([]string(nil), g.adj[name]...)
}

// ShortestPath returns an unweighted shortest path from src to dst, both
// included. It returns false when either node is missing, when src equals
// dst, or when dst is unreachable.
func (g *Graph) ShortestPath(src, dst string) ([]string, bool) {
	if !g.HasNode(src) || !g.HasNode(dst) || src == dst {
		return nil, false
	}

	prev := map[string]string{src: ""}
	queue := []string{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.adj[cur] {
			if _, visited := prev[next]; visited {
				continue
			}
			prev[next] = cur
			if next == dst {
				return buildPath(prev, src, dst), true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}

func buildPath(prev map[string]string, src, dst string) []string {
	var path []string
	for cur := dst; cur != src; cur = prev[cur] {
		path = append(path, cur)
	}
	path = append(path, src)
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
