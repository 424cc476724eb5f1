// Package graph holds the directed weighted transaction multigraph and the
// reductions applied to it before ranking.
package graph

import (
	"math/big"

	"github.com/nebulasio/go-nbre/entities"
)

// Edge is a single value transfer. Timestamp is 0 once edges were merged.
type Edge struct {
	From      entities.Address
	To        entities.Address
	Weight    *big.Int
	Timestamp int64
}

type edge struct {
	from, to  int
	weight    *big.Int
	timestamp int64
}

// Graph keeps vertices and out edges in insertion order so that every
// traversal is reproducible. It is not safe for concurrent use.
type Graph struct {
	vertices []entities.Address
	index    map[entities.Address]int
	out      [][]*edge
}

func New() *Graph {
	return &Graph{index: make(map[entities.Address]int)}
}

// FromTransactions adds one edge per transaction in the given order.
func FromTransactions(txs []entities.TransactionInfo) *Graph {
	g := New()
	for _, tx := range txs {
		g.AddEdge(tx.From, tx.To, tx.Value, tx.Timestamp)
	}
	return g
}

func (g *Graph) vertex(a entities.Address) int {
	if i, ok := g.index[a]; ok {
		return i
	}
	i := len(g.vertices)
	g.vertices = append(g.vertices, a)
	g.index[a] = i
	g.out = append(g.out, nil)
	return i
}

// AddVertex registers a without any edge.
func (g *Graph) AddVertex(a entities.Address) {
	g.vertex(a)
}

// AddEdge appends an edge. Parallel edges are kept until a merge step.
func (g *Graph) AddEdge(from, to entities.Address, weight *big.Int, timestamp int64) {
	w := new(big.Int)
	if weight != nil {
		w.Set(weight)
	}
	f := g.vertex(from)
	t := g.vertex(to)
	g.out[f] = append(g.out[f], &edge{from: f, to: t, weight: w, timestamp: timestamp})
}

func (g *Graph) Vertices() []entities.Address {
	vertices := make([]entities.Address, len(g.vertices))
	copy(vertices, g.vertices)
	return vertices
}

func (g *Graph) VertexCount() int {
	return len(g.vertices)
}

func (g *Graph) EdgeCount() int {
	count := 0
	for _, edges := range g.out {
		count += len(edges)
	}
	return count
}

// Edges lists every edge, by source vertex in insertion order.
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, 0, g.EdgeCount())
	for _, out := range g.out {
		for _, e := range out {
			edges = append(edges, g.export(e))
		}
	}
	return edges
}

func (g *Graph) OutEdges(a entities.Address) []Edge {
	i, ok := g.index[a]
	if !ok {
		return nil
	}
	edges := make([]Edge, 0, len(g.out[i]))
	for _, e := range g.out[i] {
		edges = append(edges, g.export(e))
	}
	return edges
}

// TotalWeight sums the weight of all edges.
func (g *Graph) TotalWeight() *big.Int {
	total := new(big.Int)
	for _, out := range g.out {
		for _, e := range out {
			total.Add(total, e.weight)
		}
	}
	return total
}

func (g *Graph) export(e *edge) Edge {
	return Edge{
		From:      g.vertices[e.from],
		To:        g.vertices[e.to],
		Weight:    new(big.Int).Set(e.weight),
		Timestamp: e.timestamp,
	}
}

// removeEdges drops the given edges and keeps the order of the rest.
func (g *Graph) removeEdges(removed map[*edge]struct{}) {
	if len(removed) == 0 {
		return
	}
	for v, out := range g.out {
		kept := make([]*edge, 0, len(out))
		for _, e := range out {
			if _, ok := removed[e]; !ok {
				kept = append(kept, e)
			}
		}
		g.out[v] = kept
	}
}
