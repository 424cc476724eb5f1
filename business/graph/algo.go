package graph

import (
	"container/heap"
	"math/big"
)

// DefaultTopK is the number of heaviest parallel edges kept per pair.
const DefaultTopK = 3

// FindTimeOrderedCycle returns the edges of one cycle whose timestamps
// strictly increase along the path, or nil. Vertices are tried as start
// points in insertion order.
func (g *Graph) FindTimeOrderedCycle() []Edge {
	cycle := g.findCycle()
	if cycle == nil {
		return nil
	}
	edges := make([]Edge, 0, len(cycle))
	for _, e := range cycle {
		edges = append(edges, g.export(e))
	}
	return edges
}

func (g *Graph) findCycle() []*edge {
	for s := range g.vertices {
		if cycle := g.findCycleFrom(s); cycle != nil {
			return cycle
		}
	}
	return nil
}

// findCycleFrom runs a depth first search from s. The path is only extended
// by edges later than the last edge on it. Reaching s closes a cycle,
// reaching another vertex of the path closes the cycle that starts at
// that vertex.
func (g *Graph) findCycleFrom(s int) []*edge {
	visited := make([]bool, len(g.vertices))
	visited[s] = true
	var path []*edge

	var dfs func(v int) []*edge
	dfs = func(v int) []*edge {
		for _, e := range g.out[v] {
			timeOrdered := len(path) == 0 || path[len(path)-1].timestamp < e.timestamp

			if e.to == s {
				if !timeOrdered {
					continue
				}
				return append(append([]*edge{}, path...), e)
			}

			if visited[e.to] {
				if !timeOrdered {
					continue
				}
				start := 0
				for i, p := range path {
					if p.to == e.to {
						start = i + 1
						break
					}
				}
				return append(append([]*edge{}, path[start:]...), e)
			}

			visited[e.to] = true
			if timeOrdered {
				path = append(path, e)
				if cycle := dfs(e.to); cycle != nil {
					return cycle
				}
				path = path[:len(path)-1]
			}
			visited[e.to] = false
		}
		return nil
	}

	return dfs(s)
}

// RemoveTimeOrderedCycles repeatedly finds a time ordered cycle, subtracts
// its minimum edge weight from every edge on it and drops the edges that
// reach zero, until no such cycle remains.
func (g *Graph) RemoveTimeOrderedCycles() {
	for cycle := g.findCycle(); cycle != nil; cycle = g.findCycle() {
		minWeight := new(big.Int).Set(cycle[0].weight)
		for _, e := range cycle[1:] {
			if e.weight.Cmp(minWeight) < 0 {
				minWeight.Set(e.weight)
			}
		}

		removed := make(map[*edge]struct{})
		for _, e := range cycle {
			e.weight.Sub(e.weight, minWeight)
			if e.weight.Sign() == 0 {
				removed[e] = struct{}{}
			}
		}
		g.removeEdges(removed)
	}
}

// MergeParallelEdges collapses all edges of the same source and target into
// one edge carrying the summed weight and a zero timestamp.
func (g *Graph) MergeParallelEdges() {
	for v, out := range g.out {
		var targets []int
		sums := make(map[int]*big.Int)
		for _, e := range out {
			sum, ok := sums[e.to]
			if !ok {
				sum = new(big.Int)
				sums[e.to] = sum
				targets = append(targets, e.to)
			}
			sum.Add(sum, e.weight)
		}

		merged := make([]*edge, 0, len(targets))
		for _, t := range targets {
			merged = append(merged, &edge{from: v, to: t, weight: sums[t]})
		}
		g.out[v] = merged
	}
}

// MergeTopKParallelEdges is MergeParallelEdges summing only the k heaviest
// edges of every source and target pair.
func (g *Graph) MergeTopKParallelEdges(k int) {
	for v, out := range g.out {
		var targets []int
		heaps := make(map[int]*weightHeap)
		for _, e := range out {
			h, ok := heaps[e.to]
			if !ok {
				h = &weightHeap{}
				heaps[e.to] = h
				targets = append(targets, e.to)
			}
			switch {
			case h.Len() < k:
				heap.Push(h, e.weight)
			case h.Len() > 0 && e.weight.Cmp((*h)[0]) > 0:
				(*h)[0] = e.weight
				heap.Fix(h, 0)
			}
		}

		merged := make([]*edge, 0, len(targets))
		for _, t := range targets {
			sum := new(big.Int)
			for _, w := range *heaps[t] {
				sum.Add(sum, w)
			}
			merged = append(merged, &edge{from: v, to: t, weight: sum})
		}
		g.out[v] = merged
	}
}

// weightHeap is a min heap of edge weights.
type weightHeap []*big.Int

func (h weightHeap) Len() int           { return len(h) }
func (h weightHeap) Less(i, j int) bool { return h[i].Cmp(h[j]) < 0 }
func (h weightHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *weightHeap) Push(x any)        { *h = append(*h, x.(*big.Int)) }
func (h *weightHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Merge folds graphs into a new graph by re-adding every edge with a zero
// timestamp. Vertices without edges are carried over too.
func Merge(graphs []*Graph) *Graph {
	merged := New()
	for _, g := range graphs {
		for v, out := range g.out {
			merged.AddVertex(g.vertices[v])
			for _, e := range out {
				merged.AddEdge(g.vertices[e.from], g.vertices[e.to], e.weight, 0)
			}
		}
	}
	return merged
}
