package graph

import (
	"math/big"

	"github.com/nebulasio/go-nbre/entities"
)

type InOutVal struct {
	In  *big.Int
	Out *big.Int
}

type InOutDegree struct {
	In  uint64
	Out uint64
}

// InOutVals sums incoming and outgoing edge weights of every vertex.
func (g *Graph) InOutVals() map[entities.Address]InOutVal {
	vals := make(map[entities.Address]InOutVal, len(g.vertices))
	for _, a := range g.vertices {
		vals[a] = InOutVal{In: new(big.Int), Out: new(big.Int)}
	}
	for _, out := range g.out {
		for _, e := range out {
			vals[g.vertices[e.from]].Out.Add(vals[g.vertices[e.from]].Out, e.weight)
			vals[g.vertices[e.to]].In.Add(vals[g.vertices[e.to]].In, e.weight)
		}
	}
	return vals
}

// InOutDegrees counts incoming and outgoing edges of every vertex.
func (g *Graph) InOutDegrees() map[entities.Address]InOutDegree {
	in := make([]uint64, len(g.vertices))
	for _, out := range g.out {
		for _, e := range out {
			in[e.to]++
		}
	}

	degrees := make(map[entities.Address]InOutDegree, len(g.vertices))
	for v, a := range g.vertices {
		degrees[a] = InOutDegree{In: in[v], Out: uint64(len(g.out[v]))}
	}
	return degrees
}

func (g *Graph) DegreeSums() map[entities.Address]uint64 {
	sums := make(map[entities.Address]uint64, len(g.vertices))
	for a, d := range g.InOutDegrees() {
		sums[a] = d.In + d.Out
	}
	return sums
}

// Stakes is incoming minus outgoing value per vertex.
func (g *Graph) Stakes() map[entities.Address]*big.Int {
	stakes := make(map[entities.Address]*big.Int, len(g.vertices))
	for a, v := range g.InOutVals() {
		stakes[a] = new(big.Int).Sub(v.In, v.Out)
	}
	return stakes
}
