package graph

import (
	"bytes"
	"math/big"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nebulasio/go-nbre/entities"
	"github.com/stretchr/testify/require"
)

var bigIntComparer = cmp.Comparer(func(a, b *big.Int) bool {
	return a.Cmp(b) == 0
})

func testAccount(t testing.TB, seed byte) entities.Address {
	t.Helper()
	a, err := entities.NewAddress(entities.AccountAddress, bytes.Repeat([]byte{seed}, 20))
	require.NoError(t, err)
	return a
}

func randomGraph(t testing.TB, seed uint64, vertices, edges int) *Graph {
	r := rand.New(rand.NewPCG(seed, seed*31+7))
	addresses := make([]entities.Address, vertices)
	for i := range addresses {
		addresses[i] = testAccount(t, byte(i+1))
	}
	g := New()
	for i := 0; i < edges; i++ {
		from := addresses[r.IntN(vertices)]
		to := addresses[r.IntN(vertices)]
		if from == to {
			continue
		}
		g.AddEdge(from, to, big.NewInt(int64(r.IntN(100)+1)), int64(r.IntN(20)+1))
	}
	return g
}

func TestGraph_RemoveCycles_Example(t *testing.T) {
	a, b, c := testAccount(t, 0xa), testAccount(t, 0xb), testAccount(t, 0xc)

	g := New()
	g.AddEdge(a, b, big.NewInt(5), 1)
	g.AddEdge(b, a, big.NewInt(3), 2)
	g.AddEdge(a, c, big.NewInt(2), 3)

	g.RemoveTimeOrderedCycles()

	expected := []Edge{
		{From: a, To: b, Weight: big.NewInt(2), Timestamp: 1},
		{From: a, To: c, Weight: big.NewInt(2), Timestamp: 3},
	}
	if diff := cmp.Diff(expected, g.Edges(), bigIntComparer); diff != "" {
		t.Fatalf("unexpected edges (-want +got):\n%s", diff)
	}

	vals := g.InOutVals()
	require.Zero(t, vals[a].In.Sign())
	require.Equal(t, int64(4), vals[a].Out.Int64())
	require.Equal(t, int64(2), vals[b].In.Int64())
	require.Zero(t, vals[b].Out.Sign())
	require.Equal(t, int64(2), vals[c].In.Int64())
}

func TestGraph_FindCycle(t *testing.T) {
	a, b, c := testAccount(t, 0xa), testAccount(t, 0xb), testAccount(t, 0xc)

	testData := []struct {
		name     string
		edges    []Edge
		expected []Edge
	}{
		{
			name: "trimmed back to revisited vertex",
			edges: []Edge{
				{From: a, To: b, Weight: big.NewInt(1), Timestamp: 1},
				{From: b, To: c, Weight: big.NewInt(1), Timestamp: 2},
				{From: c, To: b, Weight: big.NewInt(1), Timestamp: 3},
			},
			expected: []Edge{
				{From: b, To: c, Weight: big.NewInt(1), Timestamp: 2},
				{From: c, To: b, Weight: big.NewInt(1), Timestamp: 3},
			},
		},
		{
			name: "equal timestamps are not ordered",
			edges: []Edge{
				{From: a, To: b, Weight: big.NewInt(1), Timestamp: 3},
				{From: b, To: a, Weight: big.NewInt(1), Timestamp: 3},
			},
		},
		{
			name: "no rotation is ordered",
			edges: []Edge{
				{From: a, To: b, Weight: big.NewInt(1), Timestamp: 1},
				{From: b, To: c, Weight: big.NewInt(1), Timestamp: 3},
				{From: c, To: a, Weight: big.NewInt(1), Timestamp: 2},
			},
		},
		{
			name: "ordered from later start",
			edges: []Edge{
				{From: a, To: b, Weight: big.NewInt(4), Timestamp: 5},
				{From: b, To: a, Weight: big.NewInt(6), Timestamp: 2},
			},
			expected: []Edge{
				{From: b, To: a, Weight: big.NewInt(6), Timestamp: 2},
				{From: a, To: b, Weight: big.NewInt(4), Timestamp: 5},
			},
		},
	}

	for _, testRun := range testData {
		t.Run(testRun.name, func(t *testing.T) {
			g := New()
			for _, e := range testRun.edges {
				g.AddEdge(e.From, e.To, e.Weight, e.Timestamp)
			}
			if diff := cmp.Diff(testRun.expected, g.FindTimeOrderedCycle(), bigIntComparer); diff != "" {
				t.Fatalf("unexpected cycle (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGraph_RemoveCycles_Properties(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		g := randomGraph(t, seed, 6, 30)
		before := g.TotalWeight()

		g.RemoveTimeOrderedCycles()

		require.Nil(t, g.FindTimeOrderedCycle(), "seed %d", seed)
		require.LessOrEqual(t, g.TotalWeight().Cmp(before), 0, "seed %d", seed)
		for _, e := range g.Edges() {
			require.Positive(t, e.Weight.Sign(), "seed %d", seed)
		}
	}
}

func TestGraph_MergeParallelEdges_Idempotent(t *testing.T) {
	for seed := uint64(1); seed <= 10; seed++ {
		g := randomGraph(t, seed, 5, 40)
		total := g.TotalWeight()

		g.MergeParallelEdges()
		once := g.Edges()
		g.MergeParallelEdges()

		if diff := cmp.Diff(once, g.Edges(), bigIntComparer); diff != "" {
			t.Fatalf("merge not idempotent for seed %d (-once +twice):\n%s", seed, diff)
		}
		require.Zero(t, total.Cmp(g.TotalWeight()))

		pairs := make(map[[2]entities.Address]bool)
		for _, e := range once {
			pair := [2]entities.Address{e.From, e.To}
			require.False(t, pairs[pair])
			pairs[pair] = true
			require.Zero(t, e.Timestamp)
		}
	}
}

func TestGraph_MergeTopKParallelEdges(t *testing.T) {
	a, b, c := testAccount(t, 0xa), testAccount(t, 0xb), testAccount(t, 0xc)

	g := New()
	for i, w := range []int64{1, 7, 3, 9, 2, 7} {
		g.AddEdge(a, b, big.NewInt(w), int64(i))
	}
	g.AddEdge(a, c, big.NewInt(4), 10)
	g.AddEdge(a, c, big.NewInt(1), 11)
	g.AddEdge(b, c, big.NewInt(5), 12)

	g.MergeTopKParallelEdges(DefaultTopK)

	expected := []Edge{
		{From: a, To: b, Weight: big.NewInt(23)},
		{From: a, To: c, Weight: big.NewInt(5)},
		{From: b, To: c, Weight: big.NewInt(5)},
	}
	if diff := cmp.Diff(expected, g.Edges(), bigIntComparer); diff != "" {
		t.Fatalf("unexpected edges (-want +got):\n%s", diff)
	}
}

func TestGraph_Merge(t *testing.T) {
	a, b, c, d := testAccount(t, 0xa), testAccount(t, 0xb), testAccount(t, 0xc), testAccount(t, 0xd)

	first := New()
	first.AddEdge(a, b, big.NewInt(2), 5)
	second := New()
	second.AddEdge(a, b, big.NewInt(3), 9)
	second.AddEdge(b, c, big.NewInt(1), 10)
	second.AddVertex(d)

	merged := Merge([]*Graph{first, second})

	expected := []Edge{
		{From: a, To: b, Weight: big.NewInt(2)},
		{From: a, To: b, Weight: big.NewInt(3)},
		{From: b, To: c, Weight: big.NewInt(1)},
	}
	if diff := cmp.Diff(expected, merged.Edges(), bigIntComparer); diff != "" {
		t.Fatalf("unexpected edges (-want +got):\n%s", diff)
	}
	require.Equal(t, []entities.Address{a, b, c, d}, merged.Vertices())
	require.Equal(t, 1, first.EdgeCount())
	require.Empty(t, Merge(nil).Edges())
}

func TestGraph_Stats(t *testing.T) {
	a, b, c := testAccount(t, 0xa), testAccount(t, 0xb), testAccount(t, 0xc)

	g := New()
	g.AddEdge(a, b, big.NewInt(10), 1)
	g.AddEdge(a, c, big.NewInt(4), 2)
	g.AddEdge(c, a, big.NewInt(1), 1)

	require.Equal(t, map[entities.Address]InOutDegree{
		a: {In: 1, Out: 2},
		b: {In: 1, Out: 0},
		c: {In: 1, Out: 1},
	}, g.InOutDegrees())
	require.Equal(t, map[entities.Address]uint64{a: 3, b: 1, c: 2}, g.DegreeSums())

	stakes := g.Stakes()
	require.Equal(t, int64(-13), stakes[a].Int64())
	require.Equal(t, int64(10), stakes[b].Int64())
	require.Equal(t, int64(3), stakes[c].Int64())
}
