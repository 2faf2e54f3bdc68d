// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package depgraph

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddNodeInterns(t *testing.T) {
	g := New()
	a := g.AddNode("a")
	again := g.AddNode("a")
	require.Equal(t, a, again)

	id, ok := g.Lookup("a")
	require.True(t, ok)
	require.Equal(t, a, id)
	require.Equal(t, "a", g.Key(a))
}

func TestDanglingEdgeResolution(t *testing.T) {
	g := New()
	b := g.AddNode("b")
	g.AddEdge(b, "http://ex/a", Unresolved)
	require.Len(t, g.Dangling(), 1)

	a := g.AddNode("a")
	n := g.ResolveDangling("http://ex/a", a)
	require.Equal(t, 1, n)
	require.Empty(t, g.Dangling())
	require.Len(t, g.In(a), 1)
	require.Equal(t, b, g.In(a)[0].From)
}

func TestDuplicateEdgesCollapse(t *testing.T) {
	g := New()
	b := g.AddNode("b")
	a := g.AddNode("a")
	g.AddEdge(b, "http://ex/a", a)
	g.AddEdge(b, "http://ex/a", a)
	require.Len(t, g.Out(b), 1)
	require.Len(t, g.In(a), 1)
}

func TestRemoveNodeDanglesIncomingEdges(t *testing.T) {
	g := New()
	a := g.AddNode("a")
	b := g.AddNode("b")
	g.AddEdge(b, "http://ex/a", a)
	g.AddEdge(a, "http://ex/x", Unresolved)

	g.RemoveNode(a)
	require.False(t, g.Contains("a"))
	// b's import is dangling again, a's own outgoing edges are gone
	require.Len(t, g.Dangling()["http://ex/a"], 1)
	require.Empty(t, g.Dangling()["http://ex/x"])
	require.Empty(t, g.Out(a))

	// re-adding a resolves the edge once more
	a2 := g.AddNode("a")
	require.Equal(t, 1, g.ResolveDangling("http://ex/a", a2))
}

func TestBFSIsCycleSafe(t *testing.T) {
	g := New()
	a := g.AddNode("a")
	b := g.AddNode("b")
	g.AddEdge(a, "http://ex/b", b)
	g.AddEdge(b, "http://ex/a", a)

	var visited []NodeID
	g.BFS(a, func(id NodeID, depth int) bool {
		visited = append(visited, id)
		return true
	})
	require.Equal(t, []NodeID{a, b}, visited)

	visited = nil
	g.BFS(b, func(id NodeID, depth int) bool {
		visited = append(visited, id)
		return true
	})
	require.Equal(t, []NodeID{b, a}, visited)
}

func TestBFSDepthLimit(t *testing.T) {
	g := New()
	a := g.AddNode("a")
	b := g.AddNode("b")
	c := g.AddNode("c")
	g.AddEdge(a, "http://ex/b", b)
	g.AddEdge(b, "http://ex/c", c)

	var visited []NodeID
	g.BFS(a, func(id NodeID, depth int) bool {
		visited = append(visited, id)
		return depth < 1
	})
	require.Equal(t, []NodeID{a, b}, visited)
}

func TestTopoOrderCoversCycles(t *testing.T) {
	g := New()
	a := g.AddNode("a")
	b := g.AddNode("b")
	c := g.AddNode("c")
	g.AddEdge(a, "http://ex/b", b)
	g.AddEdge(b, "http://ex/a", a)
	g.AddEdge(b, "http://ex/c", c)

	order := g.TopoOrder()
	require.Len(t, order, 3)
	seen := make(map[NodeID]bool)
	for _, id := range order {
		require.False(t, seen[id])
		seen[id] = true
	}
}

func TestDOT(t *testing.T) {
	g := New()
	a := g.AddNode("http://ex/a")
	b := g.AddNode("http://ex/b")
	g.AddEdge(b, "http://ex/a", a)

	dot := g.DOT(func(key string) string { return key })
	require.Contains(t, dot, "digraph {")
	require.Contains(t, dot, `[label="http://ex/a"]`)
	require.Contains(t, dot, "1 -> 0;")
}
