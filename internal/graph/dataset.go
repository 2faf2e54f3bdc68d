// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"github.com/knakk/rdf"
)

// Dataset is a collection of named graphs. Graph names are IRIs; the set of
// names preserves insertion order so merged output stays deterministic.
type Dataset struct {
	order  []string
	graphs map[string]*Graph
	names  map[string]rdf.IRI
}

func NewDataset() *Dataset {
	return &Dataset{
		graphs: make(map[string]*Graph),
		names:  make(map[string]rdf.IRI),
	}
}

// Graph returns the named graph, creating it if absent.
func (d *Dataset) Graph(name rdf.IRI) *Graph {
	key := name.String()
	if g, ok := d.graphs[key]; ok {
		return g
	}
	g := NewGraph()
	d.graphs[key] = g
	d.names[key] = name
	d.order = append(d.order, key)
	return g
}

// HasGraph reports whether a graph with the given name exists.
func (d *Dataset) HasGraph(name rdf.IRI) bool {
	_, ok := d.graphs[name.String()]
	return ok
}

// GraphNames returns the graph names in insertion order.
func (d *Dataset) GraphNames() []rdf.IRI {
	out := make([]rdf.IRI, 0, len(d.order))
	for _, key := range d.order {
		out = append(out, d.names[key])
	}
	return out
}

// Insert adds a triple to the named graph.
func (d *Dataset) Insert(name rdf.IRI, triples ...rdf.Triple) {
	d.Graph(name).Insert(triples...)
}

// Merge copies every triple of g into the named graph. The source graph is
// never mutated.
func (d *Dataset) Merge(name rdf.IRI, g *Graph) {
	d.Graph(name).Insert(g.Triples()...)
}

// Quads returns every quad in the dataset, graphs in insertion order.
func (d *Dataset) Quads() []rdf.Quad {
	var out []rdf.Quad
	for _, key := range d.order {
		ctx := rdf.Context(d.names[key])
		for _, t := range d.graphs[key].Triples() {
			out = append(out, rdf.Quad{Triple: t, Ctx: ctx})
		}
	}
	return out
}

// Len returns the total number of triples across all graphs.
func (d *Dataset) Len() int {
	n := 0
	for _, g := range d.graphs {
		n += g.Len()
	}
	return n
}

// Flatten unions every graph into a single Graph, deduplicating triples that
// appear in more than one named graph.
func (d *Dataset) Flatten() *Graph {
	out := NewGraph()
	for _, key := range d.order {
		out.Insert(d.graphs[key].Triples()...)
	}
	return out
}

// each iterates over graphs in insertion order.
func (d *Dataset) each(fn func(name rdf.IRI, g *Graph)) {
	for _, key := range d.order {
		fn(d.names[key], d.graphs[key])
	}
}
