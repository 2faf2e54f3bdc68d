// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

// Package graph holds the in-memory triple and quad containers that back the
// ontology environment, built over knakk/rdf terms.
package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/knakk/rdf"
)

// TermsEqual compares two terms by their N-Triples serialization.
func TermsEqual(a, b rdf.Term) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Serialize(rdf.NTriples) == b.Serialize(rdf.NTriples)
}

// TermIsIRI reports whether the term is the given IRI.
func TermIsIRI(t rdf.Term, iri rdf.IRI) bool {
	return t != nil && t.Type() == rdf.TermIRI && t.String() == iri.String()
}

// Graph is a set of triples with deterministic insertion order. Lookups by
// subject and predicate are indexed; membership is keyed by the N-Triples
// serialization of the triple.
type Graph struct {
	order   []string
	triples map[string]rdf.Triple
	bySubj  map[string][]string
	byPred  map[string][]string
}

func NewGraph() *Graph {
	return &Graph{
		triples: make(map[string]rdf.Triple),
		bySubj:  make(map[string][]string),
		byPred:  make(map[string][]string),
	}
}

func tripleKey(t rdf.Triple) string {
	return t.Serialize(rdf.NTriples)
}

// Insert adds triples to the graph, ignoring duplicates.
func (g *Graph) Insert(triples ...rdf.Triple) {
	for _, t := range triples {
		key := tripleKey(t)
		if _, ok := g.triples[key]; ok {
			continue
		}
		g.triples[key] = t
		g.order = append(g.order, key)
		sk := t.Subj.Serialize(rdf.NTriples)
		pk := t.Pred.Serialize(rdf.NTriples)
		g.bySubj[sk] = append(g.bySubj[sk], key)
		g.byPred[pk] = append(g.byPred[pk], key)
	}
}

// Remove deletes a triple from the graph if present.
func (g *Graph) Remove(t rdf.Triple) {
	key := tripleKey(t)
	if _, ok := g.triples[key]; !ok {
		return
	}
	delete(g.triples, key)
	g.order = removeKey(g.order, key)
	sk := t.Subj.Serialize(rdf.NTriples)
	pk := t.Pred.Serialize(rdf.NTriples)
	g.bySubj[sk] = removeKey(g.bySubj[sk], key)
	g.byPred[pk] = removeKey(g.byPred[pk], key)
}

func removeKey(keys []string, key string) []string {
	for i, k := range keys {
		if k == key {
			return append(keys[:i], keys[i+1:]...)
		}
	}
	return keys
}

func (g *Graph) Has(t rdf.Triple) bool {
	_, ok := g.triples[tripleKey(t)]
	return ok
}

func (g *Graph) Len() int {
	return len(g.order)
}

// Triples returns all triples in insertion order.
func (g *Graph) Triples() []rdf.Triple {
	out := make([]rdf.Triple, 0, len(g.order))
	for _, key := range g.order {
		out = append(out, g.triples[key])
	}
	return out
}

// ForPredicate returns the triples with the given predicate in insertion order.
func (g *Graph) ForPredicate(p rdf.IRI) []rdf.Triple {
	keys := g.byPred[rdf.Term(p).Serialize(rdf.NTriples)]
	out := make([]rdf.Triple, 0, len(keys))
	for _, key := range keys {
		out = append(out, g.triples[key])
	}
	return out
}

// ForSubject returns the triples with the given subject in insertion order.
func (g *Graph) ForSubject(s rdf.Subject) []rdf.Triple {
	keys := g.bySubj[s.Serialize(rdf.NTriples)]
	out := make([]rdf.Triple, 0, len(keys))
	for _, key := range keys {
		out = append(out, g.triples[key])
	}
	return out
}

// ForSubjectPredicate returns the triples matching both subject and predicate.
func (g *Graph) ForSubjectPredicate(s rdf.Subject, p rdf.IRI) []rdf.Triple {
	var out []rdf.Triple
	for _, t := range g.ForSubject(s) {
		if TermsEqual(t.Pred, p) {
			out = append(out, t)
		}
	}
	return out
}

// SubjectsFor returns the distinct subjects of triples matching the given
// predicate and object, in insertion order.
func (g *Graph) SubjectsFor(p rdf.IRI, o rdf.Object) []rdf.Subject {
	var out []rdf.Subject
	seen := make(map[string]struct{})
	for _, t := range g.ForPredicate(p) {
		if !TermsEqual(t.Obj, o) {
			continue
		}
		key := t.Subj.Serialize(rdf.NTriples)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t.Subj)
	}
	return out
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	out := NewGraph()
	out.Insert(g.Triples()...)
	return out
}

// Equal reports whether both graphs contain the same set of triples.
func (g *Graph) Equal(other *Graph) bool {
	if g.Len() != other.Len() {
		return false
	}
	for key := range g.triples {
		if _, ok := other.triples[key]; !ok {
			return false
		}
	}
	return true
}

// CanonicalNQuads serializes the graph as sorted N-Quads lines inside the
// named graph. Blank node labels are kept as parsed.
func (g *Graph) CanonicalNQuads(graphName rdf.IRI) string {
	ctx := rdf.Context(graphName)
	lines := make([]string, 0, len(g.order))
	for _, t := range g.triples {
		q := rdf.Quad{Triple: t, Ctx: ctx}
		lines = append(lines, q.Serialize(rdf.NQuads))
	}
	sort.Strings(lines)
	return strings.Join(lines, "")
}

// ContentHash returns the sha256 of the canonical serialization of the graph.
// The graph name is excluded so identical content hashes identically no
// matter where it was fetched from.
func (g *Graph) ContentHash() string {
	lines := make([]string, 0, len(g.order))
	for key := range g.triples {
		lines = append(lines, key)
	}
	sort.Strings(lines)
	h := sha256.New()
	for _, line := range lines {
		h.Write([]byte(line))
	}
	return hex.EncodeToString(h.Sum(nil))
}
