// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"github.com/knakk/rdf"
)

// RemoveOWLImports drops owl:imports triples from every graph in the dataset.
// When only is non-empty, just the imports pointing at those IRIs are removed.
func RemoveOWLImports(d *Dataset, only []rdf.IRI) {
	allowed := make(map[string]struct{}, len(only))
	for _, iri := range only {
		allowed[iri.String()] = struct{}{}
	}
	d.each(func(_ rdf.IRI, g *Graph) {
		for _, t := range g.ForPredicate(OWLImports) {
			if t.Obj.Type() != rdf.TermIRI {
				continue
			}
			if len(allowed) > 0 {
				if _, ok := allowed[t.Obj.String()]; !ok {
					continue
				}
			}
			g.Remove(t)
		}
	})
}

// RemoveOntologyDeclarations drops `?s a owl:Ontology` triples whose subject
// is not the root, so the merged graph presents a single ontology.
func RemoveOntologyDeclarations(d *Dataset, root rdf.IRI) {
	d.each(func(_ rdf.IRI, g *Graph) {
		for _, t := range g.ForPredicate(RDFType) {
			if !TermsEqual(t.Obj, OWLOntology) {
				continue
			}
			if TermsEqual(t.Subj, root) {
				continue
			}
			g.Remove(t)
		}
	})
}

// declPair extracts the (sh:prefix, sh:namespace) literal pair hanging off a
// declaration node. Either value may be empty when the node is incomplete.
func declPair(g *Graph, decl rdf.Object) (prefix, namespace string, ok bool) {
	subj, isSubj := decl.(rdf.Subject)
	if !isSubj {
		return "", "", false
	}
	for _, t := range g.ForSubject(subj) {
		switch {
		case TermsEqual(t.Pred, SHPrefix):
			if t.Obj.Type() == rdf.TermLiteral {
				prefix = t.Obj.String()
			}
		case TermsEqual(t.Pred, SHNamespace):
			namespace = t.Obj.String()
		}
	}
	return prefix, namespace, prefix != "" && namespace != ""
}

// RewriteSHPrefixes retargets every sh:prefixes triple in the dataset to the
// root ontology and moves sh:declare statements onto the root, deduplicating
// declarations by their (sh:prefix, sh:namespace) pair.
func RewriteSHPrefixes(d *Dataset, root rdf.IRI) {
	seen := make(map[[2]string]struct{})

	// Declarations already on the root seed the dedup set.
	d.each(func(_ rdf.IRI, g *Graph) {
		for _, t := range g.ForPredicate(SHDeclare) {
			if !TermsEqual(t.Subj, root) {
				continue
			}
			if p, ns, ok := declPair(g, t.Obj); ok {
				seen[[2]string{p, ns}] = struct{}{}
			}
		}
	})

	d.each(func(_ rdf.IRI, g *Graph) {
		var toRemove, toAdd []rdf.Triple

		for _, t := range g.ForPredicate(SHPrefixes) {
			toRemove = append(toRemove, t)
			toAdd = append(toAdd, rdf.Triple{Subj: t.Subj, Pred: SHPrefixes, Obj: root})
		}

		for _, t := range g.ForPredicate(SHDeclare) {
			if TermsEqual(t.Subj, root) {
				continue
			}
			toRemove = append(toRemove, t)
			if p, ns, ok := declPair(g, t.Obj); ok {
				pair := [2]string{p, ns}
				if _, dup := seen[pair]; dup {
					continue
				}
				seen[pair] = struct{}{}
			}
			toAdd = append(toAdd, rdf.Triple{Subj: root, Pred: SHDeclare, Obj: t.Obj})
		}

		for _, t := range toRemove {
			g.Remove(t)
		}
		g.Insert(toAdd...)
	})
}
