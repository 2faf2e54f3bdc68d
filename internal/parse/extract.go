// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package parse

import (
	"sort"

	"github.com/knakk/rdf"
	log "github.com/sirupsen/logrus"

	"github.com/internetofwater/ontoenv/internal/graph"
)

// Declarations carries everything the ingestor needs to know about a parsed
// graph: the declared ontology subject, its version, the imports in document
// order, the version property table, and the sh:declare namespace map.
type Declarations struct {
	Ontology    string
	HasOntology bool
	Version     string
	Imports     []string
	// VersionProperties maps a version-describing predicate IRI to its value.
	VersionProperties map[string]string
	// NamespaceMap maps declared prefixes to namespaces.
	NamespaceMap map[string]string
}

// Extract reads the ontology declarations out of a parsed graph. When no
// `?s a owl:Ontology` triple exists, the subjects of sh:declare are
// considered before giving up. When several subjects declare themselves, the
// lexicographically smallest IRI wins so the choice is deterministic.
func Extract(g *graph.Graph) Declarations {
	decls := g.SubjectsFor(graph.RDFType, graph.OWLOntology)
	if len(decls) == 0 {
		for _, t := range g.ForPredicate(graph.SHDeclare) {
			decls = append(decls, t.Subj)
		}
	}

	var names []string
	for _, s := range decls {
		if s.Type() == rdf.TermIRI {
			names = append(names, s.String())
		}
	}
	if len(names) == 0 {
		return Declarations{}
	}
	if len(names) > 1 {
		sort.Strings(names)
		log.Warnf("multiple ontology declarations found, using %s", names[0])
	}
	name := names[0]
	subject, err := rdf.NewIRI(name)
	if err != nil {
		return Declarations{}
	}

	out := Declarations{
		Ontology:          name,
		HasOntology:       true,
		VersionProperties: make(map[string]string),
		NamespaceMap:      make(map[string]string),
	}

	for _, t := range g.ForSubjectPredicate(subject, graph.OWLVersionIRI) {
		if t.Obj.Type() == rdf.TermIRI {
			out.Version = t.Obj.String()
			break
		}
	}

	for _, t := range g.ForSubjectPredicate(subject, graph.OWLImports) {
		if t.Obj.Type() != rdf.TermIRI {
			continue
		}
		imp := t.Obj.String()
		if imp == name {
			// self-imports carry no information
			continue
		}
		out.Imports = append(out.Imports, imp)
	}

	collectVersionProperties(g, subject, out.VersionProperties)
	// version metadata may hang off a vaem:hasGraphMetadata node instead
	for _, t := range g.ForSubjectPredicate(subject, graph.VAEMHasGraphMetadata) {
		meta, ok := t.Obj.(rdf.Subject)
		if !ok {
			continue
		}
		collectVersionProperties(g, meta, out.VersionProperties)
	}

	collectNamespaceMap(g, subject, out.NamespaceMap)

	return out
}

func collectVersionProperties(g *graph.Graph, subject rdf.Subject, into map[string]string) {
	for _, pred := range graph.VersionProperties {
		for _, t := range g.ForSubjectPredicate(subject, pred) {
			switch t.Obj.Type() {
			case rdf.TermIRI, rdf.TermLiteral:
				into[pred.String()] = t.Obj.String()
			}
			break
		}
	}
}

func collectNamespaceMap(g *graph.Graph, subject rdf.Subject, into map[string]string) {
	for _, t := range g.ForSubjectPredicate(subject, graph.SHDeclare) {
		decl, ok := t.Obj.(rdf.Subject)
		if !ok {
			continue
		}
		var prefix, namespace string
		for _, dt := range g.ForSubject(decl) {
			switch {
			case graph.TermsEqual(dt.Pred, graph.SHPrefix):
				if dt.Obj.Type() == rdf.TermLiteral {
					prefix = dt.Obj.String()
				}
			case graph.TermsEqual(dt.Pred, graph.SHNamespace):
				namespace = dt.Obj.String()
			}
		}
		if prefix != "" && namespace != "" {
			into[prefix] = namespace
		}
	}
}
