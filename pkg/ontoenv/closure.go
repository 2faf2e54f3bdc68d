// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package ontoenv

import (
	"fmt"
	"sort"

	"github.com/knakk/rdf"
	log "github.com/sirupsen/logrus"

	"github.com/internetofwater/ontoenv/internal/graph"
	"github.com/internetofwater/ontoenv/internal/ontology"
)

// GetClosure returns the imports closure of the resolved target in BFS
// discovery order, the root first. depth bounds the traversal when
// non-negative; depth 0 returns just the root. Imports are resolved freshly
// on every visit so graphs added since the edge was recorded are found.
func (e *OntoEnv) GetClosure(target ResolveTarget, depth int) ([]ontology.GraphIdentifier, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.guardRead(); err != nil {
		return nil, err
	}
	root, err := e.resolveLocked(target)
	if err != nil {
		return nil, err
	}
	return e.closureLocked(root, depth)
}

func (e *OntoEnv) closureLocked(root *ontology.Ontology, depth int) ([]ontology.GraphIdentifier, error) {
	type item struct {
		ont   *ontology.Ontology
		depth int
		path  []string
	}
	visited := map[string]struct{}{root.ID.Key(): {}}
	order := []ontology.GraphIdentifier{root.ID}
	queue := []item{{ont: root, path: []string{root.ID.Name}}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if depth >= 0 && cur.depth >= depth {
			continue
		}
		for _, raw := range cur.ont.Imports {
			imp, err := e.resolveIRI(raw)
			if err != nil {
				return nil, annotateImport(err, append(cur.path, raw))
			}
			if imp == nil {
				if e.cfg.Strict {
					return nil, annotateImport(fmt.Errorf("%w: import %s", ErrNotFound, raw), append(cur.path, raw))
				}
				log.Warnf("import not found: %s", raw)
				continue
			}
			if _, seen := visited[imp.ID.Key()]; seen {
				continue
			}
			visited[imp.ID.Key()] = struct{}{}
			order = append(order, imp.ID)
			queue = append(queue, item{
				ont:   imp,
				depth: cur.depth + 1,
				path:  append(append([]string(nil), cur.path...), raw),
			})
		}
	}
	return order, nil
}

// UnionGraphOptions controls how a closure is materialized.
type UnionGraphOptions struct {
	// RewriteSHPrefixes retargets sh:prefixes at the root ontology.
	RewriteSHPrefixes bool
	// RemoveOWLImports drops owl:imports triples from the merged output.
	RemoveOWLImports bool
	// RemoveNonRootDeclarations drops `?s a owl:Ontology` for every subject
	// but the root, so the merge presents a single ontology.
	RemoveNonRootDeclarations bool
}

// DefaultUnionGraphOptions enables the rewrites the closure CLI defaults to.
func DefaultUnionGraphOptions() UnionGraphOptions {
	return UnionGraphOptions{RewriteSHPrefixes: true, RemoveOWLImports: true}
}

// UnionGraph is a materialized closure.
type UnionGraph struct {
	Dataset  *graph.Dataset
	GraphIDs []ontology.GraphIdentifier
	// NamespaceMap unions the sh:declare maps of every member graph.
	NamespaceMap map[string]string
}

// Len returns the number of triples in the union.
func (u *UnionGraph) Len() int { return u.Dataset.Len() }

// Flattened returns the union as a single deduplicated graph.
func (u *UnionGraph) Flattened() *graph.Graph { return u.Dataset.Flatten() }

// GetUnionGraph unions the named graphs into a fresh dataset, applying the
// configured rewrites. The first identifier is the root for rewrite
// purposes. Source graphs are never mutated.
func (e *OntoEnv) GetUnionGraph(ids []ontology.GraphIdentifier, opts UnionGraphOptions) (*UnionGraph, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.guardRead(); err != nil {
		return nil, err
	}
	return e.unionLocked(ids, opts)
}

func (e *OntoEnv) unionLocked(ids []ontology.GraphIdentifier, opts UnionGraphOptions) (*UnionGraph, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no graphs to union", ErrNotFound)
	}
	ds := graph.NewDataset()
	namespaceMap := make(map[string]string)
	memberNames := make([]rdf.IRI, 0, len(ids))

	for _, id := range ids {
		g, ok := e.graphs[id.Key()]
		if !ok {
			return nil, fmt.Errorf("%w: graph for %s", ErrNotFound, id)
		}
		name, err := rdf.NewIRI(id.Name)
		if err != nil {
			return nil, err
		}
		ds.Merge(name, g)
		memberNames = append(memberNames, name)

		if ont := e.entries[id.Key()]; ont != nil {
			for prefix, ns := range ont.NamespaceMap {
				namespaceMap[prefix] = ns
			}
		}
	}

	root, err := rdf.NewIRI(ids[0].Name)
	if err != nil {
		return nil, err
	}
	if opts.RewriteSHPrefixes {
		graph.RewriteSHPrefixes(ds, root)
	}
	if opts.RemoveOWLImports {
		graph.RemoveOWLImports(ds, memberNames)
	}
	if opts.RemoveNonRootDeclarations {
		graph.RemoveOntologyDeclarations(ds, root)
	}

	return &UnionGraph{Dataset: ds, GraphIDs: ids, NamespaceMap: namespaceMap}, nil
}

// GetClosureUnion resolves, computes the closure, and unions it in one call.
func (e *OntoEnv) GetClosureUnion(target ResolveTarget, depth int, opts UnionGraphOptions) (*UnionGraph, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.guardRead(); err != nil {
		return nil, err
	}
	root, err := e.resolveLocked(target)
	if err != nil {
		return nil, err
	}
	ids, err := e.closureLocked(root, depth)
	if err != nil {
		return nil, err
	}
	return e.unionLocked(ids, opts)
}

// ImportDependencies reads the ontology declarations of an external graph,
// resolves its imports (fetching missing ones when asked), merges the
// closure's triples into the graph, and strips its owl:imports statements.
// Returns the sorted list of ontology IRIs that were merged in.
func (e *OntoEnv) ImportDependencies(g *graph.Graph, fetchMissing bool) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guardRead(); err != nil {
		return nil, err
	}

	var roots []*ontology.Ontology
	merged := make(map[string]struct{})

	for _, t := range g.ForPredicate(graph.OWLImports) {
		if t.Obj.Type() != rdf.TermIRI {
			continue
		}
		raw := t.Obj.String()
		imp, err := e.resolveIRI(raw)
		if err != nil {
			return nil, err
		}
		if imp == nil && fetchMissing {
			if err := e.guardWrite("import dependencies"); err != nil {
				return nil, err
			}
			loc, lerr := ontology.ParseLocation(raw)
			if lerr == nil {
				e.failedResolutions = make(map[string]struct{})
				if _, aerr := e.addLocked(loc, DefaultAddOptions()); aerr != nil {
					if e.cfg.Strict {
						return nil, aerr
					}
					log.Warnf("failed to fetch import %s: %v", raw, aerr)
				}
				imp, _ = e.resolveIRI(raw)
			}
		}
		if imp == nil {
			if e.cfg.Strict {
				return nil, fmt.Errorf("%w: import %s", ErrNotFound, raw)
			}
			log.Warnf("import not found: %s", raw)
			continue
		}
		// dedupe by alias-equivalence: two IRIs resolving to the same
		// identifier merge once
		if _, ok := merged[imp.ID.Key()]; ok {
			continue
		}
		merged[imp.ID.Key()] = struct{}{}
		roots = append(roots, imp)
	}

	mergedNames := make(map[string]struct{})
	for _, root := range roots {
		ids, err := e.closureLocked(root, -1)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			src, ok := e.graphs[id.Key()]
			if !ok {
				continue
			}
			g.Insert(src.Triples()...)
			mergedNames[id.Name] = struct{}{}
		}
	}

	for _, t := range g.ForPredicate(graph.OWLImports) {
		g.Remove(t)
	}

	out := make([]string, 0, len(mergedNames))
	for name := range mergedNames {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}
