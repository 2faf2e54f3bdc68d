// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package ontoenv

import (
	"errors"
	"fmt"
	"sort"

	"github.com/internetofwater/ontoenv/internal/graph"
	"github.com/internetofwater/ontoenv/internal/ontology"
	"github.com/internetofwater/ontoenv/internal/policy"
)

// ResolveTarget names an ontology to look up: by graph IRI, by exact
// (name, version), or disambiguated by source location.
type ResolveTarget interface {
	isResolveTarget()
	String() string
}

// Graph resolves by ontology IRI under the active policy.
type Graph struct{ Name string }

// Versioned resolves an exact (name, version) pair.
type Versioned struct{ Name, Version string }

// Located resolves an IRI pinned to the source it was ingested from.
type Located struct{ IRI, Location string }

func (Graph) isResolveTarget()     {}
func (Versioned) isResolveTarget() {}
func (Located) isResolveTarget()   {}

func (t Graph) String() string     { return t.Name }
func (t Versioned) String() string { return fmt.Sprintf("%s@%s", t.Name, t.Version) }
func (t Located) String() string   { return fmt.Sprintf("%s@%s", t.IRI, t.Location) }

// Resolve maps a target to the identifier of a cached graph.
func (e *OntoEnv) Resolve(target ResolveTarget) (ontology.GraphIdentifier, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.guardRead(); err != nil {
		return ontology.GraphIdentifier{}, err
	}
	ont, err := e.resolveLocked(target)
	if err != nil {
		return ontology.GraphIdentifier{}, err
	}
	return ont.ID, nil
}

func (e *OntoEnv) resolveLocked(target ResolveTarget) (*ontology.Ontology, error) {
	switch t := target.(type) {
	case Graph:
		ont, err := e.resolveIRI(t.Name)
		if err != nil {
			return nil, err
		}
		if ont == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, t.Name)
		}
		return ont, nil

	case Versioned:
		for _, key := range e.byName[t.Name] {
			if ont := e.entries[key]; ont != nil && ont.ID.Version == t.Version {
				return ont, nil
			}
		}
		return nil, fmt.Errorf("%w: %s version %s", ErrNotFound, t.Name, t.Version)

	case Located:
		loc, err := ontology.ParseLocation(t.Location)
		if err != nil {
			return nil, err
		}
		if key, ok := e.byLocation[loc.Key()]; ok {
			ont := e.entries[key]
			if ont != nil && (t.IRI == "" || ont.ID.Name == t.IRI) {
				return ont, nil
			}
		}
		return nil, fmt.Errorf("%w: %s at %s", ErrNotFound, t.IRI, t.Location)
	}
	return nil, fmt.Errorf("%w: unsupported resolve target %T", ErrNotFound, target)
}

// resolveIRI follows an exact alias first, then applies the resolution policy
// over the entries sharing the IRI as their name.
func (e *OntoEnv) resolveIRI(iri string) (*ontology.Ontology, error) {
	if key, ok := e.aliases[iri]; ok {
		if ont, ok := e.entries[key]; ok {
			return ont, nil
		}
	}
	keys := e.byName[iri]
	if len(keys) == 0 {
		return nil, nil
	}
	candidates := make([]*ontology.Ontology, 0, len(keys))
	for _, key := range keys {
		candidates = append(candidates, e.entries[key])
	}
	ont, err := e.pol.Resolve(iri, candidates)
	if err != nil {
		if errors.Is(err, policy.ErrAmbiguous) || errors.Is(err, policy.ErrExplicitRequired) {
			return nil, fmt.Errorf("%w: %v", ErrAmbiguous, err)
		}
		return nil, err
	}
	return ont, nil
}

// lookupByIRI is resolveIRI with errors swallowed, for edge re-resolution
// where ambiguity just means "not resolved yet".
func (e *OntoEnv) lookupByIRI(iri string) *ontology.Ontology {
	ont, err := e.resolveIRI(iri)
	if err != nil {
		return nil
	}
	return ont
}

// GetOntology returns the cache entry for a resolved target.
func (e *OntoEnv) GetOntology(target ResolveTarget) (*ontology.Ontology, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.guardRead(); err != nil {
		return nil, err
	}
	return e.resolveLocked(target)
}

// GetGraph returns a copy of the triples cached for a resolved target.
func (e *OntoEnv) GetGraph(target ResolveTarget) (*graph.Graph, ontology.GraphIdentifier, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.guardRead(); err != nil {
		return nil, ontology.GraphIdentifier{}, err
	}
	ont, err := e.resolveLocked(target)
	if err != nil {
		return nil, ontology.GraphIdentifier{}, err
	}
	g, ok := e.graphs[ont.ID.Key()]
	if !ok {
		return nil, ontology.GraphIdentifier{}, fmt.Errorf("%w: graph for %s", ErrNotFound, ont.ID)
	}
	return g.Clone(), ont.ID, nil
}

// Ontologies returns every cache entry, sorted by name then location.
func (e *OntoEnv) Ontologies() []*ontology.Ontology {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*ontology.Ontology, 0, len(e.entries))
	for _, ont := range e.entries {
		out = append(out, ont)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ID.Name != out[j].ID.Name {
			return out[i].ID.Name < out[j].ID.Name
		}
		return out[i].ID.Location.Key() < out[j].ID.Location.Key()
	})
	return out
}

// MissingImports returns the sorted set of raw import IRIs that no cached
// entry satisfies.
func (e *OntoEnv) MissingImports() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	missing := make(map[string]struct{})
	for _, ont := range e.entries {
		for _, raw := range ont.Imports {
			if e.lookupByIRI(raw) == nil {
				missing[raw] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(missing))
	for iri := range missing {
		out = append(out, iri)
	}
	sort.Strings(out)
	return out
}

// Aliases returns a copy of the alias table.
func (e *OntoEnv) Aliases() map[string]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]string, len(e.aliases))
	for k, v := range e.aliases {
		out[k] = v
	}
	return out
}
