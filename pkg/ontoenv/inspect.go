// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package ontoenv

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/internetofwater/ontoenv/internal/depgraph"
	"github.com/internetofwater/ontoenv/internal/ontology"
)

// Stats counts what the environment holds.
type Stats struct {
	NumTriples    int `json:"num_triples"`
	NumGraphs     int `json:"num_graphs"`
	NumOntologies int `json:"num_ontologies"`
}

// EnvironmentStatus is the summary surfaced by the status CLI.
type EnvironmentStatus struct {
	Exists         bool      `json:"exists"`
	NumOntologies  int       `json:"num_ontologies"`
	LastUpdated    time.Time `json:"last_updated,omitzero"`
	StoreSizeBytes uint64    `json:"store_size_bytes"`
	MissingImports []string  `json:"missing_imports,omitempty"`
}

// GetStats counts triples, graphs, and ontologies in the runtime store.
func (e *OntoEnv) GetStats() (Stats, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.guardRead(); err != nil {
		return Stats{}, err
	}
	s := Stats{NumGraphs: len(e.graphs), NumOntologies: len(e.entries)}
	for _, g := range e.graphs {
		s.NumTriples += g.Len()
	}
	return s, nil
}

// Status reports on the on-disk environment.
func (e *OntoEnv) Status() (*EnvironmentStatus, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.guardRead(); err != nil {
		return nil, err
	}
	status := &EnvironmentStatus{
		Exists:         true,
		NumOntologies:  len(e.entries),
		MissingImports: e.missingLocked(),
	}
	if !e.cfg.Temporary {
		if info, err := os.Stat(e.dir); err == nil {
			status.LastUpdated = info.ModTime()
		}
		_ = filepath.WalkDir(e.dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if info, err := d.Info(); err == nil {
				status.StoreSizeBytes += uint64(info.Size())
			}
			return nil
		})
	}
	return status, nil
}

func (e *OntoEnv) missingLocked() []string {
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

// Importers returns the identifiers of every ontology that imports the
// resolved target.
func (e *OntoEnv) Importers(target ResolveTarget) ([]ontology.GraphIdentifier, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.guardRead(); err != nil {
		return nil, err
	}
	ont, err := e.resolveLocked(target)
	if err != nil {
		return nil, err
	}
	node, ok := e.deps.Lookup(ont.ID.Key())
	if !ok {
		return nil, fmt.Errorf("%w: %s not in dependency graph", ErrNotFound, ont.ID)
	}
	var out []ontology.GraphIdentifier
	for _, edge := range e.deps.In(node) {
		if importer, ok := e.entries[e.deps.Key(edge.From)]; ok {
			out = append(out, importer.ID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

// Why explains how the target is reachable: every import chain from an
// ontology nobody imports down to the target. When nothing imports the
// target, the result is a single chain holding only the target's name.
func (e *OntoEnv) Why(target ResolveTarget) ([][]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.guardRead(); err != nil {
		return nil, err
	}
	ont, err := e.resolveLocked(target)
	if err != nil {
		return nil, err
	}
	node, ok := e.deps.Lookup(ont.ID.Key())
	if !ok {
		return nil, fmt.Errorf("%w: %s not in dependency graph", ErrNotFound, ont.ID)
	}

	var paths [][]string
	var walk func(cur depgraph.NodeID, chain []string, seen map[depgraph.NodeID]bool)
	walk = func(cur depgraph.NodeID, chain []string, seen map[depgraph.NodeID]bool) {
		extended := false
		for _, edge := range e.deps.In(cur) {
			if seen[edge.From] {
				continue
			}
			seen[edge.From] = true
			name := e.deps.Key(edge.From)
			if importer, ok := e.entries[name]; ok {
				name = importer.ID.Name
			}
			walk(edge.From, append([]string{name}, chain...), seen)
			seen[edge.From] = false
			extended = true
		}
		if !extended {
			paths = append(paths, chain)
		}
	}
	walk(node, []string{ont.ID.Name}, map[depgraph.NodeID]bool{node: true})
	sort.Slice(paths, func(i, j int) bool {
		return strings.Join(paths[i], " ") < strings.Join(paths[j], " ")
	})
	return paths, nil
}

// DepGraphDot renders the dependency graph in GraphViz dot syntax.
func (e *OntoEnv) DepGraphDot() (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.guardRead(); err != nil {
		return "", err
	}
	return e.deps.DOT(func(key string) string {
		if ont, ok := e.entries[key]; ok {
			return ont.ID.Name
		}
		return key
	}), nil
}

// Dump renders a human-readable view of the environment, grouped by
// ontology name. When contains is non-empty only matching names print.
func (e *OntoEnv) Dump(contains string) (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.guardRead(); err != nil {
		return "", err
	}

	groups := make(map[string][]*ontology.Ontology)
	for _, ont := range e.entries {
		groups[ont.ID.Name] = append(groups[ont.ID.Name], ont)
	}
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		if contains != "" && !strings.Contains(name, contains) {
			continue
		}
		fmt.Fprintf(&b, "┌ Ontology: %s\n", name)
		group := groups[name]
		sort.Slice(group, func(i, j int) bool { return group[i].ID.Key() < group[j].ID.Key() })
		for _, ont := range group {
			fmt.Fprintf(&b, "├─ Location: %s\n", ont.ID.Location)
			if len(ont.VersionProperties) > 0 {
				fmt.Fprintf(&b, "│ ├─ Version properties:\n")
				keys := make([]string, 0, len(ont.VersionProperties))
				for k := range ont.VersionProperties {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(&b, "│ │ ├─ %s: %s\n", k, ont.VersionProperties[k])
				}
			}
			fmt.Fprintf(&b, "│ ├─ Last fetched: %s\n", ont.Fetch.LastFetched.Format(time.RFC3339))
			fmt.Fprintf(&b, "│ ├─ Triples: %d\n", ont.TripleCount)
			if len(ont.Imports) > 0 {
				fmt.Fprintf(&b, "│ └─ Imports:\n")
				imports := append([]string(nil), ont.Imports...)
				sort.Strings(imports)
				for _, imp := range imports {
					fmt.Fprintf(&b, "│   ├─ %s\n", imp)
				}
			}
		}
		b.WriteString("└────────────────────────────────────────────────\n")
	}
	return b.String(), nil
}
